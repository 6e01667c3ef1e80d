package repository

import (
	"context"
	"sort"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/workflow"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type ReceptionKPI struct {
	Intakes          int64   `json:"intakes"`
	FoldersReceived  int64   `json:"folders_received"`
	AveragePerIntake float64 `json:"average_per_intake"`
}

type OutputKPI struct {
	CompletedIntakes   int64            `json:"completed_intakes"`
	DeliveredFolders   int64            `json:"delivered_folders"`
	DeliveriesDone     int64            `json:"deliveries_done"`
	DeliveriesByState  map[string]int64 `json:"deliveries_by_state"`
	DeliveriesByMethod map[string]int64 `json:"deliveries_by_method"`
}

type ErrorKPI struct {
	Processing int64   `json:"processing"`
	Scan       int64   `json:"scan"`
	Indexing   int64   `json:"indexing"`
	Delivery   int64   `json:"delivery"`
	Total      int64   `json:"total"`
	Rate       float64 `json:"rate"`
}

// TrendKPI holds the relative change against the preceding window, in percent
type TrendKPI struct {
	Reception  float64 `json:"reception"`
	Processing float64 `json:"processing"`
	Scanning   float64 `json:"scanning"`
}

type AgentKPI struct {
	OperatorID string              `json:"operator_id"`
	Name       string              `json:"name,omitempty"`
	Processing workflow.StageStats `json:"processing"`
	Scan       workflow.StageStats `json:"scan"`
	Indexing   workflow.StageStats `json:"indexing"`
}

// KPIReport is recomputed from the store on every request
type KPIReport struct {
	Period      workflow.Period     `json:"period"`
	GeneratedAt time.Time           `json:"generated_at"`
	Reception   ReceptionKPI        `json:"reception"`
	Processing  workflow.StageStats `json:"processing"`
	Scan        workflow.StageStats `json:"scan"`
	Indexing    workflow.StageStats `json:"indexing"`
	Output      OutputKPI           `json:"output"`
	Errors      ErrorKPI            `json:"errors"`
	Trends      TrendKPI            `json:"trends"`
	Agents      []AgentKPI          `json:"agents"`
}

func within(column string) string {
	return column + " >= ? AND " + column + " <= ?"
}

// validatedIn loads the validated stage records started and ended inside p
func validatedIn[T any](db *gorm.DB, p workflow.Period, out *[]*T) error {
	return db.Where("state = ? AND started_at >= ? AND ended_at <= ?", models.StageValidated, p.Start, p.End).
		Find(out).Error
}

func countValidated[T any](db *gorm.DB, p workflow.Period, out *int64) error {
	return db.Model(new(T)).
		Where("state = ? AND started_at >= ? AND ended_at <= ?", models.StageValidated, p.Start, p.End).
		Count(out).Error
}

func countErrors[T any](db *gorm.DB, p workflow.Period, out *int64) error {
	return db.Model(new(T)).
		Where("state = ? AND "+within("started_at"), models.StageError, p.Start, p.End).
		Count(out).Error
}

func reception(db *gorm.DB, p workflow.Period, out *ReceptionKPI) error {
	if err := db.Model(&models.Intake{}).Where(within("received_at"), p.Start, p.End).Count(&out.Intakes).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Folder{}).Where(within("received_at"), p.Start, p.End).Count(&out.FoldersReceived).Error; err != nil {
		return err
	}
	if out.Intakes > 0 {
		out.AveragePerIntake = float64(out.FoldersReceived) / float64(out.Intakes)
	}
	return nil
}

func countBy(db *gorm.DB, column string, p workflow.Period) (map[string]int64, error) {
	var rows []struct {
		Name  string
		Count int64
	}
	err := db.Model(&models.Delivery{}).
		Select(column+" AS name, COUNT(*) AS count").
		Where(within("delivery_date"), p.Start, p.End).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Name] = row.Count
	}
	return counts, nil
}

func output(db *gorm.DB, p workflow.Period, out *OutputKPI) error {
	err := db.Model(&models.Intake{}).
		Where("state = ? AND "+within("completed_at"), models.IntakeCompleted, p.Start, p.End).
		Count(&out.CompletedIntakes).Error
	if err != nil {
		return err
	}
	if err := db.Model(&models.Folder{}).Where(within("delivered_at"), p.Start, p.End).Count(&out.DeliveredFolders).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Delivery{}).Where(within("sent_at"), p.Start, p.End).Count(&out.DeliveriesDone).Error; err != nil {
		return err
	}
	if out.DeliveriesByState, err = countBy(db, "state", p); err != nil {
		return err
	}
	out.DeliveriesByMethod, err = countBy(db, "method", p)
	return err
}

// Report aggregates the KPIs of a period. Every figure is re-queried.
func (r *Repository) Report(ctx context.Context, period workflow.Period) (*KPIReport, *RepositoryError) {
	report := &KPIReport{Period: period, GeneratedAt: r.now()}
	previous := period.Previous()

	var (
		processing     []*models.Processing
		scans          []*models.Scan
		indexings      []*models.Indexing
		operators      []models.Operator
		prevReception  ReceptionKPI
		prevProcessing int64
		prevScans      int64
	)

	g, gctx := errgroup.WithContext(ctx)
	db := r.db.WithContext(gctx)
	g.Go(func() error { return reception(db, period, &report.Reception) })
	g.Go(func() error { return reception(db, previous, &prevReception) })
	g.Go(func() error { return validatedIn(db, period, &processing) })
	g.Go(func() error { return validatedIn(db, period, &scans) })
	g.Go(func() error { return validatedIn(db, period, &indexings) })
	g.Go(func() error { return countValidated[models.Processing](db, previous, &prevProcessing) })
	g.Go(func() error { return countValidated[models.Scan](db, previous, &prevScans) })
	g.Go(func() error { return output(db, period, &report.Output) })
	g.Go(func() error { return countErrors[models.Processing](db, period, &report.Errors.Processing) })
	g.Go(func() error { return countErrors[models.Scan](db, period, &report.Errors.Scan) })
	g.Go(func() error { return countErrors[models.Indexing](db, period, &report.Errors.Indexing) })
	g.Go(func() error {
		return db.Model(&models.Delivery{}).
			Where("state = ? AND "+within("delivery_date"), models.DeliveryError, period.Start, period.End).
			Count(&report.Errors.Delivery).Error
	})
	g.Go(func() error { return db.Find(&operators).Error })
	if err := g.Wait(); err != nil {
		r.logger.Error("KPI aggregation failed", "period", period.Kind, "err", err)
		return nil, toRepositoryError(err, "KPI")
	}

	report.Processing = workflow.Summarize(processing)
	report.Scan = workflow.Summarize(scans)
	report.Indexing = workflow.Summarize(indexings)

	e := &report.Errors
	e.Total = e.Processing + e.Scan + e.Indexing + e.Delivery
	successes := len(processing) + len(scans) + len(indexings) + int(report.Output.DeliveriesDone)
	e.Rate = workflow.ErrorRate(int(e.Total), successes)

	report.Trends = TrendKPI{
		Reception:  workflow.Delta(float64(report.Reception.FoldersReceived), float64(prevReception.FoldersReceived)),
		Processing: workflow.Delta(float64(len(processing)), float64(prevProcessing)),
		Scanning:   workflow.Delta(float64(len(scans)), float64(prevScans)),
	}
	report.Agents = agentBreakdown(operators, processing, scans, indexings)
	return report, nil
}

func groupBy[S models.Stage](records []S, key func(S) string) map[string][]S {
	groups := make(map[string][]S)
	for _, rec := range records {
		if k := key(rec); k != "" {
			groups[k] = append(groups[k], rec)
		}
	}
	return groups
}

// agentBreakdown summarises the validated work of every operator that has some
func agentBreakdown(operators []models.Operator, processing []*models.Processing, scans []*models.Scan, indexings []*models.Indexing) []AgentKPI {
	byProcessing := groupBy(processing, func(p *models.Processing) string { return p.AgentID })
	byScan := groupBy(scans, func(s *models.Scan) string { return s.OperatorID })
	byIndexing := groupBy(indexings, func(i *models.Indexing) string { return i.AgentID })

	names := make(map[string]string, len(operators))
	for _, op := range operators {
		names[op.ID] = op.Name
	}
	ids := make(map[string]struct{})
	for id := range byProcessing {
		ids[id] = struct{}{}
	}
	for id := range byScan {
		ids[id] = struct{}{}
	}
	for id := range byIndexing {
		ids[id] = struct{}{}
	}

	agents := make([]AgentKPI, 0, len(ids))
	for id := range ids {
		agents = append(agents, AgentKPI{
			OperatorID: id,
			Name:       names[id],
			Processing: workflow.Summarize(byProcessing[id]),
			Scan:       workflow.Summarize(byScan[id]),
			Indexing:   workflow.Summarize(byIndexing[id]),
		})
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].OperatorID < agents[j].OperatorID })
	return agents
}
