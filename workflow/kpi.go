package workflow

import (
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
)

// PeriodKind names a reporting window preset
type PeriodKind string

const (
	PeriodDaily     PeriodKind = "daily"
	PeriodWeekly    PeriodKind = "weekly"
	PeriodMonthly   PeriodKind = "monthly"
	PeriodQuarterly PeriodKind = "quarterly"
	PeriodYearly    PeriodKind = "yearly"
	PeriodCustom    PeriodKind = "custom"
)

// Period is an inclusive time window
type Period struct {
	Kind  PeriodKind `json:"kind"`
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DayRange builds a window covering whole days from..to
func DayRange(from, to time.Time) (Period, error) {
	if to.Before(from) {
		return Period{}, reject(CodeConstraint, "period end is before its start")
	}
	return Period{Kind: PeriodCustom, Start: startOfDay(from), End: endOfDay(to)}, nil
}

// PeriodFor resolves a preset relative to today. Weeks start on Monday;
// custom without bounds covers the last 30 days.
func PeriodFor(kind PeriodKind, today time.Time) (Period, error) {
	day := startOfDay(today)
	p := Period{Kind: kind, End: endOfDay(today)}
	switch kind {
	case PeriodDaily:
		p.Start = day
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		p.Start = day.AddDate(0, 0, -offset)
	case PeriodMonthly:
		p.Start = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	case PeriodQuarterly:
		month := time.Month((int(day.Month())-1)/3*3 + 1)
		p.Start = time.Date(day.Year(), month, 1, 0, 0, 0, 0, day.Location())
	case PeriodYearly:
		p.Start = time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, day.Location())
	case PeriodCustom, "":
		p.Kind = PeriodCustom
		p.Start = day.AddDate(0, 0, -30)
	default:
		return Period{}, reject(CodeConstraint, "unknown period %q", kind)
	}
	return p, nil
}

// Previous is the window of equal length immediately preceding p
func (p Period) Previous() Period {
	length := p.End.Sub(p.Start)
	end := p.Start.Add(-time.Nanosecond)
	return Period{Kind: p.Kind, Start: end.Add(-length), End: end}
}

// StageStats summarises validated stage records
type StageStats struct {
	Count            int     `json:"count"`
	Units            int     `json:"units"`
	TotalEffective   float64 `json:"total_effective_minutes"`
	AverageEffective float64 `json:"average_effective_minutes"`
	AverageSpeed     float64 `json:"average_speed"`
}

// Summarize aggregates stage records. Speeds are averaged over records with a non-zero throughput.
func Summarize[S models.Stage](records []S) StageStats {
	var stats StageStats
	var speeds []float64
	for _, r := range records {
		t := r.StageTimer()
		stats.Count++
		stats.Units += r.Units()
		stats.TotalEffective += t.EffectiveMinutes()
		if speed := t.Throughput(r.Units()); speed > 0 {
			speeds = append(speeds, speed)
		}
	}
	if stats.Count > 0 {
		stats.AverageEffective = stats.TotalEffective / float64(stats.Count)
	}
	stats.AverageSpeed = Mean(speeds)
	return stats
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Delta is the relative change from previous to current in percent, 0 when previous is 0
func Delta(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// ErrorRate is errors over all attempts in percent
func ErrorRate(errors, successes int) float64 {
	total := errors + successes
	if total <= 0 {
		return 0
	}
	return float64(errors) / float64(total) * 100
}
