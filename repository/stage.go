package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/workflow"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StageKind string

const (
	StageProcessing StageKind = "processing"
	StageScan       StageKind = "scan"
	StageIndexing   StageKind = "indexing"
)

type StageAction string

const (
	ActionPause    StageAction = "pause"
	ActionResume   StageAction = "resume"
	ActionFinish   StageAction = "finish"
	ActionQuality  StageAction = "quality"
	ActionValidate StageAction = "validate"
	ActionReopen   StageAction = "reopen"
	ActionError    StageAction = "error"
)

func (a StageAction) Valid() bool {
	switch a {
	case ActionPause, ActionResume, ActionFinish, ActionQuality, ActionValidate, ActionReopen, ActionError:
		return true
	}
	return false
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

type ProcessingPatch struct {
	Radical         *string            `json:"radical"`
	AgencyCode      *string            `json:"agency_code"`
	PiecesProcessed *int               `json:"pieces_processed"`
	Difficulty      *models.Difficulty `json:"difficulty"`
	Condition       *models.Condition  `json:"condition"`
	Observations    *string            `json:"observations"`
	PauseMinutes    *float64           `json:"pause_minutes"`
}

func (p ProcessingPatch) apply(rec *models.Processing) {
	set(&rec.Radical, p.Radical)
	set(&rec.AgencyCode, p.AgencyCode)
	set(&rec.PiecesProcessed, p.PiecesProcessed)
	set(&rec.Difficulty, p.Difficulty)
	set(&rec.Condition, p.Condition)
	set(&rec.Observations, p.Observations)
	set(&rec.PauseMinutes, p.PauseMinutes)
}

type ScanPatch struct {
	CartonNumber  *string            `json:"carton_number"`
	Kind          *models.FolderKind `json:"kind"`
	Pieces        *int               `json:"pieces"`
	Pages         *int               `json:"pages"`
	Resolution    *models.Resolution `json:"resolution"`
	Format        *models.FileFormat `json:"format"`
	ColorMode     *models.ColorMode  `json:"color_mode"`
	Scanner       *string            `json:"scanner"`
	FileSizeMB    *float64           `json:"file_size_mb"`
	QualityIssues *string            `json:"quality_issues"`
	Observations  *string            `json:"observations"`
	PauseMinutes  *float64           `json:"pause_minutes"`
}

func (p ScanPatch) apply(rec *models.Scan) {
	set(&rec.CartonNumber, p.CartonNumber)
	set(&rec.Kind, p.Kind)
	set(&rec.Pieces, p.Pieces)
	set(&rec.Pages, p.Pages)
	set(&rec.Resolution, p.Resolution)
	set(&rec.Format, p.Format)
	set(&rec.ColorMode, p.ColorMode)
	set(&rec.Scanner, p.Scanner)
	set(&rec.FileSizeMB, p.FileSizeMB)
	set(&rec.QualityIssues, p.QualityIssues)
	set(&rec.Observations, p.Observations)
	set(&rec.PauseMinutes, p.PauseMinutes)
}

type IndexingPatch struct {
	DocumentType    *models.DocumentType    `json:"document_type"`
	Title           *string                 `json:"title"`
	ContractNumber  *string                 `json:"contract_number"`
	AccountNumber   *string                 `json:"account_number"`
	DocumentDate    *time.Time              `json:"document_date"`
	Author          *string                 `json:"author"`
	InternalRef     *string                 `json:"internal_ref"`
	Category        *models.Category        `json:"category"`
	Confidentiality *models.Confidentiality `json:"confidentiality"`
	PiecesIndexed   *int                    `json:"pieces_indexed"`
	Pages           *int                    `json:"pages"`
	Keywords        *string                 `json:"keywords"`
	Description     *string                 `json:"description"`
	FilePath        *string                 `json:"file_path"`
	FileSizeMB      *float64                `json:"file_size_mb"`
	FileFormat      *string                 `json:"file_format"`
	Observations    *string                 `json:"observations"`
	PauseMinutes    *float64                `json:"pause_minutes"`
}

func (p IndexingPatch) apply(rec *models.Indexing) {
	set(&rec.DocumentType, p.DocumentType)
	set(&rec.Title, p.Title)
	set(&rec.ContractNumber, p.ContractNumber)
	set(&rec.AccountNumber, p.AccountNumber)
	if p.DocumentDate != nil {
		date := *p.DocumentDate
		rec.DocumentDate = &date
	}
	set(&rec.Author, p.Author)
	set(&rec.InternalRef, p.InternalRef)
	set(&rec.Category, p.Category)
	set(&rec.Confidentiality, p.Confidentiality)
	set(&rec.PiecesIndexed, p.PiecesIndexed)
	set(&rec.Pages, p.Pages)
	set(&rec.Keywords, p.Keywords)
	set(&rec.Description, p.Description)
	set(&rec.FilePath, p.FilePath)
	set(&rec.FileSizeMB, p.FileSizeMB)
	set(&rec.FileFormat, p.FileFormat)
	set(&rec.Observations, p.Observations)
	set(&rec.PauseMinutes, p.PauseMinutes)
}

// stagePtr is satisfied by the pointer types of the stage records
type stagePtr[T any] interface {
	*T
	models.Stage
}

func (r *Repository) checkStage(s models.Stage) error {
	switch rec := s.(type) {
	case *models.Processing:
		return workflow.CheckProcessing(rec)
	case *models.Scan:
		return workflow.CheckScan(rec)
	case *models.Indexing:
		return workflow.CheckIndexing(rec, r.now())
	}
	return fmt.Errorf("unknown stage record %T", s)
}

// syncFolder copies the fields a stage record owns onto its folder
func syncFolder(s models.Stage, f *models.Folder) {
	switch rec := s.(type) {
	case *models.Processing:
		if rec.AgentID != "" {
			f.ProcessingAgentID = &rec.AgentID
		}
		if rec.Radical != "" {
			f.Radical = rec.Radical
		}
		if rec.AgencyCode != "" {
			f.AgencyCode = rec.AgencyCode
		}
	case *models.Scan:
		if rec.OperatorID != "" {
			f.ScanOperatorID = &rec.OperatorID
		}
		if rec.Kind != "" {
			f.Kind = rec.Kind
		}
		if rec.CartonNumber != "" {
			f.CartonNumber = rec.CartonNumber
		}
		if f.ScanStartedAt == nil {
			started := rec.StartedAt
			f.ScanStartedAt = &started
		}
	case *models.Indexing:
		if rec.AgentID != "" {
			f.IndexingAgentID = &rec.AgentID
		}
		if f.IndexingStartedAt == nil {
			started := rec.StartedAt
			f.IndexingStartedAt = &started
		}
	}
}

// persistStage checks and saves a stage record, then propagates it to its folder
func (r *Repository) persistStage(tx *gorm.DB, s models.Stage, f *models.Folder) error {
	if err := r.checkStage(s); err != nil {
		return err
	}
	if err := save(tx, s); err != nil {
		return err
	}
	syncFolder(s, f)
	if err := workflow.CheckFolder(f); err != nil {
		return err
	}
	if err := refreshFolderMetrics(tx, f); err != nil {
		return err
	}
	return save(tx, f)
}

func applyStageAction(s models.Stage, action StageAction, now time.Time) error {
	t := s.StageTimer()
	switch action {
	case ActionPause:
		return workflow.Pause(t, now)
	case ActionResume:
		return workflow.Resume(t, now)
	case ActionFinish:
		return workflow.Finish(s, now)
	case ActionQuality:
		return workflow.CheckQuality(t)
	case ActionValidate:
		return workflow.Validate(t)
	case ActionReopen:
		return workflow.Reopen(t)
	case ActionError:
		return workflow.FailStage(s, now)
	}
	return invalidInput("unknown action %q", action)
}

// advanceAfterValidation moves the folder out of the stage a validated record belongs to
func (r *Repository) advanceAfterValidation(tx *gorm.DB, out *outbox, s models.Stage, f *models.Folder, operatorID string) error {
	switch rec := s.(type) {
	case *models.Processing:
		if f.State != models.FolderProcessing {
			return nil
		}
		return r.transition(tx, out, f, operatorID, func() error {
			return workflow.CompleteProcessing(f, rec, r.now())
		})
	case *models.Scan:
		if f.State != models.FolderScanning {
			return nil
		}
		return r.transition(tx, out, f, operatorID, func() error {
			return workflow.CompleteScanning(f, rec, r.now())
		})
	case *models.Indexing:
		if f.State != models.FolderIndexing {
			return nil
		}
		var total, pending int64
		if err := tx.Model(&models.Indexing{}).Where("folder_id = ?", f.ID).Count(&total).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Indexing{}).
			Where("folder_id = ? AND state <> ?", f.ID, models.StageValidated).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return nil
		}
		return r.transition(tx, out, f, operatorID, func() error {
			return workflow.CompleteIndexing(f, int(total), r.now())
		})
	}
	return nil
}

// stageOp locks a stage record and its folder, applies mutate or action and persists both
func stageOp[T any, PT stagePtr[T]](r *Repository, entity, column, id, operatorID string, action StageAction, mutate func(s PT) error) (*T, *RepositoryError) {
	var result *T
	repoErr := r.inTx(entity, func(tx *gorm.DB, out *outbox) error {
		rec, err := lockByID[T](tx, column, id, entity)
		if err != nil {
			return err
		}
		s := PT(rec)
		f, err := lockByID[models.Folder](tx, "folder_id", s.OwnerFolderID(), "Folder")
		if err != nil {
			return err
		}

		if mutate != nil {
			err = mutate(s)
		} else {
			err = applyStageAction(s, action, r.now())
		}
		if err != nil {
			return err
		}
		if err := r.persistStage(tx, s, f); err != nil {
			return err
		}

		if action != "" {
			out.post(entity, id, operatorID, fmt.Sprintf("%s: now %s", action, s.StageTimer().State.Label()))
		}
		if action == ActionValidate {
			if err := r.advanceAfterValidation(tx, out, s, f, operatorID); err != nil {
				return err
			}
		}
		result = rec
		return nil
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return result, nil
}

// openStage creates a stage record for a folder sitting in the matching stage
func (r *Repository) openStage(folderID string, want models.FolderState, entity string, build func(tx *gorm.DB, f *models.Folder) (models.Stage, error)) (models.Stage, *RepositoryError) {
	var result models.Stage
	repoErr := r.inTx(entity, func(tx *gorm.DB, out *outbox) error {
		f, err := lockByID[models.Folder](tx, "folder_id", folderID, "Folder")
		if err != nil {
			return err
		}
		if f.State != want {
			return &RepositoryError{
				Code:    workflow.CodeInvalidState,
				Message: fmt.Sprintf("folder %s is in %s, expected %s", f.Number, f.State.Label(), want.Label()),
			}
		}
		s, err := build(tx, f)
		if err != nil {
			return err
		}
		workflow.StartTimer(s.StageTimer(), r.now())
		if err := r.checkStage(s); err != nil {
			return err
		}
		if err := tx.Create(s).Error; err != nil {
			return err
		}
		syncFolder(s, f)
		if err := workflow.CheckFolder(f); err != nil {
			return err
		}
		if err := refreshFolderMetrics(tx, f); err != nil {
			return err
		}
		if err := save(tx, f); err != nil {
			return err
		}
		out.post(entityFolder, f.ID, "", fmt.Sprintf("%s record opened", entity))
		result = s
		return nil
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return result, nil
}

// OpenProcessing starts the processing work log of a folder
func (r *Repository) OpenProcessing(folderID, agentID string, patch ProcessingPatch) (*models.Processing, *RepositoryError) {
	s, repoErr := r.openStage(folderID, models.FolderProcessing, entityProcessing, func(tx *gorm.DB, f *models.Folder) (models.Stage, error) {
		if err := rejectSecondRecord[models.Processing](tx, f, "processing"); err != nil {
			return nil, err
		}
		p := &models.Processing{
			ID:         uuid.NewString(),
			FolderID:   f.ID,
			AgentID:    agentID,
			Radical:    f.Radical,
			AgencyCode: f.AgencyCode,
			Difficulty: models.DifficultyMedium,
			Condition:  models.ConditionGood,
		}
		patch.apply(p)
		return p, nil
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return s.(*models.Processing), nil
}

// OpenScan starts the scanning work log of a folder. The folder's carton is carried over.
func (r *Repository) OpenScan(folderID, operatorID string, patch ScanPatch) (*models.Scan, *RepositoryError) {
	s, repoErr := r.openStage(folderID, models.FolderScanning, entityScan, func(tx *gorm.DB, f *models.Folder) (models.Stage, error) {
		if err := rejectSecondRecord[models.Scan](tx, f, "scan"); err != nil {
			return nil, err
		}
		sc := &models.Scan{
			ID:           uuid.NewString(),
			FolderID:     f.ID,
			OperatorID:   operatorID,
			CartonID:     f.CartonID,
			CartonNumber: f.CartonNumber,
			Kind:         f.Kind,
			Pieces:       f.PieceCount,
			Resolution:   models.Resolution300,
			Format:       models.FormatPDF,
			ColorMode:    models.ColorFull,
		}
		patch.apply(sc)
		return sc, nil
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return s.(*models.Scan), nil
}

// OpenIndexing adds an index entry to a folder in indexing
func (r *Repository) OpenIndexing(folderID, agentID string, patch IndexingPatch) (*models.Indexing, *RepositoryError) {
	s, repoErr := r.openStage(folderID, models.FolderIndexing, entityIndexing, func(tx *gorm.DB, f *models.Folder) (models.Stage, error) {
		ix := &models.Indexing{
			ID:              uuid.NewString(),
			FolderID:        f.ID,
			AgentID:         agentID,
			Confidentiality: models.ConfidentialityInternal,
			FileFormat:      string(models.FormatPDF),
		}
		patch.apply(ix)
		return ix, nil
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return s.(*models.Indexing), nil
}

func rejectSecondRecord[T any](tx *gorm.DB, f *models.Folder, what string) error {
	var count int64
	if err := tx.Model(new(T)).Where("folder_id = ?", f.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &RepositoryError{
			Code:    workflow.CodeInvalidState,
			Message: fmt.Sprintf("folder %s already has a %s record", f.Number, what),
		}
	}
	return nil
}

func (r *Repository) UpdateProcessing(id string, patch ProcessingPatch) (*models.Processing, *RepositoryError) {
	return stageOp[models.Processing](r, entityProcessing, "processing_id", id, "", "", func(p *models.Processing) error {
		patch.apply(p)
		return nil
	})
}

func (r *Repository) UpdateScan(id string, patch ScanPatch) (*models.Scan, *RepositoryError) {
	return stageOp[models.Scan](r, entityScan, "scan_id", id, "", "", func(s *models.Scan) error {
		patch.apply(s)
		return nil
	})
}

func (r *Repository) UpdateIndexing(id string, patch IndexingPatch) (*models.Indexing, *RepositoryError) {
	return stageOp[models.Indexing](r, entityIndexing, "indexing_id", id, "", "", func(ix *models.Indexing) error {
		patch.apply(ix)
		return nil
	})
}

// StageAction runs a timer action on a stage record of the given kind
func (r *Repository) StageAction(kind StageKind, id string, action StageAction, operatorID string) (models.Stage, *RepositoryError) {
	if !action.Valid() {
		return nil, invalidInput("unknown action %q", action)
	}
	switch kind {
	case StageProcessing:
		p, repoErr := stageOp[models.Processing](r, entityProcessing, "processing_id", id, operatorID, action, nil)
		if repoErr != nil {
			return nil, repoErr
		}
		return p, nil
	case StageScan:
		s, repoErr := stageOp[models.Scan](r, entityScan, "scan_id", id, operatorID, action, nil)
		if repoErr != nil {
			return nil, repoErr
		}
		return s, nil
	case StageIndexing:
		ix, repoErr := stageOp[models.Indexing](r, entityIndexing, "indexing_id", id, operatorID, action, nil)
		if repoErr != nil {
			return nil, repoErr
		}
		return ix, nil
	}
	return nil, invalidInput("unknown stage %q", kind)
}

// GetStage loads a stage record of the given kind
func (r *Repository) GetStage(kind StageKind, id string) (models.Stage, *RepositoryError) {
	var (
		s      models.Stage
		column string
	)
	switch kind {
	case StageProcessing:
		s, column = &models.Processing{}, "processing_id"
	case StageScan:
		s, column = &models.Scan{}, "scan_id"
	case StageIndexing:
		s, column = &models.Indexing{}, "indexing_id"
	default:
		return nil, invalidInput("unknown stage %q", kind)
	}
	err := r.db.Where(column+" = ?", id).First(s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(string(kind), id)
	}
	if err != nil {
		return nil, toRepositoryError(err, string(kind))
	}
	return s, nil
}
