package repository

import (
	"errors"
	"fmt"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/workflow"
	"gorm.io/gorm"
)

const (
	entityIntake     = "intake"
	entityFolder     = "folder"
	entityProcessing = "processing"
	entityScan       = "scan"
	entityIndexing   = "indexing"
	entityCarton     = "carton"
	entityDelivery   = "delivery"
)

// FolderFilter narrows ListFolders. Empty fields match everything.
type FolderFilter struct {
	State    models.FolderState
	IntakeID string
	CartonID string
}

// FolderPatch carries the editable identity fields of a folder
type FolderPatch struct {
	Kind       *models.FolderKind `json:"kind"`
	Priority   *models.Priority   `json:"priority"`
	Radical    *string            `json:"radical"`
	AgencyCode *string            `json:"agency_code"`
	Notes      *string            `json:"notes"`
}

// transition applies a forward move to f, saves it and queues the journal
// entry and the notification of the next role group.
func (r *Repository) transition(tx *gorm.DB, out *outbox, f *models.Folder, operatorID string, move func() error) error {
	from := f.State
	if err := move(); err != nil {
		return err
	}
	if err := save(tx, f); err != nil {
		return err
	}
	out.post(entityFolder, f.ID, operatorID, fmt.Sprintf("%s -> %s", from.Label(), f.State.Label()))
	if group, ok := workflow.NextGroup(f.State); ok {
		out.notify(group,
			fmt.Sprintf("Folder %s: %s", f.Number, f.State.Label()),
			fmt.Sprintf("Folder %s is waiting in %s.", f.DisplayName(), f.State.Label()),
			entityFolder, f.ID)
	}
	if f.State == models.FolderDelivered {
		return r.checkIntakeCompletion(tx, out, f.IntakeID)
	}
	return nil
}

func (r *Repository) folderOp(id, operatorID string, fn func(tx *gorm.DB, out *outbox, f *models.Folder) error) (*models.Folder, *RepositoryError) {
	var folder *models.Folder
	repoErr := r.inTx("Folder", func(tx *gorm.DB, out *outbox) error {
		f, err := lockByID[models.Folder](tx, "folder_id", id, "Folder")
		if err != nil {
			return err
		}
		if err := fn(tx, out, f); err != nil {
			return err
		}
		folder = f
		return nil
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return folder, nil
}

func firstOrNil[T any](tx *gorm.DB, query string, args ...any) (*T, error) {
	var v T
	err := tx.Where(query, args...).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repository) GetFolder(id string) (*models.Folder, *RepositoryError) {
	var f models.Folder
	err := r.db.Preload("Processing").Preload("Scan").Preload("Indexings").
		Where("folder_id = ?", id).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Folder", id)
		}
		return nil, toRepositoryError(err, "Folder")
	}
	return &f, nil
}

func (r *Repository) ListFolders(filter FolderFilter) ([]models.Folder, *RepositoryError) {
	var folders []models.Folder
	q := r.db.Order("number")
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if filter.IntakeID != "" {
		q = q.Where("intake_id = ?", filter.IntakeID)
	}
	if filter.CartonID != "" {
		q = q.Where("carton_id = ?", filter.CartonID)
	}
	if err := q.Find(&folders).Error; err != nil {
		return nil, toRepositoryError(err, "Folder")
	}
	return folders, nil
}

// UpdateFolder edits the identity fields of a folder
func (r *Repository) UpdateFolder(id string, patch FolderPatch) (*models.Folder, *RepositoryError) {
	return r.folderOp(id, "", func(tx *gorm.DB, _ *outbox, f *models.Folder) error {
		if patch.Kind != nil {
			f.Kind = *patch.Kind
		}
		if patch.Priority != nil {
			f.Priority = *patch.Priority
		}
		if patch.Radical != nil {
			f.Radical = *patch.Radical
		}
		if patch.AgencyCode != nil {
			f.AgencyCode = *patch.AgencyCode
		}
		if patch.Notes != nil {
			f.Notes = *patch.Notes
		}
		if err := workflow.CheckFolder(f); err != nil {
			return err
		}
		return save(tx, f)
	})
}

func (r *Repository) StartFolderProcessing(id, operatorID string) (*models.Folder, *RepositoryError) {
	return r.folderOp(id, operatorID, func(tx *gorm.DB, out *outbox, f *models.Folder) error {
		return r.transition(tx, out, f, operatorID, func() error {
			return workflow.StartProcessing(f, r.now())
		})
	})
}

func (r *Repository) CompleteFolderProcessing(id, operatorID string) (*models.Folder, *RepositoryError) {
	return r.folderOp(id, operatorID, func(tx *gorm.DB, out *outbox, f *models.Folder) error {
		p, err := firstOrNil[models.Processing](tx, "folder_id = ?", f.ID)
		if err != nil {
			return err
		}
		return r.transition(tx, out, f, operatorID, func() error {
			return workflow.CompleteProcessing(f, p, r.now())
		})
	})
}

func (r *Repository) ValidateFolderTransfer(id, operatorID string) (*models.Folder, *RepositoryError) {
	return r.folderOp(id, operatorID, func(tx *gorm.DB, out *outbox, f *models.Folder) error {
		return r.transition(tx, out, f, operatorID, func() error {
			return workflow.ValidateTransfer(f, operatorID, r.now())
		})
	})
}

func (r *Repository) CompleteFolderScanning(id, operatorID string) (*models.Folder, *RepositoryError) {
	return r.folderOp(id, operatorID, func(tx *gorm.DB, out *outbox, f *models.Folder) error {
		s, err := firstOrNil[models.Scan](tx, "folder_id = ?", f.ID)
		if err != nil {
			return err
		}
		return r.transition(tx, out, f, operatorID, func() error {
			return workflow.CompleteScanning(f, s, r.now())
		})
	})
}

func (r *Repository) CompleteFolderIndexing(id, operatorID string) (*models.Folder, *RepositoryError) {
	return r.folderOp(id, operatorID, func(tx *gorm.DB, out *outbox, f *models.Folder) error {
		var count int64
		if err := tx.Model(&models.Indexing{}).Where("folder_id = ?", f.ID).Count(&count).Error; err != nil {
			return err
		}
		return r.transition(tx, out, f, operatorID, func() error {
			return workflow.CompleteIndexing(f, int(count), r.now())
		})
	})
}

// DeliverFolder marks a single folder delivered under an existing delivery record
func (r *Repository) DeliverFolder(id, deliveryID, operatorID string) (*models.Folder, *RepositoryError) {
	return r.folderOp(id, operatorID, func(tx *gorm.DB, out *outbox, f *models.Folder) error {
		if deliveryID == "" {
			return workflow.MarkDelivered(f, "", r.now())
		}
		d, err := lockByID[models.Delivery](tx, "delivery_id", deliveryID, "Delivery")
		if err != nil {
			return err
		}
		if d.State != models.DeliveryDelivered && d.State != models.DeliveryConfirmed {
			return invalidState("delivery %s is %s and has not been sent", d.Number, d.State.Label())
		}
		var member int64
		err = tx.Table("delivery_folders").
			Where("delivery_id = ? AND folder_id = ?", d.ID, f.ID).
			Count(&member).Error
		if err != nil {
			return err
		}
		if member == 0 {
			return invalidState("folder %s is not part of delivery %s", f.Number, d.Number)
		}
		return r.transition(tx, out, f, operatorID, func() error {
			return workflow.MarkDelivered(f, deliveryID, r.now())
		})
	})
}

// StepBackFolder returns a folder to its previous stage
func (r *Repository) StepBackFolder(id, operatorID string) (*models.Folder, *RepositoryError) {
	return r.folderOp(id, operatorID, func(tx *gorm.DB, out *outbox, f *models.Folder) error {
		from := f.State
		var sending int64
		err := tx.Table("delivery_folders").
			Joins("JOIN deliveries ON deliveries.delivery_id = delivery_folders.delivery_id").
			Where("delivery_folders.folder_id = ? AND deliveries.state = ?", f.ID, models.DeliverySending).
			Count(&sending).Error
		if err != nil {
			return err
		}
		if sending > 0 {
			return invalidState("folder %s is being sent", f.Number)
		}
		if _, err := workflow.StepBack(f); err != nil {
			return err
		}
		if err := save(tx, f); err != nil {
			return err
		}
		out.post(entityFolder, f.ID, operatorID, fmt.Sprintf("stepped back: %s -> %s", from.Label(), f.State.Label()))
		r.logger.Info("Folder stepped back", "folder", f.Number, "from", from, "to", f.State, "operator", operatorID)
		return nil
	})
}

// refreshFolderMetrics recomputes the cached durations and counts of a folder from its stage records
func refreshFolderMetrics(tx *gorm.DB, f *models.Folder) error {
	p, err := firstOrNil[models.Processing](tx, "folder_id = ?", f.ID)
	if err != nil {
		return err
	}
	f.ProcessingMinutes = 0
	if p != nil {
		f.ProcessingMinutes = max(0, p.EffectiveMinutes())
	}

	s, err := firstOrNil[models.Scan](tx, "folder_id = ?", f.ID)
	if err != nil {
		return err
	}
	f.ScanMinutes, f.PieceCount = 0, 0
	if s != nil {
		f.ScanMinutes = max(0, s.EffectiveMinutes())
		f.PieceCount = s.Pieces
	}

	var indexings []models.Indexing
	if err := tx.Where("folder_id = ?", f.ID).Find(&indexings).Error; err != nil {
		return err
	}
	f.IndexingMinutes, f.IndexedDocuments = 0, 0
	for _, ix := range indexings {
		f.IndexingMinutes += max(0, ix.EffectiveMinutes())
		f.IndexedDocuments += ix.PiecesIndexed
	}
	return nil
}
