package repository

import (
	"fmt"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/workflow"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartonInput struct {
	Number   string            `json:"number"`
	Kind     models.FolderKind `json:"kind"`
	Capacity int               `json:"capacity"`
	Priority models.Priority   `json:"priority"`
	Location string            `json:"location"`
	Notes    string            `json:"notes"`
}

// CreateCarton opens an empty carton. The number is allocated when not given.
func (r *Repository) CreateCarton(in CartonInput, operatorID string) (*models.Carton, *RepositoryError) {
	carton := models.Carton{
		ID:         uuid.NewString(),
		Number:     in.Number,
		Kind:       in.Kind,
		Capacity:   in.Capacity,
		State:      models.CartonOpen,
		Priority:   in.Priority,
		OperatorID: optional(operatorID),
		Location:   in.Location,
		Notes:      in.Notes,
	}
	if carton.Capacity == 0 {
		carton.Capacity = r.cartonCapacity
	}
	if carton.Priority == "" {
		carton.Priority = models.PriorityNormal
	}

	repoErr := r.inTx("Carton", func(tx *gorm.DB, out *outbox) error {
		if err := workflow.CheckCapacity(carton.Capacity); err != nil {
			return err
		}
		if carton.Kind != "" && !carton.Kind.Valid() {
			return invalidInput("unknown folder kind %q", carton.Kind)
		}
		if carton.Number == "" {
			number, err := r.nextNumber(tx, seqCarton, &models.Carton{})
			if err != nil {
				return err
			}
			carton.Number = number
		}
		if err := tx.Omit(clause.Associations).Create(&carton).Error; err != nil {
			return err
		}
		out.post(entityCarton, carton.ID, operatorID, fmt.Sprintf("carton %s opened, capacity %d", carton.Number, carton.Capacity))
		return nil
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return &carton, nil
}

func (r *Repository) GetCarton(id string) (*models.Carton, *RepositoryError) {
	var carton models.Carton
	err := r.db.Preload("Folders", func(db *gorm.DB) *gorm.DB {
		return db.Order("number")
	}).Where("carton_id = ?", id).First(&carton).Error
	if err != nil {
		return nil, toRepositoryError(err, "Carton")
	}
	carton.FolderCount = len(carton.Folders)
	return &carton, nil
}

func (r *Repository) ListCartons(state models.CartonState) ([]models.Carton, *RepositoryError) {
	var cartons []models.Carton
	q := r.db.Order("number")
	if state != "" {
		q = q.Where("state = ?", state)
	}
	if err := q.Find(&cartons).Error; err != nil {
		return nil, toRepositoryError(err, "Carton")
	}
	return cartons, nil
}

func (r *Repository) cartonOp(id string, fn func(tx *gorm.DB, out *outbox, c *models.Carton) error) (*models.Carton, *RepositoryError) {
	repoErr := r.inTx("Carton", func(tx *gorm.DB, out *outbox) error {
		c, err := lockByID[models.Carton](tx, "carton_id", id, "Carton")
		if err != nil {
			return err
		}
		var members int64
		if err := tx.Model(&models.Folder{}).Where("carton_id = ?", c.ID).Count(&members).Error; err != nil {
			return err
		}
		workflow.SyncFolderCount(c, int(members))
		if err := fn(tx, out, c); err != nil {
			return err
		}
		return save(tx, c)
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return r.GetCarton(id)
}

func (r *Repository) AddFolderToCarton(cartonID, folderID, operatorID string) (*models.Carton, *RepositoryError) {
	return r.cartonOp(cartonID, func(tx *gorm.DB, out *outbox, c *models.Carton) error {
		f, err := lockByID[models.Folder](tx, "folder_id", folderID, "Folder")
		if err != nil {
			return err
		}
		if err := workflow.AddToCarton(c, f); err != nil {
			return err
		}
		if err := save(tx, f); err != nil {
			return err
		}
		out.post(entityCarton, c.ID, operatorID, fmt.Sprintf("folder %s added (%d/%d)", f.Number, c.FolderCount, c.Capacity))
		return nil
	})
}

func (r *Repository) RemoveFolderFromCarton(cartonID, folderID, operatorID string) (*models.Carton, *RepositoryError) {
	return r.cartonOp(cartonID, func(tx *gorm.DB, out *outbox, c *models.Carton) error {
		f, err := lockByID[models.Folder](tx, "folder_id", folderID, "Folder")
		if err != nil {
			return err
		}
		if err := workflow.RemoveFromCarton(c, f); err != nil {
			return err
		}
		if err := save(tx, f); err != nil {
			return err
		}
		out.post(entityCarton, c.ID, operatorID, fmt.Sprintf("folder %s removed", f.Number))
		return nil
	})
}

// CloseCarton seals a carton and validates the transfer of every member still in transfer
func (r *Repository) CloseCarton(id, operatorID string) (*models.Carton, *RepositoryError) {
	return r.cartonOp(id, func(tx *gorm.DB, out *outbox, c *models.Carton) error {
		if err := workflow.CloseCarton(c); err != nil {
			return err
		}
		var members []models.Folder
		if err := forUpdate(tx).Where("carton_id = ?", c.ID).Order("number").Find(&members).Error; err != nil {
			return err
		}
		transferred := 0
		for i := range members {
			f := &members[i]
			if f.State != models.FolderTransfer {
				continue
			}
			if err := r.transition(tx, out, f, operatorID, func() error {
				return workflow.ValidateTransfer(f, operatorID, r.now())
			}); err != nil {
				return err
			}
			transferred++
		}
		out.post(entityCarton, c.ID, operatorID, fmt.Sprintf("closed, %d folders handed to scanning", transferred))
		r.logger.Info("Carton closed", "carton", c.Number, "folders", c.FolderCount, "transferred", transferred)
		return nil
	})
}

func (r *Repository) StartCartonScan(id, operatorID string) (*models.Carton, *RepositoryError) {
	return r.cartonOp(id, func(tx *gorm.DB, out *outbox, c *models.Carton) error {
		if err := workflow.StartCartonScan(c, r.now()); err != nil {
			return err
		}
		out.post(entityCarton, c.ID, operatorID, "scanning started")
		return nil
	})
}

func (r *Repository) FinishCartonScan(id, operatorID string) (*models.Carton, *RepositoryError) {
	return r.cartonOp(id, func(tx *gorm.DB, out *outbox, c *models.Carton) error {
		if err := workflow.FinishCartonScan(c, r.now()); err != nil {
			return err
		}
		out.post(entityCarton, c.ID, operatorID, fmt.Sprintf("scanning finished in %.0f min", c.ScanMinutes()))
		return nil
	})
}

// IncrementCartonNumber renumbers an open empty carton, e.g. when its label was already used
func (r *Repository) IncrementCartonNumber(id, operatorID string) (*models.Carton, *RepositoryError) {
	return r.cartonOp(id, func(tx *gorm.DB, out *outbox, c *models.Carton) error {
		previous := c.Number
		if err := workflow.IncrementCartonNumber(c); err != nil {
			return err
		}
		out.post(entityCarton, c.ID, operatorID, fmt.Sprintf("renumbered %s -> %s", previous, c.Number))
		return nil
	})
}
