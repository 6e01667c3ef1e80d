package repository

import (
	"fmt"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/workflow"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IntakeInput describes a reception batch. AutoValidate and StartProcessing
// chain the validation and the processing start into the same transaction.
type IntakeInput struct {
	Number        string          `json:"number"`
	ReceivedAt    time.Time       `json:"received_at"`
	ArrivedAt     *time.Time      `json:"arrived_at"`
	Courier       string          `json:"courier"`
	DeliverySlip  string          `json:"delivery_slip"`
	FolderType    string          `json:"folder_type"`
	DeclaredCount int             `json:"declared_count"`
	Priority      models.Priority `json:"priority"`
	Notes         string          `json:"notes"`
	Anomalies     string          `json:"anomalies"`

	CountChecked        bool `json:"count_checked"`
	ConditionChecked    bool `json:"condition_checked"`
	CompletenessChecked bool `json:"completeness_checked"`
	SlipChecked         bool `json:"slip_checked"`
	SignatureChecked    bool `json:"signature_checked"`

	AutoValidate    bool `json:"auto_validate"`
	StartProcessing bool `json:"start_processing"`
}

func (r *Repository) CreateIntake(in IntakeInput, archivistID string) (*models.Intake, *RepositoryError) {
	now := r.now()
	intake := models.Intake{
		ID:                  uuid.NewString(),
		Number:              in.Number,
		ReceivedAt:          in.ReceivedAt,
		ArrivedAt:           in.ArrivedAt,
		Courier:             in.Courier,
		DeliverySlip:        in.DeliverySlip,
		FolderType:          in.FolderType,
		DeclaredCount:       in.DeclaredCount,
		State:               models.IntakeDraft,
		ArchivistID:         optional(archivistID),
		CountChecked:        in.CountChecked,
		ConditionChecked:    in.ConditionChecked,
		CompletenessChecked: in.CompletenessChecked,
		SlipChecked:         in.SlipChecked,
		SignatureChecked:    in.SignatureChecked,
		Notes:               in.Notes,
		Anomalies:           in.Anomalies,
	}
	if intake.ReceivedAt.IsZero() {
		intake.ReceivedAt = now
	}
	if intake.FolderType == "" {
		intake.FolderType = string(models.KindLoan)
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	repoErr := r.inTx("Intake", func(tx *gorm.DB, out *outbox) error {
		if err := workflow.CheckIntake(&intake, now); err != nil {
			return err
		}
		if intake.Number == "" {
			number, err := r.nextNumber(tx, seqIntake, &models.Intake{})
			if err != nil {
				return err
			}
			intake.Number = number
		}
		if err := tx.Omit(clause.Associations).Create(&intake).Error; err != nil {
			return err
		}
		out.post(entityIntake, intake.ID, archivistID, fmt.Sprintf("intake %s received with %d folders declared", intake.Number, intake.DeclaredCount))

		if !in.AutoValidate && !in.StartProcessing {
			return nil
		}
		if err := r.validateIntake(tx, out, &intake, priority, archivistID); err != nil {
			return err
		}
		if in.StartProcessing {
			return r.startIntake(tx, out, &intake, archivistID)
		}
		return nil
	})
	if repoErr != nil {
		return nil, repoErr
	}
	r.logger.Info("Intake created", "intake", intake.Number, "declared", intake.DeclaredCount, "state", intake.State)
	return r.GetIntake(intake.ID)
}

func (r *Repository) GetIntake(id string) (*models.Intake, *RepositoryError) {
	var intake models.Intake
	err := r.db.Preload("Folders", func(db *gorm.DB) *gorm.DB {
		return db.Order("number")
	}).Where("intake_id = ?", id).First(&intake).Error
	if err != nil {
		return nil, toRepositoryError(err, "Intake")
	}
	return &intake, nil
}

func (r *Repository) ListIntakes(state models.IntakeState) ([]models.Intake, *RepositoryError) {
	var intakes []models.Intake
	q := r.db.Order("received_at DESC")
	if state != "" {
		q = q.Where("state = ?", state)
	}
	if err := q.Find(&intakes).Error; err != nil {
		return nil, toRepositoryError(err, "Intake")
	}
	return intakes, nil
}

func (r *Repository) intakeOp(id string, fn func(tx *gorm.DB, out *outbox, in *models.Intake) error) (*models.Intake, *RepositoryError) {
	repoErr := r.inTx("Intake", func(tx *gorm.DB, out *outbox) error {
		intake, err := lockByID[models.Intake](tx, "intake_id", id, "Intake")
		if err != nil {
			return err
		}
		return fn(tx, out, intake)
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return r.GetIntake(id)
}

func intakeFolders(tx *gorm.DB, intakeID string) ([]models.Folder, error) {
	var folders []models.Folder
	err := forUpdate(tx).Where("intake_id = ?", intakeID).Order("number").Find(&folders).Error
	return folders, err
}

// ValidateIntake accepts a draft intake and creates its declared folders
func (r *Repository) ValidateIntake(id, operatorID string) (*models.Intake, *RepositoryError) {
	return r.intakeOp(id, func(tx *gorm.DB, out *outbox, in *models.Intake) error {
		return r.validateIntake(tx, out, in, models.PriorityNormal, operatorID)
	})
}

func (r *Repository) validateIntake(tx *gorm.DB, out *outbox, in *models.Intake, priority models.Priority, operatorID string) error {
	if err := workflow.ValidateIntake(in); err != nil {
		return err
	}
	// folders left over from a previous validation are replaced
	previous, err := intakeFolders(tx, in.ID)
	if err != nil {
		return err
	}
	if err := r.checkReplaceable(tx, in, previous); err != nil {
		return err
	}
	if err := tx.Where("intake_id = ?", in.ID).Delete(&models.Folder{}).Error; err != nil {
		return err
	}
	for range in.DeclaredCount {
		number, err := r.nextNumber(tx, seqFolder, &models.Folder{})
		if err != nil {
			return err
		}
		folder := models.Folder{
			ID:         uuid.NewString(),
			Number:     number,
			IntakeID:   in.ID,
			State:      models.FolderReceived,
			FolderType: in.FolderType,
			Priority:   priority,
			ReceivedAt: in.ReceivedAt,
		}
		if err := tx.Omit(clause.Associations).Create(&folder).Error; err != nil {
			return err
		}
	}
	if err := save(tx, in); err != nil {
		return err
	}
	out.post(entityIntake, in.ID, operatorID, fmt.Sprintf("validated, %d folders created", in.DeclaredCount))
	return nil
}

// StartIntake opens processing and moves every received folder of the intake to processing
func (r *Repository) StartIntake(id, operatorID string) (*models.Intake, *RepositoryError) {
	return r.intakeOp(id, func(tx *gorm.DB, out *outbox, in *models.Intake) error {
		return r.startIntake(tx, out, in, operatorID)
	})
}

func (r *Repository) startIntake(tx *gorm.DB, out *outbox, in *models.Intake, operatorID string) error {
	if err := workflow.StartIntake(in); err != nil {
		return err
	}
	if err := save(tx, in); err != nil {
		return err
	}
	folders, err := intakeFolders(tx, in.ID)
	if err != nil {
		return err
	}
	started := 0
	for i := range folders {
		f := &folders[i]
		if f.State != models.FolderReceived {
			continue
		}
		if err := r.transition(tx, out, f, operatorID, func() error {
			return workflow.StartProcessing(f, r.now())
		}); err != nil {
			return err
		}
		started++
	}
	out.post(entityIntake, in.ID, operatorID, fmt.Sprintf("processing started for %d folders", started))
	return nil
}

func (r *Repository) CompleteIntake(id, operatorID string) (*models.Intake, *RepositoryError) {
	return r.intakeOp(id, func(tx *gorm.DB, out *outbox, in *models.Intake) error {
		folders, err := intakeFolders(tx, in.ID)
		if err != nil {
			return err
		}
		if err := workflow.CompleteIntake(in, folders); err != nil {
			return err
		}
		now := r.now()
		in.CompletedAt = &now
		if err := save(tx, in); err != nil {
			return err
		}
		out.post(entityIntake, in.ID, operatorID, "completed")
		return nil
	})
}

func (r *Repository) CancelIntake(id, operatorID string) (*models.Intake, *RepositoryError) {
	return r.intakeOp(id, func(tx *gorm.DB, out *outbox, in *models.Intake) error {
		if err := workflow.CancelIntake(in); err != nil {
			return err
		}
		if err := save(tx, in); err != nil {
			return err
		}
		out.post(entityIntake, in.ID, operatorID, "cancelled")
		return nil
	})
}

// ResetIntake sends an intake back to draft while all its folders are still received
func (r *Repository) ResetIntake(id, operatorID string) (*models.Intake, *RepositoryError) {
	return r.intakeOp(id, func(tx *gorm.DB, out *outbox, in *models.Intake) error {
		folders, err := intakeFolders(tx, in.ID)
		if err != nil {
			return err
		}
		if err := workflow.ResetIntake(in, folders); err != nil {
			return err
		}
		if err := r.checkReplaceable(tx, in, folders); err != nil {
			return err
		}
		if err := save(tx, in); err != nil {
			return err
		}
		out.post(entityIntake, in.ID, operatorID, "returned to draft")
		return nil
	})
}

// checkReplaceable also looks at delivery batches the folders were put in
func (r *Repository) checkReplaceable(tx *gorm.DB, in *models.Intake, folders []models.Folder) error {
	if err := workflow.CheckReplaceable(in, folders); err != nil {
		return err
	}
	if len(folders) == 0 {
		return nil
	}
	ids := make([]string, len(folders))
	for i, f := range folders {
		ids[i] = f.ID
	}
	var linked int64
	if err := tx.Table("delivery_folders").Where("folder_id IN ?", ids).Count(&linked).Error; err != nil {
		return err
	}
	if linked > 0 {
		return invalidState("intake %s: %d folders belong to a delivery", in.Number, linked)
	}
	return nil
}

// checkIntakeCompletion completes an in-progress intake once its last folder is delivered
func (r *Repository) checkIntakeCompletion(tx *gorm.DB, out *outbox, intakeID string) error {
	in, err := lockByID[models.Intake](tx, "intake_id", intakeID, "Intake")
	if err != nil {
		return err
	}
	var folders []models.Folder
	if err := tx.Where("intake_id = ?", intakeID).Find(&folders).Error; err != nil {
		return err
	}
	if !workflow.AutoComplete(in, folders) {
		return nil
	}
	now := r.now()
	in.CompletedAt = &now
	if err := save(tx, in); err != nil {
		return err
	}
	out.post(entityIntake, in.ID, "", "completed, every folder delivered")
	out.notify(models.GroupArchivist,
		fmt.Sprintf("Intake %s completed", in.Number),
		fmt.Sprintf("All %d folders of intake %s have been delivered.", len(folders), in.Number),
		entityIntake, in.ID)
	r.logger.Info("Intake auto-completed", "intake", in.Number, "folders", len(folders))
	return nil
}
