package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/transport"
	"github.com/ahmadzakiakmal/dossierflow/workflow"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeliveryInput struct {
	Number         string                `json:"number"`
	Date           time.Time             `json:"date"`
	Method         models.DeliveryMethod `json:"method"`
	Recipient      string                `json:"recipient"`
	RecipientEmail string                `json:"recipient_email"`
	Notes          string                `json:"notes"`
	FolderIDs      []string              `json:"folder_ids"`
}

// DeliveryStatistics counts deliveries per state and per method
type DeliveryStatistics struct {
	Total    int64                           `json:"total"`
	ByState  map[models.DeliveryState]int64  `json:"by_state"`
	ByMethod map[models.DeliveryMethod]int64 `json:"by_method"`
}

func (r *Repository) CreateDelivery(in DeliveryInput, archivistID string) (*models.Delivery, *RepositoryError) {
	now := r.now()
	d := models.Delivery{
		ID:             uuid.NewString(),
		Number:         in.Number,
		Date:           in.Date,
		ArchivistID:    optional(archivistID),
		Method:         in.Method,
		Recipient:      in.Recipient,
		RecipientEmail: in.RecipientEmail,
		Notes:          in.Notes,
	}
	if d.Date.IsZero() {
		d.Date = now
	}
	if d.Method == "" {
		d.Method = models.MethodSecureShare
	}
	if d.Recipient == "" {
		d.Recipient = r.defaultRecipient
	}

	repoErr := r.inTx("Delivery", func(tx *gorm.DB, out *outbox) error {
		if err := workflow.NewDelivery(&d, now); err != nil {
			return err
		}
		if d.Number == "" {
			number, err := r.nextNumber(tx, seqDelivery, &models.Delivery{})
			if err != nil {
				return err
			}
			d.Number = number
		}
		if err := tx.Omit(clause.Associations).Create(&d).Error; err != nil {
			return err
		}
		if len(in.FolderIDs) > 0 {
			if err := replaceDeliveryFolders(tx, &d, in.FolderIDs); err != nil {
				return err
			}
		}
		out.post(entityDelivery, d.ID, archivistID, fmt.Sprintf("delivery %s created (%s)", d.Number, d.Method.Label()))
		return nil
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return r.GetDelivery(d.ID)
}

func (r *Repository) GetDelivery(id string) (*models.Delivery, *RepositoryError) {
	var d models.Delivery
	err := r.db.Preload("Folders", func(db *gorm.DB) *gorm.DB {
		return db.Order("number")
	}).Where("delivery_id = ?", id).First(&d).Error
	if err != nil {
		return nil, toRepositoryError(err, "Delivery")
	}
	return &d, nil
}

func (r *Repository) ListDeliveries(state models.DeliveryState) ([]models.Delivery, *RepositoryError) {
	var deliveries []models.Delivery
	q := r.db.Order("delivery_date DESC")
	if state != "" {
		q = q.Where("state = ?", state)
	}
	if err := q.Find(&deliveries).Error; err != nil {
		return nil, toRepositoryError(err, "Delivery")
	}
	return deliveries, nil
}

func replaceDeliveryFolders(tx *gorm.DB, d *models.Delivery, folderIDs []string) error {
	var folders []models.Folder
	if err := tx.Where("folder_id IN ?", folderIDs).Find(&folders).Error; err != nil {
		return err
	}
	if len(folders) != len(folderIDs) {
		return invalidInput("delivery %s: %d of %d folders exist", d.Number, len(folders), len(folderIDs))
	}
	return tx.Model(d).Association("Folders").Replace(folders)
}

// deliveryFolders loads and locks the member folders of a delivery
func deliveryFolders(tx *gorm.DB, deliveryID string) ([]models.Folder, error) {
	var folders []models.Folder
	err := forUpdate(tx).
		Joins("JOIN delivery_folders ON delivery_folders.folder_id = folders.folder_id").
		Where("delivery_folders.delivery_id = ?", deliveryID).
		Order("folders.number").
		Find(&folders).Error
	return folders, err
}

func (r *Repository) deliveryOp(id, operatorID string, fn func(tx *gorm.DB, out *outbox, d *models.Delivery) error) (*models.Delivery, *RepositoryError) {
	repoErr := r.inTx("Delivery", func(tx *gorm.DB, out *outbox) error {
		d, err := lockByID[models.Delivery](tx, "delivery_id", id, "Delivery")
		if err != nil {
			return err
		}
		from := d.State
		if err := fn(tx, out, d); err != nil {
			return err
		}
		if err := save(tx, d); err != nil {
			return err
		}
		if d.State != from {
			out.post(entityDelivery, d.ID, operatorID, fmt.Sprintf("%s -> %s", from.Label(), d.State.Label()))
		}
		return nil
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return r.GetDelivery(id)
}

// SetDeliveryFolders replaces the member folders of a delivery still being prepared
func (r *Repository) SetDeliveryFolders(id string, folderIDs []string, operatorID string) (*models.Delivery, *RepositoryError) {
	return r.deliveryOp(id, operatorID, func(tx *gorm.DB, out *outbox, d *models.Delivery) error {
		if d.State != models.DeliveryPreparing {
			return &RepositoryError{
				Code:    workflow.CodeInvalidState,
				Message: fmt.Sprintf("delivery %s is %s, folders can only change while preparing", d.Number, d.State.Label()),
			}
		}
		if err := replaceDeliveryFolders(tx, d, folderIDs); err != nil {
			return err
		}
		out.post(entityDelivery, d.ID, operatorID, fmt.Sprintf("%d folders attached", len(folderIDs)))
		return nil
	})
}

func (r *Repository) PrepareDelivery(id, operatorID string) (*models.Delivery, *RepositoryError) {
	return r.deliveryOp(id, operatorID, func(tx *gorm.DB, out *outbox, d *models.Delivery) error {
		folders, err := deliveryFolders(tx, d.ID)
		if err != nil {
			return err
		}
		return workflow.PrepareDelivery(d, folders, r.now())
	})
}

func (r *Repository) SetDeliveryVerifications(id string, v workflow.Verifications, operatorID string) (*models.Delivery, *RepositoryError) {
	return r.deliveryOp(id, operatorID, func(tx *gorm.DB, out *outbox, d *models.Delivery) error {
		return workflow.SetVerifications(d, v)
	})
}

func (r *Repository) VerifyAllDelivery(id, operatorID string) (*models.Delivery, *RepositoryError) {
	return r.deliveryOp(id, operatorID, func(tx *gorm.DB, out *outbox, d *models.Delivery) error {
		return workflow.VerifyAll(d, r.now())
	})
}

func (r *Repository) MarkDeliveryReady(id, operatorID string) (*models.Delivery, *RepositoryError) {
	return r.deliveryOp(id, operatorID, func(tx *gorm.DB, out *outbox, d *models.Delivery) error {
		if err := workflow.MarkReady(d, r.now()); err != nil {
			return err
		}
		out.notify(models.GroupArchivist,
			fmt.Sprintf("Delivery %s ready", d.Number),
			fmt.Sprintf("Delivery %s to %s is verified and ready to send.", d.Number, d.Recipient),
			entityDelivery, d.ID)
		return nil
	})
}

// buildPackage assembles the manifest of a delivery from its folders and their index entries
func buildPackage(tx *gorm.DB, d *models.Delivery, folders []models.Folder, now time.Time) (transport.Package, error) {
	ids := make([]string, len(folders))
	for i, f := range folders {
		ids[i] = f.ID
	}
	var indexings []models.Indexing
	if len(ids) > 0 {
		if err := tx.Where("folder_id IN ?", ids).Order("created_at").Find(&indexings).Error; err != nil {
			return transport.Package{}, err
		}
	}
	documents := make(map[string][]transport.ManifestDocument)
	for _, ix := range indexings {
		documents[ix.FolderID] = append(documents[ix.FolderID], transport.ManifestDocument{
			Title:           ix.Title,
			Type:            string(ix.DocumentType),
			Confidentiality: string(ix.Confidentiality),
			Pages:           ix.Pages,
			FilePath:        ix.FilePath,
		})
	}

	manifest := transport.Manifest{
		DeliveryNumber: d.Number,
		Recipient:      d.Recipient,
		GeneratedAt:    now,
	}
	for _, f := range folders {
		manifest.TotalPieces += f.PieceCount
		manifest.Folders = append(manifest.Folders, transport.ManifestFolder{
			Number:       f.Number,
			Radical:      f.Radical,
			AgencyCode:   f.AgencyCode,
			Kind:         string(f.Kind),
			CartonNumber: f.CartonNumber,
			Pieces:       f.PieceCount,
			Documents:    documents[f.ID],
		})
	}
	manifest.EstimatedMB = float64(manifest.TotalPieces) * models.MegabytesPerPiece

	return transport.Package{
		Number:         d.Number,
		Recipient:      d.Recipient,
		RecipientEmail: d.RecipientEmail,
		Manifest:       manifest,
	}, nil
}

// SendDelivery transmits a ready delivery. The transport runs between two
// transactions: the batch is marked sending first, then delivered or in error.
func (r *Repository) SendDelivery(ctx context.Context, id, operatorID string) (*models.Delivery, *RepositoryError) {
	var (
		pkg    transport.Package
		method models.DeliveryMethod
	)
	_, repoErr := r.deliveryOp(id, operatorID, func(tx *gorm.DB, out *outbox, d *models.Delivery) error {
		folders, err := deliveryFolders(tx, d.ID)
		if err != nil {
			return err
		}
		if err := workflow.BeginSend(d, folders, r.now()); err != nil {
			return err
		}
		pkg, err = buildPackage(tx, d, folders, r.now())
		method = d.Method
		return err
	})
	if repoErr != nil {
		return nil, repoErr
	}

	receipt, sendErr := r.dispatch(ctx, method, pkg)
	if sendErr != nil {
		return nil, r.failSend(id, pkg.Number, operatorID, sendErr.Error())
	}

	d, repoErr := r.completeSend(id, operatorID, receipt)
	if repoErr != nil {
		r.logger.Error("Delivery sent but not recorded", "delivery", pkg.Number, "err", repoErr)
		return nil, r.failSend(id, pkg.Number, operatorID, "sent but not recorded: "+repoErr.Message)
	}
	return d, nil
}

// failSend moves a sending batch to error with the reason stored
func (r *Repository) failSend(id, number, operatorID, reason string) *RepositoryError {
	_, failErr := r.deliveryOp(id, operatorID, func(tx *gorm.DB, out *outbox, d *models.Delivery) error {
		if err := workflow.FailSend(d, reason, r.now()); err != nil {
			return err
		}
		out.notify(models.GroupArchivist,
			fmt.Sprintf("Delivery %s failed", d.Number),
			fmt.Sprintf("Sending delivery %s by %s failed: %s", d.Number, d.Method.Label(), reason),
			entityDelivery, d.ID)
		return nil
	})
	if failErr != nil {
		r.logger.Error("Failed to record delivery failure", "delivery", id, "err", failErr)
	}
	return &RepositoryError{
		Code:    ErrCodeDeliveryFailed,
		Message: fmt.Sprintf("Delivery %s could not be sent", number),
		Detail:  reason,
	}
}

func (r *Repository) completeSend(id, operatorID string, receipt *transport.Receipt) (*models.Delivery, *RepositoryError) {
	return r.deliveryOp(id, operatorID, func(tx *gorm.DB, out *outbox, d *models.Delivery) error {
		folders, err := deliveryFolders(tx, d.ID)
		if err != nil {
			return err
		}
		now := r.now()
		if err := workflow.CompleteSend(d, folders, now); err != nil {
			return err
		}
		intakes := make(map[string]bool)
		for i := range folders {
			f := &folders[i]
			if err := save(tx, f); err != nil {
				return err
			}
			out.post(entityFolder, f.ID, operatorID, fmt.Sprintf("delivered with %s", d.Number))
			intakes[f.IntakeID] = true
		}
		for intakeID := range intakes {
			if err := r.checkIntakeCompletion(tx, out, intakeID); err != nil {
				return err
			}
		}
		if receipt != nil {
			d.SharePath = receipt.SharePath
			d.ShareURL = receipt.URL
			d.SharePassword = receipt.Password
			d.ShareExpires = receipt.ExpiresAt
		}
		if d.RecipientEmail != "" {
			d.NotifiedAt = &now
		}
		out.notify(models.GroupArchivist,
			fmt.Sprintf("Delivery %s sent", d.Number),
			fmt.Sprintf("%d folders delivered to %s by %s.", len(folders), d.Recipient, d.Method.Label()),
			entityDelivery, d.ID)
		r.logger.Info("Delivery sent", "delivery", d.Number, "method", d.Method, "folders", len(folders))
		return nil
	})
}

func (r *Repository) dispatch(ctx context.Context, method models.DeliveryMethod, pkg transport.Package) (*transport.Receipt, error) {
	if r.dispatcher == nil {
		return nil, fmt.Errorf("%w: %s", transport.ErrNoTransport, method)
	}
	return r.dispatcher.Dispatch(ctx, method, pkg)
}

func (r *Repository) ConfirmDelivery(id, operatorID string) (*models.Delivery, *RepositoryError) {
	return r.deliveryOp(id, operatorID, func(tx *gorm.DB, out *outbox, d *models.Delivery) error {
		return workflow.ConfirmDelivery(d, r.now())
	})
}

func (r *Repository) ReportDeliveryError(id, reason, operatorID string) (*models.Delivery, *RepositoryError) {
	return r.deliveryOp(id, operatorID, func(tx *gorm.DB, out *outbox, d *models.Delivery) error {
		if err := workflow.ReportDeliveryError(d, reason, r.now()); err != nil {
			return err
		}
		out.notify(models.GroupArchivist,
			fmt.Sprintf("Delivery %s in error", d.Number),
			fmt.Sprintf("Delivery %s was flagged: %s", d.Number, d.Problems),
			entityDelivery, d.ID)
		return nil
	})
}

func (r *Repository) RelaunchDelivery(id, operatorID string) (*models.Delivery, *RepositoryError) {
	return r.deliveryOp(id, operatorID, func(tx *gorm.DB, out *outbox, d *models.Delivery) error {
		return workflow.RelaunchDelivery(d, r.now())
	})
}

func (r *Repository) DeliveryStatistics() (*DeliveryStatistics, *RepositoryError) {
	type row struct {
		Name  string
		Count int64
	}
	stats := &DeliveryStatistics{
		ByState:  make(map[models.DeliveryState]int64),
		ByMethod: make(map[models.DeliveryMethod]int64),
	}

	var byState, byMethod []row
	if err := r.db.Model(&models.Delivery{}).Select("state AS name, COUNT(*) AS count").Group("state").Scan(&byState).Error; err != nil {
		return nil, toRepositoryError(err, "Delivery")
	}
	if err := r.db.Model(&models.Delivery{}).Select("method AS name, COUNT(*) AS count").Group("method").Scan(&byMethod).Error; err != nil {
		return nil, toRepositoryError(err, "Delivery")
	}
	for _, rw := range byState {
		stats.ByState[models.DeliveryState(rw.Name)] = rw.Count
		stats.Total += rw.Count
	}
	for _, rw := range byMethod {
		stats.ByMethod[models.DeliveryMethod(rw.Name)] = rw.Count
	}
	return stats, nil
}

