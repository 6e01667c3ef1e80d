package workflow

import (
	"regexp"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
)

var agencyCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// CheckFolder validates the identity fields of a folder
func CheckFolder(f *models.Folder) error {
	if f.Radical != "" && len(f.Radical) < 3 {
		return reject(CodeConstraint, "radical must contain at least 3 characters")
	}
	if err := checkAgencyCode(f.AgencyCode); err != nil {
		return err
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return reject(CodeConstraint, "unknown folder kind %q", f.Kind)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return reject(CodeConstraint, "unknown priority %q", f.Priority)
	}
	return nil
}

func checkAgencyCode(code string) error {
	if code == "" {
		return nil
	}
	if len(code) < 2 {
		return reject(CodeConstraint, "agency code must contain at least 2 characters")
	}
	if !agencyCodePattern.MatchString(code) {
		return reject(CodeConstraint, "agency code may only contain letters, digits, '-' and '_'")
	}
	return nil
}

func expectFolder(f *models.Folder, want models.FolderState, action string) error {
	if f.State != want {
		return reject(CodeInvalidState, "cannot %s folder %s: folder is in %s, expected %s",
			action, f.Number, f.State.Label(), want.Label())
	}
	return nil
}

// StartProcessing moves a received folder into physical processing
func StartProcessing(f *models.Folder, now time.Time) error {
	if err := expectFolder(f, models.FolderReceived, "start processing of"); err != nil {
		return err
	}
	if f.IntakeID == "" {
		return reject(CodeInvalidState, "folder %s has no intake", f.Number)
	}
	f.State = models.FolderProcessing
	f.ProcessingStartedAt = &now
	return nil
}

// CompleteProcessing moves a folder to transfer once its processing record is finished
func CompleteProcessing(f *models.Folder, p *models.Processing, now time.Time) error {
	if err := expectFolder(f, models.FolderProcessing, "complete processing of"); err != nil {
		return err
	}
	if p == nil || !p.State.Finished() {
		return reject(CodeInvalidState, "folder %s has no completed processing record", f.Number)
	}
	var fields []string
	if f.Radical == "" {
		fields = append(fields, "radical")
	}
	if f.AgencyCode == "" {
		fields = append(fields, "agency_code")
	}
	if len(fields) > 0 {
		return missing("cannot complete processing of folder "+f.Number, fields)
	}
	f.State = models.FolderTransfer
	f.ProcessingEndedAt = &now
	return nil
}

// ValidateTransfer hands a folder over to scanning
func ValidateTransfer(f *models.Folder, stockManagerID string, now time.Time) error {
	if err := expectFolder(f, models.FolderTransfer, "validate transfer of"); err != nil {
		return err
	}
	f.State = models.FolderScanning
	f.TransferredAt = &now
	if stockManagerID != "" {
		f.StockManagerID = &stockManagerID
	}
	return nil
}

// CompleteScanning moves a folder to indexing once its scan record is finished
func CompleteScanning(f *models.Folder, s *models.Scan, now time.Time) error {
	if err := expectFolder(f, models.FolderScanning, "complete scanning of"); err != nil {
		return err
	}
	if s == nil || !s.State.Finished() {
		return reject(CodeInvalidState, "folder %s has no completed scan record", f.Number)
	}
	var fields []string
	if f.Kind == "" {
		fields = append(fields, "kind")
	}
	if f.CartonNumber == "" {
		fields = append(fields, "carton_number")
	}
	if len(fields) > 0 {
		return missing("cannot complete scanning of folder "+f.Number, fields)
	}
	f.State = models.FolderIndexing
	f.ScanEndedAt = &now
	return nil
}

// CompleteIndexing moves a folder to delivery. indexCount is the number of index records it owns.
func CompleteIndexing(f *models.Folder, indexCount int, now time.Time) error {
	if err := expectFolder(f, models.FolderIndexing, "complete indexing of"); err != nil {
		return err
	}
	if indexCount < 1 {
		return reject(CodeInvalidState, "folder %s has no index record", f.Number)
	}
	f.State = models.FolderDelivery
	f.IndexingEndedAt = &now
	return nil
}

// MarkDelivered stamps a folder as handed over within the given delivery
func MarkDelivered(f *models.Folder, deliveryID string, at time.Time) error {
	if err := expectFolder(f, models.FolderDelivery, "deliver"); err != nil {
		return err
	}
	if deliveryID == "" {
		return reject(CodeInvalidState, "folder %s has no delivery record", f.Number)
	}
	f.State = models.FolderDelivered
	f.DeliveryID = &deliveryID
	f.DeliveredAt = &at
	return nil
}

// StepBack returns a folder to the previous pipeline state. Timestamps stay untouched.
func StepBack(f *models.Folder) (models.FolderState, error) {
	pos := f.State.Position()
	if pos <= 0 {
		return f.State, reject(CodeInvalidState, "folder %s is already at the first stage", f.Number)
	}
	f.State = models.FolderPipeline[pos-1]
	return f.State, nil
}

// NextGroup is the role group to notify once a folder enters state
func NextGroup(state models.FolderState) (models.Group, bool) {
	switch state {
	case models.FolderProcessing:
		return models.GroupProcessingAgent, true
	case models.FolderTransfer:
		return models.GroupStockManager, true
	case models.FolderScanning:
		return models.GroupScanOperator, true
	case models.FolderIndexing:
		return models.GroupIndexingAgent, true
	case models.FolderDelivery:
		return models.GroupArchivist, true
	}
	return "", false
}
