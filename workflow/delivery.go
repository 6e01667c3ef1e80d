package workflow

import (
	"strings"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
)

// Verifications carries the three delivery checks. Nil leaves a flag unchanged.
type Verifications struct {
	Completeness *bool `json:"completeness,omitempty"`
	Quality      *bool `json:"quality,omitempty"`
	Naming       *bool `json:"naming,omitempty"`
}

func moveDelivery(d *models.Delivery, to models.DeliveryState, now time.Time) {
	d.RecordTransition(d.State, to, now)
	d.State = to
}

func expectDelivery(d *models.Delivery, want models.DeliveryState, action string) error {
	if d.State != want {
		return reject(CodeInvalidState, "cannot %s delivery %s: it is %s, expected %s",
			action, d.Number, d.State.Label(), want.Label())
	}
	return nil
}

// NewDelivery initialises state and history of a delivery being created
func NewDelivery(d *models.Delivery, now time.Time) error {
	if !d.Method.Valid() {
		return reject(CodeConstraint, "unknown delivery method %q", d.Method)
	}
	d.State = models.DeliveryPreparing
	d.RecordTransition("", models.DeliveryPreparing, now)
	return nil
}

func notInDelivery(folders []models.Folder) []string {
	var numbers []string
	for _, f := range folders {
		if f.State != models.FolderDelivery {
			numbers = append(numbers, f.Number)
		}
	}
	return numbers
}

// PrepareDelivery moves a batch to verification once every folder waits for delivery
func PrepareDelivery(d *models.Delivery, folders []models.Folder, now time.Time) error {
	if err := expectDelivery(d, models.DeliveryPreparing, "prepare"); err != nil {
		return err
	}
	if len(folders) == 0 {
		return reject(CodeInvalidState, "delivery %s has no folders", d.Number)
	}
	if bad := notInDelivery(folders); len(bad) > 0 {
		return reject(CodeInvalidState, "folders not ready for delivery: %s", strings.Join(bad, ", "))
	}
	moveDelivery(d, models.DeliveryVerifying, now)
	d.PreparedAt = &now
	return nil
}

func SetVerifications(d *models.Delivery, v Verifications) error {
	if err := expectDelivery(d, models.DeliveryVerifying, "verify"); err != nil {
		return err
	}
	if v.Completeness != nil {
		d.CompletenessVerified = *v.Completeness
	}
	if v.Quality != nil {
		d.QualityVerified = *v.Quality
	}
	if v.Naming != nil {
		d.NamingVerified = *v.Naming
	}
	return nil
}

func VerifyAll(d *models.Delivery, now time.Time) error {
	yes := true
	if err := SetVerifications(d, Verifications{Completeness: &yes, Quality: &yes, Naming: &yes}); err != nil {
		return err
	}
	d.VerifiedAt = &now
	return nil
}

// MarkReady requires all three verifications
func MarkReady(d *models.Delivery, now time.Time) error {
	if err := expectDelivery(d, models.DeliveryVerifying, "mark ready"); err != nil {
		return err
	}
	if m := d.MissingVerifications(); len(m) > 0 {
		return missing("delivery "+d.Number+" is not verified", m)
	}
	if d.VerifiedAt == nil {
		d.VerifiedAt = &now
	}
	moveDelivery(d, models.DeliveryReady, now)
	return nil
}

// BeginSend re-checks the folders and moves the batch to sending
func BeginSend(d *models.Delivery, folders []models.Folder, now time.Time) error {
	if err := expectDelivery(d, models.DeliveryReady, "send"); err != nil {
		return err
	}
	if len(folders) == 0 {
		return reject(CodeInvalidState, "delivery %s has no folders", d.Number)
	}
	if bad := notInDelivery(folders); len(bad) > 0 {
		return reject(CodeInvalidState, "folders not ready for delivery: %s", strings.Join(bad, ", "))
	}
	moveDelivery(d, models.DeliverySending, now)
	return nil
}

// CompleteSend marks the batch delivered and stamps every folder with one shared time
func CompleteSend(d *models.Delivery, folders []models.Folder, now time.Time) error {
	if err := expectDelivery(d, models.DeliverySending, "complete"); err != nil {
		return err
	}
	for i := range folders {
		if err := MarkDelivered(&folders[i], d.ID, now); err != nil {
			return err
		}
	}
	moveDelivery(d, models.DeliveryDelivered, now)
	d.SentAt = &now
	d.Problems = ""
	return nil
}

// FailSend records a transport failure. Folders stay untouched.
func FailSend(d *models.Delivery, reason string, now time.Time) error {
	if err := expectDelivery(d, models.DeliverySending, "fail"); err != nil {
		return err
	}
	moveDelivery(d, models.DeliveryError, now)
	d.Problems = reason
	return nil
}

func ConfirmDelivery(d *models.Delivery, now time.Time) error {
	if err := expectDelivery(d, models.DeliveryDelivered, "confirm"); err != nil {
		return err
	}
	moveDelivery(d, models.DeliveryConfirmed, now)
	d.ConfirmedAt = &now
	return nil
}

// ReportDeliveryError flags a batch as failed from any state
func ReportDeliveryError(d *models.Delivery, reason string, now time.Time) error {
	if d.State == models.DeliveryError {
		return reject(CodeInvalidState, "delivery %s is already in error", d.Number)
	}
	moveDelivery(d, models.DeliveryError, now)
	if reason != "" {
		d.Problems = reason
	}
	return nil
}

// RelaunchDelivery puts a failed batch back to ready, or back to verifying
// when one of the three checks is still missing.
func RelaunchDelivery(d *models.Delivery, now time.Time) error {
	if err := expectDelivery(d, models.DeliveryError, "relaunch"); err != nil {
		return err
	}
	to := models.DeliveryReady
	if len(d.MissingVerifications()) > 0 {
		to = models.DeliveryVerifying
	}
	moveDelivery(d, to, now)
	d.Problems = ""
	return nil
}
