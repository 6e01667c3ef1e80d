package workflow

import (
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
)

const MaxDeclaredFolders = 1000

// CheckIntake validates the header of a reception batch
func CheckIntake(in *models.Intake, now time.Time) error {
	if in.DeliverySlip == "" {
		return missing("intake "+in.Number, []string{"delivery_slip"})
	}
	if in.DeclaredCount < 1 || in.DeclaredCount > MaxDeclaredFolders {
		return reject(CodeConstraint, "declared folder count must be between 1 and %d", MaxDeclaredFolders)
	}
	if in.ReceivedAt.After(now) {
		return reject(CodeConstraint, "reception date cannot be in the future")
	}
	return nil
}

func expectIntake(in *models.Intake, want models.IntakeState, action string) error {
	if in.State != want {
		return reject(CodeInvalidState, "cannot %s intake %s: it is %s, expected %s",
			action, in.Number, in.State.Label(), want.Label())
	}
	return nil
}

// ValidateIntake accepts a draft. The caller creates the declared folders.
func ValidateIntake(in *models.Intake) error {
	if err := expectIntake(in, models.IntakeDraft, "validate"); err != nil {
		return err
	}
	if in.DeclaredCount <= 0 {
		return reject(CodeConstraint, "intake %s declares no folders", in.Number)
	}
	in.State = models.IntakeValidated
	return nil
}

// StartIntake opens processing. The caller moves the received folders.
func StartIntake(in *models.Intake) error {
	if err := expectIntake(in, models.IntakeValidated, "start"); err != nil {
		return err
	}
	in.State = models.IntakeInProgress
	return nil
}

func allDelivered(folders []models.Folder) bool {
	if len(folders) == 0 {
		return false
	}
	for _, f := range folders {
		if f.State != models.FolderDelivered {
			return false
		}
	}
	return true
}

func CompleteIntake(in *models.Intake, folders []models.Folder) error {
	if err := expectIntake(in, models.IntakeInProgress, "complete"); err != nil {
		return err
	}
	if !allDelivered(folders) {
		return reject(CodeInvalidState, "intake %s still has folders that are not delivered", in.Number)
	}
	in.State = models.IntakeCompleted
	return nil
}

// AutoComplete completes an in-progress intake whose folders are all delivered
func AutoComplete(in *models.Intake, folders []models.Folder) bool {
	if in.State != models.IntakeInProgress || !allDelivered(folders) {
		return false
	}
	in.State = models.IntakeCompleted
	return true
}

func CancelIntake(in *models.Intake) error {
	if in.State == models.IntakeCompleted || in.State == models.IntakeCancelled {
		return reject(CodeInvalidState, "intake %s is %s and cannot be cancelled", in.Number, in.State.Label())
	}
	in.State = models.IntakeCancelled
	return nil
}

// CheckReplaceable refuses to drop folders that are boxed or attached to a delivery
func CheckReplaceable(in *models.Intake, folders []models.Folder) error {
	for _, f := range folders {
		if f.CartonID != nil {
			return reject(CodeInvalidState, "intake %s: folder %s is in carton %s", in.Number, f.Number, f.CartonNumber)
		}
		if f.DeliveryID != nil {
			return reject(CodeInvalidState, "intake %s: folder %s belongs to a delivery", in.Number, f.Number)
		}
	}
	return nil
}

// ResetIntake returns an intake to draft while none of its folders left reception
func ResetIntake(in *models.Intake, folders []models.Folder) error {
	if in.State == models.IntakeCompleted {
		return reject(CodeInvalidState, "intake %s is completed", in.Number)
	}
	for _, f := range folders {
		if f.State != models.FolderReceived {
			return reject(CodeInvalidState, "intake %s cannot return to draft: folder %s is in %s",
				in.Number, f.Number, f.State.Label())
		}
	}
	if err := CheckReplaceable(in, folders); err != nil {
		return err
	}
	in.State = models.IntakeDraft
	return nil
}
