package workflow

import (
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
)

// StartTimer initialises the timer of a freshly opened stage record
func StartTimer(t *models.Timer, now time.Time) {
	t.State = models.StageInProgress
	t.StartedAt = now
	t.EndedAt = nil
	t.PausedAt = nil
	t.PauseMinutes = 0
	t.PauseCount = 0
	t.QualityChecked = false
}

func Pause(t *models.Timer, now time.Time) error {
	if t.State != models.StageInProgress {
		return reject(CodeInvalidState, "only running work can be paused, record is %s", t.State.Label())
	}
	t.State = models.StagePaused
	t.PausedAt = &now
	t.PauseCount++
	return nil
}

func Resume(t *models.Timer, now time.Time) error {
	if t.State != models.StagePaused {
		return reject(CodeInvalidState, "only paused work can be resumed, record is %s", t.State.Label())
	}
	closePause(t, now)
	t.State = models.StageInProgress
	return nil
}

func closePause(t *models.Timer, now time.Time) {
	if t.PausedAt != nil {
		if elapsed := now.Sub(*t.PausedAt).Minutes(); elapsed > 0 {
			t.PauseMinutes += elapsed
		}
	}
	t.PausedAt = nil
}

// Finish closes a running or paused stage record. Any pending pause is accounted first.
func Finish(s models.Stage, now time.Time) error {
	t := s.StageTimer()
	if t.State != models.StageInProgress && t.State != models.StagePaused {
		return reject(CodeInvalidState, "only running or paused work can be finished, record is %s", t.State.Label())
	}
	if fields := s.MissingFields(); len(fields) > 0 {
		return missing("cannot finish", fields)
	}
	if s.Units() <= 0 {
		return reject(CodeMissingField, "cannot finish: unit count must be positive")
	}
	closePause(t, now)
	t.EndedAt = &now
	t.State = models.StageDone
	return CheckTimer(t)
}

// CheckQuality sets the quality-control flag on a finished record
func CheckQuality(t *models.Timer) error {
	if t.State != models.StageDone {
		return reject(CodeInvalidState, "quality control can only be recorded on finished work, record is %s", t.State.Label())
	}
	t.QualityChecked = true
	return nil
}

func Validate(t *models.Timer) error {
	if t.State != models.StageDone {
		return reject(CodeInvalidState, "only finished work can be validated, record is %s", t.State.Label())
	}
	if !t.QualityChecked {
		return reject(CodeInvalidState, "quality control must be recorded before validation")
	}
	t.State = models.StageValidated
	return nil
}

// Reopen puts a finished, validated or failed record back in progress
func Reopen(t *models.Timer) error {
	switch t.State {
	case models.StageDone, models.StageValidated, models.StageError:
	default:
		return reject(CodeInvalidState, "cannot reopen work that is %s", t.State.Label())
	}
	t.State = models.StageInProgress
	t.EndedAt = nil
	t.PausedAt = nil
	t.QualityChecked = false
	return nil
}

// Fail flags a record as erroneous
func Fail(t *models.Timer, now time.Time) error {
	if t.State == models.StageError {
		return reject(CodeInvalidState, "record is already flagged as erroneous")
	}
	closePause(t, now)
	t.State = models.StageError
	return nil
}

// FailStage flags a scan or index record as erroneous. Processing records have no error state.
func FailStage(s models.Stage, now time.Time) error {
	if _, ok := s.(*models.Processing); ok {
		return reject(CodeInvalidState, "processing records cannot be flagged as erroneous")
	}
	return Fail(s.StageTimer(), now)
}

// CheckTimer enforces the pause bounds of a timer
func CheckTimer(t *models.Timer) error {
	if t.PauseMinutes < 0 {
		return reject(CodeConstraint, "pause duration cannot be negative")
	}
	if wall := t.WallMinutes(); wall > 0 && t.PauseMinutes > wall {
		return reject(CodeConstraint, "pause duration cannot exceed total duration")
	}
	return nil
}
