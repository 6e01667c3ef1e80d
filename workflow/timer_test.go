package workflow

import (
	"testing"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcessing() *models.Processing {
	p := &models.Processing{FolderID: "f1", Radical: "RAD123", AgencyCode: "AG01", PiecesProcessed: 60}
	StartTimer(&p.Timer, t0)
	return p
}

func TestPauseResumeFinishDurations(t *testing.T) {
	p := newProcessing()

	require.NoError(t, Pause(&p.Timer, t0.Add(10*time.Minute)))
	assert.Equal(t, models.StagePaused, p.State)
	assert.Equal(t, 1, p.PauseCount)

	require.NoError(t, Resume(&p.Timer, t0.Add(15*time.Minute)))
	assert.Nil(t, p.PausedAt)
	assert.InDelta(t, 5.0, p.PauseMinutes, 1e-9)

	require.NoError(t, Finish(p, t0.Add(35*time.Minute)))
	assert.Equal(t, models.StageDone, p.State)
	assert.InDelta(t, 35.0, p.WallMinutes(), 1e-9)
	assert.InDelta(t, 30.0, p.EffectiveMinutes(), 1e-9)
	assert.InDelta(t, 2.0, p.Speed(), 1e-9)
}

func TestFinishWhilePausedClosesThePause(t *testing.T) {
	p := newProcessing()
	require.NoError(t, Pause(&p.Timer, t0.Add(20*time.Minute)))
	require.NoError(t, Finish(p, t0.Add(30*time.Minute)))

	assert.InDelta(t, 10.0, p.PauseMinutes, 1e-9)
	assert.InDelta(t, 20.0, p.EffectiveMinutes(), 1e-9)
	assert.Nil(t, p.PausedAt)
}

func TestPauseResumeGuards(t *testing.T) {
	p := newProcessing()
	requireCode(t, Resume(&p.Timer, t0), CodeInvalidState)
	require.NoError(t, Pause(&p.Timer, t0))
	requireCode(t, Pause(&p.Timer, t0), CodeInvalidState)
}

func TestFinishRequiresFieldsAndUnits(t *testing.T) {
	p := newProcessing()
	p.Radical = ""
	err := Finish(p, t0.Add(time.Minute))
	requireCode(t, err, CodeMissingField)
	assert.Contains(t, err.Error(), "radical")
	assert.Equal(t, models.StageInProgress, p.State)
	assert.Nil(t, p.EndedAt)

	p.Radical = "RAD123"
	p.PiecesProcessed = 0
	requireCode(t, Finish(p, t0.Add(time.Minute)), CodeMissingField)

	s := &models.Scan{CartonNumber: "000001", Kind: models.KindLoan}
	StartTimer(&s.Timer, t0)
	requireCode(t, Finish(s, t0.Add(time.Minute)), CodeMissingField)
	s.Pieces = 12
	require.NoError(t, Finish(s, t0.Add(time.Minute)))

	ix := &models.Indexing{PiecesIndexed: 1}
	StartTimer(&ix.Timer, t0)
	err = Finish(ix, t0.Add(time.Minute))
	requireCode(t, err, CodeMissingField)
	assert.Contains(t, err.Error(), "title")
	assert.Contains(t, err.Error(), "document_type")
}

func TestThroughputIsZeroWithoutEffectiveTime(t *testing.T) {
	timer := models.Timer{StartedAt: t0}
	assert.Equal(t, 0.0, timer.Throughput(10))

	end := t0
	timer.EndedAt = &end
	assert.Equal(t, 0.0, timer.Throughput(10))

	end = t0.Add(10 * time.Minute)
	timer.PauseMinutes = 10
	assert.Equal(t, 0.0, timer.Throughput(10))

	timer.PauseMinutes = 0
	assert.Equal(t, 0.0, timer.Throughput(0))
	assert.InDelta(t, 1.0, timer.Throughput(10), 1e-9)
}

func TestQualityAndValidation(t *testing.T) {
	p := newProcessing()
	requireCode(t, CheckQuality(&p.Timer), CodeInvalidState)

	require.NoError(t, Finish(p, t0.Add(time.Minute)))
	requireCode(t, Validate(&p.Timer), CodeInvalidState)

	require.NoError(t, CheckQuality(&p.Timer))
	require.NoError(t, Validate(&p.Timer))
	assert.Equal(t, models.StageValidated, p.State)
}

func TestReopenClearsEndAndQuality(t *testing.T) {
	p := newProcessing()
	requireCode(t, Reopen(&p.Timer), CodeInvalidState)

	require.NoError(t, Finish(p, t0.Add(time.Minute)))
	require.NoError(t, CheckQuality(&p.Timer))
	require.NoError(t, Validate(&p.Timer))
	require.NoError(t, Reopen(&p.Timer))

	assert.Equal(t, models.StageInProgress, p.State)
	assert.Nil(t, p.EndedAt)
	assert.False(t, p.QualityChecked)
}

func TestFailFromAnyState(t *testing.T) {
	s := &models.Scan{}
	StartTimer(&s.Timer, t0)
	require.NoError(t, Pause(&s.Timer, t0))
	require.NoError(t, Fail(&s.Timer, t0.Add(2*time.Minute)))
	assert.Equal(t, models.StageError, s.State)
	assert.Nil(t, s.PausedAt)
	requireCode(t, Fail(&s.Timer, t0), CodeInvalidState)
	require.NoError(t, Reopen(&s.Timer))
}

func TestProcessingCannotBeFlagged(t *testing.T) {
	p := newProcessing()
	requireCode(t, FailStage(p, t0), CodeInvalidState)

	ix := &models.Indexing{}
	StartTimer(&ix.Timer, t0)
	require.NoError(t, FailStage(ix, t0.Add(time.Minute)))
	assert.Equal(t, models.StageError, ix.State)
}

func TestCheckTimerBounds(t *testing.T) {
	end := t0.Add(10 * time.Minute)
	timer := models.Timer{StartedAt: t0, EndedAt: &end, PauseMinutes: 11}
	requireCode(t, CheckTimer(&timer), CodeConstraint)

	timer.PauseMinutes = -1
	requireCode(t, CheckTimer(&timer), CodeConstraint)

	timer.PauseMinutes = 10
	assert.NoError(t, CheckTimer(&timer))
}
