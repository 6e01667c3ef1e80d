package workflow

import (
	"testing"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newFolder(state models.FolderState) *models.Folder {
	return &models.Folder{ID: "f1", Number: "DOS/2026/00001", IntakeID: "in1", State: state}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	rejected, ok := AsRejected(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	assert.Equal(t, code, rejected.Code)
}

func TestStartProcessing(t *testing.T) {
	f := newFolder(models.FolderReceived)
	require.NoError(t, StartProcessing(f, t0))
	assert.Equal(t, models.FolderProcessing, f.State)
	require.NotNil(t, f.ProcessingStartedAt)
	assert.Equal(t, t0, *f.ProcessingStartedAt)

	requireCode(t, StartProcessing(f, t0), CodeInvalidState)

	orphan := newFolder(models.FolderReceived)
	orphan.IntakeID = ""
	requireCode(t, StartProcessing(orphan, t0), CodeInvalidState)
	assert.Equal(t, models.FolderReceived, orphan.State)
}

func TestCompleteProcessingGuards(t *testing.T) {
	running := &models.Processing{Timer: models.Timer{State: models.StageInProgress}}
	done := &models.Processing{Timer: models.Timer{State: models.StageDone}}

	f := newFolder(models.FolderProcessing)
	requireCode(t, CompleteProcessing(f, nil, t0), CodeInvalidState)
	requireCode(t, CompleteProcessing(f, running, t0), CodeInvalidState)

	err := CompleteProcessing(f, done, t0)
	requireCode(t, err, CodeMissingField)
	assert.Contains(t, err.Error(), "radical")
	assert.Contains(t, err.Error(), "agency_code")
	assert.Equal(t, models.FolderProcessing, f.State)
	assert.Nil(t, f.ProcessingEndedAt)

	f.Radical = "RAD123"
	f.AgencyCode = "AG01"
	require.NoError(t, CompleteProcessing(f, done, t0))
	assert.Equal(t, models.FolderTransfer, f.State)
	assert.NotNil(t, f.ProcessingEndedAt)
}

func TestCompleteScanningRequiresKindAndCarton(t *testing.T) {
	f := newFolder(models.FolderScanning)
	scan := &models.Scan{Timer: models.Timer{State: models.StageValidated}}

	err := CompleteScanning(f, scan, t0)
	requireCode(t, err, CodeMissingField)
	assert.Contains(t, err.Error(), "carton_number")

	f.Kind = models.KindLoan
	f.CartonNumber = "000001"
	require.NoError(t, CompleteScanning(f, scan, t0))
	assert.Equal(t, models.FolderIndexing, f.State)
}

func TestCompleteIndexingNeedsARecord(t *testing.T) {
	f := newFolder(models.FolderIndexing)
	requireCode(t, CompleteIndexing(f, 0, t0), CodeInvalidState)
	require.NoError(t, CompleteIndexing(f, 2, t0))
	assert.Equal(t, models.FolderDelivery, f.State)
}

func TestMarkDelivered(t *testing.T) {
	f := newFolder(models.FolderDelivery)
	requireCode(t, MarkDelivered(f, "", t0), CodeInvalidState)
	require.NoError(t, MarkDelivered(f, "d1", t0))
	assert.Equal(t, models.FolderDelivered, f.State)
	assert.Equal(t, "d1", *f.DeliveryID)
	assert.Equal(t, 100.0, f.Progress())
}

func TestStepBack(t *testing.T) {
	for i := 1; i < len(models.FolderPipeline); i++ {
		f := newFolder(models.FolderPipeline[i])
		prev, err := StepBack(f)
		require.NoError(t, err)
		assert.Equal(t, models.FolderPipeline[i-1], prev)
		assert.Equal(t, prev, f.State)
	}

	f := newFolder(models.FolderReceived)
	_, err := StepBack(f)
	requireCode(t, err, CodeInvalidState)
}

func TestForwardSequenceIsStrict(t *testing.T) {
	f := newFolder(models.FolderReceived)
	f.Radical, f.AgencyCode = "RAD123", "AG01"
	f.Kind, f.CartonNumber = models.KindAccount, "000002"
	done := models.Timer{State: models.StageDone}

	steps := []func() error{
		func() error { return StartProcessing(f, t0) },
		func() error { return CompleteProcessing(f, &models.Processing{Timer: done}, t0) },
		func() error { return ValidateTransfer(f, "stock", t0) },
		func() error { return CompleteScanning(f, &models.Scan{Timer: done}, t0) },
		func() error { return CompleteIndexing(f, 1, t0) },
		func() error { return MarkDelivered(f, "d1", t0) },
	}
	last := f.Progress()
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		assert.Equal(t, models.FolderPipeline[i+1], f.State)
		assert.Greater(t, f.Progress(), last)
		last = f.Progress()
	}
	// replaying any step from the final state is rejected
	for _, step := range steps {
		requireCode(t, step(), CodeInvalidState)
	}
}

func TestCheckFolder(t *testing.T) {
	tests := []struct {
		name    string
		folder  models.Folder
		wantErr bool
	}{
		{"empty identity", models.Folder{}, false},
		{"valid", models.Folder{Radical: "ABC", AgencyCode: "AG-01_x"}, false},
		{"short radical", models.Folder{Radical: "AB"}, true},
		{"short agency", models.Folder{AgencyCode: "A"}, true},
		{"agency with spaces", models.Folder{AgencyCode: "AG 01"}, true},
		{"unknown kind", models.Folder{Kind: "car"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckFolder(&tc.folder)
			if tc.wantErr {
				requireCode(t, err, CodeConstraint)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNextGroup(t *testing.T) {
	g, ok := NextGroup(models.FolderTransfer)
	assert.True(t, ok)
	assert.Equal(t, models.GroupStockManager, g)

	_, ok = NextGroup(models.FolderDelivered)
	assert.False(t, ok)
}
