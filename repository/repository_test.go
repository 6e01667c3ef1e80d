package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/inbox"
	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/transport"
	"github.com/ahmadzakiakmal/dossierflow/workflow"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type stubDispatcher struct {
	err    error
	calls  int
	last   transport.Package
	during func()
}

func (s *stubDispatcher) Dispatch(_ context.Context, _ models.DeliveryMethod, pkg transport.Package) (*transport.Receipt, error) {
	s.calls++
	s.last = pkg
	if s.during != nil {
		s.during()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &transport.Receipt{
		SharePath: "/partage_securise/livraison_test",
		URL:       "https://share.example/livraison_test",
		Password:  "secret",
	}, nil
}

type testEnv struct {
	repo       *Repository
	clock      *testClock
	inbox      *inbox.Inbox
	dispatcher *stubDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "dossierflow.db"))
	require.NoError(t, err)

	box, err := inbox.Open("", cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = box.Close() })

	env := &testEnv{clock: &testClock{now: t0}, inbox: box, dispatcher: &stubDispatcher{}}
	env.repo = NewRepository(db, Options{
		Notifier:   box,
		Dispatcher: env.dispatcher,
		Clock:      env.clock.Now,
	})
	require.NoError(t, env.repo.Migrate())
	require.NoError(t, env.repo.Seed())
	return env
}

func ptr[T any](v T) *T { return &v }

func requireOK(t *testing.T, err *RepositoryError) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected repository error: %v", err)
	}
}

func requireRepoCode(t *testing.T, err *RepositoryError, code string) {
	t.Helper()
	require.NotNil(t, err)
	assert.Equal(t, code, err.Code, err.Error())
}

// foldersIn creates an intake of n folders and forces them into state
func (env *testEnv) foldersIn(t *testing.T, n int, state models.FolderState) []models.Folder {
	t.Helper()
	intake, err := env.repo.CreateIntake(IntakeInput{DeliverySlip: "BL-1", DeclaredCount: n, AutoValidate: true}, "OPR-001")
	requireOK(t, err)
	require.NoError(t, env.repo.db.Model(&models.Folder{}).Where("intake_id = ?", intake.ID).Update("state", state).Error)
	folders, err := env.repo.ListFolders(FolderFilter{IntakeID: intake.ID})
	requireOK(t, err)
	require.Len(t, folders, n)
	return folders
}

func (env *testEnv) runStage(t *testing.T, kind StageKind, id string, worked time.Duration) {
	t.Helper()
	env.clock.advance(worked)
	for _, action := range []StageAction{ActionFinish, ActionQuality, ActionValidate} {
		_, err := env.repo.StageAction(kind, id, action, "")
		requireOK(t, err)
	}
}

func (env *testEnv) folder(t *testing.T, id string) *models.Folder {
	t.Helper()
	f, err := env.repo.GetFolder(id)
	requireOK(t, err)
	return f
}

// runPipeline drives a single-folder intake from reception to a sent delivery
func (env *testEnv) runPipeline(t *testing.T) (intakeID, folderID, deliveryID string) {
	t.Helper()
	r := env.repo

	intake, err := r.CreateIntake(IntakeInput{DeliverySlip: "BL-77", DeclaredCount: 1, StartProcessing: true}, "OPR-001")
	requireOK(t, err)
	require.Len(t, intake.Folders, 1)
	folderID = intake.Folders[0].ID
	require.Equal(t, models.FolderProcessing, intake.Folders[0].State)

	p, err := r.OpenProcessing(folderID, "OPR-002", ProcessingPatch{
		Radical:         ptr("RAD001"),
		AgencyCode:      ptr("AG01"),
		PiecesProcessed: ptr(40),
	})
	requireOK(t, err)
	env.runStage(t, StageProcessing, p.ID, 30*time.Minute)
	require.Equal(t, models.FolderTransfer, env.folder(t, folderID).State)

	carton, err := r.CreateCarton(CartonInput{Kind: models.KindLoan, Capacity: 10}, "OPR-003")
	requireOK(t, err)
	_, err = r.AddFolderToCarton(carton.ID, folderID, "OPR-003")
	requireOK(t, err)
	_, err = r.CloseCarton(carton.ID, "OPR-003")
	requireOK(t, err)
	require.Equal(t, models.FolderScanning, env.folder(t, folderID).State)

	s, err := r.OpenScan(folderID, "OPR-004", ScanPatch{Kind: ptr(models.KindLoan), Pieces: ptr(40), Pages: ptr(80)})
	requireOK(t, err)
	require.Equal(t, carton.Number, s.CartonNumber)
	env.runStage(t, StageScan, s.ID, 20*time.Minute)
	require.Equal(t, models.FolderIndexing, env.folder(t, folderID).State)

	ix, err := r.OpenIndexing(folderID, "OPR-005", IndexingPatch{
		Title:         ptr("Loan agreement"),
		DocumentType:  ptr(models.DocContract),
		PiecesIndexed: ptr(40),
		Pages:         ptr(80),
	})
	requireOK(t, err)
	env.runStage(t, StageIndexing, ix.ID, 10*time.Minute)
	require.Equal(t, models.FolderDelivery, env.folder(t, folderID).State)

	d, err := r.CreateDelivery(DeliveryInput{
		Method:         models.MethodSecureShare,
		RecipientEmail: "archives@bank.example",
		FolderIDs:      []string{folderID},
	}, "OPR-001")
	requireOK(t, err)
	_, err = r.PrepareDelivery(d.ID, "OPR-001")
	requireOK(t, err)
	_, err = r.VerifyAllDelivery(d.ID, "OPR-001")
	requireOK(t, err)
	_, err = r.MarkDeliveryReady(d.ID, "OPR-001")
	requireOK(t, err)
	_, err = r.SendDelivery(context.Background(), d.ID, "OPR-001")
	requireOK(t, err)

	return intake.ID, folderID, d.ID
}

func TestValidateIntakeCreatesDeclaredFolders(t *testing.T) {
	env := newTestEnv(t)

	intake, err := env.repo.CreateIntake(IntakeInput{DeliverySlip: "BL-9", DeclaredCount: 5}, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, "REC/2026/00001", intake.Number)
	assert.Equal(t, models.IntakeDraft, intake.State)
	assert.Empty(t, intake.Folders)

	intake, err = env.repo.ValidateIntake(intake.ID, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, models.IntakeValidated, intake.State)
	require.Len(t, intake.Folders, 5)
	for _, f := range intake.Folders {
		assert.Equal(t, models.FolderReceived, f.State)
		assert.Equal(t, models.PriorityNormal, f.Priority)
	}
	assert.Equal(t, "DOS/2026/00001", intake.Folders[0].Number)
	assert.Equal(t, "DOS/2026/00005", intake.Folders[4].Number)

	_, err = env.repo.ValidateIntake(intake.ID, "OPR-001")
	requireRepoCode(t, err, workflow.CodeInvalidState)
}

func TestCreateIntakeRejectsInvalidHeader(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.repo.CreateIntake(IntakeInput{DeclaredCount: 5}, "OPR-001")
	requireRepoCode(t, err, workflow.CodeMissingField)

	_, err = env.repo.CreateIntake(IntakeInput{DeliverySlip: "BL-1", DeclaredCount: 0}, "OPR-001")
	requireRepoCode(t, err, workflow.CodeConstraint)

	_, err = env.repo.CreateIntake(IntakeInput{DeliverySlip: "BL-1", DeclaredCount: 1, ReceivedAt: t0.Add(24 * time.Hour)}, "OPR-001")
	requireRepoCode(t, err, workflow.CodeConstraint)

	intakes, err := env.repo.ListIntakes("")
	requireOK(t, err)
	assert.Empty(t, intakes)
}

func TestResetIntakeRejectedOnceProcessingStarted(t *testing.T) {
	env := newTestEnv(t)
	r := env.repo

	intake, err := r.CreateIntake(IntakeInput{DeliverySlip: "BL-2", DeclaredCount: 2, AutoValidate: true}, "OPR-001")
	requireOK(t, err)

	intake, err = r.ResetIntake(intake.ID, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, models.IntakeDraft, intake.State)

	intake, err = r.ValidateIntake(intake.ID, "OPR-001")
	requireOK(t, err)
	assert.Len(t, intake.Folders, 2)

	intake, err = r.StartIntake(intake.ID, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, models.IntakeInProgress, intake.State)
	for _, f := range intake.Folders {
		assert.Equal(t, models.FolderProcessing, f.State)
		assert.NotNil(t, f.ProcessingStartedAt)
	}

	_, err = r.ResetIntake(intake.ID, "OPR-001")
	requireRepoCode(t, err, workflow.CodeInvalidState)

	_, err = r.CompleteIntake(intake.ID, "OPR-001")
	requireRepoCode(t, err, workflow.CodeInvalidState)

	intake, err = r.CancelIntake(intake.ID, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, models.IntakeCancelled, intake.State)
}

func TestResetIntakeKeepsBoxedFolders(t *testing.T) {
	env := newTestEnv(t)
	r := env.repo

	intake, err := r.CreateIntake(IntakeInput{DeliverySlip: "BL-3", DeclaredCount: 1, AutoValidate: true}, "OPR-001")
	requireOK(t, err)
	carton, err := r.CreateCarton(CartonInput{Capacity: 1}, "OPR-003")
	requireOK(t, err)
	_, err = r.AddFolderToCarton(carton.ID, intake.Folders[0].ID, "OPR-003")
	requireOK(t, err)

	_, err = r.ResetIntake(intake.ID, "OPR-001")
	requireRepoCode(t, err, workflow.CodeInvalidState)

	carton, err = r.GetCarton(carton.ID)
	requireOK(t, err)
	assert.Equal(t, models.CartonFull, carton.State)
	assert.Equal(t, 1, carton.FolderCount)
	require.Len(t, carton.Folders, 1)
}

func TestCartonCountFollowsMembers(t *testing.T) {
	env := newTestEnv(t)
	r := env.repo
	folders := env.foldersIn(t, 2, models.FolderTransfer)

	carton, err := r.CreateCarton(CartonInput{Capacity: 1}, "OPR-003")
	requireOK(t, err)
	_, err = r.AddFolderToCarton(carton.ID, folders[0].ID, "OPR-003")
	requireOK(t, err)

	// the member disappears behind the carton's back
	require.NoError(t, r.db.Model(&models.Folder{}).Where("folder_id = ?", folders[0].ID).Update("carton_id", nil).Error)
	carton, err = r.GetCarton(carton.ID)
	requireOK(t, err)
	assert.Equal(t, 0, carton.FolderCount)

	carton, err = r.AddFolderToCarton(carton.ID, folders[1].ID, "OPR-003")
	requireOK(t, err)
	assert.Equal(t, models.CartonFull, carton.State)
	assert.Equal(t, 1, carton.FolderCount)
	assert.InDelta(t, 100.0, carton.FillRatio(), 1e-9)
}

func TestFullPipeline(t *testing.T) {
	env := newTestEnv(t)
	intakeID, folderID, deliveryID := env.runPipeline(t)

	f := env.folder(t, folderID)
	assert.Equal(t, models.FolderDelivered, f.State)
	assert.Equal(t, "RAD001", f.Radical)
	assert.Equal(t, models.KindLoan, f.Kind)
	assert.Equal(t, 40, f.PieceCount)
	assert.Equal(t, 40, f.IndexedDocuments)
	assert.InDelta(t, 30.0, f.ProcessingMinutes, 1e-6)
	assert.InDelta(t, 20.0, f.ScanMinutes, 1e-6)
	assert.InDelta(t, 10.0, f.IndexingMinutes, 1e-6)
	assert.InDelta(t, 1.0, f.TotalHours(), 1e-6)
	require.NotNil(t, f.StockManagerID)
	assert.Equal(t, "OPR-003", *f.StockManagerID)
	require.NotNil(t, f.DeliveryID)
	assert.Equal(t, deliveryID, *f.DeliveryID)

	d, err := env.repo.GetDelivery(deliveryID)
	requireOK(t, err)
	assert.Equal(t, models.DeliveryDelivered, d.State)
	assert.Equal(t, "LIV/2026/00001", d.Number)
	assert.Equal(t, "secret", d.SharePassword)
	assert.NotNil(t, d.NotifiedAt)
	require.NotNil(t, d.SentAt)
	require.NotNil(t, f.DeliveredAt)
	assert.True(t, d.SentAt.Equal(*f.DeliveredAt))
	assert.Len(t, d.Transitions(), 5)

	assert.Equal(t, 1, env.dispatcher.calls)
	manifest := env.dispatcher.last.Manifest
	assert.Equal(t, 40, manifest.TotalPieces)
	assert.InDelta(t, 20.0, manifest.EstimatedMB, 1e-9)
	require.Len(t, manifest.Folders, 1)
	require.Len(t, manifest.Folders[0].Documents, 1)
	assert.Equal(t, "Loan agreement", manifest.Folders[0].Documents[0].Title)

	intake, err := env.repo.GetIntake(intakeID)
	requireOK(t, err)
	assert.Equal(t, models.IntakeCompleted, intake.State)
	assert.NotNil(t, intake.CompletedAt)

	d, err = env.repo.ConfirmDelivery(deliveryID, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, models.DeliveryConfirmed, d.State)

	journal, jerr := env.inbox.Journal(entityFolder, folderID)
	require.NoError(t, jerr)
	assert.NotEmpty(t, journal)
}

func TestFailedSendLeavesFoldersInDelivery(t *testing.T) {
	env := newTestEnv(t)
	r := env.repo
	folders := env.foldersIn(t, 2, models.FolderDelivery)

	d, err := r.CreateDelivery(DeliveryInput{
		Method:    models.MethodFTP,
		FolderIDs: []string{folders[0].ID, folders[1].ID},
	}, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, "CIH Bank", d.Recipient)
	assert.Len(t, d.Folders, 2)

	_, err = r.PrepareDelivery(d.ID, "OPR-001")
	requireOK(t, err)
	_, err = r.MarkDeliveryReady(d.ID, "OPR-001")
	requireRepoCode(t, err, workflow.CodeMissingField)
	_, err = r.SetDeliveryVerifications(d.ID, workflow.Verifications{Completeness: ptr(true), Quality: ptr(true)}, "OPR-001")
	requireOK(t, err)
	_, err = r.MarkDeliveryReady(d.ID, "OPR-001")
	requireRepoCode(t, err, workflow.CodeMissingField)
	_, err = r.SetDeliveryVerifications(d.ID, workflow.Verifications{Naming: ptr(true)}, "OPR-001")
	requireOK(t, err)
	_, err = r.MarkDeliveryReady(d.ID, "OPR-001")
	requireOK(t, err)

	env.dispatcher.err = errors.New("ftp: connection refused")
	_, err = r.SendDelivery(context.Background(), d.ID, "OPR-001")
	requireRepoCode(t, err, ErrCodeDeliveryFailed)

	d, err = r.GetDelivery(d.ID)
	requireOK(t, err)
	assert.Equal(t, models.DeliveryError, d.State)
	assert.Contains(t, d.Problems, "connection refused")
	for _, f := range d.Folders {
		assert.Equal(t, models.FolderDelivery, f.State)
		assert.Nil(t, f.DeliveredAt)
	}

	env.dispatcher.err = nil
	d, err = r.RelaunchDelivery(d.ID, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, models.DeliveryReady, d.State)
	assert.Empty(t, d.Problems)

	d, err = r.SendDelivery(context.Background(), d.ID, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, models.DeliveryDelivered, d.State)
	for _, f := range d.Folders {
		assert.Equal(t, models.FolderDelivered, f.State)
	}
	assert.Nil(t, d.NotifiedAt)
}

// readyDelivery puts the folders in a verified delivery waiting to be sent
func (env *testEnv) readyDelivery(t *testing.T, folders []models.Folder) *models.Delivery {
	t.Helper()
	ids := make([]string, len(folders))
	for i, f := range folders {
		ids[i] = f.ID
	}
	d, err := env.repo.CreateDelivery(DeliveryInput{Method: models.MethodFTP, FolderIDs: ids}, "OPR-001")
	requireOK(t, err)
	_, err = env.repo.PrepareDelivery(d.ID, "OPR-001")
	requireOK(t, err)
	_, err = env.repo.VerifyAllDelivery(d.ID, "OPR-001")
	requireOK(t, err)
	d, err = env.repo.MarkDeliveryReady(d.ID, "OPR-001")
	requireOK(t, err)
	return d
}

func TestSendRecordsFailureWhenFoldersMoveDuringTransport(t *testing.T) {
	env := newTestEnv(t)
	r := env.repo
	folders := env.foldersIn(t, 1, models.FolderDelivery)
	d := env.readyDelivery(t, folders)

	var stepErr *RepositoryError
	env.dispatcher.during = func() {
		_, stepErr = r.StepBackFolder(folders[0].ID, "OPR-001")
		require.NoError(t, r.db.Model(&models.Folder{}).
			Where("folder_id = ?", folders[0].ID).
			Update("state", models.FolderIndexing).Error)
	}

	_, err := r.SendDelivery(context.Background(), d.ID, "OPR-001")
	requireRepoCode(t, err, ErrCodeDeliveryFailed)
	requireRepoCode(t, stepErr, workflow.CodeInvalidState)
	assert.Equal(t, 1, env.dispatcher.calls)

	d, err = r.GetDelivery(d.ID)
	requireOK(t, err)
	assert.Equal(t, models.DeliveryError, d.State)
	assert.Contains(t, d.Problems, "not recorded")
	assert.Nil(t, env.folder(t, folders[0].ID).DeliveredAt)

	d, err = r.RelaunchDelivery(d.ID, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, models.DeliveryReady, d.State)
}

func TestDeliverFolderRequiresSentMembership(t *testing.T) {
	env := newTestEnv(t)
	r := env.repo
	_, folderID, deliveryID := env.runPipeline(t)

	pending := env.foldersIn(t, 1, models.FolderDelivery)
	other, err := r.CreateDelivery(DeliveryInput{Method: models.MethodFTP, FolderIDs: []string{pending[0].ID}}, "OPR-001")
	requireOK(t, err)

	_, err = r.DeliverFolder(pending[0].ID, other.ID, "OPR-001")
	requireRepoCode(t, err, workflow.CodeInvalidState)
	_, err = r.DeliverFolder(pending[0].ID, deliveryID, "OPR-001")
	requireRepoCode(t, err, workflow.CodeInvalidState)
	assert.Equal(t, models.FolderDelivery, env.folder(t, pending[0].ID).State)

	f, err := r.StepBackFolder(folderID, "OPR-001")
	requireOK(t, err)
	require.Equal(t, models.FolderDelivery, f.State)
	f, err = r.DeliverFolder(folderID, deliveryID, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, models.FolderDelivered, f.State)
	assert.Equal(t, deliveryID, *f.DeliveryID)
}

func TestPrepareDeliveryNamesFoldersNotReady(t *testing.T) {
	env := newTestEnv(t)
	folders := env.foldersIn(t, 2, models.FolderIndexing)

	d, err := env.repo.CreateDelivery(DeliveryInput{FolderIDs: []string{folders[0].ID}}, "OPR-001")
	requireOK(t, err)
	assert.Equal(t, models.MethodSecureShare, d.Method)

	_, err = env.repo.PrepareDelivery(d.ID, "OPR-001")
	requireRepoCode(t, err, workflow.CodeInvalidState)
	assert.Contains(t, err.Message, folders[0].Number)

	_, err = env.repo.SetDeliveryFolders(d.ID, []string{folders[0].ID, "missing"}, "OPR-001")
	requireRepoCode(t, err, ErrCodeInvalidInput)
}

func TestCloseCartonValidatesTransferOfMembers(t *testing.T) {
	env := newTestEnv(t)
	r := env.repo
	folders := env.foldersIn(t, 3, models.FolderTransfer)
	require.NoError(t, r.db.Model(&models.Folder{}).Where("folder_id = ?", folders[2].ID).Update("state", models.FolderReceived).Error)

	carton, err := r.CreateCarton(CartonInput{Capacity: 3}, "OPR-003")
	requireOK(t, err)
	assert.Equal(t, "000001", carton.Number)

	_, err = r.CloseCarton(carton.ID, "OPR-003")
	requireRepoCode(t, err, workflow.CodeInvalidState)

	for _, f := range folders {
		carton, err = r.AddFolderToCarton(carton.ID, f.ID, "OPR-003")
		requireOK(t, err)
	}
	assert.Equal(t, models.CartonFull, carton.State)
	assert.InDelta(t, 100.0, carton.FillRatio(), 1e-9)

	carton, err = r.CloseCarton(carton.ID, "OPR-003")
	requireOK(t, err)
	assert.Equal(t, models.CartonClosed, carton.State)

	assert.Equal(t, models.FolderScanning, env.folder(t, folders[0].ID).State)
	assert.Equal(t, models.FolderScanning, env.folder(t, folders[1].ID).State)
	assert.Equal(t, models.FolderReceived, env.folder(t, folders[2].ID).State)

	messages, ierr := env.inbox.Messages("OPR-004")
	require.NoError(t, ierr)
	assert.Len(t, messages, 2)

	_, err = r.StartCartonScan(carton.ID, "OPR-004")
	requireOK(t, err)
	_, err = r.RemoveFolderFromCarton(carton.ID, folders[0].ID, "OPR-004")
	requireRepoCode(t, err, workflow.CodeInvalidState)
	env.clock.advance(45 * time.Minute)
	carton, err = r.FinishCartonScan(carton.ID, "OPR-004")
	requireOK(t, err)
	assert.InDelta(t, 45.0, carton.ScanMinutes(), 1e-9)
}

func TestCartonCapacityAndRenumbering(t *testing.T) {
	env := newTestEnv(t)
	r := env.repo
	folders := env.foldersIn(t, 2, models.FolderTransfer)

	_, err := r.CreateCarton(CartonInput{Capacity: 500}, "OPR-003")
	requireRepoCode(t, err, workflow.CodeConstraint)

	carton, err := r.CreateCarton(CartonInput{Number: "C-009", Capacity: 1}, "OPR-003")
	requireOK(t, err)
	carton, err = r.IncrementCartonNumber(carton.ID, "OPR-003")
	requireOK(t, err)
	assert.Equal(t, "C-010", carton.Number)

	_, err = r.AddFolderToCarton(carton.ID, folders[0].ID, "OPR-003")
	requireOK(t, err)
	_, err = r.AddFolderToCarton(carton.ID, folders[1].ID, "OPR-003")
	requireRepoCode(t, err, workflow.CodeCapacity)

	_, err = r.IncrementCartonNumber(carton.ID, "OPR-003")
	requireRepoCode(t, err, workflow.CodeInvalidState)

	carton, err = r.RemoveFolderFromCarton(carton.ID, folders[0].ID, "OPR-003")
	requireOK(t, err)
	assert.Equal(t, models.CartonOpen, carton.State)
	assert.Nil(t, env.folder(t, folders[0].ID).CartonID)

	_, err = r.CreateCarton(CartonInput{Number: "C-010", Capacity: 1}, "OPR-003")
	requireRepoCode(t, err, ErrCodeDuplicate)
}

func TestStageRecordGuards(t *testing.T) {
	env := newTestEnv(t)
	r := env.repo
	folders := env.foldersIn(t, 1, models.FolderReceived)
	id := folders[0].ID

	_, err := r.OpenProcessing(id, "OPR-002", ProcessingPatch{})
	requireRepoCode(t, err, workflow.CodeInvalidState)

	_, err = r.StartFolderProcessing(id, "OPR-002")
	requireOK(t, err)
	p, err := r.OpenProcessing(id, "OPR-002", ProcessingPatch{Radical: ptr("RAD777"), AgencyCode: ptr("AG02")})
	requireOK(t, err)
	assert.Equal(t, models.StageInProgress, p.State)
	assert.Equal(t, "RAD777", env.folder(t, id).Radical)

	_, err = r.OpenProcessing(id, "OPR-002", ProcessingPatch{})
	requireRepoCode(t, err, workflow.CodeInvalidState)

	_, err = r.StageAction(StageProcessing, p.ID, ActionFinish, "OPR-002")
	requireRepoCode(t, err, workflow.CodeMissingField)

	_, err = r.StageAction(StageProcessing, p.ID, ActionError, "OPR-002")
	requireRepoCode(t, err, workflow.CodeInvalidState)

	_, err = r.StageAction(StageProcessing, p.ID, ActionPause, "OPR-002")
	requireOK(t, err)
	env.clock.advance(5 * time.Minute)
	_, err = r.StageAction(StageProcessing, p.ID, ActionResume, "OPR-002")
	requireOK(t, err)

	_, err = r.UpdateProcessing(p.ID, ProcessingPatch{AgencyCode: ptr("A")})
	requireRepoCode(t, err, workflow.CodeConstraint)
	p, err = r.UpdateProcessing(p.ID, ProcessingPatch{PiecesProcessed: ptr(12)})
	requireOK(t, err)

	env.clock.advance(25 * time.Minute)
	_, err = r.StageAction(StageProcessing, p.ID, ActionValidate, "OPR-002")
	requireRepoCode(t, err, workflow.CodeInvalidState)
	_, err = r.StageAction(StageProcessing, p.ID, ActionFinish, "OPR-002")
	requireOK(t, err)

	// a finished record lets the folder move on without validation
	f, err := r.CompleteFolderProcessing(id, "OPR-002")
	requireOK(t, err)
	assert.Equal(t, models.FolderTransfer, f.State)
	assert.InDelta(t, 25.0, f.ProcessingMinutes, 1e-6)

	stage, err := r.GetStage(StageProcessing, p.ID)
	requireOK(t, err)
	assert.Equal(t, 1, stage.StageTimer().PauseCount)

	f, err = r.StepBackFolder(id, "OPR-002")
	requireOK(t, err)
	assert.Equal(t, models.FolderProcessing, f.State)

	_, err = r.StageAction(StageScan, p.ID, ActionFinish, "")
	requireRepoCode(t, err, ErrCodeNotFound)
	_, err = r.StageAction(StageScan, p.ID, "rewind", "")
	requireRepoCode(t, err, ErrCodeInvalidInput)
}

func TestIndexingAdvancesOnceEveryEntryValidated(t *testing.T) {
	env := newTestEnv(t)
	r := env.repo
	folders := env.foldersIn(t, 1, models.FolderIndexing)
	id := folders[0].ID

	first, err := r.OpenIndexing(id, "OPR-005", IndexingPatch{Title: ptr("Contract"), DocumentType: ptr(models.DocContract), PiecesIndexed: ptr(3)})
	requireOK(t, err)
	second, err := r.OpenIndexing(id, "OPR-005", IndexingPatch{Title: ptr("ID card"), DocumentType: ptr(models.DocIdentity), PiecesIndexed: ptr(1)})
	requireOK(t, err)
	_, err = r.OpenIndexing(id, "OPR-005", IndexingPatch{DocumentDate: ptr(t0.Add(48 * time.Hour))})
	requireRepoCode(t, err, workflow.CodeConstraint)

	env.runStage(t, StageIndexing, first.ID, 6*time.Minute)
	assert.Equal(t, models.FolderIndexing, env.folder(t, id).State)

	_, err = r.StageAction(StageIndexing, second.ID, ActionError, "OPR-005")
	requireOK(t, err)
	_, err = r.StageAction(StageIndexing, second.ID, ActionReopen, "OPR-005")
	requireOK(t, err)
	env.runStage(t, StageIndexing, second.ID, 4*time.Minute)

	f := env.folder(t, id)
	assert.Equal(t, models.FolderDelivery, f.State)
	assert.Equal(t, 4, f.IndexedDocuments)
	assert.Len(t, f.Indexings, 2)

	_, err = r.OpenIndexing(id, "OPR-005", IndexingPatch{Title: ptr("Late entry")})
	requireRepoCode(t, err, workflow.CodeInvalidState)
}

func TestNotificationsReachActiveGroupMembers(t *testing.T) {
	env := newTestEnv(t)
	r := env.repo

	_, err := r.CreateOperator(OperatorInput{ID: "OPR-010", Name: "Quiet agent", Group: models.GroupProcessingAgent, ReceiveNotifications: ptr(false)})
	requireOK(t, err)
	_, err = r.CreateOperator(OperatorInput{ID: "OPR-011", Name: "Second agent", Group: models.GroupProcessingAgent})
	requireOK(t, err)
	_, err = r.CreateOperator(OperatorInput{Name: "Nobody", Group: "janitor"})
	requireRepoCode(t, err, ErrCodeInvalidInput)

	_, err = r.CreateIntake(IntakeInput{DeliverySlip: "BL-3", DeclaredCount: 2, StartProcessing: true}, "OPR-001")
	requireOK(t, err)

	for id, want := range map[string]int{"OPR-002": 2, "OPR-011": 2, "OPR-010": 0, "OPR-003": 0} {
		messages, err := env.inbox.Messages(id)
		require.NoError(t, err)
		assert.Len(t, messages, want, id)
	}

	agents, err := r.ListOperators(models.GroupProcessingAgent)
	requireOK(t, err)
	assert.Len(t, agents, 3)
}

func TestKPIReportIsRecomputedIdentically(t *testing.T) {
	env := newTestEnv(t)
	env.runPipeline(t)

	period, perr := workflow.DayRange(t0, t0)
	require.NoError(t, perr)

	first, err := env.repo.Report(context.Background(), period)
	requireOK(t, err)
	second, err := env.repo.Report(context.Background(), period)
	requireOK(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, int64(1), first.Reception.Intakes)
	assert.Equal(t, int64(1), first.Reception.FoldersReceived)
	assert.Equal(t, 1, first.Processing.Count)
	assert.InDelta(t, 30.0, first.Processing.AverageEffective, 1e-6)
	assert.InDelta(t, 40.0/30.0, first.Processing.AverageSpeed, 1e-6)
	assert.Equal(t, 1, first.Scan.Count)
	assert.Equal(t, 40, first.Indexing.Units)
	assert.Equal(t, int64(1), first.Output.CompletedIntakes)
	assert.Equal(t, int64(1), first.Output.DeliveredFolders)
	assert.Equal(t, int64(1), first.Output.DeliveriesDone)
	assert.Equal(t, int64(1), first.Output.DeliveriesByMethod[string(models.MethodSecureShare)])
	assert.Zero(t, first.Errors.Total)
	assert.Zero(t, first.Errors.Rate)
	assert.Zero(t, first.Trends.Reception)
	require.Len(t, first.Agents, 3)
	assert.Equal(t, "OPR-002", first.Agents[0].OperatorID)
	assert.Equal(t, "Youssef Alaoui", first.Agents[0].Name)

	stats, err := env.repo.DeliveryStatistics()
	requireOK(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.ByState[models.DeliveryDelivered])
}
