package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boxable(n int) *models.Folder {
	return &models.Folder{ID: fmt.Sprintf("f%d", n), Number: fmt.Sprintf("DOS/%d", n), State: models.FolderTransfer}
}

func TestCartonFillsUpToCapacity(t *testing.T) {
	c := &models.Carton{ID: "c1", Number: "000001", Capacity: 2, State: models.CartonOpen}
	f1, f2, f3 := boxable(1), boxable(2), boxable(3)

	require.NoError(t, AddToCarton(c, f1))
	assert.Equal(t, models.CartonFilling, c.State)
	assert.Equal(t, "000001", f1.CartonNumber)

	require.NoError(t, AddToCarton(c, f2))
	assert.Equal(t, models.CartonFull, c.State)
	assert.Equal(t, 0, c.Available())
	assert.Equal(t, 100.0, c.FillRatio())

	err := AddToCarton(c, f3)
	requireCode(t, err, CodeCapacity)
	assert.Nil(t, f3.CartonID)
	assert.Equal(t, 2, c.FolderCount)
}

func TestCartonCapacityRejection(t *testing.T) {
	// a filling carton whose count already reached capacity
	c := &models.Carton{ID: "c1", Number: "000001", Capacity: 1, FolderCount: 1, State: models.CartonFilling}
	requireCode(t, AddToCarton(c, boxable(1)), CodeCapacity)
}

func TestSyncFolderCountFollowsMembers(t *testing.T) {
	c := &models.Carton{ID: "c1", Number: "000001", Capacity: 1, FolderCount: 1, State: models.CartonFull}
	SyncFolderCount(c, 0)
	assert.Equal(t, 0, c.FolderCount)
	assert.Equal(t, models.CartonOpen, c.State)
	require.NoError(t, AddToCarton(c, boxable(1)))
	assert.Equal(t, models.CartonFull, c.State)

	closed := &models.Carton{ID: "c2", Number: "000002", Capacity: 3, FolderCount: 3, State: models.CartonClosed}
	SyncFolderCount(closed, 2)
	assert.Equal(t, 2, closed.FolderCount)
	assert.Equal(t, models.CartonClosed, closed.State)
}

func TestCartonRejectsBoxedAndMismatchedFolders(t *testing.T) {
	c := &models.Carton{ID: "c1", Number: "000001", Capacity: 5, State: models.CartonOpen, Kind: models.KindLoan}
	other := "c2"
	boxed := boxable(1)
	boxed.CartonID = &other
	requireCode(t, AddToCarton(c, boxed), CodeInvalidState)

	f := boxable(2)
	f.Kind = models.KindEvent
	requireCode(t, AddToCarton(c, f), CodeConstraint)

	f.Kind = ""
	require.NoError(t, AddToCarton(c, f))
}

func TestCartonRemoveRevertsState(t *testing.T) {
	c := &models.Carton{ID: "c1", Number: "000001", Capacity: 2, State: models.CartonOpen}
	f1, f2 := boxable(1), boxable(2)
	require.NoError(t, AddToCarton(c, f1))
	require.NoError(t, AddToCarton(c, f2))

	require.NoError(t, RemoveFromCarton(c, f2))
	assert.Equal(t, models.CartonFilling, c.State)
	assert.Nil(t, f2.CartonID)
	assert.Empty(t, f2.CartonNumber)

	require.NoError(t, RemoveFromCarton(c, f1))
	assert.Equal(t, models.CartonOpen, c.State)

	requireCode(t, RemoveFromCarton(c, f1), CodeInvalidState)
}

func TestCartonCloseAndScan(t *testing.T) {
	c := &models.Carton{ID: "c1", Number: "000001", Capacity: 3, State: models.CartonOpen}
	requireCode(t, CloseCarton(c), CodeInvalidState)

	f := boxable(1)
	require.NoError(t, AddToCarton(c, f))
	requireCode(t, StartCartonScan(c, t0), CodeInvalidState)
	requireCode(t, FinishCartonScan(c, t0), CodeInvalidState)

	require.NoError(t, CloseCarton(c))
	assert.Equal(t, models.CartonClosed, c.State)
	requireCode(t, AddToCarton(c, boxable(2)), CodeInvalidState)

	require.NoError(t, StartCartonScan(c, t0))
	requireCode(t, RemoveFromCarton(c, f), CodeInvalidState)
	require.NoError(t, FinishCartonScan(c, t0.Add(90*time.Second)))
	assert.InDelta(t, 1.5, c.ScanMinutes(), 1e-9)
}

func TestCheckCapacity(t *testing.T) {
	assert.NoError(t, CheckCapacity(1))
	assert.NoError(t, CheckCapacity(200))
	requireCode(t, CheckCapacity(0), CodeConstraint)
	requireCode(t, CheckCapacity(201), CodeConstraint)
}

func TestIncrementCartonNumber(t *testing.T) {
	tests := map[string]string{
		"000001":   "000002",
		"000099":   "000100",
		"CT-0999":  "CT-1000",
		"CT-9":     "CT-10",
		"CT":       "CT-1",
		"BOX2026A": "BOX2026A-1",
	}
	for in, want := range tests {
		c := &models.Carton{Number: in, State: models.CartonOpen}
		require.NoError(t, IncrementCartonNumber(c))
		assert.Equal(t, want, c.Number, in)
	}

	busy := &models.Carton{Number: "000001", State: models.CartonFilling, FolderCount: 1}
	requireCode(t, IncrementCartonNumber(busy), CodeInvalidState)
}
