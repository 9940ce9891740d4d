package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/sweeper/types"
)

func openTestInventory(t *testing.T) *Inventory {
	t.Helper()
	inv, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = inv.Close() })
	return inv
}

func observed(nativeID string) types.Resource {
	return types.Resource{
		ID:       types.ResourceID("111122223333", "eu-west-1", "ec2", nativeID),
		NativeID: nativeID,
		Service:  "ec2",
		Account:  "111122223333",
		Region:   "eu-west-1",
	}
}

func deleteResult(resourceID string, outcome types.Outcome) types.OperationResult {
	return types.OperationResult{
		ResourceID: resourceID,
		Op:         types.OpDelete,
		Mode:       types.ModeLive,
		Outcome:    outcome,
		Timestamp:  time.Now().UTC(),
	}
}

func TestRecordScanAdvancesRevision(t *testing.T) {
	inv := openTestInventory(t)

	rev1, err := inv.RecordScan([]types.Resource{observed("i-1"), observed("i-2")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev1)

	rev2, err := inv.RecordScan([]types.Resource{observed("i-1")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev2)

	state, found := inv.GetState(observed("i-1").ID)
	require.True(t, found)
	assert.Equal(t, int64(1), state.FirstSeenRev)
	assert.Equal(t, int64(2), state.LastSeenRev)
	assert.True(t, state.Exists)
}

func TestRecordOutcomeMarksDeletedResource(t *testing.T) {
	inv := openTestInventory(t)
	res := observed("i-gone")

	_, err := inv.RecordScan([]types.Resource{res})
	require.NoError(t, err)

	require.NoError(t, inv.RecordOutcome("run-1", deleteResult(res.ID, types.OutcomeSuccess)))

	assert.True(t, inv.AlreadyDeleted(res.ID))
	state, found := inv.GetState(res.ID)
	require.True(t, found)
	assert.False(t, state.Exists)
}

func TestDryRunOutcomeIsNotADeletion(t *testing.T) {
	inv := openTestInventory(t)
	res := observed("i-simulated")

	result := deleteResult(res.ID, types.OutcomeSuccess)
	result.Mode = types.ModeDryRun
	require.NoError(t, inv.RecordOutcome("run-1", result))

	assert.False(t, inv.AlreadyDeleted(res.ID))
}

func TestFailedDeleteIsNotSatisfied(t *testing.T) {
	inv := openTestInventory(t)
	res := observed("i-stuck")

	require.NoError(t, inv.RecordOutcome("run-1", deleteResult(res.ID, types.OutcomeFailed)))
	assert.False(t, inv.AlreadyDeleted(res.ID))

	last, found := inv.LastOutcome(res.ID)
	require.True(t, found)
	assert.Equal(t, types.OutcomeFailed, last.Outcome)
}

func TestIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	inv, err := Open(dir)
	require.NoError(t, err)
	_, err = inv.RecordScan([]types.Resource{observed("i-persist")})
	require.NoError(t, err)
	require.NoError(t, inv.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	assert.Equal(t, int64(1), reopened.CurrentRevision())
	state, found := reopened.GetState(observed("i-persist").ID)
	require.True(t, found)
	assert.True(t, state.Exists)
}

func TestGetResourceReturnsLatestObservation(t *testing.T) {
	inv := openTestInventory(t)

	res := observed("i-evolving")
	res.Status = "running"
	_, err := inv.RecordScan([]types.Resource{res})
	require.NoError(t, err)

	res.Status = "stopped"
	_, err = inv.RecordScan([]types.Resource{res})
	require.NoError(t, err)

	loaded, err := inv.GetResource(res.ID)
	require.NoError(t, err)
	assert.Equal(t, "stopped", loaded.Status)
}
