package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/sweeper/types"
)

func sampleResult(id string, outcome types.Outcome) types.OperationResult {
	return types.OperationResult{
		ResourceID: id,
		Op:         types.OpDelete,
		Mode:       types.ModeLive,
		Outcome:    outcome,
		Timestamp:  time.Now().UTC(),
	}
}

func TestAppendAndReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	runID := types.NewRunID(time.Now())

	log, err := Open(dir, runID)
	require.NoError(t, err)

	require.NoError(t, log.Append("111122223333", sampleResult("a", types.OutcomeSuccess)))
	require.NoError(t, log.Append("111122223333", sampleResult("b", types.OutcomeFailed)))
	require.NoError(t, log.Append("999988887777", sampleResult("c", types.OutcomeSkipped)))
	require.NoError(t, log.Close())

	var entries []*Entry
	require.NoError(t, Replay(dir, runID, func(e *Entry) error {
		entries = append(entries, e)
		return nil
	}))

	require.Len(t, entries, 3)
	assert.Equal(t, int64(1), entries[0].Sequence)
	assert.Equal(t, int64(3), entries[2].Sequence)
	assert.Equal(t, "a", entries[0].Result.ResourceID)
	assert.Equal(t, runID, entries[0].RunID)
}

func TestPerAccountFilesAreWritten(t *testing.T) {
	dir := t.TempDir()
	runID := "20260823-120000"

	log, err := Open(dir, runID)
	require.NoError(t, err)
	require.NoError(t, log.Append("111122223333", sampleResult("a", types.OutcomeSuccess)))
	require.NoError(t, log.Append("999988887777", sampleResult("b", types.OutcomeSuccess)))
	require.NoError(t, log.Close())

	for _, name := range []string{"run.jsonl", "111122223333.jsonl", "999988887777.jsonl"} {
		_, err := os.Stat(filepath.Join(dir, "runs", runID, name))
		assert.NoError(t, err, name)
	}
}

func TestSummarizeCountsOutcomes(t *testing.T) {
	dir := t.TempDir()
	runID := "20260823-130000"

	log, err := Open(dir, runID)
	require.NoError(t, err)
	require.NoError(t, log.Append("111122223333", sampleResult("a", types.OutcomeSuccess)))
	require.NoError(t, log.Append("111122223333", sampleResult("b", types.OutcomeSuccess)))
	require.NoError(t, log.Append("111122223333", sampleResult("c", types.OutcomeFailed)))
	require.NoError(t, log.Append("999988887777", sampleResult("d", types.OutcomeAlreadySatisfied)))
	require.NoError(t, log.Close())

	record, err := Summarize(dir, runID, types.ModeLive)
	require.NoError(t, err)

	assert.Equal(t, 2, record.Counts[types.OutcomeSuccess])
	assert.Equal(t, 1, record.Counts[types.OutcomeFailed])
	assert.Equal(t, 1, record.Counts[types.OutcomeAlreadySatisfied])
	assert.True(t, record.Failed())
	assert.ElementsMatch(t, []string{"111122223333", "999988887777"}, record.AccountScope)
}

func TestListRuns(t *testing.T) {
	dir := t.TempDir()

	runs, err := ListRuns(dir)
	require.NoError(t, err)
	assert.Empty(t, runs)

	for _, runID := range []string{"20260823-100000", "20260823-110000"} {
		log, err := Open(dir, runID)
		require.NoError(t, err)
		require.NoError(t, log.Close())
	}

	runs, err = ListRuns(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260823-100000", "20260823-110000"}, runs)
}
