package tagger

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/yairfalse/sweeper/types"
)

type recordingTagger struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *recordingTagger) TagResource(ctx context.Context, res *types.Resource, tags map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls++
	return nil
}

func untagged() *types.Resource {
	return &types.Resource{
		ID:   types.ResourceID("111122223333", "eu-west-1", "ec2", "i-0abc"),
		Tags: map[string]string{},
	}
}

func TestApplyTagsUntaggedResource(t *testing.T) {
	provider := &recordingTagger{}
	tagger := New(types.ModeLive, zerolog.Nop())
	res := untagged()

	result := tagger.Apply(context.Background(), provider, res, "shared networking")

	assert.Equal(t, types.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, types.PreserveTagValue, res.Tags[types.PreserveTagKey])
	assert.Equal(t, "shared networking", res.Tags[types.ReasonTagKey])
}

func TestApplyAlreadyTaggedIsSatisfiedWithoutWrite(t *testing.T) {
	provider := &recordingTagger{}
	tagger := New(types.ModeLive, zerolog.Nop())
	res := untagged()
	res.Tags[types.PreserveTagKey] = types.PreserveTagValue

	result := tagger.Apply(context.Background(), provider, res, "whatever")

	assert.Equal(t, types.OutcomeAlreadySatisfied, result.Outcome)
	assert.Equal(t, 0, provider.calls, "already-tagged resources must not be written")
}

func TestApplyDryRunNeverWrites(t *testing.T) {
	provider := &recordingTagger{}
	tagger := New(types.ModeDryRun, zerolog.Nop())
	res := untagged()

	result := tagger.Apply(context.Background(), provider, res, "keep it")

	assert.Equal(t, types.OutcomeSuccess, result.Outcome)
	assert.Contains(t, result.Detail, "would tag")
	assert.Equal(t, 0, provider.calls)
	assert.Empty(t, res.Tags[types.PreserveTagKey])
}

func TestApplyReportsProviderFailure(t *testing.T) {
	provider := &recordingTagger{err: &smithy.GenericAPIError{
		Code: "AccessDenied", Message: "not authorized to tag",
	}}
	tagger := New(types.ModeLive, zerolog.Nop())
	res := untagged()

	result := tagger.Apply(context.Background(), provider, res, "keep it")

	assert.Equal(t, types.OutcomeFailed, result.Outcome, "a real API failure must stay a failure")
	assert.Contains(t, result.Detail, "AccessDenied")
}

func TestApplyUntaggableTypeIsSkipped(t *testing.T) {
	provider := &recordingTagger{err: &smithy.GenericAPIError{
		Code: "UnsupportedOperation", Message: "tagging is not supported",
	}}
	tagger := New(types.ModeLive, zerolog.Nop())
	res := untagged()

	result := tagger.Apply(context.Background(), provider, res, "keep it")

	assert.Equal(t, types.OutcomeSkipped, result.Outcome)
	assert.Contains(t, result.Detail, "untaggable")
}

func TestApplyConcurrentAppliersWriteOnce(t *testing.T) {
	provider := &recordingTagger{}
	tagger := New(types.ModeLive, zerolog.Nop())
	res := untagged()

	var wg sync.WaitGroup
	results := make([]types.OperationResult, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = tagger.Apply(context.Background(), provider, res, "race")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, provider.calls, "exactly one applier should write")

	satisfied := 0
	for _, r := range results {
		if r.Outcome == types.OutcomeAlreadySatisfied {
			satisfied++
		}
	}
	assert.Equal(t, 7, satisfied)
}
