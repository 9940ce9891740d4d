// Package tagger applies preservation tags so a later run, or a human
// in the console, can see why a resource survived.
package tagger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	awsprovider "github.com/yairfalse/sweeper/providers/aws"
	"github.com/yairfalse/sweeper/types"
)

// ResourceTagger is the provider-side write surface the tagger needs.
type ResourceTagger interface {
	TagResource(ctx context.Context, res *types.Resource, tags map[string]string) error
}

// Tagger marks preserved resources. Idempotent: a resource that already
// carries the preserve tag is never written again, and a per-resource
// lock keeps concurrent appliers from double-writing.
type Tagger struct {
	mode   types.Mode
	logger zerolog.Logger
	locks  sync.Map // resource ID -> *sync.Mutex
}

// New creates a tagger for the given mode.
func New(mode types.Mode, logger zerolog.Logger) *Tagger {
	return &Tagger{mode: mode, logger: logger}
}

// Apply ensures res carries the preserve tag and its reason. The
// returned result is terminal for this resource in this run.
func (t *Tagger) Apply(ctx context.Context, provider ResourceTagger, res *types.Resource, reason string) types.OperationResult {
	lock := t.lockFor(res.ID)
	lock.Lock()
	defer lock.Unlock()

	result := types.OperationResult{
		ResourceID: res.ID,
		Op:         types.OpTag,
		Mode:       t.mode,
		Timestamp:  time.Now().UTC(),
	}

	// Read before write: the tag may already be there from a previous
	// run, a concurrent applier, or a human.
	if res.HasPreserveTag() {
		result.Outcome = types.OutcomeAlreadySatisfied
		result.Detail = "preserve tag already present"
		return result
	}

	if t.mode == types.ModeDryRun {
		result.Outcome = types.OutcomeSuccess
		result.Detail = fmt.Sprintf("would tag %s=%s (%s)", types.PreserveTagKey, types.PreserveTagValue, reason)
		return result
	}

	tags := map[string]string{
		types.PreserveTagKey: types.PreserveTagValue,
		types.ReasonTagKey:   reason,
	}

	if err := provider.TagResource(ctx, res, tags); err != nil {
		// A type that cannot carry tags is preserved by its verdict
		// alone; everything else is a real failure and stays one.
		if awsprovider.ClassifyError(err) == awsprovider.ErrorUnsupported {
			t.logger.Debug().
				Str("resource", res.ID).
				Msg("resource type does not support tagging")
			result.Outcome = types.OutcomeSkipped
			result.Detail = "untaggable: " + err.Error()
			return result
		}
		t.logger.Error().
			Str("resource", res.ID).
			Err(err).
			Msg("failed to apply preserve tag")
		result.Outcome = types.OutcomeFailed
		result.Detail = err.Error()
		return result
	}

	// Reflect the write in memory so a re-run over the same inventory
	// sees the tag without another scan.
	if res.Tags == nil {
		res.Tags = map[string]string{}
	}
	res.Tags[types.PreserveTagKey] = types.PreserveTagValue
	res.Tags[types.ReasonTagKey] = reason

	t.logger.Info().
		Str("resource", res.ID).
		Str("reason", reason).
		Msg("preserve tag applied")

	result.Outcome = types.OutcomeSuccess
	result.Detail = reason
	return result
}

func (t *Tagger) lockFor(id string) *sync.Mutex {
	actual, _ := t.locks.LoadOrStore(id, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
