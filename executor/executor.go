// Package executor walks a deletion plan and drives the provider,
// folding every attempt into an append-only result set. One failure
// never aborts the run; it is recorded and the walk continues.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/yairfalse/sweeper/planner"
	awsprovider "github.com/yairfalse/sweeper/providers/aws"
	"github.com/yairfalse/sweeper/types"
)

// ResourceDeleter is the provider-side delete surface.
type ResourceDeleter interface {
	DeleteResource(ctx context.Context, res *types.Resource) error
}

// ProviderLookup resolves the provider handle for a resource's
// account and region.
type ProviderLookup func(res *types.Resource) (ResourceDeleter, error)

// Options tune executor behavior.
type Options struct {
	Mode        types.Mode
	Restricted  []string      // account IDs that are never live-deleted
	CallTimeout time.Duration // per-API-call budget
	MaxRetries  uint64        // transient-fault retries per resource
}

// Executor runs deletion plans.
type Executor struct {
	lookup     ProviderLookup
	mode       types.Mode
	restricted map[string]bool
	timeout    time.Duration
	retries    uint64
	logger     zerolog.Logger
}

// New creates an executor.
func New(lookup ProviderLookup, opts Options, logger zerolog.Logger) *Executor {
	restricted := make(map[string]bool, len(opts.Restricted))
	for _, account := range opts.Restricted {
		restricted[account] = true
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 2 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 4
	}
	return &Executor{
		lookup:     lookup,
		mode:       opts.Mode,
		restricted: restricted,
		timeout:    opts.CallTimeout,
		retries:    opts.MaxRetries,
		logger:     logger,
	}
}

// Run executes the plan. Accounts proceed in parallel; within an
// account, tiers run strictly in sequence and entries within a tier in
// plan order. Cancellation is honored between deletes: in-flight calls
// finish, everything not yet started is recorded as skipped.
func (e *Executor) Run(ctx context.Context, plan *planner.Plan) []types.OperationResult {
	var mu sync.Mutex
	var results []types.OperationResult

	record := func(rs ...types.OperationResult) {
		mu.Lock()
		results = append(results, rs...)
		mu.Unlock()
	}

	for _, skip := range plan.Skipped {
		record(e.result(&skip.Resource, types.OutcomeSkipped, skip.Detail))
	}
	for _, q := range plan.Quarantined {
		record(e.result(&q.Resource, types.OutcomeFailed, q.Detail))
	}

	perAccount := splitByAccount(plan)

	var wg sync.WaitGroup
	for account, tiers := range perAccount {
		wg.Add(1)
		go func(account string, tiers [][]types.Resource) {
			defer wg.Done()
			record(e.runAccount(ctx, account, tiers)...)
		}(account, tiers)
	}
	wg.Wait()

	return results
}

// runAccount walks one account's tiers in order.
func (e *Executor) runAccount(ctx context.Context, account string, tiers [][]types.Resource) []types.OperationResult {
	var results []types.OperationResult

	for _, tier := range tiers {
		for i := range tier {
			res := &tier[i]
			if ctx.Err() != nil {
				results = append(results, e.result(res, types.OutcomeSkipped, "run cancelled"))
				continue
			}
			results = append(results, e.deleteOne(ctx, res))
		}
	}

	e.logger.Info().
		Str("account", account).
		Int("operations", len(results)).
		Msg("account sweep complete")

	return results
}

// deleteOne attempts a single deletion, retrying transient faults with
// exponential backoff and mapping the final error to an outcome.
func (e *Executor) deleteOne(ctx context.Context, res *types.Resource) types.OperationResult {
	// Restricted accounts are fenced off in both modes so a dry run
	// predicts exactly what a live run would delete.
	if e.restricted[res.Account] {
		return e.result(res, types.OutcomeSkipped, "restricted account")
	}

	if e.mode == types.ModeDryRun {
		return e.result(res, types.OutcomeSuccess, "would delete")
	}

	provider, err := e.lookup(res)
	if err != nil {
		return e.result(res, types.OutcomeFailed, fmt.Sprintf("no provider: %v", err))
	}

	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		err := provider.DeleteResource(callCtx, res)
		if err == nil || awsprovider.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.retries), ctx)

	err = backoff.Retry(attempt, policy)
	if err == nil {
		e.logger.Info().Str("resource", res.ID).Msg("deleted")
		return e.result(res, types.OutcomeSuccess, "")
	}

	// A target that vanished out from under us is the goal state.
	if awsprovider.IsNotFound(err) {
		return e.result(res, types.OutcomeAlreadySatisfied, "resource no longer exists")
	}

	kind := awsprovider.ClassifyError(err)
	e.logger.Error().
		Str("resource", res.ID).
		Str("kind", string(kind)).
		Err(err).
		Msg("delete failed")

	return e.result(res, types.OutcomeFailed, fmt.Sprintf("%s: %v", kind, err))
}

func (e *Executor) result(res *types.Resource, outcome types.Outcome, detail string) types.OperationResult {
	return types.OperationResult{
		ResourceID: res.ID,
		Op:         types.OpDelete,
		Mode:       e.mode,
		Outcome:    outcome,
		Detail:     detail,
		Timestamp:  time.Now().UTC(),
	}
}

// splitByAccount partitions a plan's tiers per account, keeping the
// intra-tier order intact.
func splitByAccount(plan *planner.Plan) map[string][][]types.Resource {
	perAccount := make(map[string][][]types.Resource)

	for tierIdx, tier := range plan.Tiers {
		for _, res := range tier {
			tiers, ok := perAccount[res.Account]
			if !ok {
				tiers = make([][]types.Resource, len(plan.Tiers))
				perAccount[res.Account] = tiers
			}
			tiers[tierIdx] = append(tiers[tierIdx], res)
			perAccount[res.Account] = tiers
		}
	}

	return perAccount
}
