package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/sweeper/planner"
	"github.com/yairfalse/sweeper/types"
)

// fakeDeleter scripts per-resource responses and records call order.
type fakeDeleter struct {
	mu      sync.Mutex
	calls   []string
	errs    map[string][]error // native ID -> responses, popped per call
	deleted map[string]bool
}

func newFakeDeleter() *fakeDeleter {
	return &fakeDeleter{errs: map[string][]error{}, deleted: map[string]bool{}}
}

func (f *fakeDeleter) DeleteResource(ctx context.Context, res *types.Resource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, res.NativeID)

	if queue := f.errs[res.NativeID]; len(queue) > 0 {
		err := queue[0]
		f.errs[res.NativeID] = queue[1:]
		if err != nil {
			return err
		}
	}
	f.deleted[res.NativeID] = true
	return nil
}

func res(account, service, resType, nativeID string) types.Resource {
	return types.Resource{
		ID:       types.ResourceID(account, "eu-west-1", service, nativeID),
		NativeID: nativeID,
		Service:  service,
		Type:     resType,
		Region:   "eu-west-1",
		Account:  account,
	}
}

func planOf(resources ...types.Resource) *planner.Plan {
	verdicts := make(map[string]types.Classification)
	for _, r := range resources {
		verdicts[r.ID] = types.Delete("test")
	}
	return planner.Build(resources, verdicts)
}

func newExecutor(deleter *fakeDeleter, opts Options) *Executor {
	lookup := func(r *types.Resource) (ResourceDeleter, error) { return deleter, nil }
	return New(lookup, opts, zerolog.Nop())
}

func outcomes(results []types.OperationResult) map[string]types.Outcome {
	out := make(map[string]types.Outcome)
	for _, r := range results {
		out[r.ResourceID] = r.Outcome
	}
	return out
}

func TestDryRunNeverCallsProvider(t *testing.T) {
	deleter := newFakeDeleter()
	e := newExecutor(deleter, Options{Mode: types.ModeDryRun})

	target := res("111122223333", "ec2", "instance", "i-1")
	results := e.Run(context.Background(), planOf(target))

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeSuccess, results[0].Outcome)
	assert.Equal(t, "would delete", results[0].Detail)
	assert.Empty(t, deleter.calls)
}

func TestDryRunSkipsRestrictedAccounts(t *testing.T) {
	deleter := newFakeDeleter()
	e := newExecutor(deleter, Options{
		Mode:       types.ModeDryRun,
		Restricted: []string{"999988887777"},
	})

	protected := res("999988887777", "ec2", "instance", "i-audit")
	normal := res("111122223333", "ec2", "instance", "i-dev")

	byID := outcomes(e.Run(context.Background(), planOf(protected, normal)))
	assert.Equal(t, types.OutcomeSkipped, byID[protected.ID])
	assert.Equal(t, types.OutcomeSuccess, byID[normal.ID])
	assert.Empty(t, deleter.calls)
}

func TestLiveDeletesInTierOrder(t *testing.T) {
	deleter := newFakeDeleter()
	e := newExecutor(deleter, Options{Mode: types.ModeLive})

	fn := res("111122223333", "lambda", "function", "fn")
	bucket := res("111122223333", "s3", "bucket", "bkt")
	vpc := res("111122223333", "ec2", "vpc", "vpc-1")
	stack := res("111122223333", "cloudformation", "stack", "stack-1")

	results := e.Run(context.Background(), planOf(stack, vpc, bucket, fn))

	assert.Equal(t, []string{"fn", "bkt", "vpc-1", "stack-1"}, deleter.calls)
	for _, r := range results {
		assert.Equal(t, types.OutcomeSuccess, r.Outcome)
	}
}

func TestRestrictedAccountIsNeverLiveDeleted(t *testing.T) {
	deleter := newFakeDeleter()
	e := newExecutor(deleter, Options{
		Mode:       types.ModeLive,
		Restricted: []string{"999988887777"},
	})

	protected := res("999988887777", "ec2", "instance", "i-audit")
	normal := res("111122223333", "ec2", "instance", "i-dev")

	results := e.Run(context.Background(), planOf(protected, normal))

	byID := outcomes(results)
	assert.Equal(t, types.OutcomeSkipped, byID[protected.ID])
	assert.Equal(t, types.OutcomeSuccess, byID[normal.ID])
	assert.Equal(t, []string{"i-dev"}, deleter.calls)
}

func TestNotFoundCountsAsAlreadySatisfied(t *testing.T) {
	deleter := newFakeDeleter()
	deleter.errs["i-gone"] = []error{
		&smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound"},
	}
	e := newExecutor(deleter, Options{Mode: types.ModeLive})

	target := res("111122223333", "ec2", "instance", "i-gone")
	results := e.Run(context.Background(), planOf(target))

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeAlreadySatisfied, results[0].Outcome)
}

func TestTransientFaultsRetryThenSucceed(t *testing.T) {
	deleter := newFakeDeleter()
	deleter.errs["i-slow"] = []error{
		&smithy.GenericAPIError{Code: "ThrottlingException"},
		&smithy.GenericAPIError{Code: "ThrottlingException"},
		nil,
	}
	e := newExecutor(deleter, Options{Mode: types.ModeLive, MaxRetries: 5})

	target := res("111122223333", "ec2", "instance", "i-slow")
	results := e.Run(context.Background(), planOf(target))

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeSuccess, results[0].Outcome)
	assert.Len(t, deleter.calls, 3)
}

func TestPermanentFaultsDoNotRetry(t *testing.T) {
	deleter := newFakeDeleter()
	deleter.errs["i-denied"] = []error{
		&smithy.GenericAPIError{Code: "AccessDenied"},
		nil, // would succeed on retry, must never be reached
	}
	e := newExecutor(deleter, Options{Mode: types.ModeLive, MaxRetries: 5})

	target := res("111122223333", "ec2", "instance", "i-denied")
	results := e.Run(context.Background(), planOf(target))

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeFailed, results[0].Outcome)
	assert.Contains(t, results[0].Detail, "permission_denied")
	assert.Len(t, deleter.calls, 1)
}

func TestFailureDoesNotStopTheWalk(t *testing.T) {
	deleter := newFakeDeleter()
	deleter.errs["bkt-stuck"] = []error{
		&smithy.GenericAPIError{Code: "BucketNotEmpty"},
	}
	e := newExecutor(deleter, Options{Mode: types.ModeLive})

	stuck := res("111122223333", "s3", "bucket", "bkt-stuck")
	next := res("111122223333", "ec2", "vpc", "vpc-after")

	results := e.Run(context.Background(), planOf(stuck, next))

	byID := outcomes(results)
	assert.Equal(t, types.OutcomeFailed, byID[stuck.ID])
	assert.Equal(t, types.OutcomeSuccess, byID[next.ID])
}

func TestSkippedAndQuarantinedEntriesAreRecorded(t *testing.T) {
	owned := res("111122223333", "ec2", "instance", "i-owned")
	owned.Attributes = map[string]any{
		"owning_stack": types.ResourceID("111122223333", "eu-west-1", "cloudformation", "app"),
	}
	cycA := res("111122223333", "ec2", "security-group", "sg-a")
	cycB := res("111122223333", "ec2", "security-group", "sg-b")
	cycA.ReferencedBy = []string{cycB.ID}
	cycB.ReferencedBy = []string{cycA.ID}

	deleter := newFakeDeleter()
	e := newExecutor(deleter, Options{Mode: types.ModeLive})
	results := e.Run(context.Background(), planOf(owned, cycA, cycB))

	byID := outcomes(results)
	assert.Equal(t, types.OutcomeSkipped, byID[owned.ID])
	assert.Equal(t, types.OutcomeFailed, byID[cycA.ID])
	assert.Equal(t, types.OutcomeFailed, byID[cycB.ID])
	assert.Empty(t, deleter.calls)
}

func TestCancellationSkipsRemainingWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deleter := newFakeDeleter()
	e := newExecutor(deleter, Options{Mode: types.ModeLive})

	a := res("111122223333", "ec2", "instance", "i-a")
	b := res("111122223333", "ec2", "instance", "i-b")
	results := e.Run(ctx, planOf(a, b))

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, types.OutcomeSkipped, r.Outcome)
		assert.Equal(t, "run cancelled", r.Detail)
	}
	assert.Empty(t, deleter.calls)
}

func TestAccountsRunIndependently(t *testing.T) {
	deleter := newFakeDeleter()
	e := newExecutor(deleter, Options{Mode: types.ModeLive, CallTimeout: time.Second})

	devFn := res("111111111111", "lambda", "function", "dev-fn")
	devVPC := res("111111111111", "ec2", "vpc", "dev-vpc")
	prodFn := res("222222222222", "lambda", "function", "prod-fn")

	results := e.Run(context.Background(), planOf(devFn, devVPC, prodFn))
	assert.Len(t, results, 3)

	// Per-account ordering still holds regardless of interleaving.
	devOrder := []string{}
	for _, call := range deleter.calls {
		if call == "dev-fn" || call == "dev-vpc" {
			devOrder = append(devOrder, call)
		}
	}
	assert.Equal(t, []string{"dev-fn", "dev-vpc"}, devOrder)
}
