package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/sweeper/config"
	"github.com/yairfalse/sweeper/providers"
	"github.com/yairfalse/sweeper/telemetry"
	"github.com/yairfalse/sweeper/types"
)

// testProvider is an in-memory estate shared across regions.
type testProvider struct {
	account string
	region  string
	estate  *testEstate
}

// testEstate tracks mutations across provider instances.
type testEstate struct {
	mu        sync.Mutex
	resources []types.Resource
	deleted   map[string]bool
	tagged    map[string]map[string]string
	tagErr    error
}

func newTestEstate(resources ...types.Resource) *testEstate {
	return &testEstate{
		resources: resources,
		deleted:   map[string]bool{},
		tagged:    map[string]map[string]string{},
	}
}

func (p *testProvider) Name() string      { return "test" }
func (p *testProvider) Region() string    { return p.region }
func (p *testProvider) AccountID() string { return p.account }

func (p *testProvider) ListResources(ctx context.Context) ([]types.Resource, error) {
	p.estate.mu.Lock()
	defer p.estate.mu.Unlock()
	var out []types.Resource
	for _, res := range p.estate.resources {
		if res.Region == p.region && res.Account == p.account && !p.estate.deleted[res.ID] {
			out = append(out, res)
		}
	}
	return out, nil
}

func (p *testProvider) ListGlobalResources(ctx context.Context) ([]types.Resource, error) {
	return nil, nil
}

func (p *testProvider) TagResource(ctx context.Context, res *types.Resource, tags map[string]string) error {
	p.estate.mu.Lock()
	defer p.estate.mu.Unlock()
	if p.estate.tagErr != nil {
		return p.estate.tagErr
	}
	p.estate.tagged[res.ID] = tags
	return nil
}

func (p *testProvider) DeleteResource(ctx context.Context, res *types.Resource) error {
	p.estate.mu.Lock()
	defer p.estate.mu.Unlock()
	p.estate.deleted[res.ID] = true
	return nil
}

func testResource(account, service, resType, nativeID string, tags map[string]string) types.Resource {
	if tags == nil {
		tags = map[string]string{}
	}
	return types.Resource{
		ID:       types.ResourceID(account, "eu-west-1", service, nativeID),
		NativeID: nativeID,
		Service:  service,
		Type:     resType,
		Region:   "eu-west-1",
		Account:  account,
		Name:     nativeID,
		Tags:     tags,
	}
}

func testEngine(t *testing.T, estate *testEstate) *Engine {
	t.Helper()

	providerName := "test-" + t.Name()
	providers.RegisterProvider(providerName, func(ctx context.Context, cfg providers.ProviderConfig) (providers.CloudProvider, error) {
		return &testProvider{account: cfg.Profile, region: cfg.Region, estate: estate}, nil
	})

	cfg := &config.Config{
		Version:            "1",
		Provider:           providerName,
		Profiles:           []string{"111122223333"},
		Regions:            []string{"eu-west-1"},
		RestrictedAccounts: []string{"999988887777"},
		DataDir:            t.TempDir(),
		ScanWorkers:        2,
		CallTimeout:        time.Second,
		MaxRetries:         1,
	}

	e, err := New(cfg, telemetry.NewLogger("sweeper-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestSweepDryRunMutatesNothing(t *testing.T) {
	estate := newTestEstate(
		testResource("111122223333", "ec2", "instance", "i-scratch", nil),
		testResource("111122223333", "ec2", "instance", "i-keeper", map[string]string{
			types.PreserveTagKey: types.PreserveTagValue,
		}),
	)

	e := testEngine(t, estate)
	record, err := e.Sweep(context.Background(), types.ModeDryRun)
	require.NoError(t, err)

	assert.Empty(t, estate.deleted)
	assert.Empty(t, estate.tagged)
	assert.Equal(t, 1, record.Preserved)
	assert.Equal(t, types.ModeDryRun, record.Mode)
	assert.False(t, record.Failed())
}

func TestSweepLiveDeletesAndTags(t *testing.T) {
	keeper := testResource("111122223333", "ec2", "instance", "i-controltower", nil)
	keeper.Name = "aws-controltower-baseline"
	scratch := testResource("111122223333", "ec2", "instance", "i-scratch", nil)

	estate := newTestEstate(keeper, scratch)
	e := testEngine(t, estate)

	record, err := e.Sweep(context.Background(), types.ModeLive)
	require.NoError(t, err)

	assert.True(t, estate.deleted[scratch.ID])
	assert.False(t, estate.deleted[keeper.ID])

	tags := estate.tagged[keeper.ID]
	require.NotNil(t, tags, "preserved resource should be tagged")
	assert.Equal(t, types.PreserveTagValue, tags[types.PreserveTagKey])
	assert.NotEmpty(t, tags[types.ReasonTagKey])

	assert.Equal(t, 1, record.Preserved)
	assert.GreaterOrEqual(t, record.Counts[types.OutcomeSuccess], 2)
}

func TestSweepRerunShortCircuitsDeletedResources(t *testing.T) {
	scratch := testResource("111122223333", "ec2", "instance", "i-scratch", nil)
	estate := newTestEstate(scratch)
	e := testEngine(t, estate)

	first, err := e.Sweep(context.Background(), types.ModeLive)
	require.NoError(t, err)
	require.True(t, estate.deleted[scratch.ID])
	assert.Equal(t, 1, first.Counts[types.OutcomeSuccess])

	// Simulate the estate still reporting the resource (eventual
	// consistency): the engine must trust its own outcome record.
	estate.mu.Lock()
	estate.deleted = map[string]bool{}
	estate.mu.Unlock()

	second, err := e.Sweep(context.Background(), types.ModeLive)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Counts[types.OutcomeAlreadySatisfied])
	assert.False(t, estate.deleted[scratch.ID], "no second delete call")
}

func TestSweepSurfacesTagFailures(t *testing.T) {
	keeper := testResource("111122223333", "ec2", "instance", "i-controltower", nil)
	keeper.Name = "aws-controltower-baseline"

	estate := newTestEstate(keeper)
	estate.tagErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized"}

	e := testEngine(t, estate)
	record, err := e.Sweep(context.Background(), types.ModeLive)
	require.NoError(t, err)

	assert.True(t, record.Failed(), "a failed preserve-tag write must fail the run")
	assert.Equal(t, 1, record.Counts[types.OutcomeFailed])
	assert.False(t, estate.deleted[keeper.ID])
}

func TestClassifyUsesConfiguredRestrictedAccounts(t *testing.T) {
	e := testEngine(t, newTestEstate())

	audit := testResource("999988887777", "ec2", "instance", "i-audit", nil)
	audit.Account = "999988887777"
	audit.ID = types.ResourceID("999988887777", "eu-west-1", "ec2", "i-audit")

	verdicts := e.Classify([]types.Resource{audit})
	assert.Equal(t, types.VerdictPreserve, verdicts[audit.ID].Verdict)
}
