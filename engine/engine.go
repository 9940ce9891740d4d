// Package engine orchestrates the decommissioning pipeline: discover
// the estate, classify every resource, tag what survives, and delete
// the rest in dependency order.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/sweeper/config"
	"github.com/yairfalse/sweeper/executor"
	"github.com/yairfalse/sweeper/planner"
	"github.com/yairfalse/sweeper/policy"
	"github.com/yairfalse/sweeper/providers"
	"github.com/yairfalse/sweeper/results"
	"github.com/yairfalse/sweeper/scanner"
	"github.com/yairfalse/sweeper/storage"
	"github.com/yairfalse/sweeper/tagger"
	"github.com/yairfalse/sweeper/telemetry"
	"github.com/yairfalse/sweeper/types"
)

// Engine drives a full decommissioning run.
type Engine struct {
	cfg    *config.Config
	pol    *policy.Policy
	logger *telemetry.Logger
	tracer trace.Tracer

	inventory *storage.Inventory

	mu             sync.Mutex
	byProfile      map[string]providers.CloudProvider // profile/region
	byAccount      map[string]providers.CloudProvider // accountID/region
	accountDefault map[string]providers.CloudProvider // accountID -> any region
}

// New builds an engine. The effective policy is the built-in rules
// followed by the rules from cfg.PolicyFile, in that order.
func New(cfg *config.Config, logger *telemetry.Logger) (*Engine, error) {
	pol := policy.Default(cfg.ProtectedDomain, cfg.RestrictedAccounts)
	if cfg.PolicyFile != "" {
		loaded, err := policy.Load(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy: %w", err)
		}
		pol.Rules = append(pol.Rules, loaded.Rules...)
	}

	inventory, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory: %w", err)
	}

	return &Engine{
		cfg:            cfg,
		pol:            pol,
		logger:         logger,
		tracer:         otel.Tracer("sweeper/engine"),
		inventory:      inventory,
		byProfile:      make(map[string]providers.CloudProvider),
		byAccount:      make(map[string]providers.CloudProvider),
		accountDefault: make(map[string]providers.CloudProvider),
	}, nil
}

// Close releases the engine's storage.
func (e *Engine) Close() error {
	return e.inventory.Close()
}

// Policy exposes the effective policy, for plan explanations.
func (e *Engine) Policy() *policy.Policy {
	return e.pol
}

// Scan discovers the estate and persists the observations.
func (e *Engine) Scan(ctx context.Context) (*scanner.Result, error) {
	ctx, span := e.tracer.Start(ctx, "scan")
	defer span.End()

	s := scanner.New(e.providerFor, e.cfg.ScanWorkers, e.logger.Logger)
	result, err := s.Scan(ctx, e.cfg.Profiles, e.cfg.Regions)
	if err != nil {
		return result, err
	}

	for _, scanErr := range result.Errors {
		e.logger.WithContext(ctx).Warn().
			Str("profile", scanErr.Profile).
			Str("region", scanErr.Region).
			Err(scanErr.Err).
			Msg("scan slice failed")
	}

	if len(result.Resources) > 0 {
		if _, err := e.inventory.RecordScan(result.Resources); err != nil {
			return result, fmt.Errorf("failed to record scan: %w", err)
		}
	}

	span.SetAttributes(
		attribute.Int("resources", len(result.Resources)),
		attribute.Int("failed_slices", len(result.Errors)),
	)
	return result, nil
}

// Classify runs the policy over an inventory.
func (e *Engine) Classify(resources []types.Resource) map[string]types.Classification {
	return policy.ClassifyAll(resources, e.pol)
}

// Tag applies preservation tags to every preserve verdict.
func (e *Engine) Tag(ctx context.Context, resources []types.Resource, verdicts map[string]types.Classification, mode types.Mode) []types.OperationResult {
	ctx, span := e.tracer.Start(ctx, "tag")
	defer span.End()

	t := tagger.New(mode, e.logger.Logger)

	var out []types.OperationResult
	for i := range resources {
		res := &resources[i]
		verdict, ok := verdicts[res.ID]
		if !ok || verdict.Verdict != types.VerdictPreserve {
			continue
		}

		provider, err := e.lookupProvider(res)
		if err != nil {
			out = append(out, types.OperationResult{
				ResourceID: res.ID,
				Op:         types.OpTag,
				Mode:       mode,
				Outcome:    types.OutcomeFailed,
				Detail:     err.Error(),
				Timestamp:  time.Now().UTC(),
			})
			continue
		}

		out = append(out, t.Apply(ctx, provider, res, verdict.Reason))
	}

	span.SetAttributes(attribute.Int("tagged", len(out)))
	return out
}

// Plan builds the deletion plan, short-circuiting resources a previous
// live run already removed.
func (e *Engine) Plan(resources []types.Resource, verdicts map[string]types.Classification) (*planner.Plan, []types.OperationResult) {
	var already []types.OperationResult
	remaining := make([]types.Resource, 0, len(resources))

	for _, res := range resources {
		verdict, ok := verdicts[res.ID]
		if ok && verdict.Verdict == types.VerdictDelete && e.inventory.AlreadyDeleted(res.ID) {
			already = append(already, types.OperationResult{
				ResourceID: res.ID,
				Op:         types.OpDelete,
				Mode:       types.ModeLive,
				Outcome:    types.OutcomeAlreadySatisfied,
				Detail:     "deleted in a previous run",
				Timestamp:  time.Now().UTC(),
			})
			continue
		}
		remaining = append(remaining, res)
	}

	return planner.Build(remaining, verdicts), already
}

// Execute runs the deletion plan.
func (e *Engine) Execute(ctx context.Context, plan *planner.Plan, mode types.Mode) []types.OperationResult {
	ctx, span := e.tracer.Start(ctx, "execute")
	defer span.End()

	lookup := func(res *types.Resource) (executor.ResourceDeleter, error) {
		return e.lookupProvider(res)
	}

	exec := executor.New(lookup, executor.Options{
		Mode:        mode,
		Restricted:  e.cfg.RestrictedAccounts,
		CallTimeout: e.cfg.CallTimeout,
		MaxRetries:  e.cfg.MaxRetries,
	}, e.logger.Logger)

	out := exec.Run(ctx, plan)
	span.SetAttributes(attribute.Int("operations", len(out)))
	return out
}

// Sweep runs the whole pipeline and persists every outcome. The
// returned record summarizes the run; err is reserved for failures of
// the machinery itself, not of individual operations.
func (e *Engine) Sweep(ctx context.Context, mode types.Mode) (*types.RunRecord, error) {
	ctx, span := e.tracer.Start(ctx, "sweep",
		trace.WithAttributes(attribute.String("mode", string(mode))))
	defer span.End()

	record := types.NewRunRecord(mode, e.cfg.Profiles, time.Now().UTC())
	e.logger.LogRunStart(ctx, record.RunID, string(mode), len(e.cfg.Profiles), len(e.cfg.Regions))

	log, err := results.Open(e.cfg.DataDir, record.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	defer func() { _ = log.Close() }()

	scan, err := e.Scan(ctx)
	if err != nil {
		e.logger.LogRunEnd(ctx, record.RunID, 0, err)
		return nil, err
	}

	verdicts := e.Classify(scan.Resources)
	for _, verdict := range verdicts {
		if verdict.Verdict == types.VerdictPreserve {
			record.Preserved++
		}
	}

	persist := func(ops []types.OperationResult) error {
		for _, op := range ops {
			record.Observe(op)
			account := accountOf(op.ResourceID)
			if err := log.Append(account, op); err != nil {
				return err
			}
			if err := e.inventory.RecordOutcome(record.RunID, op); err != nil {
				return err
			}
		}
		return nil
	}

	if err := persist(e.Tag(ctx, scan.Resources, verdicts, mode)); err != nil {
		return nil, fmt.Errorf("failed to persist tag results: %w", err)
	}

	plan, already := e.Plan(scan.Resources, verdicts)
	if err := persist(already); err != nil {
		return nil, fmt.Errorf("failed to persist results: %w", err)
	}
	if err := persist(e.Execute(ctx, plan, mode)); err != nil {
		return nil, fmt.Errorf("failed to persist results: %w", err)
	}

	record.FinishedAt = time.Now().UTC()
	e.logger.LogRunEnd(ctx, record.RunID, record.Counts[types.OutcomeFailed], nil)
	return &record, nil
}

// providerFor builds (and caches) a provider for one (profile, region)
// pair and indexes it by the account it resolved to.
func (e *Engine) providerFor(ctx context.Context, profile, region string) (providers.CloudProvider, error) {
	key := profile + "/" + region

	e.mu.Lock()
	if p, ok := e.byProfile[key]; ok {
		e.mu.Unlock()
		return p, nil
	}
	e.mu.Unlock()

	p, err := providers.GetProvider(ctx, e.cfg.Provider, providers.ProviderConfig{
		Profile: profile,
		Region:  region,
	})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.byProfile[key] = p
	e.byAccount[p.AccountID()+"/"+region] = p
	if _, ok := e.accountDefault[p.AccountID()]; !ok {
		e.accountDefault[p.AccountID()] = p
	}
	e.mu.Unlock()

	return p, nil
}

// lookupProvider finds the provider handle for a scanned resource.
// Global resources fall back to any provider for their account.
func (e *Engine) lookupProvider(res *types.Resource) (providers.CloudProvider, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.byAccount[res.Account+"/"+res.Region]; ok {
		return p, nil
	}
	if p, ok := e.accountDefault[res.Account]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no provider for account %s region %s", res.Account, res.Region)
}

// accountOf extracts the account from a resource ID
// (account/region/service/native-id).
func accountOf(resourceID string) string {
	for i := 0; i < len(resourceID); i++ {
		if resourceID[i] == '/' {
			return resourceID[:i]
		}
	}
	return resourceID
}
