// Package scanner fans discovery out across accounts and regions and
// assembles the unified inventory the rest of the pipeline works from.
package scanner

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yairfalse/sweeper/providers"
	"github.com/yairfalse/sweeper/types"
)

// ProviderFactory builds a provider for one (profile, region) pair.
// Injected so tests can scan fake estates.
type ProviderFactory func(ctx context.Context, profile, region string) (providers.CloudProvider, error)

// ScanError records one (profile, region) slice where discovery
// failed, wholly or in part. Whatever the slice did find is kept; the
// error only reports the gap.
type ScanError struct {
	Profile string
	Region  string
	Err     error
}

// Result is the outcome of one scan across the whole estate.
type Result struct {
	Resources []types.Resource
	Errors    []ScanError
}

// Scanner discovers resources across accounts and regions with a
// bounded worker pool.
type Scanner struct {
	factory ProviderFactory
	workers int
	logger  zerolog.Logger
}

// New creates a scanner. workers bounds concurrent (profile, region)
// scans; zero or negative means sequential.
func New(factory ProviderFactory, workers int, logger zerolog.Logger) *Scanner {
	if workers < 1 {
		workers = 1
	}
	return &Scanner{factory: factory, workers: workers, logger: logger}
}

type scanJob struct {
	profile string
	region  string
	global  bool // run account-wide listers in this slice
}

// Scan walks every (profile, region) pair. Global listers run exactly
// once per profile, attached to its first region. The returned
// inventory is linked: stack ownership and VPC references are stamped
// onto ReferencedBy and Attributes.
func (s *Scanner) Scan(ctx context.Context, profiles, regions []string) (*Result, error) {
	jobs := make(chan scanJob)
	result := &Result{}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				resources, err := s.scanSlice(ctx, job)
				mu.Lock()
				result.Resources = append(result.Resources, resources...)
				if err != nil {
					result.Errors = append(result.Errors, ScanError{
						Profile: job.profile,
						Region:  job.region,
						Err:     err,
					})
				}
				mu.Unlock()
			}
		}()
	}

	for _, profile := range profiles {
		for i, region := range regions {
			select {
			case <-ctx.Done():
				close(jobs)
				wg.Wait()
				return result, ctx.Err()
			case jobs <- scanJob{profile: profile, region: region, global: i == 0}:
			}
		}
	}
	close(jobs)
	wg.Wait()

	Link(result.Resources)

	return result, nil
}

// scanSlice scans one (profile, region) pair. Partial results travel
// with the error: one failing service adapter never discards what the
// other adapters in the slice found.
func (s *Scanner) scanSlice(ctx context.Context, job scanJob) ([]types.Resource, error) {
	provider, err := s.factory(ctx, job.profile, job.region)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("profile", job.profile).
		Str("region", job.region).
		Bool("global", job.global).
		Msg("scanning")

	resources, listErr := provider.ListResources(ctx)

	if job.global {
		global, globalErr := provider.ListGlobalResources(ctx)
		resources = append(resources, global...)
		if listErr == nil {
			listErr = globalErr
		}
	}

	s.logger.Info().
		Str("profile", job.profile).
		Str("region", job.region).
		Int("resources", len(resources)).
		Msg("scan slice complete")

	return resources, listErr
}
