package providers

import (
	"context"
	"fmt"

	"github.com/yairfalse/sweeper/types"
)

// CloudProvider is a per-account, per-region handle to one cloud
// backend. Discovery, tagging, and deletion all go through it so the
// engine never touches an SDK directly.
type CloudProvider interface {
	// ListResources discovers every regional resource the provider
	// knows how to enumerate.
	ListResources(ctx context.Context) ([]types.Resource, error)

	// ListGlobalResources discovers account-wide resources (IAM,
	// Route53, S3, budgets). Called once per account, not per region.
	ListGlobalResources(ctx context.Context) ([]types.Resource, error)

	// TagResource applies tags to a resource, merging with whatever
	// tags it already carries.
	TagResource(ctx context.Context, res *types.Resource, tags map[string]string) error

	// DeleteResource removes a resource, clearing provider-side
	// guard rails (deletion protection, bucket contents) first.
	DeleteResource(ctx context.Context, res *types.Resource) error

	// Provider info
	Name() string
	Region() string
	AccountID() string
}

// ProviderConfig holds what a factory needs to build a provider.
type ProviderConfig struct {
	Profile string
	Region  string
}

// ProviderFactory creates a provider instance.
type ProviderFactory func(ctx context.Context, config ProviderConfig) (CloudProvider, error)

// Registry of available providers
var providerFactories = make(map[string]ProviderFactory)

// RegisterProvider registers a new provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	providerFactories[name] = factory
}

// GetProvider creates a provider instance by name.
func GetProvider(ctx context.Context, name string, config ProviderConfig) (CloudProvider, error) {
	factory, exists := providerFactories[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return factory(ctx, config)
}

// ListProviders returns available provider names.
func ListProviders() []string {
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	return names
}
