package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/yairfalse/sweeper/types"
)

// ResourceLister lists a specific type of AWS resource
type ResourceLister interface {
	List(ctx context.Context, p *Provider) ([]types.Resource, error)
	Name() string
	IsCritical() bool // Critical failures are reported to the caller, optional ones only warn
}

// listerRegistry holds resource listers for one scope
type listerRegistry struct {
	listers []ResourceLister
}

// newRegionalRegistry returns listers that run once per (account, region)
func newRegionalRegistry() *listerRegistry {
	return &listerRegistry{
		listers: []ResourceLister{
			// Critical resources - must succeed
			&EC2InstanceLister{},
			&RDSLister{},
			&VPCLister{},
			&StackLister{},

			// Optional resources - log warnings on failure
			&AutoScalingGroupLister{},
			&ECSLister{},
			&EKSLister{},
			&LambdaLister{},
			&SQSLister{},
			&DynamoDBLister{},
			&RedshiftLister{},
			&MemoryDBLister{},
			&ECRLister{},
			&LoadBalancerLister{},
			&NATGatewayLister{},
			&InternetGatewayLister{},
			&SecurityGroupLister{},
			&ElasticIPLister{},
			&LogGroupLister{},
			&CloudTrailLister{},
			&KMSLister{},
		},
	}
}

// newGlobalRegistry returns listers that run once per account
func newGlobalRegistry() *listerRegistry {
	return &listerRegistry{
		listers: []ResourceLister{
			&S3Lister{},
			&Route53Lister{},
			&IAMRoleLister{},
			&BudgetLister{},
		},
	}
}

// ListResources discovers all regional resources in this account/region
func (p *Provider) ListResources(ctx context.Context) ([]types.Resource, error) {
	return p.regional.listAll(ctx, p)
}

// ListGlobalResources discovers account-wide resources
func (p *Provider) ListGlobalResources(ctx context.Context) ([]types.Resource, error) {
	return p.global.listAll(ctx, p)
}

// listAll runs every registered lister, isolating failures: one failing
// service never hides what the others found. Every failure is logged;
// failures of critical listers are additionally reported back so the
// caller can surface the inventory gap, alongside the partial results.
func (r *listerRegistry) listAll(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var allResources []types.Resource
	var failed []string

	for _, lister := range r.listers {
		resources, err := lister.List(ctx, p)
		if err != nil {
			p.logger.Warn().
				Str("lister", lister.Name()).
				Str("region", p.region).
				Str("account", p.accountID).
				Err(err).
				Msg("failed to list resources")
			if lister.IsCritical() {
				failed = append(failed, fmt.Sprintf("%s: %v", lister.Name(), err))
			}
			continue
		}
		allResources = append(allResources, resources...)
	}

	if len(failed) > 0 {
		return allResources, fmt.Errorf("critical listers failed: %s", strings.Join(failed, "; "))
	}

	return allResources, nil
}
