package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	route53types "github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/yairfalse/sweeper/types"
)

// Route53Lister discovers hosted zones
type Route53Lister struct{}

func (l *Route53Lister) Name() string     { return "route53-zones" }
func (l *Route53Lister) IsCritical() bool { return false }

func (l *Route53Lister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := route53.NewListHostedZonesPaginator(p.route53Client, &route53.ListHostedZonesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list hosted zones: %w", err)
		}

		for _, zone := range output.HostedZones {
			zoneID := strings.TrimPrefix(aws.ToString(zone.Id), "/hostedzone/")

			res := p.newGlobalResource("route53", "hosted-zone", zoneID)
			res.Name = strings.TrimSuffix(aws.ToString(zone.Name), ".")
			res.Attributes = map[string]any{
				"record_count": aws.ToInt64(zone.ResourceRecordSetCount),
				"private":      zone.Config != nil && zone.Config.PrivateZone,
			}

			tags, err := p.route53Client.ListTagsForResource(ctx, &route53.ListTagsForResourceInput{
				ResourceType: route53types.TagResourceTypeHostedzone,
				ResourceId:   aws.String(zoneID),
			})
			if err != nil || tags.ResourceTagSet == nil {
				res.TagsUnreadable = true
			} else {
				res.Tags = convertTags(tags.ResourceTagSet.Tags)
			}

			resources = append(resources, res)
		}
	}

	return resources, nil
}

// IAMRoleLister discovers IAM roles. Roles are inventoried for the
// report but always preserved by policy; ListRoles omits tags and we
// deliberately skip the per-role tag fetch.
type IAMRoleLister struct{}

func (l *IAMRoleLister) Name() string     { return "iam-roles" }
func (l *IAMRoleLister) IsCritical() bool { return false }

func (l *IAMRoleLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := iam.NewListRolesPaginator(p.iamClient, &iam.ListRolesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list IAM roles: %w", err)
		}

		for _, role := range output.Roles {
			res := p.newGlobalResource("iam", "role", aws.ToString(role.RoleName))
			res.ARN = aws.ToString(role.Arn)
			res.Name = aws.ToString(role.RoleName)
			res.CreatedAt = safeTimeValue(role.CreateDate)
			res.Attributes = map[string]any{
				"path": aws.ToString(role.Path),
			}
			resources = append(resources, res)
		}
	}

	return resources, nil
}

// BudgetLister discovers AWS Budgets
type BudgetLister struct{}

func (l *BudgetLister) Name() string     { return "budgets" }
func (l *BudgetLister) IsCritical() bool { return false }

func (l *BudgetLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := budgets.NewDescribeBudgetsPaginator(p.budgetsClient, &budgets.DescribeBudgetsInput{
		AccountId: aws.String(p.accountID),
	})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe budgets: %w", err)
		}

		for _, budget := range output.Budgets {
			res := p.newGlobalResource("budgets", "budget", aws.ToString(budget.BudgetName))
			res.Name = aws.ToString(budget.BudgetName)
			res.Attributes = map[string]any{
				"budget_type": string(budget.BudgetType),
			}
			resources = append(resources, res)
		}
	}

	return resources, nil
}
