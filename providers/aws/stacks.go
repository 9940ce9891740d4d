package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/yairfalse/sweeper/types"
)

// StackLister discovers CloudFormation stacks along with the physical
// IDs of the resources they own. The scanner uses member IDs to fold
// stack-owned resources out of the individual delete plan.
type StackLister struct{}

func (l *StackLister) Name() string     { return "cloudformation-stacks" }
func (l *StackLister) IsCritical() bool { return true }

func (l *StackLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := cloudformation.NewDescribeStacksPaginator(p.cfnClient, &cloudformation.DescribeStacksInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe stacks: %w", err)
		}

		for _, stack := range output.Stacks {
			if stack.StackStatus == cfntypes.StackStatusDeleteComplete {
				continue
			}
			// Nested stacks are deleted through their root.
			if stack.RootId != nil {
				continue
			}

			res := p.newResource("cloudformation", "stack", aws.ToString(stack.StackName))
			res.ARN = aws.ToString(stack.StackId)
			res.Name = aws.ToString(stack.StackName)
			res.Tags = convertTags(stack.Tags)
			res.CreatedAt = safeTimeValue(stack.CreationTime)
			res.Status = string(stack.StackStatus)
			res.Attributes = map[string]any{
				"termination_protection": aws.ToBool(stack.EnableTerminationProtection),
			}

			members, err := l.listMemberIDs(ctx, p, aws.ToString(stack.StackName))
			if err != nil {
				p.logger.Warn().
					Str("stack", aws.ToString(stack.StackName)).
					Err(err).
					Msg("failed to list stack resources")
			} else if len(members) > 0 {
				res.Attributes["member_ids"] = members
			}

			resources = append(resources, res)
		}
	}

	return resources, nil
}

// listMemberIDs collects the physical resource IDs a stack manages.
func (l *StackLister) listMemberIDs(ctx context.Context, p *Provider, stackName string) ([]string, error) {
	var members []string

	paginator := cloudformation.NewListStackResourcesPaginator(p.cfnClient, &cloudformation.ListStackResourcesInput{
		StackName: aws.String(stackName),
	})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, summary := range output.StackResourceSummaries {
			if id := aws.ToString(summary.PhysicalResourceId); id != "" {
				members = append(members, id)
			}
		}
	}

	return members, nil
}
