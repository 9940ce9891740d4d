package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/yairfalse/sweeper/types"
)

// VPCLister discovers VPCs
type VPCLister struct{}

func (l *VPCLister) Name() string     { return "vpcs" }
func (l *VPCLister) IsCritical() bool { return true }

func (l *VPCLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ec2.NewDescribeVpcsPaginator(p.ec2Client, &ec2.DescribeVpcsInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe VPCs: %w", err)
		}

		for _, vpc := range output.Vpcs {
			res := p.newResource("ec2", "vpc", aws.ToString(vpc.VpcId))
			res.Tags = convertTags(vpc.Tags)
			res.Name = nameFromTags(res.Tags)
			res.Status = string(vpc.State)
			res.Attributes = map[string]any{
				"cidr_block": aws.ToString(vpc.CidrBlock),
				"is_default": aws.ToBool(vpc.IsDefault),
			}
			resources = append(resources, res)
		}
	}

	return resources, nil
}

// SecurityGroupLister discovers security groups
type SecurityGroupLister struct{}

func (l *SecurityGroupLister) Name() string     { return "security-groups" }
func (l *SecurityGroupLister) IsCritical() bool { return false }

func (l *SecurityGroupLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ec2.NewDescribeSecurityGroupsPaginator(p.ec2Client, &ec2.DescribeSecurityGroupsInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe security groups: %w", err)
		}

		for _, group := range output.SecurityGroups {
			res := p.newResource("ec2", "security-group", aws.ToString(group.GroupId))
			res.Tags = convertTags(group.Tags)
			res.Name = aws.ToString(group.GroupName)
			res.Attributes = map[string]any{
				"vpc_id": aws.ToString(group.VpcId),
				// The default group cannot be deleted, only skipped.
				"is_default": aws.ToString(group.GroupName) == "default",
			}
			resources = append(resources, res)
		}
	}

	return resources, nil
}

// NATGatewayLister discovers NAT gateways
type NATGatewayLister struct{}

func (l *NATGatewayLister) Name() string     { return "nat-gateways" }
func (l *NATGatewayLister) IsCritical() bool { return false }

func (l *NATGatewayLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ec2.NewDescribeNatGatewaysPaginator(p.ec2Client, &ec2.DescribeNatGatewaysInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe NAT gateways: %w", err)
		}

		for _, gateway := range output.NatGateways {
			res := p.newResource("ec2", "nat-gateway", aws.ToString(gateway.NatGatewayId))
			res.Tags = convertTags(gateway.Tags)
			res.Name = nameFromTags(res.Tags)
			res.Status = string(gateway.State)
			res.CreatedAt = safeTimeValue(gateway.CreateTime)
			res.Attributes = map[string]any{
				"vpc_id": aws.ToString(gateway.VpcId),
			}
			resources = append(resources, res)
		}
	}

	return resources, nil
}

// InternetGatewayLister discovers internet gateways
type InternetGatewayLister struct{}

func (l *InternetGatewayLister) Name() string     { return "internet-gateways" }
func (l *InternetGatewayLister) IsCritical() bool { return false }

func (l *InternetGatewayLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ec2.NewDescribeInternetGatewaysPaginator(p.ec2Client, &ec2.DescribeInternetGatewaysInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe internet gateways: %w", err)
		}

		for _, gateway := range output.InternetGateways {
			res := p.newResource("ec2", "internet-gateway", aws.ToString(gateway.InternetGatewayId))
			res.Tags = convertTags(gateway.Tags)
			res.Name = nameFromTags(res.Tags)
			if len(gateway.Attachments) > 0 {
				res.Attributes = map[string]any{
					"vpc_id": aws.ToString(gateway.Attachments[0].VpcId),
				}
			}
			resources = append(resources, res)
		}
	}

	return resources, nil
}

// ElasticIPLister discovers elastic IP allocations
type ElasticIPLister struct{}

func (l *ElasticIPLister) Name() string     { return "elastic-ips" }
func (l *ElasticIPLister) IsCritical() bool { return false }

func (l *ElasticIPLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	output, err := p.ec2Client.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe elastic IPs: %w", err)
	}

	var resources []types.Resource
	for _, address := range output.Addresses {
		res := p.newResource("ec2", "elastic-ip", aws.ToString(address.AllocationId))
		res.Tags = convertTags(address.Tags)
		res.Name = nameFromTags(res.Tags)
		res.Attributes = map[string]any{
			"public_ip":      aws.ToString(address.PublicIp),
			"association_id": aws.ToString(address.AssociationId),
			"in_use":         address.AssociationId != nil,
		}
		resources = append(resources, res)
	}

	return resources, nil
}

// LoadBalancerLister discovers ELBv2 load balancers
type LoadBalancerLister struct{}

func (l *LoadBalancerLister) Name() string     { return "load-balancers" }
func (l *LoadBalancerLister) IsCritical() bool { return false }

func (l *LoadBalancerLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := elasticloadbalancingv2.NewDescribeLoadBalancersPaginator(p.elbv2Client, &elasticloadbalancingv2.DescribeLoadBalancersInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe load balancers: %w", err)
		}

		for _, lb := range output.LoadBalancers {
			res := p.newResource("elbv2", "load-balancer", aws.ToString(lb.LoadBalancerName))
			res.ARN = aws.ToString(lb.LoadBalancerArn)
			res.Name = aws.ToString(lb.LoadBalancerName)
			res.CreatedAt = safeTimeValue(lb.CreatedTime)
			if lb.State != nil {
				res.Status = string(lb.State.Code)
			}
			res.Attributes = map[string]any{
				"type":   string(lb.Type),
				"scheme": string(lb.Scheme),
				"vpc_id": aws.ToString(lb.VpcId),
			}

			// Tags require a separate DescribeTags call per ARN batch.
			tags, err := p.elbv2Client.DescribeTags(ctx, &elasticloadbalancingv2.DescribeTagsInput{
				ResourceArns: []string{aws.ToString(lb.LoadBalancerArn)},
			})
			if err != nil || len(tags.TagDescriptions) == 0 {
				res.TagsUnreadable = true
			} else {
				res.Tags = convertTags(tags.TagDescriptions[0].Tags)
			}

			resources = append(resources, res)
		}
	}

	return resources, nil
}
