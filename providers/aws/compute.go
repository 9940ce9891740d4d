package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/yairfalse/sweeper/types"
)

// EC2InstanceLister discovers EC2 instances
type EC2InstanceLister struct{}

func (l *EC2InstanceLister) Name() string     { return "ec2-instances" }
func (l *EC2InstanceLister) IsCritical() bool { return true }

func (l *EC2InstanceLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ec2.NewDescribeInstancesPaginator(p.ec2Client, &ec2.DescribeInstancesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe EC2 instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				if instance.State != nil && instance.State.Name == ec2types.InstanceStateNameTerminated {
					continue
				}
				resources = append(resources, convertEC2Instance(p, instance))
			}
		}
	}

	return resources, nil
}

func convertEC2Instance(p *Provider, instance ec2types.Instance) types.Resource {
	res := p.newResource("ec2", "instance", aws.ToString(instance.InstanceId))
	res.Tags = convertTags(instance.Tags)
	res.Name = nameFromTags(res.Tags)
	res.CreatedAt = safeTimeValue(instance.LaunchTime)
	if instance.State != nil {
		res.Status = string(instance.State.Name)
	}
	res.Attributes = map[string]any{
		"instance_type": string(instance.InstanceType),
		"vpc_id":        aws.ToString(instance.VpcId),
		"subnet_id":     aws.ToString(instance.SubnetId),
	}
	return res
}

// AutoScalingGroupLister discovers Auto Scaling groups
type AutoScalingGroupLister struct{}

func (l *AutoScalingGroupLister) Name() string     { return "autoscaling-groups" }
func (l *AutoScalingGroupLister) IsCritical() bool { return false }

func (l *AutoScalingGroupLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := autoscaling.NewDescribeAutoScalingGroupsPaginator(p.asgClient, &autoscaling.DescribeAutoScalingGroupsInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe Auto Scaling groups: %w", err)
		}

		for _, group := range output.AutoScalingGroups {
			res := p.newResource("autoscaling", "asg", aws.ToString(group.AutoScalingGroupName))
			res.ARN = aws.ToString(group.AutoScalingGroupARN)
			res.Name = aws.ToString(group.AutoScalingGroupName)
			res.Tags = convertTags(group.Tags)
			res.CreatedAt = safeTimeValue(group.CreatedTime)
			res.Status = aws.ToString(group.Status)
			res.Attributes = map[string]any{
				"desired_capacity": aws.ToInt32(group.DesiredCapacity),
				"instance_count":   len(group.Instances),
			}
			resources = append(resources, res)
		}
	}

	return resources, nil
}

// ECSLister discovers ECS clusters
type ECSLister struct{}

func (l *ECSLister) Name() string     { return "ecs-clusters" }
func (l *ECSLister) IsCritical() bool { return false }

func (l *ECSLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ecs.NewListClustersPaginator(p.ecsClient, &ecs.ListClustersInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list ECS clusters: %w", err)
		}
		if len(output.ClusterArns) == 0 {
			continue
		}

		described, err := p.ecsClient.DescribeClusters(ctx, &ecs.DescribeClustersInput{
			Clusters: output.ClusterArns,
			Include:  []ecstypes.ClusterField{ecstypes.ClusterFieldTags},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe ECS clusters: %w", err)
		}

		for _, cluster := range described.Clusters {
			res := p.newResource("ecs", "cluster", aws.ToString(cluster.ClusterName))
			res.ARN = aws.ToString(cluster.ClusterArn)
			res.Name = aws.ToString(cluster.ClusterName)
			res.Tags = convertTags(cluster.Tags)
			res.Status = aws.ToString(cluster.Status)
			res.Attributes = map[string]any{
				"running_tasks":  cluster.RunningTasksCount,
				"active_service": cluster.ActiveServicesCount,
			}
			resources = append(resources, res)
		}
	}

	return resources, nil
}

// EKSLister discovers EKS clusters
type EKSLister struct{}

func (l *EKSLister) Name() string     { return "eks-clusters" }
func (l *EKSLister) IsCritical() bool { return false }

func (l *EKSLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := eks.NewListClustersPaginator(p.eksClient, &eks.ListClustersInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list EKS clusters: %w", err)
		}

		for _, name := range output.Clusters {
			described, err := p.eksClient.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
			if err != nil {
				return nil, fmt.Errorf("failed to describe EKS cluster %s: %w", name, err)
			}
			cluster := described.Cluster

			res := p.newResource("eks", "cluster", name)
			res.ARN = aws.ToString(cluster.Arn)
			res.Name = name
			res.Tags = convertTags(cluster.Tags)
			res.CreatedAt = safeTimeValue(cluster.CreatedAt)
			res.Status = string(cluster.Status)
			res.Attributes = map[string]any{
				"version": aws.ToString(cluster.Version),
			}
			resources = append(resources, res)
		}
	}

	return resources, nil
}
