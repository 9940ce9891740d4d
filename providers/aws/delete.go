package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/memorydb"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	route53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yairfalse/sweeper/types"
)

// DeleteResource removes one resource. Guard rails the platform puts up
// (deletion protection, termination protection, non-empty buckets) are
// cleared first so the delete itself succeeds in one pass.
func (p *Provider) DeleteResource(ctx context.Context, res *types.Resource) error {
	switch res.Service {
	case "ec2":
		return p.deleteEC2Resource(ctx, res)
	case "autoscaling":
		_, err := p.asgClient.DeleteAutoScalingGroup(ctx, &autoscaling.DeleteAutoScalingGroupInput{
			AutoScalingGroupName: aws.String(res.NativeID),
			ForceDelete:          aws.Bool(true),
		})
		return err
	case "ecs":
		_, err := p.ecsClient.DeleteCluster(ctx, &ecs.DeleteClusterInput{
			Cluster: aws.String(res.NativeID),
		})
		return err
	case "eks":
		_, err := p.eksClient.DeleteCluster(ctx, &eks.DeleteClusterInput{
			Name: aws.String(res.NativeID),
		})
		return err
	case "lambda":
		_, err := p.lambdaClient.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
			FunctionName: aws.String(res.NativeID),
		})
		return err
	case "sqs":
		_, err := p.sqsClient.DeleteQueue(ctx, &sqs.DeleteQueueInput{
			QueueUrl: aws.String(attrString(res, "queue_url")),
		})
		return err
	case "rds":
		return p.deleteRDSInstance(ctx, res)
	case "dynamodb":
		return p.deleteDynamoDBTable(ctx, res)
	case "redshift":
		_, err := p.redshiftClient.DeleteCluster(ctx, &redshift.DeleteClusterInput{
			ClusterIdentifier:        aws.String(res.NativeID),
			SkipFinalClusterSnapshot: aws.Bool(true),
		})
		return err
	case "memorydb":
		_, err := p.memorydbClient.DeleteCluster(ctx, &memorydb.DeleteClusterInput{
			ClusterName: aws.String(res.NativeID),
		})
		return err
	case "s3":
		return p.deleteS3Bucket(ctx, res)
	case "ecr":
		_, err := p.ecrClient.DeleteRepository(ctx, &ecr.DeleteRepositoryInput{
			RepositoryName: aws.String(res.NativeID),
			Force:          true,
		})
		return err
	case "elbv2":
		_, err := p.elbv2Client.DeleteLoadBalancer(ctx, &elasticloadbalancingv2.DeleteLoadBalancerInput{
			LoadBalancerArn: aws.String(res.ARN),
		})
		return err
	case "route53":
		return p.deleteHostedZone(ctx, res)
	case "logs":
		_, err := p.logsClient.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
			LogGroupName: aws.String(res.NativeID),
		})
		return err
	case "cloudtrail":
		_, err := p.trailClient.DeleteTrail(ctx, &cloudtrail.DeleteTrailInput{
			Name: aws.String(res.ARN),
		})
		return err
	case "kms":
		// Keys cannot be removed outright; schedule the shortest window.
		_, err := p.kmsClient.ScheduleKeyDeletion(ctx, &kms.ScheduleKeyDeletionInput{
			KeyId:               aws.String(res.NativeID),
			PendingWindowInDays: aws.Int32(7),
		})
		return err
	case "cloudformation":
		return p.deleteStack(ctx, res)
	default:
		// IAM and budgets are preserved by the default policy; a delete
		// request for them is a policy bug, not a provider gap we paper over.
		return fmt.Errorf("%w: %s/%s", errUnsupported, res.Service, res.Type)
	}
}

func (p *Provider) deleteEC2Resource(ctx context.Context, res *types.Resource) error {
	switch res.Type {
	case "instance":
		return p.terminateInstance(ctx, res)
	case "vpc":
		if attrBool(res, "is_default") {
			return fmt.Errorf("%w: default VPC", errUnsupported)
		}
		_, err := p.ec2Client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(res.NativeID)})
		return err
	case "security-group":
		if attrBool(res, "is_default") {
			return fmt.Errorf("%w: default security group", errUnsupported)
		}
		_, err := p.ec2Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
			GroupId: aws.String(res.NativeID),
		})
		return err
	case "nat-gateway":
		_, err := p.ec2Client.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{
			NatGatewayId: aws.String(res.NativeID),
		})
		return err
	case "internet-gateway":
		return p.deleteInternetGateway(ctx, res)
	case "elastic-ip":
		return p.releaseElasticIP(ctx, res)
	default:
		return fmt.Errorf("%w: ec2/%s", errUnsupported, res.Type)
	}
}

// terminateInstance lifts termination protection if it is set, then
// terminates.
func (p *Provider) terminateInstance(ctx context.Context, res *types.Resource) error {
	attr, err := p.ec2Client.DescribeInstanceAttribute(ctx, &ec2.DescribeInstanceAttributeInput{
		InstanceId: aws.String(res.NativeID),
		Attribute:  ec2types.InstanceAttributeNameDisableApiTermination,
	})
	if err != nil {
		return fmt.Errorf("failed to check termination protection: %w", err)
	}

	if attr.DisableApiTermination != nil && aws.ToBool(attr.DisableApiTermination.Value) {
		_, err := p.ec2Client.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
			InstanceId:            aws.String(res.NativeID),
			DisableApiTermination: &ec2types.AttributeBooleanValue{Value: aws.Bool(false)},
		})
		if err != nil {
			return fmt.Errorf("failed to disable termination protection: %w", err)
		}
	}

	_, err = p.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{res.NativeID},
	})
	return err
}

func (p *Provider) deleteInternetGateway(ctx context.Context, res *types.Resource) error {
	if vpcID := attrString(res, "vpc_id"); vpcID != "" {
		_, err := p.ec2Client.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: aws.String(res.NativeID),
			VpcId:             aws.String(vpcID),
		})
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to detach internet gateway: %w", err)
		}
	}

	_, err := p.ec2Client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: aws.String(res.NativeID),
	})
	return err
}

func (p *Provider) releaseElasticIP(ctx context.Context, res *types.Resource) error {
	if assocID := attrString(res, "association_id"); assocID != "" {
		_, err := p.ec2Client.DisassociateAddress(ctx, &ec2.DisassociateAddressInput{
			AssociationId: aws.String(assocID),
		})
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to disassociate elastic IP: %w", err)
		}
	}

	_, err := p.ec2Client.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{
		AllocationId: aws.String(res.NativeID),
	})
	return err
}

// deleteRDSInstance drops deletion protection first, skips the final
// snapshot, and removes automated backups with the instance.
func (p *Provider) deleteRDSInstance(ctx context.Context, res *types.Resource) error {
	if attrBool(res, "deletion_protection") {
		_, err := p.rdsClient.ModifyDBInstance(ctx, &rds.ModifyDBInstanceInput{
			DBInstanceIdentifier: aws.String(res.NativeID),
			DeletionProtection:   aws.Bool(false),
			ApplyImmediately:     aws.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("failed to disable deletion protection: %w", err)
		}
	}

	_, err := p.rdsClient.DeleteDBInstance(ctx, &rds.DeleteDBInstanceInput{
		DBInstanceIdentifier:   aws.String(res.NativeID),
		SkipFinalSnapshot:      aws.Bool(true),
		DeleteAutomatedBackups: aws.Bool(true),
	})
	return err
}

func (p *Provider) deleteDynamoDBTable(ctx context.Context, res *types.Resource) error {
	if attrBool(res, "deletion_protection") {
		_, err := p.dynamoClient.UpdateTable(ctx, &dynamodb.UpdateTableInput{
			TableName:                 aws.String(res.NativeID),
			DeletionProtectionEnabled: aws.Bool(false),
		})
		if err != nil {
			return fmt.Errorf("failed to disable deletion protection: %w", err)
		}
	}

	_, err := p.dynamoClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(res.NativeID),
	})
	return err
}

// deleteS3Bucket empties every object version and delete marker in
// batches of 1000, then removes the bucket itself.
func (p *Provider) deleteS3Bucket(ctx context.Context, res *types.Resource) error {
	bucket := aws.String(res.NativeID)

	paginator := s3.NewListObjectVersionsPaginator(p.s3Client, &s3.ListObjectVersionsInput{
		Bucket: bucket,
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if IsNotFound(err) {
				break
			}
			return fmt.Errorf("failed to list object versions: %w", err)
		}

		var objects []s3types.ObjectIdentifier
		for _, version := range page.Versions {
			objects = append(objects, s3types.ObjectIdentifier{
				Key:       version.Key,
				VersionId: version.VersionId,
			})
		}
		for _, marker := range page.DeleteMarkers {
			objects = append(objects, s3types.ObjectIdentifier{
				Key:       marker.Key,
				VersionId: marker.VersionId,
			})
		}

		// DeleteObjects caps each request at 1000 keys.
		for start := 0; start < len(objects); start += 1000 {
			end := start + 1000
			if end > len(objects) {
				end = len(objects)
			}
			_, err := p.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: bucket,
				Delete: &s3types.Delete{
					Objects: objects[start:end],
					Quiet:   aws.Bool(true),
				},
			})
			if err != nil {
				return fmt.Errorf("failed to delete objects: %w", err)
			}
		}
	}

	_, err := p.s3Client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: bucket})
	return err
}

// deleteHostedZone clears every record set except the zone's own NS and
// SOA, which Route53 removes with the zone.
func (p *Provider) deleteHostedZone(ctx context.Context, res *types.Resource) error {
	zoneID := aws.String(res.NativeID)

	paginator := route53.NewListResourceRecordSetsPaginator(p.route53Client, &route53.ListResourceRecordSetsInput{
		HostedZoneId: zoneID,
	})

	var changes []route53types.Change
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list record sets: %w", err)
		}
		for _, recordSet := range page.ResourceRecordSets {
			if recordSet.Type == route53types.RRTypeNs || recordSet.Type == route53types.RRTypeSoa {
				continue
			}
			rs := recordSet
			changes = append(changes, route53types.Change{
				Action:            route53types.ChangeActionDelete,
				ResourceRecordSet: &rs,
			})
		}
	}

	if len(changes) > 0 {
		_, err := p.route53Client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
			HostedZoneId: zoneID,
			ChangeBatch:  &route53types.ChangeBatch{Changes: changes},
		})
		if err != nil {
			return fmt.Errorf("failed to delete record sets: %w", err)
		}
	}

	_, err := p.route53Client.DeleteHostedZone(ctx, &route53.DeleteHostedZoneInput{Id: zoneID})
	return err
}

// deleteStack lifts termination protection and deletes the stack.
// DeleteStack is asynchronous; the stack drains on the AWS side.
func (p *Provider) deleteStack(ctx context.Context, res *types.Resource) error {
	if attrBool(res, "termination_protection") {
		_, err := p.cfnClient.UpdateTerminationProtection(ctx, &cloudformation.UpdateTerminationProtectionInput{
			StackName:                   aws.String(res.NativeID),
			EnableTerminationProtection: aws.Bool(false),
		})
		if err != nil {
			return fmt.Errorf("failed to disable termination protection: %w", err)
		}
	}

	_, err := p.cfnClient.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(res.NativeID),
	})
	return err
}
