package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	autoscalingtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cloudtrailtypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/memorydb"
	memorydbtypes "github.com/aws/aws-sdk-go-v2/service/memorydb/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	redshifttypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	route53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yairfalse/sweeper/types"
)

// TagResource applies tags to a resource, merging with existing tags.
// Every AWS service has its own tagging API; this is the single place
// that knows them all.
func (p *Provider) TagResource(ctx context.Context, res *types.Resource, tags map[string]string) error {
	switch res.Service {
	case "ec2":
		return p.tagEC2(ctx, res, tags)
	case "autoscaling":
		return p.tagAutoScalingGroup(ctx, res, tags)
	case "ecs":
		return p.tagECS(ctx, res, tags)
	case "eks":
		_, err := p.eksClient.TagResource(ctx, &eks.TagResourceInput{
			ResourceArn: aws.String(res.ARN),
			Tags:        tags,
		})
		return err
	case "lambda":
		_, err := p.lambdaClient.TagResource(ctx, &lambda.TagResourceInput{
			Resource: aws.String(res.ARN),
			Tags:     tags,
		})
		return err
	case "sqs":
		_, err := p.sqsClient.TagQueue(ctx, &sqs.TagQueueInput{
			QueueUrl: aws.String(attrString(res, "queue_url")),
			Tags:     tags,
		})
		return err
	case "rds":
		return p.tagRDS(ctx, res, tags)
	case "dynamodb":
		return p.tagDynamoDB(ctx, res, tags)
	case "redshift":
		return p.tagRedshift(ctx, res, tags)
	case "memorydb":
		return p.tagMemoryDB(ctx, res, tags)
	case "s3":
		return p.tagS3Bucket(ctx, res, tags)
	case "ecr":
		return p.tagECR(ctx, res, tags)
	case "elbv2":
		return p.tagLoadBalancer(ctx, res, tags)
	case "route53":
		return p.tagHostedZone(ctx, res, tags)
	case "logs":
		_, err := p.logsClient.TagResource(ctx, &cloudwatchlogs.TagResourceInput{
			ResourceArn: aws.String(res.ARN),
			Tags:        tags,
		})
		return err
	case "cloudtrail":
		return p.tagTrail(ctx, res, tags)
	case "kms":
		return p.tagKMSKey(ctx, res, tags)
	case "iam":
		return p.tagIAMRole(ctx, res, tags)
	default:
		// CloudFormation stack tags require a stack update; budgets
		// have no tagging API worth the trouble.
		return fmt.Errorf("%w: %s/%s", errUnsupported, res.Service, res.Type)
	}
}

func (p *Provider) tagEC2(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var ec2Tags []ec2types.Tag
	for key, value := range tags {
		ec2Tags = append(ec2Tags, ec2types.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	_, err := p.ec2Client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{res.NativeID},
		Tags:      ec2Tags,
	})
	return err
}

func (p *Provider) tagAutoScalingGroup(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var asgTags []autoscalingtypes.Tag
	for key, value := range tags {
		asgTags = append(asgTags, autoscalingtypes.Tag{
			Key:               aws.String(key),
			Value:             aws.String(value),
			ResourceId:        aws.String(res.NativeID),
			ResourceType:      aws.String("auto-scaling-group"),
			PropagateAtLaunch: aws.Bool(false),
		})
	}
	_, err := p.asgClient.CreateOrUpdateTags(ctx, &autoscaling.CreateOrUpdateTagsInput{Tags: asgTags})
	return err
}

func (p *Provider) tagECS(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var ecsTags []ecstypes.Tag
	for key, value := range tags {
		ecsTags = append(ecsTags, ecstypes.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	_, err := p.ecsClient.TagResource(ctx, &ecs.TagResourceInput{
		ResourceArn: aws.String(res.ARN),
		Tags:        ecsTags,
	})
	return err
}

func (p *Provider) tagRDS(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var rdsTags []rdstypes.Tag
	for key, value := range tags {
		rdsTags = append(rdsTags, rdstypes.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	_, err := p.rdsClient.AddTagsToResource(ctx, &rds.AddTagsToResourceInput{
		ResourceName: aws.String(res.ARN),
		Tags:         rdsTags,
	})
	return err
}

func (p *Provider) tagDynamoDB(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var ddbTags []dynamodbtypes.Tag
	for key, value := range tags {
		ddbTags = append(ddbTags, dynamodbtypes.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	_, err := p.dynamoClient.TagResource(ctx, &dynamodb.TagResourceInput{
		ResourceArn: aws.String(res.ARN),
		Tags:        ddbTags,
	})
	return err
}

func (p *Provider) tagRedshift(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var rsTags []redshifttypes.Tag
	for key, value := range tags {
		rsTags = append(rsTags, redshifttypes.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	arn := fmt.Sprintf("arn:aws:redshift:%s:%s:cluster:%s", p.region, p.accountID, res.NativeID)
	_, err := p.redshiftClient.CreateTags(ctx, &redshift.CreateTagsInput{
		ResourceName: aws.String(arn),
		Tags:         rsTags,
	})
	return err
}

func (p *Provider) tagMemoryDB(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var mdbTags []memorydbtypes.Tag
	for key, value := range tags {
		mdbTags = append(mdbTags, memorydbtypes.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	_, err := p.memorydbClient.TagResource(ctx, &memorydb.TagResourceInput{
		ResourceArn: aws.String(res.ARN),
		Tags:        mdbTags,
	})
	return err
}

// tagS3Bucket merges new tags into the bucket's tag set; PutBucketTagging
// replaces the whole set, so losing the read means losing existing tags.
func (p *Provider) tagS3Bucket(ctx context.Context, res *types.Resource, tags map[string]string) error {
	merged := map[string]string{}

	existing, err := p.s3Client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{
		Bucket: aws.String(res.NativeID),
	})
	if err != nil && !isNoSuchTagSet(err) {
		return fmt.Errorf("failed to read existing bucket tags: %w", err)
	}
	if err == nil {
		for _, tag := range existing.TagSet {
			merged[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
	}
	for key, value := range tags {
		merged[key] = value
	}

	var tagSet []s3types.Tag
	for key, value := range merged {
		tagSet = append(tagSet, s3types.Tag{Key: aws.String(key), Value: aws.String(value)})
	}

	_, err = p.s3Client.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket:  aws.String(res.NativeID),
		Tagging: &s3types.Tagging{TagSet: tagSet},
	})
	return err
}

func (p *Provider) tagECR(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var ecrTags []ecrtypes.Tag
	for key, value := range tags {
		ecrTags = append(ecrTags, ecrtypes.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	_, err := p.ecrClient.TagResource(ctx, &ecr.TagResourceInput{
		ResourceArn: aws.String(res.ARN),
		Tags:        ecrTags,
	})
	return err
}

func (p *Provider) tagLoadBalancer(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var elbTags []elbv2types.Tag
	for key, value := range tags {
		elbTags = append(elbTags, elbv2types.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	_, err := p.elbv2Client.AddTags(ctx, &elasticloadbalancingv2.AddTagsInput{
		ResourceArns: []string{res.ARN},
		Tags:         elbTags,
	})
	return err
}

func (p *Provider) tagHostedZone(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var zoneTags []route53types.Tag
	for key, value := range tags {
		zoneTags = append(zoneTags, route53types.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	_, err := p.route53Client.ChangeTagsForResource(ctx, &route53.ChangeTagsForResourceInput{
		ResourceType: route53types.TagResourceTypeHostedzone,
		ResourceId:   aws.String(res.NativeID),
		AddTags:      zoneTags,
	})
	return err
}

func (p *Provider) tagTrail(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var trailTags []cloudtrailtypes.Tag
	for key, value := range tags {
		trailTags = append(trailTags, cloudtrailtypes.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	_, err := p.trailClient.AddTags(ctx, &cloudtrail.AddTagsInput{
		ResourceId: aws.String(res.ARN),
		TagsList:   trailTags,
	})
	return err
}

func (p *Provider) tagKMSKey(ctx context.Context, res *types.Resource, tags map[string]string) error {
	var keyTags []kmstypes.Tag
	for key, value := range tags {
		keyTags = append(keyTags, kmstypes.Tag{TagKey: aws.String(key), TagValue: aws.String(value)})
	}
	_, err := p.kmsClient.TagResource(ctx, &kms.TagResourceInput{
		KeyId: aws.String(res.NativeID),
		Tags:  keyTags,
	})
	return err
}

func (p *Provider) tagIAMRole(ctx context.Context, res *types.Resource, tags map[string]string) error {
	if res.Type != "role" {
		return fmt.Errorf("%w: iam/%s", errUnsupported, res.Type)
	}
	var roleTags []iamtypes.Tag
	for key, value := range tags {
		roleTags = append(roleTags, iamtypes.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	_, err := p.iamClient.TagRole(ctx, &iam.TagRoleInput{
		RoleName: aws.String(res.NativeID),
		Tags:     roleTags,
	})
	return err
}

// attrString pulls a string attribute captured at scan time.
func attrString(res *types.Resource, key string) string {
	if res.Attributes == nil {
		return ""
	}
	if value, ok := res.Attributes[key].(string); ok {
		return value
	}
	return ""
}

// attrBool pulls a bool attribute captured at scan time.
func attrBool(res *types.Resource, key string) bool {
	if res.Attributes == nil {
		return false
	}
	if value, ok := res.Attributes[key].(bool); ok {
		return value
	}
	return false
}
