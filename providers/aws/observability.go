package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/yairfalse/sweeper/types"
)

// LogGroupLister discovers CloudWatch log groups
type LogGroupLister struct{}

func (l *LogGroupLister) Name() string     { return "log-groups" }
func (l *LogGroupLister) IsCritical() bool { return false }

func (l *LogGroupLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := cloudwatchlogs.NewDescribeLogGroupsPaginator(p.logsClient, &cloudwatchlogs.DescribeLogGroupsInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe log groups: %w", err)
		}

		for _, group := range output.LogGroups {
			res := p.newResource("logs", "log-group", aws.ToString(group.LogGroupName))
			res.Name = aws.ToString(group.LogGroupName)
			res.ARN = strings.TrimSuffix(aws.ToString(group.Arn), ":*")
			res.Attributes = map[string]any{
				"stored_bytes":   aws.ToInt64(group.StoredBytes),
				"retention_days": aws.ToInt32(group.RetentionInDays),
			}

			tags, err := p.logsClient.ListTagsForResource(ctx, &cloudwatchlogs.ListTagsForResourceInput{
				ResourceArn: aws.String(res.ARN),
			})
			if err != nil {
				res.TagsUnreadable = true
			} else {
				res.Tags = convertTags(tags.Tags)
			}

			resources = append(resources, res)
		}
	}

	return resources, nil
}

// CloudTrailLister discovers CloudTrail trails homed in this region
type CloudTrailLister struct{}

func (l *CloudTrailLister) Name() string     { return "cloudtrail-trails" }
func (l *CloudTrailLister) IsCritical() bool { return false }

func (l *CloudTrailLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	output, err := p.trailClient.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe trails: %w", err)
	}

	var resources []types.Resource
	for _, trail := range output.TrailList {
		// Multi-region trails show up everywhere; only the home region owns one.
		if aws.ToString(trail.HomeRegion) != p.region {
			continue
		}

		res := p.newResource("cloudtrail", "trail", aws.ToString(trail.Name))
		res.ARN = aws.ToString(trail.TrailARN)
		res.Name = aws.ToString(trail.Name)
		res.Attributes = map[string]any{
			"multi_region": aws.ToBool(trail.IsMultiRegionTrail),
			"s3_bucket":    aws.ToString(trail.S3BucketName),
		}

		tags, err := p.trailClient.ListTags(ctx, &cloudtrail.ListTagsInput{
			ResourceIdList: []string{aws.ToString(trail.TrailARN)},
		})
		if err != nil || len(tags.ResourceTagList) == 0 {
			res.TagsUnreadable = true
		} else {
			res.Tags = convertTags(tags.ResourceTagList[0].TagsList)
		}

		resources = append(resources, res)
	}

	return resources, nil
}

// KMSLister discovers customer-managed KMS keys
type KMSLister struct{}

func (l *KMSLister) Name() string     { return "kms-keys" }
func (l *KMSLister) IsCritical() bool { return false }

func (l *KMSLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := kms.NewListKeysPaginator(p.kmsClient, &kms.ListKeysInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list KMS keys: %w", err)
		}

		for _, key := range output.Keys {
			described, err := p.kmsClient.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: key.KeyId})
			if err != nil {
				return nil, fmt.Errorf("failed to describe KMS key %s: %w", aws.ToString(key.KeyId), err)
			}
			metadata := described.KeyMetadata

			// AWS-managed keys cannot be deleted and just add noise.
			if metadata.KeyManager == kmstypes.KeyManagerTypeAws {
				continue
			}
			if metadata.KeyState == kmstypes.KeyStatePendingDeletion {
				continue
			}

			res := p.newResource("kms", "key", aws.ToString(metadata.KeyId))
			res.ARN = aws.ToString(metadata.Arn)
			res.Name = aws.ToString(metadata.Description)
			res.CreatedAt = safeTimeValue(metadata.CreationDate)
			res.Status = string(metadata.KeyState)

			tags, err := p.kmsClient.ListResourceTags(ctx, &kms.ListResourceTagsInput{KeyId: metadata.KeyId})
			if err != nil {
				res.TagsUnreadable = true
			} else {
				res.Tags = convertTags(tags.Tags)
			}

			resources = append(resources, res)
		}
	}

	return resources, nil
}
