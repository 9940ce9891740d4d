package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/yairfalse/sweeper/types"
)

// S3Lister discovers S3 buckets. Bucket names are account-global, so
// this runs in the global registry.
type S3Lister struct{}

func (l *S3Lister) Name() string     { return "s3-buckets" }
func (l *S3Lister) IsCritical() bool { return false }

func (l *S3Lister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	output, err := p.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list S3 buckets: %w", err)
	}

	var resources []types.Resource
	for _, bucket := range output.Buckets {
		res := p.newGlobalResource("s3", "bucket", aws.ToString(bucket.Name))
		res.Name = aws.ToString(bucket.Name)
		res.CreatedAt = safeTimeValue(bucket.CreationDate)

		tagging, err := p.s3Client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{
			Bucket: bucket.Name,
		})
		switch {
		case err == nil:
			res.Tags = convertTags(tagging.TagSet)
		case isNoSuchTagSet(err):
			// An untagged bucket is readable-and-empty, not unreadable.
			res.Tags = map[string]string{}
		default:
			res.TagsUnreadable = true
		}

		resources = append(resources, res)
	}

	return resources, nil
}

// isNoSuchTagSet matches the S3 error for buckets with no tag set.
func isNoSuchTagSet(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchTagSet"
}

// ECRLister discovers ECR container repositories
type ECRLister struct{}

func (l *ECRLister) Name() string     { return "ecr-repositories" }
func (l *ECRLister) IsCritical() bool { return false }

func (l *ECRLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ecr.NewDescribeRepositoriesPaginator(p.ecrClient, &ecr.DescribeRepositoriesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe ECR repositories: %w", err)
		}

		for _, repo := range output.Repositories {
			res := p.newResource("ecr", "repository", aws.ToString(repo.RepositoryName))
			res.ARN = aws.ToString(repo.RepositoryArn)
			res.Name = aws.ToString(repo.RepositoryName)
			res.CreatedAt = safeTimeValue(repo.CreatedAt)
			res.Attributes = map[string]any{
				"uri": aws.ToString(repo.RepositoryUri),
			}

			tags, err := p.ecrClient.ListTagsForResource(ctx, &ecr.ListTagsForResourceInput{
				ResourceArn: repo.RepositoryArn,
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
