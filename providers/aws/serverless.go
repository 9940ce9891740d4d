package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yairfalse/sweeper/types"
)

// LambdaLister discovers Lambda functions
type LambdaLister struct{}

func (l *LambdaLister) Name() string     { return "lambda-functions" }
func (l *LambdaLister) IsCritical() bool { return false }

func (l *LambdaLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := lambda.NewListFunctionsPaginator(p.lambdaClient, &lambda.ListFunctionsInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list Lambda functions: %w", err)
		}

		for _, fn := range output.Functions {
			res := p.newResource("lambda", "function", aws.ToString(fn.FunctionName))
			res.ARN = aws.ToString(fn.FunctionArn)
			res.Name = aws.ToString(fn.FunctionName)
			res.Attributes = map[string]any{
				"runtime":     string(fn.Runtime),
				"memory_size": aws.ToInt32(fn.MemorySize),
			}

			// Tags need a second call; a failure here must not widen
			// the delete set, so the resource is marked unreadable.
			tags, err := p.lambdaClient.ListTags(ctx, &lambda.ListTagsInput{Resource: fn.FunctionArn})
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

// SQSLister discovers SQS queues
type SQSLister struct{}

func (l *SQSLister) Name() string     { return "sqs-queues" }
func (l *SQSLister) IsCritical() bool { return false }

func (l *SQSLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := sqs.NewListQueuesPaginator(p.sqsClient, &sqs.ListQueuesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list SQS queues: %w", err)
		}

		for _, queueURL := range output.QueueUrls {
			res := p.newResource("sqs", "queue", queueNameFromURL(queueURL))
			res.Name = res.NativeID
			res.Attributes = map[string]any{"queue_url": queueURL}

			tags, err := p.sqsClient.ListQueueTags(ctx, &sqs.ListQueueTagsInput{QueueUrl: aws.String(queueURL)})
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

// queueNameFromURL extracts the queue name from its URL, the last path
// segment of https://sqs.<region>.amazonaws.com/<account>/<name>.
func queueNameFromURL(queueURL string) string {
	idx := strings.LastIndex(queueURL, "/")
	if idx < 0 || idx == len(queueURL)-1 {
		return queueURL
	}
	return queueURL[idx+1:]
}
