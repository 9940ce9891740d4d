package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/memorydb"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	"github.com/yairfalse/sweeper/providers"
)

// Factory function for creating AWS providers
func NewAWSProviderFactory(ctx context.Context, cfg providers.ProviderConfig) (providers.CloudProvider, error) {
	return NewProvider(ctx, cfg.Profile, cfg.Region)
}

func init() {
	providers.RegisterProvider("aws", NewAWSProviderFactory)
}

// Provider implements CloudProvider for one AWS account and region
// using SDK v2. Clients are region-bound, so the scanner builds one
// Provider per (profile, region) pair.
type Provider struct {
	ec2Client    *ec2.Client
	asgClient    *autoscaling.Client
	ecsClient    *ecs.Client
	eksClient    *eks.Client
	lambdaClient *lambda.Client
	sqsClient    *sqs.Client

	rdsClient      *rds.Client
	dynamoClient   *dynamodb.Client
	redshiftClient *redshift.Client
	memorydbClient *memorydb.Client

	s3Client  *s3.Client
	ecrClient *ecr.Client

	elbv2Client   *elasticloadbalancingv2.Client
	route53Client *route53.Client

	logsClient  *cloudwatchlogs.Client
	trailClient *cloudtrail.Client

	iamClient     *iam.Client
	kmsClient     *kms.Client
	cfnClient     *cloudformation.Client
	budgetsClient *budgets.Client

	region    string
	accountID string
	logger    zerolog.Logger

	regional *listerRegistry
	global   *listerRegistry
}

// NewProvider loads shared-config credentials for the profile, resolves
// the account ID through STS, and wires up every service client.
func NewProvider(ctx context.Context, profile, region string) (*Provider, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for profile %q: %w", profile, err)
	}

	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve caller identity for profile %q: %w", profile, err)
	}

	p := &Provider{
		ec2Client:    ec2.NewFromConfig(cfg),
		asgClient:    autoscaling.NewFromConfig(cfg),
		ecsClient:    ecs.NewFromConfig(cfg),
		eksClient:    eks.NewFromConfig(cfg),
		lambdaClient: lambda.NewFromConfig(cfg),
		sqsClient:    sqs.NewFromConfig(cfg),

		rdsClient:      rds.NewFromConfig(cfg),
		dynamoClient:   dynamodb.NewFromConfig(cfg),
		redshiftClient: redshift.NewFromConfig(cfg),
		memorydbClient: memorydb.NewFromConfig(cfg),

		s3Client:  s3.NewFromConfig(cfg),
		ecrClient: ecr.NewFromConfig(cfg),

		elbv2Client:   elasticloadbalancingv2.NewFromConfig(cfg),
		route53Client: route53.NewFromConfig(cfg),

		logsClient:  cloudwatchlogs.NewFromConfig(cfg),
		trailClient: cloudtrail.NewFromConfig(cfg),

		iamClient:     iam.NewFromConfig(cfg),
		kmsClient:     kms.NewFromConfig(cfg),
		cfnClient:     cloudformation.NewFromConfig(cfg),
		budgetsClient: budgets.NewFromConfig(cfg),

		region:    region,
		accountID: aws.ToString(identity.Account),
		logger:    zerolog.Nop(),
	}
	p.regional = newRegionalRegistry()
	p.global = newGlobalRegistry()
	return p, nil
}

// WithLogger attaches a logger for non-critical listing warnings.
func (p *Provider) WithLogger(logger zerolog.Logger) *Provider {
	p.logger = logger
	return p
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "aws"
}

// Region returns the AWS region
func (p *Provider) Region() string {
	return p.region
}

// AccountID returns the resolved account ID
func (p *Provider) AccountID() string {
	return p.accountID
}
