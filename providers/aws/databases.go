package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/memorydb"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"

	"github.com/yairfalse/sweeper/types"
)

// RDSLister discovers RDS database instances
type RDSLister struct{}

func (l *RDSLister) Name() string     { return "rds-instances" }
func (l *RDSLister) IsCritical() bool { return true }

func (l *RDSLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := rds.NewDescribeDBInstancesPaginator(p.rdsClient, &rds.DescribeDBInstancesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe RDS instances: %w", err)
		}

		for _, instance := range output.DBInstances {
			res := p.newResource("rds", "db-instance", aws.ToString(instance.DBInstanceIdentifier))
			res.ARN = aws.ToString(instance.DBInstanceArn)
			res.Name = aws.ToString(instance.DBInstanceIdentifier)
			res.Tags = convertTags(instance.TagList)
			res.CreatedAt = safeTimeValue(instance.InstanceCreateTime)
			res.Status = aws.ToString(instance.DBInstanceStatus)
			res.Attributes = map[string]any{
				"engine":              aws.ToString(instance.Engine),
				"instance_class":      aws.ToString(instance.DBInstanceClass),
				"deletion_protection": aws.ToBool(instance.DeletionProtection),
			}
			resources = append(resources, res)
		}
	}

	return resources, nil
}

// DynamoDBLister discovers DynamoDB tables
type DynamoDBLister struct{}

func (l *DynamoDBLister) Name() string     { return "dynamodb-tables" }
func (l *DynamoDBLister) IsCritical() bool { return false }

func (l *DynamoDBLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := dynamodb.NewListTablesPaginator(p.dynamoClient, &dynamodb.ListTablesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list DynamoDB tables: %w", err)
		}

		for _, tableName := range output.TableNames {
			described, err := p.dynamoClient.DescribeTable(ctx, &dynamodb.DescribeTableInput{
				TableName: aws.String(tableName),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to describe DynamoDB table %s: %w", tableName, err)
			}
			table := described.Table

			res := p.newResource("dynamodb", "table", tableName)
			res.ARN = aws.ToString(table.TableArn)
			res.Name = tableName
			res.CreatedAt = safeTimeValue(table.CreationDateTime)
			res.Status = string(table.TableStatus)
			res.Attributes = map[string]any{
				"item_count":          aws.ToInt64(table.ItemCount),
				"deletion_protection": aws.ToBool(table.DeletionProtectionEnabled),
			}

			tags, err := p.dynamoClient.ListTagsOfResource(ctx, &dynamodb.ListTagsOfResourceInput{
				ResourceArn: table.TableArn,
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

// RedshiftLister discovers Redshift data warehouse clusters
type RedshiftLister struct{}

func (l *RedshiftLister) Name() string     { return "redshift-clusters" }
func (l *RedshiftLister) IsCritical() bool { return false }

func (l *RedshiftLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := redshift.NewDescribeClustersPaginator(p.redshiftClient, &redshift.DescribeClustersInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe Redshift clusters: %w", err)
		}

		for _, cluster := range output.Clusters {
			res := p.newResource("redshift", "cluster", aws.ToString(cluster.ClusterIdentifier))
			res.Name = aws.ToString(cluster.ClusterIdentifier)
			res.Tags = convertTags(cluster.Tags)
			res.CreatedAt = safeTimeValue(cluster.ClusterCreateTime)
			res.Status = aws.ToString(cluster.ClusterStatus)
			res.Attributes = map[string]any{
				"node_count": aws.ToInt32(cluster.NumberOfNodes),
				"db_name":    aws.ToString(cluster.DBName),
			}
			resources = append(resources, res)
		}
	}

	return resources, nil
}

// MemoryDBLister discovers MemoryDB clusters
type MemoryDBLister struct{}

func (l *MemoryDBLister) Name() string     { return "memorydb-clusters" }
func (l *MemoryDBLister) IsCritical() bool { return false }

func (l *MemoryDBLister) List(ctx context.Context, p *Provider) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := memorydb.NewDescribeClustersPaginator(p.memorydbClient, &memorydb.DescribeClustersInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe MemoryDB clusters: %w", err)
		}

		for _, cluster := range output.Clusters {
			res := p.newResource("memorydb", "cluster", aws.ToString(cluster.Name))
			res.ARN = aws.ToString(cluster.ARN)
			res.Name = aws.ToString(cluster.Name)
			res.Status = aws.ToString(cluster.Status)
			res.Attributes = map[string]any{
				"node_type": aws.ToString(cluster.NodeType),
			}

			tags, err := p.memorydbClient.ListTags(ctx, &memorydb.ListTagsInput{ResourceArn: cluster.ARN})
			if err != nil {
				res.TagsUnreadable = true
			} else {
				res.Tags = convertTags(tags.TagList)
			}

			resources = append(resources, res)
		}
	}

	return resources, nil
}
