package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/kafka"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/opensearchservice"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"github.com/scoutflo/platform-observability-agent/pkg/platform"
)

// CloudResult is the output of the cloud-live discovery sub-extractor
// (4.3c): every resource found across all regions in one flat slice
// (each Origin carries its region as "<region>:<name>"), plus the
// per-service failures that were non-fatal.
type CloudResult struct {
	Resources []platform.IaCResource
	Errors    []string
}

// DiscoverCloud runs the fixed-order per-service discoverers (RDS,
// ElastiCache, MSK, SQS, SNS, Lambda, ECS, EKS, OpenSearch, DynamoDB,
// S3) against every region in regions, concatenating results. Regions
// are discovered concurrently via errgroup, per spec.md §5's
// concurrency model; a single region's total failure never aborts the
// others.
func DiscoverCloud(ctx context.Context, regions []string) *CloudResult {
	res := &CloudResult{}
	if len(regions) == 0 {
		return res
	}

	type regionOutcome struct {
		resources []platform.IaCResource
		errs      []string
	}
	outcomes := make([]regionOutcome, len(regions))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, region := range regions {
		i, region := i, region
		eg.Go(func() error {
			cfg, err := config.LoadDefaultConfig(egCtx, config.WithRegion(region))
			if err != nil {
				outcomes[i].errs = append(outcomes[i].errs, fmt.Sprintf("region %s: loading AWS config: %v", region, err))
				return nil
			}
			outcomes[i].resources, outcomes[i].errs = discoverRegion(egCtx, cfg, region)
			return nil
		})
	}
	_ = eg.Wait() // discoverRegion never returns an error itself; failures are captured as strings

	for _, o := range outcomes {
		res.Resources = append(res.Resources, o.resources...)
		res.Errors = append(res.Errors, o.errs...)
	}
	return res
}

// discoverRegion runs every service discoverer in the spec's fixed
// order against one region.
func discoverRegion(ctx context.Context, cfg aws.Config, region string) (resources []platform.IaCResource, errs []string) {
	discoverers := []func(context.Context, aws.Config, string) ([]platform.IaCResource, error){
		discoverRDS,
		discoverElastiCache,
		discoverKafka,
		discoverSQS,
		discoverSNS,
		discoverLambda,
		discoverECS,
		discoverEKS,
		discoverOpenSearch,
		discoverDynamoDB,
		discoverS3,
	}
	for _, discover := range discoverers {
		found, err := discover(ctx, cfg, region)
		if err != nil {
			errs = append(errs, fmt.Sprintf("region %s: %v", region, err))
			continue
		}
		resources = append(resources, found...)
	}
	return resources, errs
}

func originFor(region, name string) string { return region + ":" + name }

func discoverRDS(ctx context.Context, cfg aws.Config, region string) ([]platform.IaCResource, error) {
	client := rds.NewFromConfig(cfg)
	var out []platform.IaCResource
	paginator := rds.NewDescribeDBInstancesPaginator(client, &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return out, fmt.Errorf("rds: %w", err)
		}
		for _, db := range page.DBInstances {
			engine := aws.ToString(db.Engine)
			archetype, notes := "database", "attach postgres_exporter or mysqld_exporter depending on engine"
			switch {
			case engine == "":
				notes = "engine unknown; CloudWatch metrics only"
			case strings.Contains(engine, "postgres"):
				notes = "attach postgres_exporter"
			case strings.Contains(engine, "mysql") || strings.Contains(engine, "mariadb"):
				notes = "attach mysqld_exporter"
			}
			out = append(out, platform.IaCResource{
				Source: platform.SourceCloudLive, Origin: originFor(region, aws.ToString(db.DBInstanceIdentifier)),
				ResourceType: "aws_db_instance", Name: aws.ToString(db.DBInstanceIdentifier), CloudProvider: "aws",
				Properties: map[string]string{
					"engine":         engine,
					"instance_class": aws.ToString(db.DBInstanceClass),
					"engine_version": aws.ToString(db.EngineVersion),
				},
				Archetype: archetype, MonitoringNotes: notes,
			})
		}
	}
	return out, nil
}

func discoverElastiCache(ctx context.Context, cfg aws.Config, region string) ([]platform.IaCResource, error) {
	client := elasticache.NewFromConfig(cfg)
	var out []platform.IaCResource
	paginator := elasticache.NewDescribeCacheClustersPaginator(client, &elasticache.DescribeCacheClustersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return out, fmt.Errorf("elasticache: %w", err)
		}
		for _, c := range page.CacheClusters {
			engine := aws.ToString(c.Engine)
			notes := "attach redis_exporter"
			if engine == "memcached" {
				notes = "attach memcached_exporter"
			}
			out = append(out, platform.IaCResource{
				Source: platform.SourceCloudLive, Origin: originFor(region, aws.ToString(c.CacheClusterId)),
				ResourceType: "aws_elasticache_cluster", Name: aws.ToString(c.CacheClusterId), CloudProvider: "aws",
				Properties: map[string]string{
					"engine":    engine,
					"node_type": aws.ToString(c.CacheNodeType),
				},
				Archetype: "cache", MonitoringNotes: notes,
			})
		}
	}
	return out, nil
}

func discoverKafka(ctx context.Context, cfg aws.Config, region string) ([]platform.IaCResource, error) {
	client := kafka.NewFromConfig(cfg)
	var out []platform.IaCResource
	paginator := kafka.NewListClustersV2Paginator(client, &kafka.ListClustersV2Input{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return out, fmt.Errorf("msk: %w", err)
		}
		for _, c := range page.ClusterInfoList {
			out = append(out, platform.IaCResource{
				Source: platform.SourceCloudLive, Origin: originFor(region, aws.ToString(c.ClusterName)),
				ResourceType: "aws_msk_cluster", Name: aws.ToString(c.ClusterName), CloudProvider: "aws",
				Properties:      map[string]string{"state": string(c.State)},
				Archetype:       "message-queue",
				MonitoringNotes: "attach kafka_exporter via JMX",
			})
		}
	}
	return out, nil
}

func discoverSQS(ctx context.Context, cfg aws.Config, region string) ([]platform.IaCResource, error) {
	client := sqs.NewFromConfig(cfg)
	var out []platform.IaCResource
	var nextToken *string
	for {
		page, err := client.ListQueues(ctx, &sqs.ListQueuesInput{NextToken: nextToken})
		if err != nil {
			return out, fmt.Errorf("sqs: %w", err)
		}
		for _, url := range page.QueueUrls {
			out = append(out, platform.IaCResource{
				Source: platform.SourceCloudLive, Origin: originFor(region, url),
				ResourceType: "aws_sqs_queue", Name: url, CloudProvider: "aws",
				Archetype: "message-queue", MonitoringNotes: "CloudWatch metrics only, no exporter",
			})
		}
		if page.NextToken == nil {
			break
		}
		nextToken = page.NextToken
	}
	return out, nil
}

func discoverSNS(ctx context.Context, cfg aws.Config, region string) ([]platform.IaCResource, error) {
	client := sns.NewFromConfig(cfg)
	var out []platform.IaCResource
	paginator := sns.NewListTopicsPaginator(client, &sns.ListTopicsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return out, fmt.Errorf("sns: %w", err)
		}
		for _, t := range page.Topics {
			arn := aws.ToString(t.TopicArn)
			out = append(out, platform.IaCResource{
				Source: platform.SourceCloudLive, Origin: originFor(region, arn),
				ResourceType: "aws_sns_topic", Name: arn, CloudProvider: "aws",
				Archetype: "message-queue", MonitoringNotes: "CloudWatch metrics only, no exporter",
			})
		}
	}
	return out, nil
}

func discoverLambda(ctx context.Context, cfg aws.Config, region string) ([]platform.IaCResource, error) {
	client := lambda.NewFromConfig(cfg)
	var out []platform.IaCResource
	paginator := lambda.NewListFunctionsPaginator(client, &lambda.ListFunctionsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return out, fmt.Errorf("lambda: %w", err)
		}
		for _, fn := range page.Functions {
			out = append(out, platform.IaCResource{
				Source: platform.SourceCloudLive, Origin: originFor(region, aws.ToString(fn.FunctionName)),
				ResourceType: "aws_lambda_function", Name: aws.ToString(fn.FunctionName), CloudProvider: "aws",
				Properties:      map[string]string{"runtime": string(fn.Runtime)},
				Archetype:       "custom-app",
				MonitoringNotes: "CloudWatch metrics only",
			})
		}
	}
	return out, nil
}

func discoverECS(ctx context.Context, cfg aws.Config, region string) ([]platform.IaCResource, error) {
	client := ecs.NewFromConfig(cfg)
	var out []platform.IaCResource
	paginator := ecs.NewListClustersPaginator(client, &ecs.ListClustersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return out, fmt.Errorf("ecs: %w", err)
		}
		for _, arn := range page.ClusterArns {
			out = append(out, platform.IaCResource{
				Source: platform.SourceCloudLive, Origin: originFor(region, arn),
				ResourceType: "aws_ecs_cluster", Name: arn, CloudProvider: "aws",
				Archetype: "custom-app", MonitoringNotes: "enable container insights for metrics",
			})
		}
	}
	return out, nil
}

func discoverEKS(ctx context.Context, cfg aws.Config, region string) ([]platform.IaCResource, error) {
	client := eks.NewFromConfig(cfg)
	var out []platform.IaCResource
	paginator := eks.NewListClustersPaginator(client, &eks.ListClustersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return out, fmt.Errorf("eks: %w", err)
		}
		for _, name := range page.Clusters {
			out = append(out, platform.IaCResource{
				Source: platform.SourceCloudLive, Origin: originFor(region, name),
				ResourceType: "aws_eks_cluster", Name: name, CloudProvider: "aws",
				Archetype: "custom-app", MonitoringNotes: "deploy kube-state-metrics and node_exporter in-cluster",
			})
		}
	}
	return out, nil
}

func discoverOpenSearch(ctx context.Context, cfg aws.Config, region string) ([]platform.IaCResource, error) {
	client := opensearchservice.NewFromConfig(cfg)
	names, err := client.ListDomainNames(ctx, &opensearchservice.ListDomainNamesInput{})
	if err != nil {
		return nil, fmt.Errorf("opensearch: %w", err)
	}
	var out []platform.IaCResource
	for _, d := range names.DomainNames {
		out = append(out, platform.IaCResource{
			Source: platform.SourceCloudLive, Origin: originFor(region, aws.ToString(d.DomainName)),
			ResourceType: "aws_opensearch_domain", Name: aws.ToString(d.DomainName), CloudProvider: "aws",
			Archetype: "search-engine", MonitoringNotes: "domain exposes CloudWatch metrics only",
		})
	}
	return out, nil
}

func discoverDynamoDB(ctx context.Context, cfg aws.Config, region string) ([]platform.IaCResource, error) {
	client := dynamodb.NewFromConfig(cfg)
	var out []platform.IaCResource
	paginator := dynamodb.NewListTablesPaginator(client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return out, fmt.Errorf("dynamodb: %w", err)
		}
		for _, name := range page.TableNames {
			out = append(out, platform.IaCResource{
				Source: platform.SourceCloudLive, Origin: originFor(region, name),
				ResourceType: "aws_dynamodb_table", Name: name, CloudProvider: "aws",
				Archetype: "database", MonitoringNotes: "CloudWatch metrics only, no exporter",
			})
		}
	}
	return out, nil
}

// discoverS3 lists every bucket in the account and keeps only those
// whose location constraint matches region, per spec.md §4.3(c).
func discoverS3(ctx context.Context, cfg aws.Config, region string) ([]platform.IaCResource, error) {
	client := s3.NewFromConfig(cfg)
	buckets, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("s3: %w", err)
	}
	var out []platform.IaCResource
	for _, b := range buckets.Buckets {
		name := aws.ToString(b.Name)
		loc, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: b.Name})
		if err != nil {
			continue
		}
		bucketRegion := string(loc.LocationConstraint)
		if bucketRegion == "" {
			bucketRegion = "us-east-1" // empty constraint means the original S3 region
		}
		if bucketRegion != region {
			continue
		}
		out = append(out, platform.IaCResource{
			Source: platform.SourceCloudLive, Origin: originFor(region, name),
			ResourceType: "aws_s3_bucket", Name: name, CloudProvider: "aws",
			Archetype: "custom-app", MonitoringNotes: "CloudWatch request metrics must be enabled explicitly",
		})
	}
	return out, nil
}
