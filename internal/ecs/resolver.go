package ecs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"

	"inspector/pkg/logging"
)

const subsystem = "ECS"

// describeTasksLimit is the maximum number of tasks per DescribeTasks call.
const describeTasksLimit = 100

const serviceGroupPrefix = "service:"

// Config holds the settings of the task resolver.
type Config struct {
	// RelativeURI is the value of AWS_CONTAINER_CREDENTIALS_RELATIVE_URI.
	// Task lookups are disabled when it is empty.
	RelativeURI string

	// Endpoint overrides DefaultCredentialsEndpoint.
	Endpoint string

	// CredentialsLifetime caps how long credentials are reused.
	CredentialsLifetime time.Duration
}

// Task is a resolved ECS task.
type Task struct {
	Identifier TaskIdentifier

	// Group is the task group with the "service:" prefix removed, i.e. the
	// ECS service name for tasks started by a service.
	Group string
}

// DescribeTasksAPI is the subset of the ECS API used by the resolver.
type DescribeTasksAPI interface {
	DescribeTasks(ctx context.Context, params *awsecs.DescribeTasksInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeTasksOutput, error)
}

// ClientFactory builds an ECS client for a region.
type ClientFactory func(region string, provider aws.CredentialsProvider) DescribeTasksAPI

// Resolver resolves ECS task ARNs to task groups.
type Resolver struct {
	credentials *credentialsSource
	newClient   ClientFactory
}

// NewResolver creates a resolver using the container credentials endpoint.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{
		credentials: newCredentialsSource(cfg),
		newClient:   newClient,
	}
}

func newClient(region string, provider aws.CredentialsProvider) DescribeTasksAPI {
	return awsecs.New(awsecs.Options{
		Region:           region,
		Credentials:      provider,
		RetryMaxAttempts: 1,
	})
}

// GetCredentials returns the task role credentials, or nil when they are
// unavailable.
func (r *Resolver) GetCredentials(ctx context.Context) (*aws.Credentials, error) {
	return r.credentials.get(ctx), nil
}

type requestGroup struct {
	region  string
	cluster string
	tasks   []TaskIdentifier
}

// DescribeTasks resolves the given task identifiers. Identifiers are grouped
// by region and cluster and sent in batches. An empty result without error
// is returned when credentials are unavailable.
func (r *Resolver) DescribeTasks(ctx context.Context, ids []TaskIdentifier) ([]Task, error) {
	var tasks []Task
	for _, group := range groupRequests(ids) {
		creds, err := r.GetCredentials(ctx)
		if err != nil {
			return nil, err
		}
		if creds == nil {
			logging.Warn(subsystem, "Cannot describe ECS tasks, container credentials are unavailable")
			return nil, nil
		}

		described, err := r.describe(ctx, group, *creds)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, described...)
	}
	return tasks, nil
}

func (r *Resolver) describe(ctx context.Context, group requestGroup, creds aws.Credentials) ([]Task, error) {
	arns := make([]string, 0, len(group.tasks))
	for _, id := range group.tasks {
		arns = append(arns, id.Encoded)
	}

	provider := credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	client := r.newClient(group.region, provider)

	out, err := client.DescribeTasks(ctx, &awsecs.DescribeTasksInput{
		Cluster: aws.String(group.cluster),
		Tasks:   arns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe %d tasks in %s/%s: %w", len(arns), group.region, group.cluster, err)
	}

	for _, failure := range out.Failures {
		logging.Debug(subsystem, "Task %s could not be described: %s", aws.ToString(failure.Arn), aws.ToString(failure.Reason))
	}

	tasks := make([]Task, 0, len(out.Tasks))
	for _, task := range out.Tasks {
		id, err := Parse(aws.ToString(task.TaskArn))
		if err != nil {
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				logging.Warn(subsystem, "Ignoring described task with %v", err)
				continue
			}
			return nil, err
		}

		tasks = append(tasks, Task{
			Identifier: id,
			Group:      strings.TrimPrefix(aws.ToString(task.Group), serviceGroupPrefix),
		})
	}

	logging.Debug(subsystem, "Described %d of %d tasks in %s/%s", len(tasks), len(arns), group.region, group.cluster)
	return tasks, nil
}

// groupRequests groups identifiers by region, then cluster, then in chunks of
// describeTasksLimit, keeping the order of first appearance.
func groupRequests(ids []TaskIdentifier) []requestGroup {
	type location struct{ region, cluster string }

	var (
		order  []location
		byLoc  = make(map[location][]TaskIdentifier)
		groups []requestGroup
	)
	for _, id := range ids {
		loc := location{region: id.Region, cluster: id.Cluster}
		if _, ok := byLoc[loc]; !ok {
			order = append(order, loc)
		}
		byLoc[loc] = append(byLoc[loc], id)
	}

	// Regions first, so requests to the same endpoint are adjacent.
	var regions []string
	seen := make(map[string]bool)
	for _, loc := range order {
		if !seen[loc.region] {
			seen[loc.region] = true
			regions = append(regions, loc.region)
		}
	}

	for _, region := range regions {
		for _, loc := range order {
			if loc.region != region {
				continue
			}
			tasks := byLoc[loc]
			for start := 0; start < len(tasks); start += describeTasksLimit {
				end := min(start+describeTasksLimit, len(tasks))
				groups = append(groups, requestGroup{region: loc.region, cluster: loc.cluster, tasks: tasks[start:end]})
			}
		}
	}
	return groups
}
