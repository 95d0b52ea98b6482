// Package ecs resolves ECS task ARNs to the services the tasks belong to.
package ecs

import (
	"fmt"
	"strings"
)

// TaskARNLabel is the container label set by the ECS agent on every
// container it starts.
const TaskARNLabel = "com.amazonaws.ecs.task-arn"

// TaskIdentifier is a parsed ECS task ARN.
type TaskIdentifier struct {
	// Encoded is the ARN as it was read from the label.
	Encoded    string
	ResourceID string
	Region     string
	Cluster    string
}

// TaskKey identifies a task independently of how its ARN was encoded.
type TaskKey struct {
	ResourceID string
	Region     string
	Cluster    string
}

// Key returns the comparable identity of the task.
func (t TaskIdentifier) Key() TaskKey {
	return TaskKey{ResourceID: t.ResourceID, Region: t.Region, Cluster: t.Cluster}
}

// Equal reports whether both identifiers refer to the same task.
func (t TaskIdentifier) Equal(other TaskIdentifier) bool {
	return t.Key() == other.Key()
}

func (t TaskIdentifier) String() string {
	return t.Encoded
}

// ParseError is returned when a label value is not a task ARN.
type ParseError struct {
	ARN string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed task ARN %q", e.ARN)
}

// Parse parses a task ARN of the form
// arn:{partition}:ecs:{region}:{account}:task/{cluster}/{resourceId}.
func Parse(arn string) (TaskIdentifier, error) {
	parts := strings.Split(arn, ":")
	if len(parts) != 6 {
		return TaskIdentifier{}, &ParseError{ARN: arn}
	}

	resource := strings.Split(parts[5], "/")
	if len(resource) != 3 {
		return TaskIdentifier{}, &ParseError{ARN: arn}
	}

	return TaskIdentifier{
		Encoded:    arn,
		ResourceID: resource[2],
		Region:     parts[3],
		Cluster:    resource[1],
	}, nil
}
