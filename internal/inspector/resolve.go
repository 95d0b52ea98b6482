package inspector

import (
	"context"
	"errors"
	"fmt"

	"inspector/internal/containerizer"
	"inspector/internal/ecs"
	"inspector/pkg/logging"
)

// resolve builds descriptors for the given containers, naming each from the
// service name label or, failing that, from the group of its ECS task. Task
// lookups are batched into one call. Containers that cannot be named get an
// unnamed descriptor.
func (i *Inspector) resolve(ctx context.Context, containers []*containerizer.Container) ([]*descriptor, error) {
	var (
		descriptors = make([]*descriptor, 0, len(containers))
		pending     = make(map[ecs.TaskKey]*descriptor)
		ids         []ecs.TaskIdentifier
	)

	for _, c := range containers {
		d := &descriptor{container: c}
		descriptors = append(descriptors, d)

		if name := c.Labels[i.config.ServiceNameLabel]; name != "" {
			d.serviceName = name
			d.source = NameSourceLabel
			logging.Debug(subsystem, "Container %s is named %s by label", c.ShortID(), name)
			continue
		}

		arn, ok := c.Labels[i.config.TaskARNLabel]
		if !ok {
			logging.Debug(subsystem, "Container %s has neither a service name nor a task label", c.ShortID())
			continue
		}

		id, err := ecs.Parse(arn)
		if err != nil {
			var parseErr *ecs.ParseError
			if !errors.As(err, &parseErr) {
				return nil, err
			}
			logging.Warn(subsystem, "Skipping container %s: %v", c.ShortID(), err)
			continue
		}

		if _, duplicate := pending[id.Key()]; duplicate {
			logging.Warn(subsystem, "Skipping container %s: task %s is already referenced by another container", c.ShortID(), id)
			continue
		}
		pending[id.Key()] = d
		ids = append(ids, id)
	}

	if len(ids) == 0 || i.resolver == nil {
		return descriptors, nil
	}

	creds, err := i.resolver.GetCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get task credentials: %w", err)
	}
	if creds == nil {
		logging.Debug(subsystem, "No task credentials available, %d tasks stay unresolved", len(ids))
		return descriptors, nil
	}

	tasks, err := i.resolver.DescribeTasks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %d tasks: %w", len(ids), err)
	}

	for _, task := range tasks {
		d, ok := pending[task.Identifier.Key()]
		if !ok {
			return nil, fmt.Errorf("resolver returned unrequested task %s", task.Identifier)
		}
		if task.Group == "" {
			continue
		}
		d.serviceName = task.Group
		d.source = NameSourceTask
		logging.Debug(subsystem, "Container %s is named %s by task %s", d.container.ShortID(), task.Group, task.Identifier)
	}

	return descriptors, nil
}
