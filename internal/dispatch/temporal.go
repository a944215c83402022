package dispatch

import (
	"context"
	"errors"
	"strings"

	"go.temporal.io/sdk/client"
)

const defaultTaskQueue = "sluice-triggers"

// WorkflowClient is the slice of the Temporal client the dispatcher
// needs; tests substitute a fake.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	Close()
}

// TemporalConfig names the Temporal endpoint the dispatcher talks to.
type TemporalConfig struct {
	HostPort  string
	Namespace string
	TaskQueue string
}

// TemporalDispatcher starts one workflow execution per dispatched event.
// The workflow id embeds the event id, so a duplicate dispatch of the
// same event is rejected by the server rather than silently doubled.
type TemporalDispatcher struct {
	client    WorkflowClient
	taskQueue string
}

func NewTemporalDispatcher(config TemporalConfig) (*TemporalDispatcher, error) {
	if strings.TrimSpace(config.HostPort) == "" {
		return nil, errors.New("temporal host_port required")
	}
	dialed, err := client.Dial(client.Options{
		HostPort:  config.HostPort,
		Namespace: config.Namespace,
	})
	if err != nil {
		return nil, err
	}
	return NewTemporalDispatcherWithClient(dialed, config.TaskQueue), nil
}

func NewTemporalDispatcherWithClient(workflowClient WorkflowClient, taskQueue string) *TemporalDispatcher {
	if strings.TrimSpace(taskQueue) == "" {
		taskQueue = defaultTaskQueue
	}
	return &TemporalDispatcher{
		client:    workflowClient,
		taskQueue: taskQueue,
	}
}

func (dispatcher *TemporalDispatcher) Dispatch(ctx context.Context, workflowID string, correlation Correlation) (string, error) {
	if dispatcher == nil || dispatcher.client == nil {
		return "", errors.New("temporal client unavailable")
	}
	if strings.TrimSpace(workflowID) == "" {
		return "", errors.New("workflow id required")
	}

	options := client.StartWorkflowOptions{
		ID:        workflowID + "-" + correlation.EventID,
		TaskQueue: dispatcher.taskQueue,
	}
	run, err := dispatcher.client.ExecuteWorkflow(ctx, options, workflowID, correlation)
	if err != nil {
		return "", err
	}
	return run.GetID() + "/" + run.GetRunID(), nil
}

func (dispatcher *TemporalDispatcher) Close() {
	if dispatcher == nil || dispatcher.client == nil {
		return
	}
	dispatcher.client.Close()
}
