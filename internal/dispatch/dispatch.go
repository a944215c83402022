// Package dispatch defines the boundary to the workflow executor. The
// trigger service records dispatcher failures verbatim and never retries;
// retry is the caller's concern.
package dispatch

import "context"

// Correlation ties a workflow execution back to the event that caused it.
type Correlation struct {
	TriggerID string         `json:"trigger_id"`
	EventID   string         `json:"event_id"`
	Payload   map[string]any `json:"payload"`
	Source    string         `json:"source"`
}

// Dispatcher starts a workflow and returns its execution id.
type Dispatcher interface {
	Dispatch(ctx context.Context, workflowID string, correlation Correlation) (string, error)
}

// Func adapts a plain function to the Dispatcher interface.
type Func func(ctx context.Context, workflowID string, correlation Correlation) (string, error)

func (f Func) Dispatch(ctx context.Context, workflowID string, correlation Correlation) (string, error) {
	return f(ctx, workflowID, correlation)
}
