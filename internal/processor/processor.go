// Package processor is the central funnel: every event, whatever its
// source, is persisted on receipt, resolved against the registry,
// dispatched at most once, and persisted again with its terminal outcome.
package processor

import (
	"context"
	"errors"
	"time"

	"sluice/internal/dispatch"
	"sluice/internal/event"
	"sluice/internal/eventlog"
	"sluice/internal/logging"
	"sluice/internal/metrics"
	"sluice/internal/trigger"
)

const defaultDispatchTimeout = 10 * time.Second

// ErrNoDispatcher marks manual triggers invoked with no dispatcher
// attached; callers map it to 503.
var ErrNoDispatcher = errors.New("no dispatcher attached")

// ManualTriggerID is the synthetic trigger id for manual invocations.
const ManualTriggerID = "manual"

// Notification is the fire-and-forget record published after an event
// reaches its terminal state.
type Notification struct {
	EventID     string        `json:"event_id"`
	TriggerID   string        `json:"trigger_id"`
	EventType   eventlog.Type `json:"event_type"`
	ExecutionID string        `json:"execution_id,omitempty"`
	Error       string        `json:"error,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

func (n Notification) Type() string {
	return "trigger_processed"
}

type Processor struct {
	registry        *trigger.Registry
	log             *eventlog.Log
	dispatcher      dispatch.Dispatcher
	notifications   *event.Bus[Notification]
	metrics         *metrics.Registry
	dispatchTimeout time.Duration
	logger          *logging.Logger
}

func New(registry *trigger.Registry, log *eventlog.Log, dispatcher dispatch.Dispatcher, notifications *event.Bus[Notification], registryMetrics *metrics.Registry, dispatchTimeout time.Duration, logger *logging.Logger) *Processor {
	if dispatchTimeout <= 0 {
		dispatchTimeout = defaultDispatchTimeout
	}
	return &Processor{
		registry:        registry,
		log:             log,
		dispatcher:      dispatcher,
		notifications:   notifications,
		metrics:         registryMetrics,
		dispatchTimeout: dispatchTimeout,
		logger:          logger,
	}
}

// Notifications exposes the processed-event bus for observers.
func (p *Processor) Notifications() *event.Bus[Notification] {
	if p == nil {
		return nil
	}
	return p.notifications
}

// HasDispatcher reports whether dispatch attempts are possible at all.
func (p *Processor) HasDispatcher() bool {
	return p != nil && p.dispatcher != nil
}

// Process runs one event through the state machine and returns the
// terminal record. The event is persisted before anything else, so a
// crash mid-dispatch still leaves an auditable record.
func (p *Processor) Process(ctx context.Context, evt eventlog.Event) eventlog.Event {
	p.record(evt)
	p.metrics.IncEventsReceived()

	definition, err := p.registry.Get(evt.TriggerID)
	if err != nil {
		return p.finish(evt, "", "trigger not found: "+evt.TriggerID, 0)
	}
	if !definition.Enabled {
		return p.finish(evt, "", "trigger disabled: "+evt.TriggerID, 0)
	}

	if p.dispatcher == nil || definition.WorkflowID == "" {
		// Nothing to dispatch; the record stays terminal with neither
		// execution id nor error.
		return p.finish(evt, "", "", 0)
	}

	started := time.Now()
	executionID, err := p.dispatch(ctx, definition.WorkflowID, evt)
	elapsed := time.Since(started)
	if err != nil {
		return p.finish(evt, "", err.Error(), elapsed)
	}
	return p.finish(evt, executionID, "", elapsed)
}

// ManualTrigger bypasses trigger lookup, builds a synthetic event, and
// always attempts dispatch. It fails distinctly when no dispatcher is
// attached.
func (p *Processor) ManualTrigger(ctx context.Context, workflowID string, payload map[string]any) (eventlog.Event, error) {
	evt := eventlog.New(ManualTriggerID, eventlog.TypeManual, payload, "manual_api", nil)
	p.record(evt)
	p.metrics.IncEventsReceived()

	if p.dispatcher == nil {
		final := p.finish(evt, "", ErrNoDispatcher.Error(), 0)
		return final, ErrNoDispatcher
	}

	started := time.Now()
	executionID, err := p.dispatch(ctx, workflowID, evt)
	elapsed := time.Since(started)
	if err != nil {
		return p.finish(evt, "", err.Error(), elapsed), nil
	}
	return p.finish(evt, executionID, "", elapsed), nil
}

func (p *Processor) dispatch(ctx context.Context, workflowID string, evt eventlog.Event) (executionID string, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dispatchCtx, cancel := context.WithTimeout(ctx, p.dispatchTimeout)
	defer cancel()

	// A panicking dispatcher must not take the gateway down; it is
	// recorded like any other dispatch failure.
	defer func() {
		if recovered := recover(); recovered != nil {
			executionID = ""
			err = errors.New("dispatcher panic")
			p.logError("dispatcher panicked", map[string]string{
				"workflow_id": workflowID,
				"event_id":    evt.ID,
			})
		}
	}()

	return p.dispatcher.Dispatch(dispatchCtx, workflowID, dispatch.Correlation{
		TriggerID: evt.TriggerID,
		EventID:   evt.ID,
		Payload:   evt.Payload,
		Source:    evt.Source,
	})
}

// finish writes the terminal outcome, persists it, and publishes the
// trigger_processed notification without ever blocking on observers.
func (p *Processor) finish(evt eventlog.Event, executionID, errMessage string, dispatchDuration time.Duration) eventlog.Event {
	evt.Processed = true
	evt.WorkflowExecutionID = executionID
	evt.Error = errMessage
	p.record(evt)
	p.metrics.RecordOutcome(evt.TriggerID, dispatchDuration, errMessage != "")

	if errMessage != "" {
		p.logWarn("trigger event failed", map[string]string{
			"event_id":   evt.ID,
			"trigger_id": evt.TriggerID,
			"error":      errMessage,
		})
	}

	if p.notifications != nil {
		p.notifications.Publish(Notification{
			EventID:     evt.ID,
			TriggerID:   evt.TriggerID,
			EventType:   evt.EventType,
			ExecutionID: executionID,
			Error:       errMessage,
			OccurredAt:  time.Now().UTC(),
		})
	}
	return evt
}

func (p *Processor) record(evt eventlog.Event) {
	if p == nil || p.log == nil {
		return
	}
	p.log.Record(evt)
}

func (p *Processor) logWarn(message string, fields map[string]string) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Warn(message, fields)
}

func (p *Processor) logError(message string, fields map[string]string) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Error(message, fields)
}
