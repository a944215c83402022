package eventlog

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies how a trigger event originated.
type Type string

const (
	TypeWebhook      Type = "webhook"
	TypeAPI          Type = "api"
	TypeFileCreated  Type = "file_created"
	TypeFileModified Type = "file_modified"
	TypeFileDeleted  Type = "file_deleted"
	TypeManual       Type = "manual"
	TypeSchedule     Type = "schedule"
)

// Event is one occurrence of a trigger firing, with its recorded outcome.
// The trigger_id is a weak reference: deleting the trigger keeps the
// event. Once Processed is true the record is terminal.
type Event struct {
	ID                  string            `json:"id"`
	TriggerID           string            `json:"trigger_id"`
	EventType           Type              `json:"event_type"`
	Timestamp           time.Time         `json:"timestamp"`
	Payload             map[string]any    `json:"payload"`
	Source              string            `json:"source"`
	Headers             map[string]string `json:"headers"`
	Processed           bool              `json:"processed"`
	WorkflowExecutionID string            `json:"workflow_execution_id,omitempty"`
	Error               string            `json:"error,omitempty"`
}

// New builds an unprocessed event with a fresh id and UTC timestamp.
func New(triggerID string, eventType Type, payload map[string]any, source string, headers map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		TriggerID: triggerID,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
		Source:    source,
		Headers:   headers,
	}
}
