package api

import (
	"time"

	"sluice/internal/logging"
	"sluice/internal/system"
)

// Gateway serves the inbound surface: webhook and API ingestion, trigger
// CRUD, event listings, health, and the processed-event stream.
type Gateway struct {
	System          *system.System
	Logger          *logging.Logger
	APIKey          string
	RateLimitMax    int
	RateLimitWindow time.Duration
	RequestTimeout  time.Duration
}

type triggerFireResponse struct {
	Message     string `json:"message"`
	EventID     string `json:"event_id"`
	ExecutionID string `json:"execution_id,omitempty"`
}

type filteredResponse struct {
	Message string `json:"message"`
}
