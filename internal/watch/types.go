package watch

import (
	"time"

	"sluice/internal/logging"
)

// Op classifies a filesystem change.
type Op string

const (
	OpCreated  Op = "created"
	OpModified Op = "modified"
	OpDeleted  Op = "deleted"
)

// FileEvent is a single filtered filesystem change.
type FileEvent struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// Watch is the capability the trigger system depends on; the fsnotify
// implementation is swappable per platform without touching event
// processing.
type Watch interface {
	Start() error
	Stop()
}

// Options configures one directory observation.
type Options struct {
	Path      string
	Recursive bool
	Patterns  []string
	Debounce  time.Duration
	Logger    *logging.Logger
	OnEvent   func(FileEvent)
}
