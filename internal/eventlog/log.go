package eventlog

import (
	"errors"
	"sort"
	"sync"

	"sluice/internal/logging"
)

const DefaultRetention = 1000

// Log is the durable, retention-capped store of event outcomes. Appends
// happen in per-source receipt order; listings sort by timestamp at query
// time because there is no global order across sources.
type Log struct {
	mu        sync.Mutex
	repo      Repository
	events    []Event
	retention int
	logger    *logging.Logger
}

// Open loads the persisted snapshot and trims it to the retention cap.
func Open(repo Repository, retention int, logger *logging.Logger) (*Log, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	log := &Log{
		repo:      repo,
		events:    []Event{},
		retention: retention,
		logger:    logger,
	}
	if repo == nil {
		return log, nil
	}
	events, err := repo.Load()
	if err != nil {
		if errors.Is(err, ErrInvalidLog) {
			log.logWarn("event log invalid, starting empty", nil)
			return log, nil
		}
		return nil, err
	}
	log.events = events
	if log.trimLocked() {
		log.persistLocked()
	}
	return log, nil
}

// Record inserts the event, or replaces the stored record with the same
// id when the processor writes the terminal outcome. A persistence
// failure is logged and the in-memory record kept.
func (log *Log) Record(event Event) {
	if log == nil || event.ID == "" {
		return
	}
	log.mu.Lock()
	defer log.mu.Unlock()

	replaced := false
	for i := range log.events {
		if log.events[i].ID == event.ID {
			log.events[i] = event
			replaced = true
			break
		}
	}
	if !replaced {
		log.events = append(log.events, event)
		log.trimLocked()
	}
	log.persistLocked()
}

// Get returns the stored record for id.
func (log *Log) Get(id string) (Event, bool) {
	if log == nil {
		return Event{}, false
	}
	log.mu.Lock()
	defer log.mu.Unlock()

	for i := range log.events {
		if log.events[i].ID == id {
			return log.events[i], true
		}
	}
	return Event{}, false
}

// List returns a timestamp-descending page and the total record count.
func (log *Log) List(limit, offset int) ([]Event, int) {
	if log == nil {
		return nil, 0
	}
	log.mu.Lock()
	snapshot := make([]Event, len(log.events))
	copy(snapshot, log.events)
	log.mu.Unlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].Timestamp.After(snapshot[j].Timestamp)
	})

	total := len(snapshot)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Event{}, total
	}
	snapshot = snapshot[offset:]
	if limit > 0 && limit < len(snapshot) {
		snapshot = snapshot[:limit]
	}
	return snapshot, total
}

func (log *Log) Len() int {
	if log == nil {
		return 0
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	return len(log.events)
}

// trimLocked keeps the most recent retention records by timestamp.
func (log *Log) trimLocked() bool {
	if len(log.events) <= log.retention {
		return false
	}
	sort.SliceStable(log.events, func(i, j int) bool {
		return log.events[i].Timestamp.Before(log.events[j].Timestamp)
	})
	log.events = log.events[len(log.events)-log.retention:]
	return true
}

func (log *Log) persistLocked() {
	if log.repo == nil {
		return
	}
	snapshot := make([]Event, len(log.events))
	copy(snapshot, log.events)
	if err := log.repo.Save(snapshot); err != nil {
		log.logWarn("event log save failed", map[string]string{
			"error": err.Error(),
		})
	}
}

func (log *Log) logWarn(message string, fields map[string]string) {
	if log == nil || log.logger == nil {
		return
	}
	log.logger.Warn(message, fields)
}
