// Package schedule runs the interval loop behind schedule-kind triggers.
package schedule

import (
	"errors"
	"sync"
	"time"

	"sluice/internal/logging"
	"sluice/internal/trigger"
)

// Scheduler owns one ticker goroutine per scheduled trigger. Stop always
// terminates the previous loop before a caller starts a replacement.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]chan struct{}
	emit    func(trigger.Definition)
	logger  *logging.Logger
}

func NewScheduler(emit func(trigger.Definition), logger *logging.Logger) *Scheduler {
	return &Scheduler{
		entries: make(map[string]chan struct{}),
		emit:    emit,
		logger:  logger,
	}
}

func (scheduler *Scheduler) Start(definition trigger.Definition) error {
	if scheduler == nil {
		return errors.New("scheduler unavailable")
	}
	spec := definition.ScheduleSpec()
	if spec.Interval <= 0 {
		return errors.New("schedule trigger requires a positive interval")
	}

	scheduler.mu.Lock()
	if _, exists := scheduler.entries[definition.ID]; exists {
		scheduler.mu.Unlock()
		return errors.New("schedule already running for trigger " + definition.ID)
	}
	stop := make(chan struct{})
	scheduler.entries[definition.ID] = stop
	scheduler.mu.Unlock()

	go scheduler.run(definition, spec.Interval, stop)
	scheduler.logInfo("schedule started", map[string]string{
		"trigger_id": definition.ID,
		"interval":   spec.Interval.String(),
	})
	return nil
}

func (scheduler *Scheduler) Stop(id string) {
	if scheduler == nil {
		return
	}
	scheduler.mu.Lock()
	stop, ok := scheduler.entries[id]
	if ok {
		delete(scheduler.entries, id)
	}
	scheduler.mu.Unlock()

	if ok {
		close(stop)
	}
}

func (scheduler *Scheduler) StopAll() {
	if scheduler == nil {
		return
	}
	scheduler.mu.Lock()
	entries := scheduler.entries
	scheduler.entries = make(map[string]chan struct{})
	scheduler.mu.Unlock()

	for _, stop := range entries {
		close(stop)
	}
}

func (scheduler *Scheduler) Active() int {
	if scheduler == nil {
		return 0
	}
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	return len(scheduler.entries)
}

func (scheduler *Scheduler) run(definition trigger.Definition, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if scheduler.emit != nil {
				scheduler.emit(definition)
			}
		case <-stop:
			return
		}
	}
}

func (scheduler *Scheduler) logInfo(message string, fields map[string]string) {
	if scheduler == nil || scheduler.logger == nil {
		return
	}
	scheduler.logger.Info(message, fields)
}
