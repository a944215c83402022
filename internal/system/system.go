// Package system wires the trigger registry, event log, rate limiter,
// watchers, scheduler, and processor into one explicitly-owned instance.
// Nothing here is a singleton; the gateway receives the instance by
// reference.
package system

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"sluice/internal/dispatch"
	"sluice/internal/event"
	"sluice/internal/eventlog"
	"sluice/internal/logging"
	"sluice/internal/metrics"
	"sluice/internal/processor"
	"sluice/internal/ratelimit"
	"sluice/internal/schedule"
	"sluice/internal/trigger"
	"sluice/internal/watch"
)

type Options struct {
	Registry        *trigger.Registry
	Events          *eventlog.Log
	Limiter         *ratelimit.Limiter
	Dispatcher      dispatch.Dispatcher
	DispatchTimeout time.Duration
	Logger          *logging.Logger

	// NewWatch builds the platform watcher; tests substitute a fake.
	NewWatch func(watch.Options) watch.Watch
}

type System struct {
	registry  *trigger.Registry
	events    *eventlog.Log
	limiter   *ratelimit.Limiter
	processor *processor.Processor
	scheduler *schedule.Scheduler
	metrics   *metrics.Registry
	logger    *logging.Logger
	newWatch  func(watch.Options) watch.Watch

	mu       sync.Mutex
	watchers map[string]watch.Watch
	running  bool
}

func New(options Options) *System {
	notifications := event.NewBus[processor.Notification](event.BusOptions{
		Name: "trigger_processed",
	})
	newWatch := options.NewWatch
	if newWatch == nil {
		newWatch = func(watchOptions watch.Options) watch.Watch {
			return watch.New(watchOptions)
		}
	}
	sys := &System{
		registry: options.Registry,
		events:   options.Events,
		limiter:  options.Limiter,
		metrics:  metrics.NewRegistry(),
		logger:   options.Logger,
		newWatch: newWatch,
		watchers: make(map[string]watch.Watch),
	}
	sys.processor = processor.New(options.Registry, options.Events, options.Dispatcher, notifications, sys.metrics, options.DispatchTimeout, options.Logger)
	sys.scheduler = schedule.NewScheduler(sys.emitScheduleEvent, options.Logger)
	return sys
}

func (sys *System) Registry() *trigger.Registry     { return sys.registry }
func (sys *System) Events() *eventlog.Log           { return sys.events }
func (sys *System) Limiter() *ratelimit.Limiter     { return sys.limiter }
func (sys *System) Processor() *processor.Processor { return sys.processor }
func (sys *System) Metrics() *metrics.Registry      { return sys.metrics }

func (sys *System) Running() bool {
	if sys == nil {
		return false
	}
	sys.mu.Lock()
	defer sys.mu.Unlock()
	return sys.running
}

func (sys *System) ActiveWatches() int {
	if sys == nil {
		return 0
	}
	sys.mu.Lock()
	defer sys.mu.Unlock()
	return len(sys.watchers)
}

// Start brings up watchers and schedules for every enabled trigger.
func (sys *System) Start() error {
	if sys == nil {
		return errors.New("trigger system unavailable")
	}
	sys.mu.Lock()
	if sys.running {
		sys.mu.Unlock()
		return nil
	}
	sys.running = true
	sys.mu.Unlock()

	for _, definition := range sys.registry.List() {
		if !definition.Enabled {
			continue
		}
		switch definition.Kind {
		case trigger.KindFileWatcher:
			if err := sys.startWatch(definition); err != nil {
				sys.logWarn("watch start failed", map[string]string{
					"trigger_id": definition.ID,
					"error":      err.Error(),
				})
			}
		case trigger.KindSchedule:
			if err := sys.scheduler.Start(definition); err != nil {
				sys.logWarn("schedule start failed", map[string]string{
					"trigger_id": definition.ID,
					"error":      err.Error(),
				})
			}
		}
	}
	sys.logInfo("trigger system started", map[string]string{
		"triggers": strconv.Itoa(sys.registry.Len()),
	})
	return nil
}

// Stop tears down all watchers and schedules and closes the
// notification bus.
func (sys *System) Stop() {
	if sys == nil {
		return
	}
	sys.mu.Lock()
	if !sys.running {
		sys.mu.Unlock()
		return
	}
	sys.running = false
	watchers := sys.watchers
	sys.watchers = make(map[string]watch.Watch)
	sys.mu.Unlock()

	for _, watcher := range watchers {
		watcher.Stop()
	}
	sys.scheduler.StopAll()
	if bus := sys.processor.Notifications(); bus != nil {
		bus.Close()
	}
	sys.logInfo("trigger system stopped", nil)
}

// CreateTrigger stores the definition and, when the system is running,
// brings up the watch or schedule for it.
func (sys *System) CreateTrigger(definition trigger.Definition) (trigger.Definition, error) {
	created, err := sys.registry.Create(definition)
	if err != nil {
		return trigger.Definition{}, err
	}
	sys.syncTrigger(created)
	return created, nil
}

// UpdateTrigger merges the patch; the previous watch handle is stopped
// before any replacement starts.
func (sys *System) UpdateTrigger(id string, patch trigger.Patch) (trigger.Definition, error) {
	updated, err := sys.registry.Update(id, patch)
	if err != nil {
		return trigger.Definition{}, err
	}
	sys.stopTriggerResources(id)
	sys.syncTrigger(updated)
	return updated, nil
}

func (sys *System) DeleteTrigger(id string) error {
	if err := sys.registry.Delete(id); err != nil {
		return err
	}
	sys.stopTriggerResources(id)
	return nil
}

// syncTrigger starts the watch or schedule for an enabled trigger when
// the system is running. Failures are logged; the definition stays
// stored either way.
func (sys *System) syncTrigger(definition trigger.Definition) {
	if !sys.Running() || !definition.Enabled {
		return
	}
	switch definition.Kind {
	case trigger.KindFileWatcher:
		if err := sys.startWatch(definition); err != nil {
			sys.logWarn("watch start failed", map[string]string{
				"trigger_id": definition.ID,
				"error":      err.Error(),
			})
		}
	case trigger.KindSchedule:
		if err := sys.scheduler.Start(definition); err != nil {
			sys.logWarn("schedule start failed", map[string]string{
				"trigger_id": definition.ID,
				"error":      err.Error(),
			})
		}
	}
}

func (sys *System) startWatch(definition trigger.Definition) error {
	// A leftover handle for the same trigger must release its OS watch
	// before the replacement opens the path.
	sys.mu.Lock()
	previous, hadPrevious := sys.watchers[definition.ID]
	if hadPrevious {
		delete(sys.watchers, definition.ID)
	}
	sys.mu.Unlock()
	if hadPrevious {
		previous.Stop()
	}

	spec := definition.FileWatcherSpec()
	watcher := sys.newWatch(watch.Options{
		Path:      spec.Path,
		Recursive: spec.Recursive,
		Patterns:  spec.Patterns,
		Logger:    sys.logger,
		OnEvent:   sys.fileEventHandler(definition.ID),
	})
	if err := watcher.Start(); err != nil {
		return err
	}

	sys.mu.Lock()
	if !sys.running {
		// Stop raced us between the syncTrigger check and here; the
		// handle must not outlive the system.
		sys.mu.Unlock()
		watcher.Stop()
		return nil
	}
	sys.watchers[definition.ID] = watcher
	sys.mu.Unlock()
	return nil
}

func (sys *System) stopTriggerResources(id string) {
	sys.mu.Lock()
	watcher, ok := sys.watchers[id]
	if ok {
		delete(sys.watchers, id)
	}
	sys.mu.Unlock()

	if ok {
		watcher.Stop()
	}
	sys.scheduler.Stop(id)
}

func fileEventType(op watch.Op) eventlog.Type {
	switch op {
	case watch.OpCreated:
		return eventlog.TypeFileCreated
	case watch.OpDeleted:
		return eventlog.TypeFileDeleted
	default:
		return eventlog.TypeFileModified
	}
}

func (sys *System) fileEventHandler(triggerID string) func(watch.FileEvent) {
	return func(fileEvent watch.FileEvent) {
		evt := eventlog.New(triggerID, fileEventType(fileEvent.Op), map[string]any{
			"path":      fileEvent.Path,
			"operation": string(fileEvent.Op),
		}, "file_watcher", nil)
		sys.processor.Process(context.Background(), evt)
	}
}

func (sys *System) emitScheduleEvent(definition trigger.Definition) {
	evt := eventlog.New(definition.ID, eventlog.TypeSchedule, map[string]any{
		"interval_seconds": definition.ScheduleSpec().Interval.Seconds(),
	}, "scheduler", nil)
	sys.processor.Process(context.Background(), evt)
}

func (sys *System) logInfo(message string, fields map[string]string) {
	if sys == nil || sys.logger == nil {
		return
	}
	sys.logger.Info(message, fields)
}

func (sys *System) logWarn(message string, fields map[string]string) {
	if sys == nil || sys.logger == nil {
		return
	}
	sys.logger.Warn(message, fields)
}
