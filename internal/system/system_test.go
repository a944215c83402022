package system

import (
	"sync"
	"testing"
	"time"

	"sluice/internal/eventlog"
	"sluice/internal/ratelimit"
	"sluice/internal/trigger"
	"sluice/internal/watch"
)

type fakeWatch struct {
	mu      sync.Mutex
	factory *watchFactory
	options watch.Options
	started bool
	stopped bool
}

func (w *fakeWatch) Start() error {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	w.factory.record("start:" + w.options.Path)
	return nil
}

func (w *fakeWatch) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.factory.record("stop:" + w.options.Path)
}

func (w *fakeWatch) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

type watchFactory struct {
	mu      sync.Mutex
	watches []*fakeWatch
	log     []string
}

func (f *watchFactory) build(options watch.Options) watch.Watch {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWatch{factory: f, options: options}
	f.watches = append(f.watches, w)
	return w
}

func (f *watchFactory) record(entry string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, entry)
}

func (f *watchFactory) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func (f *watchFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watches)
}

func (f *watchFactory) at(i int) *fakeWatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watches[i]
}

func newTestSystem(t *testing.T, factory *watchFactory) *System {
	t.Helper()
	registry, err := trigger.OpenRegistry(nil, nil)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	events, err := eventlog.Open(nil, 100, nil)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return New(Options{
		Registry: registry,
		Events:   events,
		Limiter:  ratelimit.NewLimiter(),
		NewWatch: factory.build,
	})
}

func watcherDefinition(name, path string) trigger.Definition {
	return trigger.Definition{
		Name:    name,
		Kind:    trigger.KindFileWatcher,
		Enabled: true,
		Conditions: map[string]any{
			"path":     path,
			"patterns": []any{"*.json"},
		},
	}
}

func TestStartBringsUpEnabledWatchers(t *testing.T) {
	factory := &watchFactory{}
	sys := newTestSystem(t, factory)

	if _, err := sys.Registry().Create(watcherDefinition("w1", "/tmp/a")); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	disabled := watcherDefinition("w2", "/tmp/b")
	disabled.Enabled = false
	if _, err := sys.Registry().Create(disabled); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if err := sys.Start(); err != nil {
		t.Fatalf("start system: %v", err)
	}
	defer sys.Stop()

	if sys.ActiveWatches() != 1 {
		t.Fatalf("expected 1 active watch, got %d", sys.ActiveWatches())
	}
	if factory.count() != 1 {
		t.Fatalf("expected 1 watch built, got %d", factory.count())
	}
	if factory.at(0).options.Path != "/tmp/a" {
		t.Fatalf("unexpected watch path %q", factory.at(0).options.Path)
	}
}

func TestCreateTriggerStartsWatchWhileRunning(t *testing.T) {
	factory := &watchFactory{}
	sys := newTestSystem(t, factory)

	if err := sys.Start(); err != nil {
		t.Fatalf("start system: %v", err)
	}
	defer sys.Stop()

	if _, err := sys.CreateTrigger(watcherDefinition("w1", "/tmp/a")); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if sys.ActiveWatches() != 1 {
		t.Fatalf("expected watch started on create, got %d", sys.ActiveWatches())
	}
}

func TestCreateTriggerBeforeStartDefersWatch(t *testing.T) {
	factory := &watchFactory{}
	sys := newTestSystem(t, factory)

	if _, err := sys.CreateTrigger(watcherDefinition("w1", "/tmp/a")); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if factory.count() != 0 {
		t.Fatalf("watch must not start before the system runs")
	}

	if err := sys.Start(); err != nil {
		t.Fatalf("start system: %v", err)
	}
	defer sys.Stop()
	if sys.ActiveWatches() != 1 {
		t.Fatalf("expected deferred watch to start, got %d", sys.ActiveWatches())
	}
}

func TestUpdateTriggerStopsOldWatchBeforeReplacement(t *testing.T) {
	factory := &watchFactory{}
	sys := newTestSystem(t, factory)

	created, err := sys.CreateTrigger(watcherDefinition("w1", "/tmp/a"))
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := sys.Start(); err != nil {
		t.Fatalf("start system: %v", err)
	}
	defer sys.Stop()

	if _, err := sys.UpdateTrigger(created.ID, trigger.Patch{
		Conditions: map[string]any{"path": "/tmp/b"},
	}); err != nil {
		t.Fatalf("update trigger: %v", err)
	}

	if factory.count() != 2 {
		t.Fatalf("expected replacement watch built, got %d", factory.count())
	}
	if !factory.at(0).isStopped() {
		t.Fatalf("previous watch must be stopped on update")
	}
	if factory.at(1).options.Path != "/tmp/b" {
		t.Fatalf("replacement watch has wrong path %q", factory.at(1).options.Path)
	}
	if sys.ActiveWatches() != 1 {
		t.Fatalf("expected 1 active watch after update, got %d", sys.ActiveWatches())
	}

	history := factory.history()
	want := []string{"start:/tmp/a", "stop:/tmp/a", "start:/tmp/b"}
	if len(history) != len(want) {
		t.Fatalf("unexpected watch lifecycle %v", history)
	}
	for i, entry := range want {
		if history[i] != entry {
			t.Fatalf("old watch must fully stop before the replacement starts, got %v", history)
		}
	}
}

func TestWatchStartedDuringShutdownIsStopped(t *testing.T) {
	factory := &watchFactory{}
	sys := newTestSystem(t, factory)

	if err := sys.Start(); err != nil {
		t.Fatalf("start system: %v", err)
	}
	created, err := sys.Registry().Create(watcherDefinition("w1", "/tmp/a"))
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	sys.Stop()

	if err := sys.startWatch(created); err != nil {
		t.Fatalf("start watch: %v", err)
	}
	if sys.ActiveWatches() != 0 {
		t.Fatalf("stopped system must hold no watches, got %d", sys.ActiveWatches())
	}
	if factory.count() != 1 {
		t.Fatalf("expected 1 watch built, got %d", factory.count())
	}
	if !factory.at(0).isStopped() {
		t.Fatalf("watch started during shutdown must be stopped")
	}
}

func TestUpdateDisablingTriggerStopsWatch(t *testing.T) {
	factory := &watchFactory{}
	sys := newTestSystem(t, factory)

	created, err := sys.CreateTrigger(watcherDefinition("w1", "/tmp/a"))
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := sys.Start(); err != nil {
		t.Fatalf("start system: %v", err)
	}
	defer sys.Stop()

	disabled := false
	if _, err := sys.UpdateTrigger(created.ID, trigger.Patch{Enabled: &disabled}); err != nil {
		t.Fatalf("update trigger: %v", err)
	}
	if sys.ActiveWatches() != 0 {
		t.Fatalf("disabled trigger must have no watch, got %d", sys.ActiveWatches())
	}
	if !factory.at(0).isStopped() {
		t.Fatalf("watch must be stopped when trigger is disabled")
	}
}

func TestDeleteTriggerStopsWatch(t *testing.T) {
	factory := &watchFactory{}
	sys := newTestSystem(t, factory)

	created, err := sys.CreateTrigger(watcherDefinition("w1", "/tmp/a"))
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := sys.Start(); err != nil {
		t.Fatalf("start system: %v", err)
	}
	defer sys.Stop()

	if err := sys.DeleteTrigger(created.ID); err != nil {
		t.Fatalf("delete trigger: %v", err)
	}
	if sys.ActiveWatches() != 0 {
		t.Fatalf("deleted trigger must have no watch, got %d", sys.ActiveWatches())
	}
	if !factory.at(0).isStopped() {
		t.Fatalf("watch must be stopped on delete")
	}
}

func TestStopTearsEverythingDown(t *testing.T) {
	factory := &watchFactory{}
	sys := newTestSystem(t, factory)

	if _, err := sys.CreateTrigger(watcherDefinition("w1", "/tmp/a")); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := sys.Start(); err != nil {
		t.Fatalf("start system: %v", err)
	}
	sys.Stop()

	if sys.Running() {
		t.Fatalf("system must not report running after stop")
	}
	if sys.ActiveWatches() != 0 {
		t.Fatalf("expected no active watches after stop")
	}
	if !factory.at(0).isStopped() {
		t.Fatalf("watch must be stopped on system stop")
	}
}

func TestFileEventFlowsThroughProcessor(t *testing.T) {
	factory := &watchFactory{}
	sys := newTestSystem(t, factory)

	created, err := sys.CreateTrigger(watcherDefinition("w1", "/tmp/a"))
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := sys.Start(); err != nil {
		t.Fatalf("start system: %v", err)
	}
	defer sys.Stop()

	handler := factory.at(0).options.OnEvent
	handler(watch.FileEvent{
		Path:      "/tmp/a/report.json",
		Op:        watch.OpCreated,
		Timestamp: time.Now().UTC(),
	})

	events, total := sys.Events().List(10, 0)
	if total != 1 {
		t.Fatalf("expected 1 recorded event, got %d", total)
	}
	evt := events[0]
	if evt.TriggerID != created.ID || evt.EventType != eventlog.TypeFileCreated {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if evt.Payload["path"] != "/tmp/a/report.json" {
		t.Fatalf("payload missing path: %+v", evt.Payload)
	}
	if !evt.Processed {
		t.Fatalf("file event must reach a terminal state")
	}
	if evt.Source != "file_watcher" {
		t.Fatalf("unexpected source %q", evt.Source)
	}
}
