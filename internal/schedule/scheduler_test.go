package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"sluice/internal/trigger"
)

func scheduleDefinition(id string, intervalSeconds int) trigger.Definition {
	return trigger.Definition{
		ID:      id,
		Name:    "nightly",
		Kind:    trigger.KindSchedule,
		Enabled: true,
		Conditions: map[string]any{
			"interval_seconds": intervalSeconds,
		},
	}
}

func TestStartRejectsMissingInterval(t *testing.T) {
	scheduler := NewScheduler(func(trigger.Definition) {}, nil)

	definition := scheduleDefinition("t1", 1)
	definition.Conditions = nil
	if err := scheduler.Start(definition); err == nil {
		t.Fatalf("expected error for missing interval")
	}
}

func TestStartRejectsDuplicate(t *testing.T) {
	scheduler := NewScheduler(func(trigger.Definition) {}, nil)
	defer scheduler.StopAll()

	definition := scheduleDefinition("t1", 3600)
	if err := scheduler.Start(definition); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := scheduler.Start(definition); err == nil {
		t.Fatalf("duplicate start must be rejected")
	}
	if scheduler.Active() != 1 {
		t.Fatalf("expected 1 active schedule, got %d", scheduler.Active())
	}
}

func TestSchedulerEmitsOnInterval(t *testing.T) {
	var fired atomic.Int64
	scheduler := NewScheduler(func(definition trigger.Definition) {
		if definition.ID == "t1" {
			fired.Add(1)
		}
	}, nil)
	defer scheduler.StopAll()

	if err := scheduler.Start(scheduleDefinition("t1", 1)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for fired.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(25 * time.Millisecond)
	}
	if fired.Load() < 2 {
		t.Fatalf("expected at least 2 emissions, got %d", fired.Load())
	}
}

func TestStopHaltsEmission(t *testing.T) {
	var fired atomic.Int64
	scheduler := NewScheduler(func(trigger.Definition) { fired.Add(1) }, nil)

	if err := scheduler.Start(scheduleDefinition("t1", 1)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(25 * time.Millisecond)
	}

	scheduler.Stop("t1")
	if scheduler.Active() != 0 {
		t.Fatalf("expected no active schedules after stop")
	}

	settled := fired.Load()
	time.Sleep(1200 * time.Millisecond)
	if fired.Load() != settled {
		t.Fatalf("schedule kept firing after stop")
	}
}

func TestStopAllClearsEverything(t *testing.T) {
	scheduler := NewScheduler(func(trigger.Definition) {}, nil)

	for _, id := range []string{"a", "b", "c"} {
		if err := scheduler.Start(scheduleDefinition(id, 3600)); err != nil {
			t.Fatalf("start %s failed: %v", id, err)
		}
	}
	scheduler.StopAll()
	if scheduler.Active() != 0 {
		t.Fatalf("expected 0 active schedules, got %d", scheduler.Active())
	}
}
