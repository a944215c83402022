// Package metrics exposes process counters in the Prometheus text
// format without pulling in a client library.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Registry struct {
	eventsReceived  atomic.Int64
	eventsProcessed atomic.Int64
	eventsFailed    atomic.Int64
	eventsFiltered  atomic.Int64
	triggers        sync.Map
}

type triggerStats struct {
	count         atomic.Int64
	failures      atomic.Int64
	dispatchNanos atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) IncEventsReceived() {
	if r == nil {
		return
	}
	r.eventsReceived.Add(1)
}

// IncEventsFiltered counts deliveries understood but rejected by a
// trigger's declarative conditions.
func (r *Registry) IncEventsFiltered() {
	if r == nil {
		return
	}
	r.eventsFiltered.Add(1)
}

// RecordOutcome counts one terminal event per trigger, with its dispatch
// duration and whether it failed.
func (r *Registry) RecordOutcome(triggerID string, duration time.Duration, failed bool) {
	if r == nil {
		return
	}
	if strings.TrimSpace(triggerID) == "" {
		triggerID = "unknown"
	}
	r.eventsProcessed.Add(1)
	if failed {
		r.eventsFailed.Add(1)
	}

	stats := r.triggerStats(triggerID)
	stats.count.Add(1)
	stats.dispatchNanos.Add(duration.Nanoseconds())
	if failed {
		stats.failures.Add(1)
	}
}

func (r *Registry) EventsProcessed() int64 {
	if r == nil {
		return 0
	}
	return r.eventsProcessed.Load()
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeCounter(writer, "sluice_events_received_total", "Total trigger events received", r.eventsReceived.Load())
	writeCounter(writer, "sluice_events_processed_total", "Total events reaching a terminal state", r.eventsProcessed.Load())
	writeCounter(writer, "sluice_events_failed_total", "Total events ending in error", r.eventsFailed.Load())
	writeCounter(writer, "sluice_events_filtered_total", "Total deliveries rejected by trigger conditions", r.eventsFiltered.Load())

	triggerIDs := r.triggerIDs()
	sort.Strings(triggerIDs)

	writeHelp(writer, "sluice_trigger_dispatch_seconds", "Per-trigger dispatch duration in seconds")
	fmt.Fprintln(writer, "# TYPE sluice_trigger_dispatch_seconds summary")
	writeHelp(writer, "sluice_trigger_failures_total", "Per-trigger failed events")
	fmt.Fprintln(writer, "# TYPE sluice_trigger_failures_total counter")

	for _, id := range triggerIDs {
		stats := r.triggerStats(id)
		label := formatLabel(id)
		dispatchSeconds := float64(stats.dispatchNanos.Load()) / float64(time.Second)
		fmt.Fprintf(writer, "sluice_trigger_dispatch_seconds_sum{trigger=%s} %.6f\n", label, dispatchSeconds)
		fmt.Fprintf(writer, "sluice_trigger_dispatch_seconds_count{trigger=%s} %d\n", label, stats.count.Load())
		fmt.Fprintf(writer, "sluice_trigger_failures_total{trigger=%s} %d\n", label, stats.failures.Load())
	}

	return nil
}

func (r *Registry) triggerStats(id string) *triggerStats {
	value, _ := r.triggers.LoadOrStore(id, &triggerStats{})
	return value.(*triggerStats)
}

func (r *Registry) triggerIDs() []string {
	if r == nil {
		return nil
	}
	var ids []string
	r.triggers.Range(func(key, value interface{}) bool {
		if id, ok := key.(string); ok {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
