package watch

import "time"

// debouncer suppresses duplicate notifications for the same path within
// the configured interval, keeping the most recent event.
type debounceEntry struct {
	timer *time.Timer
	event FileEvent
}

type debouncer struct {
	duration time.Duration
	entries  map[string]debounceEntry
}

func newDebouncer(duration time.Duration) *debouncer {
	return &debouncer{
		duration: duration,
		entries:  make(map[string]debounceEntry),
	}
}

func (debouncer *debouncer) schedule(path string, event FileEvent, flush func(string)) {
	if debouncer == nil {
		return
	}
	entry := debouncer.entries[path]
	entry.event = event
	if entry.timer == nil {
		entry.timer = time.AfterFunc(debouncer.duration, func() {
			flush(path)
		})
	} else {
		entry.timer.Reset(debouncer.duration)
	}
	debouncer.entries[path] = entry
}

func (debouncer *debouncer) pop(path string) (FileEvent, bool) {
	if debouncer == nil {
		return FileEvent{}, false
	}
	entry, ok := debouncer.entries[path]
	if !ok {
		return FileEvent{}, false
	}
	delete(debouncer.entries, path)
	return entry.event, true
}

func (debouncer *debouncer) stop() {
	if debouncer == nil {
		return
	}
	for _, entry := range debouncer.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	debouncer.entries = nil
}
