package trigger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation marks malformed trigger definitions; API callers map it
// to 400 and leave the registry unchanged.
var ErrValidation = errors.New("trigger definition invalid")

// ErrNotFound marks lookups of unknown trigger ids.
var ErrNotFound = errors.New("trigger not found")

func validKind(kind Kind) bool {
	switch kind {
	case KindWebhook, KindAPI, KindFileWatcher, KindSchedule, KindManual:
		return true
	default:
		return false
	}
}

// Validate checks a definition before it enters the registry.
func Validate(definition Definition) error {
	if strings.TrimSpace(definition.Name) == "" {
		return fmt.Errorf("%w: name required", ErrValidation)
	}
	if !validKind(definition.Kind) {
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, definition.Kind)
	}
	switch definition.Kind {
	case KindFileWatcher:
		spec := definition.FileWatcherSpec()
		if strings.TrimSpace(spec.Path) == "" {
			return fmt.Errorf("%w: file_watcher trigger requires conditions.path", ErrValidation)
		}
	case KindSchedule:
		spec := definition.ScheduleSpec()
		if spec.Interval <= 0 {
			return fmt.Errorf("%w: schedule trigger requires conditions.interval_seconds > 0", ErrValidation)
		}
	}
	if definition.RateLimit.MaxRequests < 0 || definition.RateLimit.WindowSeconds < 0 {
		return fmt.Errorf("%w: rate_limit values must not be negative", ErrValidation)
	}
	return nil
}
