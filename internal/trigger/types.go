package trigger

import (
	"strconv"
	"time"
)

// Kind identifies how a trigger fires.
type Kind string

const (
	KindWebhook     Kind = "webhook"
	KindAPI         Kind = "api"
	KindFileWatcher Kind = "file_watcher"
	KindSchedule    Kind = "schedule"
	KindManual      Kind = "manual"
)

// SecretPlaceholder replaces stored secrets on every externally-facing read.
const SecretPlaceholder = "***REDACTED***"

// AuthConfig describes how inbound calls for a trigger authenticate.
// Type "hmac" requires a Secret and enables webhook signature checks.
type AuthConfig struct {
	Type   string `json:"type,omitempty"`
	Secret string `json:"secret,omitempty"`
	Token  string `json:"token,omitempty"`
}

func (a AuthConfig) RequiresSignature() bool {
	return a.Type == "hmac" && a.Secret != ""
}

// RateLimitConfig is a per-trigger admission budget. Zero values mean
// the process-wide default applies.
type RateLimitConfig struct {
	MaxRequests   int `json:"max_requests,omitempty"`
	WindowSeconds int `json:"window_seconds,omitempty"`
}

// Definition is one persisted trigger record. Conditions stay an open
// string-keyed map because provider payload shapes are open-ended; the
// typed Spec accessors below give each kind its structured view.
type Definition struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           Kind            `json:"type"`
	Enabled        bool            `json:"enabled"`
	WorkflowID     string          `json:"workflow_id,omitempty"`
	Conditions     map[string]any  `json:"conditions"`
	Authentication AuthConfig      `json:"authentication"`
	RateLimit      RateLimitConfig `json:"rate_limit"`
	Metadata       map[string]any  `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// WebhookSpec is the condition view for webhook triggers. Empty lists
// mean "no restriction".
type WebhookSpec struct {
	Events       []string
	Branches     []string
	Repositories []string
}

// FileWatcherSpec is the condition view for file_watcher triggers.
type FileWatcherSpec struct {
	Path      string
	Recursive bool
	Patterns  []string
}

// ScheduleSpec is the condition view for schedule triggers.
type ScheduleSpec struct {
	Interval time.Duration
}

func (d Definition) WebhookSpec() WebhookSpec {
	return WebhookSpec{
		Events:       conditionStrings(d.Conditions, "events"),
		Branches:     conditionStrings(d.Conditions, "branches"),
		Repositories: conditionStrings(d.Conditions, "repositories"),
	}
}

func (d Definition) HasWebhookConditions() bool {
	spec := d.WebhookSpec()
	return len(spec.Events) > 0 || len(spec.Branches) > 0 || len(spec.Repositories) > 0
}

func (d Definition) FileWatcherSpec() FileWatcherSpec {
	return FileWatcherSpec{
		Path:      conditionString(d.Conditions, "path"),
		Recursive: conditionBool(d.Conditions, "recursive"),
		Patterns:  conditionStrings(d.Conditions, "patterns"),
	}
}

func (d Definition) ScheduleSpec() ScheduleSpec {
	seconds := conditionInt(d.Conditions, "interval_seconds")
	return ScheduleSpec{Interval: time.Duration(seconds) * time.Second}
}

// Redacted returns a copy safe for externally-facing payloads.
func (d Definition) Redacted() Definition {
	out := d.Clone()
	if out.Authentication.Secret != "" {
		out.Authentication.Secret = SecretPlaceholder
	}
	if out.Authentication.Token != "" {
		out.Authentication.Token = SecretPlaceholder
	}
	return out
}

// Clone deep-copies the maps so callers can never mutate registry state
// through a snapshot.
func (d Definition) Clone() Definition {
	out := d
	out.Conditions = cloneAnyMap(d.Conditions)
	out.Metadata = cloneAnyMap(d.Metadata)
	return out
}

func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func conditionString(conditions map[string]any, key string) string {
	if conditions == nil {
		return ""
	}
	value, ok := conditions[key].(string)
	if !ok {
		return ""
	}
	return value
}

func conditionBool(conditions map[string]any, key string) bool {
	if conditions == nil {
		return false
	}
	switch value := conditions[key].(type) {
	case bool:
		return value
	case string:
		parsed, err := strconv.ParseBool(value)
		return err == nil && parsed
	default:
		return false
	}
}

func conditionInt(conditions map[string]any, key string) int {
	if conditions == nil {
		return 0
	}
	switch value := conditions[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case string:
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// conditionStrings accepts a JSON array of strings or a single string.
func conditionStrings(conditions map[string]any, key string) []string {
	if conditions == nil {
		return nil
	}
	switch value := conditions[key].(type) {
	case []string:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if item != "" {
				out = append(out, item)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			text, ok := item.(string)
			if ok && text != "" {
				out = append(out, text)
			}
		}
		return out
	case string:
		if value == "" {
			return nil
		}
		return []string{value}
	default:
		return nil
	}
}
