package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListenPort       = 8090
	DefaultEventRetention   = 1000
	DefaultRateLimitMax     = 60
	DefaultRateLimitWindow  = time.Minute
	DefaultRequestTimeout   = 30 * time.Second
	DefaultDispatchTimeout  = 10 * time.Second
	DefaultDataDirectory    = ".sluice"
	DefaultTriggersFilename = "triggers.json"
	DefaultEventsFilename   = "events.json"
)

// Settings holds the process-wide configuration loaded from sluiced.yaml.
type Settings struct {
	ListenPort      int           `yaml:"listen_port"`
	APIKey          string        `yaml:"api_key"`
	DataDir         string        `yaml:"data_dir"`
	LogLevel        string        `yaml:"log_level"`
	EventRetention  int           `yaml:"event_retention"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	RateLimit       RateLimit     `yaml:"rate_limit"`
	Temporal        Temporal      `yaml:"temporal"`
}

// RateLimit is the default admission budget applied per caller address.
type RateLimit struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// Temporal configures the optional workflow dispatcher connection.
type Temporal struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
}

func DefaultSettings() Settings {
	return Settings{
		ListenPort:      DefaultListenPort,
		DataDir:         DefaultDataDirectory,
		LogLevel:        "info",
		EventRetention:  DefaultEventRetention,
		RequestTimeout:  DefaultRequestTimeout,
		DispatchTimeout: DefaultDispatchTimeout,
		RateLimit: RateLimit{
			MaxRequests: DefaultRateLimitMax,
			Window:      DefaultRateLimitWindow,
		},
	}
}

// LoadSettings reads the YAML settings file at path. A missing file yields
// defaults; a malformed file is an error so a typo never silently drops
// the API key.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return settings, nil
	}

	payload, err := os.ReadFile(trimmed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, err
	}
	if err := yaml.Unmarshal(payload, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("parse settings %s: %w", trimmed, err)
	}
	return normalizeSettings(settings), nil
}

func normalizeSettings(settings Settings) Settings {
	defaults := DefaultSettings()
	if settings.ListenPort <= 0 || settings.ListenPort > 65535 {
		settings.ListenPort = defaults.ListenPort
	}
	if strings.TrimSpace(settings.DataDir) == "" {
		settings.DataDir = defaults.DataDir
	}
	if _, ok := parseLogLevel(settings.LogLevel); !ok {
		settings.LogLevel = defaults.LogLevel
	}
	if settings.EventRetention <= 0 {
		settings.EventRetention = defaults.EventRetention
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = defaults.RequestTimeout
	}
	if settings.DispatchTimeout <= 0 {
		settings.DispatchTimeout = defaults.DispatchTimeout
	}
	if settings.RateLimit.MaxRequests <= 0 {
		settings.RateLimit.MaxRequests = defaults.RateLimit.MaxRequests
	}
	if settings.RateLimit.Window <= 0 {
		settings.RateLimit.Window = defaults.RateLimit.Window
	}
	return settings
}

func parseLogLevel(value string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug", "info", "warning", "warn", "error":
		return strings.ToLower(strings.TrimSpace(value)), true
	default:
		return "", false
	}
}
