package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sluice/internal/fsutil"
	"sluice/internal/logging"
)

var ErrInvalidLog = errors.New("event log invalid")

// Repository persists the full event snapshot.
type Repository interface {
	Load() ([]Event, error)
	Save([]Event) error
}

// FileRepository stores events as a JSON array with the same
// write-temp-then-rename discipline as the trigger table.
type FileRepository struct {
	path   string
	logger *logging.Logger
}

func NewFileRepository(path string, logger *logging.Logger) *FileRepository {
	return &FileRepository{path: path, logger: logger}
}

func (repo *FileRepository) Load() ([]Event, error) {
	if repo == nil {
		return nil, errors.New("event repository unavailable")
	}
	trimmedPath := strings.TrimSpace(repo.path)
	if trimmedPath == "" {
		return nil, errors.New("event repository path required")
	}
	data, err := os.ReadFile(trimmedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Event{}, nil
		}
		return nil, err
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		repo.backupCorruptFile(trimmedPath, err)
		return []Event{}, ErrInvalidLog
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

func (repo *FileRepository) Save(events []Event) error {
	if repo == nil {
		return errors.New("event repository unavailable")
	}
	trimmedPath := strings.TrimSpace(repo.path)
	if trimmedPath == "" {
		return errors.New("event repository path required")
	}
	if events == nil {
		events = []Event{}
	}

	dir := filepath.Dir(trimmedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return err
	}

	return fsutil.WriteFileAtomic(dir, trimmedPath, "events-*.json", payload)
}

func (repo *FileRepository) backupCorruptFile(path string, cause error) {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	backupPath := fmt.Sprintf("%s.%s.bck", path, timestamp)
	if err := os.Rename(path, backupPath); err != nil {
		repo.logWarn("event log backup failed", map[string]string{
			"path":  path,
			"error": err.Error(),
		})
		return
	}
	repo.logWarn("event log backed up", map[string]string{
		"path":   path,
		"backup": backupPath,
		"error":  cause.Error(),
	})
}

func (repo *FileRepository) logWarn(message string, fields map[string]string) {
	if repo == nil || repo.logger == nil {
		return
	}
	repo.logger.Warn(message, fields)
}
