package trigger

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

var ErrInvalidTable = errors.New("trigger table invalid")

// Repository persists the full trigger table.
type Repository interface {
	Load() ([]Definition, error)
	Save([]Definition) error
}

// FileRepository stores the table as a JSON array, rewritten atomically
// on every mutation (write temp, fsync, rename).
type FileRepository struct {
	path   string
	logger *logging.Logger
}

func NewFileRepository(path string, logger *logging.Logger) *FileRepository {
	return &FileRepository{path: path, logger: logger}
}

func (repo *FileRepository) Load() ([]Definition, error) {
	if repo == nil {
		return nil, errors.New("trigger repository unavailable")
	}
	trimmedPath := strings.TrimSpace(repo.path)
	if trimmedPath == "" {
		return nil, errors.New("trigger repository path required")
	}
	data, err := os.ReadFile(trimmedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Definition{}, nil
		}
		return nil, err
	}
	var definitions []Definition
	if err := json.Unmarshal(data, &definitions); err != nil {
		repo.backupCorruptFile(trimmedPath, err)
		return []Definition{}, ErrInvalidTable
	}
	if definitions == nil {
		definitions = []Definition{}
	}
	return definitions, nil
}

func (repo *FileRepository) Save(definitions []Definition) error {
	if repo == nil {
		return errors.New("trigger repository unavailable")
	}
	trimmedPath := strings.TrimSpace(repo.path)
	if trimmedPath == "" {
		return errors.New("trigger repository path required")
	}
	if definitions == nil {
		definitions = []Definition{}
	}

	dir := filepath.Dir(trimmedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(definitions, "", "  ")
	if err != nil {
		return err
	}

	return fsutil.WriteFileAtomic(dir, trimmedPath, "triggers-*.json", payload)
}

func (repo *FileRepository) backupCorruptFile(path string, cause error) {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	backupPath := fmt.Sprintf("%s.%s.bck", path, timestamp)
	if err := os.Rename(path, backupPath); err != nil {
		repo.logWarn("trigger table backup failed", map[string]string{
			"path":  path,
			"error": err.Error(),
		})
		return
	}
	repo.logWarn("trigger table backed up", map[string]string{
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
