package trigger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"sluice/internal/logging"

	"github.com/google/uuid"
)

// Registry is the durable CRUD store of trigger definitions. Every
// mutation rewrites the whole table through the repository; a persistence
// failure is logged and the in-memory state kept, so the process keeps
// serving until the next successful save.
type Registry struct {
	mu       sync.Mutex
	repo     Repository
	triggers map[string]Definition
	logger   *logging.Logger
	now      func() time.Time
}

// Patch carries a partial update; nil fields keep their stored value.
type Patch struct {
	Name           *string          `json:"name,omitempty"`
	Enabled        *bool            `json:"enabled,omitempty"`
	WorkflowID     *string          `json:"workflow_id,omitempty"`
	Conditions     map[string]any   `json:"conditions,omitempty"`
	Authentication *AuthConfig      `json:"authentication,omitempty"`
	RateLimit      *RateLimitConfig `json:"rate_limit,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

// OpenRegistry loads the persisted table. A corrupt file is backed up by
// the repository and the registry starts empty.
func OpenRegistry(repo Repository, logger *logging.Logger) (*Registry, error) {
	registry := &Registry{
		repo:     repo,
		triggers: make(map[string]Definition),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if repo == nil {
		return registry, nil
	}
	definitions, err := repo.Load()
	if err != nil {
		if errors.Is(err, ErrInvalidTable) {
			registry.logWarn("trigger table invalid, starting empty", nil)
			return registry, nil
		}
		return nil, err
	}
	for _, definition := range definitions {
		if definition.ID == "" {
			continue
		}
		registry.triggers[definition.ID] = definition
	}
	return registry, nil
}

// Create validates and stores a new definition, generating an id when the
// caller did not supply one.
func (registry *Registry) Create(definition Definition) (Definition, error) {
	if err := Validate(definition); err != nil {
		return Definition{}, err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if definition.ID == "" {
		definition.ID = uuid.NewString()
	}
	if _, exists := registry.triggers[definition.ID]; exists {
		return Definition{}, fmt.Errorf("%w: id %q already registered", ErrValidation, definition.ID)
	}
	now := registry.now()
	definition.CreatedAt = now
	definition.UpdatedAt = now
	definition = definition.Clone()

	registry.triggers[definition.ID] = definition
	registry.persistLocked()
	return definition.Clone(), nil
}

// Update merges the patch into the stored definition and bumps
// updated_at. A secret carrying the redaction placeholder keeps the
// stored secret, so round-tripping a redacted read never wipes it.
func (registry *Registry) Update(id string, patch Patch) (Definition, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	stored, ok := registry.triggers[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	merged := stored.Clone()
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.Enabled != nil {
		merged.Enabled = *patch.Enabled
	}
	if patch.WorkflowID != nil {
		merged.WorkflowID = *patch.WorkflowID
	}
	if patch.Conditions != nil {
		merged.Conditions = cloneAnyMap(patch.Conditions)
	}
	if patch.Authentication != nil {
		auth := *patch.Authentication
		if auth.Secret == SecretPlaceholder {
			auth.Secret = stored.Authentication.Secret
		}
		if auth.Token == SecretPlaceholder {
			auth.Token = stored.Authentication.Token
		}
		merged.Authentication = auth
	}
	if patch.RateLimit != nil {
		merged.RateLimit = *patch.RateLimit
	}
	if patch.Metadata != nil {
		merged.Metadata = cloneAnyMap(patch.Metadata)
	}

	if err := Validate(merged); err != nil {
		return Definition{}, err
	}

	merged.UpdatedAt = registry.now()
	registry.triggers[id] = merged
	registry.persistLocked()
	return merged.Clone(), nil
}

func (registry *Registry) Delete(id string) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, ok := registry.triggers[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(registry.triggers, id)
	registry.persistLocked()
	return nil
}

func (registry *Registry) Get(id string) (Definition, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	stored, ok := registry.triggers[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return stored.Clone(), nil
}

// List returns a snapshot ordered by creation time, oldest first.
func (registry *Registry) List() []Definition {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	out := make([]Definition, 0, len(registry.triggers))
	for _, definition := range registry.triggers {
		out = append(out, definition.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (registry *Registry) Len() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.triggers)
}

// EnabledCount reports how many triggers are currently enabled.
func (registry *Registry) EnabledCount() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	count := 0
	for _, definition := range registry.triggers {
		if definition.Enabled {
			count++
		}
	}
	return count
}

func (registry *Registry) persistLocked() {
	if registry.repo == nil {
		return
	}
	definitions := make([]Definition, 0, len(registry.triggers))
	for _, definition := range registry.triggers {
		definitions = append(definitions, definition)
	}
	sort.Slice(definitions, func(i, j int) bool {
		if definitions[i].CreatedAt.Equal(definitions[j].CreatedAt) {
			return definitions[i].ID < definitions[j].ID
		}
		return definitions[i].CreatedAt.Before(definitions[j].CreatedAt)
	})
	if err := registry.repo.Save(definitions); err != nil {
		registry.logWarn("trigger table save failed", map[string]string{
			"error": err.Error(),
		})
	}
}

func (registry *Registry) logWarn(message string, fields map[string]string) {
	if registry == nil || registry.logger == nil {
		return
	}
	registry.logger.Warn(message, fields)
}
