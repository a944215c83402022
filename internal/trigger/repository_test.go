package trigger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileRepositoryLoadMissingFileReturnsEmpty(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "triggers.json"), nil)

	definitions, err := repo.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(definitions) != 0 {
		t.Fatalf("expected empty table, got %d records", len(definitions))
	}
}

func TestFileRepositorySaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triggers.json")
	repo := NewFileRepository(path, nil)

	now := time.Now().UTC().Truncate(time.Second)
	saved := []Definition{
		{
			ID:        "t1",
			Name:      "ci",
			Kind:      KindWebhook,
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if err := repo.Save(saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := repo.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 record, got %d", len(loaded))
	}
	if loaded[0].ID != "t1" || loaded[0].Kind != KindWebhook {
		t.Fatalf("round-trip mismatch: %+v", loaded[0])
	}
	if !loaded[0].CreatedAt.Equal(now) {
		t.Fatalf("timestamp mismatch: %v vs %v", loaded[0].CreatedAt, now)
	}
}

func TestFileRepositoryBacksUpCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triggers.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	repo := NewFileRepository(path, nil)
	_, err := repo.Load()
	if !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("expected invalid table error, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	backedUp := false
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".bck" {
			backedUp = true
		}
	}
	if !backedUp {
		t.Fatalf("expected corrupt file backup, found %v", entries)
	}
}
