package testsupport

import (
	"os"
	"testing"

	"padsynth/internal/config"
	"padsynth/internal/history"
	"padsynth/internal/mapping"
)

// MustMappingStore returns a mapping store for cfg, creating the default
// document when the file does not exist yet.
func MustMappingStore(t testing.TB, cfg *config.Config) *mapping.Store {
	t.Helper()

	store := mapping.NewStore(cfg.Paths.MappingFile)
	if _, _, err := store.EnsureDefault(); err != nil {
		t.Fatalf("mapping.EnsureDefault: %v", err)
	}
	return store
}

// WriteMapping writes a YAML mapping document to cfg's mapping file.
func WriteMapping(t testing.TB, cfg *config.Config, doc string) {
	t.Helper()

	if err := os.WriteFile(cfg.Paths.MappingFile, []byte(doc), 0o644); err != nil {
		t.Fatalf("write mapping: %v", err)
	}
}

// MustOpenHistory opens the history database for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
