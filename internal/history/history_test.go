package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"padsynth/internal/events"
	"padsynth/internal/mapping"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRevisionsSkipDuplicatesAndPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first, added, err := store.AddRevision(ctx, []byte("a: 1\n"), now)
	if err != nil || !added {
		t.Fatalf("AddRevision: added=%v err=%v", added, err)
	}
	if _, added, _ := store.AddRevision(ctx, []byte("a: 1\n"), now); added {
		t.Fatal("identical revision must be skipped")
	}
	for _, doc := range []string{"a: 2\n", "a: 3\n"} {
		if _, _, err := store.AddRevision(ctx, []byte(doc), now); err != nil {
			t.Fatalf("AddRevision: %v", err)
		}
	}

	removed, err := store.PruneRevisions(ctx, 2)
	if err != nil {
		t.Fatalf("PruneRevisions: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	revs, err := store.ListRevisions(ctx, 10)
	if err != nil {
		t.Fatalf("ListRevisions: %v", err)
	}
	if len(revs) != 2 || revs[0].ID <= revs[1].ID {
		t.Fatalf("expected two revisions newest first, got %+v", revs)
	}
	if revs[0].YAML != "" {
		t.Fatal("list must not carry yaml")
	}
	if got, err := store.GetRevision(ctx, first.ID); err != nil || got != nil {
		t.Fatalf("pruned revision still present: %+v (%v)", got, err)
	}
	got, err := store.GetRevision(ctx, revs[0].ID)
	if err != nil || got == nil || got.YAML != "a: 3\n" {
		t.Fatalf("GetRevision: %+v (%v)", got, err)
	}
}

func TestKeyStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := store.RecordPress(ctx, "MX1", "C4", at); err != nil {
			t.Fatalf("RecordPress: %v", err)
		}
	}
	if err := store.RecordPress(ctx, "MX2", "D4", at.Add(time.Minute)); err != nil {
		t.Fatalf("RecordPress: %v", err)
	}
	if err := store.RecordPress(ctx, "MX1", "E4", at.Add(2*time.Minute)); err != nil {
		t.Fatalf("RecordPress: %v", err)
	}
	stats, err := store.KeyStats(ctx)
	if err != nil {
		t.Fatalf("KeyStats: %v", err)
	}
	if len(stats) != 2 || stats[0].KeyID != "MX1" || stats[0].Presses != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats[0].LastNote != "E4" || !stats[0].LastPressedAt.Equal(at.Add(2*time.Minute)) {
		t.Fatalf("last press not updated: %+v", stats[0])
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	_ = store.Close()

	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRecorderFollowsHub(t *testing.T) {
	store := openTestStore(t)
	hub := events.NewHub(16)
	rec := NewRecorder(store, hub, 5, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := mapping.Default()
	if err := rec.Seed(ctx, cfg); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	note := "C4"
	hub.Publish(events.KeyMessage(events.KeyEvent{Kind: "press", ID: "MX1", Note: &note}))
	hub.Publish(events.KeyMessage(events.KeyEvent{Kind: "release", ID: "MX1", Note: &note}))
	hub.Publish(events.KeyMessage(events.KeyEvent{Kind: "press", ID: "MX99"}))
	changed := cfg.Clone()
	changed.Synth.Waveform = "saw"
	hub.Publish(events.ConfigMessage(changed))

	deadline := time.Now().Add(2 * time.Second)
	for {
		revs, _ := store.ListRevisions(ctx, 10)
		stats, _ := store.KeyStats(ctx)
		if len(revs) == 2 && len(stats) == 1 {
			if stats[0].Presses != 1 {
				t.Fatalf("expected one counted press, got %+v", stats[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("recorder did not catch up: revisions=%d stats=%d", len(revs), len(stats))
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
