package logging

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestStreamHandlerPromotesKnownFields(t *testing.T) {
	hub := NewStreamHub(100)
	logger := slog.New(newStreamHandler(slog.NewTextHandler(io.Discard, nil), hub)).
		With(slog.String(FieldComponent, "encoder")).
		With(slog.String(FieldEncoder, "SW1"))

	logger.Info("encoder turned", slog.Int("delta", 2))

	events, _ := hub.Tail(10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.Component != "encoder" || evt.Encoder != "SW1" {
		t.Fatalf("unexpected promoted fields %+v", evt)
	}
	if evt.Fields["delta"] != "2" {
		t.Fatalf("expected delta in fields, got %v", evt.Fields)
	}
}

func TestStreamHandlerCallSiteOverridesWithAttrs(t *testing.T) {
	hub := NewStreamHub(100)
	logger := slog.New(newStreamHandler(slog.NewTextHandler(io.Discard, nil), hub)).
		With(slog.String(FieldKeyID, "MX1"))

	logger.Info("message", slog.String(FieldKeyID, "MX2"))

	events, _ := hub.Tail(10)
	if len(events) != 1 || events[0].KeyID != "MX2" {
		t.Fatalf("expected call-site key id to win, got %+v", events)
	}
}

func TestStreamHandlerNilHub(t *testing.T) {
	base := slog.NewTextHandler(io.Discard, nil)
	if handler := newStreamHandler(base, nil); handler != base {
		t.Fatal("expected base handler when hub is nil")
	}
}

func TestStreamHubRingDropsOldest(t *testing.T) {
	hub := NewStreamHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(LogEvent{Message: "m"})
	}
	if got := hub.FirstSequence(); got != 3 {
		t.Fatalf("expected first sequence 3, got %d", got)
	}
	events, next, err := hub.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 3 || events[0].Sequence != 3 || next != 5 {
		t.Fatalf("unexpected fetch result: %d events, next %d", len(events), next)
	}
	events, _, _ = hub.Fetch(context.Background(), 4, 0, false)
	if len(events) != 1 || events[0].Sequence != 5 {
		t.Fatalf("expected only sequence 5 after cursor 4, got %+v", events)
	}
}

func TestStreamHubFetchWaitsForPublish(t *testing.T) {
	hub := NewStreamHub(8)
	done := make(chan []LogEvent, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 0, 0, true)
		done <- events
	}()
	time.Sleep(20 * time.Millisecond)
	hub.Publish(LogEvent{Message: "late"})

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Message != "late" {
			t.Fatalf("unexpected events %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on publish")
	}
}

func TestStreamHubFetchHonorsCancel(t *testing.T) {
	hub := NewStreamHub(8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := hub.Fetch(ctx, 0, 0, true)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not return after cancel")
	}
}

func TestTeeHandlerCollapses(t *testing.T) {
	if _, ok := TeeHandler(nil, nil).(nopHandler); !ok {
		t.Fatal("expected nopHandler for all nil handlers")
	}
	base := slog.NewTextHandler(io.Discard, nil)
	if TeeHandler(nil, base) != base {
		t.Fatal("expected single handler to be returned unwrapped")
	}
}

func TestTeeLoggerDeliversToEveryHandler(t *testing.T) {
	a, b := NewStreamHub(4), NewStreamHub(4)
	logger := TeeLogger(
		slog.New(newStreamHandler(slog.NewTextHandler(io.Discard, nil), a)),
		newStreamHandler(slog.NewTextHandler(io.Discard, nil), b),
	)
	logger.Info("both")
	ea, _ := a.Tail(4)
	eb, _ := b.Tail(4)
	if len(ea) != 1 || len(eb) != 1 {
		t.Fatalf("expected one event per hub, got %d and %d", len(ea), len(eb))
	}
}

func TestEventArchiveReadSince(t *testing.T) {
	archive, err := NewEventArchive(t.TempDir() + "/events.jsonl")
	if err != nil {
		t.Fatalf("NewEventArchive: %v", err)
	}
	defer archive.Close()
	hub := NewStreamHub(2)
	hub.AddSink(archive)
	for i := 0; i < 4; i++ {
		hub.Publish(LogEvent{Message: "e"})
	}
	events, highest, err := archive.ReadSince(1, 0)
	if err != nil {
		t.Fatalf("ReadSince: %v", err)
	}
	if highest != 4 || len(events) != 3 {
		t.Fatalf("expected 3 events up to seq 4, got %d up to %d", len(events), highest)
	}
}
