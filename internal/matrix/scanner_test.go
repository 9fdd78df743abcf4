package matrix

import (
	"context"
	"testing"
	"time"

	"padsynth/internal/gpio"
	"padsynth/internal/mapping"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func testMatrix() mapping.Matrix {
	return mapping.Matrix{
		Rows: map[string]int{"ROW0": 2, "ROW1": 3},
		Cols: map[string]int{"COL0": 18, "COL1": 6},
		Keys: []mapping.Key{
			{ID: "MX1", Row: "ROW0", Col: "COL0", Note: "C4"},
			{ID: "MX2", Row: "ROW0", Col: "COL1", Note: "D4"},
			{ID: "MX3", Row: "ROW1", Col: "COL0", Note: "E4"},
		},
	}
}

func newTestScanner(t *testing.T, sim *gpio.Sim, clock *fakeClock, debounce time.Duration) *Scanner {
	t.Helper()
	s, err := New(sim, testMatrix(), Options{
		Debounce: debounce,
		Now:      clock.Now,
		Sleep:    func(time.Duration) {},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestScanOnceReportsPressAndRelease(t *testing.T) {
	sim := gpio.NewSim("sim")
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := newTestScanner(t, sim, clock, 12*time.Millisecond)

	sim.SetContact(3, 18, true)
	events, err := s.ScanOnce()
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(events) != 1 || events[0].Kind != Press || events[0].KeyID != "MX3" {
		t.Fatalf("unexpected events %+v", events)
	}

	clock.advance(20 * time.Millisecond)
	sim.SetContact(3, 18, false)
	events, err = s.ScanOnce()
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(events) != 1 || events[0].Kind != Release || events[0].KeyID != "MX3" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestScanOnceDebouncesChatter(t *testing.T) {
	sim := gpio.NewSim("sim")
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := newTestScanner(t, sim, clock, 12*time.Millisecond)

	sim.SetContact(2, 6, true)
	if events, _ := s.ScanOnce(); len(events) != 1 {
		t.Fatalf("expected initial press, got %+v", events)
	}

	// Bounce open and closed again inside the debounce window.
	clock.advance(3 * time.Millisecond)
	sim.SetContact(2, 6, false)
	if events, _ := s.ScanOnce(); len(events) != 0 {
		t.Fatalf("expected chatter to be suppressed, got %+v", events)
	}
	clock.advance(3 * time.Millisecond)
	sim.SetContact(2, 6, true)
	if events, _ := s.ScanOnce(); len(events) != 0 {
		t.Fatalf("expected no change while level matches, got %+v", events)
	}
	if !s.Pressed()["MX2"] {
		t.Fatal("expected MX2 to remain pressed")
	}

	// A release that persists past the window is accepted.
	sim.SetContact(2, 6, false)
	clock.advance(12 * time.Millisecond)
	events, _ := s.ScanOnce()
	if len(events) != 1 || events[0].Kind != Release {
		t.Fatalf("expected release after debounce window, got %+v", events)
	}
}

func TestScanOnceLeavesRowsInactive(t *testing.T) {
	sim := gpio.NewSim("sim")
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := newTestScanner(t, sim, clock, time.Millisecond)

	if _, err := s.ScanOnce(); err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	for _, offset := range []int{2, 3} {
		level, ok := sim.Driven(offset)
		if !ok || level != gpio.High {
			t.Fatalf("row line %d left at %d (requested=%v)", offset, level, ok)
		}
	}
}

func TestScanOnceIgnoresUnmappedIntersections(t *testing.T) {
	sim := gpio.NewSim("sim")
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := newTestScanner(t, sim, clock, time.Millisecond)

	sim.SetContact(3, 6, true)
	events, err := s.ScanOnce()
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for unmapped contact, got %+v", events)
	}
}

func TestNewFailsOnBusyLine(t *testing.T) {
	sim := gpio.NewSim("sim")
	if _, err := sim.Input(18); err != nil {
		t.Fatalf("Input: %v", err)
	}
	if _, err := New(sim, testMatrix(), Options{}); err == nil {
		t.Fatal("expected error when a column line is already requested")
	}
	// Rows requested before the failure are released again.
	if _, err := sim.Output(2, gpio.High); err != nil {
		t.Fatalf("expected row line to be released: %v", err)
	}
}

func TestRunDeliversEventsUntilCancelled(t *testing.T) {
	sim := gpio.NewSim("sim")
	s, err := New(sim, testMatrix(), Options{Debounce: time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	sim.SetContact(2, 18, true)
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, time.Millisecond, func(ev Event) { got <- ev })
	}()

	select {
	case ev := <-got:
		if ev.KeyID != "MX1" || ev.Kind != Press {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for press")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}
