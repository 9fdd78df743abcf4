// Package matrix scans a row/column switch matrix and reports debounced
// key transitions.
//
// Rows are outputs that idle high and are driven low one at a time. Columns
// are pulled-up inputs, so a closed switch on the active row reads low.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"padsynth/internal/gpio"
	"padsynth/internal/logging"
	"padsynth/internal/mapping"
)

// Transition kinds.
const (
	Press   = "press"
	Release = "release"
)

// DefaultSettle is the delay between driving a row and sampling columns.
const DefaultSettle = 200 * time.Microsecond

// Event is an accepted key transition.
type Event struct {
	Kind  string
	KeyID string
	At    time.Time
}

// Options tunes a Scanner. Zero values select defaults.
type Options struct {
	Debounce time.Duration
	Settle   time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
	Sleep    func(time.Duration)
}

type row struct {
	name   string
	offset int
	line   gpio.Output
}

type col struct {
	name   string
	offset int
	line   gpio.Input
}

// Scanner owns the matrix lines of one chip. It is not safe for concurrent
// use; a single goroutine runs ScanOnce or Run.
type Scanner struct {
	rows     []row
	cols     []col
	lookup   map[[2]int]string
	pressed  map[string]bool
	changed  map[string]time.Time
	debounce time.Duration
	settle   time.Duration
	now      func() time.Time
	sleep    func(time.Duration)
	logger   *slog.Logger
}

// New requests every row and column line used by m on chip. Rows are
// requested high (inactive).
func New(chip gpio.Chip, m mapping.Matrix, opts Options) (*Scanner, error) {
	if chip == nil {
		return nil, errors.New("matrix scanner requires a gpio chip")
	}
	s := &Scanner{
		lookup:   make(map[[2]int]string, len(m.Keys)),
		pressed:  make(map[string]bool, len(m.Keys)),
		changed:  make(map[string]time.Time, len(m.Keys)),
		debounce: opts.Debounce,
		settle:   opts.Settle,
		now:      opts.Now,
		sleep:    opts.Sleep,
		logger:   logging.NewComponentLogger(opts.Logger, "matrix"),
	}
	if s.settle <= 0 {
		s.settle = DefaultSettle
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}

	for _, name := range sortedNames(m.Rows) {
		offset := m.Rows[name]
		line, err := chip.Output(offset, gpio.High)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("request row %s (line %d): %w", name, offset, err)
		}
		s.rows = append(s.rows, row{name: name, offset: offset, line: line})
	}
	for _, name := range sortedNames(m.Cols) {
		offset := m.Cols[name]
		line, err := chip.Input(offset)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("request column %s (line %d): %w", name, offset, err)
		}
		s.cols = append(s.cols, col{name: name, offset: offset, line: line})
	}
	for _, key := range m.Keys {
		rowOffset, rok := m.Rows[key.Row]
		colOffset, cok := m.Cols[key.Col]
		if !rok || !cok {
			s.Close()
			return nil, fmt.Errorf("key %s references unknown row or column", key.ID)
		}
		s.lookup[[2]int{rowOffset, colOffset}] = key.ID
		s.pressed[key.ID] = false
	}

	s.logger.Debug("matrix lines requested",
		logging.Int("rows", len(s.rows)),
		logging.Int("cols", len(s.cols)),
		logging.Int("keys", len(s.lookup)),
		logging.Duration("debounce", s.debounce),
	)
	return s, nil
}

func sortedNames(lines map[string]int) []string {
	names := make([]string, 0, len(lines))
	for name := range lines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScanOnce drives each row low in turn, samples every column and returns the
// transitions accepted by the debounce filter. A key changes state only when
// its level differs from the recorded one and at least the debounce interval
// has passed since its last accepted change.
func (s *Scanner) ScanOnce() ([]Event, error) {
	now := s.now()
	var events []Event
	for _, r := range s.rows {
		if err := r.line.SetValue(gpio.Low); err != nil {
			return events, fmt.Errorf("activate row %s: %w", r.name, err)
		}
		s.sleep(s.settle)
		for _, c := range s.cols {
			id, ok := s.lookup[[2]int{r.offset, c.offset}]
			if !ok {
				continue
			}
			level, err := c.line.Value()
			if err != nil {
				_ = r.line.SetValue(gpio.High)
				return events, fmt.Errorf("read column %s: %w", c.name, err)
			}
			down := level == gpio.Low
			if down == s.pressed[id] {
				continue
			}
			if last, seen := s.changed[id]; seen && now.Sub(last) < s.debounce {
				continue
			}
			s.pressed[id] = down
			s.changed[id] = now
			kind := Release
			if down {
				kind = Press
			}
			events = append(events, Event{Kind: kind, KeyID: id, At: now})
		}
		if err := r.line.SetValue(gpio.High); err != nil {
			return events, fmt.Errorf("deactivate row %s: %w", r.name, err)
		}
	}
	return events, nil
}

// Pressed reports the debounced state of every key.
func (s *Scanner) Pressed() map[string]bool {
	out := make(map[string]bool, len(s.pressed))
	for id, down := range s.pressed {
		out[id] = down
	}
	return out
}

// Run scans every interval until ctx is cancelled, delivering events to
// sink in scan order. Read errors are logged and retried on the next tick;
// a run of consecutive failures ends the loop with the last error.
func (s *Scanner) Run(ctx context.Context, interval time.Duration, sink func(Event)) error {
	if interval <= 0 {
		interval = 2 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		events, err := s.ScanOnce()
		for _, ev := range events {
			sink(ev)
		}
		if err == nil {
			failures = 0
			continue
		}
		failures++
		if failures == 1 {
			logging.WarnWithContext(s.logger, "matrix scan failed; retrying", "matrix_scan_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the gpio chip is still present"),
				logging.String(logging.FieldImpact, "key presses are not detected until scanning recovers"),
			)
		}
		if failures >= maxConsecutiveFailures {
			return fmt.Errorf("matrix scan: %w", err)
		}
	}
}

const maxConsecutiveFailures = 500

// Close returns every row high and releases the lines.
func (s *Scanner) Close() error {
	var errs []error
	for _, r := range s.rows {
		_ = r.line.SetValue(gpio.High)
		if err := r.line.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range s.cols {
		if err := c.line.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.rows, s.cols = nil, nil
	return errors.Join(errs...)
}
