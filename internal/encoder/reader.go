package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"padsynth/internal/gpio"
	"padsynth/internal/logging"
	"padsynth/internal/mapping"
)

const stepBuffer = 256

// Step is a single detent reported by one encoder.
type Step struct {
	Name  string
	Delta int
}

type watched struct {
	name    string
	mu      sync.Mutex
	decoder *Decoder
}

// Reader watches the phase lines of every configured encoder. Edge handlers
// only decode and enqueue; Run delivers the accumulated deltas.
type Reader struct {
	steps   chan Step
	closers []io.Closer
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewReader requests both phase lines of each encoder on chip.
func NewReader(chip gpio.Chip, encoders []mapping.Encoder, logger *slog.Logger) (*Reader, error) {
	if chip == nil {
		return nil, errors.New("encoder reader requires a gpio chip")
	}
	r := &Reader{
		steps:  make(chan Step, stepBuffer),
		logger: logging.NewComponentLogger(logger, "encoder"),
	}
	for _, enc := range encoders {
		w := &watched{name: enc.Name, decoder: NewDecoder()}
		closeA, err := chip.Watch(enc.A, func(e gpio.Edge) {
			w.mu.Lock()
			step := w.decoder.EdgeA(e.Level)
			w.mu.Unlock()
			r.emit(w.name, step)
		})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("watch encoder %s phase A (line %d): %w", enc.Name, enc.A, err)
		}
		r.closers = append(r.closers, closeA)
		closeB, err := chip.Watch(enc.B, func(e gpio.Edge) {
			w.mu.Lock()
			step := w.decoder.EdgeB(e.Level)
			w.mu.Unlock()
			r.emit(w.name, step)
		})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("watch encoder %s phase B (line %d): %w", enc.Name, enc.B, err)
		}
		r.closers = append(r.closers, closeB)
	}
	return r, nil
}

func (r *Reader) emit(name string, delta int) {
	if delta == 0 {
		return
	}
	select {
	case r.steps <- Step{Name: name, Delta: delta}:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("encoder steps dropped; consumer too slow",
				logging.Encoder(name),
				logging.String(logging.FieldEventType, "encoder_overflow"),
				logging.String(logging.FieldErrorHint, "check for a stalled controller"),
				logging.String(logging.FieldImpact, "some encoder movement was lost"),
			)
		}
	}
}

// Dropped returns the number of steps discarded because the buffer was full.
func (r *Reader) Dropped() int64 {
	return r.dropped.Load()
}

// Run delivers steps until ctx is cancelled. All steps pending when the
// sink is free are summed per encoder, so a fast spin is reported as one
// larger delta instead of many single steps.
func (r *Reader) Run(ctx context.Context, sink func(name string, delta int)) error {
	for {
		var first Step
		select {
		case <-ctx.Done():
			return nil
		case first = <-r.steps:
		}

		order := []string{first.Name}
		totals := map[string]int{first.Name: first.Delta}
	drain:
		for {
			select {
			case s := <-r.steps:
				if _, ok := totals[s.Name]; !ok {
					order = append(order, s.Name)
				}
				totals[s.Name] += s.Delta
			default:
				break drain
			}
		}
		for _, name := range order {
			if delta := totals[name]; delta != 0 {
				sink(name, delta)
			}
		}
	}
}

// Close releases every watched line.
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
