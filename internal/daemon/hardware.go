package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"padsynth/internal/api"
	"padsynth/internal/controller"
	"padsynth/internal/encoder"
	"padsynth/internal/gpio"
	"padsynth/internal/logging"
	"padsynth/internal/matrix"
)

// ChipOpener opens the GPIO chip named in the daemon config.
type ChipOpener func(name string) (gpio.Chip, error)

// OpenCdevChip opens a chip through the GPIO character device.
func OpenCdevChip(name string) (gpio.Chip, error) {
	return gpio.OpenCdev(name, "padsynth")
}

const (
	hardwareRetryInitial = time.Second
	hardwareRetryMax     = 30 * time.Second
)

var errRestartRequested = errors.New("hardware restart requested")

// hardwareRunner owns the chip, the matrix scanner and the encoder reader.
// A session runs the scan and encoder loops under one errgroup; when either
// fails, or a restart is requested, the session is torn down and rebuilt
// from the controller's current mapping.
type hardwareRunner struct {
	chipName     string
	open         ChipOpener
	ctrl         *controller.Controller
	scanInterval time.Duration
	settle       time.Duration
	retryInitial time.Duration
	logger       *slog.Logger
	restart      chan struct{}

	mu        sync.Mutex
	running   bool
	keys      int
	encoders  int
	restarts  int
	reader    *encoder.Reader
	lastErr   string
	lastErrAt time.Time
}

func newHardwareRunner(chipName string, open ChipOpener, ctrl *controller.Controller, scanInterval, settle time.Duration, logger *slog.Logger) *hardwareRunner {
	if open == nil {
		open = OpenCdevChip
	}
	return &hardwareRunner{
		chipName:     chipName,
		open:         open,
		ctrl:         ctrl,
		scanInterval: scanInterval,
		settle:       settle,
		retryInitial: hardwareRetryInitial,
		logger:       logging.NewComponentLogger(logger, "hardware"),
		restart:      make(chan struct{}, 1),
	}
}

// Restart asks the runner to rebuild its session. Safe to call from any
// goroutine; repeated calls before the runner reacts collapse into one.
func (h *hardwareRunner) Restart() {
	if h == nil {
		return
	}
	select {
	case h.restart <- struct{}{}:
	default:
	}
}

// Run keeps a hardware session alive until ctx ends.
func (h *hardwareRunner) Run(ctx context.Context) {
	delay := h.retryInitial
	for {
		err := h.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errRestartRequested) {
			h.mu.Lock()
			h.restarts++
			h.mu.Unlock()
			delay = h.retryInitial
			h.logger.Info("hardware session restarting",
				logging.String(logging.FieldEventType, "hardware_restart"),
			)
			continue
		}
		if err != nil {
			h.recordError(err)
			logging.WarnWithContext(h.logger, "hardware session failed; retrying", "hardware_session_failed",
				logging.Error(err),
				logging.String("chip", h.chipName),
				logging.Duration("retry_in", delay),
				logging.String(logging.FieldErrorHint, "check the gpio chip name and line offsets in the mapping"),
				logging.String(logging.FieldImpact, "keys and encoders are ignored until the chip is available"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-h.restart:
			delay = h.retryInitial
		case <-time.After(delay):
			delay = min(delay*2, hardwareRetryMax)
		}
	}
}

func (h *hardwareRunner) session(ctx context.Context) error {
	cfg := h.ctrl.Config()

	chip, err := h.open(h.chipName)
	if err != nil {
		return err
	}
	defer chip.Close()

	scanner, err := matrix.New(chip, cfg.Matrix, matrix.Options{
		Debounce: time.Duration(cfg.App.DebounceMS) * time.Millisecond,
		Settle:   h.settle,
		Logger:   h.logger,
	})
	if err != nil {
		return fmt.Errorf("matrix: %w", err)
	}
	defer scanner.Close()

	reader, err := encoder.NewReader(chip, cfg.Encoders, h.logger)
	if err != nil {
		return fmt.Errorf("encoders: %w", err)
	}
	defer reader.Close()

	h.mu.Lock()
	h.running = true
	h.keys = len(cfg.Matrix.Keys)
	h.encoders = len(cfg.Encoders)
	h.reader = reader
	h.lastErr = ""
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	h.logger.Info("hardware session started",
		logging.String(logging.FieldEventType, "hardware_started"),
		logging.String("chip", chip.Name()),
		logging.Int("keys", len(cfg.Matrix.Keys)),
		logging.Int("encoders", len(cfg.Encoders)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scanner.Run(gctx, h.scanInterval, func(ev matrix.Event) {
			h.ctrl.HandleKey(ev.Kind, ev.KeyID)
		})
	})
	g.Go(func() error {
		return reader.Run(gctx, func(name string, delta int) {
			h.ctrl.HandleEncoder(name, delta)
		})
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-h.restart:
			return errRestartRequested
		}
	})
	return g.Wait()
}

func (h *hardwareRunner) recordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastErr = err.Error()
	h.lastErrAt = time.Now()
}

// Status reports the current session.
func (h *hardwareRunner) Status() api.HardwareStatus {
	if h == nil {
		return api.HardwareStatus{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	status := api.HardwareStatus{
		Enabled:     true,
		Running:     h.running,
		Chip:        h.chipName,
		Keys:        h.keys,
		Encoders:    h.encoders,
		Restarts:    h.restarts,
		LastError:   h.lastErr,
		LastErrorAt: h.lastErrAt,
	}
	if h.reader != nil {
		status.DroppedSteps = h.reader.Dropped()
	}
	return status
}

// Running reports whether a session is active.
func (h *hardwareRunner) Running() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}
