package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"padsynth/internal/api"
	"padsynth/internal/config"
	"padsynth/internal/controller"
	"padsynth/internal/history"
	"padsynth/internal/logging"
	"padsynth/internal/mapping"
)

// Options wires a Daemon. History, Recorder, LogHub and LogArchive are
// optional.
type Options struct {
	Config       *config.Config
	Controller   *controller.Controller
	History      *history.Store
	Recorder     *history.Recorder
	Logger       *slog.Logger
	LogHub       *logging.StreamHub
	LogArchive   *logging.EventArchive
	SessionID    string
	OpenChip     ChipOpener
	AudioEnabled bool
	MIDIEnabled  bool
}

// Daemon runs the hardware loops and the web API and enforces
// single-instance execution.
type Daemon struct {
	cfg        *config.Config
	ctrl       *controller.Controller
	history    *history.Store
	recorder   *history.Recorder
	logger     *slog.Logger
	logHub     *logging.StreamHub
	logArchive *logging.EventArchive
	sessionID  string
	audio      bool
	midi       bool

	lockPath string
	lock     *flock.Flock

	hardware *hardwareRunner
	netlink  *netlinkMonitor
	api      *apiServer

	running   atomic.Bool
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
}

// New constructs a daemon. Nothing runs until Start.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Controller == nil {
		return nil, errors.New("daemon requires config and controller")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:        cfg,
		ctrl:       opts.Controller,
		history:    opts.History,
		recorder:   opts.Recorder,
		logger:     logger,
		logHub:     opts.LogHub,
		logArchive: opts.LogArchive,
		sessionID:  opts.SessionID,
		audio:      opts.AudioEnabled,
		midi:       opts.MIDIEnabled,
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
	}
	if cfg.Hardware.Enabled {
		d.hardware = newHardwareRunner(cfg.Hardware.Chip, opts.OpenChip, d.ctrl,
			cfg.ScanInterval(), cfg.SettleTime(), logger)
	}
	d.netlink = newNetlinkMonitor(cfg, logger, func(string) { d.hardware.Restart() })
	d.ctrl.OnApply(func(prev, next *mapping.Config) {
		if !mapping.WiringEqual(prev, next) {
			d.hardware.Restart()
		}
	})
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the lock and launches the hardware runner, the history
// recorder, the hotplug monitor and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another padsynth daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}

	d.mu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.startedAt = time.Now()
	d.mu.Unlock()

	if d.hardware != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.hardware.Run(runCtx)
		}()
	}
	if d.recorder != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.recorder.Run(runCtx); err != nil {
				logging.WarnWithContext(d.logger, "history recorder stopped", "history_recorder_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the history database"),
					logging.String(logging.FieldImpact, "config revisions and key statistics are not recorded"),
				)
			}
		}()
	}
	if err := d.netlink.Start(runCtx); err != nil {
		d.logger.Warn("netlink monitor start failed", logging.Error(err))
	}

	d.running.Store(true)
	d.logger.Info("padsynth daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
		logging.Bool("hardware", d.hardware != nil),
	)
	return nil
}

// Stop cancels background work, waits for it and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.ctx = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.netlink.Stop()
	d.api.stop()
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("padsynth daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// Close stops the daemon and closes the history database.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Controller returns the runtime-state controller.
func (d *Daemon) Controller() *controller.Controller {
	return d.ctrl
}

// Address returns the address the API server listens on.
func (d *Daemon) Address() string {
	return d.api.address()
}

// LogStream returns the live log hub.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logHub
}

// LogArchive returns the on-disk log archive.
func (d *Daemon) LogArchive() *logging.EventArchive {
	return d.logArchive
}

// Status returns the current daemon status.
func (d *Daemon) Status() api.DaemonStatus {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	state := d.ctrl.State()
	status := api.DaemonStatus{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		SessionID:     d.sessionID,
		StartedAt:     startedAt,
		ListenAddress: d.api.address(),
		LockFilePath:  d.lockPath,
		MappingPath:   d.cfg.Paths.MappingFile,
		Clients:       d.api.clientCount(),
		LastEvent:     d.ctrl.Hub().Last(),
		Hardware:      d.hardware.Status(),
		Audio: api.AudioStatus{
			Enabled:    d.audio,
			SampleRate: d.cfg.Audio.SampleRate,
			Waveform:   state.Synth.Waveform,
		},
		MIDI: api.MIDIStatus{Enabled: d.midi},
		History: api.HistoryStatus{
			Enabled: d.history != nil,
		},
	}
	status.Hardware.Hotplug = d.netlink.Running()
	if d.midi {
		status.MIDI.Port = d.cfg.MIDI.Port
		status.MIDI.Channel = d.cfg.MIDI.Channel
	}
	if d.history != nil {
		status.History.Path = d.history.Path()
	}
	return status
}
