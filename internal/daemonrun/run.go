// Package daemonrun assembles the daemon process: logging, the audio and
// MIDI outputs, the history database, the controller and the daemon itself.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"padsynth/internal/audio"
	"padsynth/internal/config"
	"padsynth/internal/controller"
	"padsynth/internal/daemon"
	"padsynth/internal/events"
	"padsynth/internal/gpio"
	"padsynth/internal/history"
	"padsynth/internal/logging"
	"padsynth/internal/mapping"
	"padsynth/internal/midiout"
	"padsynth/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// NoHardware runs the console and synth against an in-memory chip
	// instead of GPIO.
	NoHardware bool
	// OpenChip replaces the character-device opener; tests pass a simulator.
	OpenChip daemon.ChipOpener
	// Ready, when set, receives the daemon once it is serving.
	Ready func(*daemon.Daemon)
}

const (
	hubCapacity = 1024
	simChipName = "sim"
)

// Run starts the padsynth daemon and blocks until SIGINT, SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	// No device node to preflight; the simulated chip is installed below.
	if opts.NoHardware {
		cfg.Hardware.Enabled = false
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runLogs := logging.NewRunLogs(cfg.Paths.LogDir, time.Now())
	logPath := runLogs.LogPath()
	eventsPath := runLogs.EventsPath()
	logHub := logging.NewStreamHub(4096)
	eventArchive, archiveErr := logging.NewEventArchive(eventsPath)
	if archiveErr != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize log archive: %v\n", archiveErr)
	} else if eventArchive != nil {
		logHub.AddSink(eventArchive)
		defer eventArchive.Close()
	}

	sessionID := uuid.NewString()
	logger, err := logging.NewFromConfig(cfg, logHub, sessionID, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update padsynth.log link: %v\n", err)
	}
	logging.PruneRuns(logger, runLogs, cfg.Logging.RetentionDays, time.Now())
	logPreflight(signalCtx, logger, cfg)

	openChip := opts.OpenChip
	if opts.NoHardware {
		openChip = useSimulatedChip(cfg)
		logger.Info("gpio disabled, scanning an in-memory chip", logging.String("chip", simChipName))
	}

	store := mapping.NewStore(cfg.Paths.MappingFile)
	mappingCfg, created, err := store.EnsureDefault()
	if err != nil {
		logging.ErrorWithContext(logger, "load key mapping", "mapping_load_failed",
			logging.Error(err),
			logging.String("path", cfg.Paths.MappingFile),
			logging.String(logging.FieldErrorHint, "fix the YAML or run 'padsynth config validate'"),
		)
		return err
	}
	if created {
		logger.Info("wrote factory key mapping", logging.String("path", cfg.Paths.MappingFile))
	}

	synth := openSynth(cfg, logger)
	defer synth.Close()

	hub := events.NewHub(hubCapacity)
	ctrlOpts := controller.Options{Store: store, Player: synth, Hub: hub, Logger: logger}
	mirror := openMirror(cfg, logger)
	if mirror != nil {
		ctrlOpts.Mirror = mirror
		defer mirror.Close()
	}
	ctrl, err := controller.New(ctrlOpts)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	var (
		historyStore *history.Store
		recorder     *history.Recorder
	)
	if cfg.History.Enabled {
		historyStore, err = history.Open(cfg.HistoryPath())
		if err != nil {
			logging.WarnWithContext(logger, "history database unavailable", "history_open_failed",
				logging.Error(err),
				logging.String("path", cfg.HistoryPath()),
				logging.String(logging.FieldImpact, "config revisions and key statistics are disabled"),
			)
		} else {
			recorder = history.NewRecorder(historyStore, hub, cfg.History.MaxRevisions, logger)
			if err := recorder.Seed(signalCtx, mappingCfg); err != nil {
				logger.Warn("seed mapping revision", logging.Error(err))
			}
		}
	}

	d, err := daemon.New(daemon.Options{
		Config:       cfg,
		Controller:   ctrl,
		History:      historyStore,
		Recorder:     recorder,
		Logger:       logger,
		LogHub:       logHub,
		LogArchive:   eventArchive,
		SessionID:    sessionID,
		OpenChip:     openChip,
		AudioEnabled: synth.Enabled(),
		MIDIEnabled:  mirror != nil,
	})
	if err != nil {
		if historyStore != nil {
			_ = historyStore.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that no other padsynth instance is running and the port is free"),
		)
		return err
	}

	// The pid file belongs to whoever holds the instance lock.
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	if opts.Ready != nil {
		opts.Ready(d)
	}

	<-signalCtx.Done()
	logger.Info("padsynth daemon shutting down")
	return nil
}

// useSimulatedChip points the hardware runner at one in-memory chip that
// survives session restarts. Hotplug is off since no device node exists.
func useSimulatedChip(cfg *config.Config) daemon.ChipOpener {
	cfg.Hardware.Enabled = true
	cfg.Hardware.Hotplug = false
	cfg.Hardware.Chip = simChipName
	sim := gpio.NewSim(simChipName)
	return func(string) (gpio.Chip, error) {
		sim.Reopen()
		return sim, nil
	}
}

func openSynth(cfg *config.Config, logger *slog.Logger) *audio.Synth {
	if cfg.Audio.Enabled {
		return audio.Open(cfg.Audio.SampleRate, cfg.Audio.VoiceSeconds, cfg.Audio.MaxVoices, logger)
	}
	synth, _ := audio.New(audio.Options{
		SampleRate:   cfg.Audio.SampleRate,
		VoiceSeconds: cfg.Audio.VoiceSeconds,
		MaxVoices:    cfg.Audio.MaxVoices,
		Logger:       logger,
	})
	return synth
}

func openMirror(cfg *config.Config, logger *slog.Logger) *midiout.Mirror {
	if !cfg.MIDI.Enabled {
		return nil
	}
	mirror, err := midiout.Open(cfg.MIDI.Port, cfg.MIDI.Channel, cfg.MIDI.Velocity, logger)
	if err != nil {
		logging.WarnWithContext(logger, "midi mirror unavailable", "midi_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check midi.port against the ports listed by the system"),
			logging.String(logging.FieldImpact, "notes are not mirrored to MIDI"),
		)
		return nil
	}
	return mirror
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg, preflight.Options{}) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "padsynth.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
