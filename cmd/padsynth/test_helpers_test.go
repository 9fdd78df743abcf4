package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"padsynth/internal/audio"
	"padsynth/internal/config"
	"padsynth/internal/controller"
	"padsynth/internal/daemon"
	"padsynth/internal/events"
	"padsynth/internal/history"
	"padsynth/internal/logging"
	"padsynth/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	ctrl       *controller.Controller
	history    *history.Store
	daemon     *daemon.Daemon
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	logHub := logging.NewStreamHub(256)
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "padsynth-test.log")},
		Stream:      logHub,
		SessionID:   "cli-test",
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	store := testsupport.MustMappingStore(t, cfg)
	synth, err := audio.New(audio.Options{})
	if err != nil {
		t.Fatalf("audio.New: %v", err)
	}
	hub := events.NewHub(256)
	ctrl, err := controller.New(controller.Options{Store: store, Player: synth, Hub: hub, Logger: logger})
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}

	env := &cliTestEnv{cfg: cfg, ctrl: ctrl, configPath: configPath}
	var recorder *history.Recorder
	if cfg.History.Enabled {
		env.history = testsupport.MustOpenHistory(t, cfg)
		recorder = history.NewRecorder(env.history, hub, cfg.History.MaxRevisions, logger)
		mappingCfg, err := store.Load()
		if err != nil {
			t.Fatalf("mapping load: %v", err)
		}
		if err := recorder.Seed(context.Background(), mappingCfg); err != nil {
			t.Fatalf("Seed: %v", err)
		}
	}

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		Controller: ctrl,
		History:    env.history,
		Recorder:   recorder,
		Logger:     logger,
		LogHub:     logHub,
		SessionID:  "cli-test",
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	env.daemon = d

	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.daemon.Address(), e.configPath)
}

func runCLI(t *testing.T, args []string, addr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if addr != "" {
		flags = append(flags, "--addr", addr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
