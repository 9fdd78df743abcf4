package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"padsynth/internal/api"
	"padsynth/internal/config"
	"padsynth/internal/daemon"
	"padsynth/internal/gpio"
	"padsynth/internal/testsupport"
)

type running struct {
	daemon *daemon.Daemon
	client *api.Client
	done   chan error
	cancel context.CancelFunc
}

func startRun(t *testing.T, cfg *config.Config, opts Options) running {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan *daemon.Daemon, 1)
	done := make(chan error, 1)
	opts.Ready = func(d *daemon.Daemon) { ready <- d }
	go func() { done <- Run(ctx, cfg, opts) }()

	var d *daemon.Daemon
	select {
	case d = <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("daemon did not become ready")
	}
	client, err := api.NewClient(d.Address(), "")
	if err != nil {
		cancel()
		t.Fatalf("NewClient: %v", err)
	}
	r := running{daemon: d, client: client, done: done, cancel: cancel}
	t.Cleanup(func() { r.stop(t) })
	return r
}

func (r running) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case err, ok := <-r.done:
		if ok && err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHardware("gpiochip0"))
	sim := gpio.NewSim("gpiochip0")

	r := startRun(t, cfg, Options{
		OpenChip: func(string) (gpio.Chip, error) {
			sim.Reopen()
			return sim, nil
		},
	})

	if _, err := os.Stat(cfg.Paths.MappingFile); err != nil {
		t.Fatalf("factory mapping not written: %v", err)
	}
	if _, err := os.Stat(cfg.PIDPath()); err != nil {
		t.Fatalf("pid file missing: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, "padsynth.log")); err != nil {
		t.Fatalf("log pointer missing: %v", err)
	}

	status, err := r.client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || !status.Hardware.Enabled || !status.History.Enabled {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.SessionID == "" {
		t.Fatal("expected session id")
	}

	revisions, err := r.client.Revisions(context.Background(), 10)
	if err != nil {
		t.Fatalf("Revisions: %v", err)
	}
	if len(revisions.Revisions) != 1 {
		t.Fatalf("expected seeded revision, got %d", len(revisions.Revisions))
	}

	r.cancel()
	select {
	case err := <-r.done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		close(r.done)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed, stat err = %v", err)
	}
}

func TestSecondRunLeavesPIDFileAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	startRun(t, cfg, Options{})

	// Stand in for a first daemon running as another process.
	const owner = "999999\n"
	if err := os.WriteFile(cfg.PIDPath(), []byte(owner), 0o644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	second := *cfg
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Run(ctx, &second, Options{}); err == nil {
		t.Fatal("expected second run to fail on the instance lock")
	}

	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil {
		t.Fatalf("pid file removed by the failed run: %v", err)
	}
	if string(data) != owner {
		t.Fatalf("pid file rewritten by the failed run: %q", data)
	}
}

func TestRunNoHardwareScansSimulatedChip(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHardware("gpiochip9"))
	cfg.Hardware.Hotplug = true

	r := startRun(t, cfg, Options{NoHardware: true})

	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := r.client.Status(context.Background())
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		hw := status.Hardware
		if hw.Running {
			if !hw.Enabled || hw.Chip != simChipName || hw.Hotplug {
				t.Fatalf("unexpected hardware status %+v", hw)
			}
			if hw.Keys == 0 {
				t.Fatalf("expected factory keys on the simulated chip, got %+v", hw)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("simulated chip never came up: %+v", hw)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
