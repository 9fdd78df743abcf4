package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"padsynth/internal/gpio"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func simOpener(sim *gpio.Sim, opens *atomic.Int32) ChipOpener {
	return func(string) (gpio.Chip, error) {
		opens.Add(1)
		sim.Reopen()
		return sim, nil
	}
}

func TestHardwareRunnerDeliversKeysAndEncoders(t *testing.T) {
	f := newFixture(t)
	sim := gpio.NewSim("gpiochip0")
	var opens atomic.Int32
	runner := newHardwareRunner("gpiochip0", simOpener(sim, &opens), f.ctrl, time.Millisecond, time.Microsecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, "hardware session", runner.Running)

	// MX1 sits on ROW1 (line 3) x COL0 (line 18).
	sim.SetContact(3, 18, true)
	waitFor(t, "MX1 press", func() bool { return f.ctrl.State().Keys["MX1"] })
	sim.SetContact(3, 18, false)
	waitFor(t, "MX1 release", func() bool { return !f.ctrl.State().Keys["MX1"] })

	// SW1 (A=26, B=12) is mapped to transpose with step 1.
	sim.Turn(26, 12, 2)
	waitFor(t, "transpose", func() bool { return f.ctrl.State().Synth.Transpose == 2 })

	status := runner.Status()
	if !status.Running || status.Keys != 12 || status.Encoders != 5 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestHardwareRunnerRestart(t *testing.T) {
	f := newFixture(t)
	sim := gpio.NewSim("gpiochip0")
	var opens atomic.Int32
	runner := newHardwareRunner("gpiochip0", simOpener(sim, &opens), f.ctrl, time.Millisecond, time.Microsecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, "first session", runner.Running)
	runner.Restart()
	waitFor(t, "second session", func() bool { return opens.Load() == 2 && runner.Running() })

	if got := runner.Status().Restarts; got != 1 {
		t.Fatalf("restarts = %d, want 1", got)
	}
	if _, driven := sim.Driven(3); !driven {
		t.Fatal("expected rows to be requested again after restart")
	}
}

func TestHardwareRunnerRetriesOpenFailures(t *testing.T) {
	f := newFixture(t)
	sim := gpio.NewSim("gpiochip0")
	var attempts atomic.Int32
	opener := func(string) (gpio.Chip, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("no such device")
		}
		sim.Reopen()
		return sim, nil
	}
	runner := newHardwareRunner("gpiochip0", opener, f.ctrl, time.Millisecond, time.Microsecond, nil)
	runner.retryInitial = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, "recovered session", runner.Running)
	status := runner.Status()
	if status.LastError != "" {
		t.Fatalf("expected last error cleared after recovery, got %q", status.LastError)
	}
	if attempts.Load() != 3 {
		t.Fatalf("attempts = %d, want 3", attempts.Load())
	}
}

func TestHardwareRunnerStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	runner := newHardwareRunner("gpiochip0", func(string) (gpio.Chip, error) {
		return nil, errors.New("missing")
	}, f.ctrl, time.Millisecond, time.Microsecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()
	waitFor(t, "first failure", func() bool { return runner.Status().LastError != "" })
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestNilHardwareRunner(t *testing.T) {
	var runner *hardwareRunner
	runner.Restart()
	if runner.Running() {
		t.Fatal("nil runner reports running")
	}
	if status := runner.Status(); status.Enabled {
		t.Fatalf("nil runner reports enabled: %+v", status)
	}
}
