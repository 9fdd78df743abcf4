package daemon

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"padsynth/internal/config"
)

func hotplugConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Hardware.Enabled = true
	cfg.Hardware.Hotplug = true
	cfg.Hardware.Chip = "gpiochip0"
	return cfg
}

func TestNewNetlinkMonitor(t *testing.T) {
	t.Run("nil config returns nil", func(t *testing.T) {
		if m := newNetlinkMonitor(nil, nil, nil); m != nil {
			t.Error("expected nil monitor for nil config")
		}
	})

	t.Run("hotplug disabled returns nil", func(t *testing.T) {
		cfg := hotplugConfig()
		cfg.Hardware.Hotplug = false
		if m := newNetlinkMonitor(cfg, nil, nil); m != nil {
			t.Error("expected nil monitor when hotplug is disabled")
		}
	})

	t.Run("hardware disabled returns nil", func(t *testing.T) {
		cfg := hotplugConfig()
		cfg.Hardware.Enabled = false
		if m := newNetlinkMonitor(cfg, nil, nil); m != nil {
			t.Error("expected nil monitor without hardware")
		}
	})

	t.Run("valid config creates monitor", func(t *testing.T) {
		m := newNetlinkMonitor(hotplugConfig(), nil, nil)
		if m == nil {
			t.Fatal("expected non-nil monitor")
		}
		if m.device != "/dev/gpiochip0" {
			t.Errorf("expected device /dev/gpiochip0, got %s", m.device)
		}
	})
}

func TestNetlinkMonitorNilSafety(t *testing.T) {
	var m *netlinkMonitor
	if m.Running() {
		t.Error("expected Running() to return false for nil monitor")
	}
	m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor should return nil, got: %v", err)
	}
}

func TestNetlinkMonitorStopBeforeStart(t *testing.T) {
	m := newNetlinkMonitor(hotplugConfig(), nil, nil)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("expected Running() to return false after Stop on unstarted monitor")
	}
}

func TestBuildMatcher(t *testing.T) {
	m := newNetlinkMonitor(hotplugConfig(), nil, nil)
	matcher := m.buildMatcher()

	tests := []struct {
		name  string
		event netlink.UEvent
		want  bool
	}{
		{
			name:  "gpio add",
			event: netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "gpio"}},
			want:  true,
		},
		{
			name:  "gpio remove",
			event: netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "gpio"}},
			want:  false,
		},
		{
			name:  "block add",
			event: netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}},
			want:  false,
		},
	}
	for _, tt := range tests {
		if got := matcher.Evaluate(tt.event); got != tt.want {
			t.Errorf("%s: Evaluate = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHandleEvent(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "no device name", env: map[string]string{}, want: ""},
		{name: "other chip", env: map[string]string{"DEVNAME": "gpiochip1"}, want: ""},
		{name: "relative devname", env: map[string]string{"DEVNAME": "gpiochip0"}, want: "/dev/gpiochip0"},
		{name: "absolute devname", env: map[string]string{"DEVNAME": "/dev/gpiochip0"}, want: "/dev/gpiochip0"},
		{
			name: "devpath fallback",
			env:  map[string]string{"DEVPATH": "/devices/platform/soc/3f200000.gpio/gpiochip0"},
			want: "/dev/gpiochip0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			m := newNetlinkMonitor(hotplugConfig(), nil, func(device string) { got = device })
			m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: tt.env})
			if got != tt.want {
				t.Fatalf("handler received %q, want %q", got, tt.want)
			}
		})
	}
}
