package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"padsynth/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PADSYNTH_API_TOKEN", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "padsynth")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	wantMapping := filepath.Join(tempHome, ".config", "padsynth", "mapping.yaml")
	if cfg.Paths.MappingFile != wantMapping {
		t.Fatalf("unexpected mapping file: got %q want %q", cfg.Paths.MappingFile, wantMapping)
	}
	if got := cfg.ListenAddress("0.0.0.0", 8080); got != "0.0.0.0:8080" {
		t.Fatalf("expected listen address from mapping fallback, got %q", got)
	}
	if cfg.ScanInterval() != 2*time.Millisecond {
		t.Fatalf("unexpected scan interval: %s", cfg.ScanInterval())
	}
	if cfg.SettleTime() != 200*time.Microsecond {
		t.Fatalf("unexpected settle time: %s", cfg.SettleTime())
	}
	if cfg.ChipPath() != "/dev/gpiochip0" {
		t.Fatalf("unexpected chip path: %q", cfg.ChipPath())
	}
	if cfg.MIDI.Enabled {
		t.Fatal("expected MIDI mirror disabled by default")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.MappingFile)} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "padsynth.toml")

	type payload struct {
		API struct {
			Bind string `toml:"bind"`
		} `toml:"api"`
		Hardware struct {
			Chip           string `toml:"chip"`
			ScanIntervalMS int    `toml:"scan_interval_ms"`
		} `toml:"hardware"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.API.Bind = "127.0.0.1:9000"
	custom.Hardware.Chip = "/dev/gpiochip4"
	custom.Hardware.ScanIntervalMS = 5
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if got := cfg.ListenAddress("0.0.0.0", 8080); got != "127.0.0.1:9000" {
		t.Fatalf("expected api.bind to override mapping address, got %q", got)
	}
	if cfg.ChipPath() != "/dev/gpiochip4" {
		t.Fatalf("expected absolute chip path to pass through, got %q", cfg.ChipPath())
	}
	if cfg.Hardware.ScanIntervalMS != 5 {
		t.Fatalf("expected scan interval 5, got %d", cfg.Hardware.ScanIntervalMS)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected log format to be lowercased, got %q", cfg.Logging.Format)
	}
	if !cfg.Audio.Enabled || cfg.Audio.SampleRate != 44100 {
		t.Fatalf("expected untouched sections to keep defaults, got %+v", cfg.Audio)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "padsynth.toml")
	if err := os.WriteFile(configPath, []byte("[api]\nbindd = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestEnvVarSuppliesAPIToken(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "padsynth.toml")
	if err := os.WriteFile(configPath, []byte("[api]\nbind = \"127.0.0.1:8080\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PADSYNTH_API_TOKEN", " secret ")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.Token != "secret" {
		t.Fatalf("expected token from env, got %q", cfg.API.Token)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "mapping_file") {
		t.Fatalf("sample config missing mapping_file: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StateDir, "padsynth") {
		t.Fatalf("expected state dir to contain padsynth, got %q", cfg.Paths.StateDir)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bind without port", func(c *config.Config) { c.API.Bind = "localhost" }},
		{"zero scan interval", func(c *config.Config) { c.Hardware.ScanIntervalMS = 0 }},
		{"huge settle time", func(c *config.Config) { c.Hardware.SettleMicros = 50000 }},
		{"odd sample rate", func(c *config.Config) { c.Audio.SampleRate = 12345 }},
		{"midi without port", func(c *config.Config) { c.MIDI.Enabled = true }},
		{"midi channel", func(c *config.Config) { c.MIDI.Channel = 17 }},
		{"log level", func(c *config.Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
