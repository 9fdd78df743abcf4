package testsupport

import (
	"path/filepath"
	"testing"

	"padsynth/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Hardware and audio output are disabled and the API binds an ephemeral
// loopback port; options turn individual pieces back on.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.MappingFile = filepath.Join(base, "mapping.yaml")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Hardware.Enabled = false
	cfgVal.Hardware.Hotplug = false
	cfgVal.Audio.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithHardware enables the hardware runner on the named chip.
func WithHardware(chip string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Hardware.Enabled = true
		b.cfg.Hardware.Chip = chip
		b.cfg.Hardware.ScanIntervalMS = 1
		b.cfg.Hardware.SettleMicros = 1
	}
}

// WithToken requires a bearer token on the API.
func WithToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// WithoutHistory disables the history database.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
