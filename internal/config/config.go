package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains on-disk locations used by the daemon.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	MappingFile string `toml:"mapping_file"`
}

// API contains the HTTP/websocket listener configuration. An empty Bind
// defers to app.web_host/app.web_port in the mapping document.
type API struct {
	Bind                string `toml:"bind"`
	Token               string `toml:"token"`
	PingIntervalSeconds int    `toml:"ping_interval_seconds"`
}

// Hardware contains GPIO wiring and scan timing.
type Hardware struct {
	Enabled        bool   `toml:"enabled"`
	Chip           string `toml:"chip"`
	ScanIntervalMS int    `toml:"scan_interval_ms"`
	SettleMicros   int    `toml:"settle_us"`
	Hotplug        bool   `toml:"hotplug"`
}

// Audio contains synthesizer output settings.
type Audio struct {
	Enabled      bool    `toml:"enabled"`
	SampleRate   int     `toml:"sample_rate"`
	VoiceSeconds float64 `toml:"voice_seconds"`
	MaxVoices    int     `toml:"max_voices"`
}

// MIDI contains the optional MIDI mirror output.
type MIDI struct {
	Enabled  bool   `toml:"enabled"`
	Port     string `toml:"port"`
	Channel  int    `toml:"channel"`
	Velocity int    `toml:"velocity"`
}

// History contains the revision and play statistics database settings.
type History struct {
	Enabled      bool `toml:"enabled"`
	MaxRevisions int  `toml:"max_revisions"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all daemon configuration values for padsynth.
//
// Configuration sections by subsystem:
//   - Paths: state, logs and the YAML key mapping document
//   - API: web console bind address and optional bearer token
//   - Hardware: GPIO chip and matrix scan timing
//   - Audio: synthesizer output
//   - MIDI: optional note mirror to a MIDI port
//   - History: config revisions and key statistics
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	API      API      `toml:"api"`
	Hardware Hardware `toml:"hardware"`
	Audio    Audio    `toml:"audio"`
	MIDI     MIDI     `toml:"midi"`
	History  History  `toml:"history"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/padsynth/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("padsynth.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, filepath.Dir(c.Paths.MappingFile)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "padsynth.lock")
}

// PIDPath is the file recording the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "padsynth.pid")
}

// HistoryPath is the SQLite database holding config revisions and key statistics.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// ChipPath returns the character device backing the configured GPIO chip.
func (c *Config) ChipPath() string {
	chip := strings.TrimSpace(c.Hardware.Chip)
	if strings.HasPrefix(chip, "/") {
		return chip
	}
	return filepath.Join("/dev", chip)
}

// ScanInterval is the delay between matrix scans.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Hardware.ScanIntervalMS) * time.Millisecond
}

// SettleTime is how long a driven row settles before columns are sampled.
func (c *Config) SettleTime() time.Duration {
	return time.Duration(c.Hardware.SettleMicros) * time.Microsecond
}

// ListenAddress returns api.bind when set, otherwise host:port taken from the
// mapping document's app section.
func (c *Config) ListenAddress(host string, port int) string {
	if c.API.Bind != "" {
		return c.API.Bind
	}
	if strings.TrimSpace(host) == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// PingInterval is the websocket keepalive period.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.API.PingIntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
