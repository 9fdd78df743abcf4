package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeHardware()
	c.normalizeAudio()
	c.normalizeMIDI()
	c.normalizeLogging()
	if c.History.MaxRevisions < 0 {
		c.History.MaxRevisions = 0
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.MappingFile) == "" {
		c.Paths.MappingFile = defaultMappingFile
	}
	if c.Paths.MappingFile, err = expandPath(c.Paths.MappingFile); err != nil {
		return fmt.Errorf("paths.mapping_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("PADSYNTH_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	if c.API.PingIntervalSeconds <= 0 {
		c.API.PingIntervalSeconds = defaultWebsocketPingSecs
	}
}

func (c *Config) normalizeHardware() {
	c.Hardware.Chip = strings.TrimSpace(c.Hardware.Chip)
	if c.Hardware.Chip == "" {
		c.Hardware.Chip = defaultGPIOChip
	}
	if c.Hardware.ScanIntervalMS == 0 {
		c.Hardware.ScanIntervalMS = defaultScanIntervalMS
	}
	if c.Hardware.SettleMicros == 0 {
		c.Hardware.SettleMicros = defaultSettleMicros
	}
}

func (c *Config) normalizeAudio() {
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = defaultSampleRate
	}
	if c.Audio.VoiceSeconds == 0 {
		c.Audio.VoiceSeconds = defaultVoiceSeconds
	}
	if c.Audio.MaxVoices == 0 {
		c.Audio.MaxVoices = defaultMaxVoices
	}
}

func (c *Config) normalizeMIDI() {
	c.MIDI.Port = strings.TrimSpace(c.MIDI.Port)
	if c.MIDI.Channel == 0 {
		c.MIDI.Channel = defaultMIDIChannel
	}
	if c.MIDI.Velocity == 0 {
		c.MIDI.Velocity = defaultMIDIVelocity
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
