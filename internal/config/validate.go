package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateHardware(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateMIDI(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAPI() error {
	if c.API.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateHardware() error {
	if err := ensurePositiveMap(map[string]int{
		"hardware.scan_interval_ms": c.Hardware.ScanIntervalMS,
		"hardware.settle_us":        c.Hardware.SettleMicros,
	}); err != nil {
		return err
	}
	if c.Hardware.ScanIntervalMS > 1000 {
		return errors.New("hardware.scan_interval_ms must be at most 1000")
	}
	if c.Hardware.SettleMicros > 10000 {
		return errors.New("hardware.settle_us must be at most 10000")
	}
	return nil
}

func (c *Config) validateAudio() error {
	switch c.Audio.SampleRate {
	case 22050, 44100, 48000:
	default:
		return fmt.Errorf("audio.sample_rate must be 22050, 44100 or 48000 (got %d)", c.Audio.SampleRate)
	}
	if c.Audio.VoiceSeconds <= 0 || c.Audio.VoiceSeconds > 30 {
		return errors.New("audio.voice_seconds must be between 0 and 30")
	}
	if c.Audio.MaxVoices <= 0 {
		return errors.New("audio.max_voices must be positive")
	}
	return nil
}

func (c *Config) validateMIDI() error {
	if c.MIDI.Channel < 1 || c.MIDI.Channel > 16 {
		return errors.New("midi.channel must be between 1 and 16")
	}
	if c.MIDI.Velocity < 1 || c.MIDI.Velocity > 127 {
		return errors.New("midi.velocity must be between 1 and 127")
	}
	if c.MIDI.Enabled && strings.TrimSpace(c.MIDI.Port) == "" {
		return errors.New("midi.port must be set when midi.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
