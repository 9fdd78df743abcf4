package mapping

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"padsynth/internal/notes"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid mapping")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Normalize canonicalizes note spellings, fills empty collections, and
// validates the document. It mutates c in place.
func (c *Config) Normalize() error {
	if c.Matrix.Rows == nil {
		c.Matrix.Rows = map[string]int{}
	}
	if c.Matrix.Cols == nil {
		c.Matrix.Cols = map[string]int{}
	}
	if c.Matrix.Keys == nil {
		c.Matrix.Keys = []Key{}
	}
	if c.Encoders == nil {
		c.Encoders = []Encoder{}
	}
	c.Synth.Waveform = strings.TrimSpace(c.Synth.Waveform)
	c.App.WebHost = strings.TrimSpace(c.App.WebHost)

	if err := c.validateMatrix(); err != nil {
		return err
	}
	if err := c.validateEncoders(); err != nil {
		return err
	}
	if err := ValidateSynth(c.Synth); err != nil {
		return err
	}
	return c.validateApp()
}

func (c *Config) validateMatrix() error {
	if err := validateLines("matrix.rows", c.Matrix.Rows); err != nil {
		return err
	}
	if err := validateLines("matrix.cols", c.Matrix.Cols); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Matrix.Keys))
	positions := make(map[[2]string]string, len(c.Matrix.Keys))
	for i := range c.Matrix.Keys {
		key := &c.Matrix.Keys[i]
		key.ID = strings.TrimSpace(key.ID)
		if key.ID == "" {
			return invalidf("matrix.keys[%d].id must not be empty", i)
		}
		if _, dup := seen[key.ID]; dup {
			return invalidf("matrix.keys: duplicate key id %q", key.ID)
		}
		seen[key.ID] = struct{}{}
		if _, ok := c.Matrix.Rows[key.Row]; !ok {
			return invalidf("matrix.keys[%s].row %q is not defined in matrix.rows", key.ID, key.Row)
		}
		if _, ok := c.Matrix.Cols[key.Col]; !ok {
			return invalidf("matrix.keys[%s].col %q is not defined in matrix.cols", key.ID, key.Col)
		}
		pos := [2]string{key.Row, key.Col}
		if other, dup := positions[pos]; dup {
			return invalidf("matrix.keys[%s] shares %s/%s with %s", key.ID, key.Row, key.Col, other)
		}
		positions[pos] = key.ID
		note, err := notes.Normalize(key.Note)
		if err != nil {
			return fmt.Errorf("%w: matrix.keys[%s].note: %w", ErrInvalid, key.ID, err)
		}
		key.Note = note
	}
	return nil
}

func validateLines(field string, lines map[string]int) error {
	for name, offset := range lines {
		if strings.TrimSpace(name) == "" {
			return invalidf("%s contains an empty name", field)
		}
		if offset < 0 {
			return invalidf("%s.%s must be a non-negative line offset", field, name)
		}
	}
	return nil
}

func (c *Config) validateEncoders() error {
	seen := make(map[string]struct{}, len(c.Encoders))
	for i := range c.Encoders {
		enc := &c.Encoders[i]
		enc.Name = strings.TrimSpace(enc.Name)
		if enc.Name == "" {
			return invalidf("encoders[%d].name must not be empty", i)
		}
		if _, dup := seen[enc.Name]; dup {
			return invalidf("encoders: duplicate encoder name %q", enc.Name)
		}
		seen[enc.Name] = struct{}{}
		if err := ValidateEncoder(*enc); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEncoder checks one encoder's pins, action and bounds.
func ValidateEncoder(enc Encoder) error {
	if enc.A < 0 || enc.B < 0 {
		return invalidf("encoders[%s]: line offsets must be non-negative", enc.Name)
	}
	if enc.A == enc.B {
		return invalidf("encoders[%s]: A and B must be different lines", enc.Name)
	}
	if !slices.Contains(Actions, enc.Action) {
		return invalidf("encoders[%s].action must be one of %s", enc.Name, strings.Join(Actions, ", "))
	}
	bounds := []struct {
		field string
		v     *float64
	}{{"step", enc.Step}, {"minimum", enc.Minimum}, {"maximum", enc.Maximum}}
	for _, b := range bounds {
		if b.v != nil && !finite(*b.v) {
			return invalidf("encoders[%s].%s must be a finite number", enc.Name, b.field)
		}
	}
	if enc.Step != nil && *enc.Step <= 0 {
		return invalidf("encoders[%s].step must be positive", enc.Name)
	}
	if enc.Minimum != nil && enc.Maximum != nil && *enc.Minimum > *enc.Maximum {
		return invalidf("encoders[%s].minimum must not exceed maximum", enc.Name)
	}
	return nil
}

// ValidateSynth checks waveform and numeric ranges.
func ValidateSynth(s Synth) error {
	if !notes.ValidWaveform(s.Waveform) {
		return invalidf("synth.waveform must be one of %s", strings.Join(notes.Waveforms, ", "))
	}
	if !finite(s.Volume) || s.Volume < 0 || s.Volume > 1 {
		return invalidf("synth.volume must be between 0 and 1")
	}
	if s.Transpose < -24 || s.Transpose > 24 {
		return invalidf("synth.transpose must be between -24 and 24")
	}
	if s.AttackMS < 0 || s.AttackMS > 500 {
		return invalidf("synth.attack_ms must be between 0 and 500")
	}
	if s.ReleaseMS < 10 || s.ReleaseMS > 5000 {
		return invalidf("synth.release_ms must be between 10 and 5000")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (c *Config) validateApp() error {
	if c.App.DebounceMS < 1 || c.App.DebounceMS > 100 {
		return invalidf("app.debounce_ms must be between 1 and 100")
	}
	if c.App.WebPort < 1 || c.App.WebPort > 65535 {
		return invalidf("app.web_port must be between 1 and 65535")
	}
	return nil
}
