package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

func base() *Config {
	return &Config{Synth: DefaultSynth(), App: DefaultApp()}
}

// Parse decodes and normalizes a YAML mapping document.
func Parse(data []byte) (*Config, error) {
	cfg := base()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalidf("document is empty")
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DecodeJSON decodes and normalizes a mapping document sent by the console.
func DecodeJSON(r io.Reader) (*Config, error) {
	cfg := base()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the document as YAML with two-space indentation.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode mapping: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode mapping: %w", err)
	}
	return buf.Bytes(), nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Matrix.Rows = maps.Clone(c.Matrix.Rows)
	out.Matrix.Cols = maps.Clone(c.Matrix.Cols)
	out.Matrix.Keys = slices.Clone(c.Matrix.Keys)
	out.Encoders = make([]Encoder, len(c.Encoders))
	for i, enc := range c.Encoders {
		enc.Step = clonePtr(enc.Step)
		enc.Minimum = clonePtr(enc.Minimum)
		enc.Maximum = clonePtr(enc.Maximum)
		out.Encoders[i] = enc
	}
	return &out
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(*v)
}

// WiringEqual reports whether a and b drive the same GPIO lines with the same
// debounce. Note, label, action and synth changes do not affect wiring.
func WiringEqual(a, b *Config) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !maps.Equal(a.Matrix.Rows, b.Matrix.Rows) || !maps.Equal(a.Matrix.Cols, b.Matrix.Cols) {
		return false
	}
	if a.App.DebounceMS != b.App.DebounceMS {
		return false
	}
	if !slices.EqualFunc(a.Matrix.Keys, b.Matrix.Keys, func(x, y Key) bool {
		return x.ID == y.ID && x.Row == y.Row && x.Col == y.Col
	}) {
		return false
	}
	return slices.EqualFunc(a.Encoders, b.Encoders, func(x, y Encoder) bool {
		return x.Name == y.Name && x.A == y.A && x.B == y.B
	})
}
