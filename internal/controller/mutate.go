package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"padsynth/internal/events"
	"padsynth/internal/logging"
	"padsynth/internal/mapping"
)

// mutate edits a copy of the active mapping, persists it and applies it.
func (c *Controller) mutate(reason string, edit func(cfg *mapping.Config) error) (*mapping.Config, error) {
	c.mu.Lock()
	next := c.cfg.Clone()
	if err := edit(next); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	saved, err := c.store.Save(next)
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, mapping.ErrInvalid) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, err
	}
	return c.commitLocked(reason, saved), nil
}

// commitLocked applies cfg, publishes it and runs hooks. It releases c.mu.
func (c *Controller) commitLocked(reason string, cfg *mapping.Config) *mapping.Config {
	prev := c.cfg
	c.applyLocked(cfg)
	c.hub.Publish(events.ConfigMessage(cfg.Clone()))
	hooks := slices.Clone(c.hooks)
	c.mu.Unlock()

	c.logger.Info("mapping applied",
		logging.String(logging.FieldEventType, "mapping_applied"),
		logging.String("reason", reason),
		logging.Int("keys", len(cfg.Matrix.Keys)),
		logging.Int("encoders", len(cfg.Encoders)),
	)
	for _, hook := range hooks {
		hook(prev, cfg)
	}
	return cfg.Clone()
}

// SetKeyNote assigns note to the key with the given id. The note is
// normalized before it is stored.
func (c *Controller) SetKeyNote(id, note string) (*mapping.Config, error) {
	return c.mutate("key note", func(cfg *mapping.Config) error {
		key, ok := cfg.FindKey(id)
		if !ok {
			return notFound("key", id)
		}
		key.Note = note
		return nil
	})
}

// UpdateEncoder applies a partial update. Accepted fields are action, step,
// minimum and maximum; a JSON null clears the numeric ones.
func (c *Controller) UpdateEncoder(name string, fields map[string]json.RawMessage) (*mapping.Config, error) {
	allowed := pick(fields, "action", "step", "minimum", "maximum")
	if len(allowed) == 0 {
		return nil, invalid("no encoder fields to update")
	}
	return c.mutate("encoder "+name, func(cfg *mapping.Config) error {
		enc, ok := cfg.FindEncoder(name)
		if !ok {
			return notFound("encoder", name)
		}
		for _, field := range sortedKeys(allowed) {
			raw := allowed[field]
			var err error
			switch field {
			case "action":
				if isNull(raw) {
					err = errors.New("null action")
				} else {
					err = json.Unmarshal(raw, &enc.Action)
				}
			case "step":
				enc.Step, err = decodeOptional(raw)
			case "minimum":
				enc.Minimum, err = decodeOptional(raw)
			case "maximum":
				enc.Maximum, err = decodeOptional(raw)
			}
			if err != nil {
				return invalid("encoder %s: %s must be a %s", name, field, fieldKind(field))
			}
		}
		return nil
	})
}

// UpdateSynth applies a partial update to the persisted synth settings.
// Accepted fields are waveform, volume, transpose, attack_ms and
// release_ms.
func (c *Controller) UpdateSynth(fields map[string]json.RawMessage) (*mapping.Config, error) {
	allowed := pick(fields, "waveform", "volume", "transpose", "attack_ms", "release_ms")
	if len(allowed) == 0 {
		return nil, invalid("no synth fields to update")
	}
	return c.mutate("synth", func(cfg *mapping.Config) error {
		s := &cfg.Synth
		for _, field := range sortedKeys(allowed) {
			raw := allowed[field]
			var err error
			switch field {
			case "waveform":
				err = json.Unmarshal(raw, &s.Waveform)
			case "volume":
				err = json.Unmarshal(raw, &s.Volume)
			case "transpose":
				err = json.Unmarshal(raw, &s.Transpose)
			case "attack_ms":
				err = json.Unmarshal(raw, &s.AttackMS)
			case "release_ms":
				err = json.Unmarshal(raw, &s.ReleaseMS)
			}
			if err != nil || isNull(raw) {
				return invalid("synth: %s must be a %s", field, fieldKind(field))
			}
		}
		return nil
	})
}

// Replace swaps in a complete mapping.
func (c *Controller) Replace(cfg *mapping.Config) (*mapping.Config, error) {
	if cfg == nil {
		return nil, invalid("config is empty")
	}
	c.backup("replace")
	return c.mutate("replace", func(next *mapping.Config) error {
		*next = *cfg.Clone()
		return nil
	})
}

// Restore replaces the mapping with a stored YAML revision.
func (c *Controller) Restore(data []byte) (*mapping.Config, error) {
	cfg, err := mapping.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	c.backup("restore")
	return c.mutate("restore", func(next *mapping.Config) error {
		*next = *cfg
		return nil
	})
}

// backup keeps the previous document as mapping.yaml.bak before a wholesale
// replacement. A failed backup does not block the replacement.
func (c *Controller) backup(reason string) {
	path, err := c.store.Backup()
	if err != nil {
		c.logger.Warn("mapping backup failed",
			logging.String("reason", reason),
			logging.Error(err),
		)
		return
	}
	c.logger.Debug("mapping backed up", logging.String("path", path), logging.String("reason", reason))
}

// Reload re-reads the mapping file.
func (c *Controller) Reload() (*mapping.Config, error) {
	c.mu.Lock()
	cfg, err := c.store.Load()
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, mapping.ErrInvalid) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, err
	}
	return c.commitLocked("reload", cfg), nil
}

// Preview describes a test note.
type Preview struct {
	ID        string  `json:"id"`
	Note      string  `json:"note"`
	Frequency float64 `json:"frequency"`
}

// TestKey plays the note assigned to id once.
func (c *Controller) TestKey(id string) (Preview, error) {
	c.mu.Lock()
	key, ok := c.keys[id]
	c.mu.Unlock()
	if !ok {
		return Preview{}, notFound("key", id)
	}
	freq, err := c.player.Preview(key.Note)
	if err != nil {
		return Preview{}, err
	}
	return Preview{ID: id, Note: key.Note, Frequency: freq}, nil
}

func pick(fields map[string]json.RawMessage, names ...string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	for _, name := range names {
		if raw, ok := fields[name]; ok {
			out[name] = raw
		}
	}
	return out
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func decodeOptional(raw json.RawMessage) (*float64, error) {
	if isNull(raw) {
		return nil, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func fieldKind(field string) string {
	switch field {
	case "action", "waveform":
		return "string"
	case "transpose", "attack_ms", "release_ms":
		return "integer"
	default:
		return "number"
	}
}
