// Package controller owns the runtime state shared by the hardware loops
// and the web console.
//
// Hardware events and console requests both go through the Controller.
// Every change is published on the event hub so connected clients see the
// same state. Config mutations are persisted through the mapping store
// before they take effect.
package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"padsynth/internal/events"
	"padsynth/internal/logging"
	"padsynth/internal/mapping"
)

var (
	// ErrNotFound is returned for unknown keys and encoders.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned when a request carries invalid values.
	ErrValidation = errors.New("validation failed")
)

// Player renders notes. *audio.Synth satisfies it.
type Player interface {
	Apply(settings mapping.Synth)
	SetWaveform(shape string) error
	SetVolume(volume float64)
	SetTranspose(semitones int)
	NoteOn(key, note string) (float64, error)
	NoteOff(key string)
	Preview(note string) (float64, error)
	StopAll()
}

// NoteMirror forwards notes to an external instrument. *midiout.Mirror
// satisfies it.
type NoteMirror interface {
	NoteOn(key, note string, transpose int) error
	NoteOff(key string) error
	AllOff() error
}

// ApplyHook runs after a new mapping takes effect.
type ApplyHook func(prev, next *mapping.Config)

// Options wires a Controller.
type Options struct {
	Store  *mapping.Store
	Player Player
	Mirror NoteMirror
	Hub    *events.Hub
	Logger *slog.Logger
}

// Controller is safe for concurrent use.
type Controller struct {
	store  *mapping.Store
	player Player
	mirror NoteMirror
	hub    *events.Hub
	logger *slog.Logger

	mu         sync.Mutex
	cfg        *mapping.Config
	keys       map[string]mapping.Key
	encoders   map[string]mapping.Encoder
	pressed    map[string]bool
	freqs      map[string]float64
	encState   map[string]events.EncoderValue
	live       mapping.Synth
	hooks      []ApplyHook
	mirrorDown bool
}

// New loads the mapping from the store and builds the runtime state.
func New(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("controller requires a mapping store")
	}
	if opts.Player == nil {
		return nil, errors.New("controller requires a player")
	}
	hub := opts.Hub
	if hub == nil {
		hub = events.NewHub(0)
	}
	cfg, err := opts.Store.Cached()
	if err != nil {
		return nil, err
	}
	c := &Controller{
		store:  opts.Store,
		player: opts.Player,
		mirror: opts.Mirror,
		hub:    hub,
		logger: logging.NewComponentLogger(opts.Logger, "controller"),
	}
	c.applyLocked(cfg)
	return c, nil
}

// Hub returns the hub the controller publishes on.
func (c *Controller) Hub() *events.Hub {
	return c.hub
}

// OnApply registers fn to run after every applied mapping.
func (c *Controller) OnApply(fn ApplyHook) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// applyLocked replaces the mapping and resets runtime state to match it.
func (c *Controller) applyLocked(cfg *mapping.Config) {
	c.cfg = cfg
	c.keys = make(map[string]mapping.Key, len(cfg.Matrix.Keys))
	c.pressed = make(map[string]bool, len(cfg.Matrix.Keys))
	for _, key := range cfg.Matrix.Keys {
		c.keys[key.ID] = key
		c.pressed[key.ID] = false
	}
	c.encoders = make(map[string]mapping.Encoder, len(cfg.Encoders))
	for _, enc := range cfg.Encoders {
		c.encoders[enc.Name] = enc
	}
	c.freqs = make(map[string]float64)
	c.encState = make(map[string]events.EncoderValue)
	c.live = cfg.Synth
	c.player.StopAll()
	c.player.Apply(cfg.Synth)
	if c.mirror != nil {
		if err := c.mirror.AllOff(); err != nil {
			c.mirrorFailedLocked(err)
		}
	}
}

// Config returns a copy of the active mapping.
func (c *Controller) Config() *mapping.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Clone()
}

// State returns a snapshot of the runtime state.
func (c *Controller) State() events.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() events.State {
	state := events.State{
		Keys:        make(map[string]bool, len(c.pressed)),
		Frequencies: make(map[string]float64, len(c.freqs)),
		Encoders:    make(map[string]events.EncoderValue, len(c.encState)),
		Synth:       c.live,
	}
	for id, down := range c.pressed {
		state.Keys[id] = down
	}
	for id, f := range c.freqs {
		state.Frequencies[id] = f
	}
	for name, v := range c.encState {
		state.Encoders[name] = v
	}
	return state
}

// Snapshot returns a state message carrying the runtime state and mapping,
// stamped with the newest hub sequence so a consumer can continue from it.
func (c *Controller) Snapshot() events.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := events.StateMessage(c.stateLocked(), c.cfg.Clone())
	msg.Seq = c.hub.Last()
	return msg
}

func (c *Controller) mirrorFailedLocked(err error) {
	if c.mirrorDown {
		return
	}
	c.mirrorDown = true
	logging.WarnWithContext(c.logger, "midi mirror failed", "midi_send_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check that the midi port is still connected"),
		logging.String(logging.FieldImpact, "notes are not forwarded to the midi port"),
	)
}

func (c *Controller) mirrorOKLocked() {
	if c.mirrorDown {
		c.mirrorDown = false
		c.logger.Info("midi mirror recovered")
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: unknown %s %s", ErrNotFound, kind, id)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
