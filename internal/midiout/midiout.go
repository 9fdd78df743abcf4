// Package midiout mirrors key presses to a MIDI output port.
package midiout

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the rtmidi driver

	"padsynth/internal/logging"
	"padsynth/internal/notes"
)

// SendFunc delivers one MIDI message.
type SendFunc func(msg midi.Message) error

// Mirror sends note-on/note-off for keys. Each key remembers the note
// number it started so the matching note-off is sent even if the mapping
// or transpose changes while the key is held.
type Mirror struct {
	mu       sync.Mutex
	send     SendFunc
	channel  uint8
	velocity uint8
	held     map[string]uint8
	closer   func()
	logger   *slog.Logger
}

// Open connects to the output port whose name contains port.
func Open(port string, channel, velocity int, logger *slog.Logger) (*Mirror, error) {
	out, err := midi.FindOutPort(port)
	if err != nil {
		midi.CloseDriver()
		return nil, fmt.Errorf("find midi output %q: %w", port, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		midi.CloseDriver()
		return nil, fmt.Errorf("open midi output %q: %w", port, err)
	}
	m := New(send, channel, velocity, logger)
	m.closer = midi.CloseDriver
	m.logger.Info("midi mirror connected",
		logging.String("port", out.String()),
		logging.Int("channel", channel),
	)
	return m, nil
}

// FindPort returns the full name of the output port whose name contains
// port, without keeping it open.
func FindPort(port string) (string, error) {
	out, err := midi.FindOutPort(port)
	if err != nil {
		return "", fmt.Errorf("find midi output %q: %w", port, err)
	}
	return out.String(), nil
}

// New wraps send. channel is 1-based.
func New(send SendFunc, channel, velocity int, logger *slog.Logger) *Mirror {
	return &Mirror{
		send:     send,
		channel:  uint8(min(max(channel, 1), 16) - 1),
		velocity: uint8(min(max(velocity, 1), 127)),
		held:     make(map[string]uint8),
		logger:   logging.NewComponentLogger(logger, "midi"),
	}
}

// NoteOn sends a note-on for note transposed by transpose semitones. A
// key already holding a note is released first.
func (m *Mirror) NoteOn(key, note string, transpose int) error {
	number, err := notes.MIDINumber(note)
	if err != nil {
		return err
	}
	number += transpose
	if number < 0 || number > 127 {
		return fmt.Errorf("note %s%+d is outside the midi range", note, transpose)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.held[key]; ok {
		if err := m.send(midi.NoteOff(m.channel, prev)); err != nil {
			return fmt.Errorf("midi note off: %w", err)
		}
	}
	if err := m.send(midi.NoteOn(m.channel, uint8(number), m.velocity)); err != nil {
		delete(m.held, key)
		return fmt.Errorf("midi note on: %w", err)
	}
	m.held[key] = uint8(number)
	return nil
}

// NoteOff releases the note started for key. Keys without a held note are
// ignored.
func (m *Mirror) NoteOff(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	number, ok := m.held[key]
	if !ok {
		return nil
	}
	delete(m.held, key)
	if err := m.send(midi.NoteOff(m.channel, number)); err != nil {
		return fmt.Errorf("midi note off: %w", err)
	}
	return nil
}

// AllOff releases every held note.
func (m *Mirror) AllOff() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for key, number := range m.held {
		if err := m.send(midi.NoteOff(m.channel, number)); err != nil {
			errs = append(errs, err)
		}
		delete(m.held, key)
	}
	return errors.Join(errs...)
}

// Close releases held notes and shuts the driver down.
func (m *Mirror) Close() error {
	err := m.AllOff()
	if m.closer != nil {
		m.closer()
	}
	return err
}
