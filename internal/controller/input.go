package controller

import (
	"math"

	"padsynth/internal/events"
	"padsynth/internal/logging"
	"padsynth/internal/mapping"
	"padsynth/internal/notes"
)

// Key transition kinds.
const (
	KindPress   = "press"
	KindRelease = "release"
)

const (
	minTranspose = -24
	maxTranspose = 24
	volumeStep   = 0.05
)

// HandleKey records a key transition, starts or releases its voice and
// broadcasts the result. Unknown ids are broadcast without note or
// frequency.
func (c *Controller) HandleKey(kind, id string) events.KeyEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	pressed := kind == KindPress
	c.pressed[id] = pressed
	key, ok := c.keys[id]
	if !ok {
		logging.WarnWithContext(c.logger, "unknown key", "key_unknown",
			logging.KeyID(id),
			logging.String(logging.FieldErrorHint, "add the key to matrix.keys in the mapping file"),
			logging.String(logging.FieldImpact, "the key does not play a note"),
		)
		ev := events.KeyEvent{Kind: kind, ID: id, Label: id}
		c.hub.Publish(events.KeyMessage(ev))
		return ev
	}

	note := key.Note
	ev := events.KeyEvent{Kind: kind, ID: id, Note: &note, Label: key.DisplayLabel()}
	if pressed {
		freq, err := c.player.NoteOn(id, note)
		if err != nil {
			c.logger.Error("cannot play note",
				logging.KeyID(id),
				logging.String("note", note),
				logging.Error(err),
			)
		} else {
			ev.Freq = &freq
			c.freqs[id] = freq
		}
		if c.mirror != nil {
			if err := c.mirror.NoteOn(id, note, c.live.Transpose); err != nil {
				c.mirrorFailedLocked(err)
			} else {
				c.mirrorOKLocked()
			}
		}
	} else {
		c.player.NoteOff(id)
		if freq, err := notes.Frequency(note, c.live.Transpose); err == nil {
			ev.Freq = &freq
		}
		if c.mirror != nil {
			if err := c.mirror.NoteOff(id); err != nil {
				c.mirrorFailedLocked(err)
			}
		}
	}
	c.logger.Debug("key "+kind,
		logging.KeyID(id),
		logging.String("note", note),
	)
	c.hub.Publish(events.KeyMessage(ev))
	return ev
}

// HandleEncoder applies delta detents to the encoder's action and
// broadcasts the result. Live synth changes are not persisted.
func (c *Controller) HandleEncoder(name string, delta int) events.EncoderEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	enc, ok := c.encoders[name]
	if !ok {
		logging.WarnWithContext(c.logger, "unknown encoder", "encoder_unknown",
			logging.Encoder(name),
			logging.String(logging.FieldErrorHint, "add the encoder to the mapping file"),
			logging.String(logging.FieldImpact, "the encoder has no effect"),
		)
		ev := events.EncoderEvent{Name: name, Delta: delta}
		c.hub.Publish(events.EncoderMessage(ev))
		return ev
	}

	var value any
	switch enc.Action {
	case mapping.ActionTranspose:
		step := 1
		if enc.Step != nil {
			step = max(1, int(math.Round(*enc.Step)))
		}
		next := c.live.Transpose + delta*step
		next = clampInt(int(math.Round(clampTo(float64(next), enc))), minTranspose, maxTranspose)
		c.live.Transpose = next
		c.player.SetTranspose(next)
		value = next
	case mapping.ActionVolume:
		step := volumeStep
		if enc.Step != nil {
			step = *enc.Step
		}
		next := c.live.Volume + float64(delta)*step
		next = min(max(clampTo(next, enc), 0), 1)
		next = math.Round(next*1e6) / 1e6
		c.live.Volume = next
		c.player.SetVolume(next)
		value = next
	case mapping.ActionWaveform:
		next := notes.CycleWaveform(c.live.Waveform, delta)
		c.live.Waveform = next
		if err := c.player.SetWaveform(next); err != nil {
			c.logger.Error("cannot set waveform", logging.String("waveform", next), logging.Error(err))
		}
		value = next
	default:
		c.logger.Debug("encoder has no mapped action", logging.Encoder(name))
	}

	c.encState[name] = events.EncoderValue{Action: enc.Action, Value: value, Delta: delta}
	ev := events.EncoderEvent{Name: name, Action: enc.Action, Value: value, Delta: delta}
	c.hub.Publish(events.EncoderMessage(ev))
	return ev
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// clampTo applies the encoder's optional minimum and maximum.
func clampTo(v float64, enc mapping.Encoder) float64 {
	if enc.Minimum != nil {
		v = max(v, *enc.Minimum)
	}
	if enc.Maximum != nil {
		v = min(v, *enc.Maximum)
	}
	return v
}
