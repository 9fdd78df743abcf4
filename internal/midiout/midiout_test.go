package midiout

import (
	"errors"
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

type recorder struct {
	msgs []midi.Message
	fail bool
}

func (r *recorder) send(msg midi.Message) error {
	if r.fail {
		return errors.New("port gone")
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestMirrorNoteOnOff(t *testing.T) {
	rec := &recorder{}
	m := New(rec.send, 2, 100, nil)

	if err := m.NoteOn("MX1", "C4", 12); err != nil {
		t.Fatalf("NoteOn: %v", err)
	}
	if err := m.NoteOff("MX1"); err != nil {
		t.Fatalf("NoteOff: %v", err)
	}
	if len(rec.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(rec.msgs))
	}
	var ch, key, vel uint8
	if !rec.msgs[0].GetNoteStart(&ch, &key, &vel) {
		t.Fatalf("first message is not a note-on: %v", rec.msgs[0])
	}
	if ch != 1 || key != 72 || vel != 100 {
		t.Fatalf("note-on ch=%d key=%d vel=%d", ch, key, vel)
	}
	if !rec.msgs[1].GetNoteEnd(&ch, &key) || key != 72 {
		t.Fatalf("second message is not the matching note-off: %v", rec.msgs[1])
	}
}

func TestMirrorRetriggerReleasesPreviousNote(t *testing.T) {
	rec := &recorder{}
	m := New(rec.send, 1, 90, nil)
	_ = m.NoteOn("MX1", "C4", 0)
	_ = m.NoteOn("MX1", "D4", 0)
	if len(rec.msgs) != 3 {
		t.Fatalf("expected on, off, on; got %d messages", len(rec.msgs))
	}
	var ch, key uint8
	if !rec.msgs[1].GetNoteEnd(&ch, &key) || key != 60 {
		t.Fatalf("expected note-off for 60, got %v", rec.msgs[1])
	}
}

func TestMirrorIgnoresUnheldRelease(t *testing.T) {
	rec := &recorder{}
	m := New(rec.send, 1, 90, nil)
	if err := m.NoteOff("MX9"); err != nil {
		t.Fatalf("NoteOff: %v", err)
	}
	if len(rec.msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(rec.msgs))
	}
}

func TestMirrorRejectsOutOfRange(t *testing.T) {
	m := New((&recorder{}).send, 1, 90, nil)
	if err := m.NoteOn("MX1", "G8", 24); err == nil {
		t.Fatal("expected range error")
	}
	if err := m.NoteOn("MX1", "nope", 0); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMirrorAllOff(t *testing.T) {
	rec := &recorder{}
	m := New(rec.send, 1, 90, nil)
	_ = m.NoteOn("MX1", "C4", 0)
	_ = m.NoteOn("MX2", "E4", 0)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(rec.msgs) != 4 {
		t.Fatalf("expected two note-offs after close, got %d messages", len(rec.msgs))
	}
	rec.fail = true
	if err := m.NoteOn("MX1", "C4", 0); err == nil {
		t.Fatal("expected send failure to surface")
	}
}
