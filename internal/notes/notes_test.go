package notes_test

import (
	"errors"
	"math"
	"testing"

	"padsynth/internal/notes"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"C4", "C4"},
		{" c4 ", "C4"},
		{"c#4", "C#4"},
		{"C♯5", "C#5"},
		{"Db4", "C#4"},
		{"db4", "C#4"},
		{"E♭3", "D#3"},
		{"Bb2", "A#2"},
		{"H3", "B3"},
		{"Hb3", "A#3"},
		{"A-1", "A-1"},
		{"G+8", "G8"},
		{"Ｃ４", "C4"},
	}
	for _, tc := range tests {
		got, err := notes.Normalize(tc.in)
		if err != nil {
			t.Fatalf("Normalize(%q) returned error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "X4", "Cb4", "Fb4", "E#4", "B#3", "C", "C9", "C-2", "C 4", "C4x", "C--4", "#4"} {
		if _, err := notes.Normalize(in); err == nil {
			t.Fatalf("Normalize(%q) expected error", in)
		} else if !errors.Is(err, notes.ErrInvalidNote) {
			t.Fatalf("Normalize(%q) error %v does not wrap ErrInvalidNote", in, err)
		}
	}
}

func TestFrequency(t *testing.T) {
	tests := []struct {
		note      string
		transpose int
		want      float64
	}{
		{"A4", 0, 440},
		{"A3", 0, 220},
		{"A4", 12, 880},
		{"C4", 0, 261.6256},
		{"C#4", -1, 261.6256},
		{"C-1", 0, 8.1758},
	}
	for _, tc := range tests {
		got, err := notes.Frequency(tc.note, tc.transpose)
		if err != nil {
			t.Fatalf("Frequency(%q) returned error: %v", tc.note, err)
		}
		if math.Abs(got-tc.want) > 0.001 {
			t.Fatalf("Frequency(%q, %d) = %f, want %f", tc.note, tc.transpose, got, tc.want)
		}
	}
	if _, err := notes.Frequency("Q4", 0); err == nil {
		t.Fatal("expected error for unknown pitch class")
	}
}

func TestMIDINumber(t *testing.T) {
	for note, want := range map[string]int{"C4": 60, "A4": 69, "C-1": 0, "G8": 115} {
		got, err := notes.MIDINumber(note)
		if err != nil || got != want {
			t.Fatalf("MIDINumber(%q) = %d, %v; want %d", note, got, err, want)
		}
	}
}

func TestCycleWaveform(t *testing.T) {
	tests := []struct {
		current string
		delta   int
		want    string
	}{
		{"sine", 1, "square"},
		{"triangle", 1, "sine"},
		{"sine", -1, "triangle"},
		{"saw", -6, "sine"},
		{"bogus", 2, "saw"},
	}
	for _, tc := range tests {
		if got := notes.CycleWaveform(tc.current, tc.delta); got != tc.want {
			t.Fatalf("CycleWaveform(%q, %d) = %q, want %q", tc.current, tc.delta, got, tc.want)
		}
	}
	if !notes.ValidWaveform("saw") || notes.ValidWaveform("noise") {
		t.Fatal("ValidWaveform mismatch")
	}
}
