// Package notes parses note names and converts them to MIDI numbers and
// frequencies.
//
// Canonical note names use sharps and a signed octave: C4, C#4, A#-1.
package notes

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// A4 is the reference pitch in Hz.
const A4 = 440.0

const (
	MinOctave = -1
	MaxOctave = 8
)

// PitchClasses lists the twelve canonical pitch names starting at C.
var PitchClasses = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatToSharp = map[string]string{
	"Db": "C#",
	"Eb": "D#",
	"Gb": "F#",
	"Ab": "G#",
	"Bb": "A#",
}

// ErrInvalidNote is wrapped by every parse failure.
var ErrInvalidNote = errors.New("invalid note")

// Normalize turns loosely written input such as "db4", "H3" or "C♯5" into
// the canonical sharp spelling. It rejects empty input, pitch classes without
// a canonical name (Cb, E#) and octaves outside -1..8.
func Normalize(raw string) (string, error) {
	text := strings.TrimSpace(norm.NFKC.String(raw))
	if text == "" {
		return "", fmt.Errorf("%w: note must not be empty", ErrInvalidNote)
	}

	head, size := utf8.DecodeRuneInString(text)
	rest := text[size:]
	pitch := string(unicode.ToUpper(head))
	if pitch == "H" {
		pitch = "B"
	}

	accidental := ""
	if r, n := utf8.DecodeRuneInString(rest); n > 0 {
		switch r {
		case '#', '♯':
			accidental = "#"
			rest = rest[n:]
		case 'b', '♭':
			accidental = "b"
			rest = rest[n:]
		}
	}
	pitch += accidental
	if sharp, ok := flatToSharp[pitch]; ok {
		pitch = sharp
	}
	if !slices.Contains(PitchClasses, pitch) {
		return "", fmt.Errorf("%w: unsupported pitch class %q", ErrInvalidNote, pitch)
	}

	octave, err := parseOctave(rest)
	if err != nil {
		return "", err
	}
	return pitch + strconv.Itoa(octave), nil
}

// Parse splits a canonical note into its pitch index (0 = C) and octave.
func Parse(note string) (int, int, error) {
	text := strings.TrimSpace(note)
	split := strings.IndexFunc(text, func(r rune) bool {
		return unicode.IsDigit(r) || r == '-' || r == '+'
	})
	if split <= 0 {
		return 0, 0, fmt.Errorf("%w: missing octave in %q", ErrInvalidNote, note)
	}
	index := slices.Index(PitchClasses, text[:split])
	if index < 0 {
		return 0, 0, fmt.Errorf("%w: unknown pitch class %q", ErrInvalidNote, text[:split])
	}
	octave, err := strconv.Atoi(text[split:])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: octave must be an integer", ErrInvalidNote)
	}
	return index, octave, nil
}

// MIDINumber returns the MIDI note number of a canonical note (C4 = 60).
func MIDINumber(note string) (int, error) {
	index, octave, err := Parse(note)
	if err != nil {
		return 0, err
	}
	return index + (octave+1)*12, nil
}

// Frequency returns the equal-tempered frequency of note shifted by
// transpose semitones.
func Frequency(note string, transpose int) (float64, error) {
	midi, err := MIDINumber(note)
	if err != nil {
		return 0, err
	}
	return MIDIFrequency(midi + transpose), nil
}

// MIDIFrequency returns the frequency of a MIDI note number.
func MIDIFrequency(midi int) float64 {
	return A4 * math.Pow(2, float64(midi-69)/12)
}

func parseOctave(text string) (int, error) {
	digits := strings.TrimLeft(text, "+-")
	if digits == "" || strings.TrimFunc(digits, func(r rune) bool { return r >= '0' && r <= '9' }) != "" {
		return 0, fmt.Errorf("%w: octave must be an integer", ErrInvalidNote)
	}
	octave, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: octave must be an integer", ErrInvalidNote)
	}
	if octave < MinOctave || octave > MaxOctave {
		return 0, fmt.Errorf("%w: octave %d out of supported range (%d..%d)", ErrInvalidNote, octave, MinOctave, MaxOctave)
	}
	return octave, nil
}
