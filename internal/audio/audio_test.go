package audio

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"padsynth/internal/mapping"
)

type fakeBackend struct {
	src     io.Reader
	started int
	closed  bool
}

func (f *fakeBackend) Start(src io.Reader) error {
	f.src = src
	f.started++
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func readSamples(t *testing.T, r io.Reader, n int) []int16 {
	t.Helper()
	buf := make([]byte, n*2)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return out
}

func peak(samples []int16) int {
	p := 0
	for _, s := range samples {
		p = max(p, int(math.Abs(float64(s))))
	}
	return p
}

func TestOscillatorShapes(t *testing.T) {
	tests := []struct {
		shape string
		phase float64
		want  float64
	}{
		{"sine", math.Pi / 2, 1},
		{"square", 0.1, 1},
		{"square", math.Pi + 0.1, -1},
		{"saw", 0, -1},
		{"saw", math.Pi, 0},
		{"triangle", 0, -1},
		{"triangle", math.Pi, 1},
		{"unknown", math.Pi / 2, 1},
	}
	for _, tt := range tests {
		if got := oscillate(tt.shape, tt.phase); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("oscillate(%s, %.3f) = %.4f, want %.4f", tt.shape, tt.phase, got, tt.want)
		}
	}
}

func TestVoiceEnvelope(t *testing.T) {
	v := newVoice(voiceParams{Frequency: 440, Shape: "square", Volume: 1, SampleRate: 1000, Seconds: 1, AttackMS: 10, ReleaseMS: 100})
	if v.total != 1000 || v.attack != 10 || v.release != 100 {
		t.Fatalf("unexpected sizes total=%d attack=%d release=%d", v.total, v.attack, v.release)
	}
	if got := v.envelope(); got != 0 {
		t.Fatalf("expected silent start, got %.2f", got)
	}
	v.pos = 5
	if got := v.envelope(); got != 0.5 {
		t.Fatalf("expected half way through attack, got %.2f", got)
	}
	v.pos = 500
	if got := v.envelope(); got != 1 {
		t.Fatalf("expected sustain, got %.2f", got)
	}
	v.pos = 950
	if got := v.envelope(); got != 0.5 {
		t.Fatalf("expected tail ramp, got %.2f", got)
	}
}

func TestVoiceReleaseEndsEarly(t *testing.T) {
	v := newVoice(voiceParams{Frequency: 100, Shape: "sine", Volume: 1, SampleRate: 1000, Seconds: 3, AttackMS: 0, ReleaseMS: 50})
	for i := 0; i < 100; i++ {
		v.Sample()
	}
	v.Release()
	count := 0
	for {
		count++
		if _, done := v.Sample(); done {
			break
		}
		if count > 1000 {
			t.Fatal("voice did not finish after release")
		}
	}
	if count != 50 {
		t.Fatalf("expected release to take 50 samples, took %d", count)
	}
}

func TestSynthNoteOnStartsVoice(t *testing.T) {
	backend := &fakeBackend{}
	s, err := New(Options{SampleRate: 8000, VoiceSeconds: 0.5, Backend: backend})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if backend.started != 1 || backend.src != s.Mixer() {
		t.Fatal("expected mixer to be started on backend")
	}
	freq, err := s.NoteOn("MX1", "A4")
	if err != nil {
		t.Fatalf("NoteOn: %v", err)
	}
	if freq != 440 {
		t.Fatalf("frequency = %.2f, want 440", freq)
	}
	samples := readSamples(t, backend.src, 400)
	if peak(samples) == 0 {
		t.Fatal("expected audible output")
	}
	if err := s.Close(); err != nil || !backend.closed {
		t.Fatalf("Close: %v closed=%v", err, backend.closed)
	}
}

func TestSynthRetriggerReplacesVoice(t *testing.T) {
	s, _ := New(Options{SampleRate: 8000, Backend: &fakeBackend{}})
	_, _ = s.NoteOn("MX1", "C4")
	_, _ = s.NoteOn("MX1", "E4")
	_, _ = s.NoteOn("MX2", "G4")
	if got := s.Mixer().Active(); len(got) != 2 {
		t.Fatalf("expected two voices, got %v", got)
	}
}

func TestSynthMaxVoicesDropsOldest(t *testing.T) {
	s, _ := New(Options{SampleRate: 8000, MaxVoices: 2, Backend: &fakeBackend{}})
	for _, key := range []string{"a", "b", "c"} {
		_, _ = s.NoteOn(key, "C4")
	}
	got := s.Mixer().Active()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("expected [b c], got %v", got)
	}
}

func TestSynthNoteOffSilencesVoice(t *testing.T) {
	backend := &fakeBackend{}
	s, _ := New(Options{SampleRate: 8000, VoiceSeconds: 3, Backend: backend})
	settings := s.Settings()
	settings.AttackMS, settings.ReleaseMS = 0, 10
	s.Apply(settings)
	_, _ = s.NoteOn("MX1", "A4")
	readSamples(t, backend.src, 100)
	s.NoteOff("MX1")
	readSamples(t, backend.src, 100)
	if len(s.Mixer().Active()) != 0 {
		t.Fatal("expected released voice to finish")
	}
	if peak(readSamples(t, backend.src, 100)) != 0 {
		t.Fatal("expected silence after release")
	}
}

func TestSynthTransposeAndTransposedFrequency(t *testing.T) {
	s, _ := New(Options{})
	s.SetTranspose(12)
	freq, err := s.NoteOn("MX1", "A4")
	if err != nil {
		t.Fatalf("NoteOn: %v", err)
	}
	if freq != 880 {
		t.Fatalf("frequency = %.2f, want 880", freq)
	}
	if s.Enabled() {
		t.Fatal("synth without backend must report disabled")
	}
	if len(s.Mixer().Active()) != 0 {
		t.Fatal("silent synth must not queue voices")
	}
}

func TestSynthRejectsInvalidInput(t *testing.T) {
	s, _ := New(Options{})
	if _, err := s.NoteOn("MX1", "X9"); err == nil {
		t.Fatal("expected invalid note error")
	}
	if err := s.SetWaveform("noise"); err == nil {
		t.Fatal("expected waveform error")
	}
	s.SetVolume(1.7)
	if got := s.Settings().Volume; got != 1 {
		t.Fatalf("volume = %.2f, want clamp to 1", got)
	}
	s.Apply(mapping.Synth{Waveform: "bogus", Volume: -1, AttackMS: 5, ReleaseMS: 100})
	got := s.Settings()
	if got.Waveform != "sine" || got.Volume != 0 {
		t.Fatalf("unexpected settings after Apply: %+v", got)
	}
}
