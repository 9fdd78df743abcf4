package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"padsynth/internal/logging"
	"padsynth/internal/mapping"
	"padsynth/internal/notes"
)

// Options configures a Synth. Zero values select defaults.
type Options struct {
	SampleRate   int
	VoiceSeconds float64
	MaxVoices    int
	Backend      Backend
	Logger       *slog.Logger
}

// Synth turns key presses into voices.
type Synth struct {
	mu       sync.Mutex
	settings mapping.Synth
	rate     int
	seconds  float64

	mixer   *Mixer
	backend Backend
	warned  bool
	logger  *slog.Logger
}

// New returns a synth with default settings. When opts.Backend is set the
// mixer is started on it immediately.
func New(opts Options) (*Synth, error) {
	s := &Synth{
		settings: mapping.DefaultSynth(),
		rate:     opts.SampleRate,
		seconds:  opts.VoiceSeconds,
		mixer:    NewMixer(opts.MaxVoices),
		backend:  opts.Backend,
		logger:   logging.NewComponentLogger(opts.Logger, "audio"),
	}
	if s.rate <= 0 {
		s.rate = 44100
	}
	if s.seconds <= 0 {
		s.seconds = 3
	}
	if s.backend != nil {
		if err := s.backend.Start(s.mixer); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Open creates a synth on the platform audio device. When the device cannot
// be opened a warning is logged and a silent synth is returned.
func Open(sampleRate int, voiceSeconds float64, maxVoices int, logger *slog.Logger) *Synth {
	opts := Options{SampleRate: sampleRate, VoiceSeconds: voiceSeconds, MaxVoices: maxVoices, Logger: logger}
	backend, err := NewOtoBackend(sampleRate)
	if err == nil {
		opts.Backend = backend
		s, startErr := New(opts)
		if startErr == nil {
			return s
		}
		_ = backend.Close()
		err = startErr
	}
	opts.Backend = nil
	s, _ := New(opts)
	s.warned = true
	logging.WarnWithContext(s.logger, "audio output unavailable; playback disabled", "audio_unavailable",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the sound device and that no other process holds it"),
		logging.String(logging.FieldImpact, "key presses are broadcast but not heard"),
	)
	return s
}

// Enabled reports whether voices are rendered.
func (s *Synth) Enabled() bool {
	return s.backend != nil
}

// Mixer exposes the PCM source.
func (s *Synth) Mixer() *Mixer {
	return s.mixer
}

// Apply replaces every synth setting. Volume is clamped to 0..1.
func (s *Synth) Apply(settings mapping.Synth) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.Volume = clampVolume(settings.Volume)
	if !notes.ValidWaveform(settings.Waveform) {
		settings.Waveform = s.settings.Waveform
	}
	s.settings = settings
}

// Settings returns the live settings.
func (s *Synth) Settings() mapping.Synth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Synth) SetWaveform(shape string) error {
	if !notes.ValidWaveform(shape) {
		return fmt.Errorf("unsupported waveform %q", shape)
	}
	s.mu.Lock()
	s.settings.Waveform = shape
	s.mu.Unlock()
	return nil
}

func (s *Synth) SetVolume(volume float64) {
	s.mu.Lock()
	s.settings.Volume = clampVolume(volume)
	s.mu.Unlock()
}

func (s *Synth) SetTranspose(semitones int) {
	s.mu.Lock()
	s.settings.Transpose = semitones
	s.mu.Unlock()
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 1)
}

// NoteOn starts note under key, retriggering a voice already sounding for
// that key, and returns the transposed frequency.
func (s *Synth) NoteOn(key, note string) (float64, error) {
	s.mu.Lock()
	settings := s.settings
	s.mu.Unlock()

	freq, err := notes.Frequency(note, settings.Transpose)
	if err != nil {
		return 0, err
	}
	if s.backend == nil {
		s.warnSilent(note, freq)
		return freq, nil
	}
	s.mixer.Add(key, newVoice(voiceParams{
		Frequency:  freq,
		Shape:      settings.Waveform,
		Volume:     settings.Volume,
		SampleRate: s.rate,
		Seconds:    s.seconds,
		AttackMS:   settings.AttackMS,
		ReleaseMS:  settings.ReleaseMS,
	}))
	return freq, nil
}

func (s *Synth) warnSilent(note string, freq float64) {
	s.mu.Lock()
	if s.warned {
		s.mu.Unlock()
		return
	}
	s.warned = true
	s.mu.Unlock()
	s.logger.Info("audio disabled; note not played",
		logging.String("note", note),
		logging.Float64("frequency", freq),
	)
}

// NoteOff releases the voice started for key.
func (s *Synth) NoteOff(key string) {
	if s.backend == nil {
		return
	}
	s.mixer.Release(key)
}

// Preview plays note once for the full voice length.
func (s *Synth) Preview(note string) (float64, error) {
	return s.NoteOn("preview-"+note, note)
}

// StopAll silences every voice.
func (s *Synth) StopAll() {
	s.mixer.Stop()
}

// Close stops playback and releases the device.
func (s *Synth) Close() error {
	s.StopAll()
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
