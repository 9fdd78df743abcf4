package audio

import (
	"sync"
)

type mixVoice struct {
	id    string
	voice *Voice
}

// Mixer sums the active voices into 16-bit little-endian mono PCM. Read
// never blocks and never returns an error; silence is produced when no
// voice is active.
type Mixer struct {
	mu        sync.Mutex
	voices    []mixVoice
	maxVoices int
}

// NewMixer returns a mixer holding at most maxVoices voices.
func NewMixer(maxVoices int) *Mixer {
	if maxVoices <= 0 {
		maxVoices = 16
	}
	return &Mixer{maxVoices: maxVoices}
}

// Add starts v under id, replacing a voice already using that id. When
// the mixer is full the oldest voice is dropped.
func (m *Mixer) Add(id string, v *Voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
	if len(m.voices) >= m.maxVoices {
		m.voices = m.voices[1:]
	}
	m.voices = append(m.voices, mixVoice{id: id, voice: v})
}

// Release starts the release ramp of the voice under id.
func (m *Mixer) Release(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mv := range m.voices {
		if mv.id == id {
			mv.voice.Release()
			return true
		}
	}
	return false
}

// Stop removes every voice.
func (m *Mixer) Stop() {
	m.mu.Lock()
	m.voices = nil
	m.mu.Unlock()
}

// Active returns the ids of voices still sounding.
func (m *Mixer) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.voices))
	for _, mv := range m.voices {
		ids = append(ids, mv.id)
	}
	return ids
}

func (m *Mixer) removeLocked(id string) {
	for i, mv := range m.voices {
		if mv.id == id {
			m.voices = append(m.voices[:i], m.voices[i+1:]...)
			return
		}
	}
}

// Read implements io.Reader.
func (m *Mixer) Read(p []byte) (int, error) {
	samples := len(p) / 2
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < samples; i++ {
		var sum float64
		for idx := 0; idx < len(m.voices); idx++ {
			value, finished := m.voices[idx].voice.Sample()
			sum += value
			if finished {
				m.voices = append(m.voices[:idx], m.voices[idx+1:]...)
				idx--
			}
		}
		sum = min(max(sum, -1), 1)
		v := int16(sum * 32767)
		p[2*i] = byte(v)
		p[2*i+1] = byte(v >> 8)
	}
	return samples * 2, nil
}
