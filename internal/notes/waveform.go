package notes

import "slices"

// Waveforms lists the oscillator shapes in encoder cycling order.
var Waveforms = []string{"sine", "square", "saw", "triangle"}

// ValidWaveform reports whether name is a supported oscillator shape.
func ValidWaveform(name string) bool {
	return slices.Contains(Waveforms, name)
}

// CycleWaveform steps delta positions through Waveforms from current,
// wrapping in both directions. Unknown names start from the first entry.
func CycleWaveform(current string, delta int) string {
	idx := max(slices.Index(Waveforms, current), 0)
	n := len(Waveforms)
	return Waveforms[((idx+delta)%n+n)%n]
}
