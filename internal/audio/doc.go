// Package audio renders synthesizer voices and plays them through the
// system audio device.
//
// Each key owns at most one voice. Voices are summed by a Mixer, which is
// an io.Reader producing 16-bit little-endian mono PCM; a Backend pulls from
// it. Without a backend the Synth still tracks settings and computes note
// frequencies, it just stays silent.
package audio
