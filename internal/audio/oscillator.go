package audio

import "math"

const twoPi = 2 * math.Pi

// oscillate returns the value of shape at phase (radians, 0..2π) in -1..1.
// Unknown shapes fall back to a sine.
func oscillate(shape string, phase float64) float64 {
	switch shape {
	case "square":
		if math.Sin(phase) >= 0 {
			return 1
		}
		return -1
	case "saw":
		return 2*(phase/twoPi) - 1
	case "triangle":
		f := phase / twoPi
		return 2*math.Abs(2*(f-math.Floor(f+0.5))) - 1
	default:
		return math.Sin(phase)
	}
}
