package mapping

import "fmt"

// DefaultSynth returns the synth settings used when a document omits them.
func DefaultSynth() Synth {
	return Synth{
		Waveform:  "sine",
		Volume:    0.7,
		Transpose: 0,
		AttackMS:  5,
		ReleaseMS: 120,
	}
}

// DefaultApp returns the app settings used when a document omits them.
func DefaultApp() App {
	return App{
		WebHost:    "0.0.0.0",
		WebPort:    8080,
		DebounceMS: 12,
	}
}

// Default returns the factory mapping for the 3x6 matrix board with five
// encoders.
func Default() *Config {
	layout := [][2]string{
		{"ROW1", "COL0"}, {"ROW1", "COL1"}, {"ROW1", "COL2"}, {"ROW1", "COL3"},
		{"ROW1", "COL4"}, {"ROW1", "COL5"}, {"ROW2", "COL0"}, {"ROW2", "COL1"},
		{"ROW2", "COL2"}, {"ROW2", "COL3"}, {"ROW2", "COL4"}, {"ROW2", "COL5"},
	}
	keys := make([]Key, 0, len(layout))
	for i, pos := range layout {
		keys = append(keys, Key{ID: fmt.Sprintf("MX%d", i+1), Row: pos[0], Col: pos[1], Note: DefaultNote})
	}

	synth := DefaultSynth()
	synth.ReleaseMS = 180

	return &Config{
		Matrix: Matrix{
			Rows: map[string]int{"ROW0": 2, "ROW1": 3, "ROW2": 14},
			Cols: map[string]int{"COL0": 18, "COL1": 6, "COL2": 5, "COL3": 0, "COL4": 11, "COL5": 4},
			Keys: keys,
		},
		Encoders: []Encoder{
			{Name: "SW1", A: 26, B: 12, Action: ActionTranspose, Step: ptr(1.0)},
			{Name: "SW2", A: 19, B: 1, Action: ActionVolume, Step: ptr(0.05)},
			{Name: "SW3", A: 13, B: 7, Action: ActionWaveform},
			{Name: "SW4", A: 10, B: 22, Action: ActionNone},
			{Name: "SW5", A: 17, B: 9, Action: ActionNone},
		},
		Synth: synth,
		App:   DefaultApp(),
	}
}

func ptr[T any](v T) *T { return &v }
