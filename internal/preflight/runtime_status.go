package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"padsynth/internal/config"
	"padsynth/internal/midiout"
)

// CheckHardwareFromConfig evaluates the GPIO chip when hardware is enabled.
func CheckHardwareFromConfig(cfg *config.Config) Result {
	const name = "GPIO chip"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Hardware.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Hardware.Chip) == "" {
		return Result{Name: name, Detail: "Missing chip name"}
	}
	return CheckGPIOChip(cfg.ChipPath())
}

// CheckMIDIFromConfig evaluates the MIDI mirror port when MIDI is enabled.
func CheckMIDIFromConfig(cfg *config.Config) Result {
	const name = "MIDI output"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.MIDI.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	port := strings.TrimSpace(cfg.MIDI.Port)
	if port == "" {
		return Result{Name: name, Detail: "Missing port name"}
	}
	found, err := midiout.FindPort(port)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: found}
}

// soundDevDir holds the ALSA device nodes oto opens on Linux.
var soundDevDir = "/dev/snd"

// CheckAudioFromConfig verifies the sound devices are accessible when audio
// output is enabled. A failure only silences playback.
func CheckAudioFromConfig(cfg *config.Config) Result {
	const name = "Audio output"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Audio.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	entries, err := os.ReadDir(soundDevDir)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", soundDevDir, err)}
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "pcm") {
			continue
		}
		path := soundDevDir + "/" + entry.Name()
		if unix.Access(path, unix.R_OK|unix.W_OK) == nil {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d Hz)", path, cfg.Audio.SampleRate)}
		}
	}
	return Result{Name: name, Detail: fmt.Sprintf("%s (error: no accessible pcm device; add the user to the audio group)", soundDevDir)}
}
