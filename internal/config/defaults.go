package config

const (
	defaultStateDir          = "~/.local/share/padsynth"
	defaultLogDir            = "~/.local/share/padsynth/logs"
	defaultMappingFile       = "~/.config/padsynth/mapping.yaml"
	defaultGPIOChip          = "gpiochip0"
	defaultScanIntervalMS    = 2
	defaultSettleMicros      = 200
	defaultSampleRate        = 44100
	defaultVoiceSeconds      = 3.0
	defaultMaxVoices         = 16
	defaultMIDIChannel       = 1
	defaultMIDIVelocity      = 100
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
	defaultHistoryRevisions  = 200
	defaultWebsocketPingSecs = 20
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			MappingFile: defaultMappingFile,
		},
		API: API{
			PingIntervalSeconds: defaultWebsocketPingSecs,
		},
		Hardware: Hardware{
			Enabled:        true,
			Chip:           defaultGPIOChip,
			ScanIntervalMS: defaultScanIntervalMS,
			SettleMicros:   defaultSettleMicros,
			Hotplug:        true,
		},
		Audio: Audio{
			Enabled:      true,
			SampleRate:   defaultSampleRate,
			VoiceSeconds: defaultVoiceSeconds,
			MaxVoices:    defaultMaxVoices,
		},
		MIDI: MIDI{
			Channel:  defaultMIDIChannel,
			Velocity: defaultMIDIVelocity,
		},
		History: History{
			Enabled:      true,
			MaxRevisions: defaultHistoryRevisions,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
