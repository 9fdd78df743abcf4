package mapping

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Encoder actions.
const (
	ActionNone      = "none"
	ActionTranspose = "transpose"
	ActionVolume    = "volume"
	ActionWaveform  = "waveform"
)

// Actions lists every supported encoder action.
var Actions = []string{ActionNone, ActionTranspose, ActionVolume, ActionWaveform}

// DefaultNote is assigned to keys that omit a note.
const DefaultNote = "C4"

// Key maps one matrix intersection to a note.
type Key struct {
	ID    string `yaml:"id" json:"id"`
	Row   string `yaml:"row" json:"row"`
	Col   string `yaml:"col" json:"col"`
	Note  string `yaml:"note" json:"note"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// DisplayLabel is the label shown in the console, falling back to the id.
func (k Key) DisplayLabel() string {
	if k.Label != "" {
		return k.Label
	}
	return k.ID
}

type plainKey Key

func (k *Key) UnmarshalYAML(node *yaml.Node) error {
	p := plainKey{Note: DefaultNote}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*k = Key(p)
	return nil
}

func (k *Key) UnmarshalJSON(data []byte) error {
	p := plainKey{Note: DefaultNote}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*k = Key(p)
	return nil
}

// Encoder maps a quadrature encoder's A/B lines to an action.
type Encoder struct {
	Name    string   `yaml:"name" json:"name"`
	A       int      `yaml:"A" json:"A"`
	B       int      `yaml:"B" json:"B"`
	Action  string   `yaml:"action" json:"action"`
	Step    *float64 `yaml:"step,omitempty" json:"step"`
	Minimum *float64 `yaml:"minimum,omitempty" json:"minimum"`
	Maximum *float64 `yaml:"maximum,omitempty" json:"maximum"`
}

type plainEncoder Encoder

func (e *Encoder) UnmarshalYAML(node *yaml.Node) error {
	p := plainEncoder{Action: ActionNone}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = Encoder(p)
	return nil
}

func (e *Encoder) UnmarshalJSON(data []byte) error {
	p := plainEncoder{Action: ActionNone}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Encoder(p)
	return nil
}

// Matrix describes row/column line offsets and the keys on their intersections.
type Matrix struct {
	Rows map[string]int `yaml:"rows" json:"rows"`
	Cols map[string]int `yaml:"cols" json:"cols"`
	Keys []Key          `yaml:"keys" json:"keys"`
}

// Synth holds persisted oscillator and envelope settings.
type Synth struct {
	Waveform  string  `yaml:"waveform" json:"waveform"`
	Volume    float64 `yaml:"volume" json:"volume"`
	Transpose int     `yaml:"transpose" json:"transpose"`
	AttackMS  int     `yaml:"attack_ms" json:"attack_ms"`
	ReleaseMS int     `yaml:"release_ms" json:"release_ms"`
}

// App holds console and scanner settings.
type App struct {
	WebHost    string `yaml:"web_host" json:"web_host"`
	WebPort    int    `yaml:"web_port" json:"web_port"`
	DebounceMS int    `yaml:"debounce_ms" json:"debounce_ms"`
}

// Config is the complete mapping document.
type Config struct {
	Matrix   Matrix    `yaml:"matrix" json:"matrix"`
	Encoders []Encoder `yaml:"encoders" json:"encoders"`
	Synth    Synth     `yaml:"synth" json:"synth"`
	App      App       `yaml:"app" json:"app"`
}

// FindKey returns the key with the given id.
func (c *Config) FindKey(id string) (*Key, bool) {
	for i := range c.Matrix.Keys {
		if c.Matrix.Keys[i].ID == id {
			return &c.Matrix.Keys[i], true
		}
	}
	return nil, false
}

// FindEncoder returns the encoder with the given name.
func (c *Config) FindEncoder(name string) (*Encoder, bool) {
	for i := range c.Encoders {
		if c.Encoders[i].Name == name {
			return &c.Encoders[i], true
		}
	}
	return nil, false
}
