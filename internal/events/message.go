// Package events defines the messages broadcast to console clients and the
// hub that buffers them.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"padsynth/internal/mapping"
)

// Message types.
const (
	TypeState  = "state"
	TypeConfig = "config"
	TypeKey    = "key"
	TypeEnc    = "enc"
)

// KeyEvent describes a key press or release. Note and Freq are nil for keys
// missing from the mapping.
type KeyEvent struct {
	Kind  string   `json:"kind"`
	ID    string   `json:"id"`
	Note  *string  `json:"note"`
	Freq  *float64 `json:"freq"`
	Label string   `json:"label"`
}

// EncoderEvent describes an encoder movement. Value is nil for unknown
// encoders and for encoders without an action.
type EncoderEvent struct {
	Name   string `json:"name"`
	Action string `json:"action,omitempty"`
	Value  any    `json:"value"`
	Delta  int    `json:"delta"`
}

// EncoderValue is the last movement recorded for an encoder.
type EncoderValue struct {
	Action string `json:"action"`
	Value  any    `json:"value"`
	Delta  int    `json:"delta"`
}

// State is a snapshot of the runtime state.
type State struct {
	Keys        map[string]bool         `json:"keys"`
	Frequencies map[string]float64      `json:"frequencies"`
	Encoders    map[string]EncoderValue `json:"encoders"`
	Synth       mapping.Synth           `json:"synth"`
}

// Message is one broadcast. Exactly one payload matching Type is set.
type Message struct {
	Seq    uint64
	Time   time.Time
	Type   string
	Key    *KeyEvent
	Enc    *EncoderEvent
	State  *State
	Config *mapping.Config
}

func KeyMessage(ev KeyEvent) Message { return Message{Type: TypeKey, Key: &ev} }

func EncoderMessage(ev EncoderEvent) Message { return Message{Type: TypeEnc, Enc: &ev} }

func ConfigMessage(cfg *mapping.Config) Message { return Message{Type: TypeConfig, Config: cfg} }

func StateMessage(state State, cfg *mapping.Config) Message {
	return Message{Type: TypeState, State: &state, Config: cfg}
}

type header struct {
	Seq  uint64    `json:"seq,omitempty"`
	Type string    `json:"type"`
	Time time.Time `json:"ts"`
}

// MarshalJSON flattens the payload next to the type tag, e.g.
// {"type":"key","kind":"press","id":"MX1",...}.
func (m Message) MarshalJSON() ([]byte, error) {
	h := header{Seq: m.Seq, Type: m.Type, Time: m.Time}
	switch m.Type {
	case TypeKey:
		if m.Key == nil {
			return nil, fmt.Errorf("key message without payload")
		}
		return json.Marshal(struct {
			header
			*KeyEvent
		}{h, m.Key})
	case TypeEnc:
		if m.Enc == nil {
			return nil, fmt.Errorf("enc message without payload")
		}
		return json.Marshal(struct {
			header
			*EncoderEvent
		}{h, m.Enc})
	case TypeConfig:
		return json.Marshal(struct {
			header
			Config *mapping.Config `json:"config"`
		}{h, m.Config})
	case TypeState:
		return json.Marshal(struct {
			header
			State  *State          `json:"state"`
			Config *mapping.Config `json:"config"`
		}{h, m.State, m.Config})
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		header
		Kind   string          `json:"kind"`
		ID     string          `json:"id"`
		Note   *string         `json:"note"`
		Freq   *float64        `json:"freq"`
		Label  string          `json:"label"`
		Name   string          `json:"name"`
		Action string          `json:"action"`
		Value  any             `json:"value"`
		Delta  int             `json:"delta"`
		State  *State          `json:"state"`
		Config *mapping.Config `json:"config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message{Seq: raw.Seq, Time: raw.Time, Type: raw.Type}
	switch raw.Type {
	case TypeKey:
		m.Key = &KeyEvent{Kind: raw.Kind, ID: raw.ID, Note: raw.Note, Freq: raw.Freq, Label: raw.Label}
	case TypeEnc:
		m.Enc = &EncoderEvent{Name: raw.Name, Action: raw.Action, Value: raw.Value, Delta: raw.Delta}
	case TypeConfig:
		m.Config = raw.Config
	case TypeState:
		m.State = raw.State
		m.Config = raw.Config
	default:
		return fmt.Errorf("unknown message type %q", raw.Type)
	}
	return nil
}
