package api

import (
	"time"

	"padsynth/internal/events"
	"padsynth/internal/history"
	"padsynth/internal/mapping"
)

// ConfigResponse wraps the mapping document. State is only set by
// GET /api/config.
type ConfigResponse struct {
	Config *mapping.Config `json:"config"`
	State  *events.State   `json:"state,omitempty"`
}

// OKResponse acknowledges a mutation.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PreviewResponse describes a note played through the test endpoint.
type PreviewResponse struct {
	ID        string  `json:"id"`
	Note      string  `json:"note"`
	Frequency float64 `json:"frequency"`
}

// HardwareStatus reports the GPIO runner.
type HardwareStatus struct {
	Enabled      bool      `json:"enabled"`
	Running      bool      `json:"running"`
	Chip         string    `json:"chip"`
	Keys         int       `json:"keys"`
	Encoders     int       `json:"encoders"`
	Restarts     int       `json:"restarts"`
	DroppedSteps int64     `json:"droppedSteps"`
	LastError    string    `json:"lastError,omitempty"`
	LastErrorAt  time.Time `json:"lastErrorAt,omitzero"`
	Hotplug      bool      `json:"hotplug"`
}

// AudioStatus reports the synthesizer output.
type AudioStatus struct {
	Enabled    bool   `json:"enabled"`
	SampleRate int    `json:"sampleRate"`
	Waveform   string `json:"waveform"`
}

// MIDIStatus reports the note mirror.
type MIDIStatus struct {
	Enabled bool   `json:"enabled"`
	Port    string `json:"port,omitempty"`
	Channel int    `json:"channel,omitempty"`
}

// HistoryStatus reports the history database.
type HistoryStatus struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	SessionID     string         `json:"sessionId,omitempty"`
	StartedAt     time.Time      `json:"startedAt,omitzero"`
	ListenAddress string         `json:"listenAddress"`
	LockFilePath  string         `json:"lockFilePath"`
	MappingPath   string         `json:"mappingPath"`
	Clients       int            `json:"clients"`
	LastEvent     uint64         `json:"lastEvent"`
	Hardware      HardwareStatus `json:"hardware"`
	Audio         AudioStatus    `json:"audio"`
	MIDI          MIDIStatus     `json:"midi"`
	History       HistoryStatus  `json:"history"`
}

// LogEvent is a log line delivered by /api/logs.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	KeyID         string            `json:"keyId,omitempty"`
	Encoder       string            `json:"encoder,omitempty"`
	ClientID      string            `json:"clientId,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse is one page of log events; Next is the cursor for the
// following request.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// LogQuery selects log events.
type LogQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	KeyID     string
}

// RevisionsResponse lists stored mapping revisions, newest first.
type RevisionsResponse struct {
	Revisions []history.Revision `json:"revisions"`
}

// RevisionResponse carries one revision including its YAML.
type RevisionResponse struct {
	Revision history.Revision `json:"revision"`
}

// KeyStatsResponse lists per-key press counts.
type KeyStatsResponse struct {
	Keys []history.KeyStat `json:"keys"`
}
