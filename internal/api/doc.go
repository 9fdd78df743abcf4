// Package api defines the wire-format types of the padsynth HTTP API and a
// small client used by the CLI.
//
// # Key Types
//
// ConfigResponse: the mapping document, optionally with the live state.
//
// DaemonStatus: runtime information (hardware runner, audio, MIDI, history,
// connected console clients).
//
// LogEvent/LogStreamResponse: structured log payloads for live tailing.
//
// RevisionsResponse/KeyStatsResponse: history database views.
//
// # Design Notes
//
// Status and log DTOs use camelCase JSON tags for JavaScript consumers. The
// mapping document and event messages keep the snake_case keys of the YAML
// file so the console can send them back unchanged. Errors are always
// {"error": "..."} and surface in the client as *Error.
package api
