// Package mapping owns the controller mapping document: matrix wiring, key
// notes, encoder actions, synth settings and app settings.
//
// The document is YAML on disk and JSON on the wire. Store serializes access,
// validates every save, and writes atomically so a crash never leaves a
// half-written file behind. Decoding always starts from defaults so omitted
// sections and fields take their documented values.
package mapping
