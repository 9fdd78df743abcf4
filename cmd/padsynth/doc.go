// Package main hosts the padsynth CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground, starts and
// stops it in the background, and translates the remaining invocations into
// HTTP calls against the daemon's API: key and encoder edits, synth
// settings, test notes, config history, log tailing and a live terminal
// view of key presses.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
