// Package daemon coordinates the long-running padsynth process.
//
// It ties the controller to the hardware runner (GPIO chip, matrix scanner
// and encoder reader), the history recorder, the udev hotplug monitor and
// the HTTP/websocket API into one lifecycle with flock-based locking to
// prevent multiple instances.
//
// Keep orchestration here: scanning, decoding and synthesis live in their
// own packages while the daemon focuses on startup, shutdown, restarts and
// the web surface.
package daemon
