// Package preflight provides readiness checks for the hardware, devices and
// filesystem paths that padsynth depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunAll results at startup so a missing chip or an
//     unwritable state directory shows up before the first key press.
//   - The CLI "padsynth status" command renders the same results next to
//     the live daemon status.
//
// Each check is gated by its config toggle; disabled features report
// "Disabled" and pass.
package preflight
