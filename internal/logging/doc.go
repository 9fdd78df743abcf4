// Package logging assembles structured slog loggers for the padsynth daemon
// and CLI.
//
// It owns the console/JSON handlers, output routing, the in-memory stream hub
// behind GET /api/logs, the on-disk event archive, and retention cleanup.
// Context helpers tag log lines with correlation ids, and the input paths log
// key ids and encoder names through the shared Field constants so console and
// JSON output agree on naming. A no-op logger is provided for tests and wiring
// code that cannot fail.
package logging
