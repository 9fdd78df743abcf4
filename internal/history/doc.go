// Package history persists mapping revisions and per-key play statistics in
// SQLite.
//
// The Recorder follows the event hub, so nothing on the input path waits
// for the database. Revisions can be listed and restored through the
// controller.
package history
