package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	runLogPrefix    = "padsynth-"
	runLogExt       = ".log"
	runEventsExt    = ".events"
	runIDTimeLayout = "20060102T150405.000Z"
)

// RunLogs names the files one daemon run writes under the log directory:
// padsynth-<run>.log for the handler output and padsynth-<run>.events for
// the archived stream.
type RunLogs struct {
	Dir   string
	RunID string
}

// NewRunLogs stamps a run with started in UTC.
func NewRunLogs(dir string, started time.Time) RunLogs {
	return RunLogs{Dir: dir, RunID: started.UTC().Format(runIDTimeLayout)}
}

func (r RunLogs) LogPath() string    { return r.path(runLogExt) }
func (r RunLogs) EventsPath() string { return r.path(runEventsExt) }

func (r RunLogs) path(ext string) string {
	return filepath.Join(r.Dir, runLogPrefix+r.RunID+ext)
}

// runIDOf extracts the run id from a run log or events file name.
func runIDOf(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, runLogPrefix)
	if !ok {
		return "", false
	}
	for _, ext := range []string{runLogExt, runEventsExt} {
		if id, ok := strings.CutSuffix(rest, ext); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// PruneRuns removes log and events files of earlier runs last modified
// more than days before now. The current run and the padsynth.log pointer
// are never touched; days <= 0 keeps everything. It returns the number of
// files removed.
func PruneRuns(logger *slog.Logger, current RunLogs, days int, now time.Time) int {
	if days <= 0 || strings.TrimSpace(current.Dir) == "" {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	entries, err := os.ReadDir(current.Dir)
	if err != nil {
		return 0
	}
	cutoff := now.AddDate(0, 0, -days)

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		runID, ok := runIDOf(entry.Name())
		if !ok || runID == current.RunID {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(current.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "cannot prune old run log", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of paths.log_dir"),
				String(FieldImpact, "the old run log stays on disk"),
			)
			continue
		}
		removed++
		logger.Debug("run log pruned", String("path", path), String("run_id", runID))
	}
	if removed > 0 {
		logger.Info("pruned old run logs",
			Int("files", removed),
			Int("retention_days", days),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}
