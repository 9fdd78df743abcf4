package preflight

import (
	"context"

	"padsynth/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options adjusts RunAll for the caller.
type Options struct {
	// ListenAddress, when set, is probed for availability. The CLI leaves it
	// empty while a daemon already owns the port.
	ListenAddress string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckMappingFile(cfg.Paths.MappingFile),
		CheckHardwareFromConfig(cfg),
		CheckAudioFromConfig(cfg),
		CheckMIDIFromConfig(cfg),
	}
	if opts.ListenAddress != "" {
		results = append(results, CheckListenAddress(ctx, opts.ListenAddress))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
