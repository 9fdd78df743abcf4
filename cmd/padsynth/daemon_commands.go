package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"padsynth/internal/api"
	"padsynth/internal/config"
	"padsynth/internal/daemonctl"
	"padsynth/internal/preflight"
)

const (
	stopGracePeriod  = 5 * time.Second
	startWaitTimeout = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startNoHardware bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the padsynth daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := startDaemon(cmd.Context(), ctx, startNoHardware)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startNoHardware, "no-hardware", false, "Serve the console and synth without scanning GPIO")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the padsynth daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopDaemon(cmd.OutOrStdout(), ctx.configValue())
		},
	}

	var restartNoHardware bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the padsynth daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if err := stopDaemon(stdout, ctx.configValue()); err != nil {
				return err
			}
			result, err := startDaemon(cmd.Context(), ctx, restartNoHardware)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.PID)
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartNoHardware, "no-hardware", false, "Serve the console and synth without scanning GPIO")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, hardware and readiness status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			reqCtx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
			defer cancel()
			status, statusErr := client.Status(reqCtx)
			if statusJSON {
				if statusErr != nil {
					return wrapDialError(statusErr, client.BaseURL())
				}
				return writeJSON(cmd, status)
			}
			if statusErr != nil {
				status = nil
			}
			renderStatus(cmd.OutOrStdout(), cmd.Context(), cfg, status, client.BaseURL())
			return nil
		},
	}
	addJSONFlag(statusCmd, &statusJSON)

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func startDaemon(cmdCtx context.Context, ctx *commandContext, noHardware bool) (daemonctl.StartResult, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return daemonctl.StartResult{}, err
	}
	exe, err := daemonExecutable()
	if err != nil {
		return daemonctl.StartResult{}, err
	}
	client, err := ctx.apiClient()
	if err != nil {
		return daemonctl.StartResult{}, err
	}
	return daemonctl.EnsureStarted(cmdCtx, cfg.PIDPath(), exe,
		daemonctl.LaunchOptions{ConfigPath: ctx.configPath(), NoHardware: noHardware},
		client, startWaitTimeout)
}

func stopDaemon(stdout io.Writer, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("configuration not available")
	}
	result, err := daemonctl.StopAndTerminate(cfg.PIDPath(), cfg.LockPath(), stopGracePeriod)
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(stdout, "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	if result.ForcedKill {
		fmt.Fprintf(stdout, "Daemon did not exit in %s; killed pid %d\n", stopGracePeriod, result.PID)
	}
	fmt.Fprintln(stdout, "Daemon stopped")
	return nil
}

func renderStatus(stdout io.Writer, ctx context.Context, cfg *config.Config, status *api.DaemonStatus, base string) {
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if status == nil {
		fmt.Fprintln(stdout, renderStatusLine("padsynth", statusError, "Not running ("+base+")", colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("padsynth", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
		fmt.Fprintln(stdout, renderStatusLine("Console", statusInfo, "http://"+status.ListenAddress, colorize))
		fmt.Fprintln(stdout, renderStatusLine("Clients", statusInfo, fmt.Sprintf("%d connected", status.Clients), colorize))
		if !status.StartedAt.IsZero() {
			fmt.Fprintln(stdout, renderStatusLine("Uptime", statusInfo, time.Since(status.StartedAt).Round(time.Second).String(), colorize))
		}
		fmt.Fprintln(stdout, hardwareStatusLine(status.Hardware, colorize))
		fmt.Fprintln(stdout, renderStatusLine("Hotplug", statusInfo, yesNo(status.Hardware.Hotplug), colorize))
		audio := "Silent"
		audioKind := statusWarn
		if status.Audio.Enabled {
			audio = fmt.Sprintf("%d Hz, %s", status.Audio.SampleRate, status.Audio.Waveform)
			audioKind = statusOK
		}
		fmt.Fprintln(stdout, renderStatusLine("Audio", audioKind, audio, colorize))
		if status.MIDI.Enabled {
			fmt.Fprintln(stdout, renderStatusLine("MIDI", statusOK, fmt.Sprintf("%s (channel %d)", status.MIDI.Port, status.MIDI.Channel), colorize))
		}
		history := "Disabled"
		if status.History.Enabled {
			history = status.History.Path
		}
		fmt.Fprintln(stdout, renderStatusLine("History", statusInfo, history, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Readiness", colorize) {
		fmt.Fprintln(stdout, line)
	}
	opts := preflight.Options{}
	if status == nil && cfg != nil {
		if addr := statusListenAddress(cfg); addr != "" {
			opts.ListenAddress = addr
		}
	}
	for _, result := range preflight.RunAll(ctx, cfg, opts) {
		optional := result.Name == "MIDI output" || result.Name == "Audio output" || result.Name == "Web console"
		fmt.Fprintln(stdout, preflightLine(result, optional, colorize))
	}
}

func hardwareStatusLine(hw api.HardwareStatus, colorize bool) string {
	switch {
	case !hw.Enabled:
		return renderStatusLine("Hardware", statusInfo, "Disabled", colorize)
	case hw.Running:
		return renderStatusLine("Hardware", statusOK,
			fmt.Sprintf("%s scanning %d keys, %d encoders (restarts %d)", hw.Chip, hw.Keys, hw.Encoders, hw.Restarts), colorize)
	case strings.TrimSpace(hw.LastError) != "":
		return renderStatusLine("Hardware", statusError, fmt.Sprintf("%s: %s", hw.Chip, hw.LastError), colorize)
	default:
		return renderStatusLine("Hardware", statusWarn, hw.Chip+" starting", colorize)
	}
}

// statusListenAddress is the address the daemon would bind.
func statusListenAddress(cfg *config.Config) string {
	if strings.TrimSpace(cfg.API.Bind) != "" {
		return cfg.API.Bind
	}
	return ""
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}
