package main

import (
	"github.com/spf13/cobra"

	"padsynth/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var noHardware bool
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the padsynth daemon in the foreground",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{NoHardware: noHardware})
		},
	}
	cmd.Flags().BoolVar(&noHardware, "no-hardware", false, "Serve the console and synth without scanning GPIO")
	return cmd
}
