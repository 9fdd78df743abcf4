package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"padsynth/internal/api"
)

func newEncodersCommand(ctx *commandContext) *cobra.Command {
	encCmd := &cobra.Command{
		Use:     "encoders",
		Aliases: []string{"enc"},
		Short:   "Inspect and reassign rotary encoders",
	}

	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List encoders with their action and last value",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Config(cmd.Context())
				if err != nil {
					return err
				}
				if listJSON {
					return writeJSON(cmd, resp.Config.Encoders)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderEncodersTable(resp, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
	addJSONFlag(listCmd, &listJSON)

	var (
		action   string
		step     float64
		minimum  float64
		maximum  float64
		clearMin bool
		clearMax bool
	)
	setCmd := &cobra.Command{
		Use:   "set <encoder>",
		Short: "Change an encoder's action, step or bounds",
		Example: "  padsynth encoders set SW4 --action volume --step 0.05\n" +
			"  padsynth encoders set SW1 --min -12 --max 12",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			fields := map[string]any{}
			if flags.Changed("action") {
				fields["action"] = action
			}
			if flags.Changed("step") {
				fields["step"] = step
			}
			switch {
			case clearMin:
				fields["minimum"] = nil
			case flags.Changed("min"):
				fields["minimum"] = minimum
			}
			switch {
			case clearMax:
				fields["maximum"] = nil
			case flags.Changed("max"):
				fields["maximum"] = maximum
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to change; pass --action, --step, --min or --max")
			}
			return ctx.withClient(func(client *api.Client) error {
				if err := client.UpdateEncoder(cmd.Context(), args[0], fields); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Encoder %s updated\n", args[0])
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&action, "action", "", "Action: none, transpose, volume or waveform")
	setCmd.Flags().Float64Var(&step, "step", 0, "Amount applied per detent")
	setCmd.Flags().Float64Var(&minimum, "min", 0, "Lower bound for the controlled value")
	setCmd.Flags().Float64Var(&maximum, "max", 0, "Upper bound for the controlled value")
	setCmd.Flags().BoolVar(&clearMin, "clear-min", false, "Remove the lower bound")
	setCmd.Flags().BoolVar(&clearMax, "clear-max", false, "Remove the upper bound")

	encCmd.AddCommand(listCmd, setCmd)
	return encCmd
}

func renderEncodersTable(resp *api.ConfigResponse, colorize bool) string {
	rows := make([][]string, 0, len(resp.Config.Encoders))
	for _, enc := range resp.Config.Encoders {
		last := ""
		if resp.State != nil {
			if v, ok := resp.State.Encoders[enc.Name]; ok {
				last = fmt.Sprintf("%v (%+d)", v.Value, v.Delta)
			}
		}
		rows = append(rows, []string{
			enc.Name,
			strconv.Itoa(enc.A),
			strconv.Itoa(enc.B),
			enc.Action,
			optionalNumber(enc.Step),
			optionalNumber(enc.Minimum),
			optionalNumber(enc.Maximum),
			last,
		})
	}
	return renderTable(
		[]string{"Encoder", "A", "B", "Action", "Step", "Min", "Max", "Last"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft},
		colorize,
	)
}

func optionalNumber(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

