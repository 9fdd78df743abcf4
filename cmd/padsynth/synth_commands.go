package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"padsynth/internal/api"
	"padsynth/internal/notes"
)

func newSynthCommand(ctx *commandContext) *cobra.Command {
	synthCmd := &cobra.Command{
		Use:   "synth",
		Short: "Show or change synth settings",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show persisted and live synth settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Config(cmd.Context())
				if err != nil {
					return err
				}
				saved := resp.Config.Synth
				live := saved
				if resp.State != nil {
					live = resp.State.Synth
				}
				rows := [][]string{
					{"waveform", saved.Waveform, live.Waveform},
					{"volume", fmt.Sprintf("%.2f", saved.Volume), fmt.Sprintf("%.2f", live.Volume)},
					{"transpose", fmt.Sprintf("%+d", saved.Transpose), fmt.Sprintf("%+d", live.Transpose)},
					{"attack_ms", fmt.Sprint(saved.AttackMS), fmt.Sprint(live.AttackMS)},
					{"release_ms", fmt.Sprint(saved.ReleaseMS), fmt.Sprint(live.ReleaseMS)},
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Setting", "Saved", "Live"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight}, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}

	var (
		waveform  string
		volume    float64
		transpose int
		attackMS  int
		releaseMS int
	)
	setCmd := &cobra.Command{
		Use:     "set",
		Short:   "Change persisted synth settings",
		Example: "  padsynth synth set --waveform saw --volume 0.5",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			fields := map[string]any{}
			if flags.Changed("waveform") {
				fields["waveform"] = waveform
			}
			if flags.Changed("volume") {
				fields["volume"] = volume
			}
			if flags.Changed("transpose") {
				fields["transpose"] = transpose
			}
			if flags.Changed("attack") {
				fields["attack_ms"] = attackMS
			}
			if flags.Changed("release") {
				fields["release_ms"] = releaseMS
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to change; pass at least one setting flag")
			}
			return ctx.withClient(func(client *api.Client) error {
				if err := client.UpdateSynth(cmd.Context(), fields); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Synth updated")
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&waveform, "waveform", "", "Oscillator: "+strings.Join(notes.Waveforms, ", "))
	setCmd.Flags().Float64Var(&volume, "volume", 0, "Output volume 0..1")
	setCmd.Flags().IntVar(&transpose, "transpose", 0, "Transpose in semitones (-24..24)")
	setCmd.Flags().IntVar(&attackMS, "attack", 0, "Attack time in milliseconds")
	setCmd.Flags().IntVar(&releaseMS, "release", 0, "Release time in milliseconds")

	synthCmd.AddCommand(showCmd, setCmd)
	return synthCmd
}
