package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"padsynth/internal/api"
	"padsynth/internal/mapping"
)

func newKeysCommand(ctx *commandContext) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect and reassign matrix keys",
	}

	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List keys with their wiring, note and live state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Config(cmd.Context())
				if err != nil {
					return err
				}
				if listJSON {
					return writeJSON(cmd, resp)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderKeysTable(resp, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
	addJSONFlag(listCmd, &listJSON)

	setCmd := &cobra.Command{
		Use:   "set <key> <note>",
		Short: "Assign a note to a key (e.g. padsynth keys set MX1 Eb4)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.SetKeyNote(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				resp, err := client.Config(cmd.Context())
				if err != nil {
					return err
				}
				note := args[1]
				if key, ok := resp.Config.FindKey(args[0]); ok {
					note = key.Note
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], note)
				return nil
			})
		},
	}

	keysCmd.AddCommand(listCmd, setCmd)
	return keysCmd
}

func newPlayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "play <key>",
		Short: "Play a key's note once through the daemon's synth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				preview, err := client.TestNote(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%.2f Hz)\n", preview.ID, preview.Note, preview.Frequency)
				return nil
			})
		},
	}
}

func renderKeysTable(resp *api.ConfigResponse, colorize bool) string {
	cfg := resp.Config
	keys := append([]mapping.Key(nil), cfg.Matrix.Keys...)
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].Row != keys[j].Row {
			return keys[i].Row < keys[j].Row
		}
		return cfg.Matrix.Cols[keys[i].Col] < cfg.Matrix.Cols[keys[j].Col]
	})

	rows := make([][]string, 0, len(keys))
	var held []int
	for i, key := range keys {
		pressed := false
		freq := ""
		if resp.State != nil {
			pressed = resp.State.Keys[key.ID]
			if f, ok := resp.State.Frequencies[key.ID]; ok {
				freq = strconv.FormatFloat(f, 'f', 2, 64)
			}
		}
		if pressed {
			held = append(held, i)
		}
		rows = append(rows, []string{
			key.ID,
			fmt.Sprintf("%s (%d)", key.Row, cfg.Matrix.Rows[key.Row]),
			fmt.Sprintf("%s (%d)", key.Col, cfg.Matrix.Cols[key.Col]),
			key.Note,
			freq,
			key.Label,
			yesNo(pressed),
		})
	}
	return renderTable(
		[]string{"Key", "Row", "Col", "Note", "Hz", "Label", "Held"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		colorize, held...,
	)
}
