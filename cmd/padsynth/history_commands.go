package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"padsynth/internal/api"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse mapping revisions and key statistics",
	}

	var (
		limit       int
		configsJSON bool
	)
	configsCmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"configs"},
		Short:   "List stored mapping revisions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Revisions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if configsJSON {
					return writeJSON(cmd, resp.Revisions)
				}
				if len(resp.Revisions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No revisions recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Revisions))
				for _, rev := range resp.Revisions {
					rows = append(rows, []string{
						strconv.FormatInt(rev.ID, 10),
						rev.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						shortDigest(rev.Digest),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "Created", "Digest"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft}, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
	configsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum revisions to list")
	addJSONFlag(configsCmd, &configsJSON)

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the YAML of a stored mapping revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRevisionID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Revision(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := resp.Revision.YAML
				if !strings.HasSuffix(out, "\n") {
					out += "\n"
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	restoreCmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Apply a stored revision as the active mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRevisionID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				cfg, err := client.Restore(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored revision %d (%d keys, %d encoders)\n",
					id, len(cfg.Matrix.Keys), len(cfg.Encoders))
				return nil
			})
		},
	}

	var keysJSON bool
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Show press counts per key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.KeyStats(cmd.Context())
				if err != nil {
					return err
				}
				if keysJSON {
					return writeJSON(cmd, resp.Keys)
				}
				if len(resp.Keys) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No key presses recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Keys))
				for _, stat := range resp.Keys {
					last := "-"
					if !stat.LastPressedAt.IsZero() {
						last = stat.LastPressedAt.Local().Format("2006-01-02 15:04:05")
					}
					note := stat.LastNote
					if note == "" {
						note = "-"
					}
					rows = append(rows, []string{stat.KeyID, strconv.FormatInt(stat.Presses, 10), note, last})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Key", "Presses", "Last note", "Last pressed"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
	addJSONFlag(keysCmd, &keysJSON)

	historyCmd.AddCommand(configsCmd, showCmd, restoreCmd, keysCmd)
	return historyCmd
}

func parseRevisionID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid revision id %q", raw)
	}
	return id, nil
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
