package main

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"padsynth/internal/api"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow    bool
		lines     int
		component string
		keyID     string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		Example: "  padsynth logs -n 50\n" +
			"  padsynth logs -f --component hardware\n" +
			"  padsynth logs --key MX1",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				query := api.LogQuery{
					Limit:     lines,
					Tail:      true,
					Component: strings.TrimSpace(component),
					KeyID:     strings.TrimSpace(keyID),
				}
				if query.Limit <= 0 {
					query.Limit = 200
				}
				return streamLogs(cmd, client, query, follow)
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for the buffer size)")
	cmd.Flags().StringVar(&component, "component", "", "Only show events from this component")
	cmd.Flags().StringVar(&keyID, "key", "", "Only show events for this key id")
	return cmd
}

// streamLogs prints the tail of the log buffer, then long-polls for new
// events when follow is set. Client timeouts during a long poll just mean
// nothing was logged.
func streamLogs(cmd *cobra.Command, client *api.Client, query api.LogQuery, follow bool) error {
	ctx := cmd.Context()
	printed := false
	for {
		resp, err := client.Logs(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if follow && query.Follow && isTimeout(err) {
				continue
			}
			return err
		}
		for _, evt := range resp.Events {
			fmt.Fprintln(cmd.OutOrStdout(), formatLogEvent(evt))
			printed = true
		}
		if !follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		query.Since = resp.Next
		query.Limit = 200
		query.Tail = false
		query.Follow = true
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func formatLogEvent(evt api.LogEvent) string {
	ts := evt.Timestamp.Local().Format("2006-01-02 15:04:05")
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if c := strings.TrimSpace(evt.Component); c != "" {
		parts = append(parts, fmt.Sprintf("[%s]", c))
	}
	if subject := logSubject(evt); subject != "" {
		parts = append(parts, subject)
	}
	line := strings.Join(parts, " ")
	if msg := strings.TrimSpace(evt.Message); msg != "" {
		line += " - " + msg
	}
	if len(evt.Fields) == 0 {
		return line
	}
	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(line)
	for _, k := range keys {
		v := strings.TrimSpace(evt.Fields[k])
		if v == "" {
			continue
		}
		b.WriteString("\n    - ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
	}
	return b.String()
}

func logSubject(evt api.LogEvent) string {
	switch {
	case evt.KeyID != "":
		return "key " + evt.KeyID
	case evt.Encoder != "":
		return "encoder " + evt.Encoder
	case evt.ClientID != "":
		return "client " + shortDigest(evt.ClientID)
	default:
		return ""
	}
}
