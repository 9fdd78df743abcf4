package main

import (
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"padsynth/internal/api"
	"padsynth/internal/events"
	"padsynth/internal/tui"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Show held keys, encoders and synth settings live in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				conn, err := dialConsole(cmd, client)
				if err != nil {
					return err
				}
				defer conn.Close()

				model := tui.NewModel(wsSource{conn: conn}, client.BaseURL())
				program := tea.NewProgram(model,
					tea.WithContext(cmd.Context()),
					tea.WithInput(cmd.InOrStdin()),
					tea.WithOutput(cmd.OutOrStdout()),
				)
				final, err := program.Run()
				if err != nil {
					return err
				}
				if m, ok := final.(tui.Model); ok {
					if closed, closeErr := m.Closed(); closed && closeErr != nil && !websocket.IsCloseError(closeErr, websocket.CloseNormalClosure) {
						return fmt.Errorf("console connection closed: %w", closeErr)
					}
				}
				return nil
			})
		},
	}
}

func dialConsole(cmd *cobra.Command, client *api.Client) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	header := http.Header{}
	if token := client.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := dialer.DialContext(cmd.Context(), client.WebsocketURL(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("open console stream: %s", resp.Status)
		}
		return nil, err
	}
	return conn, nil
}

type wsSource struct {
	conn *websocket.Conn
}

func (s wsSource) Next() (events.Message, error) {
	var msg events.Message
	err := s.conn.ReadJSON(&msg)
	return msg, err
}
