package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

func newChatCmd(opts *options) *cobra.Command {
	var (
		sessionID string
		useSocket bool
		model     string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message, or start an interactive chat when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := NewClient(opts.baseURL, opts.userID)
			out := cmd.OutOrStdout()

			if sessionID == "" {
				var created struct {
					Session domain.Session `json:"session"`
				}
				if err := client.Do(ctx, http.MethodPost, "/api/agent/sessions", domain.CreateSessionRequest{Model: model}, &created); err != nil {
					return fmt.Errorf("create session: %w", err)
				}
				sessionID = created.Session.ID
				fmt.Fprintf(out, "Session: %s\n", sessionID)
			}

			var config *domain.ModelConfig
			if model != "" {
				config = &domain.ModelConfig{Model: model}
			}
			p := &printer{out: out, sessionID: sessionID}

			send := func(message string) error {
				return client.Stream(ctx, domain.ChatRequest{SessionID: sessionID, Message: message, Config: config}, p.handle)
			}
			if useSocket {
				socket, err := client.DialSocket(ctx)
				if err != nil {
					return err
				}
				defer socket.Close()
				send = func(message string) error {
					return socket.Send(domain.ChatRequest{SessionID: sessionID, Message: message, Config: config}, p.handle)
				}
			}

			if len(args) == 1 {
				return send(args[0])
			}
			return repl(cmd.InOrStdin(), out, send)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID (default: create a new session)")
	cmd.Flags().BoolVar(&useSocket, "ws", false, "Stream over WebSocket instead of server-sent events")
	cmd.Flags().StringVar(&model, "model", "", "Model override")
	return cmd
}

func repl(in io.Reader, out io.Writer, send func(string) error) error {
	fmt.Fprintln(out, "Type a message and press Enter to send. /quit to exit.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/quit":
			return nil
		}
		if err := send(input); err != nil && !errors.Is(err, errTurnFailed) {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

var errTurnFailed = errors.New("turn failed")

// printer renders stream events for a terminal.
type printer struct {
	out       io.Writer
	sessionID string
}

func (p *printer) handle(event domain.EventType, data json.RawMessage) error {
	switch event {
	case domain.EventToken:
		var d domain.TokenEventData
		if err := json.Unmarshal(data, &d); err == nil {
			fmt.Fprint(p.out, d.Content)
		}
	case domain.EventSessionRenamed:
		var d domain.SessionRenamedEventData
		if err := json.Unmarshal(data, &d); err == nil {
			fmt.Fprintf(p.out, "[session renamed: %s]\n", d.Name)
		}
	case domain.EventToolStart:
		var d domain.ToolStartEventData
		if err := json.Unmarshal(data, &d); err == nil {
			fmt.Fprintf(p.out, "\n[tool] %s %s\n", d.Name, string(d.Arguments))
		}
	case domain.EventToolPending:
		var d domain.ToolPendingEventData
		if err := json.Unmarshal(data, &d); err == nil {
			fmt.Fprintf(p.out, "[awaiting confirmation] %s (tool call %s)\n", d.Name, d.ID)
		}
	case domain.EventToolComplete:
		var d domain.ToolCompleteEventData
		if err := json.Unmarshal(data, &d); err == nil {
			fmt.Fprintf(p.out, "[done] %s\n", d.Name)
		}
	case domain.EventDone:
		var d domain.DoneEventData
		if err := json.Unmarshal(data, &d); err == nil {
			fmt.Fprintf(p.out, "\n(%d tokens)\n", d.TokensUsed.Total)
			for _, tc := range d.PendingConfirmations {
				fmt.Fprintf(p.out, "Run `agentctl confirm --session %s %s` to approve %s.\n", p.sessionID, tc.ID, tc.Name)
			}
		}
	case domain.EventError:
		var d domain.ErrorEventData
		_ = json.Unmarshal(data, &d)
		fmt.Fprintf(p.out, "\nerror: %s\n", d.Message)
		return fmt.Errorf("%w: %s", errTurnFailed, d.Message)
	}
	return nil
}
