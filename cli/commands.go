package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/rpc/jsonrpc"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/service"
	agentrpc "github.com/rooftopsai/rooftopsgpt-sub002/internal/transport/rpc"
)

func newConfirmCmd(opts *options, action, short string) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   action + " <tool-call-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.ConfirmRequest{SessionID: sessionID, ToolCallID: args[0], Action: domain.ConfirmAction(action)}

			var resp domain.ConfirmResponse
			if opts.rpcAddr != "" {
				conn, err := jsonrpc.Dial("tcp", opts.rpcAddr)
				if err != nil {
					return err
				}
				defer conn.Close()
				if err := conn.Call(agentrpc.ServiceName+".Confirm", &agentrpc.ConfirmArgs{UserID: opts.userID, Request: req}, &resp); err != nil {
					return err
				}
			} else {
				client := NewClient(opts.baseURL, opts.userID)
				if err := client.Do(cmd.Context(), http.MethodPost, "/api/agent/confirm", req, &resp); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", resp.Status, resp.Message)
			if len(resp.Result) > 0 {
				return printJSON(out, resp.Result)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newSessionsCmd(opts *options) *cobra.Command {
	var status string

	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/agent/sessions"
			if status != "" {
				path += "?status=" + url.QueryEscape(status)
			}
			var resp struct {
				Sessions []domain.Session `json:"sessions"`
			}
			if err := NewClient(opts.baseURL, opts.userID).Do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tTOKENS\tTASKS")
			for _, s := range resp.Sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", s.ID, s.Name, s.Status, s.TotalTokensUsed, s.TotalTasksCompleted)
			}
			return w.Flush()
		},
	}
}

func newUsageCmd(opts *options) *cobra.Command {
	var (
		month  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show monthly usage against your plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var usage service.UsageSummary
			if opts.rpcAddr != "" {
				conn, err := jsonrpc.Dial("tcp", opts.rpcAddr)
				if err != nil {
					return err
				}
				defer conn.Close()
				if err := conn.Call(agentrpc.ServiceName+".Usage", &agentrpc.UsageArgs{UserID: opts.userID, Month: month}, &usage); err != nil {
					return err
				}
			} else {
				path := "/api/agent/usage"
				if month != "" {
					path += "?month=" + url.QueryEscape(month)
				}
				if err := NewClient(opts.baseURL, opts.userID).Do(cmd.Context(), http.MethodGet, path, nil, &usage); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				raw, err := json.Marshal(usage)
				if err != nil {
					return err
				}
				return printJSON(out, raw)
			}
			u := usage.Usage
			fmt.Fprintf(out, "Plan:     %s (%s)\n", usage.Tier, usage.Month)
			fmt.Fprintf(out, "Tokens:   %d / %d (%d%%)\n", u.Tokens.Total, u.Tokens.Limit, u.Tokens.PercentUsed)
			fmt.Fprintf(out, "Sessions: %d / %d\n", u.Sessions.Total, u.Sessions.Limit)
			fmt.Fprintf(out, "Tasks:    %d / %d\n", u.Tasks.Total, u.Tasks.Limit)
			fmt.Fprintf(out, "Cost:     $%s\n", u.EstimatedCostDollars)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Month as YYYY-MM (default: current)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	return cmd
}

func printJSON(out io.Writer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(formatted))
	return nil
}
