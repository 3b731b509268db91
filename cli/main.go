// Command agentctl is a terminal client for the agent API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	baseURL string
	rpcAddr string
	userID  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "agentctl",
		Short:        "Talk to the roofing assistant agent from the terminal",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "addr", "http://localhost:8080", "Agent API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.rpcAddr, "rpc", "", "Internal JSON-RPC address (host:port)")
	rootCmd.PersistentFlags().StringVar(&opts.userID, "user", os.Getenv("AGENT_USER_ID"), "User ID sent in the X-User-ID header")

	rootCmd.AddCommand(
		newChatCmd(opts),
		newConfirmCmd(opts, "confirm", "Confirm a pending action"),
		newConfirmCmd(opts, "cancel", "Cancel a pending action"),
		newSessionsCmd(opts),
		newUsageCmd(opts),
	)
	return rootCmd
}
