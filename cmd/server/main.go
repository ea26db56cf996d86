package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "codechicks chat server",
		Long: `Real-time chat over websockets with persisted history and replies.

Configuration is read from the environment, optionally seeded from a .env
file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// A bare invocation serves, like the serve subcommand.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newTokenCommand())
	cmd.AddCommand(newHistoryCommand())

	return cmd
}
