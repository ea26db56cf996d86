package main

import (
	"fmt"
	"time"

	"github.com/anzalkabeer/codechicks/internal/chat"
	"github.com/anzalkabeer/codechicks/internal/server"
	"github.com/anzalkabeer/codechicks/internal/store"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	Limit  int
	Before string
}

func newHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent messages",
		Long: `Print stored messages, newest first. When more remain, the cursor for
the next page is printed below the table.

Only BADGER_FILEPATH and LOG_LEVEL are read; the server must be stopped.`,
		Example: `  server history --limit 20
  server history --limit 20 --before <cursor>`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := server.LoadStorageConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			return runHistory(cmd, cfg, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of messages to print")
	cmd.Flags().StringVar(&opts.Before, "before", "", "cursor returned by a previous page")

	return cmd
}

func runHistory(cmd *cobra.Command, cfg server.StorageConfig, opts *HistoryOptions) error {
	if opts.Limit <= 0 {
		return fmt.Errorf("invalid limit %d: must be positive", opts.Limit)
	}

	db, err := store.Open(cfg.BadgerFilepath)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() { _ = db.Close() }()

	messages := store.NewMessageStore(db, logs.GetLoggerFromString(cfg.LogLevel))
	page, next, err := messages.Recent(cmd.Context(), opts.Before, opts.Limit)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	return printHistory(cmd, page, next)
}

func printHistory(cmd *cobra.Command, page []chat.Message, next string) error {
	out := cmd.OutOrStdout()

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Created", "ID", "Sender", "Content", "Reply To"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, m := range page {
		replyTo := ""
		if m.IsReply() {
			replyTo = fmt.Sprintf("%s: %s", m.Reply.SenderName, m.Reply.ContentSnippet)
		}
		table.Append([]string{
			m.CreatedAt.UTC().Format(time.RFC3339),
			m.ID,
			m.SenderDisplayName,
			chat.Snippet(m.Content, chat.DefaultSnippetLength),
			replyTo,
		})
	}
	table.Render()

	if next != "" {
		_, err := fmt.Fprintf(out, "\nnext cursor: %s\n", next)
		return err
	}
	return nil
}
