package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/anzalkabeer/codechicks/internal/server"
	"github.com/anzalkabeer/codechicks/internal/store"
	"github.com/spf13/cobra"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	UserID      string
	DisplayName string
	Role        string
	TTL         time.Duration
}

func newTokenCommand() *cobra.Command {
	opts := &TokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Register a user and print a signed credential",
		Long: `Register a user in the directory and print a credential for it, signed
with JWT_SECRET. The directory lives in the server database, so this cannot
run while the server holds it open.`,
		Example: `  server token --user alice@example.com --name Alice
  server token --user ops@example.com --role admin --ttl 1h`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := server.LoadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			return runToken(cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id the credential is issued for (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.DisplayName, "name", "", "display name, defaults to the user id's local part")
	cmd.Flags().StringVar(&opts.Role, "role", string(auth.RoleUser), "role (user|admin)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "credential lifetime")

	return cmd
}

func runToken(cmd *cobra.Command, cfg server.Config, opts *TokenOptions) error {
	role := auth.Role(strings.ToLower(opts.Role))
	if role != auth.RoleUser && role != auth.RoleAdmin {
		return fmt.Errorf("invalid role %q: must be user or admin", opts.Role)
	}
	if opts.TTL <= 0 {
		return fmt.Errorf("invalid ttl %s: must be positive", opts.TTL)
	}
	identity := auth.Identity{
		UserID:      strings.TrimSpace(opts.UserID),
		DisplayName: strings.TrimSpace(opts.DisplayName),
		Role:        role,
	}
	if identity.UserID == "" {
		return fmt.Errorf("user id must not be empty")
	}
	if identity.DisplayName == "" {
		identity.DisplayName = auth.FallbackName(identity.UserID)
	}

	db, err := store.Open(cfg.BadgerFilepath)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() { _ = db.Close() }()

	directory := store.NewUserDirectory(db)
	if err := directory.Put(cmd.Context(), store.UserRecord{
		ID:          identity.UserID,
		DisplayName: identity.DisplayName,
		Role:        identity.Role,
	}); err != nil {
		return fmt.Errorf("registering user: %w", err)
	}

	token, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer).Issue(identity, opts.TTL)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
