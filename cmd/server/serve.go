package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/anzalkabeer/codechicks/internal/chat"
	"github.com/anzalkabeer/codechicks/internal/registry"
	"github.com/anzalkabeer/codechicks/internal/server"
	"github.com/anzalkabeer/codechicks/internal/store"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		Example: `  JWT_SECRET=... server serve
  SERVER_PORT=:9090 ALLOWED_ORIGINS=https://chat.example.com server serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe wires every component, serves until SIGINT or SIGTERM and then
// shuts down in reverse order. Deferred cleanups run before returning.
func runServe(parent context.Context) error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	db, err := store.Open(cfg.BadgerFilepath)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	messages := store.NewMessageStore(db, log)
	directory := store.NewUserDirectory(db)
	reg := registry.New(log, cfg.MaxConnections, cfg.SendBufferSize)
	replies := chat.NewReplyResolver(log, messages, directory, cfg.ReplySnippetLength)
	dispatcher := chat.NewDispatcher(log, messages, replies, reg, chat.SystemClock{}, chat.DispatcherConfig{
		MaxContentLength: cfg.MaxContentLength,
		QueueSize:        cfg.DispatchQueueSize,
	})

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		dispatcher.Run(dispatchCtx)
		close(dispatchDone)
	}()

	srv := server.New(cfg, log, server.Deps{
		Verifier:   auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Dispatcher: dispatcher,
		Registry:   reg,
		Directory:  directory,
		Messages:   messages,
	})
	httpServer := server.CreateServer(cfg.Port, srv.Routes())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, log)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err = <-serveErr:
		if err != nil {
			log.Error("HTTP server failed", "error", err)
		}
	}

	// Connections go before the lane so no read pump is left waiting on it.
	shutdownErr := errors.Join(
		server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log),
		srv.Shutdown(cfg.ShutdownTimeout),
	)
	stopDispatch()
	<-dispatchDone

	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return shutdownErr
}
