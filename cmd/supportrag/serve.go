package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"supportrag/internal/logging"
	"supportrag/internal/server"
)

var (
	serveAddr   string
	serveIngest bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the OpenAI-compatible chat-completions endpoint",
	Long: `Starts the HTTP server. POST /api/chat/completions grounds the last user
message on the vector index and forwards the conversation to the completion
service, optionally re-streaming the answer as server-sent events.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveIngest, "ingest", false, "run one ingestion pass before serving (useful with the memory index)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	if serveIngest {
		if err := a.runIngest(ctx); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
	} else if err := a.prepareIndex(ctx, false); err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.New(a.chatService(a.completer()), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), secs(cfg.Server.ShutdownTimeoutSecs)+time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}
