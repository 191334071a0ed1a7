package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"supportrag/internal/logging"
)

var ingestURLs []string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scrape the source URLs and index them",
	Long: `Scrapes every configured URL, concatenates the main content, splits it into
fixed-size chunks and writes one embedded record per chunk to the vector index.
Fails when no URL yields any content.`,
	Args: cobra.NoArgs,
	RunE: runIngestCmd,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestURLs, "url", nil, "source URL to ingest instead of the configured list (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngestCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(ingestURLs) > 0 {
		cfg.Scraper.URLs = ingestURLs
	}
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	if err := a.runIngest(ctx); err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return nil
}
