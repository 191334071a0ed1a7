package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"supportrag/internal/logging"
	"supportrag/internal/tui"
)

var askIngest bool

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask questions in an interactive console",
	Long: `Opens a terminal console that runs the query pipeline for every question
and shows the answer together with the context matches that grounded it.`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askIngest, "ingest", false, "run one ingestion pass before opening the console")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if askIngest {
		// ingestion progress is worth seeing before the console takes over
		a, err := newApp(cfg, logging.New(cfg.Logging.Level))
		if err != nil {
			return err
		}
		if err := a.runIngest(ctx); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		return runConsole(cmd, a)
	}

	a, err := newApp(cfg, logging.Quiet())
	if err != nil {
		return err
	}
	if err := a.prepareIndex(ctx, false); err != nil {
		return err
	}
	return runConsole(cmd, a)
}

func runConsole(cmd *cobra.Command, a *app) error {
	if err := a.quiet(); err != nil {
		return err
	}
	completer := a.completer()
	header := fmt.Sprintf("index: %s  embedder: %s  model: %s", a.cfg.Index.Type, a.embedder.Name(), completer.Model())
	m := tui.New(cmd.Context(), a.chatService(completer), header)
	_, err := tea.NewProgram(m).Run()
	return err
}
