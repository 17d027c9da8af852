// Package cli wires the cobra command tree for docstash. Commands
// build their adapters from the configuration file plus flags, with
// flags taking precedence.
package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docstash-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docstash-cli/internal/logger"
)

// version is set at build time via ldflags.
var version = "0.1.0"

var (
	verbose     bool
	configDir   string
	configStore *file.ConfigStore
)

var rootCmd = &cobra.Command{
	Use:   "docstash",
	Short: "Ingest PDFs into an enriched SQLite library",
	Long: `docstash ingests multi-page PDF documents into a SQLite database,
enriching them with AI-generated abstracts, per-page summaries, figure
descriptions, detected tables and section embeddings. The finished
database can be served read-only to AI assistants over MCP.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)

		store, err := file.NewConfigStore(configDir)
		if err != nil {
			return err
		}
		configStore = store
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging to stderr")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "configuration directory (default ~/.docstash)")
}

// Execute runs the root command with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// databasePath resolves the database location: the --database flag,
// then the config file, then ~/.docstash/library.db.
func databasePath(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString("database")
	if err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}
	if cfg := configStore.Config(); cfg.Database != "" {
		return cfg.Database, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".docstash", "library.db"), nil
}
