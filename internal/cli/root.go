// Package cli wires configuration, providers and the vector store into
// the ctxrag commands: ingest, chat and serve.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ctxrag/internal/config"
	"ctxrag/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "ctxrag",
	Short: "Contextual retrieval over your documents",
	Long: `ctxrag indexes documents into a vector store with LLM-generated
chunk context, and answers questions about them through a streaming
retrieval-augmented chat.`,
	SilenceUsage: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the environment configuration and installs the
// process-wide logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := logger.New(os.Stderr, level)
	slog.SetDefault(log)
	return cfg, log, nil
}
