package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ctxrag/internal/registry"
)

var runsCmd = &cobra.Command{
	Use:   "runs [doc-id]",
	Short: "Show the last recorded ingestion run for a document",
	Long: `Print the most recent ingestion outcome persisted for a document id.
Requires the ingestion-run registry (DB_HOST must be configured).`,
	Args: cobra.ExactArgs(1),
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.RegistryEnabled() {
		return fmt.Errorf("the ingestion-run registry is not configured, set DB_HOST to enable it")
	}

	repo, err := registry.Open(cfg.DSN(), cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("open ingestion registry: %w", err)
	}
	defer repo.Close()

	run, err := repo.LastRun(cmd.Context(), args[0])
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no recorded runs for %s", args[0])
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d/%d chunks stored at %s (took %s)\n",
		run.DocID, run.Stored, run.Chunks,
		run.Started.Format(time.RFC3339), run.Finished.Sub(run.Started).Round(time.Millisecond))
	for _, f := range run.Failures {
		fmt.Fprintf(out, "  chunk %d failed at %s: %s\n", f.Ordinal, f.Stage, f.Error)
	}
	return nil
}
