package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/spf13/cobra"

	"ctxrag/internal/agent"
	"ctxrag/internal/ingest"
	"ctxrag/internal/registry"
	"ctxrag/internal/text"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Index documents into the vector store",
	Long: `Split each file into chunks, generate a situating context per chunk,
embed context and chunk together and upsert the result. PDF files are
reduced to their plain text; everything else is read as text.
Re-ingesting a file replaces its previous records.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var (
	ingestChunkSize   int
	ingestOverlap     int
	ingestConcurrency int
	ingestDocID       string
)

func init() {
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "Maximum chunk size in bytes (overrides MAX_CHUNK_SIZE)")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", -1, "Chunk overlap in bytes (overrides CHUNK_OVERLAP)")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "Concurrent chunks in flight (overrides INGEST_CONCURRENCY)")
	ingestCmd.Flags().StringVar(&ingestDocID, "doc-id", "", "Document id to store records under (single file only; defaults to the cleaned file path)")
	rootCmd.AddCommand(ingestCmd)
}

// documentID derives the id records are stored under. The cleaned path
// keeps same-named files in different directories from overwriting each
// other.
func documentID(path, override string) string {
	if override != "" {
		return override
	}
	return filepath.Clean(path)
}

// readDocument loads one input file, extracting plain text from PDFs.
func readDocument(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractPDF(path)
	}
	content, err := os.ReadFile(path) // #nosec G304 -- paths come from the command line
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(content), nil
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", path, err)
	}
	content, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", path, err)
	}
	return string(content), nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if ingestChunkSize > 0 {
		cfg.MaxChunkSize = ingestChunkSize
	}
	if ingestOverlap >= 0 {
		cfg.ChunkOverlap = ingestOverlap
	}
	if ingestConcurrency > 0 {
		cfg.IngestConcurrency = ingestConcurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if ingestDocID != "" && len(args) > 1 {
		return fmt.Errorf("--doc-id applies to a single file, got %d", len(args))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm, closeLLM, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLLM()

	store, err := newVectorStore(ctx, cfg)
	if err != nil {
		return err
	}

	var runRegistry ingest.Registry
	if cfg.RegistryEnabled() {
		repo, err := registry.Open(cfg.DSN(), cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("open ingestion registry: %w", err)
		}
		defer repo.Close()
		runRegistry = repo
	}

	pipeline := ingest.NewPipeline(
		agent.NewContextAgent(llm),
		llm,
		store,
		runRegistry,
		log,
		ingest.Options{
			Splitter:      text.Splitter{MaxChunkSize: cfg.MaxChunkSize, Overlap: cfg.ChunkOverlap},
			Concurrency:   cfg.IngestConcurrency,
			RetryAttempts: cfg.RetryAttempts,
			RetryDelay:    cfg.RetryDelay,
		},
	)

	for _, path := range args {
		content, err := readDocument(path)
		if err != nil {
			return err
		}

		report, err := pipeline.Run(ctx, ingest.Document{
			ID:      documentID(path, ingestDocID),
			Content: content,
		})
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d chunks stored in %s\n",
			report.DocID, report.Stored, report.Chunks, report.Finished.Sub(report.Started).Round(time.Millisecond))
		for _, f := range report.Failed {
			fmt.Fprintf(cmd.OutOrStdout(), "  chunk %d failed at %s: %v\n", f.Ordinal, f.Stage, f.Err)
		}
	}
	return nil
}
