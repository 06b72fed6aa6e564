package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ctxrag/internal/chat"
	"ctxrag/internal/retrieval"
	"ctxrag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat over HTTP",
	Long: `Start an HTTP server exposing POST /chat as a newline-delimited JSON
stream, plus a small web page that consumes it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var servePort int

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.ServerPort = servePort
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

	queryLog, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		log.Warn("failed to open query log, queries will not be logged", "error", err)
	}

	retriever := retrieval.NewService(llm, store, cfg.ScoreThreshold, queryLog)
	loop := chat.NewLoop(retriever, llm, cfg.TopK, log)

	return server.New(loop, log).Run(ctx, cfg.ServerPort)
}
