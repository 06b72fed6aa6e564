package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ctxrag/internal/chat"
	"ctxrag/internal/retrieval"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about indexed documents",
	Long: `Start an interactive loop. Each question is answered from the indexed
documents, with the reply streamed to the terminal as it is generated.
An empty query exits.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

var chatTopK int

func init() {
	chatCmd.Flags().IntVar(&chatTopK, "top-k", 0, "Number of document snippets to retrieve per question (overrides TOP_K)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if chatTopK > 0 {
		cfg.TopK = chatTopK
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

	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "Query> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			return nil
		}

		_, err := loop.Turn(ctx, query, func(delta string) error {
			fmt.Fprint(out, delta)
			return nil
		})
		fmt.Fprintln(out)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
		fmt.Fprintln(out)
	}
}
