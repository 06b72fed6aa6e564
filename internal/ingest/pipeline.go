// Package ingest drives documents through the contextual indexing
// pipeline: split, contextualize, embed, upsert. Chunks travel the
// pipeline concurrently; each chunk failure is isolated and reported,
// while configuration-class failures abort the whole run.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ctxrag/internal/domain"
	"ctxrag/internal/text"
)

// Separator sits between the generated context and the raw chunk text
// in the string that gets embedded.
const Separator = "\n---\n"

type Document struct {
	ID      string
	Content string
}

type Contextualizer interface {
	Contextualize(ctx context.Context, document string, ch text.Chunk) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Upsert(ctx context.Context, rec domain.Record) error
}

// Registry persists run outcomes. Optional; a nil registry disables
// persistence without changing pipeline behavior.
type Registry interface {
	RecordRun(ctx context.Context, report *Report) error
}

type ChunkFailure struct {
	Ordinal int
	Stage   string
	Err     error
}

type Report struct {
	DocID    string
	Chunks   int
	Stored   int
	Failed   []ChunkFailure
	Started  time.Time
	Finished time.Time
}

type Pipeline struct {
	splitter text.Splitter
	agent    Contextualizer
	embedder Embedder
	store    VectorStore
	registry Registry
	log      *slog.Logger

	concurrency   int
	retryAttempts int
	retryDelay    time.Duration
}

type Options struct {
	Splitter      text.Splitter
	Concurrency   int
	RetryAttempts int
	RetryDelay    time.Duration
}

func NewPipeline(agent Contextualizer, embedder Embedder, store VectorStore, registry Registry, log *slog.Logger, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	return &Pipeline{
		splitter:      opts.Splitter,
		agent:         agent,
		embedder:      embedder,
		store:         store,
		registry:      registry,
		log:           log,
		concurrency:   opts.Concurrency,
		retryAttempts: opts.RetryAttempts,
		retryDelay:    opts.RetryDelay,
	}
}

// RecordID derives a stable UUID from the document id and chunk
// ordinal, so that re-ingesting a document overwrites its previous
// records instead of accumulating duplicates.
func RecordID(docID string, ordinal int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", docID, ordinal))).String()
}

// Run ingests one document. Per-chunk failures are collected into the
// report; fatal errors (bad config, dimension or schema mismatch)
// cancel the remaining chunks and fail the run.
func (p *Pipeline) Run(ctx context.Context, doc Document) (*Report, error) {
	started := time.Now()

	chunks, err := p.splitter.Split(doc.ID, doc.Content)
	if err != nil {
		return nil, err
	}

	report := &Report{DocID: doc.ID, Chunks: len(chunks), Started: started}
	if len(chunks) == 0 {
		report.Finished = time.Now()
		p.persist(ctx, report)
		return report, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		fatalErr error
	)
	sem := make(chan struct{}, p.concurrency)

	for _, ch := range chunks {
		select {
		case <-runCtx.Done():
		case sem <- struct{}{}:
			wg.Add(1)
			go func(ch text.Chunk) {
				defer wg.Done()
				defer func() { <-sem }()

				stage, err := p.processChunk(runCtx, doc, ch)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					report.Stored++
				case !domain.Transient(err) && fatalErr == nil:
					fatalErr = err
					cancel()
				default:
					p.log.Warn("chunk failed",
						"doc_id", doc.ID, "ordinal", ch.Ordinal, "stage", stage, "error", err)
					report.Failed = append(report.Failed, ChunkFailure{Ordinal: ch.Ordinal, Stage: stage, Err: err})
				}
			}(ch)
		}
	}
	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}

	sort.Slice(report.Failed, func(i, j int) bool {
		return report.Failed[i].Ordinal < report.Failed[j].Ordinal
	})
	report.Finished = time.Now()

	p.log.Info("document ingested",
		"doc_id", doc.ID, "chunks", report.Chunks, "stored", report.Stored, "failed", len(report.Failed))
	p.persist(ctx, report)
	return report, nil
}

func (p *Pipeline) persist(ctx context.Context, report *Report) {
	if p.registry == nil {
		return
	}
	if err := p.registry.RecordRun(ctx, report); err != nil {
		p.log.Warn("failed to record ingestion run", "doc_id", report.DocID, "error", err)
	}
}

// processChunk walks one chunk through contextualize, embed and upsert,
// retrying transient failures. It returns the stage that failed.
func (p *Pipeline) processChunk(ctx context.Context, doc Document, ch text.Chunk) (string, error) {
	var chunkContext string
	err := p.withRetry(ctx, func() error {
		var err error
		chunkContext, err = p.agent.Contextualize(ctx, doc.Content, ch)
		return err
	})
	if err != nil {
		return "context", err
	}

	var vector []float32
	err = p.withRetry(ctx, func() error {
		var err error
		vector, err = p.embedder.Embed(ctx, chunkContext+Separator+ch.Text)
		return err
	})
	if err != nil {
		return "embed", err
	}

	rec := domain.Record{
		ID:     RecordID(doc.ID, ch.Ordinal),
		Vector: vector,
		Payload: domain.Payload{
			DocID:   doc.ID,
			Ordinal: ch.Ordinal,
			Start:   ch.Start,
			End:     ch.End,
			Text:    ch.Text,
			Context: chunkContext,
		},
	}
	err = p.withRetry(ctx, func() error {
		return p.store.Upsert(ctx, rec)
	})
	if err != nil {
		return "store", err
	}
	return "", nil
}

// withRetry runs fn up to retryAttempts times, doubling the delay
// between attempts. Non-transient errors and context cancellation stop
// retrying immediately.
func (p *Pipeline) withRetry(ctx context.Context, fn func() error) error {
	delay := p.retryDelay
	var err error
	for attempt := 1; attempt <= p.retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !domain.Transient(err) || attempt == p.retryAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
