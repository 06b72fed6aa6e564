// Package domain holds the types and error sentinels shared between the
// ingestion pipeline, the retrieval service and the adapters.
package domain

import "errors"

// Record is one embedded chunk as stored in the vector database.
// ID is derived deterministically from (DocID, Ordinal), so re-ingesting
// the same document overwrites prior records instead of duplicating them.
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Payload is the metadata stored alongside a vector.
type Payload struct {
	DocID   string
	Ordinal int
	Start   int
	End     int
	Text    string
	Context string
}

// SearchResult is one similarity hit, higher score = more similar.
type SearchResult struct {
	Payload Payload
	Score   float32
}

var (
	// ErrBadConfig marks invalid parameters. Fatal, nothing is retried.
	ErrBadConfig = errors.New("invalid configuration")

	// ErrContextGeneration marks a failed or empty contextualization call.
	ErrContextGeneration = errors.New("context generation failed")

	// ErrEmbedding marks a transport or provider failure while embedding.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensionMismatch marks a vector of unexpected length coming back
	// from the embedding provider. Fatal, the store schema assumes a fixed
	// dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStoreUnavailable marks a connection-level vector store failure.
	// Upserts and searches are safe to retry.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrSchemaMismatch marks a collection that exists with a different
	// vector dimension than configured.
	ErrSchemaMismatch = errors.New("collection schema mismatch")

	// ErrStreamTerminated marks a chat stream that dropped mid-flight.
	// Deltas already forwarded remain valid.
	ErrStreamTerminated = errors.New("stream terminated")
)

// Transient reports whether err is worth retrying with backoff.
// Configuration and schema errors recur on every attempt and abort the run.
func Transient(err error) bool {
	switch {
	case errors.Is(err, ErrBadConfig),
		errors.Is(err, ErrDimensionMismatch),
		errors.Is(err, ErrSchemaMismatch):
		return false
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrEmbedding),
		errors.Is(err, ErrContextGeneration):
		return true
	}
	return false
}
