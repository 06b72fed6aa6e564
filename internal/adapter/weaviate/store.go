// Package weaviate adapts the external vector database behind the
// upsert/search contract used by the ingestion pipeline and retrieval.
package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"ctxrag/internal/domain"
)

// Store wraps a weaviate client for one collection class with a fixed
// vector dimension. The client is long-lived and safe for concurrent use.
type Store struct {
	client *weaviate.Client
	class  string
	dims   int
}

func NewStore(client *weaviate.Client, class string, dims int) *Store {
	return &Store{client: client, class: class, dims: dims}
}

// EnsureCollection idempotently creates the collection class. When the
// class already exists it verifies that stored vectors match the
// configured dimension and fails with domain.ErrSchemaMismatch otherwise.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(s.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if !exists {
		class := &models.Class{
			Class:       s.class,
			Description: "A contextualized chunk of an ingested document",
			Vectorizer:  "none",
			VectorIndexConfig: map[string]interface{}{
				"distance": "cosine",
			},
			Properties: []*models.Property{
				{Name: "docId", DataType: []string{"string"}},
				{Name: "ordinal", DataType: []string{"int"}},
				{Name: "start", DataType: []string{"int"}},
				{Name: "end", DataType: []string{"int"}},
				{Name: "text", DataType: []string{"text"}},
				{Name: "context", DataType: []string{"text"}},
			},
		}
		if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return fmt.Errorf("%w: create class %s: %v", domain.ErrStoreUnavailable, s.class, err)
		}
		return nil
	}

	class, err := s.client.Schema().ClassGetter().WithClassName(s.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if class.Vectorizer != "none" {
		return fmt.Errorf("%w: class %s uses vectorizer %q, expected none",
			domain.ErrSchemaMismatch, s.class, class.Vectorizer)
	}

	// The class itself carries no dimension, so probe one stored vector.
	dim, err := s.probeDimension(ctx)
	if err != nil {
		return err
	}
	if dim > 0 && dim != s.dims {
		return fmt.Errorf("%w: class %s holds %d-dimensional vectors, configured for %d",
			domain.ErrSchemaMismatch, s.class, dim, s.dims)
	}
	return nil
}

func (s *Store) probeDimension(ctx context.Context) (int, error) {
	fields := []graphql.Field{
		{Name: "_additional", Fields: []graphql.Field{{Name: "vector"}}},
	}
	res, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithLimit(1).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	for _, props := range classObjects(res, s.class) {
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if vec, ok := additional["vector"].([]interface{}); ok {
				return len(vec), nil
			}
		}
	}
	return 0, nil // empty collection, nothing to compare against
}

// Upsert writes rec keyed by its deterministic id; re-upserting the same
// id overwrites the stored vector and payload.
func (s *Store) Upsert(ctx context.Context, rec domain.Record) error {
	if len(rec.Vector) != s.dims {
		return fmt.Errorf("%w: record %s carries %d dimensions, collection expects %d",
			domain.ErrSchemaMismatch, rec.ID, len(rec.Vector), s.dims)
	}

	obj := &models.Object{
		Class:  s.class,
		ID:     strfmt.UUID(rec.ID),
		Vector: models.C11yVector(rec.Vector),
		Properties: map[string]interface{}{
			"docId":   rec.Payload.DocID,
			"ordinal": rec.Payload.Ordinal,
			"start":   rec.Payload.Start,
			"end":     rec.Payload.End,
			"text":    rec.Payload.Text,
			"context": rec.Payload.Context,
		},
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(obj).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("upsert %s: %s", rec.ID, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Search returns up to k records most similar to vector, ordered by
// certainty (higher = more similar under cosine distance).
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "docId"},
		{Name: "ordinal"},
		{Name: "start"},
		{Name: "end"},
		{Name: "text"},
		{Name: "context"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var results []domain.SearchResult
	for _, props := range classObjects(res, s.class) {
		result := domain.SearchResult{}
		if v, ok := props["docId"].(string); ok {
			result.Payload.DocID = v
		}
		if v, ok := props["ordinal"].(float64); ok {
			result.Payload.Ordinal = int(v)
		}
		if v, ok := props["start"].(float64); ok {
			result.Payload.Start = int(v)
		}
		if v, ok := props["end"].(float64); ok {
			result.Payload.End = int(v)
		}
		if v, ok := props["text"].(string); ok {
			result.Payload.Text = v
		}
		if v, ok := props["context"].(string); ok {
			result.Payload.Context = v
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if c, ok := additional["certainty"].(float64); ok {
				result.Score = float32(c)
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// classObjects digs the per-object property maps out of a GraphQL Get
// response.
func classObjects(res *models.GraphQLResponse, class string) []map[string]interface{} {
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := data[class].([]interface{})
	if !ok {
		return nil
	}
	var objects []map[string]interface{}
	for _, o := range raw {
		if props, ok := o.(map[string]interface{}); ok {
			objects = append(objects, props)
		}
	}
	return objects
}
