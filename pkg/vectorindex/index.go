// Package vectorindex stores embedded chunks and answers filtered similarity
// searches. All chunks live in one shared collection; callers scope reads with
// metadata filters.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"rag-chatbot-be/pkg/embedding"
)

// Metadata keys written by the ingestion pipeline.
const (
	MetaUserID     = "user_id"
	MetaDocumentID = "document_id"
	MetaSource     = "source"
	MetaPage       = "page"
	MetaCollection = "collection"
	MetaChunkIndex = "chunk_index"
)

var ErrEmptyFilter = errors.New("vectorindex: filter must not be empty")

type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Hit is a search result. Lower Distance means more similar.
type Hit struct {
	Chunk
	Distance float64
}

// Filter matches chunks whose metadata equals every key/value pair.
type Filter map[string]string

type Index interface {
	Add(ctx context.Context, chunks []Chunk) ([]string, error)
	SimilaritySearchWithDistance(ctx context.Context, query string, k int, filter Filter) ([]Hit, error)
	Get(ctx context.Context, filter Filter) ([]string, error)
	Delete(ctx context.Context, ids []string) error
	Persist(ctx context.Context) error
}

// Matches reports whether metadata satisfies the filter.
func (f Filter) Matches(metadata map[string]string) bool {
	for k, v := range f {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// sortedKeys gives backends a stable clause order.
func (f Filter) sortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// embedAll embeds texts with at most limit calls in flight. Output order matches input.
func embedAll(ctx context.Context, provider embedding.EmbeddingProvider, texts []string, limit int) ([][]float32, error) {
	if limit <= 0 {
		limit = 4
	}
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := provider.Embed(gctx, text, embedding.TaskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
