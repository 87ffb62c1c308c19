// Package embedding maps text to vectors through a configurable backend.
package embedding

import (
	"context"
	"errors"
	"math"
)

type TaskType string

const (
	TaskRetrievalDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    TaskType = "RETRIEVAL_QUERY"
)

var ErrEmptyEmbedding = errors.New("embedding: provider returned no vector")

// EmbeddingProvider is selected once at startup and shared by every request.
// Implementations must be safe for concurrent use.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string, task TaskType) ([]float32, error)
	Name() string
}

// normalizeVector scales vec to unit length so cosine distance behaves the same
// across backends.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
