// Package embeddingtest provides deterministic embedding providers for tests.
package embeddingtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"rag-chatbot-be/pkg/embedding"
)

// HashEmbedder maps each lower-cased token to a bucket, so texts sharing
// tokens land close together. No model or network is involved.
type HashEmbedder struct {
	Dim int
	// Err, when set, is returned by every Embed call.
	Err error

	mu    sync.Mutex
	calls int
}

var _ embedding.EmbeddingProvider = (*HashEmbedder)(nil)

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) Name() string { return "hash" }

func (h *HashEmbedder) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *HashEmbedder) Embed(ctx context.Context, text string, _ embedding.TaskType) ([]float32, error) {
	h.mu.Lock()
	h.calls++
	err := h.Err
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, h.Dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for _, tok := range tokens {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		vec[int(f.Sum32())%h.Dim] += 1
	}
	// Keep a small constant component so empty text still has a direction
	vec[0] += 0.01

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
