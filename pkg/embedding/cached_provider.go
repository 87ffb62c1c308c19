package embedding

import (
	"context"

	"rag-chatbot-be/pkg/cache"
)

// CachedProvider memoises query embeddings. Document embeddings are computed
// once per ingestion and are not worth caching.
type CachedProvider struct {
	next  EmbeddingProvider
	store cache.VectorCache
}

func NewCachedProvider(next EmbeddingProvider, store cache.VectorCache) *CachedProvider {
	return &CachedProvider{next: next, store: store}
}

func (p *CachedProvider) Name() string {
	return p.next.Name()
}

func (p *CachedProvider) Embed(ctx context.Context, text string, task TaskType) ([]float32, error) {
	if task != TaskRetrievalQuery {
		return p.next.Embed(ctx, text, task)
	}

	key := cache.Key(p.next.Name(), text)
	if vec, ok := p.store.Get(ctx, key); ok {
		return vec, nil
	}

	vec, err := p.next.Embed(ctx, text, task)
	if err != nil {
		return nil, err
	}
	p.store.Set(ctx, key, vec)
	return vec, nil
}
