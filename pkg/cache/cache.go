// Package cache stores query embeddings so repeated questions skip the embedding call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32)
}

// Key hashes the namespace and text so arbitrary query text is a safe key.
func Key(namespace, text string) string {
	sum := sha256.Sum256([]byte(namespace + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache keeps entries for ttl and purges expired ones every ttl/2.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	cleanup := ttl / 2
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &MemoryCache{cache: gocache.New(ttl, cleanup)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool) {
	if x, found := c.cache.Get(key); found {
		return x.([]float32), true
	}
	return nil, false
}

func (c *MemoryCache) Set(_ context.Context, key string, vec []float32) {
	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.cache.Set(key, stored, gocache.DefaultExpiration)
}
