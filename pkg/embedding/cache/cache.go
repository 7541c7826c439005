// Package cache provides the content-addressed embedding cache. Entries are
// keyed by (model id, content fingerprint), shared across sessions, bounded
// by an LRU policy and computed at most once per key even under concurrent
// callers.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/pkg/embedding"
)

type entry struct {
	vector  []float32
	modelID string
}

type Cache struct {
	lru   *lru.Cache[string, entry]
	group singleflight.Group
}

func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, apperr.Newf(apperr.ErrInvalidConfiguration, "cache capacity must be positive, got %d", capacity)
	}
	l, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidConfiguration, "cache init failed", err)
	}
	return &Cache{lru: l}, nil
}

// GetOrCompute returns the cached vector for the fingerprint under modelID,
// or invokes compute exactly once per key. Concurrent callers for one
// uncached key share the single in-flight computation and its error. A
// failed computation stores nothing, so the next call retries.
func (c *Cache) GetOrCompute(ctx context.Context, fingerprint, modelID string, compute func(ctx context.Context) ([]float32, error)) ([]float32, error) {
	key := modelID + ":" + fingerprint

	if e, ok := c.lru.Get(key); ok {
		return e.vector, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A winner may have filled the entry between our miss and here.
		if e, ok := c.lru.Get(key); ok {
			return e.vector, nil
		}
		vec, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, entry{vector: vec, modelID: modelID})
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Contains reports whether the fingerprint is cached under modelID without
// touching recency.
func (c *Cache) Contains(fingerprint, modelID string) bool {
	return c.lru.Contains(modelID + ":" + fingerprint)
}

// CachedProvider decorates an embedding.Provider with the cache. Chunk and
// query embeddings both flow through it, so repeated text never hits the
// backing model twice.
type CachedProvider struct {
	provider embedding.Provider
	cache    *Cache
}

func NewCachedProvider(provider embedding.Provider, cache *Cache) *CachedProvider {
	return &CachedProvider{provider: provider, cache: cache}
}

func (p *CachedProvider) ModelID() string {
	return p.provider.ModelID()
}

func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.cache.GetOrCompute(ctx, embedding.Fingerprint(text), p.provider.ModelID(), func(ctx context.Context) ([]float32, error) {
		return p.provider.Embed(ctx, text)
	})
}
