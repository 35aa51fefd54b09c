package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors.
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedder generates embedding vectors for text. Implementations must be
// safe for concurrent use.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension this provider produces.
	Dimension() int

	// Provider returns the provider name recorded in the manifest.
	Provider() string

	// Model returns the model name recorded in the manifest.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// DefaultCacheSize bounds the provider-level embedding cache.
const DefaultCacheSize = 10000

// Cache is an in-memory LRU of vectors keyed by content hash, shared across
// providers so repeated texts (common in incremental runs and repeated
// queries) hit the API once.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an LRU embedding cache.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Only reachable with a non-positive size, which we just guarded.
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector so caller mutations cannot pollute
// the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	dup := make([]float32, len(vec))
	copy(dup, vec)
	return dup, true
}

// Set stores a vector; LRU eviction happens automatically at capacity.
func (c *Cache) Set(hash string, vec []float32) {
	c.cache.Add(hash, vec)
}

// Len returns the current cache size.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// ContentHash returns the SHA-256 hex digest used as the cache key.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrEmptyText)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d", ErrEmptyText, i)
		}
	}
	return nil
}
