package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by the factory.
const (
	EnvProvider     = "KNOWDEX_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvJinaAPIKey   = "JINA_API_KEY"
)

// Config holds explicit embedder configuration.
type Config struct {
	Provider  string
	APIKey    string
	CacheSize int
}

// New creates an embedder from explicit configuration.
func New(cfg Config) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache)
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// NewFromEnv creates an embedder based on environment variables.
// Selection order:
//  1. KNOWDEX_EMBEDDING_PROVIDER when set (openai, jina, local)
//  2. Auto-detect from OPENAI_API_KEY / JINA_API_KEY
//  3. The local provider, so indexing always works offline
func NewFromEnv() (Embedder, error) {
	cache := NewCache(DefaultCacheSize)

	if provider := os.Getenv(EnvProvider); provider != "" {
		switch strings.ToLower(provider) {
		case ProviderOpenAI:
			return NewOpenAIProvider(os.Getenv(EnvOpenAIAPIKey), cache)
		case ProviderJina:
			return NewJinaProvider(os.Getenv(EnvJinaAPIKey), cache)
		case ProviderLocal:
			return NewLocalProvider(cache)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
		}
	}

	if key := os.Getenv(EnvOpenAIAPIKey); key != "" {
		return NewOpenAIProvider(key, cache)
	}
	if key := os.Getenv(EnvJinaAPIKey); key != "" {
		return NewJinaProvider(key, cache)
	}
	return NewLocalProvider(cache)
}
