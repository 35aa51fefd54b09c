package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"
	ProviderLocal  = "local"
)

// Default models and dimensions.
const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultJinaModel   = "jina-embeddings-v3"

	OpenAIDimension = 1536
	JinaDimension   = 1024
	LocalDimension  = 256
)

// DefaultRequestTimeout bounds a single provider HTTP call. The per-item
// context passed by the pipeline may be shorter.
const DefaultRequestTimeout = 30 * time.Second

// MaxBatchSize caps the number of texts per API request.
const MaxBatchSize = 100

// httpProvider holds the shared mechanics of the OpenAI-style embedding
// APIs: a JSON POST with bearer auth returning a data array of vectors.
type httpProvider struct {
	name      string
	model     string
	endpoint  string
	apiKey    string
	dimension int
	client    *http.Client
	cache     *Cache
}

func (p *httpProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := ContentHash(text)
	if p.cache != nil {
		if vec, ok := p.cache.Get(hash); ok {
			return vec, nil
		}
	}

	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrProviderFailed)
	}
	return vectors[0], nil
}

func (p *httpProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds limit %d", ErrProviderFailed, len(texts), MaxBatchSize)
	}

	vectors, err := retryWithBackoff(ctx, func() ([][]float32, error) {
		return p.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	if p.cache != nil {
		for i, vec := range vectors {
			p.cache.Set(ContentHash(texts[i]), vec)
		}
	}
	return vectors, nil
}

func (p *httpProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(payload))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range apiResp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (p *httpProvider) Dimension() int   { return p.dimension }
func (p *httpProvider) Provider() string { return p.name }
func (p *httpProvider) Model() string    { return p.model }

func (p *httpProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// NewOpenAIProvider creates an embedder backed by the OpenAI embeddings API.
func NewOpenAIProvider(apiKey string, cache *Cache) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not set", ErrNoProviderEnabled)
	}
	return &httpProvider{
		name:      ProviderOpenAI,
		model:     DefaultOpenAIModel,
		endpoint:  "https://api.openai.com/v1/embeddings",
		apiKey:    apiKey,
		dimension: OpenAIDimension,
		client:    &http.Client{Timeout: DefaultRequestTimeout},
		cache:     cache,
	}, nil
}

// NewJinaProvider creates an embedder backed by the Jina AI embeddings API.
func NewJinaProvider(apiKey string, cache *Cache) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Jina API key not set", ErrNoProviderEnabled)
	}
	return &httpProvider{
		name:      ProviderJina,
		model:     DefaultJinaModel,
		endpoint:  "https://api.jina.ai/v1/embeddings",
		apiKey:    apiKey,
		dimension: JinaDimension,
		client:    &http.Client{Timeout: DefaultRequestTimeout},
		cache:     cache,
	}, nil
}

// LocalProvider produces deterministic embeddings derived from a content
// hash. The vectors carry no semantic signal; the provider exists so the
// full pipeline runs offline and in tests without network access.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates the offline fallback embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{cache: cache}, nil
}

// Embed implements Embedder.
func (l *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ContentHash(text)
	if l.cache != nil {
		if vec, ok := l.cache.Get(hash); ok {
			return vec, nil
		}
	}

	vector := make([]float32, LocalDimension)
	// Stretch the 32-byte digest across the vector by re-hashing with a
	// counter, then normalize to unit length.
	seed := sha256.Sum256([]byte(text))
	for i := 0; i < LocalDimension; i += sha256.Size {
		block := sha256.Sum256(append(seed[:], byte(i/sha256.Size)))
		for j := 0; j < sha256.Size && i+j < LocalDimension; j++ {
			vector[i+j] = float32(block[j])/127.5 - 1
		}
	}
	normalize(vector)

	if l.cache != nil {
		l.cache.Set(hash, vector)
	}
	return vector, nil
}

// EmbedBatch implements Embedder.
func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := l.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimension implements Embedder.
func (l *LocalProvider) Dimension() int { return LocalDimension }

// Provider implements Embedder.
func (l *LocalProvider) Provider() string { return ProviderLocal }

// Model implements Embedder.
func (l *LocalProvider) Model() string { return "local-hash" }

// Close implements Embedder.
func (l *LocalProvider) Close() error { return nil }

func normalize(v []float32) {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
