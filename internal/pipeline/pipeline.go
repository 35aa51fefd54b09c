package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/knowdex/knowdex/internal/chunker"
	"github.com/knowdex/knowdex/internal/embcache"
	"github.com/knowdex/knowdex/internal/embedder"
	"github.com/knowdex/knowdex/internal/store"
	"github.com/knowdex/knowdex/pkg/types"
)

// ErrRunInProgress is returned when Run is called while another run against
// the same store is still active, including a run started by a different
// Pipeline instance.
var ErrRunInProgress = errors.New("indexing run already in progress")

const (
	// embedTimeout bounds a single embedding call including retries.
	embedTimeout = 60 * time.Second

	// maxErrorMessages caps the per-run error list so a broken corpus
	// cannot balloon the result.
	maxErrorMessages = 10
)

// Options controls a single run.
type Options struct {
	// Force re-embeds and re-upserts every chunk regardless of content
	// hash, and marks the run as a full rebuild in the manifest.
	Force bool

	// DryRun computes everything but performs no writes.
	DryRun bool
}

// Result reports what a run did.
type Result struct {
	Scanned  int           `json:"scanned"`
	Upserted int           `json:"upserted"`
	Skipped  int           `json:"skipped"`
	Embedded int           `json:"embedded"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
	Errors   []string      `json:"errors,omitempty"`
}

// Pipeline coordinates scan -> chunk -> hash-compare -> embed -> upsert.
type Pipeline struct {
	store    *store.Store
	source   Source
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	cache    *embcache.Cache

	workers int
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithWorkers bounds embedding concurrency. Defaults to runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithEmbedder sets the embedding provider. Without one, items are indexed
// with empty vectors and search degrades to keyword-only.
func WithEmbedder(emb embedder.Embedder) Option {
	return func(p *Pipeline) { p.embedder = emb }
}

// WithCache sets the embedding cache consulted before provider calls.
func WithCache(cache *embcache.Cache) Option {
	return func(p *Pipeline) { p.cache = cache }
}

// New creates a pipeline over a store and a document source.
func New(st *store.Store, source Source, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   st,
		source:  source,
		chunker: chunker.New(),
		workers: runtime.NumCPU(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// task is one chunk queued for embedding and upsert.
type task struct {
	item *types.IndexedItem
	hash string
}

// Run executes one indexing pass. Re-running with unchanged sources and
// Force off yields Upserted=0 and Skipped=Scanned. Cancellation stops the
// run between items; already-upserted items stay valid and the durable
// snapshot is untouched until the final flush.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if !p.store.TryBeginIndexing() {
		return nil, ErrRunInProgress
	}
	defer p.store.EndIndexing()

	start := time.Now()
	result := &Result{}

	docs, err := p.source.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}

	tasks := p.collectTasks(docs, opts, result)
	result.Scanned = result.Skipped + len(tasks)

	if err := p.processTasks(ctx, tasks, opts, result); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	if !opts.DryRun {
		p.store.UpdateManifest(func(m *types.Manifest) {
			if p.embedder != nil {
				m.EmbeddingModel = p.embedder.Model()
			}
			if opts.Force {
				m.IndexVersion++
				m.LastFullRebuild = time.Now().UTC()
			}
		})
		if err := p.store.Flush(ctx); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("flush store: %w", err)
		}
	}

	result.Duration = time.Since(start)
	p.logger.Info("indexing run complete",
		"scanned", result.Scanned,
		"upserted", result.Upserted,
		"skipped", result.Skipped,
		"embedded", result.Embedded,
		"failed", result.Failed,
		"duration", result.Duration,
		"dryRun", opts.DryRun)
	return result, nil
}

// collectTasks chunks every document and drops chunks whose stored content
// hash is unchanged.
func (p *Pipeline) collectTasks(docs []Document, opts Options, result *Result) []task {
	var tasks []task

	for _, doc := range docs {
		chunks := p.chunker.Split(doc.Content)
		for _, ch := range chunks {
			meta := doc.Metadata
			meta.ChunkIndex = ch.Index
			meta.SectionTitle = ch.SectionTitle

			item := &types.IndexedItem{
				ID:       fmt.Sprintf("%s#%d", doc.Path, ch.Index),
				Content:  ch.Content,
				Metadata: meta,
			}
			if len(chunks) > 1 {
				item.ParentID = doc.Path
			}

			hash := embedder.ContentHash(ch.Content)
			item.Metadata.SourceContentHash = hash

			if !opts.Force {
				if existing, err := p.store.GetByID(item.ID); err == nil &&
					existing.Metadata.SourceContentHash == hash {
					result.Skipped++
					continue
				}
			}
			tasks = append(tasks, task{item: item, hash: hash})
		}
	}
	return tasks
}

// processTasks embeds and upserts tasks on a bounded worker pool.
func (p *Pipeline) processTasks(ctx context.Context, tasks []task, opts Options, result *Result) error {
	if len(tasks) == 0 {
		return ctx.Err()
	}

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		upserted atomic.Int64
		embedded atomic.Int64
		failed   atomic.Int64

		errMu    sync.Mutex
		errMsgs  []string
		wg       sync.WaitGroup
		canceled bool
	)

	recordErr := func(id string, err error) {
		failed.Add(1)
		errMu.Lock()
		if len(errMsgs) < maxErrorMessages {
			errMsgs = append(errMsgs, fmt.Sprintf("%s: %v", id, err))
		}
		errMu.Unlock()
	}

	for _, t := range tasks {
		if ctx.Err() != nil {
			canceled = true
			break
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			p.embedTask(ctx, &t, opts)

			if opts.DryRun {
				if t.item.HasVector() {
					embedded.Add(1)
				}
				return
			}
			if err := p.store.Upsert(t.item); err != nil {
				recordErr(t.item.ID, err)
				return
			}
			upserted.Add(1)
			if t.item.HasVector() {
				embedded.Add(1)
			}
		})
		if submitErr != nil {
			wg.Done()
			recordErr(t.item.ID, submitErr)
		}
	}

	wg.Wait()

	result.Upserted = int(upserted.Load())
	result.Embedded = int(embedded.Load())
	result.Failed = int(failed.Load())
	result.Errors = errMsgs

	if opts.DryRun {
		// Dry runs report what would have been written.
		result.Upserted = len(tasks) - result.Failed
	}

	if canceled {
		return ctx.Err()
	}
	return nil
}

// embedTask fills in the item's vector, consulting the cache first and
// degrading to an empty vector on provider failure. Force runs go straight
// to the provider and overwrite the cached entry, so a model change with an
// unchanged dimension still produces fresh vectors.
func (p *Pipeline) embedTask(ctx context.Context, t *task, opts Options) {
	if p.embedder == nil {
		return
	}

	if p.cache != nil && !opts.Force {
		if vec, ok := p.cache.Get(t.item.ID, t.hash); ok {
			t.item.Vector = vec
			return
		}
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	vec, err := p.embedder.Embed(embedCtx, t.item.Content)
	if err != nil {
		p.logger.Warn("embedding failed, indexing without vector",
			"itemId", t.item.ID, "error", err)
		return
	}
	t.item.Vector = vec

	if p.cache != nil && !opts.DryRun {
		if err := p.cache.Set(t.item.ID, vec, nil, t.hash); err != nil {
			p.logger.Warn("failed to cache embedding", "itemId", t.item.ID, "error", err)
		}
	}
}
