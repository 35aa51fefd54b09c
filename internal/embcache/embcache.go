package embcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/knowdex/knowdex/pkg/types"
)

// Defaults applied when the corresponding Config field is zero.
const (
	DefaultMaxSize = 1000
	DefaultTTL     = 7 * 24 * time.Hour

	configFileName = "cache-config.json"
)

// Entry is one cached embedding.
type Entry struct {
	ItemID      string            `json:"itemId"`
	Embedding   []float32         `json:"embedding"`
	ContentHash string            `json:"contentHash,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	ExpiresAt   time.Time         `json:"expiresAt"`
}

func (e *Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Stats holds cache observability counters.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Stores      int64   `json:"stores"`
	Expirations int64   `json:"expirations"`
	Entries     int     `json:"entries"`
	HitRate     float64 `json:"hitRate"`
}

// Config controls cache behavior.
type Config struct {
	// Dimension every stored embedding must have. Required.
	Dimension int

	// MaxSize bounds the in-memory entry count.
	MaxSize int

	// TTL is the lifetime of an entry from creation.
	TTL time.Duration

	// Dir enables the disk layer when non-empty.
	Dir string

	Logger *slog.Logger
}

// diskConfig is the small config file persisted next to the entry files.
type diskConfig struct {
	MaxSize int           `json:"maxSize"`
	TTL     time.Duration `json:"ttl"`
	Enabled bool          `json:"enabled"`
}

// Cache is a TTL'd embedding cache with an in-memory map and an optional
// disk layer.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry

	dimension int
	maxSize   int
	ttl       time.Duration
	dir       string
	logger    *slog.Logger

	hits        int64
	misses      int64
	stores      int64
	expirations int64

	now func() time.Time
}

// New creates a cache. When cfg.Dir is set, the directory is created and a
// cache-config.json describing the settings is written there.
func New(cfg Config) (*Cache, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: cache dimension must be positive", types.ErrItemInvalid)
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Cache{
		entries:   make(map[string]*Entry),
		dimension: cfg.Dimension,
		maxSize:   cfg.MaxSize,
		ttl:       cfg.TTL,
		dir:       cfg.Dir,
		logger:    cfg.Logger,
		now:       time.Now,
	}

	if c.dir != "" {
		if err := os.MkdirAll(c.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		if err := c.writeConfigFile(); err != nil {
			// The config file is informational; a write failure disables
			// nothing.
			c.logger.Warn("failed to write cache config", "error", err)
		}
	}

	return c, nil
}

func (c *Cache) writeConfigFile() error {
	data, err := json.MarshalIndent(diskConfig{
		MaxSize: c.maxSize,
		TTL:     c.ttl,
		Enabled: true,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, configFileName), data, 0o644)
}

// Get returns the cached embedding for an item, or ok=false on a miss.
// A non-empty contentHash must match the stored hash; a stale hash is a
// miss. Expired entries are removed from both layers as a side effect.
func (c *Cache) Get(itemID, contentHash string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[itemID]
	if !ok && c.dir != "" {
		entry = c.readDiskEntry(itemID)
		if entry != nil {
			c.entries[itemID] = entry
			ok = true
		}
	}

	if !ok {
		c.misses++
		return nil, false
	}

	if entry.expired(c.now()) {
		c.removeLocked(itemID)
		c.expirations++
		c.misses++
		return nil, false
	}

	if contentHash != "" && entry.ContentHash != "" && entry.ContentHash != contentHash {
		c.misses++
		return nil, false
	}

	c.hits++
	dup := make([]float32, len(entry.Embedding))
	copy(dup, entry.Embedding)
	return dup, true
}

// Set stores an embedding. Vectors whose length differs from the configured
// dimension are rejected with ErrDimensionMismatch. Exceeding the size
// limit evicts the single oldest entry by creation time.
func (c *Cache) Set(itemID string, embedding []float32, metadata map[string]string, contentHash string) error {
	if itemID == "" {
		return fmt.Errorf("%w: cache entry needs an item id", types.ErrItemInvalid)
	}
	if len(embedding) != c.dimension {
		return fmt.Errorf("%w: embedding has %d dimensions, cache expects %d",
			types.ErrDimensionMismatch, len(embedding), c.dimension)
	}

	dup := make([]float32, len(embedding))
	copy(dup, embedding)

	now := c.now()
	entry := &Entry{
		ItemID:      itemID,
		Embedding:   dup,
		ContentHash: contentHash,
		Metadata:    metadata,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[itemID] = entry
	c.stores++

	if len(c.entries) > c.maxSize {
		c.evictOldestLocked()
	}

	if c.dir != "" {
		if err := c.writeDiskEntry(entry); err != nil {
			c.logger.Warn("failed to persist cache entry", "itemId", itemID, "error", err)
		}
	}
	return nil
}

// GetMultiple returns cached embeddings for the given IDs; missing or
// stale entries are simply absent from the result.
func (c *Cache) GetMultiple(itemIDs []string, contentHashes map[string]string) map[string][]float32 {
	result := make(map[string][]float32, len(itemIDs))
	for _, id := range itemIDs {
		if vec, ok := c.Get(id, contentHashes[id]); ok {
			result[id] = vec
		}
	}
	return result
}

// SetMultiple stores a batch of embeddings. Individual failures are logged
// and skipped; the returned count is the number of successful stores.
func (c *Cache) SetMultiple(entries map[string][]float32, contentHashes map[string]string) int {
	stored := 0
	for id, vec := range entries {
		if err := c.Set(id, vec, nil, contentHashes[id]); err != nil {
			c.logger.Warn("skipping cache entry", "itemId", id, "error", err)
			continue
		}
		stored++
	}
	return stored
}

// Cleanup removes all expired entries from memory and disk and returns the
// removed count.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	for id, entry := range c.entries {
		if entry.expired(now) {
			c.removeLocked(id)
			c.expirations++
			removed++
		}
	}

	if c.dir != "" {
		removed += c.cleanupDiskLocked(now)
	}
	return removed
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Stores:      c.stores,
		Expirations: c.expirations,
		Entries:     len(c.entries),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldestLocked removes the entry with the smallest CreatedAt. Linear
// scan; fine at the configured cache sizes.
func (c *Cache) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time

	for id, entry := range c.entries {
		if oldestID == "" || entry.CreatedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = entry.CreatedAt
		}
	}
	if oldestID != "" {
		c.removeLocked(oldestID)
	}
}

func (c *Cache) removeLocked(itemID string) {
	delete(c.entries, itemID)
	if c.dir != "" {
		if err := os.Remove(c.entryPath(itemID)); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove cache file", "itemId", itemID, "error", err)
		}
	}
}

// entryPath maps an item ID to its cache file. Hashing keeps arbitrary IDs
// (paths with separators, '#' fragments) safe as file names.
func (c *Cache) entryPath(itemID string) string {
	sum := sha256.Sum256([]byte(itemID))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

func (c *Cache) readDiskEntry(itemID string) *Entry {
	data, err := os.ReadFile(c.entryPath(itemID))
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("failed to read cache file", "itemId", itemID, "error", err)
		}
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("corrupt cache file, ignoring", "itemId", itemID, "error", err)
		return nil
	}
	if len(entry.Embedding) != c.dimension {
		return nil
	}
	return &entry
}

func (c *Cache) writeDiskEntry(entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(c.entryPath(entry.ItemID), data, 0o644)
}

// cleanupDiskLocked scans entry files for expired entries not present in
// memory and deletes them.
func (c *Cache) cleanupDiskLocked(now time.Time) int {
	removed := 0

	paths, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0
	}
	for _, path := range paths {
		if filepath.Base(path) == configFileName {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if _, inMemory := c.entries[entry.ItemID]; inMemory {
			continue
		}
		if entry.expired(now) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	return removed
}
