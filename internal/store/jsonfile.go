package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/knowdex/knowdex/pkg/types"
)

// Fixed file names inside the index directory.
const (
	itemsFileName    = "items.json"
	manifestFileName = "manifest.json"
)

// JSONAdapter persists the item collection and manifest as a pair of JSON
// files under a fixed directory. Writes go through a temp file and rename so
// a crash mid-write never leaves a half-written collection.
type JSONAdapter struct {
	dir string
}

var _ Adapter = (*JSONAdapter)(nil)

// NewJSONAdapter creates the index directory if needed and returns an
// adapter rooted there.
func NewJSONAdapter(dir string) (*JSONAdapter, error) {
	if dir == "" {
		return nil, errors.New("index directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	return &JSONAdapter{dir: dir}, nil
}

// Name implements Adapter.
func (a *JSONAdapter) Name() string { return "jsonfile" }

// LoadItems implements Adapter.
func (a *JSONAdapter) LoadItems(ctx context.Context) ([]*types.IndexedItem, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, itemsFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading item collection: %w", err)
	}

	var items []*types.IndexedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding item collection: %w", err)
	}
	return items, nil
}

// SaveItems implements Adapter.
func (a *JSONAdapter) SaveItems(ctx context.Context, items []*types.IndexedItem) error {
	if items == nil {
		items = []*types.IndexedItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding item collection: %w", err)
	}
	return a.writeAtomic(itemsFileName, data)
}

// LoadManifest implements Adapter.
func (a *JSONAdapter) LoadManifest(ctx context.Context) (*types.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, manifestFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var manifest types.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &manifest, nil
}

// SaveManifest implements Adapter.
func (a *JSONAdapter) SaveManifest(ctx context.Context, manifest *types.Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return a.writeAtomic(manifestFileName, data)
}

// Close implements Adapter.
func (a *JSONAdapter) Close() error { return nil }

func (a *JSONAdapter) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(a.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(a.dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}
