package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knowdex/knowdex/pkg/types"
)

// Document is one indexable unit yielded by a Source.
type Document struct {
	Path     string
	Content  string
	Metadata types.ItemMetadata
}

// Source enumerates indexable documents. Implementations must be safe to
// call repeatedly; the pipeline pulls a fresh listing on every run.
type Source interface {
	// Name identifies the source in logs and metadata.
	Name() string

	// Documents returns all indexable documents.
	Documents(ctx context.Context) ([]Document, error)
}

// FilesystemSource walks a root directory for knowledge documents.
type FilesystemSource struct {
	root       string
	extensions map[string]struct{}
}

// NewFilesystemSource creates a source over root. Only .md and .txt files
// are indexed; hidden directories are skipped entirely.
func NewFilesystemSource(root string) *FilesystemSource {
	return &FilesystemSource{
		root: root,
		extensions: map[string]struct{}{
			".md":  {},
			".txt": {},
		},
	}
}

// Name implements Source.
func (f *FilesystemSource) Name() string { return "filesystem" }

// Documents implements Source.
func (f *FilesystemSource) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document

	err := filepath.Walk(f.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if info.IsDir() {
			if path != f.root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if _, ok := f.extensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		relPath, err := filepath.Rel(f.root, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		docs = append(docs, Document{
			Path:    relPath,
			Content: string(content),
			Metadata: types.ItemMetadata{
				SourceType: f.Name(),
				SourcePath: relPath,
				Category:   topLevelDir(relPath),
				UpdatedAt:  info.ModTime().UTC(),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// topLevelDir returns the first path segment, used as a coarse category.
// Files at the root have no category.
func topLevelDir(relPath string) string {
	if i := strings.IndexByte(relPath, '/'); i > 0 {
		return relPath[:i]
	}
	return ""
}
