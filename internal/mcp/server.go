package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/knowdex/knowdex/internal/embcache"
	"github.com/knowdex/knowdex/internal/embedder"
	"github.com/knowdex/knowdex/internal/funnel"
	"github.com/knowdex/knowdex/internal/store"
)

const (
	// ServerName is the MCP server name.
	ServerName = "knowdex"
	// ServerVersion is the current server version.
	ServerVersion = "1.0.0"
	// DefaultDataPath is the default location for index and cache files.
	DefaultDataPath = "~/.knowdex"
)

// Server wraps the MCP server with application dependencies. The embedder
// and its cache are shared between indexing and search so query-time
// embeddings reuse vectors computed during indexing.
type Server struct {
	mcp      *server.MCPServer
	store    *store.Store
	embedder embedder.Embedder
	cache    *embcache.Cache
	funnel   *funnel.Funnel
	logger   *slog.Logger
}

// NewServer creates an MCP server rooted at dataPath. The index is loaded
// eagerly; a missing or incompatible index starts empty.
func NewServer(dataPath string) (*Server, error) {
	if dataPath == "" || dataPath == DefaultDataPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dataPath = filepath.Join(home, ".knowdex")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	adapter, err := store.NewJSONAdapter(filepath.Join(dataPath, "index"))
	if err != nil {
		return nil, fmt.Errorf("initialize index storage: %w", err)
	}

	st := store.New(adapter, store.WithLogger(logger))
	if err := st.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	cache, err := embcache.New(embcache.Config{
		Dimension: emb.Dimension(),
		Dir:       filepath.Join(dataPath, "cache"),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize embedding cache: %w", err)
	}

	fn := funnel.New(
		funnel.WithEmbedder(emb),
		funnel.WithLogger(logger),
	)

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		store:    st,
		embedder: emb,
		cache:    cache,
		funnel:   fn,
		logger:   logger,
	}
	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer s.close()
	return server.ServeStdio(s.mcp)
}

func (s *Server) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", "error", err)
	}
	if err := s.embedder.Close(); err != nil {
		s.logger.Warn("closing embedder", "error", err)
	}
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(indexKnowledgeTool(), s.handleIndexKnowledge)
	s.mcp.AddTool(searchKnowledgeTool(), s.handleSearchKnowledge)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(cacheStatsTool(), s.handleCacheStats)
}
