package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/knowdex/knowdex/internal/pipeline"
	"github.com/knowdex/knowdex/pkg/types"
)

// MCP error codes.
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32001 // Another indexing run is already active
	ErrorCodeEmptyQuery         = -32002 // Query parameter is empty
)

// handleIndexKnowledge handles the index_knowledge tool invocation.
func (s *Server) handleIndexKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	opts := pipeline.Options{
		Force:  getBoolDefault(args, "force", false),
		DryRun: getBoolDefault(args, "dry_run", false),
	}

	p := pipeline.New(s.store, pipeline.NewFilesystemSource(path),
		pipeline.WithEmbedder(s.embedder),
		pipeline.WithCache(s.cache),
		pipeline.WithLogger(s.logger),
	)

	result, err := p.Run(ctx, opts)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if !opts.DryRun {
		s.funnel.InvalidateCache()
	}

	response := map[string]interface{}{
		"scanned":     result.Scanned,
		"upserted":    result.Upserted,
		"skipped":     result.Skipped,
		"embedded":    result.Embedded,
		"failed":      result.Failed,
		"duration_ms": result.Duration.Milliseconds(),
		"dry_run":     opts.DryRun,
	}
	if len(result.Errors) > 0 {
		response["errors"] = result.Errors
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchKnowledge handles the search_knowledge tool invocation.
func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	rctx := retrievalContextFromArgs(args)

	candidates := s.storeCandidates()
	ranked := s.funnel.Execute(ctx, query, candidates, rctx)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]map[string]interface{}, len(ranked))
	for i, c := range ranked {
		results[i] = map[string]interface{}{
			"id":      c.Item.ID,
			"title":   c.Title,
			"section": c.Item.Metadata.SectionTitle,
			"path":    c.Item.Metadata.SourcePath,
			"content": c.Item.Content,
			"scores": map[string]interface{}{
				"keyword":        c.KeywordScore,
				"semantic":       c.SemanticScore,
				"coarse":         c.CoarseScore,
				"coarse_signals": c.CoarseSignals,
				"ranker":         c.RankerScore,
				"signals":        c.Signals,
				"context":        c.ContextScore,
				"context_boost":  c.ContextBoost,
			},
		}
	}

	response := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// retrievalContextFromArgs maps search_knowledge arguments onto the ranking
// context. Intent feeds scenario selection when no explicit scenario is set.
func retrievalContextFromArgs(args map[string]interface{}) *types.RetrievalContext {
	return &types.RetrievalContext{
		Scenario:       getStringDefault(args, "scenario", ""),
		Intent:         getStringDefault(args, "intent", ""),
		Language:       getStringDefault(args, "language", ""),
		UserLevel:      getStringDefault(args, "user_level", ""),
		SessionHistory: getStringSlice(args, "session_history"),
	}
}

// storeCandidates builds ranking candidates from every indexed item. The
// funnel's keyword stage narrows the set; search quality work happens in
// the rankers, not here.
func (s *Server) storeCandidates() []*types.RankingCandidate {
	ids := s.store.ListIDs()
	candidates := make([]*types.RankingCandidate, 0, len(ids))
	for _, id := range ids {
		item, err := s.store.GetByID(id)
		if err != nil {
			continue
		}
		candidates = append(candidates, &types.RankingCandidate{
			Item:  *item,
			Title: candidateTitle(item),
		})
	}
	return candidates
}

// candidateTitle prefers the section heading, then the source file name.
func candidateTitle(item *types.IndexedItem) string {
	if item.Metadata.SectionTitle != "" {
		return item.Metadata.SectionTitle
	}
	if item.Metadata.SourcePath != "" {
		base := filepath.Base(item.Metadata.SourcePath)
		return base[:len(base)-len(filepath.Ext(base))]
	}
	return ""
}

// handleGetStatus handles the get_status tool invocation.
func (s *Server) handleGetStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	manifest := s.store.Manifest()
	stats := s.store.GetStats()

	response := map[string]interface{}{
		"indexed": stats.Count > 0,
		"manifest": map[string]interface{}{
			"schema_version":      manifest.SchemaVersion,
			"index_version":       manifest.IndexVersion,
			"count":               manifest.Count,
			"updated_at":          manifest.UpdatedAt,
			"embedding_model":     manifest.EmbeddingModel,
			"embedding_dimension": manifest.EmbeddingDimension,
			"storage_adapter":     manifest.StorageAdapter,
			"last_full_rebuild":   manifest.LastFullRebuild,
		},
		"statistics": map[string]interface{}{
			"items":              stats.Count,
			"items_with_vectors": stats.HasVectorCount,
		},
		"embedder": map[string]interface{}{
			"provider":  s.embedder.Provider(),
			"model":     s.embedder.Model(),
			"dimension": s.embedder.Dimension(),
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCacheStats handles the cache_stats tool invocation.
func (s *Server) handleCacheStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.cache.Stats()

	response := map[string]interface{}{
		"embedding_cache": map[string]interface{}{
			"hits":        stats.Hits,
			"misses":      stats.Misses,
			"stores":      stats.Stores,
			"expirations": stats.Expirations,
			"entries":     stats.Entries,
			"hit_rate":    stats.HitRate,
		},
		"query_cache": map[string]interface{}{
			"entries": s.funnel.CachedQueries(),
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions.

// newMCPError creates a properly formatted MCP error.
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error.
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// Path validation errors.
var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrNotDirectory    = errors.New("path is not a directory")
)

// validatePath checks that a document root exists and is a directory.
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// formatJSON formats a map as indented JSON.
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value.
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value.
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter.
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
