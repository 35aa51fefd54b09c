package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	// Force the deterministic local provider regardless of ambient keys.
	t.Setenv("KNOWDEX_EMBEDDING_PROVIDER", "local")

	s, err := NewServer(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(s.close)
	return s
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	docs := map[string]string{
		"singleton.md": "# Singleton Pattern\n\nEnsures a single shared instance across the application.",
		"factory.md":   "# Factory Method\n\nDelegates object creation to subclasses.",
	}
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
	return root
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func TestServerComponents(t *testing.T) {
	s := newTestServer(t)

	assert.NotNil(t, s.mcp)
	assert.NotNil(t, s.store)
	assert.NotNil(t, s.embedder)
	assert.NotNil(t, s.cache)
	assert.NotNil(t, s.funnel)
}

func TestIndexKnowledgeValidation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleIndexKnowledge(ctx, callRequest(map[string]interface{}{}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)

	_, err = s.handleIndexKnowledge(ctx, callRequest(map[string]interface{}{
		"path": "relative/path",
	}))
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestIndexThenSearch(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	root := writeCorpus(t)

	indexResult, err := s.handleIndexKnowledge(ctx, callRequest(map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)
	payload := resultJSON(t, indexResult)
	assert.Equal(t, float64(2), payload["scanned"])
	assert.Equal(t, float64(2), payload["upserted"])
	assert.Equal(t, float64(2), payload["embedded"])

	searchResult, err := s.handleSearchKnowledge(ctx, callRequest(map[string]interface{}{
		"query":    "singleton shared instance",
		"scenario": "search",
	}))
	require.NoError(t, err)
	payload = resultJSON(t, searchResult)

	results, ok := payload["results"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)

	first, ok := results[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "singleton.md#0", first["id"])

	scores, ok := first["scores"].(map[string]interface{})
	require.True(t, ok, "each result carries its score breakdown")
	assert.Contains(t, scores, "keyword")
	assert.Contains(t, scores, "signals")
	assert.Contains(t, scores, "context")
}

func TestRetrievalContextFromArgs(t *testing.T) {
	rctx := retrievalContextFromArgs(map[string]interface{}{
		"intent":          "learning",
		"language":        "go",
		"user_level":      "beginner",
		"session_history": []interface{}{"singleton", "sync.Once"},
	})

	assert.Equal(t, "learning", rctx.Intent)
	assert.Equal(t, "learning", rctx.EffectiveScenario(), "intent drives scenario selection when scenario is unset")
	assert.Equal(t, "go", rctx.Language)
	assert.Equal(t, "beginner", rctx.UserLevel)
	assert.Equal(t, []string{"singleton", "sync.Once"}, rctx.SessionHistory)

	// An explicit scenario wins over intent.
	rctx = retrievalContextFromArgs(map[string]interface{}{
		"scenario": "lint",
		"intent":   "learning",
	})
	assert.Equal(t, "lint", rctx.EffectiveScenario())
}

func TestSearchRequiresQuery(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSearchKnowledge(context.Background(), callRequest(map[string]interface{}{}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)
}

func TestSearchLimitBounds(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSearchKnowledge(context.Background(), callRequest(map[string]interface{}{
		"query": "anything",
		"limit": float64(500),
	}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestGetStatus(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleGetStatus(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	payload := resultJSON(t, result)
	assert.Equal(t, false, payload["indexed"])

	_, err = s.handleIndexKnowledge(ctx, callRequest(map[string]interface{}{
		"path": writeCorpus(t),
	}))
	require.NoError(t, err)

	result, err = s.handleGetStatus(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	payload = resultJSON(t, result)
	assert.Equal(t, true, payload["indexed"])

	manifest, ok := payload["manifest"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), manifest["count"])
	assert.Equal(t, "local-hash", manifest["embedding_model"])

	embInfo, ok := payload["embedder"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "local", embInfo["provider"])
}

func TestCacheStats(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleIndexKnowledge(ctx, callRequest(map[string]interface{}{
		"path": writeCorpus(t),
	}))
	require.NoError(t, err)

	result, err := s.handleCacheStats(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	payload := resultJSON(t, result)

	embCache, ok := payload["embedding_cache"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), embCache["stores"])

	queryCache, ok := payload["query_cache"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(0), queryCache["entries"])
}

func TestDryRunLeavesStoreEmpty(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleIndexKnowledge(ctx, callRequest(map[string]interface{}{
		"path":    writeCorpus(t),
		"dry_run": true,
	}))
	require.NoError(t, err)
	payload := resultJSON(t, result)
	assert.Equal(t, true, payload["dry_run"])
	assert.Equal(t, 0, s.store.GetStats().Count)
}
