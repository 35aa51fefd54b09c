package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexKnowledgeTool returns the tool definition for index_knowledge.
func indexKnowledgeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_knowledge",
		Description: "Index a directory of knowledge documents (.md, .txt) to make them searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the document root directory",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-embed and re-upsert every chunk ignoring content hashes (full rebuild)",
					"default":     false,
				},
				"dry_run": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, report what would change without writing anything",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchKnowledgeTool returns the tool definition for search_knowledge.
func searchKnowledgeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_knowledge",
		Description: "Search indexed knowledge items through the staged ranking funnel",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"scenario": map[string]interface{}{
					"type":        "string",
					"description": "Ranking scenario selecting the signal weight table; unknown values use the default table",
					"enum":        []string{"default", "search", "lint", "generate", "learning"},
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Inferred caller intent, used as the scenario when none is given",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Preferred content language, boosts matching items",
				},
				"user_level": map[string]interface{}{
					"type":        "string",
					"description": "Caller's skill level for the difficulty signal",
					"enum":        []string{"beginner", "intermediate", "advanced", "expert"},
				},
				"session_history": map[string]interface{}{
					"type":        "array",
					"description": "Recent conversation snippets; overlapping items get a context boost",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status.
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index manifest, item counts, and embedding provider status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// cacheStatsTool returns the tool definition for cache_stats.
func cacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cache_stats",
		Description: "Report embedding-cache and query-cache counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
