// Package mcp exposes the extracted knowledge base over the Model Context
// Protocol, so agent clients can query pairs and store statistics without
// touching the database directly.
//
// Three read-only tools are served over stdio: search, recent pairs, and
// store stats. The extraction engine itself has no network surface; this
// server is an adapter over the store.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/chatmine/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Version string
}

// dbMu serializes tool calls that touch the database; the mcp-go library
// dispatches handlers concurrently, and SQLite wants one writer at a time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with the knowledge-base tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"chatmine",
		ver,
		server.WithToolCapabilities(false),
	)

	registerSearchTool(s, cfg.Store)
	registerRecentTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)

	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func registerSearchTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("chatmine_search",
		mcp.WithDescription("Search extracted QA pairs by substring over question and answer text. Returns scored pairs with tags."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Substring to search for (CJK text supported)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := 20
		if v, err := req.RequireFloat("limit"); err == nil {
			limit = int(v)
			if limit > 100 {
				limit = 100
			}
		}

		pairs, err := st.SearchPairs(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
		}

		return jsonResult(pairs), nil
	})
}

func registerRecentTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("chatmine_recent",
		mcp.WithDescription("List the most recently extracted QA pairs."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of pairs (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := 20
		if v, err := req.RequireFloat("limit"); err == nil {
			limit = int(v)
			if limit > 100 {
				limit = 100
			}
		}

		pairs, err := st.RecentPairs(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("recent error: %v", err)), nil
		}

		return jsonResult(pairs), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("chatmine_stats",
		mcp.WithDescription("Report knowledge-base statistics: stored runs, pairs, and database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		return jsonResult(stats), nil
	})
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}
