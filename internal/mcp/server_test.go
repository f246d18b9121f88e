package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/chatmine/internal/qa"
	"github.com/hurttlocker/chatmine/internal/store"
)

// helper: create a test store with one saved run
func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.New(store.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	run := &store.Run{
		InputPath:  "/data/chat.csv",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Messages:   4,
		Sessions:   1,
		Pairs:      2,
	}
	pairs := []qa.Pair{
		{
			CustomerID: "mImjj8823",
			AgentID:    "客服小王(1001)",
			Question:   "我的ETC卡无法扣费,怎么办?",
			Answer:     "已为您处理,ETC余额已扣款",
			Timestamp:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			Tags:       []string{"ETC业务", "支付问题"},
			Score:      0.42,
		},
		{
			CustomerID: "mImjj1",
			AgentID:    "客服(1)",
			Question:   "订单什么时候发货",
			Answer:     "您的订单已发货",
			Tags:       []string{"订单问题", "物流问题"},
			Score:      0.55,
		},
	}
	if _, err := s.SaveRun(context.Background(), run, pairs); err != nil {
		t.Fatalf("saving test run: %v", err)
	}
	return s
}

func TestNewServer(t *testing.T) {
	s := setupTestStore(t)
	if srv := NewServer(ServerConfig{Store: s, Version: "test"}); srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

// callTool invokes an MCP tool through the JSON-RPC dispatch path.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	callResult := &mcplib.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			callResult.Content = append(callResult.Content, mcplib.NewTextContent(c.Text))
		}
	}
	return callResult
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found")
	return ""
}

func TestSearchTool(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s, Version: "test"})

	result := callTool(t, srv, "chatmine_search", map[string]interface{}{
		"query": "扣费",
	})
	if result.IsError {
		t.Fatalf("search returned error: %s", getTextContent(t, result))
	}

	var pairs []store.StoredPair
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &pairs); err != nil {
		t.Fatalf("parsing search results: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected one match, got %d", len(pairs))
	}
	if pairs[0].CustomerID != "mImjj8823" {
		t.Errorf("matched wrong pair: %+v", pairs[0])
	}
}

func TestSearchToolRequiresQuery(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s, Version: "test"})

	result := callTool(t, srv, "chatmine_search", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("missing query should be a tool error")
	}
}

func TestRecentTool(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s, Version: "test"})

	result := callTool(t, srv, "chatmine_recent", map[string]interface{}{
		"limit": float64(1),
	})
	if result.IsError {
		t.Fatalf("recent returned error: %s", getTextContent(t, result))
	}

	var pairs []store.StoredPair
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &pairs); err != nil {
		t.Fatalf("parsing recent results: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("limit 1 returned %d pairs", len(pairs))
	}
	if pairs[0].Question != "订单什么时候发货" {
		t.Errorf("newest pair = %q", pairs[0].Question)
	}
}

func TestStatsTool(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s, Version: "test"})

	result := callTool(t, srv, "chatmine_stats", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("stats returned error: %s", getTextContent(t, result))
	}

	var stats store.Stats
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &stats); err != nil {
		t.Fatalf("parsing stats: %v", err)
	}
	if stats.Runs != 1 || stats.Pairs != 2 {
		t.Errorf("stats = %+v, want 1 run / 2 pairs", stats)
	}
}
