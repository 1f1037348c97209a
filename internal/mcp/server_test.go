package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/precis-ai/precis/internal/cache"
	"github.com/precis-ai/precis/internal/fingerprint"
	"github.com/precis-ai/precis/internal/summarize"
)

// fakeSummarizer records calls and returns a canned result.
type fakeSummarizer struct {
	mu       sync.Mutex
	calls    int
	language string
	err      error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string, contextTokens int) (*summarize.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &summarize.Result{
		RunID:           "run-test",
		Summary:         "A faked summary.",
		FastPath:        true,
		TotalChunks:     1,
		ChunksSucceeded: 1,
	}, nil
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestServer(t *testing.T, fake *fakeSummarizer) *server.MCPServer {
	t.Helper()
	c, err := cache.New(cache.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return NewServer(ServerConfig{
		Cache:        c,
		Fingerprints: fingerprint.NewProvider(0),
		NewSummarizer: func(language string) Summarizer {
			fake.mu.Lock()
			fake.language = language
			fake.mu.Unlock()
			return fake
		},
		Version: "test",
	})
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test doc: %v", err)
	}
	return path
}

// callTool invokes an MCP tool through the server's JSON-RPC entry point.
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

// readResource reads an MCP resource through the server's JSON-RPC entry point.
func readResource(t *testing.T, srv *server.MCPServer, uri string) string {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "resources/read",
		"params": map[string]interface{}{
			"uri": uri,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Contents []struct {
				Text string `json:"text"`
			} `json:"contents"`
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
	if len(resp.Result.Contents) == 0 {
		t.Fatal("no contents in resource response")
	}
	return resp.Result.Contents[0].Text
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

func TestNewServer(t *testing.T) {
	srv := newTestServer(t, &fakeSummarizer{})
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

func TestSummarizeToolCachesResult(t *testing.T) {
	fake := &fakeSummarizer{}
	srv := newTestServer(t, fake)
	path := writeDoc(t, "The committee approved the annual budget without amendment.")

	// First call computes.
	result := callTool(t, srv, "precis_summarize", map[string]interface{}{"path": path})
	if result.IsError {
		t.Fatalf("tool error: %s", getTextContent(t, result))
	}
	var first struct {
		Summary string `json:"summary"`
		Cached  bool   `json:"cached"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &first); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if first.Cached {
		t.Error("first call should not be cached")
	}
	if first.Summary != "A faked summary." {
		t.Errorf("summary: got %q", first.Summary)
	}

	// Second call hits the cache; the summarizer is not consulted again.
	result = callTool(t, srv, "precis_summarize", map[string]interface{}{"path": path})
	var second struct {
		Summary string `json:"summary"`
		Cached  bool   `json:"cached"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &second); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if !second.Cached {
		t.Error("second call should be cached")
	}
	if second.Summary != first.Summary {
		t.Errorf("cached summary differs: %q vs %q", second.Summary, first.Summary)
	}
	if fake.callCount() != 1 {
		t.Errorf("summarizer calls: got %d, want 1", fake.callCount())
	}
}

func TestSummarizeToolNoCacheFlag(t *testing.T) {
	fake := &fakeSummarizer{}
	srv := newTestServer(t, fake)
	path := writeDoc(t, "Some content worth summarizing twice.")

	callTool(t, srv, "precis_summarize", map[string]interface{}{"path": path})
	callTool(t, srv, "precis_summarize", map[string]interface{}{"path": path, "no_cache": true})

	if fake.callCount() != 2 {
		t.Errorf("summarizer calls: got %d, want 2", fake.callCount())
	}
}

func TestSummarizeToolMissingPath(t *testing.T) {
	srv := newTestServer(t, &fakeSummarizer{})
	result := callTool(t, srv, "precis_summarize", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error for missing path argument")
	}
}

func TestSummarizeToolMissingFile(t *testing.T) {
	srv := newTestServer(t, &fakeSummarizer{})
	result := callTool(t, srv, "precis_summarize", map[string]interface{}{
		"path": filepath.Join(t.TempDir(), "absent.pdf"),
	})
	if !result.IsError {
		t.Fatal("expected error for missing file")
	}
}

func TestEstimateTool(t *testing.T) {
	srv := newTestServer(t, &fakeSummarizer{})
	path := writeDoc(t, "Forty characters of text sit right here.")

	result := callTool(t, srv, "precis_estimate", map[string]interface{}{"path": path})
	if result.IsError {
		t.Fatalf("tool error: %s", getTextContent(t, result))
	}

	var payload struct {
		Tokens     int     `json:"tokens"`
		Characters int     `json:"characters"`
		Method     string  `json:"estimation_method"`
		Confidence float64 `json:"confidence"`
		Pages      int     `json:"pages"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &payload); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if payload.Tokens <= 0 {
		t.Errorf("tokens: got %d", payload.Tokens)
	}
	if payload.Method != "character-based" {
		t.Errorf("method: got %q", payload.Method)
	}
	if payload.Pages != 1 {
		t.Errorf("pages: got %d, want 1", payload.Pages)
	}
	if payload.Confidence < 0 || payload.Confidence > 0.95 {
		t.Errorf("confidence out of range: %v", payload.Confidence)
	}
}

func TestCacheStatsTool(t *testing.T) {
	fake := &fakeSummarizer{}
	srv := newTestServer(t, fake)
	path := writeDoc(t, "Content for the stats test.")

	callTool(t, srv, "precis_summarize", map[string]interface{}{"path": path})

	result := callTool(t, srv, "precis_cache_stats", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("tool error: %s", getTextContent(t, result))
	}
	var stats struct {
		EntryCount int64 `json:"entry_count"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &stats); err != nil {
		t.Fatalf("parsing stats: %v", err)
	}
	if stats.EntryCount != 1 {
		t.Errorf("entry count: got %d, want 1", stats.EntryCount)
	}
}

func TestCacheInvalidateTool(t *testing.T) {
	fake := &fakeSummarizer{}
	srv := newTestServer(t, fake)
	path := writeDoc(t, "Content that will be invalidated.")

	callTool(t, srv, "precis_summarize", map[string]interface{}{"path": path})

	result := callTool(t, srv, "precis_cache_invalidate", map[string]interface{}{"path": path})
	if result.IsError {
		t.Fatalf("tool error: %s", getTextContent(t, result))
	}

	// Next summarize recomputes.
	callTool(t, srv, "precis_summarize", map[string]interface{}{"path": path})
	if fake.callCount() != 2 {
		t.Errorf("summarizer calls: got %d, want 2", fake.callCount())
	}
}

func TestRecentResource(t *testing.T) {
	fake := &fakeSummarizer{}
	srv := newTestServer(t, fake)
	path := writeDoc(t, "Content for the recent-summaries resource.")

	callTool(t, srv, "precis_summarize", map[string]interface{}{"path": path})

	text := readResource(t, srv, "precis://cache/recent")
	var payload struct {
		Count     int `json:"count"`
		Summaries []struct {
			Fingerprint string `json:"fingerprint"`
			Preview     string `json:"preview"`
		} `json:"summaries"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("parsing resource: %v", err)
	}
	if payload.Count != 1 {
		t.Fatalf("count: got %d, want 1", payload.Count)
	}
	if payload.Summaries[0].Preview != "A faked summary." {
		t.Errorf("preview: got %q", payload.Summaries[0].Preview)
	}
}
