// Package mcp provides a Model Context Protocol server for precis.
//
// It exposes document summarization, token estimation, and cache management
// as MCP tools, and recent cached summaries as an MCP resource. Stdio
// transport only (for Claude Desktop, Cursor, and similar hosts).
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/precis-ai/precis/internal/cache"
	"github.com/precis-ai/precis/internal/extract"
	"github.com/precis-ai/precis/internal/fingerprint"
	"github.com/precis-ai/precis/internal/logger"
	"github.com/precis-ai/precis/internal/summarize"
	"github.com/precis-ai/precis/internal/token"
)

// DefaultContextTokens is assumed when no context window is configured.
const DefaultContextTokens = 128000

// Summarizer is the pipeline capability the server drives.
type Summarizer interface {
	Summarize(ctx context.Context, pageTaggedText string, modelContextTokens int) (*summarize.Result, error)
}

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Cache         *cache.Cache
	Fingerprints  *fingerprint.Provider
	Estimator     *token.Estimator
	NewSummarizer func(language string) Summarizer // built per request so the detected language reaches the prompts
	ContextTokens int                              // model context window (0 = DefaultContextTokens)
	Language      string                           // summary language override ("" = detect per document)
	Version       string                           // version string for MCP server info
	Logger        logger.Logger
}

// dbMu serializes MCP tool calls that touch the cache database.
// The mcp-go library dispatches handlers concurrently via goroutines.
// SQLite (even with WAL) supports only one writer at a time; a global mutex
// keeps put/evict sequences ordered with respect to lookups.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all precis tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	if cfg.ContextTokens <= 0 {
		cfg.ContextTokens = DefaultContextTokens
	}
	if cfg.Estimator == nil {
		cfg.Estimator = token.NewEstimator(token.DefaultEstimatorConfig())
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}

	s := server.NewMCPServer(
		"Precis",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerSummarizeTool(s, cfg)
	registerEstimateTool(s, cfg)
	registerCacheStatsTool(s, cfg)
	registerCacheInvalidateTool(s, cfg)

	registerRecentResource(s, cfg)

	return s
}

// Serve runs the server on stdio until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// --- Tools ---

func registerSummarizeTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("precis_summarize",
		mcp.WithDescription("Summarize a document (PDF, HTML, text, or markdown). Large documents are chunked and summarized hierarchically. Results are cached by content fingerprint; an unchanged file returns instantly."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the document to summarize"),
		),
		mcp.WithNumber("context_tokens",
			mcp.Description(fmt.Sprintf("Model context window in tokens (default: %d)", cfg.ContextTokens)),
		),
		mcp.WithBoolean("no_cache",
			mcp.Description("Skip the cache lookup and re-summarize (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError("path is required"), nil
		}

		contextTokens := cfg.ContextTokens
		if v, err := req.RequireFloat("context_tokens"); err == nil && int(v) > 0 {
			contextTokens = int(v)
		}

		noCache := false
		if v, err := req.RequireBool("no_cache"); err == nil {
			noCache = v
		}

		fp, err := cfg.Fingerprints.ForFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fingerprint error: %v", err)), nil
		}

		if !noCache {
			dbMu.Lock()
			entry, err := cfg.Cache.Get(ctx, fp)
			dbMu.Unlock()
			if err != nil {
				cfg.Logger.Warn("cache lookup failed", "path", path, "error", err)
			}
			if entry != nil {
				return summarizeResult(map[string]any{
					"summary":     entry.Summary,
					"cached":      true,
					"fingerprint": entry.Fingerprint,
					"created_at":  entry.CreatedAt,
				}), nil
			}
		}

		doc, err := extract.Load(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extraction error: %v", err)), nil
		}

		lang := cfg.Language
		if lang == "" {
			lang = extract.DetectLanguage(doc.PageTaggedText)
		}

		res, err := cfg.NewSummarizer(lang).Summarize(ctx, doc.PageTaggedText, contextTokens)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("summarization error: %v", err)), nil
		}

		dbMu.Lock()
		putErr := cfg.Cache.Put(ctx, fp, res.Summary)
		dbMu.Unlock()
		if putErr != nil {
			cfg.Logger.Warn("cache write failed", "path", path, "error", putErr)
		}

		return summarizeResult(map[string]any{
			"summary":          res.Summary,
			"cached":           false,
			"fingerprint":      fp.Value,
			"run_id":           res.RunID,
			"fast_path":        res.FastPath,
			"pages":            doc.PageCount,
			"total_chunks":     res.TotalChunks,
			"chunks_succeeded": res.ChunksSucceeded,
			"chunks_failed":    res.ChunksFailed,
			"language":         lang,
		}), nil
	})
}

func registerEstimateTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("precis_estimate",
		mcp.WithDescription("Estimate the token count of a document using the statistical character-ratio model, with a diagnostic confidence score."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the document to estimate"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError("path is required"), nil
		}

		doc, err := extract.Load(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extraction error: %v", err)), nil
		}

		est := cfg.Estimator.EstimateWithMetadata(doc.PageTaggedText)
		payload := map[string]any{
			"path":              path,
			"format":            doc.Format,
			"pages":             doc.PageCount,
			"tokens":            est.Tokens,
			"characters":        est.Characters,
			"estimation_method": est.Method,
			"confidence":        est.Confidence,
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerCacheStatsTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("precis_cache_stats",
		mcp.WithDescription("Report summary cache statistics: entry count, database size, and hit/miss counters."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := cfg.Cache.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}
		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerCacheInvalidateTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("precis_cache_invalidate",
		mcp.WithDescription("Remove the cached summary for a document, forcing the next summarize call to recompute."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the document whose cached summary should be removed"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError("path is required"), nil
		}

		fp, err := cfg.Fingerprints.ForFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fingerprint error: %v", err)), nil
		}

		dbMu.Lock()
		defer dbMu.Unlock()
		if err := cfg.Cache.Invalidate(ctx, fp.Value); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalidate error: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("invalidated cache entry for %s", path)), nil
	})
}

// --- Resources ---

func registerRecentResource(s *server.MCPServer, cfg ServerConfig) {
	resource := mcp.NewResource(
		"precis://cache/recent",
		"Recent Summaries",
		mcp.WithResourceDescription("The most recently cached document summaries."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		entries, err := cfg.Cache.Recent(ctx, 10)
		if err != nil {
			return nil, fmt.Errorf("querying recent summaries: %w", err)
		}

		type recentEntry struct {
			Fingerprint string `json:"fingerprint"`
			Preview     string `json:"preview"`
			CreatedAt   string `json:"created_at"`
		}
		recent := make([]recentEntry, 0, len(entries))
		for _, e := range entries {
			recent = append(recent, recentEntry{
				Fingerprint: e.Fingerprint,
				Preview:     preview(e.Summary, 200),
				CreatedAt:   e.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		payload := map[string]any{
			"summaries": recent,
			"count":     len(recent),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func summarizeResult(payload map[string]any) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(data))
}

func preview(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
