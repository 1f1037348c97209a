package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/precis-ai/precis/internal/fingerprint"
	"github.com/precis-ai/precis/internal/mcp"
	"github.com/precis-ai/precis/internal/token"
)

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Run the MCP server on stdio",
	Long: `Run precis as a Model Context Protocol server on stdio.

Exposes precis_summarize, precis_estimate, precis_cache_stats, and
precis_cache_invalidate as tools, plus recent cached summaries as a
resource. Intended to be launched by an MCP host such as Claude Desktop.`,
	Args: cobra.NoArgs,
	RunE: runServeMCP,
}

func init() {
	rootCmd.AddCommand(serveMCPCmd)
}

func runServeMCP(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	c, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer c.Close()

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	srv := mcp.NewServer(mcp.ServerConfig{
		Cache:        c,
		Fingerprints: fingerprint.NewProvider(0),
		Estimator:    token.NewEstimator(token.DefaultEstimatorConfig()),
		NewSummarizer: func(language string) mcp.Summarizer {
			return newPipeline(cfg, provider, language, log, nil)
		},
		ContextTokens: cfg.ContextTokens.IntOr(0),
		Language:      cfg.Language.Value,
		Version:       version,
		Logger:        log,
	})

	log.Info("starting MCP server", "model", provider.Name(), "db", cfg.DBPath.Value)
	return mcp.Serve(srv)
}
