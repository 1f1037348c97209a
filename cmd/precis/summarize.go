package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/precis-ai/precis/internal/extract"
	"github.com/precis-ai/precis/internal/fingerprint"
	"github.com/precis-ai/precis/internal/logger"
	"github.com/precis-ai/precis/internal/mcp"
	"github.com/precis-ai/precis/internal/summarize"
)

var (
	flagContextTokens int
	flagBatchSize     int
	flagLanguage      string
	flagNoCache       bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Summarize a document",
	Long: `Summarize a document and print the summary to stdout.

The summary is cached by content fingerprint. Summarizing the same unchanged
file again returns the cached result without calling the LLM.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().IntVar(&flagContextTokens, "context-tokens", 0, fmt.Sprintf("model context window in tokens (default %d)", mcp.DefaultContextTokens))
	summarizeCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, fmt.Sprintf("chunks summarized concurrently (default %d, max %d)", summarize.DefaultBatchSize, summarize.MaxBatchSize))
	summarizeCmd.Flags().StringVar(&flagLanguage, "language", "", "summary language (default: detected from the document)")
	summarizeCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "skip the cache and re-summarize")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := cmd.Context()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	fp, err := fingerprint.NewProvider(0).ForFile(path)
	if err != nil {
		return fmt.Errorf("fingerprinting %s: %w", path, err)
	}

	c, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer c.Close()

	if !flagNoCache {
		entry, err := c.Get(ctx, fp)
		if err != nil {
			log.Warn("cache lookup failed", "error", err)
		}
		if entry != nil {
			log.Info("cache hit", "fingerprint", fp.Value, "created_at", entry.CreatedAt)
			fmt.Println(entry.Summary)
			return nil
		}
	}

	doc, err := extract.Load(path)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", path, err)
	}
	log.Info("extracted document", "format", doc.Format, "pages", doc.PageCount)

	language := cfg.Language.Value
	if language == "" {
		language = extract.DetectLanguage(doc.PageTaggedText)
	}
	if language != "" {
		log.Debug("target language", "language", language)
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	log.Info("summarizing", "model", provider.Name())

	pipe := newPipeline(cfg, provider, language, log, progressLogger(log))
	contextTokens := cfg.ContextTokens.IntOr(mcp.DefaultContextTokens)

	result, err := pipe.Summarize(ctx, doc.PageTaggedText, contextTokens)
	if err != nil {
		return err
	}

	if err := c.Put(ctx, fp, result.Summary); err != nil {
		log.Warn("caching summary failed", "error", err)
	}

	if result.ChunksFailed > 0 {
		log.Warn("partial summary", "failed_chunks", result.ChunksFailed, "total_chunks", result.TotalChunks)
	}
	fmt.Println(result.Summary)
	return nil
}

func progressLogger(log logger.Logger) summarize.ProgressFunc {
	return func(p summarize.Progress) {
		switch p.Stage {
		case summarize.StageBatching:
			log.Info("batch complete",
				"batch", p.CurrentBatch, "total_batches", p.TotalBatches,
				"succeeded", p.ChunksSucceeded, "failed", p.ChunksFailed)
		case summarize.StageConsolidating:
			log.Info("consolidating partial summaries")
		}
	}
}
