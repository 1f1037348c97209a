// Package summarize implements hierarchical (map-reduce) summarization.
//
// Small documents are summarized in one backend call. Larger ones are split
// into token-bounded semantic chunks, each chunk is summarized independently
// in fixed-size concurrent batches, and the surviving partial summaries are
// merged by one final consolidation call. A chunk that exhausts its retries
// is recorded and skipped rather than aborting the run; the pipeline only
// fails outright when nothing at all could be summarized.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/precis-ai/precis/internal/chunk"
	"github.com/precis-ai/precis/internal/logger"
	"github.com/precis-ai/precis/internal/retry"
	"github.com/precis-ai/precis/internal/token"
)

// DefaultBatchSize is the number of chunks summarized concurrently.
const DefaultBatchSize = 3

// MaxBatchSize caps configured batch sizes to respect backend rate limits.
const MaxBatchSize = 8

// Stage identifies where a run currently is.
type Stage string

const (
	StageChunking      Stage = "chunking"
	StageBatching      Stage = "batching"
	StageConsolidating Stage = "consolidating"
	StageDone          Stage = "done"
)

// Progress is reported after each batch and at consolidation.
type Progress struct {
	Stage           Stage `json:"stage"`
	CurrentBatch    int   `json:"current_batch"`
	TotalBatches    int   `json:"total_batches"`
	ChunksSucceeded int   `json:"chunks_succeeded"`
	ChunksFailed    int   `json:"chunks_failed"`
}

// ProgressFunc receives progress updates. Fire-and-forget; the pipeline
// never consumes a return value.
type ProgressFunc func(Progress)

// ChunkSummary is the outcome of one attempted chunk. A failed chunk still
// occupies its slot so consolidation can report partial coverage instead of
// silently dropping content.
type ChunkSummary struct {
	ChunkIndex  int    `json:"chunk_index"`
	SummaryText string `json:"summary_text"`
	Succeeded   bool   `json:"succeeded"`
	Error       string `json:"error,omitempty"`
}

// Options configures a Pipeline.
type Options struct {
	BatchSize   int           // ≤0 = DefaultBatchSize, capped at MaxBatchSize
	Retry       retry.Options // zero fields filled with defaults; nil classifier = model-error classifier
	Language    string        // Target summary language ("" = English)
	ChunkConfig *chunk.Config // Override chunking config (nil = derived from the model context window)
	Progress    ProgressFunc  // Optional progress sink
	Logger      logger.Logger // nil = discard
}

// Result is a completed summarization run.
type Result struct {
	RunID           string         `json:"run_id"`
	Summary         string         `json:"summary"`
	FastPath        bool           `json:"fast_path"`
	TotalChunks     int            `json:"total_chunks"`
	ChunksSucceeded int            `json:"chunks_succeeded"`
	ChunksFailed    int            `json:"chunks_failed"`
	Summaries       []ChunkSummary `json:"summaries,omitempty"`
}

// Pipeline orchestrates chunking, batched backend calls, and consolidation.
type Pipeline struct {
	backend   Backend
	estimator *token.Estimator
	splitter  *chunk.Splitter
	batchSize int
	retryOpts retry.Options
	language  string
	chunkCfg  *chunk.Config
	progress  ProgressFunc
	log       logger.Logger
}

// New creates a Pipeline around the given backend. est may be nil, in which
// case a default estimator is used.
func New(backend Backend, est *token.Estimator, opts Options) *Pipeline {
	if est == nil {
		est = token.NewEstimator(token.DefaultEstimatorConfig())
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	retryOpts := opts.Retry
	if retryOpts.MaxAttempts < 1 {
		retryOpts.MaxAttempts = retry.DefaultMaxAttempts
	}
	if retryOpts.Backoff <= 0 {
		retryOpts.Backoff = retry.DefaultBackoff
	}
	if retryOpts.ShouldRetry == nil {
		retryOpts.ShouldRetry = retry.IsModelError
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{
		backend:   backend,
		estimator: est,
		splitter:  chunk.NewSplitter(est),
		batchSize: batchSize,
		retryOpts: retryOpts,
		language:  opts.Language,
		chunkCfg:  opts.ChunkConfig,
		progress:  opts.Progress,
		log:       log,
	}
}

// Summarize turns page-tagged document text into a single summary.
//
// Documents that fit within the optimal single-chunk size skip chunking
// entirely. Otherwise chunks are processed in concurrent batches; a batch
// does not start until the previous one has fully settled, and cancellation
// is honored at batch boundaries (in-flight calls are not preempted).
func (p *Pipeline) Summarize(ctx context.Context, pageTaggedText string, modelContextTokens int) (*Result, error) {
	runID := uuid.NewString()
	log := p.log.With("run_id", runID)

	if strings.TrimSpace(pageTaggedText) == "" {
		return nil, &PipelineError{
			Kind:    ErrNoChunkableContent,
			Message: "no chunkable content: input is empty",
		}
	}

	totalTokens := p.estimator.Estimate(pageTaggedText)
	optimal := p.estimator.OptimalChunkSize(modelContextTokens)

	// Full-content fast path: artificial splitting of a small document costs
	// latency and summary quality for nothing.
	if totalTokens <= optimal {
		log.Info("summarizing in a single pass", "tokens", totalTokens, "chunk_budget", optimal)
		system, prompt := buildDocumentPrompt(p.language, pageTaggedText)
		out, err := retry.Do(ctx, p.retryOpts, func(ctx context.Context) (string, error) {
			return p.backend.Summarize(ctx, system, prompt)
		})
		if err != nil {
			return nil, fmt.Errorf("summarizing document: %w", err)
		}
		p.report(Progress{Stage: StageDone, ChunksSucceeded: 1})
		return &Result{
			RunID:           runID,
			Summary:         out,
			FastPath:        true,
			TotalChunks:     1,
			ChunksSucceeded: 1,
		}, nil
	}

	p.report(Progress{Stage: StageChunking})
	cfg := p.splitter.DefaultConfig(modelContextTokens)
	if p.chunkCfg != nil {
		cfg = *p.chunkCfg
	}
	chunks := p.splitter.SemanticChunks(pageTaggedText, cfg)
	if len(chunks) == 0 {
		return nil, &PipelineError{
			Kind:    ErrNoChunkableContent,
			Message: "no chunkable content: no page markers found in input",
		}
	}
	log.Info("chunked document", "chunks", len(chunks), "tokens", totalTokens, "chunk_budget", cfg.MaxTokensPerChunk)

	summaries, err := p.processChunks(ctx, chunks, log)
	if err != nil {
		return nil, err
	}

	succeeded, failed := tally(summaries)
	if succeeded == 0 {
		return nil, &PipelineError{
			Kind:         ErrAllChunksFailed,
			Message:      fmt.Sprintf("all %d chunks failed to summarize", len(chunks)),
			TotalChunks:  len(chunks),
			FailedChunks: failed,
		}
	}
	if failed > 0 {
		log.Warn("continuing with partial coverage", "succeeded", succeeded, "failed", failed)
	}

	if ctx.Err() != nil {
		return nil, cancelledError(len(chunks), failed)
	}

	totalBatches := batchCount(len(chunks), p.batchSize)
	p.report(Progress{
		Stage:           StageConsolidating,
		CurrentBatch:    totalBatches,
		TotalBatches:    totalBatches,
		ChunksSucceeded: succeeded,
		ChunksFailed:    failed,
	})

	final, err := p.consolidate(ctx, summaries)
	if err != nil {
		return nil, fmt.Errorf("consolidating partial summaries: %w", err)
	}

	p.report(Progress{
		Stage:           StageDone,
		CurrentBatch:    totalBatches,
		TotalBatches:    totalBatches,
		ChunksSucceeded: succeeded,
		ChunksFailed:    failed,
	})
	log.Info("summarization complete", "chunks", len(chunks), "failed", failed)

	return &Result{
		RunID:           runID,
		Summary:         final,
		TotalChunks:     len(chunks),
		ChunksSucceeded: succeeded,
		ChunksFailed:    failed,
		Summaries:       summaries,
	}, nil
}

// processChunks summarizes chunks in fixed-size concurrent batches. Results
// are written back by slot index, so consolidation always reads chunk order
// regardless of completion timing. Batch N+1 does not start until batch N
// has fully settled.
func (p *Pipeline) processChunks(ctx context.Context, chunks []chunk.Chunk, log logger.Logger) ([]ChunkSummary, error) {
	summaries := make([]ChunkSummary, len(chunks))
	totalBatches := batchCount(len(chunks), p.batchSize)
	succeeded, failed := 0, 0

	for start := 0; start < len(chunks); start += p.batchSize {
		if ctx.Err() != nil {
			return nil, cancelledError(len(chunks), failed)
		}
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int, c chunk.Chunk) {
				defer wg.Done()
				system, prompt := buildChunkPrompt(p.language, c.Content)
				out, err := retry.Do(ctx, p.retryOpts, func(ctx context.Context) (string, error) {
					return p.backend.Summarize(ctx, system, prompt)
				})
				if err != nil {
					// Exhausted retries: record and move on. One bad chunk
					// must not cost the rest of the document its summary.
					summaries[i] = ChunkSummary{ChunkIndex: c.Index, Error: err.Error()}
					return
				}
				summaries[i] = ChunkSummary{ChunkIndex: c.Index, SummaryText: out, Succeeded: true}
			}(i, chunks[i])
		}
		wg.Wait()

		for i := start; i < end; i++ {
			if summaries[i].Succeeded {
				succeeded++
			} else {
				failed++
				log.Warn("chunk failed", "chunk", summaries[i].ChunkIndex, "error", summaries[i].Error)
			}
		}
		p.report(Progress{
			Stage:           StageBatching,
			CurrentBatch:    start/p.batchSize + 1,
			TotalBatches:    totalBatches,
			ChunksSucceeded: succeeded,
			ChunksFailed:    failed,
		})
	}
	return summaries, nil
}

// consolidate joins succeeded summaries in chunk order (gaps from failed
// chunks are omitted, not placeholdered) and runs the final hierarchical
// backend call over the result.
func (p *Pipeline) consolidate(ctx context.Context, summaries []ChunkSummary) (string, error) {
	var sb strings.Builder
	for _, s := range summaries {
		if !s.Succeeded {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(s.SummaryText)
	}

	system, prompt := buildConsolidatePrompt(p.language, sb.String())
	return retry.Do(ctx, p.retryOpts, func(ctx context.Context) (string, error) {
		return p.backend.Summarize(ctx, system, prompt)
	})
}

func (p *Pipeline) report(pr Progress) {
	if p.progress != nil {
		p.progress(pr)
	}
}

func tally(summaries []ChunkSummary) (succeeded, failed int) {
	for _, s := range summaries {
		if s.Succeeded {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

func batchCount(chunks, batchSize int) int {
	return (chunks + batchSize - 1) / batchSize
}

func cancelledError(total, failed int) *PipelineError {
	return &PipelineError{
		Kind:         ErrCancelled,
		Message:      "summarization cancelled",
		TotalChunks:  total,
		FailedChunks: failed,
	}
}
