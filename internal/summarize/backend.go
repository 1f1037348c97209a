package summarize

import (
	"context"

	"github.com/precis-ai/precis/internal/llm"
)

// Backend is the summarization capability the pipeline drives. It may fail
// with network or model errors; the pipeline classifies and retries those
// without knowing which concrete provider is behind the interface.
type Backend interface {
	Summarize(ctx context.Context, system, prompt string) (string, error)
}

// ProviderBackend adapts an llm.Provider to the Backend interface.
type ProviderBackend struct {
	Provider    llm.Provider
	MaxTokens   int     // 0 = provider default
	Temperature float64 // 0 = deterministic
}

func (b *ProviderBackend) Summarize(ctx context.Context, system, prompt string) (string, error) {
	return b.Provider.Complete(ctx, prompt, llm.CompletionOpts{
		System:      system,
		MaxTokens:   b.MaxTokens,
		Temperature: b.Temperature,
	})
}
