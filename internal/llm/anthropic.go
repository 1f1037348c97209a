package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicProvider implements Provider using the official Anthropic SDK.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

// defaultAnthropicMaxTokens is used when the caller leaves MaxTokens unset;
// the Messages API requires an explicit value.
const defaultAnthropicMaxTokens = 1024

func newAnthropicProvider(apiKey, model, baseURL string) *anthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries happen one level up, with our own classification and
		// backoff. SDK-level retries would multiply attempts.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &anthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (a *anthropicProvider) Name() string {
	return "anthropic/" + a.model
}

func (a *anthropicProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	model := a.model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.System}}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from anthropic API")
	}

	return strings.TrimSpace(sb.String()), nil
}
