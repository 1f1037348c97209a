// Package token provides statistical token estimation for LLM context budgeting.
//
// Counts are approximations derived from character length, not tokenizer
// output. Exact counting would require the target model's tokenizer, which is
// not available locally; the chunk-size ratio leaves enough margin that the
// approximation stays safely under context limits.
package token

import (
	"math"
	"strings"
	"unicode"
)

// EstimationMethod identifies how a token count was produced.
type EstimationMethod string

// MethodCharacterBased is the only method currently implemented.
const MethodCharacterBased EstimationMethod = "character-based"

// typicalWordLength is the average length of a natural-language word in
// characters. Used only for the diagnostic confidence score.
const typicalWordLength = 4.5

// floatSlack absorbs binary-representation error before ceil/floor so that
// exact ratios (e.g. 400 chars at 4.0 chars/token with 10% overhead) don't
// round one token off.
const floatSlack = 1e-9

// Estimate is the result of EstimateWithMetadata.
type Estimate struct {
	Tokens     int              `json:"tokens"`
	Characters int              `json:"characters"`
	Method     EstimationMethod `json:"estimation_method"`

	// Confidence is a 0-1 heuristic signal for UI and logging.
	// It never alters chunking or pipeline decisions.
	Confidence float64 `json:"confidence"`
}

// EstimatorConfig holds the tunable constants of the estimation model.
type EstimatorConfig struct {
	// CharsPerToken is the assumed characters-per-token ratio. Default: 4.0.
	CharsPerToken float64

	// OverheadRatio inflates the raw character-derived count to account for
	// tokenizer inefficiency versus plain character division. Default: 0.1.
	OverheadRatio float64

	// PromptReserveTokens is subtracted from a model's context window before
	// chunk sizing, covering the prompt template and response. Default: 500.
	PromptReserveTokens int

	// ChunkSizeRatio scales the remaining window when deriving the optimal
	// chunk size, leaving headroom for estimation error. Must be < 1.0.
	// Default: 0.8.
	ChunkSizeRatio float64
}

// DefaultEstimatorConfig returns the recommended estimation constants.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		CharsPerToken:       4.0,
		OverheadRatio:       0.1,
		PromptReserveTokens: 500,
		ChunkSizeRatio:      0.8,
	}
}

// Estimator converts text to approximate token counts.
type Estimator struct {
	config EstimatorConfig
}

// NewEstimator creates an Estimator with the given config. Zero or negative
// config fields fall back to defaults.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	def := DefaultEstimatorConfig()
	if cfg.CharsPerToken <= 0 {
		cfg.CharsPerToken = def.CharsPerToken
	}
	if cfg.OverheadRatio < 0 {
		cfg.OverheadRatio = def.OverheadRatio
	}
	if cfg.PromptReserveTokens <= 0 {
		cfg.PromptReserveTokens = def.PromptReserveTokens
	}
	if cfg.ChunkSizeRatio <= 0 || cfg.ChunkSizeRatio >= 1.0 {
		cfg.ChunkSizeRatio = def.ChunkSizeRatio
	}
	return &Estimator{config: cfg}
}

// Estimate returns the approximate token count for text.
// Deterministic: the same input always yields the same count.
func (e *Estimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	base := math.Ceil(float64(len(text))/e.config.CharsPerToken - floatSlack)
	return int(math.Ceil(base*(1+e.config.OverheadRatio) - floatSlack))
}

// EstimateWithMetadata returns the token count plus a diagnostic confidence
// score for the character-based model on this particular text.
func (e *Estimator) EstimateWithMetadata(text string) Estimate {
	return Estimate{
		Tokens:     e.Estimate(text),
		Characters: len(text),
		Method:     MethodCharacterBased,
		Confidence: confidence(text),
	}
}

// OptimalChunkSize derives the per-chunk token budget for a model with the
// given total context window.
func (e *Estimator) OptimalChunkSize(maxModelTokens int) int {
	usable := maxModelTokens - e.config.PromptReserveTokens
	if usable <= 0 {
		return 0
	}
	return int(math.Floor(float64(usable)*e.config.ChunkSizeRatio + floatSlack))
}

// TokensToCharacters converts a token count back to an approximate character
// count. For UI estimation displays only.
func (e *Estimator) TokensToCharacters(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	return int(float64(tokens) * e.config.CharsPerToken)
}

// CharactersToTokens converts a character count to an approximate token count
// without the overhead inflation applied by Estimate.
func (e *Estimator) CharactersToTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	return int(math.Ceil(float64(chars) / e.config.CharsPerToken))
}

// confidence scores how well the character-based model fits the text.
// Alphanumeric-dense text with near-average word lengths scores highest.
// Capped at 0.95: the model is never certain.
func confidence(text string) float64 {
	if len(text) == 0 {
		return 0
	}

	var friendly int
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			friendly++
		}
	}
	runeCount := len([]rune(text))
	density := float64(friendly) / float64(runeCount)

	wordScore := 0.0
	if words := strings.Fields(text); len(words) > 0 {
		var total int
		for _, w := range words {
			total += len([]rune(w))
		}
		avg := float64(total) / float64(len(words))
		deviation := math.Abs(avg-typicalWordLength) / typicalWordLength
		wordScore = math.Max(0, 1-deviation)
	}

	score := density*0.6 + wordScore*0.4
	return math.Min(score, 0.95)
}
