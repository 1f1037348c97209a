// Package chunk splits page-tagged document text into token-bounded chunks.
//
// Input is the page-marker format produced by the extract package: blocks of
// the literal form "--- Page N ---" followed by that page's text. Chunks
// respect sentence and paragraph boundaries where possible and carry an
// overlap of whole sentences across chunk boundaries so context survives the
// split. The package never fails: malformed input degrades to best-effort
// chunks or an empty result.
package chunk

import (
	"strings"

	"github.com/precis-ai/precis/internal/token"
)

// DefaultOverlapRatio is the fraction of a chunk's trailing content re-included
// at the start of the next chunk.
const DefaultOverlapRatio = 0.1

// Config controls one chunking pass. Immutable for the duration of the pass.
type Config struct {
	// MaxTokensPerChunk is the estimated token budget per chunk.
	MaxTokensPerChunk int

	// OverlapRatio in [0,1) is the trailing fraction of each chunk, by
	// estimated tokens, seeded into the next chunk as whole sentences.
	OverlapRatio float64

	// SentenceBoundary breaks chunks at sentence ends. When false, breaks
	// fall at paragraph boundaries (blank lines) instead.
	SentenceBoundary bool

	// ParagraphBoundary keeps paragraph gaps visible in chunk content.
	ParagraphBoundary bool
}

// Chunk is one token-bounded span of the source document.
// Index order is the only meaningful order; consolidation reads chunks by it.
type Chunk struct {
	Index     int    `json:"index"`
	Content   string `json:"content"`
	Tokens    int    `json:"tokens"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
}

// Splitter produces semantic chunks sized against a token estimator.
type Splitter struct {
	estimator *token.Estimator
}

// NewSplitter creates a Splitter backed by the given estimator.
func NewSplitter(est *token.Estimator) *Splitter {
	return &Splitter{estimator: est}
}

// DefaultConfig builds the chunking config for a model with the given total
// context window, with boundary preservation enabled.
func (s *Splitter) DefaultConfig(maxInputTokens int) Config {
	return Config{
		MaxTokensPerChunk: s.estimator.OptimalChunkSize(maxInputTokens),
		OverlapRatio:      DefaultOverlapRatio,
		SentenceBoundary:  true,
		ParagraphBoundary: true,
	}
}

// unit is the smallest piece the chunker moves around: a sentence (or a whole
// paragraph in paragraph mode) with the page and paragraph it came from.
type unit struct {
	text   string
	page   int
	para   int
	tokens int
}

// SemanticChunks splits page-tagged text into ordered, overlapping chunks.
//
// Returns nil when the input contains no page markers or no non-whitespace
// content; zero chunks is a signal, not an error. A single unit larger than
// the budget is emitted as an oversized chunk rather than dropped.
func (s *Splitter) SemanticChunks(pageTagged string, cfg Config) []Chunk {
	if cfg.MaxTokensPerChunk <= 0 {
		return nil
	}
	if cfg.OverlapRatio < 0 || cfg.OverlapRatio >= 1 {
		cfg.OverlapRatio = DefaultOverlapRatio
	}

	pages := parsePages(pageTagged)
	if len(pages) == 0 {
		return nil
	}

	units := s.buildUnits(pages, cfg)
	if len(units) == 0 {
		return nil
	}

	var chunks []Chunk
	var buf []unit

	for _, u := range units {
		if len(buf) > 0 {
			candidate := joinUnits(append(buf[:len(buf):len(buf)], u))
			if s.estimator.Estimate(candidate) > cfg.MaxTokensPerChunk {
				closed := s.emit(&chunks, buf)
				buf = s.seedOverlap(buf, closed, u, cfg)
			}
		}
		buf = append(buf, u)
	}
	if len(buf) > 0 {
		s.emit(&chunks, buf)
	}

	return chunks
}

// buildUnits flattens parsed pages into sentence or paragraph units.
// Whitespace-only pages contribute nothing but their numbering already
// happened at parse time, so neighbors keep accurate page ranges.
func (s *Splitter) buildUnits(pages []pageBlock, cfg Config) []unit {
	var units []unit
	para := 0
	for _, p := range pages {
		for _, paragraph := range splitParagraphs(p.text) {
			pieces := []string{paragraph}
			if cfg.SentenceBoundary {
				pieces = splitSentences(paragraph)
			}
			for _, piece := range pieces {
				piece = strings.TrimSpace(piece)
				if piece == "" {
					continue
				}
				units = append(units, unit{
					text:   piece,
					page:   p.number,
					para:   para,
					tokens: s.estimator.Estimate(piece),
				})
			}
			para++
		}
	}
	return units
}

// emit appends the buffered units as the next chunk and returns it.
func (s *Splitter) emit(chunks *[]Chunk, buf []unit) Chunk {
	content := joinUnits(buf)
	startPage, endPage := buf[0].page, buf[0].page
	for _, u := range buf[1:] {
		if u.page < startPage {
			startPage = u.page
		}
		if u.page > endPage {
			endPage = u.page
		}
	}
	c := Chunk{
		Index:     len(*chunks),
		Content:   content,
		Tokens:    s.estimator.Estimate(content),
		StartPage: startPage,
		EndPage:   endPage,
	}
	*chunks = append(*chunks, c)
	return c
}

// seedOverlap selects whole trailing units of the closed chunk to open the
// next one. The overlap is bounded both by the configured fraction of the
// closed chunk's tokens and by what still fits under the budget alongside the
// incoming unit, so overlap never pushes a multi-unit chunk past the budget.
func (s *Splitter) seedOverlap(buf []unit, closed Chunk, next unit, cfg Config) []unit {
	budget := int(float64(closed.Tokens) * cfg.OverlapRatio)
	if room := cfg.MaxTokensPerChunk - next.tokens; room < budget {
		budget = room
	}
	if budget <= 0 {
		return nil
	}

	taken := 0
	used := 0
	for i := len(buf) - 1; i >= 0; i-- {
		if used+buf[i].tokens > budget {
			break
		}
		used += buf[i].tokens
		taken++
	}
	if taken == 0 {
		return nil
	}
	overlap := make([]unit, taken)
	copy(overlap, buf[len(buf)-taken:])
	return overlap
}

// joinUnits renders units to chunk content: spaces within a paragraph, blank
// lines between paragraphs.
func joinUnits(units []unit) string {
	var b strings.Builder
	for i, u := range units {
		if i > 0 {
			if u.para != units[i-1].para {
				b.WriteString("\n\n")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(u.text)
	}
	return b.String()
}
