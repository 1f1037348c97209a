package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/precis-ai/precis/internal/token"
)

func newTestSplitter(t *testing.T) *Splitter {
	t.Helper()
	return NewSplitter(token.NewEstimator(token.DefaultEstimatorConfig()))
}

func testConfig(maxTokens int, overlap float64) Config {
	return Config{
		MaxTokensPerChunk: maxTokens,
		OverlapRatio:      overlap,
		SentenceBoundary:  true,
		ParagraphBoundary: true,
	}
}

// ==================== Page marker parsing ====================

func TestSemanticChunks_SinglePage(t *testing.T) {
	s := newTestSplitter(t)
	chunks := s.SemanticChunks("--- Page 1 ---\nHello world.", testConfig(1000, 0.1))

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.Content != "Hello world." {
		t.Errorf("Content = %q, want %q", c.Content, "Hello world.")
	}
	if c.StartPage != 1 || c.EndPage != 1 {
		t.Errorf("page range = %d-%d, want 1-1", c.StartPage, c.EndPage)
	}
	if c.Index != 0 {
		t.Errorf("Index = %d, want 0", c.Index)
	}
}

func TestSemanticChunks_MultiPageSingleChunk(t *testing.T) {
	s := newTestSplitter(t)
	input := "--- Page 1 ---\nFirst page text.\n--- Page 2 ---\nSecond page text.\n--- Page 3 ---\nThird page text."

	chunks := s.SemanticChunks(input, testConfig(1000, 0.1))
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].StartPage != 1 || chunks[0].EndPage != 3 {
		t.Errorf("page range = %d-%d, want 1-3", chunks[0].StartPage, chunks[0].EndPage)
	}
}

func TestSemanticChunks_EmptyInput(t *testing.T) {
	s := newTestSplitter(t)
	cfg := testConfig(1000, 0.1)

	cases := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"whitespace only", "   \n\t\n  "},
		{"no page markers", "Plain text without any markers at all."},
		{"markers with empty bodies", "--- Page 1 ---\n\n--- Page 2 ---\n   \n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if chunks := s.SemanticChunks(tc.input, cfg); chunks != nil {
				t.Errorf("got %d chunks, want nil", len(chunks))
			}
		})
	}
}

func TestSemanticChunks_MalformedMarkerIsContent(t *testing.T) {
	s := newTestSplitter(t)
	input := "--- Page 1 ---\nReal text here.\n--- Page X ---\nmore text on the same page"

	chunks := s.SemanticChunks(input, testConfig(1000, 0.1))
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "--- Page X ---") {
		t.Errorf("malformed marker should stay embedded as content, got %q", chunks[0].Content)
	}
	if chunks[0].StartPage != 1 || chunks[0].EndPage != 1 {
		t.Errorf("page range = %d-%d, want 1-1", chunks[0].StartPage, chunks[0].EndPage)
	}
}

func TestSemanticChunks_WhitespacePagePreservesRangeContinuity(t *testing.T) {
	s := newTestSplitter(t)
	input := "--- Page 1 ---\nText one.\n--- Page 2 ---\n   \n--- Page 3 ---\nText three."

	chunks := s.SemanticChunks(input, testConfig(1000, 0.1))
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].StartPage != 1 || chunks[0].EndPage != 3 {
		t.Errorf("page range = %d-%d, want 1-3 (blank page 2 skipped for content only)",
			chunks[0].StartPage, chunks[0].EndPage)
	}
}

// ==================== Splitting and overlap ====================

// Six 6-character sentences, three per page. With the default estimator each
// sentence estimates to 3 tokens, so a budget of 8 closes the first chunk
// after four sentences.
const twoPageSentences = "--- Page 1 ---\nAa aa. Bb bb. Cc cc.\n--- Page 2 ---\nDd dd. Ee ee. Ff ff."

func TestSemanticChunks_OverlapRepeatsTailSentence(t *testing.T) {
	s := newTestSplitter(t)
	chunks := s.SemanticChunks(twoPageSentences, testConfig(8, 0.4))

	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	first, second := chunks[0], chunks[1]
	if !strings.HasSuffix(first.Content, "Dd dd.") {
		t.Errorf("first chunk should end with the boundary sentence, got %q", first.Content)
	}
	if !strings.HasPrefix(second.Content, "Dd dd.") {
		t.Errorf("second chunk should reopen with the overlap sentence, got %q", second.Content)
	}
}

func TestSemanticChunks_IndexContiguity(t *testing.T) {
	s := newTestSplitter(t)

	var b strings.Builder
	for p := 1; p <= 6; p++ {
		fmt.Fprintf(&b, "--- Page %d ---\n", p)
		for i := 0; i < 5; i++ {
			fmt.Fprintf(&b, "Sentence number %d on page %d provides some content. ", i, p)
		}
		b.WriteString("\n")
	}

	chunks := s.SemanticChunks(b.String(), testConfig(30, 0.2))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunks[%d].Index = %d, want %d", i, c.Index, i)
		}
		if strings.TrimSpace(c.Content) == "" {
			t.Errorf("chunks[%d] has empty content", i)
		}
		if c.StartPage > c.EndPage {
			t.Errorf("chunks[%d] page range inverted: %d-%d", i, c.StartPage, c.EndPage)
		}
	}
}

func TestSemanticChunks_PageMonotonicity(t *testing.T) {
	s := newTestSplitter(t)

	var b strings.Builder
	for p := 1; p <= 8; p++ {
		fmt.Fprintf(&b, "--- Page %d ---\nPage %d carries a body of text. It runs for a few sentences. Then it ends here.\n", p, p)
	}

	chunks := s.SemanticChunks(b.String(), testConfig(25, 0.2))
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartPage < chunks[i-1].StartPage {
			t.Errorf("startPage regressed at chunk %d: %d < %d",
				i, chunks[i].StartPage, chunks[i-1].StartPage)
		}
	}
}

func TestSemanticChunks_TokenBudgetSoundness(t *testing.T) {
	s := newTestSplitter(t)

	var b strings.Builder
	b.WriteString("--- Page 1 ---\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "Short sentence %d ends here. ", i)
	}

	const budget = 25
	chunks := s.SemanticChunks(b.String(), testConfig(budget, 0.2))
	for _, c := range chunks {
		// Multi-sentence chunks must respect the budget; a chunk holding one
		// unbreakable unit is allowed to exceed it.
		if strings.Count(c.Content, ".") > 1 && c.Tokens > budget {
			t.Errorf("chunk %d exceeds budget: %d > %d (content %q)",
				c.Index, c.Tokens, budget, c.Content)
		}
	}
}

func TestSemanticChunks_OversizedUnbreakableUnit(t *testing.T) {
	s := newTestSplitter(t)
	giant := strings.Repeat("x", 400) // one token run, no boundaries
	input := "--- Page 1 ---\n" + giant

	chunks := s.SemanticChunks(input, testConfig(5, 0.1))
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 oversized chunk", len(chunks))
	}
	if chunks[0].Content != giant {
		t.Error("oversized unit should be emitted intact")
	}
	if chunks[0].Tokens <= 5 {
		t.Errorf("oversized chunk should report its true estimate, got %d", chunks[0].Tokens)
	}
}

func TestSemanticChunks_CoverageInOrder(t *testing.T) {
	s := newTestSplitter(t)

	sentences := []string{
		"Alpha opens the report.", "Bravo continues the narrative.",
		"Charlie adds the details.", "Delta closes the first page.",
		"Echo starts the second page.", "Foxtrot carries the middle.",
		"Golf nears the finish.", "Hotel ends the document.",
	}
	input := "--- Page 1 ---\n" + strings.Join(sentences[:4], " ") +
		"\n--- Page 2 ---\n" + strings.Join(sentences[4:], " ")

	chunks := s.SemanticChunks(input, testConfig(20, 0.2))
	all := ""
	for _, c := range chunks {
		all += c.Content + "\n"
	}
	lastIdx := -1
	for _, sent := range sentences {
		idx := strings.Index(all, sent)
		if idx < 0 {
			t.Fatalf("sentence %q missing from chunk output", sent)
		}
		if idx < lastIdx {
			t.Errorf("sentence %q appears out of order", sent)
		}
		lastIdx = idx
	}
}

func TestSemanticChunks_TokensMatchEstimatorOnContent(t *testing.T) {
	est := token.NewEstimator(token.DefaultEstimatorConfig())
	s := NewSplitter(est)

	chunks := s.SemanticChunks(twoPageSentences, testConfig(8, 0.4))
	for _, c := range chunks {
		if want := est.Estimate(c.Content); c.Tokens != want {
			t.Errorf("chunk %d Tokens = %d, want estimator output %d", c.Index, c.Tokens, want)
		}
	}
}

// ==================== Paragraph mode ====================

func TestSemanticChunks_ParagraphBoundaryMode(t *testing.T) {
	s := newTestSplitter(t)
	input := "--- Page 1 ---\nFirst paragraph has no terminal punctuation\n\nSecond paragraph likewise\n\nThird paragraph too"

	cfg := Config{MaxTokensPerChunk: 10, OverlapRatio: 0, SentenceBoundary: false, ParagraphBoundary: true}
	chunks := s.SemanticChunks(input, cfg)
	if len(chunks) < 2 {
		t.Fatalf("paragraph units should split across chunks, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if strings.Contains(c.Content, "First") && strings.Contains(c.Content, "Third") {
			t.Errorf("chunk %d spans too many paragraphs for the budget: %q", c.Index, c.Content)
		}
	}
}

// ==================== Sentence splitter ====================

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			"latin terminators",
			"One ends here. Two ends here! Three ends here?",
			[]string{"One ends here.", "Two ends here!", "Three ends here?"},
		},
		{
			"no terminator",
			"a single run of words with no punctuation",
			[]string{"a single run of words with no punctuation"},
		},
		{
			"trailing fragment",
			"Complete sentence. trailing fragment",
			[]string{"Complete sentence.", "trailing fragment"},
		},
		{
			"cjk terminators without spaces",
			"今日は晴れです。明日は雨です。",
			[]string{"今日は晴れです。", "明日は雨です。"},
		},
		{
			"closing quote after period",
			`He said "stop." Then he left.`,
			[]string{`He said "stop."`, "Then he left."},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitSentences(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d sentences %v, want %d %v", len(got), got, len(tc.want), tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

// ==================== DefaultConfig ====================

func TestDefaultConfig(t *testing.T) {
	s := newTestSplitter(t)
	cfg := s.DefaultConfig(8000)

	if cfg.MaxTokensPerChunk != 6000 {
		t.Errorf("MaxTokensPerChunk = %d, want 6000", cfg.MaxTokensPerChunk)
	}
	if cfg.OverlapRatio != DefaultOverlapRatio {
		t.Errorf("OverlapRatio = %f, want %f", cfg.OverlapRatio, DefaultOverlapRatio)
	}
	if !cfg.SentenceBoundary || !cfg.ParagraphBoundary {
		t.Error("boundary preservation should default to enabled")
	}
}
