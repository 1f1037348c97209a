package chunk

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// pageBlock is one parsed page: its 1-based number and its text body.
type pageBlock struct {
	number int
	text   string
}

// pageMarkerRE matches a whole marker line. The captured token must still
// parse as a positive integer for the line to count as a marker; otherwise
// the line is ordinary content.
var pageMarkerRE = regexp.MustCompile(`^--- Page (.+) ---$`)

// parsePages scans page-tagged text into ordered page blocks.
//
// Malformed marker lines (non-numeric page token) stay embedded in the current
// page's body. Whitespace-only bodies are dropped, but because every surviving
// block carries its own page number, neighboring chunks still report accurate
// page ranges. Content before the first valid marker has no page and is
// discarded.
func parsePages(input string) []pageBlock {
	if strings.TrimSpace(input) == "" {
		return nil
	}

	var blocks []pageBlock
	current := 0 // 0 = no page open yet
	var body []string

	flush := func() {
		if current == 0 {
			return
		}
		text := strings.TrimRight(strings.Join(body, "\n"), " \t\n")
		if strings.TrimSpace(text) != "" {
			blocks = append(blocks, pageBlock{number: current, text: text})
		}
	}

	for _, line := range strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n") {
		if m := pageMarkerRE.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				flush()
				current = n
				body = body[:0]
				continue
			}
		}
		if current != 0 {
			body = append(body, line)
		}
	}
	flush()

	return blocks
}

// paragraphGapRE matches a blank (or whitespace-only) line separating paragraphs.
var paragraphGapRE = regexp.MustCompile(`\n[ \t]*\n+`)

// splitParagraphs splits a page body on blank lines.
func splitParagraphs(text string) []string {
	parts := paragraphGapRE.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentenceEnders are the terminator runes recognized by splitSentences.
// CJK terminators are included; they end a sentence even without a following
// space, since CJK text does not space after punctuation.
var sentenceEnders = map[rune]struct{}{
	'.': {}, '!': {}, '?': {},
	'。': {}, '！': {}, '？': {},
}

// cjkEnders end a sentence regardless of what follows.
var cjkEnders = map[rune]struct{}{'。': {}, '！': {}, '？': {}}

// closingTrailers may follow a terminator and still belong to the sentence.
var closingTrailers = map[rune]struct{}{
	'"': {}, '\'': {}, ')': {}, ']': {}, '”': {}, '’': {}, '」': {}, '』': {},
}

// splitSentences breaks a paragraph into sentences on terminal punctuation.
// Text with no recognizable terminator comes back as a single piece, which
// degrades chunking to paragraph granularity rather than failing.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if _, ok := sentenceEnders[runes[i]]; !ok {
			continue
		}
		j := i + 1
		for j < len(runes) {
			if _, ok := closingTrailers[runes[j]]; !ok {
				break
			}
			j++
		}
		_, cjk := cjkEnders[runes[i]]
		if j < len(runes) && !unicode.IsSpace(runes[j]) && !cjk {
			continue
		}
		if piece := strings.TrimSpace(string(runes[start:j])); piece != "" {
			out = append(out, piece)
		}
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}

	if start < len(runes) {
		if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
			out = append(out, tail)
		}
	}
	return out
}
