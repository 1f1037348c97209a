package extract

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// loadHTML distills an HTML file through readability, then splits the clean
// content into one page block per top-level section (h1/h2 boundaries).
// Documents without headings become a single page.
func loadHTML(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	pageURL := &url.URL{Scheme: "file", Path: path}
	parser := readability.NewParser()
	article, err := parser.Parse(f, pageURL)
	if err != nil {
		return nil, fmt.Errorf("distilling %s: %w", path, err)
	}

	sections := splitSections(article)
	if len(sections) == 0 {
		text := strings.TrimSpace(article.TextContent)
		if text == "" {
			return nil, fmt.Errorf("no readable content in %s", path)
		}
		sections = []string{text}
	}

	var sb strings.Builder
	for i, section := range sections {
		writePage(&sb, i+1, section)
	}

	return &Document{
		PageTaggedText: sb.String(),
		PageCount:      len(sections),
		Format:         "html",
	}, nil
}

// splitSections walks the distilled content in document order, starting a
// new section at each top-level heading.
func splitSections(article readability.Article) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil
	}

	var sections []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sections = append(sections, s)
		}
		current.Reset()
	}

	doc.Find("h1,h2,h3,h4,p,li,pre,blockquote").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		if tag == "h1" || tag == "h2" {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(text)
	})
	flush()

	return sections
}
