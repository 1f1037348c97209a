package extract

import (
	"fmt"
	"os"
	"strings"
)

// loadText reads plain text or markdown. Form feeds (\f) are honored as
// page breaks; without them the whole file is one page.
func loadText(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	pages := strings.Split(content, "\f")

	var sb strings.Builder
	for i, page := range pages {
		writePage(&sb, i+1, page)
	}

	return &Document{
		PageTaggedText: sb.String(),
		PageCount:      len(pages),
		Format:         "text",
	}, nil
}
