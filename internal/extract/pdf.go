package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts plain text from a PDF, one page block per PDF page.
// Pages whose text cannot be decoded are emitted empty rather than failing
// the whole document.
func loadPDF(path string) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	if total == 0 {
		return nil, fmt.Errorf("pdf %s has no pages", path)
	}

	var sb strings.Builder
	for n := 1; n <= total; n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			writePage(&sb, n, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			writePage(&sb, n, "")
			continue
		}
		writePage(&sb, n, text)
	}

	return &Document{
		PageTaggedText: sb.String(),
		PageCount:      total,
		Format:         "pdf",
	}, nil
}
