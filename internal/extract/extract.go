// Package extract turns source documents into the page-tagged text format
// the chunker consumes: blocks of the literal form
//
//	--- Page N ---
//	<page text...>
//
// PDF pages map one-to-one onto blocks. Plain text and markdown become a
// single page unless the file carries form-feed page breaks. HTML is
// distilled through readability and split at top-level headings.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Document is extracted source text ready for chunking.
type Document struct {
	PageTaggedText string
	PageCount      int
	Format         string // "pdf", "html", "text"
}

// Load reads the file at path and returns its page-tagged text. The loader
// is picked by file extension; anything unrecognized is treated as plain
// text.
func Load(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return loadPDF(path)
	case ".html", ".htm":
		return loadHTML(path)
	default:
		return loadText(path)
	}
}

// writePage appends one page block to sb. Whitespace-only pages are written
// anyway; the chunker drops empty bodies while keeping numbering intact.
func writePage(sb *strings.Builder, number int, text string) {
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	fmt.Fprintf(sb, "--- Page %d ---\n%s\n", number, strings.TrimRight(text, "\n"))
}
