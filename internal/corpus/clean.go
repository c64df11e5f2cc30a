// Package corpus loads registered documents' extracted text from the
// corpus directory and prepares it for chunking. PDF-to-text extraction
// happens upstream; this package consumes the extracted .txt files.
package corpus

import (
	"regexp"
	"strings"
)

var (
	pageHeaderRe = regexp.MustCompile(`\s*Page \d+\s*`)
	blankRunsRe  = regexp.MustCompile(`\n\n\n+`)
)

// Clean strips extraction artifacts from document text: "Page N" headers
// left by the PDF extractor, runs of blank lines, and per-line padding.
// Chunk offsets are computed against the cleaned text, so cleaning must
// happen exactly once, before chunking.
func Clean(text string) string {
	cleaned := pageHeaderRe.ReplaceAllString(text, "\n")
	cleaned = blankRunsRe.ReplaceAllString(cleaned, "\n\n")

	lines := strings.Split(cleaned, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
