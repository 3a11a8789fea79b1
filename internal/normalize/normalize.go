// Package normalize prepares raw document text for slicing. It is run exactly
// once per document; every offset the slicer reports indexes into its output.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	lineEndingRegex    = regexp.MustCompile(`\r\n?`)
	trailingSpaceRegex = regexp.MustCompile(`[ \t]+\n`)
	spaceRunRegex      = regexp.MustCompile(`[ \t]{3,}`)
	breakRunRegex      = regexp.MustCompile(`\n{3,}`)
	leadingSpaceRegex  = regexp.MustCompile(`\n[ \t]+`)
)

// Options controls optional normalization steps.
type Options struct {
	// StripHTML flattens the input from HTML to plain text before the
	// whitespace rules are applied.
	StripHTML bool
}

// Text canonicalizes line endings, optionally flattens HTML, collapses
// whitespace runs and trims the result. Text is idempotent.
func Text(content string, opts Options) (string, error) {
	content = LineEndings(content)
	if opts.StripHTML {
		flat, err := HTML(content)
		if err != nil {
			return "", fmt.Errorf("strip html: %w", err)
		}
		content = leadingSpaceRegex.ReplaceAllString(flat, "\n")
	}
	return collapse(content), nil
}

// LineEndings rewrites "\r\n" and lone "\r" as "\n".
func LineEndings(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	return lineEndingRegex.ReplaceAllString(s, "\n")
}

// Header canonicalizes a chunk header so that a non-empty header ends with
// exactly one line break.
func Header(header string) string {
	header = strings.TrimRight(LineEndings(header), "\n")
	if header == "" {
		return ""
	}
	return header + "\n"
}

func collapse(s string) string {
	s = trailingSpaceRegex.ReplaceAllString(s, "\n")
	s = spaceRunRegex.ReplaceAllString(s, "  ")
	s = breakRunRegex.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
