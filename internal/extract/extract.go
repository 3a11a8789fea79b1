// Package extract turns uploaded files into plain text ready for slicing.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"semantic-slicer/internal/normalize"
)

// Kind is the detected format of an upload.
type Kind string

const (
	KindText     Kind = "text"
	KindMarkdown Kind = "markdown"
	KindHTML     Kind = "html"
	KindPDF      Kind = "pdf"
)

var ErrUnsupportedType = errors.New("unsupported file type (only PDF, TXT, Markdown and HTML allowed)")

var contentTypes = map[string]Kind{
	"text/plain":      KindText,
	"text/markdown":   KindMarkdown,
	"text/x-markdown": KindMarkdown,
	"text/html":       KindHTML,
	"application/pdf": KindPDF,
}

var extensions = map[string]Kind{
	".txt":      KindText,
	".text":     KindText,
	".md":       KindMarkdown,
	".markdown": KindMarkdown,
	".htm":      KindHTML,
	".html":     KindHTML,
	".pdf":      KindPDF,
}

// Detect resolves the kind from the Content-Type, falling back to the file
// extension when the type is missing or generic.
func Detect(filename, contentType string) (Kind, error) {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if kind, ok := contentTypes[strings.ToLower(mediaType)]; ok {
				return kind, nil
			}
			if mediaType != "application/octet-stream" {
				return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
			}
		}
	}
	if kind, ok := extensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return kind, nil
	}
	return "", ErrUnsupportedType
}

// Text extracts the text of an upload. HTML is flattened here, so the
// result never needs HTML stripping.
func Text(filename, contentType string, data []byte) (string, Kind, error) {
	kind, err := Detect(filename, contentType)
	if err != nil {
		return "", "", err
	}
	switch kind {
	case KindPDF:
		text, err := extractPDF(data)
		if err != nil {
			return "", kind, fmt.Errorf("pdf extraction failed: %w", err)
		}
		return text, kind, nil
	case KindHTML:
		text, err := normalize.HTML(toValidUTF8(data))
		if err != nil {
			return "", kind, fmt.Errorf("html extraction failed: %w", err)
		}
		return text, kind, nil
	default:
		return toValidUTF8(data), kind, nil
	}
}

func toValidUTF8(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}

const (
	maxPageTreeDepth = 32
	maxPDFPages      = 10000
)

var errMalformedPDF = errors.New("malformed pdf")

// extractPDF reads the text of every page with contents. The page tree is
// walked here instead of through Reader.Page, which never returns on a
// Pages node whose Kids is not an array.
func extractPDF(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", errMalformedPDF, r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	pages, err := pageLeaves(doc.Trailer().Key("Root").Key("Pages"))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, page := range pages {
		if page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// pageLeaves flattens the page tree rooted at root in document order. Every
// Pages node must carry an array of Kids whose leaf total matches its Count.
func pageLeaves(root pdf.Value) ([]pdf.Page, error) {
	if root.Key("Type").Name() != "Pages" {
		return nil, fmt.Errorf("%w: missing page tree", errMalformedPDF)
	}
	var leaves []pdf.Page
	var walk func(node pdf.Value, depth int) error
	walk = func(node pdf.Value, depth int) error {
		if depth > maxPageTreeDepth {
			return fmt.Errorf("%w: page tree deeper than %d", errMalformedPDF, maxPageTreeDepth)
		}
		switch typ := node.Key("Type").Name(); typ {
		case "Page":
			if len(leaves) >= maxPDFPages {
				return fmt.Errorf("%w: more than %d pages", errMalformedPDF, maxPDFPages)
			}
			if err := checkParents(node); err != nil {
				return err
			}
			leaves = append(leaves, pdf.Page{V: node})
			return nil
		case "Pages":
			kids := node.Key("Kids")
			if kids.Kind() != pdf.Array {
				return fmt.Errorf("%w: page tree Kids is not an array", errMalformedPDF)
			}
			before := len(leaves)
			for i := 0; i < kids.Len(); i++ {
				if err := walk(kids.Index(i), depth+1); err != nil {
					return err
				}
			}
			if got, want := int64(len(leaves)-before), node.Key("Count").Int64(); got != want {
				return fmt.Errorf("%w: page tree Count is %d but holds %d pages", errMalformedPDF, want, got)
			}
			return nil
		default:
			return fmt.Errorf("%w: unexpected page tree node %q", errMalformedPDF, typ)
		}
	}
	if err := walk(root, 0); err != nil {
		return nil, err
	}
	return leaves, nil
}

// checkParents bounds the Parent chain that inherited attribute lookups
// follow during text extraction.
func checkParents(page pdf.Value) error {
	v := page
	for depth := 0; !v.IsNull(); depth++ {
		if depth > maxPageTreeDepth {
			return fmt.Errorf("%w: page Parent chain deeper than %d", errMalformedPDF, maxPageTreeDepth)
		}
		v = v.Key("Parent")
	}
	return nil
}
