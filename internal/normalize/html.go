package normalize

import (
	"strings"

	"golang.org/x/net/html"
)

// HTML flattens an HTML document or fragment into plain text. Block-level
// elements are separated by line breaks, script-like elements are dropped
// and entities are decoded.
func HTML(content string) (string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	flatten(doc, &b, false)
	return b.String(), nil
}

func flatten(n *html.Node, b *strings.Builder, pre bool) {
	switch n.Type {
	case html.TextNode:
		if pre {
			b.WriteString(n.Data)
		} else {
			writeCollapsed(b, n.Data)
		}
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if skipElement(n.Data) {
			return
		}
		if n.Data == "pre" {
			pre = true
		}
	}

	if n.Type == html.ElementNode && n.Data == "br" {
		b.WriteByte('\n')
		return
	}
	breaks := blockBreaks(n)
	ensureBreaks(b, breaks)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		flatten(c, b, pre)
	}
	ensureBreaks(b, breaks)
	if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th") {
		b.WriteByte(' ')
	}
}

// ensureBreaks makes the output end in at least n line breaks, ignoring
// trailing spaces. Nothing is written at the very start of the output.
func ensureBreaks(b *strings.Builder, n int) {
	s := b.String()
	if n == 0 || strings.TrimSpace(s) == "" {
		return
	}
	have := 0
scan:
	for i := len(s) - 1; i >= 0 && have < n; i-- {
		switch s[i] {
		case '\n':
			have++
		case ' ', '\t':
		default:
			break scan
		}
	}
	for ; have < n; have++ {
		b.WriteByte('\n')
	}
}

// writeCollapsed writes text with every whitespace run folded into a single
// space, as a browser would render it.
func writeCollapsed(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		b.WriteByte(' ')
		return
	}
	if isSpace(text[0]) {
		b.WriteByte(' ')
	}
	b.WriteString(strings.Join(fields, " "))
	if isSpace(text[len(text)-1]) {
		b.WriteByte(' ')
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\f'
}

func skipElement(tag string) bool {
	switch tag {
	case "head", "script", "style", "noscript", "template", "svg", "math", "iframe", "object", "embed":
		return true
	}
	return false
}

func blockBreaks(n *html.Node) int {
	if n.Type != html.ElementNode {
		return 0
	}
	switch n.Data {
	case "p", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "table", "ul", "ol", "dl",
		"section", "article", "header", "footer", "aside", "nav", "figure", "hr":
		return 2
	case "div", "li", "tr", "dt", "dd", "caption", "figcaption", "main", "address":
		return 1
	}
	return 0
}
