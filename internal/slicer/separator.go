package slicer

import (
	"fmt"
	"regexp"
	"strings"
)

// Behavior decides which side of a split keeps the matched separator text.
type Behavior int

const (
	// Remove drops the separator text from both halves.
	Remove Behavior = iota
	// KeepWithNext starts the second half with the separator text.
	KeepWithNext
	// KeepWithPrevious ends the first half with the separator text.
	KeepWithPrevious
)

func (b Behavior) String() string {
	switch b {
	case Remove:
		return "remove"
	case KeepWithNext:
		return "prefix"
	case KeepWithPrevious:
		return "suffix"
	default:
		return fmt.Sprintf("behavior(%d)", int(b))
	}
}

// ParseBehavior accepts "remove", "prefix"/"keep-with-next" and
// "suffix"/"keep-with-previous".
func ParseBehavior(s string) (Behavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remove", "":
		return Remove, nil
	case "prefix", "keep-with-next":
		return KeepWithNext, nil
	case "suffix", "keep-with-previous":
		return KeepWithPrevious, nil
	}
	return Remove, fmt.Errorf("unknown separator behavior %q", s)
}

// cuts returns where the first half ends and the second half starts for a
// match spanning [start, end).
func (b Behavior) cuts(start, end int) (int, int) {
	switch b {
	case KeepWithNext:
		return start, start
	case KeepWithPrevious:
		return end, end
	default:
		return start, end
	}
}

// Separator is one boundary rule in a priority list.
type Separator struct {
	Pattern  *regexp.Regexp
	Behavior Behavior
}

// NewSeparator compiles expr in multi-line mode, so ^ and $ match at line
// boundaries.
func NewSeparator(expr string, behavior Behavior) (Separator, error) {
	re, err := regexp.Compile("(?m)" + expr)
	if err != nil {
		return Separator{}, fmt.Errorf("compile separator %q: %w", expr, err)
	}
	return Separator{Pattern: re, Behavior: behavior}, nil
}

// MustSeparator is like NewSeparator but panics on an invalid expression.
func MustSeparator(expr string, behavior Behavior) Separator {
	sep, err := NewSeparator(expr, behavior)
	if err != nil {
		panic(err)
	}
	return sep
}

func (s Separator) String() string {
	if s.Pattern == nil {
		return "<nil>/" + s.Behavior.String()
	}
	return strings.TrimPrefix(s.Pattern.String(), "(?m)") + "/" + s.Behavior.String()
}

// TextSeparators splits prose: paragraphs first, then sentences, clauses,
// words, and finally any single character.
var TextSeparators = []Separator{
	MustSeparator(`\n\n`, Remove),
	MustSeparator(`\. `, KeepWithPrevious),
	MustSeparator(`! `, KeepWithPrevious),
	MustSeparator(`\? `, KeepWithPrevious),
	MustSeparator(`\n`, Remove),
	MustSeparator(`;`, Remove),
	MustSeparator(`\(`, KeepWithNext),
	MustSeparator(`\)`, KeepWithPrevious),
	MustSeparator(`,`, Remove),
	MustSeparator(`-`, Remove),
	MustSeparator(` `, Remove),
	MustSeparator(`.`, KeepWithPrevious),
}

// MarkdownSeparators prefers heading boundaries, from level 2 down to level
// 6, before falling back to TextSeparators.
var MarkdownSeparators = append([]Separator{
	MustSeparator(`^##\s+.+$`, KeepWithNext),
	MustSeparator(`^###\s+.+$`, KeepWithNext),
	MustSeparator(`^####\s+.+$`, KeepWithNext),
	MustSeparator(`^#####\s+.+$`, KeepWithNext),
	MustSeparator(`^######\s+.+$`, KeepWithNext),
}, TextSeparators...)

// SeparatorSet resolves a built-in set by name ("text" or "markdown").
func SeparatorSet(name string) ([]Separator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return TextSeparators, nil
	case "markdown", "md":
		return MarkdownSeparators, nil
	}
	return nil, fmt.Errorf("%w: unknown separator set %q", ErrInvalidConfig, name)
}
