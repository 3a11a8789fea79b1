// Package tokens provides the token counting capability used for every size
// decision made by the slicer.
package tokens

import (
	"fmt"
	"strings"
)

// Counter maps text to the number of tokens a consumer model would see.
// Implementations must be deterministic and safe for concurrent use.
type Counter interface {
	Count(text string) (int, error)
}

// CounterFunc adapts a plain function to the Counter interface.
type CounterFunc func(text string) (int, error)

// Count calls f(text).
func (f CounterFunc) Count(text string) (int, error) {
	return f(text)
}

// Encoding names a counting scheme.
type Encoding string

const (
	Cl100kBase Encoding = "cl100k_base"
	O200kBase  Encoding = "o200k_base"
	// Words approximates tokens by whitespace-delimited words.
	Words Encoding = "words"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = Cl100kBase

// New resolves an encoding name into a Counter. The built-in BPE encodings
// are served from embedded tables; any other name is handed to the tiktoken
// loader, which may fetch vocabulary files.
func New(encoding Encoding) (Counter, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(string(encoding)))) {
	case "", Cl100kBase:
		return NewBPE(Cl100kBase)
	case O200kBase:
		return NewBPE(O200kBase)
	case Words:
		return WordCounter{}, nil
	default:
		c, err := NewTiktoken(string(encoding))
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
		}
		return c, nil
	}
}

// WordCounter counts whitespace-delimited words. It needs no vocabulary and
// is useful for tests and rough budgeting.
type WordCounter struct{}

// Count returns the number of fields in text.
func (WordCounter) Count(text string) (int, error) {
	return len(strings.Fields(text)), nil
}
