// Package slicer splits normalized documents into token-bounded chunks along
// the most meaningful boundary available, and optionally widens each chunk
// backwards so it starts with trailing context from its predecessor.
//
// All offsets are byte offsets into the normalized document. A chunk's
// offsets bound the structural span it was cut from; its content is that
// span with surrounding whitespace trimmed, prefixed by the chunk header.
package slicer

import (
	"errors"
	"fmt"

	"semantic-slicer/internal/normalize"
	"semantic-slicer/internal/tokens"
)

var (
	// ErrInvalidConfig reports a configuration that cannot be used.
	ErrInvalidConfig = errors.New("invalid slicer configuration")
	// ErrHeaderTooLarge reports a header that leaves no room for content.
	ErrHeaderTooLarge = fmt.Errorf("%w: chunk header is too large", ErrInvalidConfig)
	// ErrIrreducibleChunk reports content over the ceiling that no
	// configured separator can split acceptably.
	ErrIrreducibleChunk = errors.New("unable to subdivide chunk with configured separators")
)

// CounterError wraps a failure returned by the token counter.
type CounterError struct {
	Err error
}

func (e *CounterError) Error() string {
	return "token counter failed: " + e.Err.Error()
}

func (e *CounterError) Unwrap() error {
	return e.Err
}

// Chunk is one bounded span of a document.
type Chunk struct {
	Content     string         `json:"content"`
	Index       int            `json:"index"`
	Metadata    map[string]any `json:"metadata"`
	TokenCount  int            `json:"tokenCount"`
	StartOffset int            `json:"startOffset"`
	EndOffset   int            `json:"endOffset"`
}

// Slicer holds a validated configuration. It is safe for concurrent use as
// long as its Counter is.
type Slicer struct {
	opts Options
}

// New validates opts and returns a Slicer.
func New(opts Options) (*Slicer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.clone()
	if opts.Counter == nil {
		c, err := tokens.New(tokens.DefaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		opts.Counter = c
	}
	return &Slicer{opts: opts}, nil
}

// Options returns a copy of the configuration in use.
func (s *Slicer) Options() Options {
	return s.opts.clone()
}

// Slice normalizes content and cuts it into chunks. Every chunk carries the
// same metadata map. A non-empty header is normalized to end with one line
// break and prepended to every chunk; it must cost fewer tokens than the
// ceiling.
//
// Slice runs to completion without suspension points; callers that need
// cancellation check their context before calling it.
func (s *Slicer) Slice(content string, metadata map[string]any, header string) ([]Chunk, error) {
	header = normalize.Header(header)
	if header != "" {
		n, err := s.count(header)
		if err != nil {
			return nil, err
		}
		if n >= s.opts.MaxChunkTokenCount {
			return nil, fmt.Errorf("%w: header has %d tokens, max chunk token count is %d",
				ErrHeaderTooLarge, n, s.opts.MaxChunkTokenCount)
		}
	}

	source, err := normalize.Text(content, normalize.Options{StripHTML: s.opts.StripHTML})
	if err != nil {
		return nil, err
	}

	root, err := s.newPiece(source, header, 0, len(source))
	if err != nil {
		return nil, err
	}
	pieces, err := s.partition(source, header, root)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{
			Content:     header + p.content,
			Metadata:    metadata,
			TokenCount:  p.tokens,
			StartOffset: p.start,
			EndOffset:   p.end,
		}
	}
	if err := s.refine(chunks, source, header); err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks, nil
}

func (s *Slicer) count(text string) (int, error) {
	n, err := s.opts.Counter.Count(text)
	if err != nil {
		return 0, &CounterError{Err: err}
	}
	return n, nil
}
