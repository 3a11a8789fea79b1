package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tiktoken-go/tokenizer"
)

// BPECounter counts tokens with an embedded tiktoken codec.
type BPECounter struct {
	codec tokenizer.Codec
	name  Encoding
}

// NewBPE returns a counter backed by one of the embedded encodings.
func NewBPE(encoding Encoding) (*BPECounter, error) {
	var enc tokenizer.Encoding
	switch encoding {
	case Cl100kBase:
		enc = tokenizer.Cl100kBase
	case O200kBase:
		enc = tokenizer.O200kBase
	default:
		return nil, fmt.Errorf("no embedded table for encoding %q", encoding)
	}
	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s codec: %w", encoding, err)
	}
	return &BPECounter{codec: codec, name: encoding}, nil
}

// Name returns the encoding this counter uses.
func (c *BPECounter) Name() Encoding {
	return c.name
}

// Count encodes text and returns the number of produced tokens.
func (c *BPECounter) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encode failed: %w", err)
	}
	return len(ids), nil
}

// TiktokenCounter counts tokens with pkoukk/tiktoken-go, which understands
// every encoding published by OpenAI but loads vocabularies at runtime.
// Set TIKTOKEN_CACHE_DIR to keep the downloaded files between runs.
type TiktokenCounter struct {
	tk   *tiktoken.Tiktoken
	name string
}

// NewTiktoken loads the named encoding, e.g. "p50k_base".
func NewTiktoken(name string) (*TiktokenCounter, error) {
	tk, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &TiktokenCounter{tk: tk, name: name}, nil
}

// Count returns the number of tokens in text. Special tokens are counted as
// ordinary text.
func (c *TiktokenCounter) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return len(c.tk.Encode(text, nil, nil)), nil
}
