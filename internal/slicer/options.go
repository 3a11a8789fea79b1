package slicer

import (
	"fmt"
	"slices"

	"semantic-slicer/internal/tokens"
)

// Options configures a Slicer. The values are validated once by New and
// never change afterwards.
type Options struct {
	// MaxChunkTokenCount is the hard ceiling for every chunk, header included.
	MaxChunkTokenCount int
	// MinChunkPercentage is the smallest acceptable split half, as a
	// percentage of MaxChunkTokenCount.
	MinChunkPercentage int
	// OverlapPercentage is the share of the previous chunk's tokens to pull
	// into the next chunk as leading context.
	OverlapPercentage int
	// Separators are tried in order. The last one should match any
	// character, otherwise structure-less text cannot be split.
	Separators []Separator
	// StripHTML flattens HTML input to plain text before slicing.
	StripHTML bool
	// Counter measures every candidate. Nil means cl100k_base.
	Counter tokens.Counter
}

// DefaultOptions returns the stock configuration: 1000 tokens per chunk, a
// 10% floor, no overlap and the text separators.
func DefaultOptions() Options {
	return Options{
		MaxChunkTokenCount: 1000,
		MinChunkPercentage: 10,
		OverlapPercentage:  0,
		Separators:         TextSeparators,
	}
}

// ClampPercentage limits p to 0..100.
func ClampPercentage(p int) int {
	return min(max(p, 0), 100)
}

func (o Options) validate() error {
	if o.MaxChunkTokenCount <= 0 {
		return fmt.Errorf("%w: max chunk token count must be positive, got %d", ErrInvalidConfig, o.MaxChunkTokenCount)
	}
	if o.MinChunkPercentage < 0 || o.MinChunkPercentage > 100 {
		return fmt.Errorf("%w: min chunk percentage must be within 0..100, got %d", ErrInvalidConfig, o.MinChunkPercentage)
	}
	if o.OverlapPercentage < 0 || o.OverlapPercentage > 100 {
		return fmt.Errorf("%w: overlap percentage must be within 0..100, got %d", ErrInvalidConfig, o.OverlapPercentage)
	}
	if len(o.Separators) == 0 {
		return fmt.Errorf("%w: at least one separator is required", ErrInvalidConfig)
	}
	for i, sep := range o.Separators {
		if sep.Pattern == nil {
			return fmt.Errorf("%w: separator %d has no pattern", ErrInvalidConfig, i)
		}
		switch sep.Behavior {
		case Remove, KeepWithNext, KeepWithPrevious:
		default:
			return fmt.Errorf("%w: separator %d has unknown behavior %d", ErrInvalidConfig, i, sep.Behavior)
		}
	}
	return nil
}

func (o Options) clone() Options {
	o.Separators = slices.Clone(o.Separators)
	return o
}
