package slicer

import (
	"fmt"
	"strings"
	"unicode"
)

// piece is a chunk under construction. [start, end) is the structural span
// in the source; content is that span trimmed, beginning lead bytes after
// start.
type piece struct {
	start, end int
	lead       int
	content    string
	tokens     int
}

func (s *Slicer) newPiece(source, header string, start, end int) (piece, error) {
	raw := source[start:end]
	trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)
	content := strings.TrimRightFunc(trimmed, unicode.IsSpace)
	n, err := s.count(header + content)
	if err != nil {
		return piece{}, err
	}
	return piece{
		start:   start,
		end:     end,
		lead:    len(raw) - len(trimmed),
		content: content,
		tokens:  n,
	}, nil
}

// partition splits root until every piece fits the ceiling. It walks an
// explicit stack, pushing the second half first, so pieces come out in
// document order however deep the splitting goes.
func (s *Slicer) partition(source, header string, root piece) ([]piece, error) {
	var out []piece
	stack := []piece{root}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.tokens <= s.opts.MaxChunkTokenCount {
			out = append(out, p)
			continue
		}

		first, second, ok, err := s.split(source, header, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: span [%d,%d) has %d tokens, max is %d",
				ErrIrreducibleChunk, p.start, p.end, p.tokens, s.opts.MaxChunkTokenCount)
		}
		stack = append(stack, second, first)
	}
	return out, nil
}

// split tries each separator in priority order and returns the first
// acceptable two-way split. Only the centermost match of a separator is
// considered; when it is rejected the next separator is tried.
func (s *Slicer) split(source, header string, p piece) (piece, piece, bool, error) {
	base := p.start + p.lead
	for _, sep := range s.opts.Separators {
		matches := sep.Pattern.FindAllStringIndex(p.content, -1)
		if len(matches) == 0 {
			continue
		}
		m := centermost(matches, len(p.content)/2)
		if m[0] == 0 {
			continue
		}

		firstEnd, secondStart := sep.Behavior.cuts(m[0], m[1])
		first, err := s.newPiece(source, header, p.start, base+firstEnd)
		if err != nil {
			return piece{}, piece{}, false, err
		}
		second, err := s.newPiece(source, header, base+secondStart, p.end)
		if err != nil {
			return piece{}, piece{}, false, err
		}

		if s.belowFloor(first.tokens) || s.belowFloor(second.tokens) {
			continue
		}
		if len(first.content) >= len(p.content) || len(second.content) >= len(p.content) {
			continue
		}
		return first, second, true, nil
	}
	return piece{}, piece{}, false, nil
}

// centermost returns the match whose start is closest to center. Ties keep
// the earliest match.
func centermost(matches [][]int, center int) []int {
	best := matches[0]
	bestDist := distance(center, best[0])
	for _, m := range matches[1:] {
		if d := distance(center, m[0]); d < bestDist {
			best, bestDist = m, d
		}
	}
	return best
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func (s *Slicer) belowFloor(n int) bool {
	pct := float64(n) / float64(s.opts.MaxChunkTokenCount) * 100
	return pct < float64(s.opts.MinChunkPercentage)
}
