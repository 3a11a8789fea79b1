package slicer

import (
	"strings"
	"unicode/utf8"
)

// refine widens each chunk's start backwards into its predecessor so that it
// opens with up to OverlapPercentage of the predecessor's tokens, never
// exceeding the ceiling. Each pair is judged on the predecessor's span and
// token count as they were before refinement. When no wider start fits, the
// chunk keeps its original boundary.
func (s *Slicer) refine(chunks []Chunk, source, header string) error {
	pct := s.opts.OverlapPercentage
	if pct <= 0 || len(chunks) < 2 {
		return nil
	}
	limit := s.opts.MaxChunkTokenCount

	prevStart, prevTokens := chunks[0].StartOffset, chunks[0].TokenCount
	for i := 1; i < len(chunks); i++ {
		cur := &chunks[i]
		origStart, origTokens := cur.StartOffset, cur.TokenCount
		minStart := prevStart
		requested := prevTokens * pct / 100
		prevStart, prevTokens = origStart, origTokens

		if requested <= 0 || cur.StartOffset >= cur.EndOffset {
			continue
		}

		baseline, err := s.count(header + strings.TrimSpace(source[cur.StartOffset:cur.EndOffset]))
		if err != nil {
			return err
		}
		cur.TokenCount = baseline
		allowed := max(limit-baseline, 0)
		if allowed == 0 {
			continue
		}
		ceiling := min(limit, baseline+min(requested, allowed))

		maxStart := cur.StartOffset
		if minStart >= maxStart {
			continue
		}
		candidates := runeStarts(source, minStart, maxStart)

		best, bestTokens := len(candidates)-1, baseline
		low, high := 0, len(candidates)-2
		for low <= high {
			mid := low + (high-low)/2
			n, err := s.count(header + strings.TrimSpace(source[candidates[mid]:cur.EndOffset]))
			if err != nil {
				return err
			}
			if n <= ceiling {
				best, bestTokens = mid, n
				high = mid - 1
			} else {
				low = mid + 1
			}
		}
		if candidates[best] == maxStart {
			continue
		}

		cur.StartOffset = candidates[best]
		cur.Content = header + strings.TrimSpace(source[cur.StartOffset:cur.EndOffset])
		cur.TokenCount = bestTokens
	}
	return nil
}

// runeStarts lists the offsets in [from, to] that begin a UTF-8 sequence,
// so that no candidate window cuts a character in half.
func runeStarts(s string, from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		if i == len(s) || utf8.RuneStart(s[i]) {
			out = append(out, i)
		}
	}
	return out
}
