// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editor

import (
	"strings"

	"github.com/petar-djukic/go-patch/pkg/types"
)

// DefaultHintWindow is the number of lines above and below a candidate in
// which a hint must appear to support it.
const DefaultHintWindow = 5

// HintPolicy ranks tied candidates by the target hints found near them. A
// candidate is chosen only when it is strictly better than every other one;
// otherwise Select fails with an *types.AmbiguousMatchError.
type HintPolicy struct {
	// Window is the line radius searched around each candidate.
	// Defaults to DefaultHintWindow if zero.
	Window int
}

var _ types.DisambiguationPolicy = HintPolicy{}

// hintRank is the support a candidate received from the hints.
type hintRank struct {
	support  int // Number of distinct hints inside the window
	distance int // Line distance to the nearest supporting hint occurrence
}

// better reports whether r ranks strictly above o.
func (r hintRank) better(o hintRank) bool {
	if r.support != o.support {
		return r.support > o.support
	}
	return r.distance < o.distance
}

// Select implements types.DisambiguationPolicy.
func (p HintPolicy) Select(candidates []types.MatchCandidate, hints []string, doc string) (types.MatchCandidate, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	if len(candidates) == 0 {
		return types.MatchCandidate{}, ambiguity(candidates)
	}

	window := p.Window
	if window <= 0 {
		window = DefaultHintWindow
	}

	occurrences := hintLines(doc, hints)
	if len(occurrences) == 0 {
		return types.MatchCandidate{}, ambiguity(candidates)
	}

	ranks := make([]hintRank, len(candidates))
	for i, c := range candidates {
		ranks[i] = rankCandidate(doc, c, occurrences, window)
	}

	best := 0
	unique := true
	for i := 1; i < len(ranks); i++ {
		switch {
		case ranks[i].better(ranks[best]):
			best = i
			unique = true
		case !ranks[best].better(ranks[i]):
			unique = false
		}
	}

	if !unique || ranks[best].support == 0 {
		return types.MatchCandidate{}, ambiguity(tied(candidates, ranks, ranks[best]))
	}
	return candidates[best], nil
}

// rankCandidate counts the hints appearing within window lines of the
// candidate's line span and the distance to the closest of them.
func rankCandidate(doc string, c types.MatchCandidate, occurrences [][]int, window int) hintRank {
	first := c.Line
	last := first + strings.Count(doc[c.Start:c.End], "\n")
	if c.End > c.Start && doc[c.End-1] == '\n' {
		last--
	}

	rank := hintRank{distance: -1}
	for _, lines := range occurrences {
		nearest := -1
		for _, l := range lines {
			d := 0
			switch {
			case l < first:
				d = first - l
			case l > last:
				d = l - last
			}
			if d <= window && (nearest < 0 || d < nearest) {
				nearest = d
			}
		}
		if nearest < 0 {
			continue
		}
		rank.support++
		if rank.distance < 0 || nearest < rank.distance {
			rank.distance = nearest
		}
	}
	return rank
}

// hintLines returns, per non-empty hint, the 1-based lines where it occurs.
// Hints that never occur in doc are dropped.
func hintLines(doc string, hints []string) [][]int {
	var out [][]int
	seen := make(map[string]bool, len(hints))
	for _, h := range hints {
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true

		var lines []int
		counter := lineCounter{doc: doc}
		offset := 0
		for {
			idx := strings.Index(doc[offset:], h)
			if idx < 0 {
				break
			}
			pos := offset + idx
			lines = append(lines, counter.at(pos))
			offset = pos + len(h)
		}
		if len(lines) > 0 {
			out = append(out, lines)
		}
	}
	return out
}

// tied returns the candidates whose rank equals top.
func tied(candidates []types.MatchCandidate, ranks []hintRank, top hintRank) []types.MatchCandidate {
	var out []types.MatchCandidate
	for i, r := range ranks {
		if !r.better(top) && !top.better(r) {
			out = append(out, candidates[i])
		}
	}
	return out
}

func ambiguity(candidates []types.MatchCandidate) *types.AmbiguousMatchError {
	err := &types.AmbiguousMatchError{Count: len(candidates)}
	for _, c := range candidates {
		err.Lines = append(err.Lines, c.Line)
		err.Mode = c.Mode
	}
	return err
}
