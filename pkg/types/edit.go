// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package types defines the shared types of the patch engine: edit blocks,
// match candidates, results and the typed failures callers inspect.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// EditBlock is one SEARCH/REPLACE unit extracted from a model response.
// Blocks are created by the parser and consumed once by the applier.
type EditBlock struct {
	Index   int    // Ordinal position among the valid blocks (0-based)
	Search  string // Text to locate; never empty
	Replace string // Replacement text; empty means delete
	Path    string // Optional file path named on the line before the block
	Line    int    // Line of the start marker in the raw response (1-based)
}

// MatchMode identifies which matcher produced a candidate.
type MatchMode int

const (
	ModeExact   MatchMode = iota // Byte-for-byte match
	ModeRelaxed                  // Whitespace-normalized, line-aligned match
)

func (m MatchMode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModeRelaxed:
		return "relaxed"
	default:
		return "unknown"
	}
}

// MarshalText renders the mode by name in JSON and YAML output.
func (m MatchMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// MatchCandidate is a located region of the working document.
type MatchCandidate struct {
	Start int       // Byte offset of the region start
	End   int       // Byte offset one past the region end
	Mode  MatchMode // Matcher that found the region
	Score float64   // 1.0 for exact; aligned line ratio for relaxed
	Line  int       // Line of Start (1-based)
}

// BlockOutcome records how a single block was applied.
type BlockOutcome struct {
	Index int       `json:"index"`
	Mode  MatchMode `json:"mode"`
	Score float64   `json:"score"`
	Line  int       `json:"line"`
	NoOp  bool      `json:"no_op"` // search == replace
}

// Patched is the successful outcome of applying a set of blocks.
type Patched struct {
	Text    string         // Final document
	Changed bool           // False when the final text equals the input
	Blocks  []BlockOutcome // One entry per applied block, in order
}

// DisambiguationPolicy picks one candidate out of several matches. It returns
// an *AmbiguousMatchError when the candidates cannot be told apart.
type DisambiguationPolicy interface {
	Select(candidates []MatchCandidate, hints []string, doc string) (MatchCandidate, error)
}

var (
	// ErrNoMatch is matched by errors.Is for every *NoMatchError.
	ErrNoMatch = errors.New("no match found")
	// ErrAmbiguousMatch is matched by errors.Is for every *AmbiguousMatchError.
	ErrAmbiguousMatch = errors.New("ambiguous match")
)

// Diagnostic describes the region of the document closest to a SEARCH text
// that could not be located.
type Diagnostic struct {
	ClosestMatch     string  // Best partial match found (empty if none)
	Similarity       float64 // Similarity score of the closest match
	ClosestLineStart int     // Starting line of the closest match (1-based)
	ClosestLineEnd   int     // Ending line of the closest match (1-based)
}

// NoMatchError reports a block whose SEARCH text was not found.
type NoMatchError struct {
	Index      int    // Index of the failing block
	Snippet    string // First characters of the SEARCH text
	Relaxed    bool   // Whether relaxed matching was attempted
	Diagnostic Diagnostic
}

func (e *NoMatchError) Error() string {
	msg := fmt.Sprintf("block %d: no match found for %q", e.Index, e.Snippet)
	if e.Diagnostic.ClosestMatch != "" {
		msg += fmt.Sprintf(" (closest match at lines %d-%d, similarity %.2f)",
			e.Diagnostic.ClosestLineStart, e.Diagnostic.ClosestLineEnd, e.Diagnostic.Similarity)
	}
	return msg
}

func (e *NoMatchError) Unwrap() error { return ErrNoMatch }

// BlockIndex returns the index of the failing block.
func (e *NoMatchError) BlockIndex() int { return e.Index }

// AmbiguousMatchError reports a SEARCH text that matched several equally
// plausible locations.
type AmbiguousMatchError struct {
	Index int       // Index of the failing block
	Count int       // Number of tied candidates
	Lines []int     // Start line of every tied candidate (1-based)
	Mode  MatchMode // Matcher that produced the tie
}

func (e *AmbiguousMatchError) Error() string {
	lines := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = fmt.Sprint(l)
	}
	return fmt.Sprintf("block %d: %s search text matches %d locations (lines %s)",
		e.Index, e.Mode, e.Count, strings.Join(lines, ", "))
}

func (e *AmbiguousMatchError) Unwrap() error { return ErrAmbiguousMatch }

// BlockIndex returns the index of the failing block.
func (e *AmbiguousMatchError) BlockIndex() int { return e.Index }

// BlockError is implemented by every per-block failure.
type BlockError interface {
	error
	BlockIndex() int
}
