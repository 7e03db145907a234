// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package patch is the public entry point of go-patch. It parses model
// responses holding SEARCH/REPLACE blocks and applies them to text
// documents, exactly or with whitespace-relaxed matching, resolving
// repeated matches with hint lines.
//
//	res, err := patch.Apply(response, doc, patch.Options{Relaxed: true})
//	switch {
//	case patch.IsNoMatch(err), patch.IsAmbiguous(err):
//		// ask for a better SEARCH text
//	case err == nil && !res.Changed:
//		// nothing to do
//	}
package patch

import (
	"errors"
	"log/slog"

	"github.com/petar-djukic/go-patch/internal/editformat"
	"github.com/petar-djukic/go-patch/internal/editor"
	"github.com/petar-djukic/go-patch/pkg/types"
)

// Re-exported types.
type (
	EditBlock           = types.EditBlock
	BlockOutcome        = types.BlockOutcome
	MatchCandidate      = types.MatchCandidate
	MatchMode           = types.MatchMode
	Patched             = types.Patched
	NoMatchError        = types.NoMatchError
	AmbiguousMatchError = types.AmbiguousMatchError
	ParseError          = editformat.ParseError
	ParseResult         = editformat.ParseResult
)

// Match modes.
const (
	ModeExact   = types.ModeExact
	ModeRelaxed = types.ModeRelaxed
)

// Defaults applied when the corresponding Options field is zero.
const (
	DefaultMinScore   = editor.DefaultMinScore
	DefaultHintWindow = editor.DefaultHintWindow
)

// Options tunes matching. The zero value matches exactly and fails on any
// repeated match not resolved by hints.
type Options struct {
	Hints    []string                   // Lines near the intended edit
	Relaxed  bool                       // Fall back to whitespace-relaxed matching
	MinScore float64                    // Relaxed threshold (default 0.85)
	Window   int                        // Hint radius in lines (default 5)
	Policy   types.DisambiguationPolicy // Overrides the hint policy; Window is then ignored
	Logger   *slog.Logger               // Debug traces of matching decisions
}

// Result is the outcome of Apply.
type Result struct {
	types.Patched
	Warnings      []*ParseError // Malformed blocks that were skipped
	ReasoningText string        // Text outside the blocks
}

// Parse extracts SEARCH/REPLACE blocks from raw. It never fails; malformed
// blocks are reported in ParseResult.Warnings.
func Parse(raw string) *ParseResult {
	return editformat.Parse(raw)
}

// Apply parses raw and applies its blocks to doc in order. On failure doc is
// untouched and the error is a *NoMatchError or *AmbiguousMatchError naming
// the failing block.
func Apply(raw, doc string, opts Options) (*Result, error) {
	parsed := editformat.Parse(raw)

	patched, err := ApplyBlocks(doc, parsed.Blocks, opts)
	if err != nil {
		return nil, err
	}
	return &Result{
		Patched:       *patched,
		Warnings:      parsed.Warnings,
		ReasoningText: parsed.ReasoningText,
	}, nil
}

// ApplyBlocks applies already-parsed blocks to doc.
func ApplyBlocks(doc string, blocks []EditBlock, opts Options) (*Patched, error) {
	return newEngine(opts).Apply(doc, blocks, opts.Hints, opts.Relaxed)
}

// FindExact returns every non-overlapping exact occurrence of search in doc.
func FindExact(doc, search string) []MatchCandidate {
	return editor.FindExact(doc, search)
}

// FindRelaxed returns line-aligned regions of doc matching search with
// whitespace differences ignored, best score first.
func FindRelaxed(doc, search string, minScore float64) []MatchCandidate {
	return editor.FindRelaxed(doc, search, minScore)
}

// IsNoMatch reports whether err names a block whose SEARCH text was not
// found.
func IsNoMatch(err error) bool {
	return errors.Is(err, types.ErrNoMatch)
}

// IsAmbiguous reports whether err names a block whose SEARCH text matched
// several locations that hints could not tell apart.
func IsAmbiguous(err error) bool {
	return errors.Is(err, types.ErrAmbiguousMatch)
}

// FailedBlock returns the index of the block that caused err, or -1.
func FailedBlock(err error) int {
	var be types.BlockError
	if errors.As(err, &be) {
		return be.BlockIndex()
	}
	return -1
}

func newEngine(opts Options) *editor.Engine {
	policy := opts.Policy
	if policy == nil {
		policy = editor.HintPolicy{Window: opts.Window}
	}
	return &editor.Engine{MinScore: opts.MinScore, Policy: policy, Logger: opts.Logger}
}
