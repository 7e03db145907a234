// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package editor locates SEARCH text in a document and applies edit blocks.
// Matching runs exact first, then an optional whitespace-relaxed line
// alignment; several matches are resolved through a DisambiguationPolicy.
// The package works on plain text and knows nothing about languages.
package editor

import (
	"errors"
	"io"
	"log/slog"

	"github.com/petar-djukic/go-patch/pkg/types"
)

// snippetLength is the number of characters of SEARCH text quoted in a
// NoMatchError.
const snippetLength = 120

// Engine applies edit blocks to documents. The zero value is ready to use.
// An Engine holds no per-call state and is safe for concurrent use.
type Engine struct {
	// MinScore is the minimum aligned line ratio for relaxed matches.
	// Defaults to DefaultMinScore if zero.
	MinScore float64

	// Policy resolves several matches to one. Defaults to HintPolicy.
	Policy types.DisambiguationPolicy

	// Logger receives debug traces of every matching decision. Nil discards.
	Logger *slog.Logger
}

// Apply applies blocks to doc in order, each block seeing the result of the
// previous ones. On success it returns the final document; on the first
// failing block it returns a *types.NoMatchError or *types.AmbiguousMatchError
// and no partial text.
func (e *Engine) Apply(doc string, blocks []types.EditBlock, hints []string, relaxed bool) (*types.Patched, error) {
	log := e.logger()
	working := doc
	outcomes := make([]types.BlockOutcome, 0, len(blocks))

	for i, block := range blocks {
		c, err := e.locate(working, block.Search, hints, relaxed)
		if err != nil {
			var amb *types.AmbiguousMatchError
			var nm *types.NoMatchError
			switch {
			case errors.As(err, &amb):
				amb.Index = i
			case errors.As(err, &nm):
				nm.Index = i
			}
			log.Debug("block failed", "block", i, "error", err)
			return nil, err
		}

		working = working[:c.Start] + block.Replace + working[c.End:]
		outcomes = append(outcomes, types.BlockOutcome{
			Index: i,
			Mode:  c.Mode,
			Score: c.Score,
			Line:  c.Line,
			NoOp:  block.Search == block.Replace,
		})
		log.Debug("block applied", "block", i, "mode", c.Mode, "score", c.Score, "line", c.Line)
	}

	return &types.Patched{
		Text:    working,
		Changed: working != doc,
		Blocks:  outcomes,
	}, nil
}

// locate finds the single region a SEARCH text refers to.
func (e *Engine) locate(doc, search string, hints []string, relaxed bool) (types.MatchCandidate, error) {
	if candidates := FindExact(doc, search); len(candidates) > 0 {
		return e.choose(candidates, hints, doc)
	}

	if relaxed {
		if candidates := topScored(FindRelaxed(doc, search, e.minScore())); len(candidates) > 0 {
			return e.choose(candidates, hints, doc)
		}
	}

	return types.MatchCandidate{}, &types.NoMatchError{
		Snippet:    snippet(search),
		Relaxed:    relaxed,
		Diagnostic: findClosestMatch(doc, search),
	}
}

func (e *Engine) choose(candidates []types.MatchCandidate, hints []string, doc string) (types.MatchCandidate, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return e.policy().Select(candidates, hints, doc)
}

func (e *Engine) minScore() float64 {
	if e.MinScore > 0 {
		return e.MinScore
	}
	return DefaultMinScore
}

func (e *Engine) policy() types.DisambiguationPolicy {
	if e.Policy != nil {
		return e.Policy
	}
	return HintPolicy{}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// snippet returns the first snippetLength characters of s.
func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLength {
		return s
	}
	return string(r[:snippetLength])
}
