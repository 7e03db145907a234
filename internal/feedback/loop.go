// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package feedback runs the fallback sequence around the patch engine:
// strict matching, then relaxed matching, then an optional full-document
// rewrite requested with a prompt describing the failure.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/petar-djukic/go-patch/internal/editformat"
	"github.com/petar-djukic/go-patch/internal/metrics"
	"github.com/petar-djukic/go-patch/pkg/types"
)

const defaultMaxRewrites = 1

// Stage names the step of the fallback sequence that produced a document.
type Stage string

const (
	StageStrict  Stage = "strict"
	StageRelaxed Stage = "relaxed"
	StageRewrite Stage = "rewrite"
)

// ErrEmptyRewrite is returned by a rewrite attempt that produced no text.
var ErrEmptyRewrite = errors.New("rewrite returned an empty document")

// Applier applies parsed blocks to a document. *editor.Engine satisfies it.
type Applier interface {
	Apply(doc string, blocks []types.EditBlock, hints []string, relaxed bool) (*types.Patched, error)
}

// RewriteFunc asks the model for a complete replacement document. The
// prompt describes why the patch could not be applied.
type RewriteFunc func(ctx context.Context, failurePrompt string) (string, error)

// Config configures the fallback sequence.
type Config struct {
	Format       FormatConfig // Failure prompt settings
	StartRelaxed bool         // Skip the strict attempt
	MaxRewrites  int          // Maximum rewrite attempts (default 1)
}

// Outcome is the result of a successful run.
type Outcome struct {
	Stage    Stage                    // Step that produced Text
	Text     string                   // Final document
	Changed  bool                     // Text differs from the input document
	Patched  *types.Patched           // Per-block details; nil for a rewrite
	Warnings []*editformat.ParseError // Malformed blocks dropped by the parser
	Rewrites int                      // Rewrite attempts made
	Failure  error                    // Patch failure that led to the rewrite
}

// Controller runs the fallback sequence. Rewrite, Metrics and Logger are
// optional.
type Controller struct {
	Applier Applier
	Rewrite RewriteFunc
	Config  Config
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Run parses raw and applies it to doc, falling back from strict to relaxed
// matching and finally to a rewrite. When every step fails the returned
// error wraps the patch failure, so errors.As still finds the
// *types.NoMatchError or *types.AmbiguousMatchError.
func (c *Controller) Run(ctx context.Context, doc, raw string, hints []string) (*Outcome, error) {
	log := c.logger()
	parsed := editformat.Parse(raw)
	for _, w := range parsed.Warnings {
		log.Warn("dropped malformed block", "line", w.Line, "reason", w.Message)
	}

	stages := []Stage{StageStrict, StageRelaxed}
	if c.Config.StartRelaxed {
		stages = stages[1:]
	}

	var patchErr error
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		patched, err := c.Applier.Apply(doc, parsed.Blocks, hints, stage == StageRelaxed)
		c.Metrics.ObserveApply(patched, err, time.Since(start))
		if err == nil {
			c.Metrics.ObserveRun(string(stage), true)
			log.Info("patch applied", "stage", stage, "blocks", len(parsed.Blocks), "changed", patched.Changed)
			return &Outcome{
				Stage:    stage,
				Text:     patched.Text,
				Changed:  patched.Changed,
				Patched:  patched,
				Warnings: parsed.Warnings,
			}, nil
		}
		patchErr = err
		log.Info("patch stage failed", "stage", stage, "error", err)
	}

	if c.Rewrite == nil {
		c.Metrics.ObserveRun(string(stages[len(stages)-1]), false)
		return nil, fmt.Errorf("applying patch: %w", patchErr)
	}
	return c.rewrite(ctx, doc, patchErr, parsed.Warnings)
}

// rewrite requests full documents until one is usable or MaxRewrites is
// exhausted.
func (c *Controller) rewrite(ctx context.Context, doc string, patchErr error, warnings []*editformat.ParseError) (*Outcome, error) {
	log := c.logger()
	maxRewrites := c.Config.MaxRewrites
	if maxRewrites == 0 {
		maxRewrites = defaultMaxRewrites
	}

	prompt := FormatFailure(patchErr, doc, c.Config.Format)

	var rewriteErr error
	for i := 0; i < maxRewrites; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context canceled after %d rewrites: %w", i, err)
		}

		text, err := c.Rewrite(ctx, prompt)
		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrEmptyRewrite
		}
		if err != nil {
			rewriteErr = err
			log.Warn("rewrite failed", "attempt", i+1, "error", err)
			continue
		}

		c.Metrics.ObserveRun(string(StageRewrite), true)
		log.Info("document rewritten", "attempt", i+1)
		return &Outcome{
			Stage:    StageRewrite,
			Text:     text,
			Changed:  text != doc,
			Warnings: warnings,
			Rewrites: i + 1,
			Failure:  patchErr,
		}, nil
	}

	c.Metrics.ObserveRun(string(StageRewrite), false)
	return nil, fmt.Errorf("max rewrites (%d) exhausted: %w", maxRewrites, errors.Join(patchErr, rewriteErr))
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
