// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package patch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/petar-djukic/go-patch/internal/editor"
	"github.com/petar-djukic/go-patch/internal/llm"
	"github.com/petar-djukic/go-patch/internal/session"
)

const (
	defaultMaxTokens  = 4096
	defaultLLMTimeout = 5 * time.Minute
)

// New validates the config, initializes the Bedrock client, and returns a
// ready-to-use Editor.
func New(cfg Config) (Editor, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	applyDefaults(&cfg)

	client, err := llm.NewClient(context.Background(), llm.ClientConfig{
		ModelID:   cfg.Model,
		Region:    cfg.Region,
		Profile:   cfg.Profile,
		Timeout:   defaultLLMTimeout,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMFailure, err)
	}

	return newEditor(cfg, client), nil
}

func newEditor(cfg Config, prompter session.Prompter) *editorAdapter {
	runner := session.NewRunner(session.Config{
		WorkDir:     cfg.WorkDir,
		MaxRetries:  cfg.MaxRetries,
		MaxRewrites: cfg.MaxRewrites,
		DryRun:      cfg.DryRun,
		Commit:      cfg.Commit,
		DirtyCommit: cfg.DirtyCommit,
	}, session.Deps{
		Prompter: prompter,
		Engine:   &editor.Engine{MinScore: cfg.MinScore, Logger: cfg.Logger},
		Logger:   cfg.Logger,
	})
	return &editorAdapter{runner: runner}
}

// editorAdapter adapts internal/session.Runner to the public Editor interface.
type editorAdapter struct {
	runner *session.Runner
}

func (a *editorAdapter) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	r, err := a.runner.Run(ctx, session.Request{
		Path:        req.Path,
		Instruction: req.Instruction,
		Hints:       req.Hints,
		Relaxed:     req.Relaxed,
	})
	if errors.Is(err, session.ErrModel) {
		err = fmt.Errorf("%w: %w", ErrLLMFailure, err)
	}
	if r == nil {
		return nil, err
	}
	return &EditResult{
		Path:     r.Path,
		Stage:    string(r.Stage),
		Changed:  r.Changed,
		Blocks:   r.Blocks,
		Warnings: r.Warnings,
		Retries:  r.Retries,
		Rewrites: r.Rewrites,
		Commit:   r.Commit,
		Usage:    r.Usage,
	}, err
}

func (a *editorAdapter) Undo() error {
	return a.runner.Undo()
}

// validateConfig checks that required fields are present.
func validateConfig(cfg Config) error {
	if cfg.WorkDir == "" {
		return fmt.Errorf("WorkDir is required")
	}
	if info, err := os.Stat(cfg.WorkDir); err != nil || !info.IsDir() {
		return fmt.Errorf("WorkDir %q does not exist or is not a directory", cfg.WorkDir)
	}
	if cfg.Model == "" {
		return fmt.Errorf("Model is required")
	}
	if cfg.Region == "" {
		return fmt.Errorf("Region is required")
	}
	if cfg.MaxRetries < 0 || cfg.MaxRewrites < 0 {
		return fmt.Errorf("MaxRetries and MaxRewrites must not be negative")
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		return fmt.Errorf("MinScore must be between 0 and 1")
	}
	return nil
}

// applyDefaults fills in zero-value fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
}
