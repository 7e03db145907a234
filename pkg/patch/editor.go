// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package patch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/petar-djukic/go-patch/pkg/types"
)

// Error types for the Editor API.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLLMFailure    = errors.New("LLM call failed")
)

// Config configures an Editor backed by AWS Bedrock.
type Config struct {
	WorkDir     string       // Directory holding the files to edit (required)
	Model       string       // Bedrock model ID (required)
	Region      string       // AWS region (required)
	Profile     string       // AWS credential profile (optional)
	MaxTokens   int          // Maximum tokens for a model response (default 4096)
	MaxRetries  int          // Patch re-requests after a failed patch (default 1)
	MaxRewrites int          // Full-document rewrites once retries run out
	MinScore    float64      // Relaxed match threshold (default 0.85)
	Commit      bool         // Commit each changed file with go-git
	DirtyCommit bool         // Save uncommitted changes in a separate commit first
	DryRun      bool         // Never write files or commit
	Logger      *slog.Logger // Nil discards
}

// EditRequest asks the model to change one file.
type EditRequest struct {
	Path        string   // File to edit, relative to WorkDir
	Instruction string   // What to change
	Hints       []string // Lines near the intended edit
	Relaxed     bool     // Start with whitespace-relaxed matching
}

// EditResult holds the outcome of Editor.Edit.
type EditResult struct {
	Path     string               // File that was edited
	Stage    string               // "strict", "relaxed" or "rewrite"
	Changed  bool                 // False when every block was a no-op
	Blocks   []types.BlockOutcome // Per-block outcomes; nil for a rewrite
	Warnings []string             // Malformed blocks the parser skipped
	Retries  int                  // Patch re-requests sent to the model
	Rewrites int                  // Full rewrites requested
	Commit   string               // Commit hash when Commit is set
	Usage    types.TokenUsage     // Tokens consumed by the model
}

// Editor edits files by asking a model for SEARCH/REPLACE blocks.
type Editor interface {
	// Edit asks the model to apply req.Instruction to req.Path, feeding
	// failed patches back to the model until one applies or the retry
	// budget runs out.
	Edit(ctx context.Context, req EditRequest) (*EditResult, error)

	// Undo reverts the last commit made by an Editor.
	Undo() error
}
