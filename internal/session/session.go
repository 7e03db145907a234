// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package session edits files on disk: it asks a model for SEARCH/REPLACE
// blocks (or takes a patch supplied by the caller), runs them through the
// fallback controller, writes the result atomically and optionally records
// it as a git commit.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/petar-djukic/go-patch/internal/editformat"
	"github.com/petar-djukic/go-patch/internal/editor"
	"github.com/petar-djukic/go-patch/internal/feedback"
	gitpkg "github.com/petar-djukic/go-patch/internal/git"
	"github.com/petar-djukic/go-patch/internal/llm"
	"github.com/petar-djukic/go-patch/internal/metrics"
	"github.com/petar-djukic/go-patch/pkg/types"
)

const defaultMaxRetries = 1

var (
	// ErrNoPrompter is returned by Run when no model is configured.
	ErrNoPrompter = errors.New("no model configured")
	// ErrModel wraps every failed model call made by Run.
	ErrModel = errors.New("model call failed")
)

// Prompter abstracts model calls so the runner is testable. *llm.Client
// satisfies it.
type Prompter interface {
	Generate(ctx context.Context, system []brtypes.SystemContentBlock, messages []brtypes.Message) (string, error)
	Usage() types.TokenUsage
}

// Config controls how edits are applied and persisted.
type Config struct {
	WorkDir     string // Relative paths are resolved here (default ".")
	MaxRetries  int    // Patch re-requests after a failed patch (default 1)
	MaxRewrites int    // Full-document rewrites after retries (0 disables)
	DryRun      bool   // Never write files or commit
	Commit      bool   // Commit changed files with go-git
	DirtyCommit bool   // Save uncommitted changes in a separate commit first
}

// Deps holds injected collaborators. Engine defaults to a zero Engine;
// Prompter is needed only by Run.
type Deps struct {
	Prompter Prompter
	Engine   *editor.Engine
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Request asks the model to edit one file.
type Request struct {
	Path        string   // File to edit
	Instruction string   // What to change
	Hints       []string // Lines near the intended edit
	Relaxed     bool     // Start with whitespace-relaxed matching
}

// PatchRequest applies a caller-supplied patch to one file.
type PatchRequest struct {
	Path    string
	Patch   string
	Hints   []string
	Relaxed bool
}

// Result describes the edit of one file.
type Result struct {
	Path     string
	Stage    feedback.Stage
	Changed  bool
	Text     string               // Final document
	Blocks   []types.BlockOutcome // Nil for a rewrite
	Warnings []string             // Malformed blocks dropped by the parser
	Retries  int                  // Patch re-requests sent to the model
	Rewrites int
	Commit   string // Commit hash when the change was committed
	Usage    types.TokenUsage
	Response string // Last model response
}

// Runner runs edit sessions. A Runner is safe for sequential use only.
type Runner struct {
	cfg  Config
	deps Deps
}

// NewRunner creates a Runner with the given configuration and dependencies.
func NewRunner(cfg Config, deps Deps) *Runner {
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	if abs, err := filepath.Abs(cfg.WorkDir); err == nil {
		cfg.WorkDir = abs
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if deps.Engine == nil {
		deps.Engine = &editor.Engine{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{cfg: cfg, deps: deps}
}

// Run asks the model for a patch to req.Path and applies it. A failed patch
// is sent back to the model with a description of the failure up to
// MaxRetries times; after that, MaxRewrites full rewrites are requested.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if r.deps.Prompter == nil {
		return nil, ErrNoPrompter
	}

	f, err := r.open(req.Path)
	if err != nil {
		return nil, err
	}
	repo, err := r.prepareRepo()
	if err != nil {
		return nil, err
	}

	data := llm.NewTemplateData(f.rel, req.Relaxed)
	systemPrompt, err := llm.RenderSystemPrompt(data)
	if err != nil {
		return nil, fmt.Errorf("rendering system prompt: %w", err)
	}

	system, messages := llm.ConstructMessages(systemPrompt, types.Document{Path: f.rel, Content: f.content}, req.Hints, req.Instruction)
	response, err := r.deps.Prompter.Generate(ctx, system, messages)
	if err != nil {
		return nil, modelError("generating patch", err)
	}

	result := &Result{Path: f.abs}
	var out *feedback.Outcome
	for attempt := 0; ; attempt++ {
		last := attempt >= r.cfg.MaxRetries
		ctrl := r.controller(f.rel, req.Relaxed)
		if last && r.cfg.MaxRewrites > 0 {
			ctrl.Rewrite = r.rewriteFunc(data, messages, response)
		}

		out, err = ctrl.Run(ctx, f.content, response, req.Hints)
		if err == nil {
			break
		}
		if last || !isPatchFailure(err) {
			result.Usage = r.deps.Prompter.Usage()
			return result, err
		}

		r.deps.Logger.Info("re-requesting patch", "path", f.rel, "attempt", attempt+1, "error", err)
		prompt := feedback.FormatFailure(err, f.content, feedback.FormatConfig{Path: f.rel})
		messages = llm.ConstructRetryMessages(messages, response, prompt)
		response, err = r.deps.Prompter.Generate(ctx, system, messages)
		if err != nil {
			result.Usage = r.deps.Prompter.Usage()
			return result, modelError("generating patch retry", err)
		}
		result.Retries++
	}

	result.Response = response
	if err := r.finish(result, out, f, repo, req.Instruction); err != nil {
		return result, err
	}
	result.Usage = r.deps.Prompter.Usage()
	return result, nil
}

// Patch applies a caller-supplied patch to one file without consulting a
// model.
func (r *Runner) Patch(ctx context.Context, req PatchRequest) (*Result, error) {
	f, err := r.open(req.Path)
	if err != nil {
		return nil, err
	}
	repo, err := r.prepareRepo()
	if err != nil {
		return nil, err
	}

	out, err := r.controller(f.rel, req.Relaxed).Run(ctx, f.content, req.Patch, req.Hints)
	if err != nil {
		return nil, err
	}

	result := &Result{Path: f.abs}
	if err := r.finish(result, out, f, repo, ""); err != nil {
		return result, err
	}
	return result, nil
}

// FilesResult describes a patch applied across several files.
type FilesResult struct {
	Files    []*editformat.FileResult // Files whose blocks all applied
	Errors   []error                  // One error per file that was left untouched
	Warnings []string                 // Malformed blocks dropped by the parser
	Commit   string                   // Commit hash when changes were committed
}

// PatchFiles applies a patch whose blocks name their files. Each file is
// patched independently; a failing file does not stop the others.
func (r *Runner) PatchFiles(ctx context.Context, raw string, hints []string, relaxed bool) (*FilesResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := r.prepareRepo()
	if err != nil {
		return nil, err
	}

	parsed := editformat.Parse(raw)
	result := &FilesResult{}
	for _, w := range parsed.Warnings {
		r.deps.Logger.Warn("dropped malformed block", "line", w.Line, "reason", w.Message)
		result.Warnings = append(result.Warnings, w.Error())
	}

	router := &editformat.Router{Applier: r.deps.Engine, Root: r.cfg.WorkDir, DryRun: r.cfg.DryRun}
	routed := router.ApplyAll(parsed.Blocks, hints, relaxed)
	result.Files = routed.Applied
	result.Errors = routed.Errors
	for _, e := range routed.Errors {
		r.deps.Logger.Warn("file not patched", "error", e)
	}

	changed := routed.ChangedPaths()
	if repo == nil || len(changed) == 0 {
		return result, nil
	}
	hash, err := repo.Commit(changed, "")
	if err != nil {
		return result, fmt.Errorf("committing: %w", err)
	}
	result.Commit = hash
	r.deps.Logger.Info("committed", "files", len(changed), "commit", hash)
	return result, nil
}

// Undo reverts the last go-patch commit in the work directory's repository.
func (r *Runner) Undo() error {
	repo, err := gitpkg.Open(gitpkg.Config{WorkDir: r.cfg.WorkDir})
	if err != nil {
		return err
	}
	return repo.Undo()
}

type file struct {
	abs     string
	rel     string // Path shown to the model and used for outline labels
	content string
}

func (r *Runner) open(path string) (*file, error) {
	if path == "" {
		return nil, fmt.Errorf("no file path given")
	}

	rel := path
	if filepath.IsAbs(path) {
		p, err := filepath.Rel(r.cfg.WorkDir, path)
		if err != nil {
			return nil, fmt.Errorf("path %q escapes %s", path, r.cfg.WorkDir)
		}
		rel = p
	}
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("path %q escapes %s", path, r.cfg.WorkDir)
	}
	abs := filepath.Join(r.cfg.WorkDir, rel)

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &file{abs: abs, rel: filepath.ToSlash(rel), content: string(content)}, nil
}

// prepareRepo opens the repository when commits are enabled and saves or
// refuses pre-existing changes.
func (r *Runner) prepareRepo() (*gitpkg.Repo, error) {
	if !r.cfg.Commit || r.cfg.DryRun {
		return nil, nil
	}

	repo, err := gitpkg.Open(gitpkg.Config{WorkDir: r.cfg.WorkDir, DirtyCommit: r.cfg.DirtyCommit})
	if err != nil {
		return nil, err
	}
	if err := repo.HandleDirty(); err != nil {
		return nil, fmt.Errorf("handling dirty files: %w", err)
	}
	return repo, nil
}

func (r *Runner) controller(path string, relaxed bool) *feedback.Controller {
	return &feedback.Controller{
		Applier: r.deps.Engine,
		Config: feedback.Config{
			Format:       feedback.FormatConfig{Path: path},
			StartRelaxed: relaxed,
			MaxRewrites:  r.cfg.MaxRewrites,
		},
		Metrics: r.deps.Metrics,
		Logger:  r.deps.Logger.With("path", path),
	}
}

// rewriteFunc asks the model for the complete document, continuing the
// conversation that produced the failed patch.
func (r *Runner) rewriteFunc(data llm.TemplateData, messages []brtypes.Message, response string) feedback.RewriteFunc {
	return func(ctx context.Context, failurePrompt string) (string, error) {
		systemPrompt, err := llm.RenderRewritePrompt(data)
		if err != nil {
			return "", fmt.Errorf("rendering rewrite prompt: %w", err)
		}

		text, err := r.deps.Prompter.Generate(ctx, llm.System(systemPrompt), llm.ConstructRetryMessages(messages, response, failurePrompt))
		if err != nil {
			return "", modelError("generating rewrite", err)
		}
		return llm.ExtractRewrite(text)
	}
}

// finish fills result from the controller outcome, writes the file and
// commits it.
func (r *Runner) finish(result *Result, out *feedback.Outcome, f *file, repo *gitpkg.Repo, summary string) error {
	result.Stage = out.Stage
	result.Changed = out.Changed
	result.Text = out.Text
	result.Rewrites = out.Rewrites
	if out.Patched != nil {
		result.Blocks = out.Patched.Blocks
	}
	for _, w := range out.Warnings {
		result.Warnings = append(result.Warnings, w.Error())
	}

	if !out.Changed || r.cfg.DryRun {
		return nil
	}

	if err := editor.ReplaceFile(f.abs, []byte(out.Text)); err != nil {
		return err
	}
	r.deps.Logger.Info("file patched", "path", f.rel, "stage", out.Stage)

	if repo == nil {
		return nil
	}
	hash, err := repo.Commit([]string{f.abs}, summary)
	if err != nil {
		return fmt.Errorf("committing %s: %w", f.rel, err)
	}
	result.Commit = hash
	return nil
}

// modelError wraps a failed model call with ErrModel. Cancellation is left
// as is.
func modelError(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrModel, err)
}

func isPatchFailure(err error) bool {
	return errors.Is(err, types.ErrNoMatch) || errors.Is(err, types.ErrAmbiguousMatch)
}
