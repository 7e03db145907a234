// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"errors"
	"fmt"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNothingToCommit is returned by Commit when no files are given.
var ErrNothingToCommit = errors.New("no files to commit")

// HandleDirty checks for uncommitted changes and either commits them
// separately or returns ErrDirtyWorkTree, depending on Config.DirtyCommit.
func (r *Repo) HandleDirty() error {
	dirty, err := r.IsDirty()
	if err != nil {
		return err
	}

	if !dirty {
		return nil
	}

	if !r.cfg.DirtyCommit {
		return ErrDirtyWorkTree
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging dirty files: %w", err)
	}

	if _, err := wt.Commit(dirtyCommitMsg, &gogit.CommitOptions{Author: r.signature()}); err != nil {
		return fmt.Errorf("committing dirty files: %w", err)
	}

	return nil
}

// Commit stages exactly the given files and commits them with a generated
// conventional-commit message carrying the Patched-By trailer. Paths may be
// absolute or relative to the work directory. It returns the new commit hash.
func (r *Repo) Commit(files []string, summary string) (string, error) {
	if len(files) == 0 {
		return "", ErrNothingToCommit
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	staged := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := r.Rel(f)
		if err != nil {
			return "", err
		}
		if _, err := wt.Add(rel); err != nil {
			return "", fmt.Errorf("staging %s: %w", rel, err)
		}
		staged = append(staged, rel)
	}

	hash, err := wt.Commit(GenerateMessage(summary, staged), &gogit.CommitOptions{Author: r.signature()})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}

	return hash.String(), nil
}

// Undo reverts the last commit if it carries the Patched-By trailer. It
// resets softly so the patched content stays in the working tree.
func (r *Repo) Undo() error {
	commit, err := r.head()
	if err != nil {
		return err
	}
	if !hasTrailer(commit.Message) {
		return ErrNotPatchCommit
	}

	if commit.NumParents() == 0 {
		return fmt.Errorf("cannot undo: HEAD is the initial commit")
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return fmt.Errorf("getting parent commit: %w", err)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	err = wt.Reset(&gogit.ResetOptions{
		Commit: parent.Hash,
		Mode:   gogit.SoftReset,
	})
	if err != nil {
		return fmt.Errorf("resetting to parent: %w", err)
	}

	return nil
}

func (r *Repo) signature() *object.Signature {
	return &object.Signature{
		Name:  r.cfg.AuthorName,
		Email: r.cfg.AuthorEmail,
		When:  time.Now(),
	}
}
