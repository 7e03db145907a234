// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package git records patched files as commits and undoes them. Commits it
// creates carry a Patched-By trailer so undo never touches foreign history.
package git

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	patchTrailer   = "Patched-By: go-patch"
	dirtyCommitMsg = "chore: save uncommitted changes before patch\n\n" + patchTrailer

	defaultAuthorName  = "go-patch"
	defaultAuthorEmail = "noreply@go-patch"
)

// ErrNotPatchCommit is returned when undo targets a commit not made by go-patch.
var ErrNotPatchCommit = errors.New("HEAD is not a go-patch commit")

// ErrDirtyWorkTree is returned when uncommitted changes exist and DirtyCommit is false.
var ErrDirtyWorkTree = errors.New("uncommitted changes exist")

// ErrNoGit is returned when the working directory is not inside a git repository.
var ErrNoGit = errors.New("not a git repository")

// ErrOutsideRepo is returned for a path that is not under the worktree root.
var ErrOutsideRepo = errors.New("path is outside the repository")

// Config configures git integration behavior.
type Config struct {
	WorkDir     string // Directory inside the repository
	DirtyCommit bool   // Commit dirty files before patching instead of refusing
	AuthorName  string // Commit author (default "go-patch")
	AuthorEmail string // Commit author email (default "noreply@go-patch")
}

// Repo wraps a go-git repository for the operations we need.
type Repo struct {
	repo *gogit.Repository
	root string
	cfg  Config
}

// Open opens the git repository containing the configured work directory.
// Returns ErrNoGit if no repository is found.
func Open(cfg Config) (*Repo, error) {
	dir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", cfg.WorkDir, err)
	}

	r, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGit, err)
	}

	wt, err := r.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGit, err)
	}

	if cfg.AuthorName == "" {
		cfg.AuthorName = defaultAuthorName
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = defaultAuthorEmail
	}
	return &Repo{repo: r, root: wt.Filesystem.Root(), cfg: cfg}, nil
}

// Root returns the worktree root directory.
func (r *Repo) Root() string {
	return r.root
}

// Rel converts a path to the slash-separated form go-git stages. Relative
// paths are taken relative to the configured work directory.
func (r *Repo) Rel(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		base, err := filepath.Abs(r.cfg.WorkDir)
		if err != nil {
			return "", err
		}
		abs = filepath.Join(base, path)
	}

	rel, err := filepath.Rel(r.root, abs)
	if err != nil || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRepo, path)
	}
	return filepath.ToSlash(rel), nil
}

// IsDirty returns true if the working tree has uncommitted changes
// (either staged or unstaged).
func (r *Repo) IsDirty() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("getting status: %w", err)
	}

	return !status.IsClean(), nil
}

// IsPatchCommit reports whether HEAD carries the Patched-By trailer.
func (r *Repo) IsPatchCommit() (bool, error) {
	commit, err := r.head()
	if err != nil {
		return false, err
	}
	return hasTrailer(commit.Message), nil
}

func (r *Repo) head() (*object.Commit, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("getting HEAD: %w", err)
	}

	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("getting commit: %w", err)
	}
	return commit, nil
}

// hasTrailer reports whether a trailer line of msg is the Patched-By trailer.
func hasTrailer(msg string) bool {
	for _, line := range strings.Split(msg, "\n") {
		if strings.TrimSpace(line) == patchTrailer {
			return true
		}
	}
	return false
}

// lastCommitMessage returns the message of the HEAD commit.
func (r *Repo) lastCommitMessage() (string, error) {
	commit, err := r.head()
	if err != nil {
		return "", err
	}
	return commit.Message, nil
}

// commitCount returns the total number of commits reachable from HEAD.
func (r *Repo) commitCount() (int, error) {
	iter, err := r.repo.Log(&gogit.LogOptions{})
	if err != nil {
		return 0, err
	}
	count := 0
	err = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	return count, err
}
