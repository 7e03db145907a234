// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editformat

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/petar-djukic/go-patch/pkg/types"
)

// FileApplier applies an ordered group of blocks to one file.
// *editor.Engine satisfies it.
type FileApplier interface {
	ApplyFile(path string, blocks []types.EditBlock, hints []string, relaxed, dryRun bool) (*types.Patched, error)
}

// FileResult is the outcome for one patched file.
type FileResult struct {
	Path    string
	Patched *types.Patched
}

// RouteResult holds the outcome of applying blocks across files.
type RouteResult struct {
	Applied []*FileResult // Files whose blocks all applied, in first-seen order
	Errors  []error       // One error per failed file (in order)
}

// ChangedPaths returns the paths of files whose content changed.
func (r *RouteResult) ChangedPaths() []string {
	var paths []string
	for _, f := range r.Applied {
		if f.Patched.Changed {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// Router groups blocks by the file path they name and applies each group to
// its file in a single pass. A failing group leaves its file untouched and
// does not stop the other groups.
type Router struct {
	Applier FileApplier
	Root    string // Relative paths are resolved against Root when set
	DryRun  bool
}

// ApplyAll applies blocks grouped by EditBlock.Path. Blocks keep their
// relative order within a file. Failures report the block's index in the
// original sequence.
func (r *Router) ApplyAll(blocks []types.EditBlock, hints []string, relaxed bool) *RouteResult {
	result := &RouteResult{}

	var order []string
	groups := make(map[string][]types.EditBlock)
	for _, b := range blocks {
		if b.Path == "" {
			result.Errors = append(result.Errors, fmt.Errorf("block %d: no file path given", b.Index))
			continue
		}
		if _, ok := groups[b.Path]; !ok {
			order = append(order, b.Path)
		}
		groups[b.Path] = append(groups[b.Path], b)
	}

	for _, p := range order {
		group := groups[p]
		path, err := r.resolve(p)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}

		patched, err := r.Applier.ApplyFile(path, group, hints, relaxed, r.DryRun)
		if err != nil {
			result.Errors = append(result.Errors, reindex(err, group))
			continue
		}
		result.Applied = append(result.Applied, &FileResult{Path: path, Patched: patched})
	}

	return result
}

// resolve maps a block path to a file path. With Root set, both relative and
// absolute paths must stay inside Root.
func (r *Router) resolve(p string) (string, error) {
	if r.Root == "" {
		return p, nil
	}
	rel := p
	if filepath.IsAbs(p) {
		var err error
		if rel, err = filepath.Rel(r.Root, p); err != nil {
			return "", fmt.Errorf("path %q escapes %s", p, r.Root)
		}
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("path %q escapes %s", p, r.Root)
	}
	return filepath.Join(r.Root, rel), nil
}

// reindex rewrites the group-relative block index carried by err to the
// block's position in the full sequence.
func reindex(err error, group []types.EditBlock) error {
	var nm *types.NoMatchError
	var amb *types.AmbiguousMatchError
	switch {
	case errors.As(err, &nm) && nm.Index < len(group):
		nm.Index = group[nm.Index].Index
	case errors.As(err, &amb) && amb.Index < len(group):
		amb.Index = group[amb.Index].Index
	}
	return err
}
