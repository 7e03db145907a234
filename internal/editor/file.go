// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/petar-djukic/go-patch/pkg/types"
)

// ApplyFile reads path, applies blocks to its content and, when the content
// changed and dryRun is false, writes the result atomically. A failing block
// leaves the file untouched.
func (e *Engine) ApplyFile(path string, blocks []types.EditBlock, hints []string, relaxed, dryRun bool) (*types.Patched, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	patched, err := e.Apply(string(content), blocks, hints, relaxed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if patched.Changed && !dryRun {
		if err := ReplaceFile(path, []byte(patched.Text)); err != nil {
			return nil, err
		}
	}
	return patched, nil
}

// ReplaceFile overwrites an existing file with new content.
func ReplaceFile(path string, content []byte) error {
	if err := atomicWrite(path, content); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// atomicWrite writes data to a temp file in the same directory, then renames
// it to the target path. This prevents partial writes from corrupting files.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)

	// Preserve original file permissions if the file exists.
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	f, err := os.CreateTemp(dir, ".go-patch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
