// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDirty_CleanRepo(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir, DirtyCommit: true})
	require.NoError(t, err)

	require.NoError(t, repo.HandleDirty())

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandleDirty_CommitsDirtyFiles(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir, DirtyCommit: true})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dirty.go"), []byte("package main\n"), 0o644))

	require.NoError(t, repo.HandleDirty())

	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty)

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	msg, err := repo.lastCommitMessage()
	require.NoError(t, err)
	assert.Equal(t, dirtyCommitMsg, msg)
}

func TestHandleDirty_ReturnsErrorWhenDisabled(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir, DirtyCommit: false})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dirty.go"), []byte("package main\n"), 0o644))

	err = repo.HandleDirty()
	assert.ErrorIs(t, err, ErrDirtyWorkTree)
}

func TestCommit_StagesAndCommits(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() { run() }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.go"), []byte("package main\n\nfunc run() {}\n"), 0o644))

	hash, err := repo.Commit([]string{"main.go", filepath.Join(dir, "run.go")}, "Add a run helper")
	require.NoError(t, err)
	assert.Len(t, hash, 40)

	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty)

	msg, err := repo.lastCommitMessage()
	require.NoError(t, err)
	assert.Contains(t, msg, "feat: add a run helper")
	assert.Contains(t, msg, "- main.go\n- run.go\n")
	assert.Contains(t, msg, patchTrailer)
}

func TestCommit_OnlyStagesSpecifiedFiles(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tracked.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.go"), []byte("package main\n"), 0o644))

	_, err = repo.Commit([]string{"tracked.go"}, "Add tracked file")
	require.NoError(t, err)

	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestCommit_CustomAuthor(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir, AuthorName: "Build Bot", AuthorEmail: "bot@example.com"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	_, err = repo.Commit([]string{"main.go"}, "")
	require.NoError(t, err)

	head, err := repo.head()
	require.NoError(t, err)
	assert.Equal(t, "Build Bot", head.Author.Name)
	assert.Equal(t, "bot@example.com", head.Author.Email)
	assert.Contains(t, head.Message, "chore: apply patch to main.go")
}

func TestCommit_Errors(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir})
	require.NoError(t, err)

	_, err = repo.Commit(nil, "nothing")
	assert.ErrorIs(t, err, ErrNothingToCommit)

	_, err = repo.Commit([]string{"../elsewhere.go"}, "escape")
	assert.ErrorIs(t, err, ErrOutsideRepo)

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUndo_RevertsPatchCommit(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.go"), []byte("package main\n\nfunc Feature() {}\n"), 0o644))
	_, err = repo.Commit([]string{"feature.go"}, "Add feature")
	require.NoError(t, err)

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.Undo())

	count, err = repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = os.Stat(filepath.Join(dir, "feature.go"))
	assert.NoError(t, err)
}

func TestUndo_RefusesForeignCommit(t *testing.T) {
	dir := initTestRepo(t)

	repo, err := Open(Config{WorkDir: dir})
	require.NoError(t, err)

	err = repo.Undo()
	assert.ErrorIs(t, err, ErrNotPatchCommit)

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUndo_PreservesChangesInWorkTree(t *testing.T) {
	dir := initTestRepo(t)
	addFileAndCommit(t, dir, "main.go", "package main\n\nfunc main() { /* modified */ }\n", "fix: modify main\n\n"+patchTrailer)

	repo, err := Open(Config{WorkDir: dir})
	require.NoError(t, err)

	require.NoError(t, repo.Undo())

	content, err := os.ReadFile(filepath.Join(dir, "main.go"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "modified")
}

func TestCommit_AfterHandleDirty(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir, DirtyCommit: true})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.go"), []byte("package main\n"), 0o644))
	require.NoError(t, repo.HandleDirty())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() { patched() }\n"), 0o644))
	_, err = repo.Commit([]string{"main.go"}, "Call patched")
	require.NoError(t, err)

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	ok, err := repo.IsPatchCommit()
	require.NoError(t, err)
	assert.True(t, ok)
}
