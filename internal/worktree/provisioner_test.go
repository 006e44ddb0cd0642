// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	runGit(t, dir, "add", "README.md")
	runGit(t, dir, "commit", "-q", "-m", "initial")
	return dir
}

func TestProvisionerCreateAndRemove(t *testing.T) {
	repoDir := initRepo(t)
	createDir := t.TempDir()
	p := NewProvisioner(repoDir, createDir)

	ctx := context.Background()
	path, branch, err := p.Create(ctx, "attempt", "HEAD")
	require.NoError(t, err)
	require.DirExists(t, path)
	require.Contains(t, branch, "attempt-")

	baseline, err := BaselineCommit(ctx, path)
	require.NoError(t, err)
	require.NotEmpty(t, baseline)

	require.NoError(t, p.Remove(ctx, path, true))
	require.NoDirExists(t, path)
}

func TestProvisionerInspect(t *testing.T) {
	p := NewProvisioner("/repo", "/create")
	mock := &MockGitExecutor{
		worktrees: []WorktreeInfo{
			{Path: "/create/attempt-123", Commit: "abc1234", Branch: "attempt-123"},
		},
		status: GitStatus{Modified: []string{"main.go"}},
		branch: BranchInfo{Name: "attempt-123"},
	}
	p.WithGitExecutor(mock)

	info, status, branch, err := p.Inspect(context.Background(), "/create/attempt-123")
	require.NoError(t, err)
	require.Equal(t, "attempt-123", info.Branch)
	require.True(t, status.HasChanges())
	require.Equal(t, "attempt-123", branch.Name)
}

func TestProvisionerInspect_RealWorktree(t *testing.T) {
	repoDir := initRepo(t)
	createDir := t.TempDir()
	p := NewProvisioner(repoDir, createDir)

	ctx := context.Background()
	path, branch, err := p.Create(ctx, "attempt", "HEAD")
	require.NoError(t, err)

	info, status, branchInfo, err := p.Inspect(ctx, path)
	require.NoError(t, err)
	require.Equal(t, branch, info.Branch)
	require.True(t, status.Clean)
	require.Equal(t, branch, branchInfo.Name)

	require.NoError(t, p.Remove(ctx, path, true))
}
