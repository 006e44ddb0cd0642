// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package worktree provisions the per-attempt filesystem directory an
// execution process runs in (spec.md's "Worktree: Per-attempt
// filesystem directory where the child runs and where diffs are
// observed"). The core takes worktree_path as a given once an attempt
// starts; Provisioner is the thin collaborator that creates and tears
// down that directory via `git worktree add`/`remove` so a caller (for
// example cmd/agentcore-demo) has something concrete to hand procrun.
package worktree

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Provisioner creates and removes git worktrees rooted under a single
// repository checkout.
type Provisioner struct {
	repoDir   string // directory to run git commands against
	createDir string // parent directory new worktrees are created under
	git       GitExecutor
}

// NewProvisioner returns a Provisioner that creates worktrees under
// createDir for the repository checked out at repoDir.
func NewProvisioner(repoDir, createDir string) *Provisioner {
	return &Provisioner{repoDir: repoDir, createDir: createDir, git: NewRealGitExecutor()}
}

// WithGitExecutor overrides the GitExecutor Inspect uses, so tests can
// substitute a fake instead of shelling out.
func (p *Provisioner) WithGitExecutor(git GitExecutor) *Provisioner {
	p.git = git
	return p
}

// Create adds a new worktree at a fresh path under createDir, checking
// out a new branch named branchPrefix-<uuid> from baseRef (e.g. "HEAD"
// or "main"). It returns the worktree's absolute path and branch name.
func (p *Provisioner) Create(ctx context.Context, branchPrefix, baseRef string) (path, branch string, err error) {
	branch = fmt.Sprintf("%s-%s", branchPrefix, uuid.New().String())
	path = filepath.Join(p.createDir, branch)

	cmd := exec.CommandContext(ctx, "git", "-C", p.repoDir, "worktree", "add", "-b", branch, path, baseRef)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", "", fmt.Errorf("git worktree add %s: %w: %s", path, err, string(out))
	}
	return path, branch, nil
}

// Remove tears down a worktree created by Create. force passes --force
// to git worktree remove, discarding uncommitted changes in it.
func (p *Provisioner) Remove(ctx context.Context, path string, force bool) error {
	args := []string{"-C", p.repoDir, "worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git worktree remove %s: %w: %s", path, err, string(out))
	}
	return nil
}

// Inspect reports the live state of a worktree Create returned: whether
// it's still registered with the repository, its current branch, and
// whether the child has left uncommitted changes in it. cmd/agentcore-demo
// uses this after a run finishes to print what the agent touched.
func (p *Provisioner) Inspect(ctx context.Context, path string) (WorktreeInfo, GitStatus, BranchInfo, error) {
	worktrees, err := p.git.WorktreeList(ctx, p.repoDir)
	if err != nil {
		return WorktreeInfo{}, GitStatus{}, BranchInfo{}, fmt.Errorf("list worktrees: %w", err)
	}

	var info WorktreeInfo
	for _, w := range worktrees {
		if w.Path == path {
			info = w
			break
		}
	}

	status, err := p.git.Status(ctx, path)
	if err != nil {
		return WorktreeInfo{}, GitStatus{}, BranchInfo{}, fmt.Errorf("status %s: %w", path, err)
	}

	branch, err := p.git.BranchInfo(ctx, path)
	if err != nil {
		return WorktreeInfo{}, GitStatus{}, BranchInfo{}, fmt.Errorf("branch info %s: %w", path, err)
	}

	return info, status, branch, nil
}

// BaselineCommit returns the commit a newly created worktree should use
// as its diff-stream baseline: the HEAD it was branched from.
func BaselineCommit(ctx context.Context, worktreePath string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", worktreePath, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("rev-parse HEAD in %s: %w", worktreePath, err)
	}
	return strings.TrimSpace(string(out)), nil
}
