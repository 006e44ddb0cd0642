// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"path/filepath"
)

// WorktreeInfo describes one git worktree as reported by `git worktree
// list --porcelain`.
type WorktreeInfo struct {
	Path     string
	Commit   string
	Branch   string
	Detached bool
	IsBare   bool
}

// Name returns the directory name of the worktree.
func (w *WorktreeInfo) Name() string {
	return filepath.Base(w.Path)
}

// GitStatus is the parsed result of `git status --porcelain`.
type GitStatus struct {
	Clean     bool
	Modified  []string
	Added     []string
	Deleted   []string
	Renamed   []string
	Untracked []string
}

// HasChanges returns true if there are any changes in the working directory.
func (s *GitStatus) HasChanges() bool {
	if s.Clean {
		return false
	}
	return len(s.Modified) > 0 || len(s.Added) > 0 || len(s.Deleted) > 0 ||
		len(s.Renamed) > 0 || len(s.Untracked) > 0
}

// BranchInfo is the parsed result of `git branch --show-current` (or a
// `rev-parse --short HEAD` fallback for a detached worktree).
type BranchInfo struct {
	Name     string
	Commit   string
	Detached bool
}

// GitExecutor abstracts the subset of git plumbing Provisioner.Inspect
// needs, so callers can substitute a fake in tests without shelling out.
type GitExecutor interface {
	WorktreeList(ctx context.Context, dir string) ([]WorktreeInfo, error)
	Status(ctx context.Context, path string) (GitStatus, error)
	BranchInfo(ctx context.Context, path string) (BranchInfo, error)
}
