// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"os/exec"
	"strings"
)

// RealGitExecutor executes real git commands, backing Provisioner.Inspect.
type RealGitExecutor struct{}

// NewRealGitExecutor creates a new git executor.
func NewRealGitExecutor() *RealGitExecutor {
	return &RealGitExecutor{}
}

// WorktreeList returns the list of git worktrees known to the repository
// at dir. Uses --porcelain format for reliable parsing of paths with
// spaces.
func (e *RealGitExecutor) WorktreeList(ctx context.Context, dir string) ([]WorktreeInfo, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "worktree", "list", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return ParseWorktreeListPorcelain(string(output)), nil
}

// Status returns the git status for a path.
func (e *RealGitExecutor) Status(ctx context.Context, path string) (GitStatus, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", path, "status", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return GitStatus{}, err
	}
	return ParseGitStatus(string(output)), nil
}

// BranchInfo returns the current branch info for a path.
func (e *RealGitExecutor) BranchInfo(ctx context.Context, path string) (BranchInfo, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", path, "branch", "--show-current")
	output, err := cmd.Output()
	if err != nil {
		// Fall back to the short HEAD commit, reported as detached
		cmd2 := exec.CommandContext(ctx, "git", "-C", path, "rev-parse", "--short", "HEAD")
		commitOutput, err2 := cmd2.Output()
		if err2 == nil {
			return BranchInfo{
				Detached: true,
				Commit:   strings.TrimSpace(string(commitOutput)),
			}, nil
		}
		return BranchInfo{}, err
	}
	return ParseBranchInfo(string(output)), nil
}

// ParseWorktreeListPorcelain parses the output of `git worktree list --porcelain`.
// This format handles paths with spaces correctly.
// Format:
//
//	worktree /path/to/worktree
//	HEAD abc1234...
//	branch refs/heads/main
//
//	worktree /path/to/bare
//	bare
func ParseWorktreeListPorcelain(output string) []WorktreeInfo {
	result := []WorktreeInfo{}

	// Split by blank lines to get each worktree block
	blocks := strings.Split(output, "\n\n")
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		info := parseWorktreeBlock(block)
		if info.Path != "" {
			result = append(result, info)
		}
	}

	return result
}

func parseWorktreeBlock(block string) WorktreeInfo {
	var info WorktreeInfo

	lines := strings.Split(block, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "worktree "):
			info.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			info.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			// Format: branch refs/heads/main -> extract "main"
			ref := strings.TrimPrefix(line, "branch ")
			info.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "bare":
			info.IsBare = true
		case line == "detached":
			info.Detached = true
		}
	}

	return info
}

// ParseGitStatus parses the output of `git status --porcelain`.
func ParseGitStatus(output string) GitStatus {
	var status GitStatus

	// Only trim trailing whitespace, not leading (the status indicators include leading spaces)
	output = strings.TrimRight(output, " \t\n\r")
	if output == "" {
		status.Clean = true
		return status
	}

	lines := strings.Split(output, "\n")
	for _, line := range lines {
		if len(line) < 3 {
			continue
		}

		// Git status porcelain format: XY PATH
		// X = index status, Y = worktree status
		// Position 2 is a space, position 3+ is the path
		indicator := line[:2]
		filename := line[3:]

		// Check specific statuses first (A, R) before general contains checks (M, D)
		// to properly classify combined statuses like AM (added+modified) or RM (renamed+modified)
		switch {
		case strings.HasPrefix(indicator, "A"):
			status.Added = append(status.Added, filename)
		case strings.HasPrefix(indicator, "R"):
			status.Renamed = append(status.Renamed, filename)
		case indicator == "??":
			status.Untracked = append(status.Untracked, filename)
		case strings.Contains(indicator, "D"):
			status.Deleted = append(status.Deleted, filename)
		case strings.Contains(indicator, "M"):
			status.Modified = append(status.Modified, filename)
		}
	}

	status.Clean = !status.HasChanges()
	return status
}

// ParseBranchInfo parses the output of `git branch --show-current`.
func ParseBranchInfo(output string) BranchInfo {
	output = strings.TrimSpace(output)

	// Check for detached HEAD format
	if strings.HasPrefix(output, "(HEAD detached at ") {
		commit := strings.TrimPrefix(output, "(HEAD detached at ")
		commit = strings.TrimSuffix(commit, ")")
		return BranchInfo{
			Detached: true,
			Commit:   commit,
		}
	}

	return BranchInfo{
		Name: output,
	}
}
