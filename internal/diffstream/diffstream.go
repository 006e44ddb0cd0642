// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package diffstream computes and streams live file diffs against a
// fixed git baseline for one worktree (spec.md §4.6). Grounded on
// internal/watcher/binary.go's fsnotify + debounce wiring and
// internal/worktree/git.go's exec.CommandContext idiom for shelling out
// to git, generalized from "watch a binary for restart" to "watch a
// tree for content drift from a baseline commit".
package diffstream

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
	"github.com/groupsio/agentcore/internal/watcher"
)

// maxCumulativeDiffBytes bounds the total content bytes a Stream will
// push across its lifetime (spec.md §4.6): once exceeded, further diffs
// still report change_kind/additions/deletions but omit old/new content.
const maxCumulativeDiffBytes = 200 * 1024 * 1024

const debounceDuration = 300 * time.Millisecond

// Stream watches one worktree and keeps its Message Store's diff set in
// sync with the working tree's drift from a fixed baseline ref.
type Stream struct {
	worktreePath string
	baselineRef  string
	store        *msgstore.Store

	mu              sync.Mutex
	lastDiffs       map[string]execmodel.Diff // path -> last pushed diff
	cumulativeBytes int64
	omitting        bool

	watcher   *fsnotify.Watcher
	debouncer *watcher.Debouncer
	cancel    context.CancelFunc
	done      chan struct{}
}

// New returns a Stream that diffs worktreePath against baselineRef
// (typically the commit the attempt's worktree was created from).
func New(store *msgstore.Store, worktreePath, baselineRef string) *Stream {
	return &Stream{
		worktreePath: worktreePath,
		baselineRef:  baselineRef,
		store:        store,
		lastDiffs:    make(map[string]execmodel.Diff),
		debouncer:    watcher.NewDebouncer(debounceDuration),
		done:         make(chan struct{}),
	}
}

// Start computes the initial diff set and begins watching the worktree
// for further changes until ctx is canceled or Close is called.
func (s *Stream) Start(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	s.watcher = fsWatcher

	if err := s.addTreeWatches(s.worktreePath); err != nil {
		fsWatcher.Close()
		return fmt.Errorf("watch worktree: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.handleEvents(runCtx)

	if err := s.recompute(runCtx); err != nil {
		// Initial computation failing (e.g. git not yet initialized) is not
		// fatal: later filesystem events will retry.
		_ = err
	}
	return nil
}

// Close stops watching and releases the fsnotify handle.
func (s *Stream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.debouncer.Stop()
	if s.watcher != nil {
		s.watcher.Close()
	}
	<-s.done
	return nil
}

func (s *Stream) addTreeWatches(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		return s.watcher.Add(path)
	})
}

func (s *Stream) handleEvents(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if strings.Contains(event.Name, string(filepath.Separator)+".git"+string(filepath.Separator)) ||
				strings.HasSuffix(event.Name, string(filepath.Separator)+".git") {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = s.watcher.Add(event.Name)
				}
			}
			s.debouncer.Debounce("recompute", func() {
				_ = s.recompute(ctx)
			})
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// recompute diffs the current worktree against the baseline ref and
// pushes add_diff/remove_diff patches for whatever changed since the
// last recompute.
func (s *Stream) recompute(ctx context.Context) error {
	changed, err := s.extractChangedPaths(ctx)
	if err != nil {
		return fmt.Errorf("extract changed paths: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]execmodel.Diff, len(changed))
	for path, kind := range changed {
		diff, err := s.buildDiff(ctx, path, kind)
		if err != nil {
			continue
		}
		current[path] = diff
	}

	for path, diff := range current {
		prev, existed := s.lastDiffs[path]
		if existed && diffsEquivalent(prev, diff) {
			continue
		}
		s.applyBudgetPolicy(&diff)
		s.lastDiffs[path] = diff
		s.store.PushPatch(execmodel.ConversationPatch{
			Op:        execmodel.OpAddDiff,
			PathToken: execmodel.EscapePathToken(path),
			Diff:      &diff,
		})
	}

	for path := range s.lastDiffs {
		if _, stillChanged := current[path]; !stillChanged {
			delete(s.lastDiffs, path)
			s.store.PushPatch(execmodel.ConversationPatch{
				Op:        execmodel.OpRemoveDiff,
				PathToken: execmodel.EscapePathToken(path),
			})
		}
	}
	return nil
}

// applyBudgetPolicy enforces maxCumulativeDiffBytes: once the running
// total would be exceeded, omit content on this and every subsequent
// diff, keeping only change_kind/additions/deletions.
func (s *Stream) applyBudgetPolicy(diff *execmodel.Diff) {
	if s.omitting {
		s.omitDiffContents(diff)
		return
	}
	if s.cumulativeBytes+diff.ByteSize() > maxCumulativeDiffBytes {
		s.omitting = true
		s.omitDiffContents(diff)
		return
	}
	s.cumulativeBytes += diff.ByteSize()
}

func (s *Stream) omitDiffContents(diff *execmodel.Diff) {
	diff.OldContent = nil
	diff.NewContent = nil
	diff.ContentOmitted = true
}

func diffsEquivalent(a, b execmodel.Diff) bool {
	return a.ChangeKind == b.ChangeKind &&
		strPtrEqual(a.OldContent, b.OldContent) &&
		strPtrEqual(a.NewContent, b.NewContent)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// extractChangedPaths runs `git diff --name-status` between the
// baseline ref and the working tree, including untracked files.
func (s *Stream) extractChangedPaths(ctx context.Context) (map[string]execmodel.ChangeKind, error) {
	out := make(map[string]execmodel.ChangeKind)

	cmd := exec.CommandContext(ctx, "git", "-C", s.worktreePath, "diff", "--name-status", s.baselineRef, "--")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git diff --name-status: %w", err)
	}
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		status, path := fields[0], fields[len(fields)-1]
		switch {
		case strings.HasPrefix(status, "A"):
			out[path] = execmodel.ChangeAdded
		case strings.HasPrefix(status, "D"):
			out[path] = execmodel.ChangeDeleted
		case strings.HasPrefix(status, "R"):
			out[path] = execmodel.ChangeRenamed
		default:
			out[path] = execmodel.ChangeModified
		}
	}

	untracked, err := s.extractUntrackedPaths(ctx)
	if err != nil {
		return nil, err
	}
	for _, path := range untracked {
		out[path] = execmodel.ChangeAdded
	}

	return out, nil
}

func (s *Stream) extractUntrackedPaths(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", s.worktreePath, "ls-files", "--others", "--exclude-standard")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	var out []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// buildDiff reads the baseline and working-tree content for path and
// computes line-level additions/deletions via difflib.
func (s *Stream) buildDiff(ctx context.Context, path string, kind execmodel.ChangeKind) (execmodel.Diff, error) {
	diff := execmodel.Diff{Path: path, ChangeKind: kind}

	oldContent, hasOld := s.gitShow(ctx, path)
	newContent, hasNew := s.readWorkingFile(path)

	if hasOld {
		diff.OldContent = &oldContent
	}
	if hasNew {
		diff.NewContent = &newContent
	}

	var oldLines, newLines []string
	if hasOld {
		oldLines = difflib.SplitLines(oldContent)
	}
	if hasNew {
		newLines = difflib.SplitLines(newContent)
	}
	adds, dels := countLineChanges(oldLines, newLines)
	diff.Additions = &adds
	diff.Deletions = &dels

	return diff, nil
}

func countLineChanges(oldLines, newLines []string) (additions, deletions int) {
	matcher := difflib.NewMatcher(oldLines, newLines)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'i':
			additions += op.J2 - op.J1
		case 'd':
			deletions += op.I2 - op.I1
		case 'r':
			additions += op.J2 - op.J1
			deletions += op.I2 - op.I1
		}
	}
	return additions, deletions
}

func (s *Stream) gitShow(ctx context.Context, path string) (string, bool) {
	cmd := exec.CommandContext(ctx, "git", "-C", s.worktreePath, "show", fmt.Sprintf("%s:%s", s.baselineRef, path))
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", false
	}
	return stdout.String(), true
}

func (s *Stream) readWorkingFile(path string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(s.worktreePath, path))
	if err != nil {
		return "", false
	}
	return string(data), true
}
