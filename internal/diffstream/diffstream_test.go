// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package diffstream

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
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
	runGit(t, dir, "config", "user.email", "qa@example.com")
	runGit(t, dir, "config", "user.name", "qa")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\n"), 0644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "initial")
	return dir
}

func TestRecomputeEmitsAddDiffForModifiedFile(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\nworld\n"), 0644))

	store := msgstore.New()
	s := New(store, dir, "HEAD")
	require.NoError(t, s.recompute(context.Background()))

	history := store.History()
	require.Len(t, history, 1)
	require.Equal(t, execmodel.LogJSONPatch, history[0].Kind)
	require.Equal(t, execmodel.OpAddDiff, history[0].Patch.Op)
	require.Equal(t, "a.txt", history[0].Patch.Diff.Path)
	require.Equal(t, execmodel.ChangeModified, history[0].Patch.Diff.ChangeKind)
	require.Equal(t, 1, *history[0].Patch.Diff.Additions)
}

func TestRecomputeEmitsAddDiffForUntrackedFile(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("new file\n"), 0644))

	store := msgstore.New()
	s := New(store, dir, "HEAD")
	require.NoError(t, s.recompute(context.Background()))

	history := store.History()
	require.Len(t, history, 1)
	require.Equal(t, "b.txt", history[0].Patch.Diff.Path)
	require.Equal(t, execmodel.ChangeAdded, history[0].Patch.Diff.ChangeKind)
}

func TestRecomputeSendsRemoveDiffWhenFileReverts(t *testing.T) {
	dir := initRepo(t)
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\nworld\n"), 0644))

	store := msgstore.New()
	s := New(store, dir, "HEAD")
	require.NoError(t, s.recompute(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0644))
	require.NoError(t, s.recompute(context.Background()))

	history := store.History()
	require.Len(t, history, 2)
	require.Equal(t, execmodel.OpRemoveDiff, history[1].Patch.Op)
	require.Equal(t, "a.txt", history[1].Patch.PathToken)
}

func TestApplyBudgetPolicyOmitsContentPastBudget(t *testing.T) {
	store := msgstore.New()
	s := New(store, t.TempDir(), "HEAD")
	s.cumulativeBytes = maxCumulativeDiffBytes - 10

	big := string(make([]byte, 100))
	diff := execmodel.Diff{Path: "big.txt", ChangeKind: execmodel.ChangeAdded, NewContent: &big}
	s.applyBudgetPolicy(&diff)

	require.True(t, diff.ContentOmitted)
	require.Nil(t, diff.NewContent)
	require.True(t, s.omitting)
}

func TestStartAndCloseDoesNotHang(t *testing.T) {
	dir := initRepo(t)
	store := msgstore.New()
	s := New(store, dir, "HEAD")
	require.NoError(t, s.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		require.NoError(t, s.Close())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return in time")
	}
}
