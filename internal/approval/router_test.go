// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupsio/agentcore/internal/errkind"
	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
)

func TestRequestApproveRoundTrip(t *testing.T) {
	r := New()
	store := msgstore.New()
	entry := execmodel.NormalizedEntry{Kind: execmodel.EntryToolUse, ToolID: "T1", ToolName: "Write"}

	done := make(chan execmodel.ApprovalState, 1)
	go func() {
		state, _, err := r.Request(store, 0, entry, "proc1", "Write", "T1", map[string]string{"path": "a"}, time.Minute)
		require.NoError(t, err)
		done <- state
	}()

	require.Eventually(t, func() bool {
		_, ok := r.LookupByCorrelation("proc1", "T1")
		return ok
	}, time.Second, time.Millisecond)

	id, ok := r.LookupByCorrelation("proc1", "T1")
	require.True(t, ok)
	require.NoError(t, r.Respond(id, execmodel.ApprovalApproved, ""))

	assert.Equal(t, execmodel.ApprovalApproved, <-done)
}

func TestRespondTwiceReturnsAlreadyCompleted(t *testing.T) {
	r := New()
	store := msgstore.New()
	entry := execmodel.NormalizedEntry{Kind: execmodel.EntryToolUse}

	go r.Request(store, 0, entry, "proc1", "Bash", "T2", nil, time.Minute)
	require.Eventually(t, func() bool {
		_, ok := r.LookupByCorrelation("proc1", "T2")
		return ok
	}, time.Second, time.Millisecond)

	id, _ := r.LookupByCorrelation("proc1", "T2")
	require.NoError(t, r.Respond(id, execmodel.ApprovalApproved, ""))
	err := r.Respond(id, execmodel.ApprovalDenied, "too late")
	assert.True(t, errors.Is(err, errkind.ErrApprovalAlreadyCompleted))
}

func TestTimeoutTransitionsToTimedOut(t *testing.T) {
	r := New()
	store := msgstore.New()
	entry := execmodel.NormalizedEntry{Kind: execmodel.EntryToolUse}

	state, reason, err := r.Request(store, 0, entry, "proc2", "Bash", "T3", nil, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, execmodel.ApprovalTimedOut, state)
	assert.Contains(t, reason, "timed out")
}

func TestCancelAllDeniesPendingForProcess(t *testing.T) {
	r := New()
	store := msgstore.New()
	entry := execmodel.NormalizedEntry{Kind: execmodel.EntryToolUse}

	done := make(chan execmodel.ApprovalState, 1)
	go func() {
		state, _, _ := r.Request(store, 0, entry, "proc3", "Bash", "T4", nil, time.Hour)
		done <- state
	}()
	require.Eventually(t, func() bool {
		_, ok := r.LookupByCorrelation("proc3", "T4")
		return ok
	}, time.Second, time.Millisecond)

	r.CancelAll("proc3")
	assert.Equal(t, execmodel.ApprovalDenied, <-done)
}
