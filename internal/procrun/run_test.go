// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package procrun

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/groupsio/agentcore/internal/approval"
	"github.com/groupsio/agentcore/internal/execagent"
	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
)

func TestStartQaMockRunsToCompletion(t *testing.T) {
	dir := t.TempDir()
	store := msgstore.New()
	approvals := approval.New()
	proc := &execmodel.ExecutionProcess{
		ID:               "proc-1",
		ExecutorKind:     execmodel.ExecutorQaMock,
		WorkingDirectory: dir,
		StartedAt:        time.Now(),
	}

	run, err := Start(context.Background(), execagent.QaMockAdapter{}, approvals, proc, store, "say hi", execagent.ExecutionEnv{})
	require.NoError(t, err)

	select {
	case <-run.exited:
	case <-time.After(20 * time.Second):
		t.Fatal("qa_mock run did not finish in time")
	}

	require.Equal(t, execmodel.StatusCompleted, proc.Status)
	require.NotNil(t, proc.FinishedAt)

	history := store.History()
	require.NotEmpty(t, history)
}
