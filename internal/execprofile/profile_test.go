// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package execprofile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupsio/agentcore/internal/execmodel"
)

func TestCommandBuilderBuildInitialAndFollowUp(t *testing.T) {
	b := NewCommandBuilder("npx claude").WithParams("--verbose", "--json")
	assert.Equal(t, []string{"npx", "claude", "--verbose", "--json"}, b.BuildInitial())
	assert.Equal(t, []string{"npx", "claude", "--verbose", "--json", "--resume", "session123"},
		b.BuildFollowUp("--resume", "session123"))
}

func TestDefaultProfilesCoverEveryExecutorKind(t *testing.T) {
	ps := DefaultProfiles()
	for _, kind := range []execmodel.ExecutorKind{
		execmodel.ExecutorClaudeCode, execmodel.ExecutorGemini, execmodel.ExecutorCodex,
		execmodel.ExecutorAmp, execmodel.ExecutorPi, execmodel.ExecutorKimi,
		execmodel.ExecutorEveryCode, execmodel.ExecutorAwsBedrock, execmodel.ExecutorQaMock,
	} {
		assert.NotEmpty(t, ps.ForAgent(kind), "no default profile for %s", kind)
	}

	claude, ok := ps.Get("claude-code")
	require.True(t, ok)
	assert.Contains(t, claude.Command.BuildInitial(), "--dangerously-skip-permissions")

	claudeProfiles := ps.ForAgent(execmodel.ExecutorClaudeCode)
	assert.Len(t, claudeProfiles, 2)
}
