// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package execagent

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/groupsio/agentcore/internal/codexrollout"
	"github.com/groupsio/agentcore/internal/execprofile"
	"github.com/groupsio/agentcore/internal/msgstore"
	"github.com/groupsio/agentcore/internal/normalize"
)

// CodexAdapter spawns the Codex CLI. Unlike the other stdout-JSONL
// adapters, resuming a conversation does not take a plain --resume flag:
// spec.md §4.1.1 requires forking the prior rollout file into a fresh
// one under today's dated directory before the child is told to load
// it, because Codex's own CLI does not expose a stable "continue this
// session id" entry point the way Claude's --resume does.
type CodexAdapter struct {
	Profile execprofile.AgentProfile
}

func (a CodexAdapter) Spawn(ctx context.Context, cwd, prompt string, env ExecutionEnv) (*SpawnedChild, error) {
	argv := append(a.Profile.Command.BuildInitial(), prompt)
	return runCommand(ctx, spawnOpts{argv: argv, cwd: cwd, env: env.Merged(), controlStdin: false})
}

// SpawnFollowUp implements the rollout fork/migrate recipe: locate the
// newest rollout file for sessionID, fork it into a new file with a
// rewritten session-meta header, and pass the forked path to the child
// via --resume-from.
func (a CodexAdapter) SpawnFollowUp(ctx context.Context, cwd, prompt, sessionID, resetToMessageID string, env ExecutionEnv) (*SpawnedChild, error) {
	if resetToMessageID != "" {
		return nil, fmt.Errorf("codex adapter: reset_to_message_id: %w", errUnsupportedReset)
	}

	sessionsRoot, err := codexrollout.SessionsRoot()
	if err != nil {
		return nil, fmt.Errorf("resolve codex sessions root: %w", err)
	}
	source, err := codexrollout.FindNewestRollout(sessionsRoot, sessionID)
	if err != nil {
		return nil, fmt.Errorf("locate codex rollout for session %s: %w", sessionID, err)
	}
	forked, err := codexrollout.Fork(sessionsRoot, source)
	if err != nil {
		return nil, fmt.Errorf("fork codex rollout: %w", err)
	}

	argv := append(a.Profile.Command.BuildFollowUp("--resume-from", forked.NewPath), prompt)
	return runCommand(ctx, spawnOpts{argv: argv, cwd: cwd, env: env.Merged(), controlStdin: false})
}

func (a CodexAdapter) NormalizeLogs(child *SpawnedChild, store *msgstore.Store, worktreePath string) {
	go normalize.NewGenericNormalizer(normalize.CodexFrameTypes).Run(store)
}

func (a CodexAdapter) Availability() AvailabilityInfo {
	info := AvailabilityInfo{}
	if _, err := exec.LookPath("codex"); err == nil {
		info.Installed = true
		info.AuthConfigured = true
	}
	return info
}

func (a CodexAdapter) DefaultMCPConfigPath() string {
	return ""
}
