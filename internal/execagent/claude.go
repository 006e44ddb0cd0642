// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package execagent

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/groupsio/agentcore/internal/approval"
	"github.com/groupsio/agentcore/internal/claudecontrol"
	"github.com/groupsio/agentcore/internal/errkind"
	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/execprofile"
	"github.com/groupsio/agentcore/internal/msgstore"
	"github.com/groupsio/agentcore/internal/normalize"
)

// ClaudeAdapter spawns Claude Code in control mode: stdin/stdout carry
// the NDJSON control protocol (spec.md §4.1's recipe table), so Spawn
// leaves stdin piped rather than null and does not write the prompt
// itself: once the caller attaches a claudecontrol.Peer, the control
// callbacks send the prompt as the first user message when the child
// reports its session init.
type ClaudeAdapter struct {
	Profile execprofile.AgentProfile
}

func (a ClaudeAdapter) Spawn(ctx context.Context, cwd, prompt string, env ExecutionEnv) (*SpawnedChild, error) {
	argv := a.Profile.Command.BuildInitial()
	sc, err := runCommand(ctx, spawnOpts{argv: argv, cwd: cwd, env: env.Merged(), controlStdin: true})
	if err != nil {
		return nil, err
	}
	sc.InitialPrompt = prompt
	attachControlPeer(sc, prompt)
	return sc, nil
}

func (a ClaudeAdapter) SpawnFollowUp(ctx context.Context, cwd, prompt, sessionID, resetToMessageID string, env ExecutionEnv) (*SpawnedChild, error) {
	if resetToMessageID != "" {
		return nil, fmt.Errorf("claude adapter: %w", errkind.ErrUnsupportedSessionReset)
	}
	argv := a.Profile.Command.BuildFollowUp("--resume", sessionID)
	sc, err := runCommand(ctx, spawnOpts{argv: argv, cwd: cwd, env: env.Merged(), controlStdin: true})
	if err != nil {
		return nil, err
	}
	sc.InitialPrompt = prompt
	attachControlPeer(sc, prompt)
	return sc, nil
}

// attachControlPeer wires sc.AttachControl so the process-lifecycle
// service can start a claudecontrol.Peer over sc.Stdin/Stdout once it
// has a Message Store and Approval Router to bridge into (spec.md
// §4.4). The peer reads Stdout through a tee so the Claude normalizer
// still sees every raw byte despite the peer consuming the same stream.
// The normalizer instance is created here, not inside NormalizeLogs, so
// controlCallbacks can correlate a CanUseTool request's tool_use_id
// against the exact entry index the normalizer assigns it.
func attachControlPeer(sc *SpawnedChild, prompt string) {
	norm := normalize.NewClaudeNormalizer()
	sc.ClaudeNormalizer = norm
	sc.AttachControl = func(store *msgstore.Store, approvals *approval.Router, procID string) {
		callbacks := newControlCallbacks(store, approvals, procID, prompt, norm)
		tee := io.TeeReader(sc.Stdout, storeStdoutWriter{store: store})
		peer := claudecontrol.Spawn(sc.Stdin, tee, callbacks)
		callbacks.setPeer(peer)
	}
}

// storeStdoutWriter adapts a Store into an io.Writer so io.TeeReader can
// mirror every byte the control peer reads into the Message Store.
type storeStdoutWriter struct {
	store *msgstore.Store
}

func (w storeStdoutWriter) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	w.store.Push(execmodel.Stdout(chunk))
	return len(p), nil
}

func (a ClaudeAdapter) NormalizeLogs(child *SpawnedChild, store *msgstore.Store, worktreePath string) {
	norm := child.ClaudeNormalizer
	if norm == nil {
		// Spawned outside attachControlPeer (shouldn't happen for this
		// adapter, but don't leave the log unnormalized).
		norm = normalize.NewClaudeNormalizer()
	}
	go norm.Run(store)
}

func (a ClaudeAdapter) Availability() AvailabilityInfo {
	info := AvailabilityInfo{}
	if _, err := exec.LookPath("claude"); err == nil {
		info.Installed = true
	}
	home, err := os.UserHomeDir()
	if err == nil {
		if _, statErr := os.Stat(filepath.Join(home, ".claude", "credentials.json")); statErr == nil {
			info.AuthConfigured = true
		}
	}
	return info
}

func (a ClaudeAdapter) DefaultMCPConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "mcp_servers.json")
}

// BedrockAdapter reuses the Claude adapter with an injected environment
// overlay (spec.md §4.1 recipe table: "reuses Claude adapter with
// injected env").
type BedrockAdapter struct {
	Claude ClaudeAdapter
}

func bedrockEnv(base ExecutionEnv) ExecutionEnv {
	out := ExecutionEnv{PathAdditions: base.PathAdditions, Vars: map[string]string{}}
	for k, v := range base.Vars {
		out.Vars[k] = v
	}
	out.Vars["CLAUDE_CODE_USE_BEDROCK"] = "1"
	if _, ok := out.Vars["AWS_REGION"]; !ok {
		if region := os.Getenv("AWS_REGION"); region != "" {
			out.Vars["AWS_REGION"] = region
		} else if region := os.Getenv("AWS_DEFAULT_REGION"); region != "" {
			out.Vars["AWS_REGION"] = region
		}
	}
	return out
}

func (a BedrockAdapter) Spawn(ctx context.Context, cwd, prompt string, env ExecutionEnv) (*SpawnedChild, error) {
	return a.Claude.Spawn(ctx, cwd, prompt, bedrockEnv(env))
}

func (a BedrockAdapter) SpawnFollowUp(ctx context.Context, cwd, prompt, sessionID, resetToMessageID string, env ExecutionEnv) (*SpawnedChild, error) {
	return a.Claude.SpawnFollowUp(ctx, cwd, prompt, sessionID, resetToMessageID, bedrockEnv(env))
}

func (a BedrockAdapter) NormalizeLogs(child *SpawnedChild, store *msgstore.Store, worktreePath string) {
	a.Claude.NormalizeLogs(child, store, worktreePath)
}

func (a BedrockAdapter) Availability() AvailabilityInfo {
	info := AvailabilityInfo{Installed: a.Claude.Availability().Installed}
	if os.Getenv("AWS_ACCESS_KEY_ID") != "" || os.Getenv("AWS_PROFILE") != "" {
		info.AuthConfigured = true
	}
	return info
}

func (a BedrockAdapter) DefaultMCPConfigPath() string {
	return a.Claude.DefaultMCPConfigPath()
}
