// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package execagent is the Executor Adapter Registry (spec.md §4.1): a
// set of strategy objects, one per executor_kind, each able to spawn a
// child inside a worktree and normalize its output into a Message Store.
// Modeled on internal/claude/manager.go's process-ownership pattern and
// internal/worktree/git.go's exec.CommandContext idiom, generalized to
// every adapter in spec.md's recipe table (§4.1).
package execagent

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/groupsio/agentcore/internal/approval"
	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
	"github.com/groupsio/agentcore/internal/normalize"
)

// ExecutionEnv is the adapter-computed environment overlay applied on
// top of the inherited process environment: PATH additions and model
// secrets (spec.md §4.1 "Spawning policy").
type ExecutionEnv struct {
	PathAdditions []string
	Vars          map[string]string
}

// Merged returns the KEY=VALUE pairs to append to a spawned child's
// environment, PATH additions first.
func (e ExecutionEnv) Merged() []string {
	var out []string
	if len(e.PathAdditions) > 0 {
		parts := append(append([]string{}, e.PathAdditions...), os.Getenv("PATH"))
		out = append(out, "PATH="+strings.Join(parts, string(os.PathListSeparator)))
	}
	for k, v := range e.Vars {
		out = append(out, k+"="+v)
	}
	return out
}

// AvailabilityInfo is the result of a fast, local-only adapter probe:
// spec.md §4.1 forbids network calls here.
type AvailabilityInfo struct {
	Installed      bool
	AuthConfigured bool
	Detail         string
}

// SpawnedChild is what an adapter hands back to the process-lifecycle
// service: a running child whose stdio the caller now owns. Stdin is
// non-nil for control-mode adapters (Claude, AwsBedrock), where the
// caller must attach a claudecontrol.Peer, and for stdin-prompt adapters
// (Amp), whose prompt is written to it and which close it themselves
// once written; other adapters leave it nil because their stdin is
// closed at spawn time.
type SpawnedChild struct {
	Cmd            *exec.Cmd
	Stdin          io.WriteCloser
	Stdout         io.ReadCloser
	Stderr         io.ReadCloser
	AgentSessionID string // set when the adapter already knows the id (e.g. Codex fork)
	InitialPrompt  string // control-mode adapters send this as the first user message once the peer is attached

	// AttachControl is set only by control-mode adapters (Claude,
	// AwsBedrock). When non-nil, the process-lifecycle service calls it
	// instead of pumping Stdout itself: the claudecontrol.Peer it starts
	// takes over reading Stdout and is responsible for also feeding raw
	// bytes into store for the Claude normalizer.
	AttachControl func(store *msgstore.Store, approvals *approval.Router, procID string)

	// ClaudeNormalizer is set only by control-mode adapters, to the same
	// instance their control callbacks correlate tool_use_id against
	// (internal/execagent/claudecontrol_callbacks.go). NormalizeLogs must
	// run this exact instance instead of constructing a fresh one, or the
	// two halves of the duet never agree on entry indices. Other adapters
	// leave it nil.
	ClaudeNormalizer *normalize.ClaudeNormalizer
}

// Adapter is the capability set every executor_kind strategy implements
// (spec.md §9's "tagged variant with a trait-like capability set").
type Adapter interface {
	Spawn(ctx context.Context, cwd, prompt string, env ExecutionEnv) (*SpawnedChild, error)
	SpawnFollowUp(ctx context.Context, cwd, prompt, sessionID string, resetToMessageID string, env ExecutionEnv) (*SpawnedChild, error)
	NormalizeLogs(child *SpawnedChild, store *msgstore.Store, worktreePath string)
	Availability() AvailabilityInfo
	DefaultMCPConfigPath() string
}

// Registry maps executor_kind to its Adapter, the central lookup table
// spec.md §9 calls for ("a central registry maps executor_kind strings
// to a constructor closure").
type Registry struct {
	adapters map[execmodel.ExecutorKind]Adapter
}

// NewRegistry returns an empty Registry; NewDefaultRegistry returns one
// with every built-in adapter kind registered.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[execmodel.ExecutorKind]Adapter)}
}

// Register installs (or replaces) the adapter for kind.
func (r *Registry) Register(kind execmodel.ExecutorKind, a Adapter) {
	r.adapters[kind] = a
}

// Get looks up the adapter for kind.
func (r *Registry) Get(kind execmodel.ExecutorKind) (Adapter, bool) {
	a, ok := r.adapters[kind]
	return a, ok
}

// approvalTimeout is the default deadline for a pending tool approval
// when no caller override is supplied.
const approvalTimeout = 2 * time.Minute
