// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package execagent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"

	"github.com/groupsio/agentcore/internal/execprofile"
	"github.com/groupsio/agentcore/internal/msgstore"
	"github.com/groupsio/agentcore/internal/normalize"
)

// PromptMode selects how a GenericStdoutAdapter delivers the prompt,
// matching spec.md §4.1: "The prompt is appended as the final positional
// argument or sent via stdin depending on the adapter."
type PromptMode int

const (
	PromptAsArg PromptMode = iota
	PromptAsStdinJSON
)

// SessionMode selects how a GenericStdoutAdapter resumes a conversation,
// per the recipe table in spec.md §4.1.
type SessionMode int

const (
	SessionFlagResume SessionMode = iota // pass a --flag <id> follow-up arg
	SessionAdapterManaged                // rely on the adapter's own cache; no extra flag
)

// GenericStdoutAdapter implements the stdout-JSONL adapters that do not
// need a bidirectional control channel: Gemini, Amp, Pi, Kimi, EveryCode.
// Codex is handled by CodexAdapter because its follow-up path requires
// the rollout fork (spec.md §4.1.1) rather than a plain flag.
type GenericStdoutAdapter struct {
	Profile      execprofile.AgentProfile
	PromptMode   PromptMode
	SessionMode  SessionMode
	ResumeFlag   string // e.g. "--resume", "--session", "--session-id"
	FrameTypes   normalize.FrameTypeSet
	Binary       string
	AuthMarker   string // a file under $HOME whose presence indicates login, empty to skip the check
}

func (a GenericStdoutAdapter) Spawn(ctx context.Context, cwd, prompt string, env ExecutionEnv) (*SpawnedChild, error) {
	argv := a.Profile.Command.BuildInitial()
	return a.spawnWithPrompt(ctx, cwd, prompt, env, argv)
}

func (a GenericStdoutAdapter) SpawnFollowUp(ctx context.Context, cwd, prompt, sessionID, resetToMessageID string, env ExecutionEnv) (*SpawnedChild, error) {
	if resetToMessageID != "" {
		return nil, fmt.Errorf("%s adapter: reset_to_message_id: %w", a.Profile.Label, errUnsupportedReset)
	}
	var argv []string
	if a.SessionMode == SessionFlagResume && a.ResumeFlag != "" {
		argv = a.Profile.Command.BuildFollowUp(a.ResumeFlag, sessionID)
	} else {
		argv = a.Profile.Command.BuildFollowUp()
	}
	return a.spawnWithPrompt(ctx, cwd, prompt, env, argv)
}

func (a GenericStdoutAdapter) spawnWithPrompt(ctx context.Context, cwd, prompt string, env ExecutionEnv, argv []string) (*SpawnedChild, error) {
	switch a.PromptMode {
	case PromptAsArg:
		argv = append(argv, prompt)
		sc, err := runCommand(ctx, spawnOpts{argv: argv, cwd: cwd, env: env.Merged(), controlStdin: false})
		if err != nil {
			return nil, err
		}
		return sc, nil
	case PromptAsStdinJSON:
		sc, err := runCommand(ctx, spawnOpts{argv: argv, cwd: cwd, env: env.Merged(), controlStdin: true})
		if err != nil {
			return nil, err
		}
		payload, _ := json.Marshal(map[string]string{"prompt": prompt})
		if _, werr := sc.Stdin.Write(append(payload, '\n')); werr != nil {
			return nil, fmt.Errorf("write initial prompt: %w", werr)
		}
		if closer, ok := sc.Stdin.(io.Closer); ok {
			_ = closer.Close()
		}
		return sc, nil
	default:
		return nil, fmt.Errorf("unknown prompt mode")
	}
}

func (a GenericStdoutAdapter) NormalizeLogs(child *SpawnedChild, store *msgstore.Store, worktreePath string) {
	go normalize.NewGenericNormalizer(a.FrameTypes).Run(store)
}

func (a GenericStdoutAdapter) Availability() AvailabilityInfo {
	info := AvailabilityInfo{}
	binary := a.Binary
	if binary == "" {
		binary = a.Profile.Command.Base
	}
	if _, err := exec.LookPath(binary); err == nil {
		info.Installed = true
	}
	if a.AuthMarker == "" {
		info.AuthConfigured = info.Installed
	} else {
		info.AuthConfigured = fileExists(a.AuthMarker)
	}
	return info
}

func (a GenericStdoutAdapter) DefaultMCPConfigPath() string {
	return ""
}
