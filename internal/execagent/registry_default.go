// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package execagent

import (
	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/execprofile"
	"github.com/groupsio/agentcore/internal/normalize"
)

// NewDefaultRegistry wires one Adapter per built-in executor_kind using
// the built-in profile set, the central lookup table spec.md §9 calls
// for ("a central registry maps executor_kind strings to a constructor
// closure").
func NewDefaultRegistry(profiles execprofile.ProfileSet) *Registry {
	r := NewRegistry()

	if p, ok := profiles.Get("claude-code"); ok {
		r.Register(execmodel.ExecutorClaudeCode, ClaudeAdapter{Profile: p})
	}
	if p, ok := profiles.Get("aws-bedrock"); ok {
		r.Register(execmodel.ExecutorAwsBedrock, BedrockAdapter{Claude: ClaudeAdapter{Profile: p}})
	}
	if p, ok := profiles.Get("codex"); ok {
		r.Register(execmodel.ExecutorCodex, CodexAdapter{Profile: p})
	}
	if p, ok := profiles.Get("gemini"); ok {
		r.Register(execmodel.ExecutorGemini, GenericStdoutAdapter{
			Profile:     p,
			PromptMode:  PromptAsArg,
			SessionMode: SessionFlagResume,
			ResumeFlag:  "--resume",
			FrameTypes:  normalize.GeminiFrameTypes,
			AuthMarker:  "",
		})
	}
	if p, ok := profiles.Get("amp"); ok {
		r.Register(execmodel.ExecutorAmp, GenericStdoutAdapter{
			Profile:     p,
			PromptMode:  PromptAsStdinJSON,
			SessionMode: SessionAdapterManaged,
			FrameTypes:  normalize.AmpFrameTypes,
		})
	}
	if p, ok := profiles.Get("pi"); ok {
		r.Register(execmodel.ExecutorPi, GenericStdoutAdapter{
			Profile:     p,
			PromptMode:  PromptAsArg,
			SessionMode: SessionFlagResume,
			ResumeFlag:  "--session",
			FrameTypes:  normalize.PiFrameTypes,
		})
	}
	if p, ok := profiles.Get("kimi"); ok {
		r.Register(execmodel.ExecutorKimi, GenericStdoutAdapter{
			Profile:     p,
			PromptMode:  PromptAsArg,
			SessionMode: SessionFlagResume,
			ResumeFlag:  "--session-id",
			FrameTypes:  normalize.AcpFrameTypes,
		})
	}
	if p, ok := profiles.Get("every-code"); ok {
		r.Register(execmodel.ExecutorEveryCode, GenericStdoutAdapter{
			Profile:     p,
			PromptMode:  PromptAsArg,
			SessionMode: SessionFlagResume,
			ResumeFlag:  "--session-id",
			FrameTypes:  normalize.AcpFrameTypes,
		})
	}
	r.Register(execmodel.ExecutorQaMock, QaMockAdapter{})

	return r
}
