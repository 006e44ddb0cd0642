// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package execprofile builds executor command lines and resolves
// deployment-chosen agent profiles. Grounded on
// original_source/crates/executors/src/{command_builder.rs,profile.rs}:
// a CommandBuilder assembles a positional argument vector (base command
// plus fixed params), and an AgentProfile binds a label to an executor
// kind plus its CommandBuilder. A built-in default profile set is used
// when no profiles.json-equivalent override is supplied (configuration
// *loading* itself is an external collaborator per spec.md §1).
package execprofile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/groupsio/agentcore/internal/execmodel"
)

// CommandBuilder assembles the argv for an adapter's initial spawn and
// follow-up spawn.
type CommandBuilder struct {
	Base   string   `json:"base"`
	Params []string `json:"params,omitempty"`
}

// NewCommandBuilder returns a builder for the given base executable.
func NewCommandBuilder(base string) CommandBuilder {
	return CommandBuilder{Base: base}
}

// WithParams returns a copy of b with params appended.
func (b CommandBuilder) WithParams(params ...string) CommandBuilder {
	out := b
	out.Params = append(append([]string{}, b.Params...), params...)
	return out
}

// BuildInitial returns the argv for the first turn: base split on
// whitespace plus params.
func (b CommandBuilder) BuildInitial() []string {
	return append(splitFields(b.Base), b.Params...)
}

// BuildFollowUp returns the argv for a follow-up turn: base, params, then
// additionalArgs (e.g. --resume <id>).
func (b CommandBuilder) BuildFollowUp(additionalArgs ...string) []string {
	argv := append(splitFields(b.Base), b.Params...)
	return append(argv, additionalArgs...)
}

func splitFields(s string) []string {
	var fields []string
	start := -1
	for i, r := range s {
		if r == ' ' {
			if start >= 0 {
				fields = append(fields, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, s[start:])
	}
	return fields
}

// AgentProfile binds a label to the executor it configures and the
// command line used to invoke it.
type AgentProfile struct {
	Label   string                 `json:"label"`
	Agent   execmodel.ExecutorKind `json:"agent"`
	Command CommandBuilder         `json:"command"`
}

// ProfileSet is a labeled collection of AgentProfile, analogous to
// profile.rs's AgentProfiles.
type ProfileSet struct {
	Profiles []AgentProfile `json:"profiles"`
}

// Get returns the profile with the given label.
func (ps ProfileSet) Get(label string) (AgentProfile, bool) {
	for _, p := range ps.Profiles {
		if p.Label == label {
			return p, true
		}
	}
	return AgentProfile{}, false
}

// ForAgent returns every profile configuring the given executor kind.
func (ps ProfileSet) ForAgent(kind execmodel.ExecutorKind) []AgentProfile {
	var out []AgentProfile
	for _, p := range ps.Profiles {
		if p.Agent == kind {
			out = append(out, p)
		}
	}
	return out
}

// LoadFromFile parses a profiles.json-shaped file.
func LoadFromFile(path string) (ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProfileSet{}, fmt.Errorf("read profiles file: %w", err)
	}
	var ps ProfileSet
	if err := json.Unmarshal(data, &ps); err != nil {
		return ProfileSet{}, fmt.Errorf("parse profiles file: %w", err)
	}
	return ps, nil
}

// DefaultProfiles mirrors DefaultCommandBuilders::default_profiles: one
// profile per well-known adapter variant.
func DefaultProfiles() ProfileSet {
	return ProfileSet{Profiles: []AgentProfile{
		{
			Label: "claude-code",
			Agent: execmodel.ExecutorClaudeCode,
			Command: NewCommandBuilder("claude").WithParams(
				"-p", "--dangerously-skip-permissions", "--verbose",
				"--output-format=stream-json", "--input-format=stream-json",
				"--permission-prompt-tool", "stdio",
			),
		},
		{
			Label: "claude-code-plan",
			Agent: execmodel.ExecutorClaudeCode,
			Command: NewCommandBuilder("claude").WithParams(
				"-p", "--permission-mode=plan", "--verbose",
				"--output-format=stream-json", "--input-format=stream-json",
				"--permission-prompt-tool", "stdio",
			),
		},
		{
			Label:   "aws-bedrock",
			Agent:   execmodel.ExecutorAwsBedrock,
			Command: NewCommandBuilder("claude").WithParams("-p", "--verbose", "--output-format=stream-json"),
		},
		{
			Label:   "gemini",
			Agent:   execmodel.ExecutorGemini,
			Command: NewCommandBuilder("gemini").WithParams("--yolo"),
		},
		{
			Label:   "codex",
			Agent:   execmodel.ExecutorCodex,
			Command: NewCommandBuilder("codex").WithParams("exec", "--json"),
		},
		{
			Label:   "amp",
			Agent:   execmodel.ExecutorAmp,
			Command: NewCommandBuilder("amp").WithParams("--format=jsonl"),
		},
		{
			Label:   "pi",
			Agent:   execmodel.ExecutorPi,
			Command: NewCommandBuilder("pi").WithParams("--rpc"),
		},
		{
			Label:   "kimi",
			Agent:   execmodel.ExecutorKimi,
			Command: NewCommandBuilder("kimi").WithParams("--acp"),
		},
		{
			Label:   "every-code",
			Agent:   execmodel.ExecutorEveryCode,
			Command: NewCommandBuilder("every-code").WithParams("--acp"),
		},
		{
			Label:   "qa-mock",
			Agent:   execmodel.ExecutorQaMock,
			Command: CommandBuilder{},
		},
	}}
}
