// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package execagent

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groupsio/agentcore/internal/msgstore"
	"github.com/groupsio/agentcore/internal/normalize"
)

// QaMockAdapter never shells out to a real coding agent. It mutates a
// handful of files in the worktree the way a real agent run would, then
// emits a fixed ten-frame Claude-shaped transcript a second apart, so
// the rest of the system (diff stream, normalizer, approval routing) can
// be exercised deterministically in tests and demos without a model API
// key. Spawned as a real "sh -c" child so it goes through the same
// SpawnedChild/process-lifecycle path as every other adapter.
type QaMockAdapter struct{}

const qaMockEligibleExts = ".rs,.ts,.js,.txt,.md,.json"

func (a QaMockAdapter) Spawn(ctx context.Context, cwd, prompt string, env ExecutionEnv) (*SpawnedChild, error) {
	if err := mutateWorktreeFiles(cwd); err != nil {
		return nil, fmt.Errorf("qa_mock: mutate worktree: %w", err)
	}
	script := qaMockScript(prompt)
	return runCommand(ctx, spawnOpts{argv: []string{"sh", "-c", script}, cwd: cwd, env: env.Merged(), controlStdin: false})
}

func (a QaMockAdapter) SpawnFollowUp(ctx context.Context, cwd, prompt, sessionID, resetToMessageID string, env ExecutionEnv) (*SpawnedChild, error) {
	return a.Spawn(ctx, cwd, prompt, env)
}

func (a QaMockAdapter) NormalizeLogs(child *SpawnedChild, store *msgstore.Store, worktreePath string) {
	go normalize.NewClaudeNormalizer().Run(store)
}

func (a QaMockAdapter) Availability() AvailabilityInfo {
	return AvailabilityInfo{Installed: true, AuthConfigured: true, Detail: "qa_mock needs no credentials"}
}

func (a QaMockAdapter) DefaultMCPConfigPath() string {
	return ""
}

// mutateWorktreeFiles creates one new file, and if at least two other
// eligible files already exist, removes one at random and appends a
// modification marker to a different one. It never touches the file it
// just created.
func mutateWorktreeFiles(cwd string) error {
	created := fmt.Sprintf("qa_created_%s.txt", uuid.New().String())
	if err := os.WriteFile(filepath.Join(cwd, created), []byte("created by qa_mock executor\n"), 0644); err != nil {
		return fmt.Errorf("create marker file: %w", err)
	}

	entries, err := os.ReadDir(cwd)
	if err != nil {
		return fmt.Errorf("read worktree dir: %w", err)
	}

	var eligible []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == ".git" || e.Name() == created {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext != "" && strings.Contains(","+qaMockEligibleExts+",", ","+ext+",") {
			eligible = append(eligible, e.Name())
		}
	}
	if len(eligible) < 2 {
		return nil
	}

	rand.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })
	toRemove, toModify := eligible[0], eligible[1]

	if err := os.Remove(filepath.Join(cwd, toRemove)); err != nil {
		return fmt.Errorf("remove %s: %w", toRemove, err)
	}

	marker := fmt.Sprintf("\n// modified by qa_mock at %s\n", time.Now().UTC().Format(time.RFC3339))
	f, err := os.OpenFile(filepath.Join(cwd, toModify), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", toModify, err)
	}
	defer f.Close()
	if _, err := f.WriteString(marker); err != nil {
		return fmt.Errorf("append marker to %s: %w", toModify, err)
	}
	return nil
}

// qaMockScript builds a shell one-liner that echoes the fixed ten-frame
// Claude Code control-protocol transcript, one second apart, so the
// wall-clock behavior matches a real short agent run.
func qaMockScript(prompt string) string {
	escapedPrompt := strings.ReplaceAll(prompt, "'", `'\''`)
	frames := []string{
		`{"type":"system","subtype":"init","session_id":"qa-mock-session","tools":["Read","Write","Bash"]}`,
		`{"type":"assistant","message":{"content":[{"type":"thinking","thinking":"Let me look at the request."}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"qa-tool-1","name":"Read","input":{"file_path":"README.md"}}]}}`,
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"qa-tool-1","content":"file contents"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"qa-tool-2","name":"Write","input":{"file_path":"qa_output.txt","content":"done"}}]}}`,
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"qa-tool-2","content":"ok"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"qa-tool-3","name":"Bash","input":{"command":"echo done"}}]}}`,
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"qa-tool-3","content":"done"}]}}`,
		fmt.Sprintf(`{"type":"assistant","message":{"content":[{"type":"text","text":"Handled: %s"}]}}`, escapedPrompt),
		`{"type":"result","subtype":"success","is_error":false}`,
	}

	var b strings.Builder
	for i, frame := range frames {
		if i > 0 {
			b.WriteString("sleep 1; ")
		}
		b.WriteString("echo '")
		b.WriteString(strings.ReplaceAll(frame, "'", `'\''`))
		b.WriteString("'; ")
	}
	return b.String()
}
