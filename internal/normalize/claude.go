// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package normalize implements the Log Normalizer (spec.md §4.3): parsers
// that turn each adapter's raw stdout/stderr into execmodel.NormalizedEntry
// values and emit them as JsonPatch messages back into the Message Store.
// The Claude normalizer is grounded on internal/claude/manager.go's
// handleStreamEvent dispatch and is reused verbatim by the AwsBedrock and
// QaMock adapters, which emit the identical ClaudeJson wire shape (see
// original_source/crates/executors/src/executors/qa_mock.rs's
// normalize_logs, which literally reuses the Claude log processor).
package normalize

import (
	"bytes"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
)

// claudeLine is the minimal envelope every Claude-JSON line carries.
type claudeLine struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype"`
	Session string          `json:"session_id"`
	Message json.RawMessage `json:"message"`
	IsError bool            `json:"is_error"`
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   string          `json:"content"`
	IsError   bool            `json:"is_error"`
}

// ClaudeNormalizer holds the per-execution state needed to correlate
// tool_use with tool_result and to keep entry_index monotonic, per
// spec.md §4.3's "common discipline".
type ClaudeNormalizer struct {
	mu          sync.Mutex
	nextIndex   int
	toolIndex   map[string]int // tool_use_id -> entry index, for replace_entry correlation
	partialLine bytes.Buffer
}

// NewClaudeNormalizer returns a fresh normalizer instance.
func NewClaudeNormalizer() *ClaudeNormalizer {
	return &ClaudeNormalizer{toolIndex: make(map[string]int)}
}

// Run subscribes to store and processes Stdout/Stderr chunks until the
// store is finished. Intended to run in its own goroutine, started by an
// adapter's NormalizeLogs.
func (n *ClaudeNormalizer) Run(store *msgstore.Store) {
	sub := store.Subscribe()
	defer sub.Unsubscribe()

	for _, msg := range sub.History {
		n.handle(store, msg)
	}
	for msg := range sub.Live {
		n.handle(store, msg)
	}
}

func (n *ClaudeNormalizer) handle(store *msgstore.Store, msg execmodel.LogMsg) {
	switch msg.Kind {
	case execmodel.LogStdout:
		n.feed(store, msg.Bytes)
	case execmodel.LogStderr:
		// Raw stderr continues to be stored as-is; no structured entries.
	default:
	}
}

// feed buffers partial lines across chunks (spec.md §4.3: "tolerate
// partial lines; a trailing incomplete line is buffered until the next
// chunk or until child exit").
func (n *ClaudeNormalizer) feed(store *msgstore.Store, chunk []byte) {
	n.mu.Lock()
	n.partialLine.Write(chunk)
	data := append([]byte(nil), n.partialLine.Bytes()...)
	n.partialLine.Reset()
	n.mu.Unlock()

	endsInNewline := bytes.HasSuffix(data, []byte("\n"))
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		if i == len(lines)-1 && !endsInNewline {
			if len(line) > 0 {
				n.mu.Lock()
				n.partialLine.Write(line)
				n.mu.Unlock()
			}
			break
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		n.processLine(store, line)
	}
}

func (n *ClaudeNormalizer) processLine(store *msgstore.Store, line []byte) {
	var cl claudeLine
	if err := json.Unmarshal(line, &cl); err != nil {
		n.emitEntry(store, execmodel.NormalizedEntry{
			Kind: execmodel.EntryErrorMessage,
			Text: "parse",
		})
		log.Printf("normalize/claude: malformed line: %v", err)
		return
	}

	switch cl.Type {
	case "system":
		if cl.Subtype == "init" && cl.Session != "" {
			store.Push(execmodel.SessionID(cl.Session))
			n.emitEntry(store, execmodel.NormalizedEntry{Kind: execmodel.EntrySystemInit, SessionID: cl.Session})
		}
	case "assistant":
		n.handleAssistant(store, cl)
	case "user":
		n.handleUser(store, cl)
	case "result":
		n.emitEntry(store, execmodel.NormalizedEntry{
			Kind: execmodel.EntryResultSummary,
			OK:   !cl.IsError,
		})
	default:
		// Unknown type: forwarded verbatim already lives in Stdout; no
		// structured entry needed.
	}
}

func (n *ClaudeNormalizer) handleAssistant(store *msgstore.Store, cl claudeLine) {
	var m claudeMessage
	if err := json.Unmarshal(cl.Message, &m); err != nil {
		return
	}
	for _, c := range m.Content {
		switch c.Type {
		case "text":
			n.emitEntry(store, execmodel.NormalizedEntry{Kind: execmodel.EntryAssistantText, Text: c.Text})
		case "thinking":
			n.emitEntry(store, execmodel.NormalizedEntry{Kind: execmodel.EntryAssistantThink, Text: c.Thinking})
		case "tool_use":
			var input interface{}
			_ = json.Unmarshal(c.Input, &input)
			idx := n.emitEntry(store, execmodel.NormalizedEntry{
				Kind:      execmodel.EntryToolUse,
				ToolID:    c.ID,
				ToolName:  c.Name,
				ToolInput: input,
				ToolStatus: &execmodel.ToolStatus{Kind: execmodel.ToolCreated},
			})
			if c.ID != "" {
				n.mu.Lock()
				n.toolIndex[c.ID] = idx
				n.mu.Unlock()
			}
		}
	}
}

func (n *ClaudeNormalizer) handleUser(store *msgstore.Store, cl claudeLine) {
	var m claudeMessage
	if err := json.Unmarshal(cl.Message, &m); err != nil {
		return
	}
	for _, c := range m.Content {
		if c.Type != "tool_result" {
			continue
		}
		n.mu.Lock()
		idx, ok := n.toolIndex[c.ToolUseID]
		n.mu.Unlock()
		status := execmodel.ToolCompleted
		errText := ""
		if c.IsError {
			status = execmodel.ToolFailed
			errText = c.Content
		}
		entry := execmodel.NormalizedEntry{
			Kind:      execmodel.EntryToolUse,
			ToolID:    c.ToolUseID,
			ResultContent: c.Content,
			ToolStatus: &execmodel.ToolStatus{Kind: status, Result: c.Content, Error: errText},
		}
		if ok {
			store.PushPatch(execmodel.ConversationPatch{Op: execmodel.OpReplaceEntry, Index: idx, Entry: &entry})
		} else {
			n.emitEntry(store, execmodel.NormalizedEntry{
				Kind:    execmodel.EntryToolResult,
				ToolID:  c.ToolUseID,
				ResultContent: c.Content,
				IsError: c.IsError,
			})
		}
	}
}

// emitEntry pushes add_entry at the next index and returns that index.
func (n *ClaudeNormalizer) emitEntry(store *msgstore.Store, e execmodel.NormalizedEntry) int {
	n.mu.Lock()
	idx := n.nextIndex
	n.nextIndex++
	n.mu.Unlock()
	store.PushPatch(execmodel.ConversationPatch{Op: execmodel.OpAddEntry, Index: idx, Entry: &e})
	return idx
}

// IndexForToolUse returns the entry index this normalizer assigned to
// toolUseID's tool_use entry, polling up to timeout since a caller on
// the control-request channel (the claudecontrol Peer) can race a few
// milliseconds ahead of this normalizer's own parse of the matching
// stream-json line. Returns false if the line never arrives (or
// toolUseID is empty) within timeout.
func (n *ClaudeNormalizer) IndexForToolUse(toolUseID string, timeout time.Duration) (int, bool) {
	if toolUseID == "" {
		return 0, false
	}
	deadline := time.Now().Add(timeout)
	for {
		n.mu.Lock()
		idx, ok := n.toolIndex[toolUseID]
		n.mu.Unlock()
		if ok {
			return idx, true
		}
		if time.Now().After(deadline) {
			return 0, false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// AddStandaloneEntry pushes a fresh add_entry patch at this normalizer's
// next available index, for a caller that needs a slot to attach status
// patches to (e.g. a tool approval whose tool_use_id never showed up in
// the stream-json the normalizer parses) without colliding with indices
// the normalizer itself assigns.
func (n *ClaudeNormalizer) AddStandaloneEntry(store *msgstore.Store, e execmodel.NormalizedEntry) int {
	return n.emitEntry(store, e)
}
