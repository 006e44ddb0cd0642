// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"

	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
)

// genericFrame is the structured-event-frame shape shared by the
// Codex/ACP family and Pi's RPC stream (spec.md §4.3): each line names an
// explicit type, carries a correlation id, and optionally text/tool
// fields. The field names are fixed by the struct tags below; only the
// "type" values differ per adapter, and GenericNormalizer is configured
// with those via a FrameTypeSet, so one implementation serves Codex,
// Amp, Pi, Kimi, EveryCode and Gemini's stdout without duplicating the
// dispatch loop.
type genericFrame struct {
	Type      string          `json:"type"`
	Role      string          `json:"role"`
	Text      string          `json:"text"`
	ToolName  string          `json:"tool_name"`
	ToolID    string          `json:"tool_call_id"`
	Input     json.RawMessage `json:"input"`
	Content   string          `json:"content"`
	IsError   bool            `json:"is_error"`
	SessionID string          `json:"session_id"`
	BatchID   string          `json:"batch_id"`
}

// FrameTypeSet names the literal "type" values a given adapter uses for
// each semantic event, since Codex, Pi, Amp, Kimi/EveryCode, and Gemini
// each spell these differently on the wire.
type FrameTypeSet struct {
	SessionInit      string
	AssistantText    string
	AssistantThink   string
	ToolStart        string
	ToolUpdate       string
	ToolEnd          string
	Result           string
}

// CodexFrameTypes is the Codex/ACP family's structured-event vocabulary.
var CodexFrameTypes = FrameTypeSet{
	SessionInit:    "session_configured",
	AssistantText:  "agent_message",
	AssistantThink: "agent_reasoning",
	ToolStart:      "tool_call_begin",
	ToolUpdate:     "tool_call_update",
	ToolEnd:        "tool_call_end",
	Result:         "task_complete",
}

// PiFrameTypes mirrors Pi's tool_execution_* / message_update.* RPC
// vocabulary (spec.md §4.3).
var PiFrameTypes = FrameTypeSet{
	SessionInit:    "session_start",
	AssistantText:  "message_update.assistant_message_event.text",
	AssistantThink: "message_update.assistant_message_event.thinking",
	ToolStart:      "tool_execution_start",
	ToolUpdate:     "tool_execution_update",
	ToolEnd:        "tool_execution_end",
	Result:         "session_end",
}

// AmpFrameTypes covers Amp's plain JSONL stream.
var AmpFrameTypes = FrameTypeSet{
	SessionInit:    "init",
	AssistantText:  "text",
	AssistantThink: "thinking",
	ToolStart:      "tool_start",
	ToolUpdate:     "tool_update",
	ToolEnd:        "tool_end",
	Result:         "done",
}

// AcpFrameTypes covers Kimi and EveryCode, both speaking ACP.
var AcpFrameTypes = FrameTypeSet{
	SessionInit:    "session_notification",
	AssistantText:  "agent_message_chunk",
	AssistantThink: "agent_thought_chunk",
	ToolStart:      "tool_call",
	ToolUpdate:     "tool_call_update",
	ToolEnd:        "tool_call_update",
	Result:         "stop_reason",
}

// GeminiFrameTypes is the set the Gemini adapter runs on stdout: only
// Result ("result") is recognized, so every other Gemini frame is
// ignored. The WAL batch tailer in gemini.go (GeminiNormalizer) is a
// separate normalizer that no adapter starts.
var GeminiFrameTypes = FrameTypeSet{Result: "result"}

// GenericNormalizer fans structured-event frames into the common entry
// model, correlating tool_call_id the same way ClaudeNormalizer
// correlates tool_use_id.
type GenericNormalizer struct {
	types FrameTypeSet

	mu          sync.Mutex
	nextIndex   int
	toolIndex   map[string]int
	partialLine bytes.Buffer
}

// NewGenericNormalizer returns a normalizer configured for the given
// adapter's frame vocabulary.
func NewGenericNormalizer(types FrameTypeSet) *GenericNormalizer {
	return &GenericNormalizer{types: types, toolIndex: make(map[string]int)}
}

// Run subscribes to store and processes frames until finished.
func (n *GenericNormalizer) Run(store *msgstore.Store) {
	sub := store.Subscribe()
	defer sub.Unsubscribe()
	for _, msg := range sub.History {
		n.handle(store, msg)
	}
	for msg := range sub.Live {
		n.handle(store, msg)
	}
}

func (n *GenericNormalizer) handle(store *msgstore.Store, msg execmodel.LogMsg) {
	if msg.Kind != execmodel.LogStdout {
		return
	}
	n.mu.Lock()
	n.partialLine.Write(msg.Bytes)
	data := append([]byte(nil), n.partialLine.Bytes()...)
	n.partialLine.Reset()
	n.mu.Unlock()

	endsInNewline := bytes.HasSuffix(data, []byte("\n"))
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
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

func (n *GenericNormalizer) processLine(store *msgstore.Store, line []byte) {
	var f genericFrame
	if err := json.Unmarshal(line, &f); err != nil {
		n.emitEntry(store, execmodel.NormalizedEntry{Kind: execmodel.EntryErrorMessage, Text: "parse"})
		return
	}

	switch f.Type {
	case n.types.SessionInit:
		if f.SessionID != "" {
			store.Push(execmodel.SessionID(f.SessionID))
		}
		n.emitEntry(store, execmodel.NormalizedEntry{Kind: execmodel.EntrySystemInit, SessionID: f.SessionID})
	case n.types.AssistantText:
		n.emitEntry(store, execmodel.NormalizedEntry{Kind: execmodel.EntryAssistantText, Text: f.Text})
	case n.types.AssistantThink:
		n.emitEntry(store, execmodel.NormalizedEntry{Kind: execmodel.EntryAssistantThink, Text: f.Text})
	case n.types.ToolStart:
		var input interface{}
		_ = json.Unmarshal(f.Input, &input)
		idx := n.emitEntry(store, execmodel.NormalizedEntry{
			Kind: execmodel.EntryToolUse, ToolID: f.ToolID, ToolName: f.ToolName, ToolInput: input,
			ToolStatus: &execmodel.ToolStatus{Kind: execmodel.ToolRunning},
		})
		if f.ToolID != "" {
			n.mu.Lock()
			n.toolIndex[f.ToolID] = idx
			n.mu.Unlock()
		}
	case n.types.ToolUpdate:
		n.replaceToolStatus(store, f.ToolID, execmodel.ToolRunning, f.Content, f.IsError)
	case n.types.ToolEnd:
		status := execmodel.ToolCompleted
		if f.IsError {
			status = execmodel.ToolFailed
		}
		n.replaceToolStatus(store, f.ToolID, status, f.Content, f.IsError)
	case n.types.Result:
		n.emitEntry(store, execmodel.NormalizedEntry{Kind: execmodel.EntryResultSummary, OK: !f.IsError})
	}
}

func (n *GenericNormalizer) replaceToolStatus(store *msgstore.Store, toolID string, status execmodel.ToolStatusKind, content string, isErr bool) {
	n.mu.Lock()
	idx, ok := n.toolIndex[toolID]
	n.mu.Unlock()
	if !ok {
		return
	}
	errText := ""
	if isErr {
		errText = content
	}
	entry := execmodel.NormalizedEntry{
		Kind: execmodel.EntryToolUse, ToolID: toolID, ResultContent: content,
		ToolStatus: &execmodel.ToolStatus{Kind: status, Result: content, Error: errText},
	}
	store.PushPatch(execmodel.ConversationPatch{Op: execmodel.OpReplaceEntry, Index: idx, Entry: &entry})
}

func (n *GenericNormalizer) emitEntry(store *msgstore.Store, e execmodel.NormalizedEntry) int {
	n.mu.Lock()
	idx := n.nextIndex
	n.nextIndex++
	n.mu.Unlock()
	store.PushPatch(execmodel.ConversationPatch{Op: execmodel.OpAddEntry, Index: idx, Entry: &e})
	return idx
}
