// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package execagent

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/groupsio/agentcore/internal/approval"
	"github.com/groupsio/agentcore/internal/claudecontrol"
	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
	"github.com/groupsio/agentcore/internal/normalize"
)

// toolUseIndexWait bounds how long OnCanUseTool polls the normalizer for
// the entry index assigned to a tool_use_id before falling back to a
// standalone entry. Short enough not to stall the approval, long enough
// to win the common race against the normalizer's own parse of the line.
const toolUseIndexWait = 500 * time.Millisecond

// controlCallbacks bridges a claudecontrol.Peer's hook/tool duet into the
// Approval Router (spec.md §4.4): Claude's SDK fires a PreToolUse hook
// carrying the tool_use_id first, then a CanUseTool request for the same
// tool without it, so the peer must remember the hook's tool_use_id to
// hand it to the Approval Router's correlation index when CanUseTool
// arrives moments later.
type controlCallbacks struct {
	store      *msgstore.Store
	approvals  *approval.Router
	procID     string
	prompt     string
	normalizer *normalize.ClaudeNormalizer

	mu            sync.Mutex
	peer          *claudecontrol.Peer
	initialSent   bool
	lastToolUseID map[string]string // tool_name -> most recent tool_use_id seen via hook
}

// setPeer attaches the peer once Spawn returns it, so OnSessionInit (which
// the Callbacks interface does not pass a peer into) can send the initial
// prompt once the session handshake completes.
func (c *controlCallbacks) setPeer(peer *claudecontrol.Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peer = peer
}

func newControlCallbacks(store *msgstore.Store, approvals *approval.Router, procID, prompt string, normalizer *normalize.ClaudeNormalizer) *controlCallbacks {
	return &controlCallbacks{
		store:         store,
		approvals:     approvals,
		procID:        procID,
		prompt:        prompt,
		normalizer:    normalizer,
		lastToolUseID: make(map[string]string),
	}
}

type hookInput struct {
	ToolName string `json:"tool_name"`
}

func (c *controlCallbacks) OnHookCallback(peer *claudecontrol.Peer, callbackID string, input json.RawMessage, toolUseID string) (json.RawMessage, error) {
	var h hookInput
	if err := json.Unmarshal(input, &h); err == nil && h.ToolName != "" && toolUseID != "" {
		c.mu.Lock()
		c.lastToolUseID[h.ToolName] = toolUseID
		c.mu.Unlock()
	}
	// PreToolUse hooks pass through unmodified; the actual gate is
	// CanUseTool, which the Approval Router controls.
	return json.RawMessage(`{}`), nil
}

func (c *controlCallbacks) OnCanUseTool(peer *claudecontrol.Peer, requestID, toolName string, input json.RawMessage) {
	c.mu.Lock()
	toolUseID := c.lastToolUseID[toolName]
	c.mu.Unlock()

	var decoded interface{}
	_ = json.Unmarshal(input, &decoded)

	entry := execmodel.NormalizedEntry{
		Kind:      execmodel.EntryToolUse,
		ToolID:    toolUseID,
		ToolName:  toolName,
		ToolInput: decoded,
	}

	// CanUseTool fires on the control-request channel, a separate stream
	// from the stream-json tool_use message the normalizer parses off the
	// same tee'd stdout; correlate the two by tool_use_id so the
	// PendingApproval patch lands on the entry the normalizer already
	// created instead of a slot picked independently (which could collide
	// with SystemInit at index 0, or with another pending approval).
	idx, ok := c.normalizer.IndexForToolUse(toolUseID, toolUseIndexWait)
	if !ok {
		// The tool_use line never showed up (or toolUseID is unknown):
		// give this approval its own fresh entry rather than guessing.
		idx = c.normalizer.AddStandaloneEntry(c.store, entry)
	}

	state, denyReason, err := c.approvals.Request(c.store, idx, entry, c.procID, toolName, toolUseID, decoded, approvalTimeout)
	if err != nil {
		_ = peer.DenyTool(requestID, fmt.Sprintf("approval error: %v", err), false)
		return
	}
	if state == execmodel.ApprovalApproved {
		_ = peer.AllowTool(requestID, decoded, nil)
		return
	}
	_ = peer.DenyTool(requestID, denyReason, false)
}

func (c *controlCallbacks) OnSessionInit(sessionID string) error {
	c.store.Push(execmodel.SessionID(sessionID))

	c.mu.Lock()
	peer, alreadySent := c.peer, c.initialSent
	if !alreadySent {
		c.initialSent = true
	}
	c.mu.Unlock()

	if alreadySent || peer == nil || c.prompt == "" {
		return nil
	}
	return peer.SendUserMessage(c.prompt)
}

func (c *controlCallbacks) OnNonControl(line string) (bool, error) {
	// Raw passthrough lines are already captured by the stdout tee feeding
	// the Claude normalizer; nothing further to do here except detect the
	// terminal "result" frame so the peer's read loop can stop.
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(line), &probe); err == nil && probe.Type == "result" {
		return true, nil
	}
	return false, nil
}
