// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package claudecontrol implements the Claude Control Protocol Peer
// (spec.md §4.4): the bidirectional NDJSON request/response plane layered
// on a Claude Code child's stdio. Grounded on
// original_source/crates/executors/src/executors/claude/protocol.rs
// (read_loop dispatch, stdin serialized by a single lock) and adapted
// to this module's callback/approval plumbing instead of tokio tasks.
package claudecontrol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/groupsio/agentcore/internal/errkind"
)

// PermissionMode mirrors the subset of Claude CLI permission modes the
// peer needs to request via SetPermissionMode.
type PermissionMode string

const (
	PermissionDefault          PermissionMode = "default"
	PermissionAcceptEdits      PermissionMode = "acceptEdits"
	PermissionBypassPermissions PermissionMode = "bypassPermissions"
	PermissionPlan             PermissionMode = "plan"
)

// Callbacks is implemented by the owner of a Peer to react to inbound
// control requests and non-control passthrough lines.
type Callbacks interface {
	// OnHookCallback handles a HookCallback control request and returns
	// the hook output JSON to send back (not a PermissionResult).
	OnHookCallback(peer *Peer, callbackID string, input json.RawMessage, toolUseID string) (json.RawMessage, error)
	// OnCanUseTool handles a CanUseTool control request. The
	// implementation is responsible for eventually calling
	// peer.AllowTool or peer.DenyTool with requestID.
	OnCanUseTool(peer *Peer, requestID, toolName string, input json.RawMessage)
	// OnSessionInit fires when a system/init message reports a session id.
	OnSessionInit(sessionID string) error
	// OnNonControl handles any line that isn't a recognized control
	// request. Returning true tells the read loop to stop after this line
	// (seen when a {"type":"result"} frame arrives).
	OnNonControl(line string) (finished bool, err error)
}

// Peer owns the child's stdin under a single lock and drives a read loop
// over its stdout.
type Peer struct {
	stdinMu sync.Mutex
	stdin   io.Writer
}

// Spawn starts the peer's read loop in a goroutine and returns the peer
// for writing. The read loop runs until stdout hits EOF or OnNonControl
// reports finished.
func Spawn(stdin io.Writer, stdout io.Reader, callbacks Callbacks) *Peer {
	p := &Peer{stdin: stdin}
	go func() {
		if err := p.readLoop(stdout, callbacks); err != nil {
			log.Printf("claudecontrol: read loop error: %v", err)
		}
	}()
	return p
}

type envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Request   json.RawMessage `json:"request,omitempty"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

type controlRequestPayload struct {
	Subtype      string          `json:"subtype"`
	ToolName     string          `json:"tool_name,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	CallbackID   string          `json:"callback_id,omitempty"`
	ToolUseID    string          `json:"tool_use_id,omitempty"`
}

func (p *Peer) readLoop(stdout io.Reader, callbacks Callbacks) error {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}

		var env envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			finished, herr := callbacks.OnNonControl(line)
			if herr != nil {
				log.Printf("claudecontrol: non-control handler error: %v", herr)
			}
			if finished {
				return nil
			}
			continue
		}

		switch env.Type {
		case "control_request":
			p.handleControlRequest(callbacks, env)
		case "control_response":
			// Acks to our own SDK control requests (Initialize,
			// SetPermissionMode); nothing to dispatch.
		case "system":
			if env.Subtype == "init" && env.SessionID != "" {
				if err := callbacks.OnSessionInit(env.SessionID); err != nil {
					log.Printf("claudecontrol: session init handler error: %v", err)
				}
			} else {
				finished, herr := callbacks.OnNonControl(line)
				if herr != nil {
					log.Printf("claudecontrol: non-control handler error: %v", herr)
				}
				if finished {
					return nil
				}
			}
		default:
			finished, herr := callbacks.OnNonControl(line)
			if herr != nil {
				log.Printf("claudecontrol: non-control handler error: %v", herr)
			}
			if finished {
				return nil
			}
		}
	}
	return scanner.Err()
}

func (p *Peer) handleControlRequest(callbacks Callbacks, env envelope) {
	var req controlRequestPayload
	if err := json.Unmarshal(env.Request, &req); err != nil {
		log.Printf("claudecontrol: malformed control_request: %v", err)
		_ = p.sendError(env.RequestID, fmt.Errorf("%w: %v", errkind.ErrControlProtocolMalformed, err).Error())
		return
	}

	switch req.Subtype {
	case "hook_callback":
		go func() {
			out, err := callbacks.OnHookCallback(p, req.CallbackID, req.Input, req.ToolUseID)
			if err != nil {
				_ = p.sendError(env.RequestID, err.Error())
				return
			}
			_ = p.sendHookResponse(env.RequestID, out)
		}()
	case "can_use_tool":
		go callbacks.OnCanUseTool(p, env.RequestID, req.ToolName, req.Input)
	default:
		log.Printf("claudecontrol: unknown control_request subtype %q", req.Subtype)
	}
}

func (p *Peer) sendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal control message: %w", err)
	}
	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()
	if _, err := p.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write control message: %w", err)
	}
	return nil
}

type controlResponse struct {
	Type     string `json:"type"`
	Response struct {
		Subtype   string          `json:"subtype"`
		RequestID string          `json:"request_id"`
		Response  json.RawMessage `json:"response,omitempty"`
		Error     string          `json:"error,omitempty"`
	} `json:"response"`
}

func (p *Peer) sendHookResponse(requestID string, hookOutput json.RawMessage) error {
	var resp controlResponse
	resp.Type = "control_response"
	resp.Response.Subtype = "success"
	resp.Response.RequestID = requestID
	resp.Response.Response = hookOutput
	return p.sendJSON(resp)
}

func (p *Peer) sendError(requestID, errMsg string) error {
	var resp controlResponse
	resp.Type = "control_response"
	resp.Response.Subtype = "error"
	resp.Response.RequestID = requestID
	resp.Response.Error = errMsg
	return p.sendJSON(resp)
}

// AllowTool replies to a pending CanUseTool request with allow. updatedInput
// and updatedPermissions may be nil.
func (p *Peer) AllowTool(requestID string, updatedInput, updatedPermissions interface{}) error {
	payload := map[string]interface{}{"behavior": "allow"}
	if updatedInput != nil {
		payload["updatedInput"] = updatedInput
	}
	if updatedPermissions != nil {
		payload["updatedPermissions"] = updatedPermissions
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal allow payload: %w", err)
	}
	return p.sendHookResponse(requestID, raw)
}

// DenyTool replies to a pending CanUseTool request with a denial.
func (p *Peer) DenyTool(requestID, message string, interrupt bool) error {
	payload := map[string]interface{}{"behavior": "deny", "message": message}
	if interrupt {
		payload["interrupt"] = true
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal deny payload: %w", err)
	}
	return p.sendHookResponse(requestID, raw)
}

// SendUserMessage emits {"type":"user","message":{"role":"user","content":content}}.
func (p *Peer) SendUserMessage(content string) error {
	return p.sendJSON(map[string]interface{}{
		"type": "user",
		"message": map[string]interface{}{
			"role":    "user",
			"content": content,
		},
	})
}

// Initialize sends the SDK control request that registers hook callbacks.
func (p *Peer) Initialize(hooks interface{}) error {
	return p.sendJSON(map[string]interface{}{
		"type": "sdk_control_request",
		"request": map[string]interface{}{
			"subtype": "initialize",
			"hooks":   hooks,
		},
	})
}

// SetPermissionMode asks the child to switch permission modes, used when
// the ExitPlanMode tool is allowed (spec.md §4.4 hook+approval duet).
func (p *Peer) SetPermissionMode(mode PermissionMode) error {
	return p.sendJSON(map[string]interface{}{
		"type": "sdk_control_request",
		"request": map[string]interface{}{
			"subtype": "set_permission_mode",
			"mode":    mode,
		},
	})
}
