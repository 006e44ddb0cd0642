// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package approval implements the Approval Router: the single source of
// truth for pending tool-use approvals (spec.md §4.5). Each request is
// guarded by its own mutex so the "at-most-one terminal transition"
// invariant holds under concurrent respond()/timeout races, while the
// top-level index is a sync.Map for fine-grained per-key access (spec.md
// §5's "Approval Router uses fine-grained per-key locking via a
// concurrent map").
package approval

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/groupsio/agentcore/internal/errkind"
	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
)

type pending struct {
	mu       sync.Mutex
	req      execmodel.ApprovalRequest
	store    *msgstore.Store
	index    int
	entry    execmodel.NormalizedEntry
	done     chan struct{}
	resolved bool
	timer    *time.Timer
}

// Router tracks pending approvals by ID and by (executionProcessID,
// toolUseID) for correlation with the Claude control peer's hook/tool
// duet (spec.md §4.4).
type Router struct {
	byID      sync.Map // string -> *pending
	byProcess sync.Map // string (execProcID+"\x00"+toolUseID) -> *pending
}

// New returns an empty Router.
func New() *Router {
	return &Router{}
}

func correlationKey(execProcID, toolUseID string) string {
	return execProcID + "\x00" + toolUseID
}

// Request creates an ApprovalRequest, publishes a PendingApproval status
// patch at entryIndex in store, and blocks until the request resolves by
// Respond, by timeout, or by CancelAll for its execution process. It
// returns the terminal state and, if denied, the reason.
func (r *Router) Request(
	store *msgstore.Store,
	entryIndex int,
	entry execmodel.NormalizedEntry,
	execProcID, toolName, toolUseID string,
	input interface{},
	timeout time.Duration,
) (execmodel.ApprovalState, string, error) {
	now := time.Now()
	timeoutAt := now.Add(timeout)

	p := &pending{
		req: execmodel.ApprovalRequest{
			ID:                 uuid.New().String(),
			ExecutionProcessID: execProcID,
			ToolUseID:          toolUseID,
			ToolName:           toolName,
			Input:              input,
			RequestedAt:        now,
			TimeoutAt:          timeoutAt,
			State:              execmodel.ApprovalPending,
		},
		store: store,
		index: entryIndex,
		entry: entry,
		done:  make(chan struct{}),
	}

	r.byID.Store(p.req.ID, p)
	if toolUseID != "" {
		r.byProcess.Store(correlationKey(execProcID, toolUseID), p)
	}

	p.entry.ToolStatus = &execmodel.ToolStatus{
		Kind:        execmodel.ToolPendingApproval,
		ApprovalID:  p.req.ID,
		RequestedAt: &now,
		TimeoutAt:   &timeoutAt,
	}
	store.PushPatch(execmodel.ConversationPatch{
		Op:    execmodel.OpReplaceEntry,
		Index: entryIndex,
		Entry: &p.entry,
	})

	p.timer = time.AfterFunc(timeout, func() {
		_ = r.terminate(p, execmodel.ApprovalTimedOut, "Approval request timed out")
	})

	<-p.done
	return p.req.State, p.req.DenyReason, nil
}

// LookupByCorrelation finds a pending request's ID by
// (executionProcessID, toolUseID), used
// by the Claude control peer to pair a CanUseTool call (which lacks
// tool_use_id) with the HookCallback that preceded it.
func (r *Router) LookupByCorrelation(execProcID, toolUseID string) (string, bool) {
	v, ok := r.byProcess.Load(correlationKey(execProcID, toolUseID))
	if !ok {
		return "", false
	}
	return v.(*pending).req.ID, true
}

// Respond resolves a pending approval. Returns errkind.ErrApprovalNotFound
// if id is unknown, or errkind.ErrApprovalAlreadyCompleted if a terminal
// transition already happened — per spec.md §4.5, duplicate respond calls
// must not modify state.
func (r *Router) Respond(id string, decision execmodel.ApprovalState, denyReason string) error {
	v, ok := r.byID.Load(id)
	if !ok {
		return fmt.Errorf("approval %s: %w", id, errkind.ErrApprovalNotFound)
	}
	p := v.(*pending)
	if err := r.terminate(p, decision, denyReason); err != nil {
		return err
	}
	return nil
}

func (r *Router) terminate(p *pending, state execmodel.ApprovalState, denyReason string) error {
	p.mu.Lock()
	if p.resolved {
		p.mu.Unlock()
		return fmt.Errorf("approval %s: %w", p.req.ID, errkind.ErrApprovalAlreadyCompleted)
	}
	p.resolved = true
	p.req.State = state
	p.req.DenyReason = denyReason
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()

	r.byID.Delete(p.req.ID)
	if p.req.ToolUseID != "" {
		r.byProcess.Delete(correlationKey(p.req.ExecutionProcessID, p.req.ToolUseID))
	}

	statusKind := execmodel.ToolApproved
	switch state {
	case execmodel.ApprovalDenied:
		statusKind = execmodel.ToolRejected
	case execmodel.ApprovalTimedOut:
		statusKind = execmodel.ToolTimedOut
	}
	entry := p.entry
	entry.ToolStatus = &execmodel.ToolStatus{Kind: statusKind, Error: denyReason}
	p.store.PushPatch(execmodel.ConversationPatch{
		Op:    execmodel.OpReplaceEntry,
		Index: p.index,
		Entry: &entry,
	})

	close(p.done)
	return nil
}

// CancelAll transitions every pending approval for execProcID to
// Denied{reason:"execution terminated"} so no waiter is leaked when the
// owning execution process exits (spec.md §5 cancellation semantics).
func (r *Router) CancelAll(execProcID string) {
	r.byID.Range(func(_, v interface{}) bool {
		p := v.(*pending)
		if p.req.ExecutionProcessID == execProcID {
			_ = r.terminate(p, execmodel.ApprovalDenied, "execution terminated")
		}
		return true
	})
}
