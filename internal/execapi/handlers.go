// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package execapi exposes the execution core's external interfaces
// (spec.md §6): a normalized-log WebSocket, a raw-log WebSocket, and an
// approval reply endpoint. It mounts no diff WebSocket route. Grounded on
// internal/api/handlers/claude.go's serveSession (history-then-stream
// WebSocket loop, write-mutex-guarded writes, ping/pong keepalive) and
// internal/api/router.go's mux wiring.
package execapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/groupsio/agentcore/internal/approval"
	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StoreLookup resolves an execution_process_id to its live Message
// Store, so handlers don't need to know how execution records are kept.
type StoreLookup func(executionProcessID string) (*msgstore.Store, bool)

// Handler wires the Message Store and Approval Router into HTTP/WS
// endpoints.
type Handler struct {
	Stores    StoreLookup
	Approvals *approval.Router
}

// NewHandler returns a Handler backed by the given lookup and router.
func NewHandler(stores StoreLookup, approvals *approval.Router) *Handler {
	return &Handler{Stores: stores, Approvals: approvals}
}

// Register mounts the execution core's endpoints onto r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/executions/{id}/log", h.serveLog(func() logFilter { return passThroughKind(execmodel.LogJSONPatch) })).Methods(http.MethodGet)
	r.HandleFunc("/executions/{id}/raw", h.serveLog(rawLogPatch)).Methods(http.MethodGet)
	r.HandleFunc("/approvals/{id}", h.respondApproval).Methods(http.MethodPost)
}

// logFilter decides whether msg belongs on a given WebSocket surface and,
// if so, the (possibly transformed) LogMsg to send.
type logFilter func(msg execmodel.LogMsg) (execmodel.LogMsg, bool)

// passThroughKind keeps only msgs of kind (plus the terminal Finished),
// forwarded unmodified. Used by the normalized-log endpoint.
func passThroughKind(kind execmodel.LogMsgKind) logFilter {
	return func(msg execmodel.LogMsg) (execmodel.LogMsg, bool) {
		if msg.Kind == kind || msg.Kind == execmodel.LogFinished {
			return msg, true
		}
		return execmodel.LogMsg{}, false
	}
}

// rawLogPatch implements spec.md §6 item 2: the raw-log surface carries
// Stdout/Stderr chunks converted to add_stdout/add_stderr JSON patches
// (rather than the raw LogMsg itself) plus a terminal Finished. Each
// stream's chunks are indexed independently so a client can track
// stdout and stderr as two separate growing byte buffers.
func rawLogPatch() logFilter {
	var stdoutSeq, stderrSeq int
	return func(msg execmodel.LogMsg) (execmodel.LogMsg, bool) {
		switch msg.Kind {
		case execmodel.LogStdout:
			idx := stdoutSeq
			stdoutSeq++
			return execmodel.JSONPatch(execmodel.ConversationPatch{Op: execmodel.OpAddStdout, Index: idx, Chunk: msg.Bytes}), true
		case execmodel.LogStderr:
			idx := stderrSeq
			stderrSeq++
			return execmodel.JSONPatch(execmodel.ConversationPatch{Op: execmodel.OpAddStderr, Index: idx, Chunk: msg.Bytes}), true
		case execmodel.LogFinished:
			return msg, true
		default:
			return execmodel.LogMsg{}, false
		}
	}
}

// serveLog returns a WebSocket handler that replays a store's history
// then streams live LogMsg values through filter.
func (h *Handler) serveLog(newFilter func() logFilter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		store, ok := h.Stores(id)
		if !ok {
			http.Error(w, "execution process not found", http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		filter := newFilter()

		var writeMu sync.Mutex
		writeMsg := func(msg execmodel.LogMsg) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			return conn.WriteJSON(msg)
		}

		sub := store.Subscribe()
		defer sub.Unsubscribe()

		for _, msg := range sub.History {
			out, ok := filter(msg)
			if !ok {
				continue
			}
			if writeMsg(out) != nil {
				return
			}
		}

		pingTicker := time.NewTicker(54 * time.Second)
		defer pingTicker.Stop()
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-sub.Live:
				if !ok {
					return
				}
				out, emit := filter(msg)
				if !emit {
					continue
				}
				if writeMsg(out) != nil {
					return
				}
				if out.Kind == execmodel.LogFinished {
					return
				}
			case <-pingTicker.C:
				writeMu.Lock()
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	}
}

// approvalReplyBody is the payload for POST /approvals/{id}.
type approvalReplyBody struct {
	Decision   execmodel.ApprovalState `json:"decision"`
	DenyReason string                  `json:"deny_reason,omitempty"`
}

// respondApproval implements spec.md §6's approval reply endpoint,
// routing the caller's decision through the Approval Router.
func (h *Handler) respondApproval(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body approvalReplyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Decision != execmodel.ApprovalApproved && body.Decision != execmodel.ApprovalDenied {
		http.Error(w, "decision must be approved or denied", http.StatusBadRequest)
		return
	}

	if err := h.Approvals.Respond(id, body.Decision, body.DenyReason); err != nil {
		log.Printf("execapi: approval respond %s: %v", id, err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
