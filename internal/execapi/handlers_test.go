// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package execapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/groupsio/agentcore/internal/approval"
	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
)

func newTestServer(t *testing.T, store *msgstore.Store, approvals *approval.Router) *httptest.Server {
	t.Helper()
	h := NewHandler(func(id string) (*msgstore.Store, bool) {
		if id != "proc-1" {
			return nil, false
		}
		return store, true
	}, approvals)
	r := mux.NewRouter()
	h.Register(r)
	return httptest.NewServer(r)
}

func TestRawLogWebSocketConvertsStdoutAndStderrToPatches(t *testing.T) {
	store := msgstore.New()
	store.Push(execmodel.Stdout([]byte("hello\n")))
	store.Push(execmodel.Stderr([]byte("oops\n")))

	srv := newTestServer(t, store, approval.New())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/executions/proc-1/raw"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg execmodel.LogMsg
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, execmodel.LogJSONPatch, msg.Kind)
	require.Equal(t, execmodel.OpAddStdout, msg.Patch.Op)
	require.True(t, bytes.Equal([]byte("hello\n"), msg.Patch.Chunk))

	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, execmodel.OpAddStderr, msg.Patch.Op)
	require.True(t, bytes.Equal([]byte("oops\n"), msg.Patch.Chunk))

	store.Push(execmodel.Stdout([]byte("world\n")))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, execmodel.OpAddStdout, msg.Patch.Op)
	require.True(t, bytes.Equal([]byte("world\n"), msg.Patch.Chunk))
	require.Equal(t, 1, msg.Patch.Index)

	store.MarkFinished()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, execmodel.LogFinished, msg.Kind)
}

func TestUnknownExecutionProcessReturns404(t *testing.T) {
	srv := newTestServer(t, msgstore.New(), approval.New())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/executions/does-not-exist/raw")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRespondApprovalRoutesToRouter(t *testing.T) {
	store := msgstore.New()
	approvals := approval.New()
	srv := newTestServer(t, store, approvals)
	defer srv.Close()

	type result struct {
		state execmodel.ApprovalState
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		state, _, err := approvals.Request(store, 0, execmodel.NormalizedEntry{}, "proc-1", "Bash", "tool-1", nil, 5*time.Second)
		resultCh <- result{state, err}
	}()

	var approvalID string
	require.Eventually(t, func() bool {
		id, ok := approvals.LookupByCorrelation("proc-1", "tool-1")
		if ok {
			approvalID = id
		}
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(approvalReplyBody{Decision: execmodel.ApprovalApproved})
	resp, err := http.Post(srv.URL+"/approvals/"+approvalID, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	select {
	case r := <-resultCh:
		require.NoError(t, r.err)
		require.Equal(t, execmodel.ApprovalApproved, r.state)
	case <-time.After(2 * time.Second):
		t.Fatal("approval request did not resolve")
	}
}
