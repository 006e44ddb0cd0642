// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package claudecontrol

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCallbacks struct {
	mu          sync.Mutex
	sessionID   string
	hookCalls   []string
	nonControl  []string
	peer        *Peer
	allowCalled chan string
}

func (f *fakeCallbacks) OnHookCallback(peer *Peer, callbackID string, input json.RawMessage, toolUseID string) (json.RawMessage, error) {
	f.mu.Lock()
	f.hookCalls = append(f.hookCalls, toolUseID)
	f.mu.Unlock()
	return json.RawMessage(`{"permissionDecision":"ask"}`), nil
}

func (f *fakeCallbacks) OnCanUseTool(peer *Peer, requestID, toolName string, input json.RawMessage) {
	f.allowCalled <- requestID
}

func (f *fakeCallbacks) OnSessionInit(sessionID string) error {
	f.mu.Lock()
	f.sessionID = sessionID
	f.mu.Unlock()
	return nil
}

func (f *fakeCallbacks) OnNonControl(line string) (bool, error) {
	f.mu.Lock()
	f.nonControl = append(f.nonControl, line)
	f.mu.Unlock()
	return strings.Contains(line, `"result"`), nil
}

type syncPipeWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncPipeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncPipeWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestPeerDispatchesSessionInitAndHookCallback(t *testing.T) {
	r, w := io.Pipe()
	out := &syncPipeWriter{}
	cb := &fakeCallbacks{allowCalled: make(chan string, 1)}
	p := Spawn(out, r, cb)
	cb.peer = p

	go func() {
		w.Write([]byte(`{"type":"system","subtype":"init","session_id":"sess-1"}` + "\n"))
		w.Write([]byte(`{"type":"control_request","request_id":"req-1","request":{"subtype":"hook_callback","callback_id":"cb-1","tool_use_id":"T1"}}` + "\n"))
		w.Write([]byte(`{"type":"result","subtype":"success"}` + "\n"))
		w.Close()
	}()

	require.Eventually(t, func() bool {
		cb.mu.Lock()
		defer cb.mu.Unlock()
		return cb.sessionID == "sess-1"
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		cb.mu.Lock()
		defer cb.mu.Unlock()
		return len(cb.hookCalls) == 1
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"request_id":"req-1"`)
	}, time.Second, time.Millisecond)

	assert.Contains(t, out.String(), `"subtype":"success"`)
}

func TestAllowToolWritesAllowBehavior(t *testing.T) {
	r, _ := io.Pipe()
	out := &syncPipeWriter{}
	cb := &fakeCallbacks{allowCalled: make(chan string, 1)}
	p := Spawn(out, r, cb)

	require.NoError(t, p.AllowTool("req-9", map[string]string{"path": "a"}, nil))
	assert.Contains(t, out.String(), `"behavior":"allow"`)
	assert.Contains(t, out.String(), `"request_id":"req-9"`)
}
