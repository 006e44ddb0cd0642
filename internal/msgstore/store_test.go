// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package msgstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupsio/agentcore/internal/execmodel"
)

func TestSubscribeAfterFinishReplaysHistoryThenEnds(t *testing.T) {
	s := New()
	s.Push(execmodel.Stdout([]byte("x")))
	s.PushPatch(execmodel.ConversationPatch{Op: execmodel.OpAddEntry, Index: 0})
	s.MarkFinished()

	sub := s.Subscribe()
	require.Len(t, sub.History, 3)
	assert.Equal(t, execmodel.LogStdout, sub.History[0].Kind)
	assert.Equal(t, execmodel.LogJSONPatch, sub.History[1].Kind)
	assert.Equal(t, execmodel.LogFinished, sub.History[2].Kind)

	_, open := <-sub.Live
	assert.False(t, open, "live channel must be closed immediately for a subscriber joining post-finish")
}

func TestLiveSubscriberSeesMessagesPushedAfterSubscribe(t *testing.T) {
	s := New()
	sub := s.Subscribe()
	assert.Empty(t, sub.History)

	s.Push(execmodel.Stdout([]byte("a")))
	msg := <-sub.Live
	assert.Equal(t, execmodel.LogStdout, msg.Kind)
	assert.Equal(t, []byte("a"), msg.Bytes)

	s.MarkFinished()
	fin := <-sub.Live
	assert.Equal(t, execmodel.LogFinished, fin.Kind)
	_, open := <-sub.Live
	assert.False(t, open)
}

func TestPushAfterFinishIsDropped(t *testing.T) {
	s := New()
	s.MarkFinished()
	s.Push(execmodel.Stdout([]byte("late")))
	assert.Len(t, s.History(), 1, "only Finished should be present")
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	s := New()
	sub := s.Subscribe()
	sub.Unsubscribe()
	assert.NotPanics(t, func() { sub.Unsubscribe() })
}

func TestLaggedSubscriberIsDroppedNotBlocked(t *testing.T) {
	s := New()
	sub := s.Subscribe()
	for i := 0; i < subscriberBuffer+10; i++ {
		s.Push(execmodel.Stdout([]byte("x")))
	}
	// The writer must not have blocked; the subscriber's channel should
	// now be closed because it lagged past its buffer.
	drained := 0
	for range sub.Live {
		drained++
	}
	assert.LessOrEqual(t, drained, subscriberBuffer)
}
