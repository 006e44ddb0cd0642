// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package msgstore implements the per-execution Message Store: an
// append-only log of execmodel.LogMsg values with history-plus-live
// subscription. Grounded on the subscriber fan-out pattern of
// internal/service/logs.go (LogBuffer) and internal/claude/manager.go,
// tightened so that History() and Subscribe() share one synchronization
// boundary per spec.md §4.2's history_plus_stream contract.
package msgstore

import (
	"sync"

	"github.com/groupsio/agentcore/internal/execmodel"
)

// subscriberBuffer is the size of each subscriber's live channel. A slow
// subscriber that fills this buffer is dropped rather than allowed to
// apply backpressure to the writer (spec.md §5 suspension points).
const subscriberBuffer = 256

// Store is a per-execution, append-only log with broadcast-to-many
// live delivery and full-history replay.
type Store struct {
	mu       sync.Mutex
	history  []execmodel.LogMsg
	subs     map[int]chan execmodel.LogMsg
	nextSub  int
	finished bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{subs: make(map[int]chan execmodel.LogMsg)}
}

// Push appends msg to history and fans it out to live subscribers. It is
// a no-op once the store is finished, per spec.md §4.2's "if finished,
// drop" rule.
func (s *Store) Push(msg execmodel.LogMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.history = append(s.history, msg)
	for id, ch := range s.subs {
		select {
		case ch <- msg:
		default:
			// Subscriber lagged; close and drop it rather than block the
			// writer. The closed Live channel is the only signal the
			// subscriber gets; execapi's WebSocket handlers end the
			// connection when it closes.
			close(ch)
			delete(s.subs, id)
		}
	}
}

// PushPatch is a convenience wrapper for Push(JsonPatch(patch)).
func (s *Store) PushPatch(p execmodel.ConversationPatch) {
	s.Push(execmodel.JSONPatch(p))
}

// History returns a snapshot clone of the current history.
func (s *Store) History() []execmodel.LogMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]execmodel.LogMsg, len(s.history))
	copy(out, s.history)
	return out
}

// Subscription is the result of Subscribe: a history snapshot plus a
// channel that continues delivering messages appended after the
// snapshot was taken, with no gap and no duplication.
type Subscription struct {
	History []execmodel.LogMsg
	Live    <-chan execmodel.LogMsg

	store *Store
	id    int
}

// Subscribe takes the history snapshot and registers the live channel
// under the same lock, satisfying spec.md §4.2's history_plus_stream
// invariant: any message appended after the snapshot is observed
// exactly once via Live.
func (s *Store) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := make([]execmodel.LogMsg, len(s.history))
	copy(hist, s.history)

	id := s.nextSub
	s.nextSub++
	ch := make(chan execmodel.LogMsg, subscriberBuffer)
	if !s.finished {
		s.subs[id] = ch
	} else {
		// Finished already: the subscriber gets history only, then the
		// channel is closed immediately so range over Live ends cleanly.
		close(ch)
	}
	return &Subscription{History: hist, Live: ch, store: s, id: id}
}

// Unsubscribe removes the subscription's live channel from the fan-out
// set. Safe to call more than once.
func (sub *Subscription) Unsubscribe() {
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()
	if ch, ok := sub.store.subs[sub.id]; ok {
		delete(sub.store.subs, sub.id)
		close(ch)
	}
}

// MarkFinished appends a Finished message if not already finished, then
// closes every live subscriber channel. Per spec.md §3, once Finished is
// appended no further Push succeeds.
func (s *Store) MarkFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	fin := execmodel.Finished()
	s.history = append(s.history, fin)
	for id, ch := range s.subs {
		select {
		case ch <- fin:
		default:
		}
		close(ch)
		delete(s.subs, id)
	}
	s.finished = true
}

// Finished reports whether MarkFinished has already run.
func (s *Store) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}
