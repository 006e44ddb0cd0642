// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sessionlog persists a Message Store's LogMsg stream to disk:
// one directory per session_id, one append-only JSONL file per
// execution_process_id (spec.md §3, §6 item 5). Grounded on
// internal/claude/store.go's appendMessage: open O_APPEND|O_CREATE,
// marshal one JSON value per line, fsync-free single write per message.
package sessionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
)

// Dir returns the on-disk directory for a session's execution logs.
func Dir(root, sessionID string) string {
	return filepath.Join(root, sessionID)
}

// Path returns the JSONL file path for one execution process's log.
func Path(root, sessionID, executionProcessID string) string {
	return filepath.Join(Dir(root, sessionID), executionProcessID+".jsonl")
}

// Writer appends every LogMsg pushed to a Store to a JSONL file on disk,
// until the store finishes.
type Writer struct {
	path string
	done chan struct{}
}

// Attach subscribes to store and starts appending its entire history
// plus future messages to path, creating parent directories as needed.
// The returned Writer's Wait method blocks until the store finishes; a
// Writer has no way to stop before that.
func Attach(store *msgstore.Store, root, sessionID, executionProcessID string) (*Writer, error) {
	path := Path(root, sessionID, executionProcessID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create session log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open session log file: %w", err)
	}

	w := &Writer{path: path, done: make(chan struct{})}
	sub := store.Subscribe()

	go func() {
		defer close(w.done)
		defer f.Close()
		bw := bufio.NewWriter(f)
		defer bw.Flush()

		for _, msg := range sub.History {
			writeLine(bw, msg)
		}
		bw.Flush()

		for msg := range sub.Live {
			writeLine(bw, msg)
			bw.Flush()
			if msg.Kind == execmodel.LogFinished {
				return
			}
		}
	}()

	return w, nil
}

func writeLine(w *bufio.Writer, msg execmodel.LogMsg) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	w.Write(data)
	w.WriteByte('\n')
}

// Wait blocks until the writer has observed the store finish.
func (w *Writer) Wait() {
	<-w.done
}

// Path returns the file path this writer appends to.
func (w *Writer) Path() string {
	return w.path
}
