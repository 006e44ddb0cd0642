// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package codexrollout implements the Codex rollout fork/migration
// (spec.md §4.1.1): locating the newest rollout file for a session,
// rewriting its session-meta header, wrapping legacy untagged lines, and
// writing the result into today's dated directory so a follow-up turn
// can resume from a fresh file without mutating the original.
package codexrollout

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionsRoot returns ~/.codex/sessions.
func SessionsRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".codex", "sessions"), nil
}

// FindNewestRollout walks SessionsRoot for the newest rollout-*.jsonl
// file whose name contains sessionID, per spec.md §4.1.1(a).
func FindNewestRollout(sessionsRoot, sessionID string) (string, error) {
	var candidates []string
	err := filepath.Walk(sessionsRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if strings.HasPrefix(name, "rollout-") && strings.HasSuffix(name, ".jsonl") && strings.Contains(name, sessionID) {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk sessions root: %w", err)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no rollout file found for session %s", sessionID)
	}
	sort.Slice(candidates, func(i, j int) bool {
		fi, _ := os.Stat(candidates[i])
		fj, _ := os.Stat(candidates[j])
		return fi.ModTime().After(fj.ModTime())
	})
	return candidates[0], nil
}

// sessionMeta is the loosely-typed first line of a rollout file.
type sessionMeta map[string]interface{}

func (m sessionMeta) stringOr(key, def string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// Result is the outcome of forking a rollout file.
type Result struct {
	NewPath      string
	NewSessionID string
}

// Fork implements spec.md §4.1.1(b)-(d): rewrite the session-meta header
// with a fresh id/timestamp and defaulted string fields, wrap any legacy
// untagged line, discard lines carrying record_type, and write the
// result under today's dated directory.
func Fork(sessionsRoot, sourcePath string) (*Result, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("open rollout file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("rollout file %s is empty", sourcePath)
	}
	var meta sessionMeta
	if err := json.Unmarshal(scanner.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("parse session-meta line: %w", err)
	}

	newSessionID := uuid.New().String()
	now := time.Now().UTC()

	meta["id"] = newSessionID
	meta["timestamp"] = now.Format(time.RFC3339Nano)
	meta["cwd"] = meta.stringOr("cwd", ".")
	meta["originator"] = meta.stringOr("originator", "codex_cli_rs")
	meta["cli_version"] = meta.stringOr("cli_version", "0.0.0-migrated")
	meta["source"] = meta.stringOr("source", "cli")

	var lines [][]byte
	metaLine, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal session-meta: %w", err)
	}
	lines = append(lines, metaLine)

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var generic map[string]interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			// Not JSON at all: carry the line through unmodified rather
			// than discarding data we can't interpret.
			lines = append(lines, append([]byte(nil), raw...))
			continue
		}
		if _, hasRecordType := generic["record_type"]; hasRecordType {
			continue // discarded per spec.md §4.1.1(c)
		}
		_, hasType := generic["type"]
		_, hasPayload := generic["payload"]
		_, hasTimestamp := generic["timestamp"]
		if hasType && hasPayload && hasTimestamp {
			lines = append(lines, append([]byte(nil), raw...))
			continue
		}
		wrapped := map[string]interface{}{
			"timestamp": now.Format(time.RFC3339Nano),
			"type":      "response_item",
			"payload":   generic,
		}
		wrappedLine, err := json.Marshal(wrapped)
		if err != nil {
			return nil, fmt.Errorf("marshal wrapped line: %w", err)
		}
		lines = append(lines, wrappedLine)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan rollout file: %w", err)
	}

	dateDir := filepath.Join(sessionsRoot, now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return nil, fmt.Errorf("create dated dir: %w", err)
	}

	filenameTS := now.Format("20060102T150405")
	newPath := filepath.Join(dateDir, fmt.Sprintf("rollout-%s-%s.jsonl", filenameTS, newSessionID))

	out, err := os.Create(newPath)
	if err != nil {
		return nil, fmt.Errorf("create forked rollout file: %w", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return nil, fmt.Errorf("write forked rollout line: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return nil, fmt.Errorf("write newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush forked rollout file: %w", err)
	}

	return &Result{NewPath: newPath, NewSessionID: newSessionID}, nil
}
