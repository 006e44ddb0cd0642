// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package codexrollout

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, l := range lines {
		_, err := f.WriteString(l + "\n")
		require.NoError(t, err)
	}
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestForkRewritesSessionMetaAndWrapsLegacyLines(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "rollout-old-sess123.jsonl")
	writeLines(t, source, []string{
		`{"id":"sess123","timestamp":"2025-01-01T00:00:00Z"}`,
		`{"role":"user","content":"hello"}`,
		`{"timestamp":"2025-01-01T00:00:01Z","type":"response_item","payload":{"role":"assistant"}}`,
		`{"record_type":"legacy_marker","junk":true}`,
	})

	result, err := Fork(root, source)
	require.NoError(t, err)
	require.NotEmpty(t, result.NewSessionID)
	require.FileExists(t, result.NewPath)

	lines := readLines(t, result.NewPath)
	require.Len(t, lines, 3, "record_type line must be discarded")

	require.Equal(t, result.NewSessionID, lines[0]["id"])
	require.Equal(t, "cli", lines[0]["source"])
	require.Equal(t, "codex_cli_rs", lines[0]["originator"])
	require.Equal(t, "0.0.0-migrated", lines[0]["cli_version"])
	require.Equal(t, ".", lines[0]["cwd"])

	require.Equal(t, "response_item", lines[1]["type"])
	payload, ok := lines[1]["payload"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "hello", payload["content"])

	require.Equal(t, "response_item", lines[2]["type"])
}

func TestForkPreservesExistingMetaFields(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "rollout-old-sess456.jsonl")
	writeLines(t, source, []string{
		`{"id":"sess456","timestamp":"2025-01-01T00:00:00Z","cwd":"/home/me/project","originator":"vscode","cli_version":"1.2.3","source":"ide"}`,
	})

	result, err := Fork(root, source)
	require.NoError(t, err)
	lines := readLines(t, result.NewPath)
	require.Len(t, lines, 1)
	require.Equal(t, "/home/me/project", lines[0]["cwd"])
	require.Equal(t, "vscode", lines[0]["originator"])
	require.Equal(t, "1.2.3", lines[0]["cli_version"])
	require.Equal(t, "ide", lines[0]["source"])
}

func TestFindNewestRolloutMatchesSessionID(t *testing.T) {
	root := t.TempDir()
	writeLines(t, filepath.Join(root, "rollout-1-aaa.jsonl"), []string{`{"id":"aaa"}`})
	writeLines(t, filepath.Join(root, "rollout-2-bbb.jsonl"), []string{`{"id":"bbb"}`})

	found, err := FindNewestRollout(root, "bbb")
	require.NoError(t, err)
	require.Contains(t, found, "bbb")
}
