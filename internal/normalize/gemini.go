// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"bufio"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
)

// geminiBatch is one line of the Gemini WAL file: a batch of already
// shaped patches (spec.md §4.3: "A per-process WAL file holds batches
// {batch_id, patches:[...]}"). Open question 1 (spec.md §9) says the
// rotation/cleanup policy of this file is unspecified; this tailer
// treats it as append-only and monotonically tailable and stops when the
// store finishes, without deleting or rotating the file itself.
type geminiBatch struct {
	BatchID string                         `json:"batch_id"`
	Patches []execmodel.ConversationPatch `json:"patches"`
}

// GeminiNormalizer tails a WAL file and replays its patches in order,
// deduplicated by batch_id.
type GeminiNormalizer struct {
	WALPath      string
	PollInterval time.Duration
}

// NewGeminiNormalizer returns a tailer for the given WAL path with a
// reasonable default poll interval.
func NewGeminiNormalizer(walPath string) *GeminiNormalizer {
	return &GeminiNormalizer{WALPath: walPath, PollInterval: 200 * time.Millisecond}
}

// Run tails WALPath until the store finishes. It is safe to call before
// the WAL file exists; it waits for it to appear.
func (g *GeminiNormalizer) Run(store *msgstore.Store) {
	seen := make(map[string]bool)
	var offset int64

	for !store.Finished() {
		f, err := os.Open(g.WALPath)
		if err != nil {
			time.Sleep(g.PollInterval)
			continue
		}

		if _, err := f.Seek(offset, 0); err != nil {
			log.Printf("normalize/gemini: seek WAL: %v", err)
			f.Close()
			time.Sleep(g.PollInterval)
			continue
		}

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		read := offset
		for scanner.Scan() {
			line := scanner.Bytes()
			read += int64(len(line)) + 1
			var batch geminiBatch
			if err := json.Unmarshal(line, &batch); err != nil {
				continue
			}
			if batch.BatchID != "" && seen[batch.BatchID] {
				continue
			}
			if batch.BatchID != "" {
				seen[batch.BatchID] = true
			}
			for _, p := range batch.Patches {
				store.PushPatch(p)
			}
		}
		offset = read
		f.Close()
		time.Sleep(g.PollInterval)
	}
}
