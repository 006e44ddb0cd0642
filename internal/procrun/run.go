// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package procrun is the process-lifecycle service that owns one
// spawned child end to end (spec.md §5): pumping its stdio into a
// Message Store, waiting for it to exit, resolving the ExecutionProcess
// status transition, and canceling any approvals still pending for it.
// Grounded on internal/service/process.go's captureOutput/waitForExit
// split and its liveness check before signaling, generalized from one
// long-lived service process to one short-lived agent turn.
package procrun

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"syscall"
	"time"

	gops "github.com/mitchellh/go-ps"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/sync/errgroup"

	"github.com/groupsio/agentcore/internal/approval"
	"github.com/groupsio/agentcore/internal/execagent"
	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/msgstore"
)

const readChunkSize = 64 * 1024

// chunkBufPool recycles the fixed-size read buffers every pump goroutine
// uses, so a busy server running many executions doesn't allocate a fresh
// 64KiB buffer per stdout/stderr reader goroutine.
var chunkBufPool bytebufferpool.Pool

// Run owns one spawned child's lifecycle from start to terminal status.
type Run struct {
	Proc  *execmodel.ExecutionProcess
	Store *msgstore.Store

	child     *execagent.SpawnedChild
	approvals *approval.Router

	mu            sync.Mutex
	killRequested bool
	exited        chan struct{}
}

// Start spawns proc's initial turn via adapter and begins pumping its
// stdio into store. The adapter's NormalizeLogs is started alongside it.
func Start(ctx context.Context, adapter execagent.Adapter, approvals *approval.Router, proc *execmodel.ExecutionProcess, store *msgstore.Store, prompt string, env execagent.ExecutionEnv) (*Run, error) {
	child, err := adapter.Spawn(ctx, proc.WorkingDirectory, prompt, env)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", proc.ExecutorKind, err)
	}
	return attach(ctx, adapter, approvals, proc, store, child)
}

// StartFollowUp resumes proc's session via adapter's follow-up recipe
// (spec.md §4.1.1 for Codex; the other adapters pass a resume flag, rely
// on their own session cache, or, for QaMock, start a fresh run).
func StartFollowUp(ctx context.Context, adapter execagent.Adapter, approvals *approval.Router, proc *execmodel.ExecutionProcess, store *msgstore.Store, prompt, sessionID, resetToMessageID string, env execagent.ExecutionEnv) (*Run, error) {
	child, err := adapter.SpawnFollowUp(ctx, proc.WorkingDirectory, prompt, sessionID, resetToMessageID, env)
	if err != nil {
		return nil, fmt.Errorf("spawn follow-up %s: %w", proc.ExecutorKind, err)
	}
	return attach(ctx, adapter, approvals, proc, store, child)
}

func attach(ctx context.Context, adapter execagent.Adapter, approvals *approval.Router, proc *execmodel.ExecutionProcess, store *msgstore.Store, child *execagent.SpawnedChild) (*Run, error) {
	proc.Status = execmodel.StatusRunning
	proc.AgentSessionID = child.AgentSessionID

	r := &Run{Proc: proc, Store: store, child: child, approvals: approvals, exited: make(chan struct{})}

	adapter.NormalizeLogs(child, store, proc.WorkingDirectory)

	var g errgroup.Group
	if child.AttachControl != nil {
		// Control-mode adapters (Claude, AwsBedrock) read Stdout themselves
		// via a claudecontrol.Peer, which tees raw bytes into store for the
		// normalizer; pumping Stdout here too would race two readers over
		// the same pipe.
		child.AttachControl(store, approvals, proc.ID)
	} else {
		g.Go(func() error { r.pump(execmodel.Stdout, child.Stdout); return nil })
	}
	g.Go(func() error { r.pump(execmodel.Stderr, child.Stderr); return nil })

	go r.wait(child)

	return r, nil
}

func (r *Run) pump(wrap func([]byte) execmodel.LogMsg, rc io.Reader) {
	reader := bufio.NewReaderSize(rc, readChunkSize)

	pooled := chunkBufPool.Get()
	defer chunkBufPool.Put(pooled)
	if cap(pooled.B) < readChunkSize {
		pooled.B = make([]byte, readChunkSize)
	}
	buf := pooled.B[:readChunkSize]

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			r.Store.Push(wrap(chunk))
		}
		if err != nil {
			return
		}
	}
}

func (r *Run) wait(child *execagent.SpawnedChild) {
	err := child.Cmd.Wait()
	now := time.Now()
	r.Proc.FinishedAt = &now

	r.mu.Lock()
	killed := r.killRequested
	r.mu.Unlock()

	switch {
	case killed:
		r.Proc.Status = execmodel.StatusKilled
	case err != nil:
		r.Proc.Status = execmodel.StatusFailed
	default:
		r.Proc.Status = execmodel.StatusCompleted
	}

	if r.approvals != nil {
		r.approvals.CancelAll(r.Proc.ID)
	}
	r.Store.MarkFinished()
	close(r.exited)
}

// Wait blocks until the child has exited and its terminal status has
// been recorded.
func (r *Run) Wait() {
	<-r.exited
}

// Kill terminates the child's whole process group. It first checks
// liveness via go-ps so a process that already exited (but whose Wait
// goroutine hasn't observed it yet) isn't reported as a failed kill.
func (r *Run) Kill(sig syscall.Signal) error {
	r.mu.Lock()
	r.killRequested = true
	r.mu.Unlock()

	if r.child.Cmd.Process == nil {
		return nil
	}
	pid := r.child.Cmd.Process.Pid
	procs, err := gops.Processes()
	if err == nil {
		alive := false
		for _, p := range procs {
			if p.Pid() == pid {
				alive = true
				break
			}
		}
		if !alive {
			return nil
		}
	} else {
		log.Printf("procrun: go-ps liveness check failed, attempting kill anyway: %v", err)
	}

	return r.child.Kill(sig)
}
