// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package execagent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/groupsio/agentcore/internal/errkind"
)

// processGroupAttr sets process-group leadership so the whole tree is
// killable by killing -pgid (spec.md §4.1 "Spawning policy"), the same
// pattern internal/service/process.go relies on for group-based teardown.
func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// spawnOpts configures runCommand's stdio wiring.
type spawnOpts struct {
	argv       []string
	cwd        string
	env        []string
	controlStdin bool // true: pipe stdin for NDJSON control writes; false: close stdin
}

// runCommand starts argv[0] with argv[1:] inside cwd, with process-group
// leadership and piped stdout/stderr (and optionally stdin).
func runCommand(ctx context.Context, opts spawnOpts) (*SpawnedChild, error) {
	if len(opts.argv) == 0 {
		return nil, fmt.Errorf("empty command: %w", errkind.ErrInvalidExecutorProfile)
	}

	cmd := exec.CommandContext(ctx, opts.argv[0], opts.argv[1:]...)
	cmd.Dir = opts.cwd
	cmd.Env = append(os.Environ(), opts.env...)
	cmd.SysProcAttr = processGroupAttr()

	sc := &SpawnedChild{Cmd: cmd}

	if opts.controlStdin {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("attach stdin: %w", errkind.ErrSpawnFailed)
		}
		sc.Stdin = stdin
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stdout: %w", errkind.ErrSpawnFailed)
	}
	sc.Stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stderr: %w", errkind.ErrSpawnFailed)
	}
	sc.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.argv[0], errkind.ErrSpawnFailed)
	}
	return sc, nil
}

// killProcessGroup sends sig to the child's whole process group, the
// cancellation mechanism spec.md §5 requires for "dropping a
// SpawnedChild kills its process group".
func killProcessGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}

// Kill sends sig to sc's whole process group. Exported for the
// process-lifecycle service, which owns when a running execution is
// killed by caller request versus left to exit on its own.
func (sc *SpawnedChild) Kill(sig syscall.Signal) error {
	return killProcessGroup(sc.Cmd, sig)
}
