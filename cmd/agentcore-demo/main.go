// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// agentcore-demo drives a single execution end to end against one of the
// built-in executor adapters (qa_mock by default, which needs no
// credentials) and prints the normalized transcript, or serves the
// execution core's WebSocket/approval endpoints for manual exercise from
// a browser. Grounded on cmd/trellis/main.go's version/config-flag shape,
// rebuilt on spf13/cobra per the rest of the retrieved corpus's CLI
// convention rather than trellis's hand-rolled flag parsing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/groupsio/agentcore/internal/approval"
	"github.com/groupsio/agentcore/internal/diffstream"
	"github.com/groupsio/agentcore/internal/execagent"
	"github.com/groupsio/agentcore/internal/execapi"
	"github.com/groupsio/agentcore/internal/execmodel"
	"github.com/groupsio/agentcore/internal/execprofile"
	"github.com/groupsio/agentcore/internal/msgstore"
	"github.com/groupsio/agentcore/internal/procrun"
	"github.com/groupsio/agentcore/internal/sessionlog"
	"github.com/groupsio/agentcore/internal/worktree"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:     "agentcore-demo",
		Short:   "Drive a single coding-agent execution end to end",
		Version: version,
	}
	root.AddCommand(newRunCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		executorKind   string
		worktreePath   string
		prompt         string
		logDir         string
		createWorktree bool
		repoDir        string
		withDiff       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Spawn one execution process and print its normalized log",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			registry := execagent.NewDefaultRegistry(execprofile.DefaultProfiles())
			adapter, ok := registry.Get(execmodel.ExecutorKind(executorKind))
			if !ok {
				return fmt.Errorf("unknown executor kind %q", executorKind)
			}

			var baseline string
			var cleanup func()
			if createWorktree {
				if repoDir == "" {
					wd, err := os.Getwd()
					if err != nil {
						return err
					}
					repoDir = wd
				}
				provisioner := worktree.NewProvisioner(repoDir, os.TempDir())
				path, branch, err := provisioner.Create(ctx, "agentcore-demo", "HEAD")
				if err != nil {
					return fmt.Errorf("create worktree: %w", err)
				}
				worktreePath = path
				baseline, err = worktree.BaselineCommit(ctx, path)
				if err != nil {
					return err
				}
				fmt.Printf("provisioned worktree %s on branch %s\n", path, branch)
				cleanup = func() {
					if info, status, branchInfo, err := provisioner.Inspect(ctx, path); err != nil {
						fmt.Fprintf(os.Stderr, "inspect worktree: %v\n", err)
					} else {
						fmt.Printf("worktree %s on branch %s: %d modified, %d untracked\n",
							info.Name(), branchInfo.Name, len(status.Modified), len(status.Untracked))
					}
					if err := provisioner.Remove(ctx, path, true); err != nil {
						fmt.Fprintf(os.Stderr, "remove worktree: %v\n", err)
					}
				}
				defer cleanup()
			} else if worktreePath == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				worktreePath = wd
			}

			sessionID := uuid.New().String()
			proc := &execmodel.ExecutionProcess{
				ID:               uuid.New().String(),
				SessionID:        sessionID,
				ExecutorKind:     execmodel.ExecutorKind(executorKind),
				WorkingDirectory: worktreePath,
			}

			store := msgstore.New()
			approvals := approval.New()

			if logDir != "" {
				if _, err := sessionlog.Attach(store, logDir, sessionID, proc.ID); err != nil {
					return fmt.Errorf("attach session log: %w", err)
				}
			}

			if withDiff {
				if baseline == "" {
					b, err := worktree.BaselineCommit(ctx, worktreePath)
					if err != nil {
						return fmt.Errorf("resolve diff baseline: %w", err)
					}
					baseline = b
				}
				diffStore := msgstore.New()
				stream := diffstream.New(diffStore, worktreePath, baseline)
				if err := stream.Start(ctx); err != nil {
					return fmt.Errorf("start diff stream: %w", err)
				}
				defer stream.Close()
				diffSub := diffStore.Subscribe()
				go func() {
					for _, msg := range diffSub.History {
						printLogMsg(msg)
					}
					for msg := range diffSub.Live {
						printLogMsg(msg)
					}
				}()
			}

			sub := store.Subscribe()
			go func() {
				for _, msg := range sub.History {
					printLogMsg(msg)
				}
				for msg := range sub.Live {
					printLogMsg(msg)
				}
			}()

			run, err := procrun.Start(ctx, adapter, approvals, proc, store, prompt, execagent.ExecutionEnv{})
			if err != nil {
				return fmt.Errorf("start execution: %w", err)
			}
			run.Wait()
			fmt.Printf("execution %s finished with status %s\n", proc.ID, proc.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&executorKind, "executor", string(execmodel.ExecutorQaMock), "executor_kind to run")
	cmd.Flags().StringVar(&worktreePath, "worktree", "", "working directory for the child process (default: cwd, or the newly created worktree with --create-worktree)")
	cmd.Flags().StringVar(&prompt, "prompt", "demonstrate the execution core", "initial prompt")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "if set, persist the session log under this directory")
	cmd.Flags().BoolVar(&createWorktree, "create-worktree", false, "provision a fresh git worktree for this run and remove it on exit")
	cmd.Flags().StringVar(&repoDir, "repo", "", "repository to branch the worktree from (default: cwd, only used with --create-worktree)")
	cmd.Flags().BoolVar(&withDiff, "diff", false, "also run the diff stream against the worktree and print its patches")
	return cmd
}

func printLogMsg(msg execmodel.LogMsg) {
	switch msg.Kind {
	case execmodel.LogStdout:
		fmt.Print(string(msg.Bytes))
	case execmodel.LogStderr:
		fmt.Fprint(os.Stderr, string(msg.Bytes))
	case execmodel.LogJSONPatch:
		fmt.Printf("[patch] %s\n", msg.Patch.Op)
	case execmodel.LogFinished:
		fmt.Println("[finished]")
	}
}

// executionRegistry tracks the Message Store backing each execution
// process the server has started, so execapi's WS/approval handlers (keyed
// by execution_process_id) have somewhere to look it up. It is the piece
// serve needs that a single-shot `run` invocation doesn't: many processes
// live concurrently under one server.
type executionRegistry struct {
	mu     sync.Mutex
	stores map[string]*msgstore.Store
}

func newExecutionRegistry() *executionRegistry {
	return &executionRegistry{stores: map[string]*msgstore.Store{}}
}

func (r *executionRegistry) put(id string, store *msgstore.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[id] = store
}

func (r *executionRegistry) get(id string) (*msgstore.Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[id]
	return s, ok
}

type startExecutionRequest struct {
	ExecutorKind     string `json:"executor_kind"`
	Prompt           string `json:"prompt"`
	WorkingDirectory string `json:"working_directory"`
}

type startExecutionResponse struct {
	ExecutionProcessID string `json:"execution_process_id"`
	SessionID          string `json:"session_id"`
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the execution core's WebSocket and approval endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := newExecutionRegistry()
			approvals := approval.New()
			adapters := execagent.NewDefaultRegistry(execprofile.DefaultProfiles())

			handler := execapi.NewHandler(registry.get, approvals)

			r := mux.NewRouter()
			r.HandleFunc("/executions", func(w http.ResponseWriter, req *http.Request) {
				var body startExecutionRequest
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				if body.ExecutorKind == "" {
					body.ExecutorKind = string(execmodel.ExecutorQaMock)
				}
				adapter, ok := adapters.Get(execmodel.ExecutorKind(body.ExecutorKind))
				if !ok {
					http.Error(w, fmt.Sprintf("unknown executor kind %q", body.ExecutorKind), http.StatusBadRequest)
					return
				}
				if body.WorkingDirectory == "" {
					wd, err := os.Getwd()
					if err != nil {
						http.Error(w, err.Error(), http.StatusInternalServerError)
						return
					}
					body.WorkingDirectory = wd
				}

				sessionID := uuid.New().String()
				proc := &execmodel.ExecutionProcess{
					ID:               uuid.New().String(),
					SessionID:        sessionID,
					ExecutorKind:     execmodel.ExecutorKind(body.ExecutorKind),
					WorkingDirectory: body.WorkingDirectory,
				}
				store := msgstore.New()
				registry.put(proc.ID, store)

				// Use a context independent of the request: the spawned
				// child must keep running after this handler returns, not
				// die when the HTTP request context is canceled.
				if _, err := procrun.Start(context.Background(), adapter, approvals, proc, store, body.Prompt, execagent.ExecutionEnv{}); err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				_ = json.NewEncoder(w).Encode(startExecutionResponse{ExecutionProcessID: proc.ID, SessionID: sessionID})
			}).Methods(http.MethodPost)
			handler.Register(r)

			fmt.Printf("listening on %s\n", addr)
			return http.ListenAndServe(addr, r)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8089", "listen address")
	return cmd
}
