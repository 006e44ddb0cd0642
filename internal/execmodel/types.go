// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package execmodel defines the data model shared by every component of
// the execution core: ExecutionProcess, NormalizedEntry, ConversationPatch,
// LogMsg, Diff, and ApprovalRequest.
package execmodel

import "time"

// ExecutorKind enumerates the supported coding-agent adapters.
type ExecutorKind string

const (
	ExecutorClaudeCode ExecutorKind = "claude_code"
	ExecutorGemini     ExecutorKind = "gemini"
	ExecutorCodex      ExecutorKind = "codex"
	ExecutorAmp        ExecutorKind = "amp"
	ExecutorPi         ExecutorKind = "pi"
	ExecutorKimi       ExecutorKind = "kimi"
	ExecutorEveryCode  ExecutorKind = "every_code"
	ExecutorAwsBedrock ExecutorKind = "aws_bedrock"
	ExecutorQaMock     ExecutorKind = "qa_mock"
)

// ProcessStatus is the lifecycle state of an ExecutionProcess.
type ProcessStatus string

const (
	StatusRunning   ProcessStatus = "running"
	StatusKilled    ProcessStatus = "killed"
	StatusCompleted ProcessStatus = "completed"
	StatusFailed    ProcessStatus = "failed"
)

// ExecutionProcess is the process-level record for one spawned child.
// Created by the spawner, mutated only by the process-lifecycle service.
type ExecutionProcess struct {
	ID               string        `json:"id"`
	SessionID        string        `json:"session_id"`
	ExecutorKind     ExecutorKind  `json:"executor_kind"`
	Status           ProcessStatus `json:"status"`
	WorkingDirectory string        `json:"working_directory"`
	AgentSessionID   string        `json:"agent_session_id,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       *time.Time    `json:"finished_at,omitempty"`
}

// ToolStatusKind tags the state machine for a ToolUse entry.
type ToolStatusKind string

const (
	ToolCreated          ToolStatusKind = "created"
	ToolPending          ToolStatusKind = "pending"
	ToolRunning          ToolStatusKind = "running"
	ToolCompleted        ToolStatusKind = "completed"
	ToolFailed           ToolStatusKind = "failed"
	ToolPendingApproval  ToolStatusKind = "pending_approval"
	ToolApproved         ToolStatusKind = "approved"
	ToolRejected         ToolStatusKind = "rejected"
	ToolTimedOut         ToolStatusKind = "timed_out"
)

// ToolStatus is the tagged status value carried on a ToolUse entry.
type ToolStatus struct {
	Kind         ToolStatusKind `json:"kind"`
	Result       string         `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	ApprovalID   string         `json:"approval_id,omitempty"`
	RequestedAt  *time.Time     `json:"requested_at,omitempty"`
	TimeoutAt    *time.Time     `json:"timeout_at,omitempty"`
}

// EntryKind tags the variant carried by a NormalizedEntry.
type EntryKind string

const (
	EntrySystemInit       EntryKind = "system_init"
	EntryAssistantText    EntryKind = "assistant_text"
	EntryAssistantThink   EntryKind = "assistant_thinking"
	EntryToolUse          EntryKind = "tool_use"
	EntryToolResult       EntryKind = "tool_result"
	EntryUserQuestion     EntryKind = "user_question"
	EntryErrorMessage     EntryKind = "error_message"
	EntryDiffAttachment   EntryKind = "diff_attachment"
	EntryResultSummary    EntryKind = "result_summary"
)

// NormalizedEntry is a single atom of the unified conversational log.
// Only the fields relevant to Kind are populated; this mirrors the
// tagged-variant shape of spec.md §3 while staying a plain Go struct so
// it serializes predictably over the wire.
type NormalizedEntry struct {
	Kind EntryKind  `json:"kind"`
	Time *time.Time `json:"timestamp,omitempty"`

	// SystemInit
	SessionID string `json:"session_id,omitempty"`

	// AssistantText / AssistantThinking / ErrorMessage.Kind
	Text string `json:"text,omitempty"`

	// ToolUse
	ToolID     string      `json:"tool_id,omitempty"`
	ToolName   string      `json:"name,omitempty"`
	ToolInput  interface{} `json:"input,omitempty"`
	ToolStatus *ToolStatus `json:"status,omitempty"`
	ActionHint string      `json:"action_hint,omitempty"`

	// ToolResult
	ResultContent string `json:"content,omitempty"`
	IsError       bool   `json:"is_error,omitempty"`

	// UserQuestion
	QuestionID    string   `json:"question_id,omitempty"`
	Prompt        string   `json:"prompt,omitempty"`
	Options       []string `json:"options,omitempty"`
	AllowMultiple bool     `json:"allow_multiple,omitempty"`
	AllowOther    bool     `json:"allow_other,omitempty"`

	// DiffAttachment
	Path           string `json:"path,omitempty"`
	Diff           *Diff  `json:"diff,omitempty"`
	ContentOmitted bool   `json:"content_omitted,omitempty"`

	// ResultSummary
	OK    bool        `json:"ok,omitempty"`
	Usage interface{} `json:"usage,omitempty"`
}

// PatchOp tags the kind of a ConversationPatch operation.
type PatchOp string

const (
	OpAddEntry     PatchOp = "add_entry"
	OpReplaceEntry PatchOp = "replace_entry"
	OpRemoveEntry  PatchOp = "remove_entry"
	OpAddDiff      PatchOp = "add_diff"
	OpRemoveDiff   PatchOp = "remove_diff"
	OpAddStdout    PatchOp = "add_stdout"
	OpAddStderr    PatchOp = "add_stderr"
)

// ConversationPatch is a JSON-pointer-style delta against the virtual
// document {entries: [...], diffs: {path: Diff}}.
type ConversationPatch struct {
	Op        PatchOp          `json:"op"`
	Index     int              `json:"index,omitempty"`
	Entry     *NormalizedEntry `json:"entry,omitempty"`
	PathToken string           `json:"path_token,omitempty"`
	Diff      *Diff            `json:"diff,omitempty"`
	Chunk     []byte           `json:"chunk,omitempty"`
}

// EscapePathToken RFC-6901-escapes a path segment for use as a
// ConversationPatch path token.
func EscapePathToken(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '~':
			out = append(out, '~', '0')
		case '/':
			out = append(out, '~', '1')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// LogMsgKind tags the variant carried over the Message Store and its
// subscribers.
type LogMsgKind string

const (
	LogStdout    LogMsgKind = "stdout"
	LogStderr    LogMsgKind = "stderr"
	LogJSONPatch LogMsgKind = "json_patch"
	LogSessionID LogMsgKind = "session_id"
	LogMessageID LogMsgKind = "message_id"
	LogReady     LogMsgKind = "ready"
	LogFinished  LogMsgKind = "finished"
)

// LogMsg is what travels through the Message Store and out to
// subscribers. Once a Finished LogMsg is appended to a store, no further
// message may be appended (see internal/msgstore).
type LogMsg struct {
	Kind      LogMsgKind         `json:"type"`
	Bytes     []byte             `json:"bytes,omitempty"`
	Patch     *ConversationPatch `json:"patch,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	MessageID string             `json:"message_id,omitempty"`
}

func Stdout(b []byte) LogMsg { return LogMsg{Kind: LogStdout, Bytes: b} }
func Stderr(b []byte) LogMsg { return LogMsg{Kind: LogStderr, Bytes: b} }
func JSONPatch(p ConversationPatch) LogMsg {
	return LogMsg{Kind: LogJSONPatch, Patch: &p}
}
func SessionID(id string) LogMsg { return LogMsg{Kind: LogSessionID, SessionID: id} }
func MessageID(id string) LogMsg { return LogMsg{Kind: LogMessageID, MessageID: id} }
func Ready() LogMsg              { return LogMsg{Kind: LogReady} }
func Finished() LogMsg           { return LogMsg{Kind: LogFinished} }

// ChangeKind tags how a file changed relative to the diff baseline.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeModified ChangeKind = "modified"
	ChangeRenamed  ChangeKind = "renamed"
)

// Diff is a single file's change relative to a diff-stream baseline.
type Diff struct {
	Path           string     `json:"path"`
	OldPath        string     `json:"old_path,omitempty"`
	ChangeKind     ChangeKind `json:"change_kind"`
	OldContent     *string    `json:"old_content,omitempty"`
	NewContent     *string    `json:"new_content,omitempty"`
	Additions      *int       `json:"additions,omitempty"`
	Deletions      *int       `json:"deletions,omitempty"`
	ContentOmitted bool       `json:"content_omitted"`
}

// ByteSize returns the cumulative content bytes this diff would add to
// the diff-stream's budget counter.
func (d *Diff) ByteSize() int64 {
	var n int64
	if d.OldContent != nil {
		n += int64(len(*d.OldContent))
	}
	if d.NewContent != nil {
		n += int64(len(*d.NewContent))
	}
	return n
}

// ApprovalState is the terminal or pending state of an ApprovalRequest.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalDenied   ApprovalState = "denied"
	ApprovalTimedOut ApprovalState = "timed_out"
)

// ApprovalRequest is a short-lived request for authorizing one tool
// invocation, keyed by ID and indexed by (ExecutionProcessID, ToolUseID).
type ApprovalRequest struct {
	ID                 string        `json:"id"`
	ExecutionProcessID string        `json:"execution_process_id"`
	ToolUseID          string        `json:"tool_use_id,omitempty"`
	ToolName           string        `json:"tool_name"`
	Input              interface{}   `json:"input"`
	RequestedAt        time.Time     `json:"requested_at"`
	TimeoutAt          time.Time     `json:"timeout_at"`
	State              ApprovalState `json:"state"`
	DenyReason         string        `json:"deny_reason,omitempty"`
}
