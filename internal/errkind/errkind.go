// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errkind defines the abstract error kinds the execution core
// reports across component boundaries. Components wrap a sentinel with
// fmt.Errorf("...: %w", ErrX) so callers can distinguish failure classes
// with errors.Is while the message still carries local context.
package errkind

import "errors"

var (
	ErrAdapterNotInstalled     = errors.New("adapter not installed")
	ErrAdapterAuthMissing      = errors.New("adapter auth missing")
	ErrInvalidExecutorProfile  = errors.New("invalid executor profile")
	ErrSpawnFailed             = errors.New("spawn failed")
	ErrUnsupportedSessionReset = errors.New("unsupported session reset")
	ErrChildExitedUnexpectedly = errors.New("child exited unexpectedly")
	ErrControlProtocolMalformed = errors.New("control protocol malformed")
	ErrControlResponseTimeout  = errors.New("control response timeout")
	ErrApprovalNotFound        = errors.New("approval not found")
	ErrApprovalAlreadyCompleted = errors.New("approval already completed")
	ErrNormalizerParseError    = errors.New("normalizer parse error")
	ErrGitQueryFailed          = errors.New("git query failed")
	ErrWatcherFailed           = errors.New("watcher failed")
	ErrBudgetExceededDropped   = errors.New("diff content dropped by budget")
	ErrSubscriberLagged        = errors.New("subscriber lagged")
	ErrLogFileIoError          = errors.New("log file io error")
)
