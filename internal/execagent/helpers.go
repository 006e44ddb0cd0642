// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package execagent

import (
	"os"

	"github.com/groupsio/agentcore/internal/errkind"
)

var errUnsupportedReset = errkind.ErrUnsupportedSessionReset

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
