// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package platform

import "syscall"

// newProcessGroupAttr places the child in its own process group so
// teardown can signal the entire tree at once.
func newProcessGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
