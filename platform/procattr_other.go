// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package platform

import "syscall"

func newProcessGroupAttr() *syscall.SysProcAttr {
	return nil
}
