// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux && !darwin

package platform

import "fmt"

// NewBackend fails on platforms without a supported isolation
// primitive. Windows AppContainer support is declared but not built.
func NewBackend(opts Options) (Backend, error) {
	return nil, fmt.Errorf("%w: no backend for this platform", ErrUnsupported)
}

// InitChild is a no-op where no re-exec hook exists.
func InitChild() {}
