// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"errors"
	"fmt"
)

// ErrUnsupported reports that the platform's isolation primitive is
// missing or too old. It is always a preparation-time error; leash
// never degrades to running children unsandboxed.
var ErrUnsupported = errors.New("sandbox primitive unavailable")

// Spec is the resolved capability set handed to a backend. The sandbox
// package computes it from the tier, the protection toggles, and the
// hardware flags; backends translate it mechanically.
type Spec struct {
	// Workdir is the sandbox working directory. Always read-write.
	Workdir string `cbor:"workdir"`

	// ReadOnlyPaths are directory trees readable (and executable)
	// inside the sandbox.
	ReadOnlyPaths []string `cbor:"read_only_paths"`

	// ReadWritePaths are directory trees fully accessible inside the
	// sandbox, in addition to Workdir.
	ReadWritePaths []string `cbor:"read_write_paths"`

	// DevicePaths are device nodes or directories granted by the
	// hardware flags (GPU, NPU, general hardware).
	DevicePaths []string `cbor:"device_paths"`

	// DenyPaths are trees explicitly denied regardless of the allow
	// rules above. Consumed by the macOS profile, where Seatbelt
	// supports subtraction; on Linux the resolver already excludes
	// these from the allow lists (Landlock is additive-only).
	DenyPaths []string `cbor:"deny_paths"`

	// ProxyPort is the loopback port of the sandbox's network proxy.
	// The only TCP destination the child may connect to.
	ProxyPort int `cbor:"proxy_port"`

	// IPCSocket is the Unix socket path for the IPC router, or empty
	// when IPC is disabled.
	IPCSocket string `cbor:"ipc_socket"`

	// DeniedSyscalls is the seccomp deny list for Linux sandboxes.
	// Empty means DefaultDeniedSyscalls. Ignored on macOS, where the
	// Seatbelt profile is the whole primitive.
	DeniedSyscalls []string `cbor:"denied_syscalls"`
}

// validate checks the invariants backends rely on.
func (s *Spec) validate() error {
	if s.Workdir == "" {
		return fmt.Errorf("spec workdir is required")
	}
	if s.ProxyPort < 1 || s.ProxyPort > 65535 {
		return fmt.Errorf("spec proxy port %d out of range", s.ProxyPort)
	}
	return nil
}
