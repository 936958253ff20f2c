// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// The name-based deny list cannot express argument conditions, and
// network containment needs one: socket(2) must stay available for
// TCP (which Landlock then scopes to the proxy port) and Unix sockets
// (the IPC path) while datagram, raw, and packet sockets are refused
// outright. Without this a child could speak UDP to arbitrary hosts,
// bypassing the proxy entirely. This one rule is assembled as a raw
// seccomp BPF program and stacked on top of the name-based filter.

// seccomp_data layout: nr at offset 0, arch at 4, args from 16, each
// 8 bytes with the low dword first on the supported (little-endian)
// architectures.
const (
	seccompDataNr   = 0
	seccompDataArch = 4
	seccompDataArg0 = 16
	seccompDataArg1 = 24
)

// installSocketFilter loads the socket(2) argument filter in the
// current (child) process. Decision table:
//
//	AF_PACKET                     -> EPERM
//	AF_INET/AF_INET6, SOCK_STREAM -> allow
//	AF_INET/AF_INET6, otherwise   -> EPERM (UDP, raw, ...)
//	any other family (AF_UNIX...) -> allow
//
// SOCK_NONBLOCK and SOCK_CLOEXEC are masked off the type before the
// comparison.
func installSocketFilter() error {
	auditArch, err := nativeAuditArch()
	if err != nil {
		return err
	}

	const typeFlagsMask = uint32(unix.SOCK_NONBLOCK | unix.SOCK_CLOEXEC)
	const allow = uint32(unix.SECCOMP_RET_ALLOW)
	const denyEPERM = uint32(unix.SECCOMP_RET_ERRNO) | uint32(unix.EPERM)

	program := []bpf.Instruction{
		// Foreign-architecture syscalls fall through to the
		// name-based filter; this rule only reads native layouts.
		bpf.LoadAbsolute{Off: seccompDataArch, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: auditArch, SkipTrue: 10}, // -> allow
		bpf.LoadAbsolute{Off: seccompDataNr, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(unix.SYS_SOCKET), SkipTrue: 8}, // -> allow
		bpf.LoadAbsolute{Off: seccompDataArg0, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(unix.AF_PACKET), SkipTrue: 5}, // -> deny
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(unix.AF_INET), SkipTrue: 1},   // -> type check
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(unix.AF_INET6), SkipTrue: 4}, // -> allow
		bpf.LoadAbsolute{Off: seccompDataArg1, Size: 4},
		bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: ^typeFlagsMask},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(unix.SOCK_STREAM), SkipTrue: 1}, // -> allow
		bpf.RetConstant{Val: denyEPERM},
		bpf.RetConstant{Val: allow},
	}

	raw, err := bpf.Assemble(program)
	if err != nil {
		return fmt.Errorf("assembling socket filter: %w", err)
	}
	filters := make([]unix.SockFilter, len(raw))
	for i, instruction := range raw {
		filters[i] = unix.SockFilter{
			Code: instruction.Op,
			Jt:   instruction.Jt,
			Jf:   instruction.Jf,
			K:    instruction.K,
		}
	}
	prog := unix.SockFprog{
		Len:    uint16(len(filters)),
		Filter: &filters[0],
	}

	// Already set by the name-based filter load, but this filter must
	// not depend on load order.
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(NO_NEW_PRIVS): %w", err)
	}
	_, _, errno := unix.Syscall(unix.SYS_SECCOMP,
		uintptr(unix.SECCOMP_SET_MODE_FILTER),
		uintptr(unix.SECCOMP_FILTER_FLAG_TSYNC),
		uintptr(unsafe.Pointer(&prog)))
	runtime.KeepAlive(filters)
	if errno != 0 {
		return fmt.Errorf("loading socket filter: %w", errno)
	}
	return nil
}

// nativeAuditArch maps the build architecture to its AUDIT_ARCH
// constant. Unsupported architectures fail closed.
func nativeAuditArch() (uint32, error) {
	switch runtime.GOARCH {
	case "amd64":
		return unix.AUDIT_ARCH_X86_64, nil
	case "arm64":
		return unix.AUDIT_ARCH_AARCH64, nil
	default:
		return 0, fmt.Errorf("no socket filter for architecture %s", runtime.GOARCH)
	}
}
