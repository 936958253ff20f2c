// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	llsyscall "github.com/landlock-lsm/go-landlock/landlock/syscall"

	"github.com/leash-foundation/leash/lib/codec"
)

// minLandlockABI is the oldest Landlock ABI leash accepts. v4 adds TCP
// connect restriction, which the network containment design requires.
const minLandlockABI = 4

// linuxBackend enforces isolation with a Landlock ruleset plus a
// seccomp filter, both installed in the child between fork and exec
// via a re-exec of the current binary (see InitChild).
type linuxBackend struct {
	logger *slog.Logger
}

// NewBackend creates the Linux backend. Fails closed when Landlock is
// unavailable or older than ABI v4 — there is no degraded mode.
func NewBackend(opts Options) (Backend, error) {
	abi, err := llsyscall.LandlockGetABIVersion()
	if err != nil {
		return nil, fmt.Errorf("%w: Landlock not available in kernel: %v", ErrUnsupported, err)
	}
	if abi < minLandlockABI {
		return nil, fmt.Errorf("%w: Landlock ABI %d, need at least %d (kernel 6.7+)",
			ErrUnsupported, abi, minLandlockABI)
	}
	return &linuxBackend{logger: opts.logger()}, nil
}

// Prepare serializes the launch spec into <workdir>/launch.spec. Every
// command re-execs the current binary with the spec path in the
// environment; InitChild consumes it before exec'ing the real argv.
func (b *linuxBackend) Prepare(ctx context.Context, spec *Spec) (*Recipe, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	child := childSpec{Spec: *spec}
	if len(child.Spec.DeniedSyscalls) == 0 {
		child.Spec.DeniedSyscalls = DefaultDeniedSyscalls()
	}

	data, err := codec.Marshal(child)
	if err != nil {
		return nil, fmt.Errorf("encoding launch spec: %w", err)
	}
	specPath := filepath.Join(spec.Workdir, "launch.spec")
	if err := os.WriteFile(specPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing launch spec: %w", err)
	}

	b.logger.Debug("launch spec written",
		"path", specPath, "proxy_port", spec.ProxyPort,
		"denied_syscalls", len(child.Spec.DeniedSyscalls))

	return &Recipe{
		reexec:   true,
		specPath: specPath,
		workdir:  spec.Workdir,
	}, nil
}
