// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin

package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// darwinBackend enforces isolation through sandbox-exec with a
// Seatbelt profile rendered once per sandbox.
type darwinBackend struct {
	sandboxExec string
	logger      *slog.Logger
}

// NewBackend creates the macOS backend. Fails if sandbox-exec is not
// on PATH.
func NewBackend(opts Options) (Backend, error) {
	path, err := exec.LookPath("sandbox-exec")
	if err != nil {
		return nil, fmt.Errorf("%w: sandbox-exec not found on PATH", ErrUnsupported)
	}
	return &darwinBackend{sandboxExec: path, logger: opts.logger()}, nil
}

// Prepare renders the SBPL profile into <workdir>/profile.sb and
// builds the sandbox-exec argv prefix. The profile is written once and
// shared by every command of the sandbox.
func (b *darwinBackend) Prepare(ctx context.Context, spec *Spec) (*Recipe, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	profile, err := renderProfile(spec)
	if err != nil {
		return nil, err
	}

	profilePath := filepath.Join(spec.Workdir, "profile.sb")
	if err := os.WriteFile(profilePath, []byte(profile), 0o600); err != nil {
		return nil, fmt.Errorf("writing sandbox profile: %w", err)
	}

	b.logger.Debug("sandbox profile written",
		"path", profilePath, "proxy_port", spec.ProxyPort)

	return &Recipe{
		argvPrefix: []string{b.sandboxExec, "-f", profilePath, "--"},
		workdir:    spec.Workdir,
	}, nil
}

// InitChild is a no-op on macOS: sandbox-exec installs the primitive
// before the child runs, so no re-exec hook is needed.
func InitChild() {}
