// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/leash-foundation/leash/ipc"
	"github.com/leash-foundation/leash/proxy"
	"github.com/leash-foundation/leash/python"
)

// Tier is the filesystem capability baseline. Protection toggles
// subtract from it; hardware flags add device access on top.
type Tier int

const (
	// TierStrict permits reads and writes only inside the workdir.
	// System binaries stay discoverable read-only so programs can run
	// at all.
	TierStrict Tier = iota

	// TierDefault permits full access inside the workdir and read-only
	// access elsewhere, subject to the protection toggles.
	TierDefault

	// TierPermissive permits read-write access everywhere, still
	// subject to the protection toggles.
	TierPermissive
)

func (t Tier) String() string {
	switch t {
	case TierStrict:
		return "strict"
	case TierDefault:
		return "default"
	case TierPermissive:
		return "permissive"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts a tier name to a Tier.
func ParseTier(name string) (Tier, error) {
	switch name {
	case "strict":
		return TierStrict, nil
	case "default":
		return TierDefault, nil
	case "permissive":
		return TierPermissive, nil
	default:
		return 0, fmt.Errorf("%w: unknown tier %q", ErrConfiguration, name)
	}
}

// Config is an immutable sandbox configuration produced by the
// builder.
type Config struct {
	tier             Tier
	security         Security
	policy           proxy.Policy
	router           *ipc.Router
	pythonVenv       *python.VenvConfig
	workingDir       string
	readablePaths    []string
	writablePaths    []string
	executablePaths  []string
	envPassthrough   []string
	deniedSyscalls   []string
	authorizeTimeout time.Duration
	gracePeriod      time.Duration
	logger           *slog.Logger
}

// Tier returns the filesystem tier.
func (c *Config) Tier() Tier { return c.tier }

// Security returns the protection toggles and hardware flags.
func (c *Config) Security() Security { return c.security }

// Policy returns the network policy.
func (c *Config) Policy() proxy.Policy { return c.policy }

// Router returns the IPC router, or nil when IPC is disabled.
func (c *Config) Router() *ipc.Router { return c.router }

// PythonVenv returns the virtual-environment descriptor, or nil.
func (c *Config) PythonVenv() *python.VenvConfig { return c.pythonVenv }

// Builder assembles a Config. The zero builder is not usable; start
// with NewConfig.
type Builder struct {
	config Config
	errs   []string
}

// NewConfig starts a builder with the defaults: TierDefault,
// StrictSecurity, deny-all network, no IPC, auto-created workdir.
func NewConfig() *Builder {
	return &Builder{config: Config{
		tier:     TierDefault,
		security: StrictSecurity(),
		policy:   proxy.DenyAll{},
	}}
}

// Tier sets the filesystem tier.
func (b *Builder) Tier(tier Tier) *Builder {
	b.config.tier = tier
	return b
}

// Security replaces the protection toggles and hardware flags.
func (b *Builder) Security(security Security) *Builder {
	b.config.security = security
	return b
}

// Network sets the network policy. Nil restores deny-all.
func (b *Builder) Network(policy proxy.Policy) *Builder {
	if policy == nil {
		policy = proxy.DenyAll{}
	}
	b.config.policy = policy
	return b
}

// IPC sets the command router exposed to sandboxed processes.
func (b *Builder) IPC(router *ipc.Router) *Builder {
	b.config.router = router
	return b
}

// Python configures the virtual environment used by RunPython.
func (b *Builder) Python(venv python.VenvConfig) *Builder {
	b.config.pythonVenv = &venv
	return b
}

// WorkingDir borrows an existing directory instead of allocating a
// fresh one. Borrowed directories are never removed on release.
func (b *Builder) WorkingDir(path string) *Builder {
	b.config.workingDir = path
	return b
}

// ReadablePath grants read-only access to an absolute path in every
// tier.
func (b *Builder) ReadablePath(path string) *Builder {
	b.config.readablePaths = append(b.config.readablePaths, path)
	return b
}

// WritablePath grants read-write access to an absolute path in every
// tier.
func (b *Builder) WritablePath(path string) *Builder {
	b.config.writablePaths = append(b.config.writablePaths, path)
	return b
}

// ExecutablePath grants read and execute access to an absolute path in
// every tier.
func (b *Builder) ExecutablePath(path string) *Builder {
	b.config.executablePaths = append(b.config.executablePaths, path)
	return b
}

// EnvPassthrough copies a variable from the parent environment into
// every child.
func (b *Builder) EnvPassthrough(names ...string) *Builder {
	b.config.envPassthrough = append(b.config.envPassthrough, names...)
	return b
}

// DeniedSyscalls replaces the default seccomp deny list (Linux only).
func (b *Builder) DeniedSyscalls(names []string) *Builder {
	b.config.deniedSyscalls = append([]string(nil), names...)
	return b
}

// AuthorizeTimeout bounds each network policy call. Expiry counts as
// deny.
func (b *Builder) AuthorizeTimeout(timeout time.Duration) *Builder {
	b.config.authorizeTimeout = timeout
	return b
}

// GracePeriod sets how long release waits between SIGTERM and SIGKILL.
func (b *Builder) GracePeriod(grace time.Duration) *Builder {
	b.config.gracePeriod = grace
	return b
}

// Logger sets the logger inherited by all sandbox components.
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.config.logger = logger
	return b
}

// Build validates the configuration and returns an immutable Config.
// All violations are reported together.
func (b *Builder) Build() (*Config, error) {
	b.errs = nil

	if b.config.tier < TierStrict || b.config.tier > TierPermissive {
		b.errs = append(b.errs, fmt.Sprintf("unknown tier %d", int(b.config.tier)))
	}
	b.requireAbsolute("readable path", b.config.readablePaths)
	b.requireAbsolute("writable path", b.config.writablePaths)
	b.requireAbsolute("executable path", b.config.executablePaths)
	if b.config.workingDir != "" && !filepath.IsAbs(b.config.workingDir) {
		b.errs = append(b.errs, fmt.Sprintf("working dir %q is not absolute", b.config.workingDir))
	}
	if b.config.pythonVenv != nil && b.config.pythonVenv.Path == "" {
		b.errs = append(b.errs, "python venv path is required")
	}
	if b.config.authorizeTimeout < 0 {
		b.errs = append(b.errs, "authorize timeout must not be negative")
	}

	if len(b.errs) > 0 {
		return nil, fmt.Errorf("%w:\n  %s", ErrConfiguration, joinLines(b.errs))
	}

	config := b.config
	config.readablePaths = append([]string(nil), b.config.readablePaths...)
	config.writablePaths = append([]string(nil), b.config.writablePaths...)
	config.executablePaths = append([]string(nil), b.config.executablePaths...)
	config.envPassthrough = append([]string(nil), b.config.envPassthrough...)
	if config.logger == nil {
		config.logger = slog.Default()
	}
	return &config, nil
}

func (b *Builder) requireAbsolute(kind string, paths []string) {
	for _, path := range paths {
		if !filepath.IsAbs(path) {
			b.errs = append(b.errs, fmt.Sprintf("%s %q is not absolute", kind, path))
		}
	}
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, line := range lines[1:] {
		out += "\n  " + line
	}
	return out
}
