// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/landlock-lsm/go-landlock/landlock"
	"golang.org/x/sys/unix"

	"github.com/leash-foundation/leash/lib/codec"
)

// childExitCode is the exit status when sandbox installation fails.
// Distinct from common shell codes so callers can tell "the sandbox
// refused to start" from "the program failed".
const childExitCode = 125

// InitChild is the child half of the Linux launch recipe. Call it
// first thing in main(). When LEASH_SANDBOX_SPEC is absent it returns
// immediately; when present, this process is a sandbox launch:
// InitChild installs the Landlock ruleset and the seccomp filter and
// then execs the real argv. It never returns in that case — any
// installation failure aborts before exec, so the target program
// never runs unsandboxed.
func InitChild() {
	specPath := os.Getenv(SpecEnvVar)
	if specPath == "" {
		return
	}
	if err := runChild(specPath); err != nil {
		fmt.Fprintf(os.Stderr, "leash: sandbox setup failed: %v\n", err)
		os.Exit(childExitCode)
	}
	// runChild only returns on error.
	os.Exit(childExitCode)
}

func runChild(specPath string) error {
	data, err := os.ReadFile(specPath)
	if err != nil {
		return fmt.Errorf("reading launch spec: %w", err)
	}
	var child childSpec
	if err := codec.Unmarshal(data, &child); err != nil {
		return fmt.Errorf("decoding launch spec: %w", err)
	}
	spec := child.Spec

	argv := os.Args[1:]
	if len(argv) == 0 {
		return fmt.Errorf("no argv in sandbox launch")
	}

	if err := applyLandlock(&spec); err != nil {
		return err
	}
	if err := installSeccompFilter(spec.DeniedSyscalls); err != nil {
		return err
	}
	// Datagram, raw, and packet sockets would bypass the proxy; the
	// name list cannot see arguments, so socket(2) gets its own
	// argument-conditional filter.
	if err := installSocketFilter(); err != nil {
		return err
	}

	program, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("resolving %q: %w", argv[0], err)
	}

	// The spec variable must not leak into the sandboxed program: a
	// nested leash launch would otherwise re-enter this path.
	env := os.Environ()
	filtered := env[:0]
	for _, entry := range env {
		if !strings.HasPrefix(entry, SpecEnvVar+"=") {
			filtered = append(filtered, entry)
		}
	}

	return unix.Exec(program, argv, filtered)
}

// applyLandlock builds and enforces the Landlock ruleset for the
// resolved capability set. ABI v4 is pinned: capabilities added by
// newer kernels are deliberately ignored. Enforcement is strict — a
// partially enforced ruleset is a failure, not a warning.
func applyLandlock(spec *Spec) error {
	rules := []landlock.Rule{
		landlock.RWDirs(spec.Workdir).IgnoreIfMissing(),
		// Scratch space libc and interpreters expect.
		landlock.RWDirs("/tmp", "/var/tmp").IgnoreIfMissing(),
		// Basic device nodes for stdio and randomness.
		landlock.RWFiles(
			"/dev/null", "/dev/zero", "/dev/full",
			"/dev/random", "/dev/urandom", "/dev/tty",
		).IgnoreIfMissing(),
		landlock.RWDirs("/dev/pts", "/dev/fd").IgnoreIfMissing(),
	}

	for _, path := range spec.ReadOnlyPaths {
		rules = append(rules, landlock.RODirs(path).IgnoreIfMissing())
	}
	for _, path := range spec.ReadWritePaths {
		rules = append(rules, landlock.RWDirs(path).IgnoreIfMissing())
	}
	for _, path := range spec.DevicePaths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			rules = append(rules, landlock.RWFiles(path).IgnoreIfMissing())
			continue
		}
		rules = append(rules, landlock.RWDirs(path).IgnoreIfMissing())
	}

	// The proxy port is the only TCP destination; everything else is
	// default-deny, including bind.
	rules = append(rules, landlock.ConnectTCP(uint16(spec.ProxyPort)))

	if err := landlock.V4.Restrict(rules...); err != nil {
		return fmt.Errorf("applying Landlock ruleset: %w", err)
	}
	return nil
}
