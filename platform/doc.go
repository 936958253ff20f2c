// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

// Package platform translates a resolved capability set into the OS
// isolation primitive and prepares launch recipes for sandboxed
// children.
//
// On macOS the primitive is a Seatbelt (SBPL) profile rendered from an
// embedded template into the sandbox workdir and enforced by
// sandbox-exec. On Linux it is a Landlock ruleset (ABI v4) plus a
// seccomp syscall filter, installed in the child before exec via a
// re-exec of the current binary.
//
// Backend construction fails closed: if the primitive is unavailable —
// no sandbox-exec on PATH, Landlock absent or older than ABI v4 —
// NewBackend returns an error and nothing runs. A child never executes
// unsandboxed.
//
// Linux embedders must call InitChild first thing in main(). When the
// process is a sandbox launch (LEASH_SANDBOX_SPEC is set), InitChild
// applies the primitives and execs the real program; otherwise it
// returns immediately.
package platform
