// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox runs generated code inside a per-invocation,
// OS-enforced isolation boundary.
//
// A Sandbox composes five pieces: a declarative policy (tier,
// protection toggles, hardware flags), a unique working directory, a
// platform backend that turns the policy into the OS primitive
// (Seatbelt on macOS, Landlock + seccomp on Linux), a loopback network
// proxy that authorizes every request, and an optional IPC router
// exposing host commands over a local socket.
//
//	config, err := sandbox.NewConfig().
//		Tier(sandbox.TierStrict).
//		Network(proxy.NewAllowList("*.github.com")).
//		Build()
//	...
//	box, err := sandbox.New(ctx, config)
//	defer box.Close()
//
//	result, err := box.Command("echo").Arg("hello").Output(ctx)
//
// Isolation is tuned for generated code under cooperative assumptions;
// it is not a defense against a determined adversary with arbitrary
// code execution.
package sandbox
