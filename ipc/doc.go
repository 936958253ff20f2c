// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc implements the host-callable command surface exposed to
// sandboxed processes over a Unix domain stream socket.
//
// The wire format is a 4-byte big-endian length prefix followed by a
// CBOR-encoded object. Requests carry a command name and an opaque
// payload; responses carry an ok flag and an opaque payload. Payload
// encodings are private to each handler — the router moves bytes, it
// does not validate them.
//
// A Router maps command names to handler factories. Every incoming
// frame gets a freshly constructed handler instance, so handler state
// never leaks between requests; anything a handler needs to share
// (API clients, registries) is captured by its factory. Decode
// failures, unknown commands, and handler errors produce ok=false
// responses carrying a short diagnostic, and the connection stays open
// for subsequent frames. Socket-level errors close the connection.
//
// The Server binds the socket inside the sandbox workdir; the sandbox
// injects its path into children via LEASH_IPC_SOCKET, and the
// leash-ipc helper binary gives shell scripts access to it.
package ipc
