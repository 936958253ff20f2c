// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides leash's standard CBOR encoding configuration.
//
// Everything that crosses a leash socket or is written to a launch spec
// file is CBOR: IPC request and response frames, the Linux backend's
// serialized launch spec, and handler payloads that opt into the typed
// Command adapter. This package holds the shared encoder and decoder
// modes so every package encodes identically without duplicating
// configuration.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. Same
// logical data always produces identical bytes, which keeps launch spec
// files and test fixtures stable.
//
// For buffer-oriented operations (frames, spec files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec
