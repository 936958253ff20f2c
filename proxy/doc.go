// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

// Package proxy implements the per-sandbox network filter: a loopback
// HTTP forward proxy with CONNECT tunneling, where every request is
// authorized against a Policy before any upstream connection is opened.
//
// One Server is started per sandbox and bound to a random loopback
// port. The sandbox injects HTTP_PROXY/HTTPS_PROXY pointing at it, and
// the platform backend restricts the child's outbound TCP to that port,
// so the proxy is the only network path out of the sandbox.
//
// Denied requests receive 403 before a single byte reaches the network.
// For CONNECT, once a tunnel is authorized the proxy splices bytes
// without further inspection; the TLS interior is opaque.
package proxy
