// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"strings"
)

// Request describes a network access attempt from inside the sandbox.
type Request struct {
	// Host is the target hostname or IP literal, without port.
	Host string

	// Port is the target TCP port.
	Port int

	// Method is the HTTP method, or "CONNECT" for tunnels.
	Method string
}

// Policy decides whether a network request from the sandbox may
// proceed. Authorize is called before any upstream connection is
// opened; returning false produces an HTTP 403 for the client.
//
// Authorize may block (a policy may consult an external service); the
// server bounds each call with a timeout whose expiry counts as deny.
// Implementations must be safe for concurrent calls.
type Policy interface {
	Authorize(ctx context.Context, req Request) bool
}

// DenyAll denies every request. This is the default policy.
type DenyAll struct{}

// Authorize always returns false.
func (DenyAll) Authorize(ctx context.Context, req Request) bool {
	return false
}

// AllowAll allows every request. Use only for trusted workloads.
type AllowAll struct{}

// Authorize always returns true.
func (AllowAll) Authorize(ctx context.Context, req Request) bool {
	return true
}

// AllowList allows requests whose host matches any of a set of
// shell-style glob patterns. A pattern of "*.example.com" matches
// "api.example.com" (and deeper subdomains) but not "example.com"
// itself; list both when the apex should be reachable.
type AllowList struct {
	patterns []string
}

// NewAllowList builds an AllowList from glob patterns.
func NewAllowList(patterns ...string) *AllowList {
	return &AllowList{patterns: append([]string(nil), patterns...)}
}

// Authorize reports whether the request host matches any pattern.
func (l *AllowList) Authorize(ctx context.Context, req Request) bool {
	for _, pattern := range l.patterns {
		if matchGlob(pattern, req.Host) {
			return true
		}
	}
	return false
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(ctx context.Context, req Request) bool

// Authorize calls f.
func (f PolicyFunc) Authorize(ctx context.Context, req Request) bool {
	return f(ctx, req)
}

// matchGlob performs simple glob matching.
// Supports * as wildcard matching any characters.
func matchGlob(pattern, str string) bool {
	parts := strings.Split(pattern, "*")

	if len(parts) == 1 {
		// No wildcards, exact match
		return pattern == str
	}

	// Check prefix
	if !strings.HasPrefix(str, parts[0]) {
		return false
	}
	str = str[len(parts[0]):]

	// Check middle parts and suffix
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(str, parts[i])
		if idx == -1 {
			return false
		}
		str = str[idx+len(parts[i]):]
	}

	// Check suffix
	return strings.HasSuffix(str, parts[len(parts)-1])
}

// Verify policies implement Policy.
var (
	_ Policy = DenyAll{}
	_ Policy = AllowAll{}
	_ Policy = (*AllowList)(nil)
	_ Policy = (PolicyFunc)(nil)
)
