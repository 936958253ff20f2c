// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"strings"
	"testing"
)

func TestRenderProfile(t *testing.T) {
	spec := &Spec{
		Workdir:        "/tmp/leash-0a1b2c3d",
		ReadOnlyPaths:  []string{"/usr/bin", "/bin"},
		ReadWritePaths: []string{"/tmp/leash-0a1b2c3d/scratch"},
		DenyPaths:      []string{"/Users/alice/.ssh"},
		DevicePaths:    []string{"/dev/dri"},
		ProxyPort:      8443,
		IPCSocket:      "/tmp/leash-0a1b2c3d/ipc.sock",
	}

	profile, err := renderProfile(spec)
	if err != nil {
		t.Fatalf("renderProfile: %v", err)
	}

	for _, want := range []string{
		"(version 1)",
		"(deny default)",
		`(allow file-read* file-write* (subpath "/tmp/leash-0a1b2c3d"))`,
		`(allow file-read* (subpath "/usr/bin"))`,
		`(deny file-read* file-write* (subpath "/Users/alice/.ssh"))`,
		"(deny network*)",
		`(allow network-outbound (remote tcp "localhost:8443"))`,
		`(literal "/tmp/leash-0a1b2c3d/ipc.sock")`,
		"iokit-open",
	} {
		if !strings.Contains(profile, want) {
			t.Errorf("profile missing %q:\n%s", want, profile)
		}
	}
}

func TestRenderProfileNoIPCNoDevices(t *testing.T) {
	spec := &Spec{
		Workdir:   "/tmp/leash-deadbeef",
		ProxyPort: 9000,
	}

	profile, err := renderProfile(spec)
	if err != nil {
		t.Fatalf("renderProfile: %v", err)
	}
	if strings.Contains(profile, "iokit-open") {
		t.Error("profile grants IOKit without device paths")
	}
	if strings.Contains(profile, "ipc.sock") {
		t.Error("profile references an IPC socket that is not configured")
	}
}

func TestEscapeSBPL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/usr/bin", "/usr/bin"},
		{"/path/with spaces", "/path/with spaces"},
		{`/path/with"quote`, `/path/with\"quote`},
		{`/path/with\backslash`, `/path/with\\backslash`},
	}
	for _, tt := range tests {
		if got := escapeSBPL(tt.input); got != tt.want {
			t.Errorf("escapeSBPL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestProfileDenyAfterAllow pins the rule ordering the profile relies
// on: Seatbelt applies the last matching rule, so deny rules for
// protected trees must render after the allow rules that could reach
// them.
func TestProfileDenyAfterAllow(t *testing.T) {
	spec := &Spec{
		Workdir:       "/tmp/leash-cafef00d",
		ReadOnlyPaths: []string{"/Users/alice"},
		DenyPaths:     []string{"/Users/alice/.ssh"},
		ProxyPort:     8080,
	}

	profile, err := renderProfile(spec)
	if err != nil {
		t.Fatalf("renderProfile: %v", err)
	}
	allowIdx := strings.Index(profile, `(allow file-read* (subpath "/Users/alice"))`)
	denyIdx := strings.Index(profile, `(deny file-read* file-write* (subpath "/Users/alice/.ssh"))`)
	if allowIdx == -1 || denyIdx == -1 {
		t.Fatalf("profile missing expected rules:\n%s", profile)
	}
	if denyIdx < allowIdx {
		t.Error("deny rule renders before the allow rule it must override")
	}
}
