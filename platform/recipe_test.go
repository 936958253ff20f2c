// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"context"
	"slices"
	"testing"
)

func TestRecipeCommandPrefix(t *testing.T) {
	recipe := &Recipe{
		argvPrefix: []string{"/usr/bin/sandbox-exec", "-f", "/work/profile.sb", "--"},
		workdir:    "/work",
	}

	cmd, err := recipe.Command(context.Background(),
		[]string{"echo", "hello"}, []string{"PATH=/usr/bin"}, "")
	if err != nil {
		t.Fatalf("Command: %v", err)
	}

	wantArgs := []string{"/usr/bin/sandbox-exec", "-f", "/work/profile.sb", "--", "echo", "hello"}
	if !slices.Equal(cmd.Args, wantArgs) {
		t.Errorf("Args = %v, want %v", cmd.Args, wantArgs)
	}
	if cmd.Dir != "/work" {
		t.Errorf("Dir = %q, want workdir fallback", cmd.Dir)
	}
	if !slices.Equal(cmd.Env, []string{"PATH=/usr/bin"}) {
		t.Errorf("Env = %v", cmd.Env)
	}
}

func TestRecipeCommandCwdOverride(t *testing.T) {
	recipe := &Recipe{argvPrefix: []string{"/bin/true"}, workdir: "/work"}
	cmd, err := recipe.Command(context.Background(), []string{"ls"}, nil, "/elsewhere")
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if cmd.Dir != "/elsewhere" {
		t.Errorf("Dir = %q, want /elsewhere", cmd.Dir)
	}
}

func TestRecipeCommandEmptyArgv(t *testing.T) {
	recipe := &Recipe{workdir: "/work"}
	if _, err := recipe.Command(context.Background(), nil, nil, ""); err == nil {
		t.Error("Command accepted empty argv")
	}
}

func TestRecipeReexecCarriesSpecPath(t *testing.T) {
	recipe := &Recipe{reexec: true, specPath: "/work/launch.spec", workdir: "/work"}
	cmd, err := recipe.Command(context.Background(),
		[]string{"echo", "hi"}, []string{"PATH=/usr/bin"}, "")
	if err != nil {
		t.Fatalf("Command: %v", err)
	}

	if !slices.Contains(cmd.Env, SpecEnvVar+"=/work/launch.spec") {
		t.Errorf("Env missing %s: %v", SpecEnvVar, cmd.Env)
	}
	// The target argv rides behind the re-exec'd binary.
	if len(cmd.Args) < 3 || cmd.Args[1] != "echo" || cmd.Args[2] != "hi" {
		t.Errorf("Args = %v, want [self echo hi]", cmd.Args)
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"valid", Spec{Workdir: "/w", ProxyPort: 8080}, false},
		{"missing workdir", Spec{ProxyPort: 8080}, true},
		{"zero port", Spec{Workdir: "/w"}, true},
		{"port out of range", Spec{Workdir: "/w", ProxyPort: 70000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultDeniedSyscalls(t *testing.T) {
	denied := DefaultDeniedSyscalls()
	for _, required := range []string{"ptrace", "mount", "bpf", "setuid", "unshare"} {
		if !slices.Contains(denied, required) {
			t.Errorf("default deny list missing %q", required)
		}
	}
	// I/O and process bookkeeping must stay allowed.
	for _, allowed := range []string{"read", "write", "openat", "clone", "execve", "wait4"} {
		if slices.Contains(denied, allowed) {
			t.Errorf("default deny list blocks %q", allowed)
		}
	}
}
