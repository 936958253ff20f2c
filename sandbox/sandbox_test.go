// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/leash-foundation/leash/platform"
	"github.com/leash-foundation/leash/proxy"
)

// TestMain wires the Linux re-exec hook exactly as an embedding binary
// would: when a lifecycle test launches a sandboxed child, the child is
// this test binary re-exec'd, and InitChild must run before anything
// else to install the primitives and exec the real program.
func TestMain(m *testing.M) {
	platform.InitChild()
	os.Exit(m.Run())
}

// requireBackend skips tests that need a live isolation primitive on
// machines that lack one (no sandbox-exec, Landlock too old).
func requireBackend(t *testing.T) {
	t.Helper()
	if _, err := platform.NewBackend(platform.Options{}); err != nil {
		t.Skipf("no sandbox backend on this machine: %v", err)
	}
}

func newTestSandbox(t *testing.T, builder *Builder) *Sandbox {
	t.Helper()
	config, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	box, err := New(context.Background(), config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { box.Close() })
	return box
}

func TestSandboxEchoHello(t *testing.T) {
	requireBackend(t)
	box := newTestSandbox(t, NewConfig().Tier(TierStrict))

	result, err := box.Command("echo").Arg("hello").Output(context.Background())
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit = %d, stderr: %s", result.ExitCode, result.Stderr)
	}
	if got := strings.TrimSpace(string(result.Stdout)); got != "hello" {
		t.Errorf("stdout = %q, want hello", got)
	}
}

func TestCommandRunExitError(t *testing.T) {
	requireBackend(t)
	box := newTestSandbox(t, NewConfig().Tier(TierStrict))

	if err := box.Command("true").Run(context.Background()); err != nil {
		t.Errorf("Run(true) = %v, want nil", err)
	}

	err := box.Command("sh").Args("-c", "exit 7").Run(context.Background())
	if err == nil {
		t.Fatal("Run did not report the non-zero exit")
	}
	code, ok := IsExitError(err)
	if !ok {
		t.Fatalf("Run error %v is not an ExitError", err)
	}
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
}

func TestSandboxWorkdirWritableHomeDenied(t *testing.T) {
	requireBackend(t)
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	box := newTestSandbox(t, NewConfig().Tier(TierStrict))

	inside, err := box.Command("sh").
		Args("-c", "echo data > \"$LEASH_TEST_TARGET\"").
		Env("LEASH_TEST_TARGET", box.Workdir()+"/probe").
		Output(context.Background())
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if inside.ExitCode != 0 {
		t.Errorf("workdir write failed: %s", inside.Stderr)
	}

	outside, err := box.Command("sh").
		Args("-c", "echo data > \"$LEASH_TEST_TARGET\"").
		Env("LEASH_TEST_TARGET", home+"/leash-test-escape").
		Output(context.Background())
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if outside.ExitCode == 0 {
		os.Remove(home + "/leash-test-escape")
		t.Error("write to home succeeded under strict tier")
	}
}

func TestSandboxDefaultDeniesNetwork(t *testing.T) {
	requireBackend(t)
	if _, err := os.Stat("/usr/bin/curl"); err != nil {
		t.Skip("curl not available")
	}
	box := newTestSandbox(t, NewConfig())

	result, err := box.Command("curl").
		Args("-s", "-o", "/dev/null", "-w", "%{http_code}", "http://example.com/").
		Output(context.Background())
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if code := strings.TrimSpace(string(result.Stdout)); code != "403" {
		t.Errorf("curl saw status %q, want 403 from the proxy", code)
	}
}

func TestSandboxReleaseRemovesWorkdirAndChildren(t *testing.T) {
	requireBackend(t)
	config, err := NewConfig().Tier(TierStrict).GracePeriod(500 * time.Millisecond).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	box, err := New(context.Background(), config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	workdir := box.Workdir()

	child, err := box.Command("sleep").Arg("60").Spawn(context.Background())
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	pid := child.Pid()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := box.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if _, err := os.Stat(workdir); !os.IsNotExist(err) {
		t.Error("workdir survives release")
	}
	if processAlive(pid) {
		t.Errorf("child %d survives release", pid)
	}

	// Release is idempotent.
	if err := box.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestSandboxCommandAfterRelease(t *testing.T) {
	requireBackend(t)
	config, err := NewConfig().Tier(TierStrict).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	box, err := New(context.Background(), config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	box.Close()

	_, err = box.Command("true").Output(context.Background())
	if !errors.Is(err, ErrSpawn) {
		t.Errorf("command after release = %v, want ErrSpawn", err)
	}
}

func TestSandboxKeepWorkdir(t *testing.T) {
	requireBackend(t)
	config, err := NewConfig().Tier(TierStrict).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	box, err := New(context.Background(), config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	workdir := box.Workdir()
	box.KeepWorkdir()
	box.Close()
	defer os.RemoveAll(workdir)

	if _, err := os.Stat(workdir); err != nil {
		t.Error("kept workdir was removed")
	}
}

// TestBuildEnv exercises environment assembly without needing a
// backend: the proxy and IPC endpoints are forced, PATH defaults, and
// caller variables win over defaults but lose to the forced set.
func TestBuildEnv(t *testing.T) {
	proxyServer := proxy.NewServer(proxy.Config{Policy: proxy.DenyAll{}})
	if err := proxyServer.Start(); err != nil {
		t.Fatalf("proxy Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		proxyServer.Shutdown(ctx)
	}()

	t.Setenv("LEASH_PASSTHROUGH_PROBE", "carried")
	config, err := NewConfig().EnvPassthrough("LEASH_PASSTHROUGH_PROBE").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	box := &Sandbox{
		config:      config,
		workdir:     &Workdir{path: "/tmp/leash-test", owned: false},
		proxyServer: proxyServer,
		registry:    newChildRegistry(),
		logger:      config.logger,
	}

	env := box.buildEnv(box.Command("true").Env("HTTP_PROXY", "http://user-attempt/"))

	if got, _ := envValue(env, "PATH"); got != defaultPath {
		t.Errorf("PATH = %q, want %q", got, defaultPath)
	}
	if got, _ := envValue(env, "HTTP_PROXY"); got != proxyServer.URL() {
		t.Errorf("HTTP_PROXY = %q, want forced %q", got, proxyServer.URL())
	}
	if got, _ := envValue(env, "HTTPS_PROXY"); got != proxyServer.URL() {
		t.Errorf("HTTPS_PROXY = %q", got)
	}
	if got, _ := envValue(env, "LEASH_PASSTHROUGH_PROBE"); got != "carried" {
		t.Errorf("passthrough = %q, want carried", got)
	}
	if _, ok := envValue(env, ipcSocketEnvVar); ok {
		t.Error("IPC socket variable set without a router")
	}
}
