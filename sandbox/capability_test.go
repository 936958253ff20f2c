// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/leash-foundation/leash/platform"
)

func buildConfig(t *testing.T, tier Tier, security Security) *Config {
	t.Helper()
	config, err := NewConfig().Tier(tier).Security(security).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return config
}

// reachable reports whether path falls under any allow root of the
// spec (read or write).
func reachable(spec *platform.Spec, path string) bool {
	roots := append([]string{spec.Workdir}, spec.ReadOnlyPaths...)
	roots = append(roots, spec.ReadWritePaths...)
	for _, root := range roots {
		if path == root || underAny(path, []string{root}) {
			return true
		}
	}
	return false
}

func TestTierMonotonicity(t *testing.T) {
	security := StrictSecurity()
	strict := resolveSpec(buildConfig(t, TierStrict, security), "/tmp/leash-0", 8080, "")
	standard := resolveSpec(buildConfig(t, TierDefault, security), "/tmp/leash-0", 8080, "")
	permissive := resolveSpec(buildConfig(t, TierPermissive, security), "/tmp/leash-0", 8080, "")

	// Anything strict can reach, default can reach; anything default
	// can reach, permissive can reach. Paths that do not exist on this
	// machine are skipped: the wider tiers discover their allow roots
	// by enumeration and cannot list what is not there.
	probes := append([]string{}, strict.ReadOnlyPaths...)
	probes = append(probes, strict.ReadWritePaths...)
	for _, probe := range probes {
		if _, err := os.Stat(probe); err != nil {
			continue
		}
		if !reachable(standard, probe) {
			t.Errorf("default tier cannot reach %q allowed under strict", probe)
		}
	}
	probes = append(standard.ReadOnlyPaths, standard.ReadWritePaths...)
	for _, probe := range probes {
		if _, err := os.Stat(probe); err != nil {
			continue
		}
		if !reachable(permissive, probe) {
			t.Errorf("permissive tier cannot reach %q allowed under default", probe)
		}
	}
}

// TestToggleSubtraction: enabling a protection toggle never increases
// reachable paths.
func TestToggleSubtraction(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	open := Security{AllowGPU: true}
	protected := Security{AllowGPU: true, ProtectUserHome: true}

	openSpec := resolveSpec(buildConfig(t, TierDefault, open), "/tmp/leash-1", 8080, "")
	protectedSpec := resolveSpec(buildConfig(t, TierDefault, protected), "/tmp/leash-1", 8080, "")

	if !slices.Contains(protectedSpec.DenyPaths, home) {
		t.Errorf("protect_user_home did not deny %q", home)
	}
	if reachable(protectedSpec, home) {
		t.Errorf("home %q reachable despite protect_user_home", home)
	}

	// Every path the protected spec allows, the open spec allows too.
	probes := append(protectedSpec.ReadOnlyPaths, protectedSpec.ReadWritePaths...)
	for _, probe := range probes {
		if !reachable(openSpec, probe) {
			t.Errorf("toggle added reachable path %q", probe)
		}
	}
}

func TestProtectedPaths(t *testing.T) {
	home := "/home/alice"

	t.Run("home protection subsumes the rest", func(t *testing.T) {
		denied := protectedPaths(StrictSecurity(), home)
		if !slices.Equal(denied, []string{home}) {
			t.Errorf("denied = %v, want just home", denied)
		}
	})

	t.Run("credential trees", func(t *testing.T) {
		security := Security{ProtectCredentials: true}
		denied := protectedPaths(security, home)
		for _, want := range []string{"/home/alice/.ssh", "/home/alice/.gnupg"} {
			if !slices.Contains(denied, want) {
				t.Errorf("denied %v missing %q", denied, want)
			}
		}
	})

	t.Run("cloud config trees", func(t *testing.T) {
		security := Security{ProtectCloudConfig: true}
		denied := protectedPaths(security, home)
		for _, want := range []string{"/home/alice/.aws", "/home/alice/.kube", "/home/alice/.docker"} {
			if !slices.Contains(denied, want) {
				t.Errorf("denied %v missing %q", denied, want)
			}
		}
	})

	t.Run("no toggles no denies", func(t *testing.T) {
		if denied := protectedPaths(Security{}, home); len(denied) != 0 {
			t.Errorf("denied = %v, want empty", denied)
		}
	})
}

func TestAllowUnderCarving(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"projects", "documents", ".ssh", ".aws"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o700); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	denied := []string{filepath.Join(root, ".ssh"), filepath.Join(root, ".aws")}
	allowed := allowUnder(root, denied, 0)

	if slices.Contains(allowed, root) {
		t.Error("carved root itself still allowed")
	}
	for _, want := range []string{filepath.Join(root, "projects"), filepath.Join(root, "documents")} {
		if !slices.Contains(allowed, want) {
			t.Errorf("allowed %v missing %q", allowed, want)
		}
	}
	for _, deny := range denied {
		if slices.Contains(allowed, deny) {
			t.Errorf("denied path %q in allow set", deny)
		}
	}
}

func TestAllowUnderNoDenies(t *testing.T) {
	root := t.TempDir()
	allowed := allowUnder(root, nil, 0)
	if !slices.Equal(allowed, []string{root}) {
		t.Errorf("allowed = %v, want [%s]", allowed, root)
	}
}

func TestAllowUnderDeniedRoot(t *testing.T) {
	root := t.TempDir()
	if allowed := allowUnder(root, []string{root}, 0); allowed != nil {
		t.Errorf("allowed = %v for fully denied root", allowed)
	}
}

func TestDevicePaths(t *testing.T) {
	none := devicePaths(Security{})
	if len(none) != 0 {
		t.Errorf("no flags yielded devices %v", none)
	}

	gpu := devicePaths(Security{AllowGPU: true})
	if !slices.Contains(gpu, "/dev/dri") {
		t.Errorf("GPU devices %v missing /dev/dri", gpu)
	}

	hardware := devicePaths(Security{AllowHardware: true})
	if !slices.Contains(hardware, "/dev/bus/usb") {
		t.Errorf("hardware devices %v missing /dev/bus/usb", hardware)
	}
}

func TestHardwareSyscallDenial(t *testing.T) {
	noHardware := resolveSpec(buildConfig(t, TierStrict, StrictSecurity()), "/tmp/leash-2", 8080, "")
	if !slices.Contains(noHardware.DeniedSyscalls, "io_uring_setup") {
		t.Error("io_uring allowed without hardware access")
	}

	withHardware := resolveSpec(buildConfig(t, TierStrict, PermissiveSecurity()), "/tmp/leash-2", 8080, "")
	if slices.Contains(withHardware.DeniedSyscalls, "io_uring_setup") {
		t.Error("io_uring denied despite hardware access")
	}
	if !slices.Contains(withHardware.DeniedSyscalls, "ptrace") {
		t.Error("baseline deny list missing ptrace")
	}
}

func TestExplicitPathsLoseToToggles(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	config, err := NewConfig().
		Tier(TierStrict).
		Security(StrictSecurity()).
		ReadablePath(filepath.Join(home, ".ssh")).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	spec := resolveSpec(config, "/tmp/leash-3", 8080, "")
	if slices.Contains(spec.ReadOnlyPaths, filepath.Join(home, ".ssh")) {
		t.Error("explicit readable path overrode protect_user_home")
	}
}
