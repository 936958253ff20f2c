// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/leash-foundation/leash/platform"
)

// resolveSpec computes the capability set the backend enforces.
// Resolution order: the tier establishes the base read/write map,
// protection toggles subtract, hardware flags add device paths.
//
// Subtraction works differently per primitive: Seatbelt supports deny
// rules, Landlock is additive-only. The resolver therefore emits both
// an explicit deny list and allow lists that already exclude the
// denied trees (protected trees inside an allowed root are carved out
// by enumerating the root and descending around them).
func resolveSpec(config *Config, workdirPath string, proxyPort int, ipcSocket string) *platform.Spec {
	home := userHome()
	denied := protectedPaths(config.security, home)

	var readOnly, readWrite []string
	switch config.tier {
	case TierStrict:
		readOnly = systemReadOnlyPaths()
	case TierDefault:
		readOnly = allowUnder("/", denied, 0)
	case TierPermissive:
		readWrite = allowUnder("/", denied, 0)
	}

	// Explicit path grants still lose to protection toggles.
	for _, path := range config.readablePaths {
		readOnly = append(readOnly, allowUnder(path, denied, 0)...)
	}
	for _, path := range config.executablePaths {
		readOnly = append(readOnly, allowUnder(path, denied, 0)...)
	}
	for _, path := range config.writablePaths {
		readWrite = append(readWrite, allowUnder(path, denied, 0)...)
	}
	if config.pythonVenv != nil {
		readWrite = append(readWrite, allowUnder(config.pythonVenv.Path, denied, 0)...)
	}

	deniedSyscalls := config.deniedSyscalls
	if deniedSyscalls == nil {
		deniedSyscalls = platform.DefaultDeniedSyscalls()
		if !config.security.AllowHardware {
			deniedSyscalls = append(deniedSyscalls, platform.HardwareDeniedSyscalls()...)
		}
	}

	return &platform.Spec{
		Workdir:        workdirPath,
		ReadOnlyPaths:  dedupe(readOnly),
		ReadWritePaths: dedupe(readWrite),
		DevicePaths:    devicePaths(config.security),
		DenyPaths:      dedupe(denied),
		ProxyPort:      proxyPort,
		IPCSocket:      ipcSocket,
		DeniedSyscalls: deniedSyscalls,
	}
}

// systemReadOnlyPaths lists the trees needed to find and run system
// binaries. Granted read-only in every tier, including strict.
func systemReadOnlyPaths() []string {
	if runtime.GOOS == "darwin" {
		return []string{
			"/usr", "/bin", "/sbin",
			"/System", "/Library", "/private/etc", "/opt",
		}
	}
	return []string{
		"/usr", "/bin", "/sbin",
		"/lib", "/lib64", "/lib32",
		"/etc", "/proc", "/sys", "/run", "/opt",
	}
}

// protectedPaths translates the protection toggles into denied trees
// under the invoking user's home.
func protectedPaths(security Security, home string) []string {
	var denied []string
	if home == "" {
		return denied
	}

	if security.ProtectUserHome {
		// The whole tree; the finer toggles below are subsumed.
		return []string{home}
	}
	if security.ProtectCredentials {
		denied = append(denied,
			filepath.Join(home, ".ssh"),
			filepath.Join(home, ".gnupg"),
		)
		if runtime.GOOS == "darwin" {
			denied = append(denied, filepath.Join(home, "Library", "Keychains"))
		}
	}
	if security.ProtectCloudConfig {
		denied = append(denied,
			filepath.Join(home, ".aws"),
			filepath.Join(home, ".azure"),
			filepath.Join(home, ".config", "gcloud"),
			filepath.Join(home, ".kube"),
			filepath.Join(home, ".docker"),
		)
	}
	if security.ProtectBrowserData {
		if runtime.GOOS == "darwin" {
			denied = append(denied,
				filepath.Join(home, "Library", "Safari"),
				filepath.Join(home, "Library", "Cookies"),
				filepath.Join(home, "Library", "Application Support", "Google", "Chrome"),
				filepath.Join(home, "Library", "Application Support", "Firefox"),
			)
		} else {
			denied = append(denied,
				filepath.Join(home, ".mozilla"),
				filepath.Join(home, ".config", "google-chrome"),
				filepath.Join(home, ".config", "chromium"),
			)
		}
	}
	if security.ProtectShellHistory {
		denied = append(denied,
			filepath.Join(home, ".bash_history"),
			filepath.Join(home, ".zsh_history"),
			filepath.Join(home, ".local", "share", "fish"),
		)
	}
	if security.ProtectPackageCredentials {
		denied = append(denied,
			filepath.Join(home, ".npmrc"),
			filepath.Join(home, ".pypirc"),
			filepath.Join(home, ".netrc"),
		)
	}
	return denied
}

// devicePaths translates the hardware flags into device trees. The
// paths are Linux device nodes; on macOS the missing paths are inert
// and GPU access additionally flows through the profile's IOKit
// clause.
func devicePaths(security Security) []string {
	var devices []string
	if security.AllowGPU {
		devices = append(devices,
			"/dev/dri",
			"/dev/nvidia0", "/dev/nvidiactl",
			"/dev/nvidia-modeset", "/dev/nvidia-uvm",
		)
	}
	if security.AllowNPU {
		devices = append(devices, "/dev/accel", "/dev/accel0")
	}
	if security.AllowHardware {
		devices = append(devices,
			"/dev/bus/usb", "/dev/input",
			"/dev/video0", "/dev/video1", "/dev/snd",
		)
	}
	return devices
}

// maxCarveDepth bounds the enumerate-and-descend carving. Deny paths
// live at most a few levels under home; anything deeper indicates a
// pathological configuration.
const maxCarveDepth = 6

// allowUnder returns allow roots that cover root minus the denied
// trees. When nothing under root is denied the root itself is the
// answer; otherwise root's entries are enumerated, denied ones
// dropped, and entries containing denied trees carved recursively.
// This is how subtraction is expressed on an additive-only primitive.
func allowUnder(root string, denied []string, depth int) []string {
	if underAny(root, denied) {
		return nil
	}
	if !anyDeniedInside(root, denied) {
		return []string{root}
	}
	if depth >= maxCarveDepth {
		// Refuse to descend further: dropping the tree denies more,
		// never less.
		return nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var allowed []string
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if underAny(path, denied) {
			continue
		}
		if !anyDeniedInside(path, denied) {
			allowed = append(allowed, path)
			continue
		}
		// A denied tree lies deeper. Never descend through symlinks:
		// the link target may resolve outside the carved region.
		if entry.Type()&os.ModeSymlink != 0 || !entry.IsDir() {
			continue
		}
		allowed = append(allowed, allowUnder(path, denied, depth+1)...)
	}
	return allowed
}

// underAny reports whether path is one of the denied trees or inside
// one.
func underAny(path string, denied []string) bool {
	for _, deny := range denied {
		prefix := deny + string(filepath.Separator)
		if deny == "/" {
			prefix = "/"
		}
		if path == deny || strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// anyDeniedInside reports whether any denied tree is strictly inside
// path.
func anyDeniedInside(path string, denied []string) bool {
	prefix := path + string(filepath.Separator)
	if path == "/" {
		prefix = "/"
	}
	for _, deny := range denied {
		if deny != path && strings.HasPrefix(deny, prefix) {
			return true
		}
	}
	return false
}

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

func dedupe(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(paths))
	var out []string
	for _, path := range paths {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}
