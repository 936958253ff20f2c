// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

// Security holds the protection toggles and hardware flags. Protection
// toggles subtract capability regardless of tier; hardware flags add
// access to specific device paths. The zero value protects nothing and
// allows no hardware — use StrictSecurity as the starting point unless
// the workload is fully trusted.
type Security struct {
	// ProtectUserHome denies the invoking user's home directory tree.
	ProtectUserHome bool

	// ProtectCredentials denies SSH, GnuPG, and keychain material.
	ProtectCredentials bool

	// ProtectCloudConfig denies cloud-provider configuration
	// directories (AWS, Azure, GCP, Kubernetes, Docker).
	ProtectCloudConfig bool

	// ProtectBrowserData denies browser profiles: cookies, history,
	// stored passwords.
	ProtectBrowserData bool

	// ProtectShellHistory denies shell history files.
	ProtectShellHistory bool

	// ProtectPackageCredentials denies package-manager credential
	// files (.npmrc, .pypirc, .netrc).
	ProtectPackageCredentials bool

	// AllowGPU grants the device nodes and services for GPU compute.
	AllowGPU bool

	// AllowNPU grants the accelerator devices for NPU workloads.
	AllowNPU bool

	// AllowHardware grants general device access: USB, input, video,
	// audio. Off for anything untrusted.
	AllowHardware bool
}

// StrictSecurity returns the default posture: every protection on, GPU
// and NPU allowed (compute workloads are the point), general hardware
// off.
func StrictSecurity() Security {
	return Security{
		ProtectUserHome:           true,
		ProtectCredentials:        true,
		ProtectCloudConfig:        true,
		ProtectBrowserData:        true,
		ProtectShellHistory:       true,
		ProtectPackageCredentials: true,
		AllowGPU:                  true,
		AllowNPU:                  true,
	}
}

// PermissiveSecurity returns a posture with no protections and all
// hardware access. For fully trusted code only.
func PermissiveSecurity() Security {
	return Security{
		AllowGPU:      true,
		AllowNPU:      true,
		AllowHardware: true,
	}
}
