// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package platform

// DefaultDeniedSyscalls returns the baseline syscall deny list applied
// to every Linux sandbox. The selection blocks process introspection,
// kernel and mount manipulation, privilege changes, and exploit
// staples while leaving standard I/O and process bookkeeping intact.
// The list is a policy artifact: sandbox configuration may replace it.
func DefaultDeniedSyscalls() []string {
	return []string{
		// Process debugging and memory access.
		"ptrace",
		"process_vm_readv",
		"process_vm_writev",

		// Kernel module operations.
		"init_module",
		"finit_module",
		"delete_module",

		// Personality changes (can disable ASLR).
		"personality",

		// Mount operations.
		"mount",
		"umount2",
		"pivot_root",

		// Namespace operations.
		"unshare",
		"setns",

		// Reboot and kexec.
		"reboot",
		"kexec_load",
		"kexec_file_load",

		// UID/GID manipulation.
		"setuid",
		"setgid",
		"setreuid",
		"setregid",
		"setresuid",
		"setresgid",
		"setgroups",

		// Kernel keyring.
		"add_key",
		"request_key",
		"keyctl",

		// BPF program loading.
		"bpf",

		// Exploit staples.
		"userfaultfd",
		"perf_event_open",

		// Clock manipulation.
		"settimeofday",
		"clock_settime",
		"adjtimex",

		// Swap, quota, accounting.
		"swapon",
		"swapoff",
		"quotactl",
		"acct",
	}
}

// HardwareDeniedSyscalls returns the additional syscalls denied when
// general hardware access is off. io_uring is grouped here because its
// registered-buffer machinery reaches device drivers directly.
func HardwareDeniedSyscalls() []string {
	return []string{
		"io_uring_setup",
		"io_uring_enter",
		"io_uring_register",
	}
}
