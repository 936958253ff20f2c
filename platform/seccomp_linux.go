// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package platform

import (
	"fmt"

	seccomp "github.com/elastic/go-seccomp-bpf"
)

// installSeccompFilter compiles and loads the syscall filter in the
// current (child) process. Default-allow with an EPERM blocklist: the
// workloads leash runs need ordinary I/O and process bookkeeping, and
// a default-deny policy would turn every libc update into a sandbox
// outage. TSync applies the filter to all threads the Go runtime has
// already started.
func installSeccompFilter(denied []string) error {
	if len(denied) == 0 {
		return nil
	}

	filter := seccomp.Filter{
		NoNewPrivs: true,
		Flag:       seccomp.FilterFlagTSync,
		Policy: seccomp.Policy{
			DefaultAction: seccomp.ActionAllow,
			Syscalls: []seccomp.SyscallGroup{
				{
					Action: seccomp.ActionErrno,
					Names:  denied,
				},
			},
		},
	}

	if err := seccomp.LoadFilter(filter); err != nil {
		return fmt.Errorf("loading seccomp filter: %w", err)
	}
	return nil
}
