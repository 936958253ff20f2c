// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// childRegistry tracks the process IDs a sandbox has spawned. Only the
// owning sandbox mutates it; external observers see snapshots. Every
// registered pid was started through the sandbox's backend recipe with
// its own process group.
type childRegistry struct {
	mu   sync.Mutex
	pids map[int]struct{}
}

func newChildRegistry() *childRegistry {
	return &childRegistry{pids: make(map[int]struct{})}
}

func (r *childRegistry) add(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pids[pid] = struct{}{}
}

func (r *childRegistry) remove(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pids, pid)
}

// snapshot returns the currently tracked pids.
func (r *childRegistry) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pids := make([]int, 0, len(r.pids))
	for pid := range r.pids {
		pids = append(pids, pid)
	}
	return pids
}

// terminateAll signals every tracked process group with SIGTERM, waits
// up to grace for the processes to exit, then SIGKILLs survivors and
// waits for them to disappear. Pids are removed from the registry as
// they die.
func (r *childRegistry) terminateAll(grace time.Duration, logger *slog.Logger) {
	pids := r.snapshot()
	if len(pids) == 0 {
		return
	}

	for _, pid := range pids {
		// Negative pid: the whole process group set up at spawn.
		if err := unix.Kill(-pid, unix.SIGTERM); err != nil && err != unix.ESRCH {
			logger.Debug("SIGTERM failed", "pid", pid, "error", err)
		}
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if len(r.reapDead(pids)) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}

	for _, pid := range r.reapDead(pids) {
		logger.Warn("child survived grace period, killing", "pid", pid)
		if err := unix.Kill(-pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
			logger.Debug("SIGKILL failed", "pid", pid, "error", err)
		}
	}

	// SIGKILL is not refusable; give the kernel a moment to reap.
	killDeadline := time.Now().Add(time.Second)
	for time.Now().Before(killDeadline) {
		if len(r.reapDead(pids)) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// reapDead removes pids that no longer exist and returns the ones
// still alive.
func (r *childRegistry) reapDead(pids []int) []int {
	var alive []int
	for _, pid := range pids {
		if processAlive(pid) {
			alive = append(alive, pid)
		} else {
			r.remove(pid)
		}
	}
	return alive
}

// processAlive probes a pid with signal 0. A zombie still counts as
// alive until its parent waits on it, which exec.Cmd.Wait does.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
