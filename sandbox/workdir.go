// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// workdirAttempts bounds collision retries for random names.
const workdirAttempts = 10

// Workdir is the sandbox working directory: the one tree a sandboxed
// process can always read and write. Owned workdirs were allocated by
// leash and are deleted on release; borrowed ones came from the caller
// and are left in place.
type Workdir struct {
	path  string
	owned bool
}

// newWorkdir allocates a unique directory under the system temp dir,
// named leash-<random-32-bit-hex>, mode 0700.
func newWorkdir() (*Workdir, error) {
	parent := os.TempDir()
	for range workdirAttempts {
		var raw [4]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return nil, fmt.Errorf("generating workdir name: %w", err)
		}
		name := fmt.Sprintf("leash-%08x", binary.BigEndian.Uint32(raw[:]))
		path := filepath.Join(parent, name)

		err := os.Mkdir(path, 0o700)
		if err == nil {
			return &Workdir{path: path, owned: true}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating workdir %s: %w", path, err)
		}
		// Name collision: try another.
	}
	return nil, fmt.Errorf("no unique workdir name after %d attempts", workdirAttempts)
}

// borrowWorkdir wraps a caller-supplied directory. Created if missing,
// but never deleted on release.
func borrowWorkdir(path string) (*Workdir, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving workdir path: %w", err)
	}
	if err := os.MkdirAll(absolute, 0o700); err != nil {
		return nil, fmt.Errorf("creating workdir %s: %w", absolute, err)
	}
	return &Workdir{path: absolute, owned: false}, nil
}

// Path returns the workdir's absolute path.
func (w *Workdir) Path() string { return w.path }

// Owned reports whether release will delete the directory.
func (w *Workdir) Owned() bool { return w.owned }

// Remove deletes an owned workdir recursively. Removing a borrowed
// workdir or one already gone is a no-op.
func (w *Workdir) Remove() error {
	if !w.owned {
		return nil
	}
	if err := os.RemoveAll(w.path); err != nil {
		return fmt.Errorf("removing workdir %s: %w", w.path, err)
	}
	return nil
}
