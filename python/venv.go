// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

// Package python bootstraps virtual environments for sandboxed Python
// execution. It is a consumer of the sandbox core, not part of it: the
// sandbox only needs the interpreter path the venv yields.
package python

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// VenvConfig describes a virtual environment.
type VenvConfig struct {
	// Path is the venv root directory.
	Path string

	// Python is the interpreter used to create the venv. Empty means
	// python3 from PATH.
	Python string

	// Packages are installed into the venv after creation.
	Packages []string

	// SystemSitePackages exposes the system site-packages inside the
	// venv.
	SystemSitePackages bool

	// UseUV prefers the uv tool for creation and installs when it is
	// on PATH; uv is an order of magnitude faster than pip.
	UseUV bool
}

// Interpreter returns the venv's python executable path.
func (c *VenvConfig) Interpreter() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(c.Path, "Scripts", "python.exe")
	}
	return filepath.Join(c.Path, "bin", "python")
}

// EnsureVenv creates the virtual environment if it does not already
// exist and installs the configured packages. An existing venv is
// reused as-is; packages are not re-resolved.
func EnsureVenv(ctx context.Context, config VenvConfig) error {
	if config.Path == "" {
		return fmt.Errorf("venv path is required")
	}

	if _, err := os.Stat(config.Interpreter()); err == nil {
		return nil
	}

	useUV := config.UseUV && hasUV()
	if useUV {
		if err := createWithUV(ctx, config); err != nil {
			return err
		}
	} else {
		if err := createWithPython(ctx, config); err != nil {
			return err
		}
	}

	if len(config.Packages) == 0 {
		return nil
	}
	return installPackages(ctx, config, useUV)
}

func hasUV() bool {
	_, err := exec.LookPath("uv")
	return err == nil
}

func createWithUV(ctx context.Context, config VenvConfig) error {
	args := []string{"venv", config.Path}
	if config.SystemSitePackages {
		args = append(args, "--system-site-packages")
	}
	if config.Python != "" {
		args = append(args, "--python", config.Python)
	}
	if out, err := exec.CommandContext(ctx, "uv", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("uv venv failed: %w\n%s", err, out)
	}
	return nil
}

func createWithPython(ctx context.Context, config VenvConfig) error {
	interpreter := config.Python
	if interpreter == "" {
		found, err := exec.LookPath("python3")
		if err != nil {
			if found, err = exec.LookPath("python"); err != nil {
				return fmt.Errorf("no python interpreter on PATH")
			}
		}
		interpreter = found
	}

	args := []string{"-m", "venv"}
	if config.SystemSitePackages {
		args = append(args, "--system-site-packages")
	}
	args = append(args, config.Path)
	if out, err := exec.CommandContext(ctx, interpreter, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("python -m venv failed: %w\n%s", err, out)
	}
	return nil
}

func installPackages(ctx context.Context, config VenvConfig, useUV bool) error {
	var cmd *exec.Cmd
	if useUV {
		args := append([]string{"pip", "install", "--python", config.Interpreter()}, config.Packages...)
		cmd = exec.CommandContext(ctx, "uv", args...)
	} else {
		args := append([]string{"-m", "pip", "install"}, config.Packages...)
		cmd = exec.CommandContext(ctx, config.Interpreter(), args...)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("package install failed: %w\n%s", err, out)
	}
	return nil
}
