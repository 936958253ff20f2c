// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

// Leash runs commands inside a per-invocation OS-enforced sandbox with
// filtered network access.
//
//	leash run -- cargo build
//	leash --tier strict --allow '*.github.com' run -- curl https://api.github.com/
//	leash shell
//	leash python script.py
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/leash-foundation/leash/platform"
	"github.com/leash-foundation/leash/proxy"
	"github.com/leash-foundation/leash/python"
	"github.com/leash-foundation/leash/sandbox"
)

// startupExitCode is returned when the sandbox itself fails, distinct
// from any child exit code.
const startupExitCode = 125

func main() {
	// Must run before anything else: when this process is a Linux
	// sandbox launch, InitChild installs the primitives and execs the
	// target instead of running the CLI.
	platform.InitChild()

	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(startupExitCode)
	}
	os.Exit(code)
}

func run() (int, error) {
	flags := flag.NewFlagSet("leash", flag.ContinueOnError)
	configPath := flags.String("config", ".leash.yaml", "path to YAML config file")
	tierName := flags.String("tier", "", "filesystem tier: strict, default, permissive")
	allow := flags.StringArray("allow", nil, "host glob to allow through the proxy (repeatable)")
	allowAll := flags.Bool("allow-all-network", false, "allow all network access")
	workdir := flags.String("workdir", "", "borrow an existing working directory")
	keepWorkdir := flags.Bool("keep-workdir", false, "keep the working directory after the run")
	passthrough := flags.StringArray("env-passthrough", nil, "environment variable to pass into the sandbox (repeatable)")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	logJSON := flags.Bool("log-json", false, "JSON log output")
	flags.SetInterspersed(false)

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, nil
		}
		return 0, err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if *logJSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	args := flags.Args()
	if len(args) == 0 {
		return 0, fmt.Errorf("usage: leash [flags] run|shell|python ...")
	}

	file, err := loadFileConfig(*configPath, flags.Changed("config"))
	if err != nil {
		return 0, err
	}

	builder := sandbox.NewConfig().Logger(logger)

	tier := file.Tier
	if *tierName != "" {
		tier = *tierName
	}
	if tier != "" {
		parsed, err := sandbox.ParseTier(tier)
		if err != nil {
			return 0, err
		}
		builder.Tier(parsed)
	}

	security := sandbox.StrictSecurity()
	overlaySecurity(&security, file.Security)
	builder.Security(security)

	patterns := append(append([]string(nil), file.Allow...), *allow...)
	switch {
	case *allowAll || file.AllowAllNetwork:
		builder.Network(proxy.AllowAll{})
	case len(patterns) > 0:
		builder.Network(proxy.NewAllowList(patterns...))
	}

	if dir := firstNonEmpty(*workdir, file.Workdir); dir != "" {
		absolute, err := filepath.Abs(dir)
		if err != nil {
			return 0, err
		}
		builder.WorkingDir(absolute)
	}
	builder.EnvPassthrough(file.EnvPassthrough...)
	builder.EnvPassthrough(*passthrough...)

	command := args[0]
	commandArgs := args[1:]

	// `leash python` needs the venv and the script tree visible.
	if command == "python" && file.Python != nil {
		useUV := true
		if file.Python.UseUV != nil {
			useUV = *file.Python.UseUV
		}
		venvPath, err := filepath.Abs(file.Python.Venv)
		if err != nil {
			return 0, err
		}
		builder.Python(python.VenvConfig{
			Path:               venvPath,
			Python:             file.Python.Python,
			Packages:           file.Python.Packages,
			SystemSitePackages: file.Python.SystemSitePackages,
			UseUV:              useUV,
		})
	}

	config, err := builder.Build()
	if err != nil {
		return 0, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	box, err := sandbox.New(ctx, config)
	if err != nil {
		return 0, err
	}
	defer box.Close()
	if *keepWorkdir || file.KeepWorkdir {
		box.KeepWorkdir()
	}

	switch command {
	case "run":
		return runCommand(ctx, box, commandArgs)
	case "shell":
		return runShell(ctx, box)
	case "python":
		return runPython(ctx, box, commandArgs)
	default:
		return 0, fmt.Errorf("unknown command %q (want run, shell, or python)", command)
	}
}

func runCommand(ctx context.Context, box *sandbox.Sandbox, args []string) (int, error) {
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	if len(args) == 0 {
		return 0, fmt.Errorf("usage: leash run -- <command> [args...]")
	}

	err := box.Command(args[0]).
		Args(args[1:]...).
		Stdin(os.Stdin).
		Stdout(os.Stdout).
		Stderr(os.Stderr).
		Run(ctx)
	return exitStatus(err)
}

func runShell(ctx context.Context, box *sandbox.Sandbox) (int, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	command := box.Command(shell).
		Stdin(os.Stdin).
		Stdout(os.Stdout).
		Stderr(os.Stderr)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		command.Arg("-i")
	}
	return exitStatus(command.Run(ctx))
}

// exitStatus folds a Run error into the CLI's exit code: the child's
// own code propagates, anything else stays an error.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	if code, ok := sandbox.IsExitError(err); ok {
		return code, nil
	}
	return 0, err
}

func runPython(ctx context.Context, box *sandbox.Sandbox, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: leash python <script.py>")
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return 0, fmt.Errorf("reading script: %w", err)
	}

	result, err := box.RunPython(ctx, string(source))
	if err != nil {
		return 0, err
	}
	os.Stdout.Write(result.Stdout)
	os.Stderr.Write(result.Stderr)
	return result.ExitCode, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
