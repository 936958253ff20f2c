// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/leash-foundation/leash/ipc"
	"github.com/leash-foundation/leash/platform"
	"github.com/leash-foundation/leash/proxy"
	"github.com/leash-foundation/leash/python"
)

// ipcSocketEnvVar names the environment variable carrying the IPC
// socket path into children.
const ipcSocketEnvVar = "LEASH_IPC_SOCKET"

// defaultGracePeriod separates SIGTERM from SIGKILL during release.
const defaultGracePeriod = 3 * time.Second

// shutdownTimeout bounds the implicit Close path.
const shutdownTimeout = 10 * time.Second

// Sandbox is a live isolation boundary: workdir, network proxy, IPC
// listener, backend recipe, and child registry, torn down together.
// Construct with New; always release with Close or Shutdown.
type Sandbox struct {
	config      *Config
	workdir     *Workdir
	proxyServer *proxy.Server
	ipcServer   *ipc.Server
	recipe      *platform.Recipe
	registry    *childRegistry
	logger      *slog.Logger
	gracePeriod time.Duration

	keepWorkdir bool

	mu          sync.Mutex
	released    bool
	releaseErr  error
	releaseOnce sync.Once
}

// New starts a sandbox from a built configuration. The startup
// sequence is workdir, IPC listener, proxy, backend recipe — each step
// fail-closed, and any failure unwinds the steps already taken.
func New(ctx context.Context, config *Config) (*Sandbox, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is required", ErrConfiguration)
	}
	logger := config.logger

	backend, err := platform.NewBackend(platform.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	// 1. Workdir.
	var workdir *Workdir
	if config.workingDir != "" {
		workdir, err = borrowWorkdir(config.workingDir)
	} else {
		workdir, err = newWorkdir()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartup, err)
	}

	unwound := true
	defer func() {
		if !unwound {
			return
		}
		workdir.Remove()
	}()

	// 2. IPC listener, if a router is configured.
	var ipcServer *ipc.Server
	if config.router != nil {
		socketPath := filepath.Join(workdir.Path(), "ipc.sock")
		ipcServer, err = ipc.NewServer(ipc.ServerConfig{
			Router:     config.router,
			SocketPath: socketPath,
			Logger:     logger,
		})
		if err == nil {
			err = ipcServer.Start()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStartup, err)
		}
	}
	defer func() {
		if unwound && ipcServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			ipcServer.Shutdown(shutdownCtx)
		}
	}()

	// 3. Network proxy.
	proxyServer := proxy.NewServer(proxy.Config{
		Policy:           config.policy,
		AuthorizeTimeout: config.authorizeTimeout,
		Logger:           logger,
	})
	if err := proxyServer.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartup, err)
	}
	defer func() {
		if unwound {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			proxyServer.Shutdown(shutdownCtx)
		}
	}()

	// 4. Backend recipe.
	ipcSocket := ""
	if ipcServer != nil {
		ipcSocket = ipcServer.SocketPath()
	}
	spec := resolveSpec(config, workdir.Path(), proxyServer.Port(), ipcSocket)
	recipe, err := backend.Prepare(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartup, err)
	}

	unwound = false
	grace := config.gracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	logger.Info("sandbox started",
		"workdir", workdir.Path(),
		"tier", config.tier.String(),
		"proxy", proxyServer.URL(),
		"ipc", ipcSocket != "",
	)

	return &Sandbox{
		config:      config,
		workdir:     workdir,
		proxyServer: proxyServer,
		ipcServer:   ipcServer,
		recipe:      recipe,
		registry:    newChildRegistry(),
		logger:      logger,
		gracePeriod: grace,
	}, nil
}

// Command returns a builder for running program inside the sandbox.
func (s *Sandbox) Command(program string) *Command {
	return &Command{sandbox: s, program: program}
}

// RunPython executes source with the configured virtual environment's
// interpreter, or python3 from the sandbox PATH when no venv is
// configured.
func (s *Sandbox) RunPython(ctx context.Context, source string) (*Result, error) {
	interpreter := "python3"
	if venv := s.config.pythonVenv; venv != nil {
		if err := python.EnsureVenv(ctx, *venv); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStartup, err)
		}
		interpreter = venv.Interpreter()
	}
	return s.Command(interpreter).Arg("-c").Arg(source).Output(ctx)
}

// Workdir returns the sandbox working directory path.
func (s *Sandbox) Workdir() string {
	return s.workdir.Path()
}

// ProxyURL returns the loopback proxy endpoint injected into children.
func (s *Sandbox) ProxyURL() string {
	return s.proxyServer.URL()
}

// Children returns a snapshot of the live tracked child pids.
func (s *Sandbox) Children() []int {
	return s.registry.snapshot()
}

// KeepWorkdir preserves an owned workdir across release, for
// inspection or reuse. Children are still killed on release.
func (s *Sandbox) KeepWorkdir() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepWorkdir = true
}

// buildCommand combines the recipe with a command's argv, env, and
// cwd.
func (s *Sandbox) buildCommand(ctx context.Context, command *Command) (*exec.Cmd, error) {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return nil, fmt.Errorf("%w: sandbox already released", ErrSpawn)
	}

	argv := append([]string{command.program}, command.args...)
	cmd, err := s.recipe.Command(ctx, argv, s.buildEnv(command), command.cwd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	return cmd, nil
}

// Shutdown releases the sandbox and reports cleanup failures. Order:
// children are terminated first (so nothing hangs on a proxy that is
// about to vanish), then the IPC listener drains, then the proxy
// stops, then the workdir is removed. Safe to call more than once.
func (s *Sandbox) Shutdown(ctx context.Context) error {
	s.releaseOnce.Do(func() {
		s.releaseErr = s.release(ctx)
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseErr
}

// Close releases the sandbox with a bounded internal timeout and logs
// cleanup failures instead of returning them. Use from defer.
func (s *Sandbox) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		s.logger.Warn("sandbox release failed", "error", err)
	}
	return nil
}

func (s *Sandbox) release(ctx context.Context) error {
	s.mu.Lock()
	s.released = true
	keep := s.keepWorkdir
	s.mu.Unlock()

	s.logger.Debug("releasing sandbox", "workdir", s.workdir.Path())

	// 1. Children die before their network and IPC paths do.
	s.registry.terminateAll(s.gracePeriod, s.logger)

	// 2. IPC listener with bounded handler drain.
	var firstErr error
	if s.ipcServer != nil {
		if err := s.ipcServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// 3. Proxy; live tunnels abort.
	if err := s.proxyServer.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	// 4. Workdir.
	if !keep {
		if err := s.workdir.Remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.logger.Info("sandbox released", "workdir", s.workdir.Path())
	if firstErr != nil {
		return fmt.Errorf("%w: %v", ErrShutdown, firstErr)
	}
	return nil
}
