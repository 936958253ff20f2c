// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package platform

import "log/slog"

// Options configures backend construction. NewBackend is defined per
// platform; the zero Options is valid.
type Options struct {
	// Logger for backend operations.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
