// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides helpers shared by leash binary entrypoints.
package process
