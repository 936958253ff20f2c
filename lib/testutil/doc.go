// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for leash packages.
package testutil
