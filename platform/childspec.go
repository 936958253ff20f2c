// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package platform

// childSpec is the serialized launch spec the Linux backend writes to
// the workdir and InitChild reads back in the re-exec'd child. Kept as
// its own envelope so the on-disk format can grow without touching the
// public Spec type.
type childSpec struct {
	Spec Spec `cbor:"spec"`
}
