// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/profile.sb.tmpl
var profileTemplateFS embed.FS

// profileTemplate is parsed once at init; a malformed embedded template
// is a programming error, not a runtime condition.
var profileTemplate = template.Must(
	template.ParseFS(profileTemplateFS, "templates/profile.sb.tmpl"))

// profileData is the input to the SBPL template. Paths must already be
// escaped for SBPL string literals.
type profileData struct {
	Workdir        string
	ReadOnlyPaths  []string
	ReadWritePaths []string
	DevicePaths    []string
	DenyPaths      []string
	ProxyPort      int
	IPCSocket      string
	AllowGPU       bool
}

// renderProfile renders the SBPL profile text for a spec. The GPU
// IOKit clause is driven by whether any GPU device path was granted.
func renderProfile(spec *Spec) (string, error) {
	allowGPU := false
	for _, path := range spec.DevicePaths {
		if path == "/dev/dri" || strings.HasPrefix(path, "/dev/nvidia") {
			allowGPU = true
		}
	}

	data := profileData{
		Workdir:        escapeSBPL(spec.Workdir),
		ReadOnlyPaths:  escapeSBPLAll(spec.ReadOnlyPaths),
		ReadWritePaths: escapeSBPLAll(spec.ReadWritePaths),
		DevicePaths:    escapeSBPLAll(spec.DevicePaths),
		DenyPaths:      escapeSBPLAll(spec.DenyPaths),
		ProxyPort:      spec.ProxyPort,
		IPCSocket:      escapeSBPL(spec.IPCSocket),
		AllowGPU:       allowGPU,
	}

	var rendered strings.Builder
	if err := profileTemplate.Execute(&rendered, data); err != nil {
		return "", fmt.Errorf("rendering sandbox profile: %w", err)
	}
	return rendered.String(), nil
}

// escapeSBPL escapes a path for use inside an SBPL string literal.
func escapeSBPL(path string) string {
	path = strings.ReplaceAll(path, `\`, `\\`)
	return strings.ReplaceAll(path, `"`, `\"`)
}

func escapeSBPLAll(paths []string) []string {
	escaped := make([]string, len(paths))
	for i, path := range paths {
		escaped[i] = escapeSBPL(path)
	}
	return escaped
}
