// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leash-foundation/leash/sandbox"
)

// fileConfig is the YAML configuration file surface. Tier and Workdir
// are overridden by their flags; Allow and EnvPassthrough are combined
// with their flags' values; AllowAllNetwork and KeepWorkdir are on when
// either the file or the flag turns them on. Security and Python have
// no flag counterpart.
type fileConfig struct {
	// Tier is the filesystem tier: strict, default, or permissive.
	Tier string `yaml:"tier"`

	// Allow lists host glob patterns for the network allow-list.
	Allow []string `yaml:"allow"`

	// AllowAllNetwork turns the policy into allow-all.
	AllowAllNetwork bool `yaml:"allow_all_network"`

	// Workdir borrows an existing working directory.
	Workdir string `yaml:"workdir"`

	// KeepWorkdir preserves the workdir after the run.
	KeepWorkdir bool `yaml:"keep_workdir"`

	// EnvPassthrough lists variables copied from the parent
	// environment into the sandbox.
	EnvPassthrough []string `yaml:"env_passthrough"`

	// Security adjusts individual protection toggles from the strict
	// baseline.
	Security *securityConfig `yaml:"security"`

	// Python configures the virtual environment for `leash python`.
	Python *pythonConfig `yaml:"python"`
}

type securityConfig struct {
	ProtectUserHome           *bool `yaml:"protect_user_home"`
	ProtectCredentials        *bool `yaml:"protect_credentials"`
	ProtectCloudConfig        *bool `yaml:"protect_cloud_config"`
	ProtectBrowserData        *bool `yaml:"protect_browser_data"`
	ProtectShellHistory       *bool `yaml:"protect_shell_history"`
	ProtectPackageCredentials *bool `yaml:"protect_package_credentials"`
	AllowGPU                  *bool `yaml:"allow_gpu"`
	AllowNPU                  *bool `yaml:"allow_npu"`
	AllowHardware             *bool `yaml:"allow_hardware"`
}

type pythonConfig struct {
	Venv               string   `yaml:"venv"`
	Python             string   `yaml:"python"`
	Packages           []string `yaml:"packages"`
	SystemSitePackages bool     `yaml:"system_site_packages"`
	UseUV              *bool    `yaml:"use_uv"`
}

// loadFileConfig reads the YAML config. A missing path is fine when it
// was not explicitly requested.
func loadFileConfig(path string, explicit bool) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var config fileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &config, nil
}

// overlaySecurity applies the file's tri-state security overrides onto
// the strict baseline.
func overlaySecurity(base *sandbox.Security, file *securityConfig) {
	if file == nil {
		return
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&base.ProtectUserHome, file.ProtectUserHome)
	set(&base.ProtectCredentials, file.ProtectCredentials)
	set(&base.ProtectCloudConfig, file.ProtectCloudConfig)
	set(&base.ProtectBrowserData, file.ProtectBrowserData)
	set(&base.ProtectShellHistory, file.ProtectShellHistory)
	set(&base.ProtectPackageCredentials, file.ProtectPackageCredentials)
	set(&base.AllowGPU, file.AllowGPU)
	set(&base.AllowNPU, file.AllowNPU)
	set(&base.AllowHardware, file.AllowHardware)
}
