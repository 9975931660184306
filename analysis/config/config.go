// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the yaml configuration of an analysis run and the leveled
// logging used by the analyses.
package config

import (
	"fmt"
	"os"
	"path"
	"regexp"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of an analysis run.
// If some field is not defined in the config file, it will be empty/zero in the
// struct. Private fields are not populated from a yaml file, but computed after
// initialization.
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// if the PkgFilter is specified
	pkgFilterRegex *regexp.Regexp

	// ModelGeneratorFiles lists the yaml rule files that produce initial models for
	// matching methods.
	ModelGeneratorFiles []string `yaml:"model-generator-files"`

	// ModelFiles lists json files containing hand-authored models, parsed in strict
	// mode unless LenientModels is set.
	ModelFiles []string `yaml:"model-files"`
}

type Options struct {
	// ReportsDir is the directory where the model export and the statistics will be
	// stored. If empty, reports are written next to the binary's working directory.
	ReportsDir string `yaml:"reports-dir"`

	// PkgFilter is a filter to build models only for the methods whose package
	// matches the prefix.
	PkgFilter string `yaml:"pkg-filter"`

	// MaxAccessPathLength bounds the length of the field suffix tracked under a
	// port. This value does not affect soundness.
	MaxAccessPathLength int `yaml:"max-access-path-length"`

	// MaxPortLeaves is the widening threshold: the number of distinct paths holding
	// taint under one port before the subtree is collapsed into an ancestor.
	MaxPortLeaves int `yaml:"max-port-leaves"`

	// MaxCallDepth bounds the distance a taint frame is propagated along call
	// edges. If MaxCallDepth is <= 0, it is ignored.
	MaxCallDepth int `yaml:"max-call-depth"`

	// MaxIterations bounds the fixpoint iterations per strongly connected component
	// of the call graph before widening is forced.
	MaxIterations int `yaml:"max-iterations"`

	// LenientModels disables strict parsing of hand-authored model files.
	LenientModels bool `yaml:"lenient-models"`

	// ExportMinimal selects the compact export form without provenance.
	ExportMinimal bool `yaml:"export-minimal"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// DefaultMaxIterations is the default fixpoint iteration bound per component.
const DefaultMaxIterations = 10

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:          "",
		ModelGeneratorFiles: []string{},
		ModelFiles:          []string{},
		Options: Options{
			ReportsDir:          "",
			PkgFilter:           "",
			MaxAccessPathLength: 3,
			MaxPortLeaves:       30,
			MaxCallDepth:        20,
			MaxIterations:       DefaultMaxIterations,
			LenientModels:       false,
			ExportMinimal:       false,
			LogLevel:            int(InfoLevel),
			SilenceWarn:         false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}
	cfg.sourceFile = filename

	if cfg.PkgFilter != "" {
		r, err := regexp.Compile(cfg.PkgFilter)
		if err != nil {
			return nil, fmt.Errorf("could not compile pkg-filter %q: %w", cfg.PkgFilter, err)
		}
		cfg.pkgFilterRegex = r
	}
	if cfg.MaxAccessPathLength <= 0 {
		cfg.MaxAccessPathLength = 3
	}
	if cfg.MaxPortLeaves <= 0 {
		cfg.MaxPortLeaves = 30
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return cfg, nil
}

// SourceFile returns the file the config was loaded from.
func (c Config) SourceFile() string { return c.sourceFile }

// RelPath returns filename if it is an absolute path, otherwise the path to filename
// relative to the directory of the config's source file.
func (c Config) RelPath(filename string) string {
	if path.IsAbs(filename) || c.sourceFile == "" {
		return filename
	}
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchPkgFilter matches a package path against the config's package filter. Matches
// everything if no filter was specified.
func (c Config) MatchPkgFilter(pkgname string) bool {
	if c.pkgFilterRegex != nil {
		return c.pkgFilterRegex.MatchString(pkgname)
	}
	return c.PkgFilter == ""
}
