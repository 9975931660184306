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

package config

import (
	"os"
	"path"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	filename := path.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(filename, []byte(contents), 0o600); err != nil {
		t.Fatalf("cannot write config: %v", err)
	}
	return filename
}

func TestLoadPopulatesOptions(t *testing.T) {
	filename := writeConfig(t, `
pkg-filter: "^example\\.com/app"
max-access-path-length: 5
max-port-leaves: 10
max-call-depth: 7
max-iterations: 3
lenient-models: true
export-minimal: true
model-generator-files:
  - rules.yaml
model-files:
  - models.json
`)
	cfg, err := Load(filename)
	if err != nil {
		t.Fatalf("cannot load config: %v", err)
	}
	if cfg.MaxAccessPathLength != 5 || cfg.MaxPortLeaves != 10 ||
		cfg.MaxCallDepth != 7 || cfg.MaxIterations != 3 {
		t.Errorf("options not populated: %+v", cfg.Options)
	}
	if !cfg.LenientModels || !cfg.ExportMinimal {
		t.Errorf("boolean options not populated: %+v", cfg.Options)
	}
	if len(cfg.ModelGeneratorFiles) != 1 || cfg.ModelGeneratorFiles[0] != "rules.yaml" {
		t.Errorf("unexpected generator files %v", cfg.ModelGeneratorFiles)
	}
	if cfg.SourceFile() != filename {
		t.Errorf("source file should be recorded")
	}
}

func TestLoadClampsNonPositiveBounds(t *testing.T) {
	filename := writeConfig(t, `
max-access-path-length: -1
max-port-leaves: 0
max-iterations: -5
`)
	cfg, err := Load(filename)
	if err != nil {
		t.Fatalf("cannot load config: %v", err)
	}
	if cfg.MaxAccessPathLength != 3 || cfg.MaxPortLeaves != 30 || cfg.MaxIterations != DefaultMaxIterations {
		t.Errorf("non-positive bounds should fall back to defaults: %+v", cfg.Options)
	}
}

func TestLoadRejectsBadFilter(t *testing.T) {
	filename := writeConfig(t, `pkg-filter: "["`)
	if _, err := Load(filename); err == nil {
		t.Errorf("an invalid filter regexp should be an error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(path.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("loading a missing file should be an error")
	}
}

func TestMatchPkgFilter(t *testing.T) {
	filename := writeConfig(t, `pkg-filter: "^example\\.com/app"`)
	cfg, err := Load(filename)
	if err != nil {
		t.Fatalf("cannot load config: %v", err)
	}
	if !cfg.MatchPkgFilter("example.com/app/internal") {
		t.Errorf("expected the filter to match")
	}
	if cfg.MatchPkgFilter("example.com/other") {
		t.Errorf("expected the filter to reject")
	}
	if !NewDefault().MatchPkgFilter("anything") {
		t.Errorf("no filter should match everything")
	}
}

func TestRelPath(t *testing.T) {
	filename := writeConfig(t, `log-level: 4`)
	cfg, err := Load(filename)
	if err != nil {
		t.Fatalf("cannot load config: %v", err)
	}
	rel := cfg.RelPath("rules.yaml")
	if rel != path.Join(path.Dir(filename), "rules.yaml") {
		t.Errorf("relative paths should resolve against the config dir, got %s", rel)
	}
	if cfg.RelPath("/abs/rules.yaml") != "/abs/rules.yaml" {
		t.Errorf("absolute paths should pass through")
	}
}
