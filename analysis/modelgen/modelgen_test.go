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

package modelgen

import (
	"os"
	"path"
	"testing"

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/model"
	"github.com/awslabs/ar-taint-models/analysis/taint"
)

type testMethod struct {
	name  string
	arity int
}

func (m testMethod) String() string   { return m.name }
func (m testMethod) Arity() int       { return m.arity }
func (m testMethod) Position() string { return m.name + ".go:1:1" }

func writeRules(t *testing.T, contents string) string {
	t.Helper()
	filename := path.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(filename, []byte(contents), 0o600); err != nil {
		t.Fatalf("cannot write rules file: %v", err)
	}
	return filename
}

func TestLoadRules(t *testing.T) {
	filename := writeRules(t, `
rules:
  - name: sql-sinks
    match:
      package: "^database/sql"
      method: "^(Query|Exec)"
    sinks:
      - port: Argument(1)
        kinds: [SQL]
  - name: getenv-sources
    match:
      method: "^Getenv$"
    generations:
      - port: Return
        kinds: [EnvInput]
    features: [via-env]
`)
	rules, err := LoadRules(filename)
	if err != nil {
		t.Fatalf("cannot load rules: %v", err)
	}
	if len(rules) != 2 || rules[0].Name != "sql-sinks" || rules[1].Name != "getenv-sources" {
		t.Fatalf("unexpected rules %v", rules)
	}
}

func TestLoadRulesRejectsBadRules(t *testing.T) {
	cases := []string{
		"rules:\n  - match:\n      method: f\n",
		"rules:\n  - name: bad-regex\n    match:\n      package: \"[\"\n",
		"rules:\n  - name: bad-port\n    sinks:\n      - port: Nowhere\n        kinds: [A]\n",
		"rules:\n  - name: bad-mode\n    modes: [invisible]\n",
		"rules:\n  - name: bad-scope\n    sanitizers:\n      - scope: everything\n",
	}
	for i, contents := range cases {
		if _, err := LoadRules(writeRules(t, contents)); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
}

func TestMatchEmptyPatternsMatchEverything(t *testing.T) {
	m := Match{}
	if err := m.compile(); err != nil {
		t.Fatalf("cannot compile: %v", err)
	}
	if !m.matches(MethodInfo{Package: "any/pkg", Name: "Anything", Receiver: "T"}) {
		t.Errorf("empty patterns should match everything")
	}
}

func TestMatchFieldsAreConjunctive(t *testing.T) {
	m := Match{Package: "^os$", Method: "^Getenv$"}
	if err := m.compile(); err != nil {
		t.Fatalf("cannot compile: %v", err)
	}
	if !m.matches(MethodInfo{Package: "os", Name: "Getenv"}) {
		t.Errorf("both fields match, the rule should apply")
	}
	if m.matches(MethodInfo{Package: "os", Name: "Setenv"}) {
		t.Errorf("a failing field should reject the method")
	}
	if m.matches(MethodInfo{Package: "net/os", Name: "Getenv"}) {
		t.Errorf("anchored patterns should not match substrings only")
	}
}

func TestInstantiateBuildsModel(t *testing.T) {
	rule := Rule{
		Name:   "tito",
		Modes:  []string{"taint-in-taint-out"},
		Freeze: []string{"sinks"},
		Sinks: []PortKinds{
			{Port: "Argument(0)", Kinds: []string{"SQL"}},
		},
		Generations: []PortKinds{
			{Port: "Return", Kinds: []string{"Data"}},
		},
		Sanitizers: []SanitizerRule{{Scope: "sources", Kinds: []string{"Noise"}}},
		Features:   []string{"via-rule"},
	}
	m, err := rule.Instantiate(testMethod{"pkg.f", 1})
	if err != nil {
		t.Fatalf("cannot instantiate: %v", err)
	}
	if !m.IsTaintInTaintOut() || !m.IsFrozen(model.FrozenSinks) {
		t.Errorf("modes and freeze flags not applied")
	}
	generation := m.Generations().TaintAt(access.NewAccessPath(access.ReturnRoot()))["Data"]
	if !generation.Features["via-rule"] {
		t.Errorf("rule features should attach to sources, got %v", generation.Features)
	}
	sink := m.Sinks().TaintAt(access.NewAccessPath(access.ArgumentRoot(0)))["SQL"]
	if len(sink.Features) != 0 {
		t.Errorf("rule features must not attach to sinks, got %v", sink.Features)
	}
	if m.GlobalSanitizers().IsBottom() {
		t.Errorf("sanitizers not applied")
	}
	generators := m.ModelGenerators()
	if len(generators) != 1 || generators[0] != "tito" {
		t.Errorf("the rule name should be recorded as generator, got %v", generators)
	}
}

func TestInstantiateChecksArity(t *testing.T) {
	rule := Rule{
		Name:  "deep-arg",
		Sinks: []PortKinds{{Port: "Argument(3)", Kinds: []string{"A"}}},
	}
	if _, err := rule.Instantiate(nil); err != nil {
		t.Fatalf("a template should defer arity checks: %v", err)
	}
	if _, err := rule.Instantiate(testMethod{"pkg.f", 1}); err == nil {
		t.Errorf("instantiating on a small arity should fail")
	}
}

func TestApplyJoinsMatchingRules(t *testing.T) {
	filename := writeRules(t, `
rules:
  - name: sinks
    match:
      method: "^Exec$"
    sinks:
      - port: Argument(0)
        kinds: [SQL]
  - name: sources
    match:
      method: "^Exec$"
    generations:
      - port: Return
        kinds: [Data]
  - name: unrelated
    match:
      method: "^Read$"
    generations:
      - port: Return
        kinds: [FileInput]
`)
	rules, err := LoadRules(filename)
	if err != nil {
		t.Fatalf("cannot load rules: %v", err)
	}
	method := testMethod{"pkg.Exec", 1}
	info := MethodInfo{Package: "pkg", Name: "Exec"}
	m, err := Apply(rules, method, info)
	if err != nil {
		t.Fatalf("cannot apply rules: %v", err)
	}
	if m.Sinks().TaintAt(access.NewAccessPath(access.ArgumentRoot(0))).IsBottom() {
		t.Errorf("the sinks rule should contribute")
	}
	if m.Generations().TaintAt(access.NewAccessPath(access.ReturnRoot())).IsBottom() {
		t.Errorf("the sources rule should contribute")
	}
	if _, ok := m.Generations().TaintAt(access.NewAccessPath(access.ReturnRoot()))[taint.Kind("FileInput")]; ok {
		t.Errorf("non-matching rules must not contribute")
	}
	generators := m.ModelGenerators()
	if len(generators) != 2 {
		t.Errorf("both matching rules should be recorded, got %v", generators)
	}

	none, err := Apply(rules, testMethod{"pkg.Close", 0}, MethodInfo{Package: "pkg", Name: "Close"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if none != nil {
		t.Errorf("no matching rule should yield nil")
	}
}
