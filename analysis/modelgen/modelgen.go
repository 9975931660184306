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

// Package modelgen reads model-generator rule files. A rule file is a yaml list of
// rules; each rule matches methods by package, name and receiver, and attaches the
// model components (modes, sources, sinks, propagations, sanitizers) that every
// matching method starts the analysis with.
package modelgen

import (
	"fmt"
	"os"
	"regexp"

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/model"
	"github.com/awslabs/ar-taint-models/analysis/taint"
	"gopkg.in/yaml.v3"
)

// A MethodInfo identifies a method to the rule matcher: the package path, the bare
// method name and the receiver type name (empty for package-level functions).
type MethodInfo struct {
	Package  string
	Name     string
	Receiver string
}

// A Match selects methods by regexp. An empty field matches everything, mirroring
// how code identifiers match in the taint analysis configs.
type Match struct {
	Package  string `yaml:"package"`
	Method   string `yaml:"method"`
	Receiver string `yaml:"receiver"`

	packageRegex  *regexp.Regexp
	methodRegex   *regexp.Regexp
	receiverRegex *regexp.Regexp
}

func (m *Match) compile() error {
	var err error
	if m.packageRegex, err = regexp.Compile(m.Package); err != nil {
		return fmt.Errorf("bad package pattern %q: %w", m.Package, err)
	}
	if m.methodRegex, err = regexp.Compile(m.Method); err != nil {
		return fmt.Errorf("bad method pattern %q: %w", m.Method, err)
	}
	if m.receiverRegex, err = regexp.Compile(m.Receiver); err != nil {
		return fmt.Errorf("bad receiver pattern %q: %w", m.Receiver, err)
	}
	return nil
}

// matches returns true if every non-empty pattern matches the corresponding field.
func (m *Match) matches(info MethodInfo) bool {
	return (m.Package == "" || m.packageRegex.MatchString(info.Package)) &&
		(m.Method == "" || m.methodRegex.MatchString(info.Name)) &&
		(m.Receiver == "" || m.receiverRegex.MatchString(info.Receiver))
}

// A PortKinds entry assigns taint kinds to one port of a matching method.
type PortKinds struct {
	Port  string   `yaml:"port"`
	Kinds []string `yaml:"kinds"`
}

// A PropagationRule declares that taint on the input port flows to the output port.
type PropagationRule struct {
	Input    string   `yaml:"input"`
	Output   string   `yaml:"output"`
	Features []string `yaml:"features"`
}

// A SanitizerRule stops the listed kinds (all kinds when the list is empty) in the
// given scope: sources, sinks or propagations.
type SanitizerRule struct {
	Scope string   `yaml:"scope"`
	Kinds []string `yaml:"kinds"`
}

// A Rule is one entry of a generator file.
type Rule struct {
	Name             string            `yaml:"name"`
	Match            Match             `yaml:"match"`
	Modes            []string          `yaml:"modes"`
	Freeze           []string          `yaml:"freeze"`
	Generations      []PortKinds       `yaml:"generations"`
	ParameterSources []PortKinds       `yaml:"parameter-sources"`
	Sinks            []PortKinds       `yaml:"sinks"`
	Propagations     []PropagationRule `yaml:"propagations"`
	Sanitizers       []SanitizerRule   `yaml:"sanitizers"`

	// Features are attached to every source and propagation the rule declares.
	Features []string `yaml:"features"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads the generator rules from a yaml file. Patterns are compiled and
// every rule is checked by building a template model, so a file that loads
// successfully will instantiate on any method whose arity fits its ports.
func LoadRules(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read rules file: %w", err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("could not unmarshal rules file %s: %w", path, err)
	}
	for i := range f.Rules {
		rule := &f.Rules[i]
		if rule.Name == "" {
			return nil, fmt.Errorf("rule %d of %s has no name", i, path)
		}
		if err := rule.Match.compile(); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		if _, err := rule.Instantiate(nil); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
	}
	return f.Rules, nil
}

// Matches returns true if the rule applies to the method.
func (r *Rule) Matches(info MethodInfo) bool {
	return r.Match.matches(info)
}

// Instantiate builds the rule's model for the given method and records the rule name
// as its generator. A nil method builds an unbound template, deferring the port
// arity checks.
func (r *Rule) Instantiate(method model.Method) (*model.Model, error) {
	init := model.ModelInit{ModelGenerators: []string{r.Name}}

	for _, name := range r.Modes {
		mode, err := model.ParseMode(name)
		if err != nil {
			return nil, err
		}
		init.Modes |= mode
	}
	for _, name := range r.Freeze {
		kind, err := model.ParseFreezeKind(name)
		if err != nil {
			return nil, err
		}
		init.Frozen |= kind
	}

	features := taint.NewFeatures(r.Features...)
	taints := func(entries []PortKinds, withFeatures bool) ([]model.PortTaint, error) {
		var out []model.PortTaint
		for _, entry := range entries {
			port, err := access.Parse(entry.Port)
			if err != nil {
				return nil, err
			}
			for _, kind := range entry.Kinds {
				frame := taint.NewFrame(taint.Kind(kind))
				if withFeatures {
					frame = frame.WithFeatures(features)
				}
				out = append(out, model.PortTaint{Port: port, Taint: taint.NewTaint(frame)})
			}
		}
		return out, nil
	}

	var err error
	if init.Generations, err = taints(r.Generations, true); err != nil {
		return nil, err
	}
	if init.ParameterSources, err = taints(r.ParameterSources, true); err != nil {
		return nil, err
	}
	if init.Sinks, err = taints(r.Sinks, false); err != nil {
		return nil, err
	}

	for _, p := range r.Propagations {
		input, err := access.Parse(p.Input)
		if err != nil {
			return nil, err
		}
		output, err := access.Parse(p.Output)
		if err != nil {
			return nil, err
		}
		init.Propagations = append(init.Propagations, model.Propagation{
			Input:    input,
			Output:   output,
			Features: features.Copy().Join(taint.NewFeatures(p.Features...)),
		})
	}

	for _, s := range r.Sanitizers {
		scope, err := taint.ParseSanitizerScope(s.Scope)
		if err != nil {
			return nil, err
		}
		kinds := make([]taint.Kind, len(s.Kinds))
		for i, k := range s.Kinds {
			kinds[i] = taint.Kind(k)
		}
		init.GlobalSanitizers = append(init.GlobalSanitizers, taint.NewSanitizer(scope, kinds...))
	}

	return model.NewModel(method, init)
}

// Apply joins the models of every rule matching the method. It returns nil when no
// rule matches.
func Apply(rules []Rule, method model.Method, info MethodInfo) (*model.Model, error) {
	var result *model.Model
	for i := range rules {
		if !rules[i].Matches(info) {
			continue
		}
		m, err := rules[i].Instantiate(method)
		if err != nil {
			return nil, fmt.Errorf("rule %s on %s: %w", rules[i].Name, method, err)
		}
		if result == nil {
			result = m
			continue
		}
		if err := result.JoinWith(m); err != nil {
			return nil, fmt.Errorf("rule %s on %s: %w", rules[i].Name, method, err)
		}
	}
	return result, nil
}
