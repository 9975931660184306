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

package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/taint"
)

func richModel(t *testing.T) *Model {
	t.Helper()
	sink := taint.NewFrame("SQL")
	sink.Distance = 2
	sink.Origins = []taint.Origin{{Method: "pkg.caller", Position: "main.go:10:2"}}
	conditional := taint.NewFrame("Command")
	conditional.ViaValueOf = 1
	conditional.ConstraintValue = "sh"
	conditional.ViaTypeOf = 0
	conditional.ConstraintType = "string"
	return newTestModel(t, testMethod{"pkg.query", 2}, ModelInit{
		Modes:  TaintInTaintOut | NoCollapseOnPropagation,
		Frozen: FrozenSinks,
		Generations: []PortTaint{
			{Port: mustPath(t, "Return"), Taint: taint.Singleton("UserInput")},
		},
		ParameterSources: []PortTaint{
			{Port: mustPath(t, "Argument(0)"), Taint: taint.Singleton("Intent")},
		},
		Sinks: []PortTaint{
			{Port: mustPath(t, "Argument(1).query"), Taint: taint.NewTaint(sink, conditional)},
		},
		CallEffectSinks: []PortTaint{
			{Port: mustPath(t, "CallEffect"), Taint: taint.Singleton("RCE")},
		},
		Propagations: []Propagation{{
			Input:    mustPath(t, "Argument(0).data"),
			Output:   mustPath(t, "Return"),
			Features: taint.NewFeatures("via-copy"),
			Distance: 1,
			Origins:  []taint.Origin{{Method: "pkg.mid", Position: "mid.go:3:1"}},
		}},
		GlobalSanitizers: []taint.Sanitizer{taint.NewSanitizer(taint.SanitizeSources, "Noise")},
		PortSanitizers: []PortSanitizers{{
			Root:       access.ArgumentRoot(0),
			Sanitizers: taint.NewSanitizerSet(taint.NewSanitizer(taint.SanitizeSinks, "Benign")),
		}},
		AttachToSinks:   []PortFeatures{{Root: access.ArgumentRoot(1), Features: taint.NewFeatures("via-db")}},
		InlineAsGetter:  NewAccessPathConstant(mustPath(t, "Argument(0).field")),
		ModelGenerators: []string{"rule-sql"},
		Issues:          []Issue{{Rule: "sql-injection", SourceKind: "UserInput", SinkKind: "SQL"}},
	})
}

func TestJSONFullRoundTrip(t *testing.T) {
	m := richModel(t)
	data, err := m.ToJSON(ExportFull)
	if err != nil {
		t.Fatalf("cannot serialize: %v", err)
	}
	back, err := FromJSON(m.Method(), data, false)
	if err != nil {
		t.Fatalf("cannot parse back: %v", err)
	}
	if !back.Equal(m) {
		t.Errorf("full round trip should preserve the model:\nhave %v\ngot %v", m, back)
	}
}

func TestJSONStrictRejectsUnknownFields(t *testing.T) {
	data := []byte(`{"sinks": [], "side_effects": []}`)
	_, err := FromJSON(testMethod{"pkg.f", 1}, data, true)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if !strings.Contains(err.Error(), "side_effects") {
		t.Errorf("the error should name the offending field, got %q", err)
	}
	if _, err := FromJSON(testMethod{"pkg.f", 1}, data, false); err != nil {
		t.Errorf("lenient mode should ignore unknown fields, got %v", err)
	}
}

func TestJSONMinimalDropsProvenance(t *testing.T) {
	m := richModel(t)
	data, err := m.ToJSON(ExportMinimal)
	if err != nil {
		t.Fatalf("cannot serialize: %v", err)
	}
	back, err := FromJSON(m.Method(), data, false)
	if err != nil {
		t.Fatalf("cannot parse back: %v", err)
	}
	frame := back.Sinks().TaintAt(mustPath(t, "Argument(1).query"))["SQL"]
	if frame.Distance != 0 || len(frame.Origins) != 0 {
		t.Errorf("minimal export should drop distances and origins, got %+v", frame)
	}
	if len(back.ModelGenerators()) != 0 {
		t.Errorf("minimal export should drop generator provenance")
	}
	conditional := back.Sinks().TaintAt(mustPath(t, "Argument(1).query"))["Command"]
	if conditional.ViaValueOf != 1 || conditional.ConstraintValue != "sh" {
		t.Errorf("minimal export must keep constant constraints, got %+v", conditional)
	}
	if conditional.ViaTypeOf != 0 || conditional.ConstraintType != "string" {
		t.Errorf("minimal export must keep type constraints, got %+v", conditional)
	}
}

func TestJSONPositionEmbedded(t *testing.T) {
	m := newTestModel(t, testMethod{"pkg.f", 1}, ModelInit{
		Sinks: []PortTaint{{Port: mustPath(t, "Argument(0)"), Taint: taint.Singleton("A")}},
	})
	data, err := m.ToJSONWithPosition()
	if err != nil {
		t.Fatalf("cannot serialize: %v", err)
	}
	if !strings.Contains(string(data), `"position": "pkg.f.go:1:1"`) {
		t.Errorf("expected the method position in the output, got %s", data)
	}
}

func TestJSONParseRejectsBadPorts(t *testing.T) {
	data := []byte(`{"sinks": [{"port": "Argument(x)", "taint": [{"kind": "A"}]}]}`)
	if _, err := FromJSON(testMethod{"pkg.f", 1}, data, true); !errors.Is(err, ErrParse) {
		t.Errorf("expected parse error on malformed port, got %v", err)
	}
	data = []byte(`{"sinks": [{"port": "Argument(0)", "taint": [{"features": ["a"]}]}]}`)
	if _, err := FromJSON(testMethod{"pkg.f", 1}, data, true); !errors.Is(err, ErrParse) {
		t.Errorf("expected parse error on frame without kind, got %v", err)
	}
}
