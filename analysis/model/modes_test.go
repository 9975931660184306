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

import "testing"

func TestModeNameRoundTrip(t *testing.T) {
	for _, mode := range AllModes {
		parsed, err := ParseMode(mode.String())
		if err != nil {
			t.Fatalf("cannot parse %q: %v", mode.String(), err)
		}
		if parsed != mode {
			t.Errorf("round trip of %v gave %v", mode, parsed)
		}
	}
	if _, err := ParseMode("normal"); err == nil {
		t.Errorf("normal is not a flag and should not parse")
	}
}

func TestModeSubsetOf(t *testing.T) {
	m := SkipAnalysis | TaintInTaintOut
	if !SkipAnalysis.SubsetOf(m) {
		t.Errorf("a flag should be a subset of a set containing it")
	}
	if m.SubsetOf(SkipAnalysis) {
		t.Errorf("a larger set should not be a subset of a smaller one")
	}
	if !Normal.SubsetOf(Normal) {
		t.Errorf("normal should be a subset of normal")
	}
}

func TestModeNames(t *testing.T) {
	names := (TaintInTaintOut | StrongWriteOnPropagation).Names()
	if len(names) != 2 || names[0] != "taint-in-taint-out" || names[1] != "strong-write-on-propagation" {
		t.Errorf("unexpected names %v", names)
	}
	if Normal.Names() != nil {
		t.Errorf("normal should have no names")
	}
}

func TestFreezeKindNameRoundTrip(t *testing.T) {
	for _, f := range AllFreezeKinds {
		parsed, err := ParseFreezeKind(f.String())
		if err != nil {
			t.Fatalf("cannot parse %q: %v", f.String(), err)
		}
		if parsed != f {
			t.Errorf("round trip of %v gave %v", f, parsed)
		}
	}
	if _, err := ParseFreezeKind("everything"); err == nil {
		t.Errorf("expected error on unknown freeze kind")
	}
}
