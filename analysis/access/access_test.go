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

package access

import "testing"

func TestRootStringRoundTrip(t *testing.T) {
	for _, root := range []Root{ReturnRoot(), ArgumentRoot(0), ArgumentRoot(12), CallEffectRoot()} {
		parsed, err := ParseRoot(root.String())
		if err != nil {
			t.Fatalf("cannot parse %q: %v", root.String(), err)
		}
		if parsed != root {
			t.Errorf("round trip of %v gave %v", root, parsed)
		}
	}
}

func TestParseRootRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "return", "Argument", "Argument()", "Argument(-1)", "Argument(x)", "Return "} {
		if _, err := ParseRoot(s); err == nil {
			t.Errorf("expected error parsing %q", s)
		}
	}
}

func TestRootValidForArity(t *testing.T) {
	if !ReturnRoot().ValidForArity(0) {
		t.Errorf("return root should be valid for any arity")
	}
	if !ArgumentRoot(1).ValidForArity(2) {
		t.Errorf("Argument(1) should be valid for arity 2")
	}
	if ArgumentRoot(2).ValidForArity(2) {
		t.Errorf("Argument(2) should not be valid for arity 2")
	}
	if !CallEffectRoot().ValidForArity(0) {
		t.Errorf("call-effect root should be valid for any arity")
	}
}

func TestAccessPathStringRoundTrip(t *testing.T) {
	for _, s := range []string{"Return", "Return.x", "Argument(1).a[*].b", "CallEffect.queue"} {
		ap, err := Parse(s)
		if err != nil {
			t.Fatalf("cannot parse %q: %v", s, err)
		}
		if ap.String() != s {
			t.Errorf("round trip of %q gave %q", s, ap.String())
		}
	}
}

func TestParseRejectsBadPaths(t *testing.T) {
	for _, s := range []string{"Return.", "Argument(0)x", "Return[", "Return.a..b"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("expected error parsing %q", s)
		}
	}
}

func TestPathLen(t *testing.T) {
	cases := []struct {
		path string
		n    int
	}{
		{"", 0},
		{".a", 1},
		{"[*]", 1},
		{".a[*].b", 3},
	}
	for _, c := range cases {
		if got := PathLen(c.path); got != c.n {
			t.Errorf("PathLen(%q) = %d, expected %d", c.path, got, c.n)
		}
	}
}

func TestPathPrefix(t *testing.T) {
	cases := []struct {
		path     string
		depth    int
		expected string
	}{
		{".a[*].b", 3, ".a[*].b"},
		{".a[*].b", 2, ".a[*]"},
		{".a[*].b", 1, ".a"},
		{".a[*].b", 0, ""},
		{".a", -1, ""},
	}
	for _, c := range cases {
		if got := PathPrefix(c.path, c.depth); got != c.expected {
			t.Errorf("PathPrefix(%q, %d) = %q, expected %q", c.path, c.depth, got, c.expected)
		}
	}
}

func TestPathElements(t *testing.T) {
	elements, err := PathElements(".a[*].b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{".a", "[*]", ".b"}
	if len(elements) != len(expected) {
		t.Fatalf("expected %d elements, got %v", len(expected), elements)
	}
	for i := range expected {
		if elements[i] != expected[i] {
			t.Errorf("element %d is %q, expected %q", i, elements[i], expected[i])
		}
	}
	if _, err := PathElements("a.b"); err == nil {
		t.Errorf("expected error on malformed path")
	}
}

func TestPathAppend(t *testing.T) {
	path := PathAppendIndex(PathAppendField("", "data"))
	if path != ".data[*]" {
		t.Errorf("expected .data[*], got %q", path)
	}
	if err := CheckPath(path); err != nil {
		t.Errorf("appended path should be well formed: %v", err)
	}
}

func TestRootOrdering(t *testing.T) {
	ordered := []Root{ReturnRoot(), ArgumentRoot(0), ArgumentRoot(3), CallEffectRoot()}
	for i := 0; i < len(ordered)-1; i++ {
		if !ordered[i].Less(ordered[i+1]) {
			t.Errorf("%v should sort before %v", ordered[i], ordered[i+1])
		}
		if ordered[i+1].Less(ordered[i]) {
			t.Errorf("%v should not sort before %v", ordered[i+1], ordered[i])
		}
	}
}
