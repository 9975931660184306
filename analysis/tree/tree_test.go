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

package tree

import (
	"fmt"
	"testing"

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/taint"
)

func TestWriteWeakJoins(t *testing.T) {
	tr := NewTree()
	tr.WriteWeak(".a", taint.Singleton("A"))
	tr.WriteWeak(".a", taint.Singleton("B"))
	v := tr[".a"]
	if len(v.Kinds()) != 2 {
		t.Errorf("weak write should join, got %v", v.Kinds())
	}
	tr.WriteWeak(".b", taint.Bottom())
	if _, ok := tr[".b"]; ok {
		t.Errorf("writing bottom should not create an entry")
	}
}

func TestWriteStrongErasesDescendants(t *testing.T) {
	tr := NewTree()
	tr.WriteWeak(".a", taint.Singleton("A"))
	tr.WriteWeak(".a.b", taint.Singleton("B"))
	tr.WriteWeak(".a[*]", taint.Singleton("C"))
	tr.WriteWeak(".ab", taint.Singleton("D"))
	tr.WriteStrong(".a", taint.Singleton("E"))
	if got := tr[".a"]; len(got.Kinds()) != 1 || got.Kinds()[0] != "E" {
		t.Errorf("strong write should overwrite, got %v", got)
	}
	if _, ok := tr[".a.b"]; ok {
		t.Errorf("strong write should erase descendant .a.b")
	}
	if _, ok := tr[".a[*]"]; ok {
		t.Errorf("strong write should erase descendant .a[*]")
	}
	if _, ok := tr[".ab"]; !ok {
		t.Errorf(".ab is not a descendant of .a and should survive")
	}
}

func TestWriteStrongBottomErasesSubtree(t *testing.T) {
	tr := NewTree()
	tr.WriteWeak(".a", taint.Singleton("A"))
	tr.WriteWeak(".a.b", taint.Singleton("B"))
	tr.WriteStrong(".a", taint.Bottom())
	if !tr.IsBottom() {
		t.Errorf("expected empty tree, got %v", tr)
	}
}

func TestReadJoinsSubtreeAndAncestors(t *testing.T) {
	tr := NewTree()
	tr.WriteWeak("", taint.Singleton("Root"))
	tr.WriteWeak(".a", taint.Singleton("A"))
	tr.WriteWeak(".a.b", taint.Singleton("AB"))
	tr.WriteWeak(".c", taint.Singleton("C"))
	v := tr.Read(".a")
	kinds := map[taint.Kind]bool{}
	for _, k := range v.Kinds() {
		kinds[k] = true
	}
	if !kinds["Root"] || !kinds["A"] || !kinds["AB"] || kinds["C"] {
		t.Errorf("read at .a should see Root, A and AB only, got %v", v.Kinds())
	}
}

func TestTreeJoinAndLeq(t *testing.T) {
	a := NewTree()
	a.WriteWeak(".x", taint.Singleton("A"))
	b := NewTree()
	b.WriteWeak(".y", taint.Singleton("B"))
	joined := a.Copy().Join(b)
	if !a.Leq(joined) || !b.Leq(joined) {
		t.Errorf("join should be above both operands")
	}
	if joined.Leq(a) {
		t.Errorf("join should not be below an operand it strictly extends")
	}
}

func TestCollapseDeeperThan(t *testing.T) {
	tr := NewTree()
	tr.WriteWeak(".a.b.c.d", taint.Singleton("Deep"))
	tr.WriteWeak(".a", taint.Singleton("Shallow"))
	widening := taint.NewFeatures("via-widening")
	tr.CollapseDeeperThan(2, widening)
	if _, ok := tr[".a.b.c.d"]; ok {
		t.Errorf("deep path should be collapsed")
	}
	moved := tr[".a.b"]
	if moved.IsBottom() {
		t.Fatalf("collapsed taint should land on the depth-2 prefix, tree: %v", tr)
	}
	if !moved["Deep"].Features["via-widening"] {
		t.Errorf("collapsed taint should carry the widening feature")
	}
	if tr[".a"]["Shallow"].Features["via-widening"] {
		t.Errorf("untouched entries should not pick up widening features")
	}
}

func TestPortTreeWidenPortBoundsLeafCount(t *testing.T) {
	p := NewPortTree()
	root := access.ArgumentRoot(0)
	for i := 0; i < 40; i++ {
		path := fmt.Sprintf(".f%d.g%d", i, i)
		p.WriteWeak(access.AccessPath{Root: root, Path: path}, taint.Singleton("A"))
	}
	p.WidenPort(root, 5, 1, taint.NewFeatures("via-widening"))
	if got := p.At(root).LeafCount(); got > 5 {
		t.Errorf("widening should bound the leaf count to 5, got %d", got)
	}
	if p.ReadAt(access.NewAccessPath(root)).IsBottom() {
		t.Errorf("widening must preserve the taint")
	}
}

func TestPortTreeWidenPortNoopUnderBound(t *testing.T) {
	p := NewPortTree()
	root := access.ReturnRoot()
	p.WriteWeak(access.AccessPath{Root: root, Path: ".a"}, taint.Singleton("A"))
	before := p.Copy()
	p.WidenPort(root, 5, 1, taint.NewFeatures("via-widening"))
	if !p.Equal(before) {
		t.Errorf("widening under the bound should change nothing")
	}
}

func TestPortTreeForEachDeterministic(t *testing.T) {
	p := NewPortTree()
	p.WriteWeak(access.AccessPath{Root: access.ArgumentRoot(1), Path: ".b"}, taint.Singleton("X"))
	p.WriteWeak(access.AccessPath{Root: access.ArgumentRoot(0), Path: ".a"}, taint.Singleton("X"))
	p.WriteWeak(access.AccessPath{Root: access.ReturnRoot()}, taint.Singleton("X"))
	var order []string
	p.ForEach(func(ap access.AccessPath, _ taint.Taint) {
		order = append(order, ap.String())
	})
	expected := []string{"Return", "Argument(0).a", "Argument(1).b"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d entries, got %v", len(expected), order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("entry %d is %s, expected %s", i, order[i], expected[i])
		}
	}
}

func TestPortTreeRemoveKindsPrunesRoots(t *testing.T) {
	p := NewPortTree()
	p.WriteWeak(access.AccessPath{Root: access.ReturnRoot()}, taint.Singleton("A"))
	p.WriteWeak(access.AccessPath{Root: access.ArgumentRoot(0)}, taint.NewTaint(taint.NewFrame("A"), taint.NewFrame("B")))
	p.RemoveKinds(map[taint.Kind]bool{"A": true})
	if !p.At(access.ReturnRoot()).IsBottom() {
		t.Errorf("return root should be pruned once empty")
	}
	if p.TaintAt(access.NewAccessPath(access.ArgumentRoot(0))).IsBottom() {
		t.Errorf("argument root should keep kind B")
	}
}
