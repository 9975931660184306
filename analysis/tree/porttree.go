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
	"sort"
	"strings"

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/taint"
	"golang.org/x/exp/maps"
)

// A PortTree maps each root of a method signature to the tree of taint stored under
// that root. An absent root reads as the bottom tree.
type PortTree map[access.Root]Tree

// NewPortTree returns an empty port tree.
func NewPortTree() PortTree { return PortTree{} }

// IsBottom returns true if no root holds taint.
func (p PortTree) IsBottom() bool { return len(p) == 0 }

// Copy returns a deep copy of the port tree.
func (p PortTree) Copy() PortTree {
	c := PortTree{}
	for root, t := range p {
		c[root] = t.Copy()
	}
	return c
}

// At returns the tree under root, or the bottom tree if the root is absent.
func (p PortTree) At(root access.Root) Tree {
	if t, ok := p[root]; ok {
		return t
	}
	return Tree{}
}

// TaintAt returns the taint stored exactly at the given access path.
func (p PortTree) TaintAt(ap access.AccessPath) taint.Taint {
	if t, ok := p[ap.Root]; ok {
		if v, ok := t[ap.Path]; ok {
			return v
		}
	}
	return taint.Bottom()
}

// ReadAt returns the over-approximating read of the subtree at the given access path.
func (p PortTree) ReadAt(ap access.AccessPath) taint.Taint {
	return p.At(ap.Root).Read(ap.Path)
}

// WriteWeak joins the taint into the value at the access path.
func (p PortTree) WriteWeak(ap access.AccessPath, v taint.Taint) {
	if v.IsBottom() {
		return
	}
	t, ok := p[ap.Root]
	if !ok {
		t = NewTree()
		p[ap.Root] = t
	}
	t.WriteWeak(ap.Path, v)
}

// WriteStrong overwrites the value at the access path, erasing descendants.
func (p PortTree) WriteStrong(ap access.AccessPath, v taint.Taint) {
	t, ok := p[ap.Root]
	if !ok {
		if v.IsBottom() {
			return
		}
		t = NewTree()
		p[ap.Root] = t
	}
	t.WriteStrong(ap.Path, v)
	if t.IsBottom() {
		delete(p, ap.Root)
	}
}

// Join merges other into p and returns p.
func (p PortTree) Join(other PortTree) PortTree {
	for root, t := range other {
		if existing, ok := p[root]; ok {
			existing.Join(t)
		} else {
			p[root] = t.Copy()
		}
	}
	return p
}

// Leq returns true if every root's tree in p is below the same root's tree in other.
func (p PortTree) Leq(other PortTree) bool {
	for root, t := range p {
		if !t.Leq(other.At(root)) {
			return false
		}
	}
	return true
}

// Equal returns true if the two port trees hold exactly the same taint.
func (p PortTree) Equal(other PortTree) bool {
	if len(p) != len(other) {
		return false
	}
	for root, t := range p {
		o, ok := other[root]
		if !ok || !t.Equal(o) {
			return false
		}
	}
	return true
}

// LeafCount returns the total number of paths holding taint across all roots.
func (p PortTree) LeafCount() int {
	n := 0
	for _, t := range p {
		n += t.LeafCount()
	}
	return n
}

// Roots returns the sorted roots holding taint.
func (p PortTree) Roots() []access.Root {
	roots := maps.Keys(p)
	sort.Slice(roots, func(i, j int) bool { return roots[i].Less(roots[j]) })
	return roots
}

// ForEach visits every (access path, taint) entry in deterministic order.
func (p PortTree) ForEach(visit func(ap access.AccessPath, v taint.Taint)) {
	for _, root := range p.Roots() {
		t := p[root]
		for _, path := range t.Paths() {
			visit(access.AccessPath{Root: root, Path: path}, t[path])
		}
	}
}

// WidenPort bounds the size of the tree under root: if it holds more than maxLeaves
// paths it is collapsed to the given depth, and if still over the bound, collapsed to
// the root path. Collapsed taint carries the widening features.
func (p PortTree) WidenPort(root access.Root, maxLeaves int, depth int, widening taint.Features) {
	t, ok := p[root]
	if !ok || t.LeafCount() <= maxLeaves {
		return
	}
	t.CollapseDeeperThan(depth, widening)
	if t.LeafCount() > maxLeaves {
		t.CollapseDeeperThan(0, widening)
	}
}

// CollapseDeeperThan applies the depth bound to the tree under every root.
func (p PortTree) CollapseDeeperThan(depth int, widening taint.Features) {
	for _, t := range p {
		t.CollapseDeeperThan(depth, widening)
	}
}

// Filter removes every entry for which keep returns false, pruning empty roots.
func (p PortTree) Filter(keep func(ap access.AccessPath, v taint.Taint) bool) {
	for root, t := range p {
		t.Filter(func(path string, v taint.Taint) bool {
			return keep(access.AccessPath{Root: root, Path: path}, v)
		})
		if t.IsBottom() {
			delete(p, root)
		}
	}
}

// RemoveKinds drops the given kinds from every entry, pruning entries and roots that
// become bottom.
func (p PortTree) RemoveKinds(kinds map[taint.Kind]bool) {
	for root, t := range p {
		t.RemoveKinds(kinds)
		if t.IsBottom() {
			delete(p, root)
		}
	}
}

// Transform replaces every entry's taint by f(taint), pruning entries and roots that
// become bottom.
func (p PortTree) Transform(f func(taint.Taint) taint.Taint) {
	for root, t := range p {
		t.Transform(f)
		if t.IsBottom() {
			delete(p, root)
		}
	}
}

func (p PortTree) String() string {
	var b strings.Builder
	b.WriteString("{")
	first := true
	p.ForEach(func(ap access.AccessPath, v taint.Taint) {
		if !first {
			b.WriteString(" ")
		}
		first = false
		b.WriteString(ap.String())
		b.WriteString("=")
		b.WriteString(v.String())
	})
	b.WriteString("}")
	return b.String()
}
