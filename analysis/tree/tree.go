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

// Package tree implements the port-indexed taint trees at the heart of a summary
// model: a mapping from access paths (root plus field suffix) to taint values, with
// lattice operations and the truncation passes that bound tree size.
package tree

import (
	"sort"
	"strings"

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/taint"
	"golang.org/x/exp/maps"
)

// A Tree maps path suffixes under a single root to taint values. Entries whose taint
// is bottom are pruned eagerly, so an empty map is the bottom tree.
type Tree map[string]taint.Taint

// NewTree returns an empty tree.
func NewTree() Tree { return Tree{} }

// IsBottom returns true if the tree holds no taint.
func (t Tree) IsBottom() bool { return len(t) == 0 }

// Copy returns a deep copy of the tree.
func (t Tree) Copy() Tree {
	c := Tree{}
	for path, v := range t {
		c[path] = v.Copy()
	}
	return c
}

// WriteWeak joins the taint into the value stored at path.
func (t Tree) WriteWeak(path string, v taint.Taint) {
	if v.IsBottom() {
		return
	}
	if existing, ok := t[path]; ok {
		existing.Join(v)
	} else {
		t[path] = v.Copy()
	}
}

// WriteStrong overwrites the value at path, removing any taint stored on descendant
// paths. Writing bottom erases the subtree.
func (t Tree) WriteStrong(path string, v taint.Taint) {
	for p := range t {
		if p == path || isDescendant(p, path) {
			delete(t, p)
		}
	}
	if !v.IsBottom() {
		t[path] = v.Copy()
	}
}

// isDescendant returns true if path p is strictly below ancestor.
func isDescendant(p string, ancestor string) bool {
	if p == ancestor {
		return false
	}
	rest, ok := strings.CutPrefix(p, ancestor)
	return ok && (strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, "[*]"))
}

// Read returns the join of the taint at path and at every path below it. This is the
// over-approximating read used when a summary consumes a whole subobject.
func (t Tree) Read(path string) taint.Taint {
	result := taint.Bottom()
	for p, v := range t {
		if p == path || isDescendant(p, path) || isDescendant(path, p) {
			result.Join(v)
		}
	}
	return result
}

// Join merges other into t and returns t.
func (t Tree) Join(other Tree) Tree {
	for path, v := range other {
		t.WriteWeak(path, v)
	}
	return t
}

// Leq returns true if every entry of t is subsumed by the entry at the same path in
// other.
func (t Tree) Leq(other Tree) bool {
	for path, v := range t {
		if !v.Leq(other[path]) {
			return false
		}
	}
	return true
}

// Equal returns true if the trees hold exactly the same taint at the same paths.
func (t Tree) Equal(other Tree) bool {
	if len(t) != len(other) {
		return false
	}
	for path, v := range t {
		o, ok := other[path]
		if !ok || !v.Equal(o) {
			return false
		}
	}
	return true
}

// LeafCount returns the number of paths holding taint.
func (t Tree) LeafCount() int { return len(t) }

// Paths returns the sorted paths holding taint.
func (t Tree) Paths() []string {
	paths := maps.Keys(t)
	sort.Strings(paths)
	return paths
}

// CollapseDeeperThan joins every path longer than depth into its depth-bounded prefix
// and tags the moved taint with the widening features, making the loss of precision
// visible in later reports.
func (t Tree) CollapseDeeperThan(depth int, widening taint.Features) {
	for path, v := range t {
		if access.PathLen(path) <= depth {
			continue
		}
		delete(t, path)
		collapsed := v.Copy().AddFeatures(widening)
		t.WriteWeak(access.PathPrefix(path, depth), collapsed)
	}
}

// Filter removes every entry for which keep returns false.
func (t Tree) Filter(keep func(path string, v taint.Taint) bool) {
	for path, v := range t {
		if !keep(path, v) {
			delete(t, path)
		}
	}
}

// RemoveKinds drops the given kinds from every entry, pruning entries that become
// bottom.
func (t Tree) RemoveKinds(kinds map[taint.Kind]bool) {
	for path, v := range t {
		pruned := v.RemoveKinds(kinds)
		if pruned.IsBottom() {
			delete(t, path)
		} else {
			t[path] = pruned
		}
	}
}

// Transform replaces every entry's taint by f(taint), pruning entries that become
// bottom.
func (t Tree) Transform(f func(taint.Taint) taint.Taint) {
	for path, v := range t {
		nv := f(v)
		if nv.IsBottom() {
			delete(t, path)
		} else {
			t[path] = nv
		}
	}
}
