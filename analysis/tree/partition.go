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

	"github.com/awslabs/ar-taint-models/analysis/access"
	"golang.org/x/exp/maps"
)

// Value is the capability a partition requires from its per-root values: the usual
// bottom/join/leq/equal lattice operations plus deep copy. Join must not mutate its
// argument.
type Value[T any] interface {
	IsBottom() bool
	Copy() T
	Join(other T) T
	Leq(other T) bool
	Equal(other T) bool
}

// A Partition maps roots to an arbitrary lattice value, defaulting every absent root
// to that value's bottom. It is used for per-port sanitizers and feature attachments.
type Partition[T Value[T]] struct {
	bottom  func() T
	entries map[access.Root]T
}

// NewPartition returns an empty partition whose absent roots read as bottom().
func NewPartition[T Value[T]](bottom func() T) Partition[T] {
	return Partition[T]{bottom: bottom, entries: map[access.Root]T{}}
}

// IsBottom returns true if no root holds a non-bottom value.
func (p Partition[T]) IsBottom() bool { return len(p.entries) == 0 }

// Copy returns a deep copy of the partition.
func (p Partition[T]) Copy() Partition[T] {
	c := NewPartition(p.bottom)
	for root, v := range p.entries {
		c.entries[root] = v.Copy()
	}
	return c
}

// Get returns the value stored for root, or bottom if absent. The returned value must
// not be mutated by the caller.
func (p Partition[T]) Get(root access.Root) T {
	if v, ok := p.entries[root]; ok {
		return v
	}
	return p.bottom()
}

// Update joins the value into the entry for root. Partitions are additive: entries
// are never overwritten, only joined.
func (p Partition[T]) Update(root access.Root, v T) {
	if v.IsBottom() {
		return
	}
	if existing, ok := p.entries[root]; ok {
		p.entries[root] = existing.Join(v)
	} else {
		p.entries[root] = v.Copy()
	}
}

// Join merges other into p.
func (p Partition[T]) Join(other Partition[T]) {
	for root, v := range other.entries {
		p.Update(root, v)
	}
}

// Leq returns true if every entry of p is below the entry for the same root in other.
func (p Partition[T]) Leq(other Partition[T]) bool {
	for root, v := range p.entries {
		if !v.Leq(other.Get(root)) {
			return false
		}
	}
	return true
}

// Equal returns true if the two partitions hold equal values at the same roots.
func (p Partition[T]) Equal(other Partition[T]) bool {
	if len(p.entries) != len(other.entries) {
		return false
	}
	for root, v := range p.entries {
		o, ok := other.entries[root]
		if !ok || !v.Equal(o) {
			return false
		}
	}
	return true
}

// Roots returns the sorted roots holding a non-bottom value.
func (p Partition[T]) Roots() []access.Root {
	roots := maps.Keys(p.entries)
	sort.Slice(roots, func(i, j int) bool { return roots[i].Less(roots[j]) })
	return roots
}

// ForEach visits every entry in deterministic order.
func (p Partition[T]) ForEach(visit func(root access.Root, v T)) {
	for _, root := range p.Roots() {
		visit(root, p.entries[root])
	}
}

// Prune applies f to every value, dropping the entries whose value becomes bottom.
func (p Partition[T]) Prune(f func(v T) T) {
	for root, v := range p.entries {
		nv := f(v)
		if nv.IsBottom() {
			delete(p.entries, root)
		} else {
			p.entries[root] = nv
		}
	}
}
