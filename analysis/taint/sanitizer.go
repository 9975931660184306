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

package taint

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

// SanitizerScope selects what a sanitizer applies to.
type SanitizerScope int

const (
	// SanitizeSources blocks taint sources of the matching kinds.
	SanitizeSources SanitizerScope = iota

	// SanitizeSinks blocks taint sinks of the matching kinds.
	SanitizeSinks

	// SanitizePropagations blocks taint propagation of the matching kinds.
	SanitizePropagations
)

func (s SanitizerScope) String() string {
	switch s {
	case SanitizeSources:
		return "sources"
	case SanitizeSinks:
		return "sinks"
	case SanitizePropagations:
		return "propagations"
	default:
		return "?"
	}
}

// ParseSanitizerScope parses the string representation of a sanitizer scope.
func ParseSanitizerScope(s string) (SanitizerScope, error) {
	switch s {
	case "sources":
		return SanitizeSources, nil
	case "sinks":
		return SanitizeSinks, nil
	case "propagations":
		return SanitizePropagations, nil
	default:
		return 0, fmt.Errorf("invalid sanitizer scope %q", s)
	}
}

// A Sanitizer removes taint kinds within one scope. An empty kind set means the
// sanitizer removes every kind.
type Sanitizer struct {
	Scope SanitizerScope
	Kinds map[Kind]bool
}

// NewSanitizer returns a sanitizer for the given scope and kinds. With no kinds, the
// sanitizer blocks all kinds in its scope.
func NewSanitizer(scope SanitizerScope, kinds ...Kind) Sanitizer {
	s := Sanitizer{Scope: scope, Kinds: map[Kind]bool{}}
	for _, k := range kinds {
		s.Kinds[k] = true
	}
	return s
}

// SanitizesAll returns true if the sanitizer blocks every kind in its scope.
func (s Sanitizer) SanitizesAll() bool { return len(s.Kinds) == 0 }

func (s Sanitizer) String() string {
	if s.SanitizesAll() {
		return s.Scope.String() + ":*"
	}
	kinds := maps.Keys(s.Kinds)
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return s.Scope.String() + ":" + strings.Join(parts, ",")
}

// A SanitizerSet holds at most one sanitizer per scope: inserting two sanitizers with
// the same scope merges their kind sets, and a kind-less (sanitize-all) member absorbs
// every other sanitizer for that scope.
type SanitizerSet map[SanitizerScope]Sanitizer

// NewSanitizerSet builds a sanitizer set from the given sanitizers.
func NewSanitizerSet(sanitizers ...Sanitizer) SanitizerSet {
	set := SanitizerSet{}
	for _, s := range sanitizers {
		set.Add(s)
	}
	return set
}

// IsBottom returns true if the set holds no sanitizer.
func (set SanitizerSet) IsBottom() bool { return len(set) == 0 }

// Copy returns a deep copy of the set.
func (set SanitizerSet) Copy() SanitizerSet {
	c := SanitizerSet{}
	for scope, s := range set {
		c[scope] = Sanitizer{Scope: scope, Kinds: maps.Clone(s.Kinds)}
	}
	return c
}

// Add merges a sanitizer into the set.
func (set SanitizerSet) Add(s Sanitizer) {
	existing, ok := set[s.Scope]
	if !ok {
		set[s.Scope] = Sanitizer{Scope: s.Scope, Kinds: maps.Clone(s.Kinds)}
		return
	}
	if existing.SanitizesAll() {
		return
	}
	if s.SanitizesAll() {
		set[s.Scope] = NewSanitizer(s.Scope)
		return
	}
	for k := range s.Kinds {
		existing.Kinds[k] = true
	}
	set[s.Scope] = existing
}

// Join merges other into the set and returns the set.
func (set SanitizerSet) Join(other SanitizerSet) SanitizerSet {
	for _, s := range other {
		set.Add(s)
	}
	return set
}

// Leq returns true if every sanitizer in the set is subsumed by other.
func (set SanitizerSet) Leq(other SanitizerSet) bool {
	for scope, s := range set {
		o, ok := other[scope]
		if !ok {
			return false
		}
		if o.SanitizesAll() {
			continue
		}
		if s.SanitizesAll() {
			return false
		}
		for k := range s.Kinds {
			if !o.Kinds[k] {
				return false
			}
		}
	}
	return true
}

// Equal returns true if the two sets hold the same sanitizers.
func (set SanitizerSet) Equal(other SanitizerSet) bool {
	return len(set) == len(other) && set.Leq(other) && other.Leq(set)
}

// SanitizesAll returns true if the set blocks every kind in the given scope.
func (set SanitizerSet) SanitizesAll(scope SanitizerScope) bool {
	s, ok := set[scope]
	return ok && s.SanitizesAll()
}

// Sanitize filters the taint value by the sanitizer for the given scope, returning
// the remaining taint. The input is not modified.
func (set SanitizerSet) Sanitize(scope SanitizerScope, t Taint) Taint {
	s, ok := set[scope]
	if !ok {
		return t.Copy()
	}
	if s.SanitizesAll() {
		return Bottom()
	}
	return t.RemoveKinds(s.Kinds)
}

// RemoveKinds drops the given kinds from every sanitizer of the set. A sanitizer left
// with no kind that was not a sanitize-all sanitizer is removed.
func (set SanitizerSet) RemoveKinds(kinds map[Kind]bool) {
	for scope, s := range set {
		if s.SanitizesAll() {
			continue
		}
		for k := range kinds {
			delete(s.Kinds, k)
		}
		if len(s.Kinds) == 0 {
			delete(set, scope)
		} else {
			set[scope] = s
		}
	}
}

func (set SanitizerSet) String() string {
	scopes := maps.Keys(set)
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
	parts := make([]string, len(scopes))
	for i, scope := range scopes {
		parts[i] = set[scope].String()
	}
	return "{" + strings.Join(parts, ";") + "}"
}
