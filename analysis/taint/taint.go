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

// Package taint implements the abstract taint value joined and compared by the
// per-method summary models. A taint value is a set of frames, at most one per taint
// kind; a frame carries the features and call-site provenance accumulated while the
// flow crossed method boundaries.
package taint

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

// A Kind names a category of tainted data, e.g. "UserInput".
type Kind string

// Features is a set of feature labels attached to a flow, e.g. "via-obscure".
// The empty set is bottom, join is union and leq is inclusion.
type Features map[string]bool

// NewFeatures builds a feature set from the given labels.
func NewFeatures(labels ...string) Features {
	f := Features{}
	for _, l := range labels {
		f[l] = true
	}
	return f
}

// IsBottom returns true if the feature set is empty.
func (f Features) IsBottom() bool { return len(f) == 0 }

// Copy returns a copy of the feature set.
func (f Features) Copy() Features {
	if f == nil {
		return Features{}
	}
	return maps.Clone(f)
}

// Join returns the union of the two feature sets, mutating the receiver.
func (f Features) Join(other Features) Features {
	if f == nil {
		f = Features{}
	}
	for l := range other {
		f[l] = true
	}
	return f
}

// Leq returns true if f is included in other.
func (f Features) Leq(other Features) bool {
	for l := range f {
		if !other[l] {
			return false
		}
	}
	return true
}

// Equal returns true if the two feature sets contain the same labels.
func (f Features) Equal(other Features) bool {
	return len(f) == len(other) && f.Leq(other)
}

// Labels returns the sorted labels of the feature set.
func (f Features) Labels() []string {
	labels := maps.Keys(f)
	sort.Strings(labels)
	return labels
}

func (f Features) String() string {
	return "{" + strings.Join(f.Labels(), ",") + "}"
}

// An Origin records one call edge a flow crossed: the method containing the call site
// and the position of the call.
type Origin struct {
	Method   string
	Position string
}

func (o Origin) String() string {
	return o.Method + "@" + o.Position
}

// A Frame is one flow fact: a kind with its features, provenance and the call depth
// at which the fact was originally established.
type Frame struct {
	Kind     Kind
	Features Features
	Origins  []Origin

	// Distance is the number of call edges between this summary and the method that
	// originally established the fact.
	Distance int

	// ViaValueOf conditions the frame on a call-site constant: the frame only
	// materializes at a call site where argument ViaValueOf is the constant string
	// ConstraintValue. ViaValueOf is -1 when the frame is unconditional.
	ViaValueOf      int
	ConstraintValue string

	// ViaTypeOf conditions the frame on a call-site static type: the frame only
	// materializes at a call site where argument ViaTypeOf has static type
	// ConstraintType. ViaTypeOf is -1 when the frame is unconditional.
	ViaTypeOf      int
	ConstraintType string
}

// NewFrame returns an unconditional frame of the given kind.
func NewFrame(kind Kind) Frame {
	return Frame{Kind: kind, Features: Features{}, ViaValueOf: -1, ViaTypeOf: -1}
}

// WithFeatures returns a copy of the frame with the given features joined in.
func (f Frame) WithFeatures(features Features) Frame {
	g := f.Copy()
	g.Features.Join(features)
	return g
}

// Copy returns a deep copy of the frame.
func (f Frame) Copy() Frame {
	g := f
	g.Features = f.Features.Copy()
	g.Origins = append([]Origin{}, f.Origins...)
	return g
}

// join merges another frame of the same kind into f.
func (f *Frame) join(other Frame) {
	f.Features = f.Features.Copy().Join(other.Features)
	for _, o := range other.Origins {
		if !containsOrigin(f.Origins, o) {
			f.Origins = append(f.Origins, o)
		}
	}
	if other.Distance < f.Distance {
		f.Distance = other.Distance
	}
	// A joined frame stays conditional only if both frames agree on the condition.
	if f.ViaValueOf != other.ViaValueOf || f.ConstraintValue != other.ConstraintValue {
		f.ViaValueOf = -1
		f.ConstraintValue = ""
	}
	if f.ViaTypeOf != other.ViaTypeOf || f.ConstraintType != other.ConstraintType {
		f.ViaTypeOf = -1
		f.ConstraintType = ""
	}
}

// conditionLeq orders one constraint axis: a conditional frame is below the
// unconditional one of the same kind, and frames with different conditions are
// incomparable.
func conditionLeq(via int, constraint string, otherVia int, otherConstraint string) bool {
	if otherVia < 0 {
		return true
	}
	return via == otherVia && constraint == otherConstraint
}

// leq returns true if f is subsumed by another frame of the same kind.
func (f Frame) leq(other Frame) bool {
	if !f.Features.Leq(other.Features) {
		return false
	}
	for _, o := range f.Origins {
		if !containsOrigin(other.Origins, o) {
			return false
		}
	}
	if !conditionLeq(f.ViaValueOf, f.ConstraintValue, other.ViaValueOf, other.ConstraintValue) {
		return false
	}
	if !conditionLeq(f.ViaTypeOf, f.ConstraintType, other.ViaTypeOf, other.ConstraintType) {
		return false
	}
	return f.Distance >= other.Distance
}

func (f Frame) equal(other Frame) bool {
	return f.Kind == other.Kind &&
		f.Features.Equal(other.Features) &&
		f.Distance == other.Distance &&
		f.ViaValueOf == other.ViaValueOf &&
		f.ConstraintValue == other.ConstraintValue &&
		f.ViaTypeOf == other.ViaTypeOf &&
		f.ConstraintType == other.ConstraintType &&
		sameOrigins(f.Origins, other.Origins)
}

func containsOrigin(origins []Origin, o Origin) bool {
	for _, x := range origins {
		if x == o {
			return true
		}
	}
	return false
}

func sameOrigins(a, b []Origin) bool {
	if len(a) != len(b) {
		return false
	}
	for _, o := range a {
		if !containsOrigin(b, o) {
			return false
		}
	}
	return true
}

// Taint is an abstract taint value: a set of frames with at most one frame per kind.
// The nil or empty map is bottom.
type Taint map[Kind]Frame

// Bottom returns the bottom taint value.
func Bottom() Taint { return Taint{} }

// NewTaint builds a taint value from the given frames, joining frames of equal kind.
func NewTaint(frames ...Frame) Taint {
	t := Taint{}
	for _, f := range frames {
		t.addFrame(f)
	}
	return t
}

// Singleton returns a taint value holding one unconditional frame of the given kind.
func Singleton(kind Kind) Taint {
	return NewTaint(NewFrame(kind))
}

func (t Taint) addFrame(f Frame) {
	if existing, ok := t[f.Kind]; ok {
		existing.join(f)
		t[f.Kind] = existing
	} else {
		t[f.Kind] = f.Copy()
	}
}

// IsBottom returns true if the taint value holds no frame.
func (t Taint) IsBottom() bool { return len(t) == 0 }

// Copy returns a deep copy of the taint value.
func (t Taint) Copy() Taint {
	c := Taint{}
	for k, f := range t {
		c[k] = f.Copy()
	}
	return c
}

// Kinds returns the sorted kinds present in the taint value.
func (t Taint) Kinds() []Kind {
	kinds := maps.Keys(t)
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Join merges other into t and returns t.
func (t Taint) Join(other Taint) Taint {
	for _, f := range other {
		t.addFrame(f)
	}
	return t
}

// Leq returns true if t is pointwise below other.
func (t Taint) Leq(other Taint) bool {
	for k, f := range t {
		g, ok := other[k]
		if !ok || !f.leq(g) {
			return false
		}
	}
	return true
}

// Equal returns true if the two taint values hold exactly the same frames.
func (t Taint) Equal(other Taint) bool {
	if len(t) != len(other) {
		return false
	}
	for k, f := range t {
		g, ok := other[k]
		if !ok || !f.equal(g) {
			return false
		}
	}
	return true
}

// AddFeatures joins the features into every frame of the taint value.
func (t Taint) AddFeatures(features Features) Taint {
	if features.IsBottom() {
		return t
	}
	for k, f := range t {
		f.Features = f.Features.Copy().Join(features)
		t[k] = f
	}
	return t
}

// RemoveKinds returns a copy of t without the frames whose kind is in the set.
func (t Taint) RemoveKinds(kinds map[Kind]bool) Taint {
	c := Taint{}
	for k, f := range t {
		if !kinds[k] {
			c[k] = f.Copy()
		}
	}
	return c
}

// A CallArgInfo describes what is known about one concrete argument at a call site:
// its static type and, when the argument is a constant string, its value.
type CallArgInfo struct {
	Type  string
	Const string
}

// AtCallsite transforms the taint value for one concrete call: every frame records the
// origin, its distance grows by one, and conditional frames are resolved against the
// concrete arguments. Frames whose condition fails, or whose distance would exceed
// maxDistance (when maxDistance > 0), are dropped.
func (t Taint) AtCallsite(origin Origin, args []CallArgInfo, maxDistance int) Taint {
	c := Taint{}
	for _, f := range t {
		if f.ViaValueOf >= 0 {
			if f.ViaValueOf >= len(args) || args[f.ViaValueOf].Const != f.ConstraintValue {
				continue
			}
		}
		if f.ViaTypeOf >= 0 {
			if f.ViaTypeOf >= len(args) || args[f.ViaTypeOf].Type != f.ConstraintType {
				continue
			}
		}
		g := f.Copy()
		g.ViaValueOf = -1
		g.ConstraintValue = ""
		g.ViaTypeOf = -1
		g.ConstraintType = ""
		g.Distance++
		if maxDistance > 0 && g.Distance > maxDistance {
			continue
		}
		if !containsOrigin(g.Origins, origin) {
			g.Origins = append(g.Origins, origin)
		}
		c[g.Kind] = g
	}
	return c
}

func (t Taint) String() string {
	var parts []string
	for _, k := range t.Kinds() {
		f := t[k]
		s := string(k)
		if !f.Features.IsBottom() {
			s += f.Features.String()
		}
		if f.Distance > 0 {
			s += fmt.Sprintf("@%d", f.Distance)
		}
		parts = append(parts, s)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
