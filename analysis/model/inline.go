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
	"github.com/awslabs/ar-taint-models/analysis/access"
)

// constantKind discriminates the three states of a flat constant domain.
type constantKind int

const (
	constantBottom constantKind = iota
	constantValue
	constantTop
)

// An AccessPathConstant is the flat domain bottom / access path / top describing
// whether a method call can be inlined as a direct field read at call sites.
type AccessPathConstant struct {
	kind constantKind
	path access.AccessPath
}

// BottomAccessPathConstant returns the bottom element.
func BottomAccessPathConstant() AccessPathConstant { return AccessPathConstant{} }

// TopAccessPathConstant returns the top element.
func TopAccessPathConstant() AccessPathConstant {
	return AccessPathConstant{kind: constantTop}
}

// NewAccessPathConstant returns the constant holding the given access path.
func NewAccessPathConstant(path access.AccessPath) AccessPathConstant {
	return AccessPathConstant{kind: constantValue, path: path}
}

// IsBottom returns true for the bottom element.
func (c AccessPathConstant) IsBottom() bool { return c.kind == constantBottom }

// IsTop returns true for the top element.
func (c AccessPathConstant) IsTop() bool { return c.kind == constantTop }

// Value returns the held access path and true, or false when bottom or top.
func (c AccessPathConstant) Value() (access.AccessPath, bool) {
	return c.path, c.kind == constantValue
}

// Join returns the least upper bound: two different paths join to top.
func (c AccessPathConstant) Join(other AccessPathConstant) AccessPathConstant {
	switch {
	case c.IsBottom():
		return other
	case other.IsBottom():
		return c
	case c == other:
		return c
	default:
		return TopAccessPathConstant()
	}
}

// Leq returns true if c is below other in the flat order.
func (c AccessPathConstant) Leq(other AccessPathConstant) bool {
	return c.IsBottom() || other.IsTop() || c == other
}

func (c AccessPathConstant) String() string {
	switch c.kind {
	case constantBottom:
		return "_|_"
	case constantTop:
		return "T"
	default:
		return c.path.String()
	}
}

// A SetterAccessPath is the pair of access paths describing a setter: the target
// field written and the value written into it.
type SetterAccessPath struct {
	Target access.AccessPath
	Value  access.AccessPath
}

func (s SetterAccessPath) String() string {
	return s.Target.String() + " = " + s.Value.String()
}

// A SetterConstant is the flat domain bottom / setter access paths / top describing
// whether a method call can be inlined as a direct field write at call sites.
type SetterConstant struct {
	kind   constantKind
	setter SetterAccessPath
}

// BottomSetterConstant returns the bottom element.
func BottomSetterConstant() SetterConstant { return SetterConstant{} }

// TopSetterConstant returns the top element.
func TopSetterConstant() SetterConstant { return SetterConstant{kind: constantTop} }

// NewSetterConstant returns the constant holding the given setter paths.
func NewSetterConstant(setter SetterAccessPath) SetterConstant {
	return SetterConstant{kind: constantValue, setter: setter}
}

// IsBottom returns true for the bottom element.
func (c SetterConstant) IsBottom() bool { return c.kind == constantBottom }

// IsTop returns true for the top element.
func (c SetterConstant) IsTop() bool { return c.kind == constantTop }

// Value returns the held setter paths and true, or false when bottom or top.
func (c SetterConstant) Value() (SetterAccessPath, bool) {
	return c.setter, c.kind == constantValue
}

// Join returns the least upper bound: two different setters join to top.
func (c SetterConstant) Join(other SetterConstant) SetterConstant {
	switch {
	case c.IsBottom():
		return other
	case other.IsBottom():
		return c
	case c == other:
		return c
	default:
		return TopSetterConstant()
	}
}

// Leq returns true if c is below other in the flat order.
func (c SetterConstant) Leq(other SetterConstant) bool {
	return c.IsBottom() || other.IsTop() || c == other
}

func (c SetterConstant) String() string {
	switch c.kind {
	case constantBottom:
		return "_|_"
	case constantTop:
		return "T"
	default:
		return c.setter.String()
	}
}
