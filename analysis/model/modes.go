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

import "fmt"

// A Mode is a bit-set of independent behavior flags of a model. Flags combine with
// bitwise OR and, once set by any contributing source, stay set across joins.
type Mode uint

const (
	// SkipAnalysis skips the analysis of the method entirely.
	SkipAnalysis Mode = 1 << iota

	// AddViaObscureFeature tags flows through this method with the "via-obscure"
	// feature, used when the method body is unknown.
	AddViaObscureFeature

	// TaintInTaintOut treats taint on any argument as flowing to the return value.
	TaintInTaintOut

	// TaintInTaintThis treats taint on any argument as flowing to the receiver.
	TaintInTaintThis

	// NoJoinVirtualOverrides treats this model as the sole applicable summary at
	// virtual call sites instead of joining sibling overrides.
	NoJoinVirtualOverrides

	// NoCollapseOnPropagation suppresses input path collapsing when applying
	// propagations.
	NoCollapseOnPropagation

	// AliasMemoryLocationOnInvoke aliases existing memory locations across
	// invocation edges.
	AliasMemoryLocationOnInvoke

	// StrongWriteOnPropagation applies propagations with overwriting (strong) write
	// semantics instead of joining (weak) semantics.
	StrongWriteOnPropagation

	// Normal is the all-zero default mode.
	Normal Mode = 0
)

// AllModes lists every mode flag, in serialization order.
var AllModes = []Mode{
	SkipAnalysis,
	AddViaObscureFeature,
	TaintInTaintOut,
	TaintInTaintThis,
	NoJoinVirtualOverrides,
	NoCollapseOnPropagation,
	AliasMemoryLocationOnInvoke,
	StrongWriteOnPropagation,
}

// Has returns true if every flag in flag is set in m.
func (m Mode) Has(flag Mode) bool { return m&flag == flag }

// SubsetOf returns true if every flag set in m is also set in other.
func (m Mode) SubsetOf(other Mode) bool { return m&^other == 0 }

func (m Mode) String() string {
	switch m {
	case SkipAnalysis:
		return "skip-analysis"
	case AddViaObscureFeature:
		return "add-via-obscure-feature"
	case TaintInTaintOut:
		return "taint-in-taint-out"
	case TaintInTaintThis:
		return "taint-in-taint-this"
	case NoJoinVirtualOverrides:
		return "no-join-virtual-overrides"
	case NoCollapseOnPropagation:
		return "no-collapse-on-propagation"
	case AliasMemoryLocationOnInvoke:
		return "alias-memory-location-on-invoke"
	case StrongWriteOnPropagation:
		return "strong-write-on-propagation"
	case Normal:
		return "normal"
	default:
		return fmt.Sprintf("modes(%#x)", uint(m))
	}
}

// ParseMode parses the name of a single mode flag.
func ParseMode(s string) (Mode, error) {
	for _, m := range AllModes {
		if m.String() == s {
			return m, nil
		}
	}
	return Normal, fmt.Errorf("invalid mode %q", s)
}

// Names returns the names of the flags set in m, in serialization order.
func (m Mode) Names() []string {
	var names []string
	for _, flag := range AllModes {
		if m.Has(flag) {
			names = append(names, flag.String())
		}
	}
	return names
}

// A FreezeKind is a bit-set marking which inferable components of a model are pinned.
// A frozen component is authoritative: it is immune to inference and to contributions
// from joins.
type FreezeKind uint

const (
	// FrozenGenerations pins the generations tree.
	FrozenGenerations FreezeKind = 1 << iota

	// FrozenParameterSources pins the parameter sources tree.
	FrozenParameterSources

	// FrozenSinks pins the sinks tree.
	FrozenSinks

	// FrozenPropagations pins the propagations tree.
	FrozenPropagations

	// FrozenNone is the all-zero default.
	FrozenNone FreezeKind = 0
)

// AllFreezeKinds lists every freeze flag, in serialization order.
var AllFreezeKinds = []FreezeKind{
	FrozenGenerations,
	FrozenParameterSources,
	FrozenSinks,
	FrozenPropagations,
}

// Has returns true if every flag in flag is set in f.
func (f FreezeKind) Has(flag FreezeKind) bool { return f&flag == flag }

func (f FreezeKind) String() string {
	switch f {
	case FrozenGenerations:
		return "generations"
	case FrozenParameterSources:
		return "parameter_sources"
	case FrozenSinks:
		return "sinks"
	case FrozenPropagations:
		return "propagations"
	case FrozenNone:
		return "none"
	default:
		return fmt.Sprintf("frozen(%#x)", uint(f))
	}
}

// ParseFreezeKind parses the name of a single freeze flag.
func ParseFreezeKind(s string) (FreezeKind, error) {
	for _, f := range AllFreezeKinds {
		if f.String() == s {
			return f, nil
		}
	}
	return FrozenNone, fmt.Errorf("invalid freeze kind %q", s)
}

// Names returns the names of the flags set in f, in serialization order.
func (f FreezeKind) Names() []string {
	var names []string
	for _, flag := range AllFreezeKinds {
		if f.Has(flag) {
			names = append(names, flag.String())
		}
	}
	return names
}
