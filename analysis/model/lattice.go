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
	"fmt"

	"github.com/awslabs/ar-taint-models/analysis/tree"
	"github.com/awslabs/ar-taint-models/internal/funcutil"
	"golang.org/x/exp/maps"
)

// sameMethod returns true if the two models are for the same method (or both are
// templates).
func sameMethod(a, b *Model) bool {
	switch {
	case a.method == nil && b.method == nil:
		return true
	case a.method == nil || b.method == nil:
		return false
	default:
		return a.method.String() == b.method.String()
	}
}

// leqFrozen compares one freezable component: frozen components are fixed, not
// subject to approximation, so they compare for exact equality. Models with
// mismatched frozen values are incomparable.
func leqFrozen[T any](frozen bool, a, b T, leq func(a, b T) bool, equal func(a, b T) bool) bool {
	if frozen {
		return equal(a, b)
	}
	return leq(a, b)
}

// Leq returns true if m is pointwise below other: every non-frozen component below
// the corresponding component under that component's own order, frozen components
// exactly equal, and m's modes a subset of other's. Models for different methods or
// with different freeze flags are incomparable.
func (m *Model) Leq(other *Model) bool {
	if !sameMethod(m, other) {
		return false
	}
	if m.frozen != other.frozen {
		return false
	}
	if !m.modes.SubsetOf(other.modes) {
		return false
	}
	return leqFrozen(m.IsFrozen(FrozenGenerations), m.generations, other.generations,
		(tree.PortTree).Leq, (tree.PortTree).Equal) &&
		leqFrozen(m.IsFrozen(FrozenParameterSources), m.parameterSources, other.parameterSources,
			(tree.PortTree).Leq, (tree.PortTree).Equal) &&
		leqFrozen(m.IsFrozen(FrozenSinks), m.sinks, other.sinks,
			(tree.PortTree).Leq, (tree.PortTree).Equal) &&
		leqFrozen(m.IsFrozen(FrozenPropagations), m.propagations, other.propagations,
			(tree.PortTree).Leq, (tree.PortTree).Equal) &&
		m.callEffectSources.Leq(other.callEffectSources) &&
		m.callEffectSinks.Leq(other.callEffectSinks) &&
		m.globalSanitizers.Leq(other.globalSanitizers) &&
		m.portSanitizers.Leq(other.portSanitizers) &&
		m.attachToSources.Leq(other.attachToSources) &&
		m.attachToSinks.Leq(other.attachToSinks) &&
		m.attachToPropagations.Leq(other.attachToPropagations) &&
		m.addFeaturesToArguments.Leq(other.addFeaturesToArguments) &&
		m.inlineAsGetter.Leq(other.inlineAsGetter) &&
		m.inlineAsSetter.Leq(other.inlineAsSetter) &&
		setLeq(m.modelGenerators, other.modelGenerators) &&
		m.issues.Leq(other.issues)
}

// JoinWith mutates m to the least upper bound of m and other. Frozen components of m
// are left untouched regardless of other, and freeze flags never toggle. Joining
// models for different methods, or across frozen components that genuinely disagree,
// is a caller error reported as ErrLatticeMisuse.
func (m *Model) JoinWith(other *Model) error {
	if !sameMethod(m, other) {
		return fmt.Errorf("%w: joining models for different methods (%v and %v)",
			ErrLatticeMisuse, m.method, other.method)
	}
	for _, kind := range AllFreezeKinds {
		if m.IsFrozen(kind) && other.IsFrozen(kind) {
			if !m.freezableTree(kind).Equal(other.freezableTree(kind)) {
				return fmt.Errorf("%w: frozen %s disagree", ErrLatticeMisuse, kind)
			}
		}
	}

	m.modes |= other.modes
	if !m.IsFrozen(FrozenGenerations) {
		m.generations.Join(other.generations)
	}
	if !m.IsFrozen(FrozenParameterSources) {
		m.parameterSources.Join(other.parameterSources)
	}
	if !m.IsFrozen(FrozenSinks) {
		m.sinks.Join(other.sinks)
	}
	if !m.IsFrozen(FrozenPropagations) {
		m.propagations.Join(other.propagations)
	}
	m.callEffectSources.Join(other.callEffectSources)
	m.callEffectSinks.Join(other.callEffectSinks)
	m.globalSanitizers.Join(other.globalSanitizers)
	m.portSanitizers.Join(other.portSanitizers)
	m.attachToSources.Join(other.attachToSources)
	m.attachToSinks.Join(other.attachToSinks)
	m.attachToPropagations.Join(other.attachToPropagations)
	m.addFeaturesToArguments.Join(other.addFeaturesToArguments)
	m.inlineAsGetter = m.inlineAsGetter.Join(other.inlineAsGetter)
	m.inlineAsSetter = m.inlineAsSetter.Join(other.inlineAsSetter)
	funcutil.Union(m.modelGenerators, other.modelGenerators)
	m.issues.Join(other.issues)
	return nil
}

// freezableTree returns the tree pinned by the given freeze flag.
func (m *Model) freezableTree(kind FreezeKind) tree.PortTree {
	switch kind {
	case FrozenGenerations:
		return m.generations
	case FrozenParameterSources:
		return m.parameterSources
	case FrozenSinks:
		return m.sinks
	case FrozenPropagations:
		return m.propagations
	default:
		return nil
	}
}

// Equal compares all components structurally. It is used in tests and to detect
// fixpoint stabilization.
func (m *Model) Equal(other *Model) bool {
	return sameMethod(m, other) &&
		m.modes == other.modes &&
		m.frozen == other.frozen &&
		m.generations.Equal(other.generations) &&
		m.parameterSources.Equal(other.parameterSources) &&
		m.sinks.Equal(other.sinks) &&
		m.callEffectSources.Equal(other.callEffectSources) &&
		m.callEffectSinks.Equal(other.callEffectSinks) &&
		m.propagations.Equal(other.propagations) &&
		m.globalSanitizers.Equal(other.globalSanitizers) &&
		m.portSanitizers.Equal(other.portSanitizers) &&
		m.attachToSources.Equal(other.attachToSources) &&
		m.attachToSinks.Equal(other.attachToSinks) &&
		m.attachToPropagations.Equal(other.attachToPropagations) &&
		m.addFeaturesToArguments.Equal(other.addFeaturesToArguments) &&
		m.inlineAsGetter == other.inlineAsGetter &&
		m.inlineAsSetter == other.inlineAsSetter &&
		maps.Equal(m.modelGenerators, other.modelGenerators) &&
		m.issues.Equal(other.issues)
}

// Empty returns true if every component of the model is bottom and no flag is set.
func (m *Model) Empty() bool {
	return m.modes == Normal &&
		m.frozen == FrozenNone &&
		m.generations.IsBottom() &&
		m.parameterSources.IsBottom() &&
		m.sinks.IsBottom() &&
		m.callEffectSources.IsBottom() &&
		m.callEffectSinks.IsBottom() &&
		m.propagations.IsBottom() &&
		m.globalSanitizers.IsBottom() &&
		m.portSanitizers.IsBottom() &&
		m.attachToSources.IsBottom() &&
		m.attachToSinks.IsBottom() &&
		m.attachToPropagations.IsBottom() &&
		m.addFeaturesToArguments.IsBottom() &&
		m.inlineAsGetter.IsBottom() &&
		m.inlineAsSetter.IsBottom() &&
		len(m.modelGenerators) == 0 &&
		m.issues.IsBottom()
}

// Copy returns a deep copy of the model.
func (m *Model) Copy() *Model {
	c := EmptyModel()
	c.method = m.method
	c.modes = m.modes
	c.frozen = m.frozen
	c.generations = m.generations.Copy()
	c.parameterSources = m.parameterSources.Copy()
	c.sinks = m.sinks.Copy()
	c.callEffectSources = m.callEffectSources.Copy()
	c.callEffectSinks = m.callEffectSinks.Copy()
	c.propagations = m.propagations.Copy()
	c.globalSanitizers = m.globalSanitizers.Copy()
	c.portSanitizers = m.portSanitizers.Copy()
	c.attachToSources = m.attachToSources.Copy()
	c.attachToSinks = m.attachToSinks.Copy()
	c.attachToPropagations = m.attachToPropagations.Copy()
	c.addFeaturesToArguments = m.addFeaturesToArguments.Copy()
	c.inlineAsGetter = m.inlineAsGetter
	c.inlineAsSetter = m.inlineAsSetter
	c.modelGenerators = maps.Clone(m.modelGenerators)
	c.issues = m.issues.Copy()
	return c
}

// InitialModelForIteration returns a fresh model without sources, sinks or
// propagations based on the structure of the current model: modes, freeze flags and
// the contents of frozen components, sanitizers, feature attachments, inlining
// domains and generator provenance are retained. The fixpoint driver re-derives each
// method's summary starting from this model.
func (m *Model) InitialModelForIteration() *Model {
	c := m.Copy()
	if !c.IsFrozen(FrozenGenerations) {
		c.generations = tree.NewPortTree()
	}
	if !c.IsFrozen(FrozenParameterSources) {
		c.parameterSources = tree.NewPortTree()
	}
	if !c.IsFrozen(FrozenSinks) {
		c.sinks = tree.NewPortTree()
	}
	if !c.IsFrozen(FrozenPropagations) {
		c.propagations = tree.NewPortTree()
	}
	c.callEffectSources = tree.NewPortTree()
	c.callEffectSinks = tree.NewPortTree()
	c.issues = IssueSet{}
	return c
}

func setLeq(a, b map[string]bool) bool {
	for x := range a {
		if !b[x] {
			return false
		}
	}
	return true
}
