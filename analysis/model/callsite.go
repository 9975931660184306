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

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/taint"
	"github.com/awslabs/ar-taint-models/analysis/tree"
)

// Instantiate returns a copy of the model attached to the given method, revalidating
// every port against the new method's shape. It is used to stamp one generic
// configuration onto each of several concrete matching methods.
func (m *Model) Instantiate(method Method) (*Model, error) {
	c := m.Copy()
	c.method = method
	if method == nil {
		return c, nil
	}
	arity := method.Arity()
	var badPort *access.AccessPath
	for _, t := range []tree.PortTree{
		c.generations, c.parameterSources, c.sinks,
		c.callEffectSources, c.callEffectSinks, c.propagations,
	} {
		t.ForEach(func(ap access.AccessPath, _ taint.Taint) {
			if !ap.Root.ValidForArity(arity) && badPort == nil {
				bad := ap
				badPort = &bad
			}
		})
	}
	if badPort != nil {
		return nil, c.consistencyError("instantiate",
			fmt.Sprintf("port %s invalid for arity %d", badPort, arity))
	}
	return c, nil
}

// A CallArg describes one concrete argument of a call: the caller-side root holding
// the argument value, its static type, and its value when it is a constant string.
type CallArg struct {
	Root  access.Root
	Type  string
	Const string
}

// AtCallsite specializes this model, acting as the callee summary, for one concrete
// invocation inside caller at the given position. The result is an ephemeral
// contribution for the fixpoint driver to join into the caller's model, never stored
// back into the callee:
//
//   - formal argument roots are substituted with the caller-side roots of args;
//   - every frame records the call position as provenance and grows in distance;
//   - frames conditioned on a constant argument resolve against args;
//   - SkipAnalysis produces an empty contribution, and AddViaObscureFeature tags
//     generations and propagations with the via-obscure feature.
//
// Parameter sources, issues, sanitizers and attachments describe the callee itself
// and do not transfer. Freeze flags do not transfer either: the result is inferred
// data.
func (m *Model) AtCallsite(caller Method, position string, args []CallArg) *Model {
	result := EmptyModel()
	result.method = m.method
	result.modes = m.modes
	if m.SkipAnalysis() {
		return result
	}

	callerName := ""
	if caller != nil {
		callerName = caller.String()
	}
	origin := taint.Origin{Method: callerName, Position: position}
	argInfos := make([]taint.CallArgInfo, len(args))
	for i, a := range args {
		argInfos[i] = taint.CallArgInfo{Type: a.Type, Const: a.Const}
	}

	obscure := taint.Features{}
	if m.AddViaObscure() {
		obscure = taint.NewFeatures("via-obscure")
	}

	rebase := func(root access.Root) access.Root {
		if root.IsArgument() && root.Index < len(args) {
			return args[root.Index].Root
		}
		return root
	}

	m.generations.ForEach(func(ap access.AccessPath, v taint.Taint) {
		specialized := v.AtCallsite(origin, argInfos, maxCallDepth).AddFeatures(obscure)
		target := access.AccessPath{Root: rebase(ap.Root), Path: ap.Path}
		result.updateTaintTree(result.generations, target, specialized, taint.Features{})
	})
	m.sinks.ForEach(func(ap access.AccessPath, v taint.Taint) {
		specialized := v.AtCallsite(origin, argInfos, maxCallDepth)
		target := access.AccessPath{Root: rebase(ap.Root), Path: ap.Path}
		result.updateTaintTree(result.sinks, target, specialized, taint.Features{})
	})
	m.propagations.ForEach(func(ap access.AccessPath, v taint.Taint) {
		specialized := v.AtCallsite(origin, argInfos, maxCallDepth).AddFeatures(obscure)
		input := access.AccessPath{Root: rebase(ap.Root), Path: ap.Path}
		if !m.NoCollapseOnPropagation() {
			input.Path = access.PathPrefix(input.Path, 0)
		}
		result.updateTaintTree(result.propagations, input, specialized, taint.Features{})
	})
	// Call-effect sinks climb the call chain: each caller of a method with a
	// call-effect sink inherits it at one more call edge of distance.
	m.callEffectSinks.ForEach(func(ap access.AccessPath, v taint.Taint) {
		specialized := v.AtCallsite(origin, argInfos, maxCallDepth)
		result.updateTaintTree(result.callEffectSinks, ap, specialized, taint.Features{})
	})
	m.callEffectSources.ForEach(func(ap access.AccessPath, v taint.Taint) {
		specialized := v.AtCallsite(origin, argInfos, maxCallDepth)
		result.updateTaintTree(result.callEffectSources, ap, specialized, taint.Features{})
	})
	return result
}

// A FieldChecker is the narrow contract to method and type information used by
// CollapseInvalidPaths: it reports whether a path suffix can exist on the declared
// type of a port.
type FieldChecker interface {
	Exists(method Method, root access.Root, path string) bool
}

// CollapseInvalidPaths collapses tree paths naming fields that cannot exist on the
// port's declared type into the port root, tagging the moved taint so the
// over-approximation stays visible. This is a soundness cleanup, distinct from the
// complexity-driven collapsing of the inferred writes; it runs once a model is
// otherwise finalized for a fixpoint round.
func (m *Model) CollapseInvalidPaths(fields FieldChecker) {
	if fields == nil || m.method == nil {
		return
	}
	invalid := taint.NewFeatures("via-invalid-path")
	for _, t := range []tree.PortTree{
		m.generations, m.parameterSources, m.sinks, m.propagations,
	} {
		for root, sub := range t {
			if root.IsCallEffect() {
				continue
			}
			moved := taint.Bottom()
			sub.Filter(func(path string, v taint.Taint) bool {
				if path == "" || fields.Exists(m.method, root, path) {
					return true
				}
				moved.Join(v)
				return false
			})
			if !moved.IsBottom() {
				sub.WriteWeak("", moved.AddFeatures(invalid))
			}
		}
	}
}

// Approximate applies a global widening pass over all taint trees, bounding the model
// size ahead of the next fixpoint comparison and tagging newly over-approximated
// taint with the given features. The driver uses it to force termination after a
// configured number of iterations. Frozen trees are fixed and left untouched.
func (m *Model) Approximate(widening taint.Features) {
	widen := func(t tree.PortTree) {
		t.CollapseDeeperThan(maxAccessPathLength, widening)
		for root := range t {
			t.WidenPort(root, maxPortLeaves, maxAccessPathLength, widening)
		}
	}
	if !m.IsFrozen(FrozenGenerations) {
		widen(m.generations)
	}
	if !m.IsFrozen(FrozenParameterSources) {
		widen(m.parameterSources)
	}
	if !m.IsFrozen(FrozenSinks) {
		widen(m.sinks)
	}
	if !m.IsFrozen(FrozenPropagations) {
		widen(m.propagations)
	}
	widen(m.callEffectSources)
	widen(m.callEffectSinks)
}

// RemoveKinds prunes the listed taint kinds from every tree and every sanitizer
// entry. A tree entry whose taint becomes bottom is dropped entirely, reverting its
// port to absent.
func (m *Model) RemoveKinds(kinds map[taint.Kind]bool) {
	if len(kinds) == 0 {
		return
	}
	m.generations.RemoveKinds(kinds)
	m.parameterSources.RemoveKinds(kinds)
	m.sinks.RemoveKinds(kinds)
	m.callEffectSources.RemoveKinds(kinds)
	m.callEffectSinks.RemoveKinds(kinds)
	m.propagations.RemoveKinds(kinds)
	m.globalSanitizers.RemoveKinds(kinds)
	m.portSanitizers.Prune(func(s taint.SanitizerSet) taint.SanitizerSet {
		c := s.Copy()
		c.RemoveKinds(kinds)
		return c
	})
}
