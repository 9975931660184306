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
	"github.com/awslabs/ar-taint-models/analysis/taint"
	"github.com/awslabs/ar-taint-models/analysis/tree"
)

// The widening limits bound the size of the taint trees. They do not affect
// soundness, only precision, and should only be changed before an analysis run.
var (
	// maxAccessPathLength bounds the length of the path suffix under a root.
	maxAccessPathLength = 3

	// maxPortLeaves bounds the number of distinct paths holding taint under one
	// root; beyond it, paths are collapsed into an ancestor.
	maxPortLeaves = 30

	// maxCallDepth bounds the distance of frames propagated across call sites.
	// Zero disables the bound.
	maxCallDepth = 20
)

// SetMaxAccessPathLength sets the maximum access path length for field sensitivity.
func SetMaxAccessPathLength(n int) { maxAccessPathLength = n }

// SetMaxPortLeaves sets the widening threshold for the number of paths per port.
func SetMaxPortLeaves(n int) { maxPortLeaves = n }

// SetMaxCallDepth sets the maximum frame distance propagated across call sites.
func SetMaxCallDepth(n int) { maxCallDepth = n }

// MaxAccessPathLength returns the configured maximum access path length.
func MaxAccessPathLength() int { return maxAccessPathLength }

// ApplySourceSinkSanitizers filters the taint value by the model's global sanitizers
// and the port-specific sanitizers for root, for the given scope. It returns the
// filtered value, bottom if fully sanitized.
func (m *Model) ApplySourceSinkSanitizers(scope taint.SanitizerScope, v taint.Taint, root access.Root) taint.Taint {
	result := m.globalSanitizers.Sanitize(scope, v)
	if result.IsBottom() {
		return result
	}
	return m.portSanitizers.Get(root).Sanitize(scope, result)
}

// HasGlobalPropagationSanitizer returns true if a global sanitizer blocks all
// propagation through the method.
func (m *Model) HasGlobalPropagationSanitizer() bool {
	return m.globalSanitizers.SanitizesAll(taint.SanitizePropagations)
}

// updateTaintTree is the shared write routine for inferred data: it truncates the
// port path to the configured depth, joins the taint in, and collapses the subtree
// under the port when it exceeds the leaf bound, tagging collapsed taint with the
// widening features.
func (m *Model) updateTaintTree(t tree.PortTree, port access.AccessPath, v taint.Taint, widening taint.Features) {
	if v.IsBottom() {
		return
	}
	truncated := port
	if access.PathLen(port.Path) > maxAccessPathLength {
		truncated.Path = access.PathPrefix(port.Path, maxAccessPathLength)
		v = v.Copy().AddFeatures(widening)
	}
	t.WriteWeak(truncated, v)
	t.WidenPort(port.Root, maxPortLeaves, maxAccessPathLength, widening)
}

// AddInferredGenerations merges a fixpoint-computed generation contribution for the
// port, after applying the model's sanitizers. A no-op if generations are frozen.
func (m *Model) AddInferredGenerations(port access.AccessPath, v taint.Taint, widening taint.Features) error {
	if err := m.checkSignaturePort("inferred generation", port); err != nil {
		return err
	}
	if m.IsFrozen(FrozenGenerations) {
		return nil
	}
	sanitized := m.ApplySourceSinkSanitizers(taint.SanitizeSources, v, port.Root)
	m.updateTaintTree(m.generations, port, sanitized, widening)
	return nil
}

// AddInferredSinks merges a fixpoint-computed sink contribution for the port, after
// applying the model's sanitizers. A no-op if sinks are frozen.
func (m *Model) AddInferredSinks(port access.AccessPath, v taint.Taint, widening taint.Features) error {
	if err := m.checkSignaturePort("inferred sink", port); err != nil {
		return err
	}
	if m.IsFrozen(FrozenSinks) {
		return nil
	}
	sanitized := m.ApplySourceSinkSanitizers(taint.SanitizeSinks, v, port.Root)
	m.updateTaintTree(m.sinks, port, sanitized, widening)
	return nil
}

// AddInferredCallEffectSinks merges a fixpoint-computed call-effect sink
// contribution. A no-op if sinks are frozen.
func (m *Model) AddInferredCallEffectSinks(port access.AccessPath, v taint.Taint, widening taint.Features) error {
	if !port.Root.IsCallEffect() {
		return m.consistencyError("inferred call-effect sink",
			"port "+port.String()+" is not a call-effect port")
	}
	if m.IsFrozen(FrozenSinks) {
		return nil
	}
	sanitized := m.ApplySourceSinkSanitizers(taint.SanitizeSinks, v, port.Root)
	m.updateTaintTree(m.callEffectSinks, port, sanitized, widening)
	return nil
}

// AddInferredPropagations merges a fixpoint-computed propagation contribution for the
// input path. A no-op if propagations are frozen or a global sanitizer blocks all
// propagation.
func (m *Model) AddInferredPropagations(input access.AccessPath, v taint.Taint, widening taint.Features) error {
	if !input.Root.IsArgument() {
		return m.consistencyError("inferred propagation",
			"input "+input.String()+" is not an argument")
	}
	if err := m.checkPort("inferred propagation", input); err != nil {
		return err
	}
	if m.IsFrozen(FrozenPropagations) || m.HasGlobalPropagationSanitizer() {
		return nil
	}
	sanitized := m.portSanitizers.Get(input.Root).Sanitize(taint.SanitizePropagations, v)
	m.updateTaintTree(m.propagations, input, sanitized, widening)
	return nil
}
