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

// Package model implements the per-method taint summary at the center of the
// interprocedural analysis. A Model records which positions of a method are taint
// sources or sinks, how taint propagates between its parameters and its return value,
// and the behavior flags that steer the analysis. Models form a lattice: the fixpoint
// driver specializes callee models per call site and joins them into caller models
// until the summaries stabilize.
package model

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/taint"
	"github.com/awslabs/ar-taint-models/analysis/tree"
	"github.com/awslabs/ar-taint-models/internal/funcutil"
)

// A Method is the narrow contract the model needs from the method registry: a unique
// descriptor, the number of parameters (receiver included) and a source position.
type Method interface {
	String() string
	Arity() int
	Position() string
}

// A Propagation describes taint flow through a method: taint on the input access path
// flows to the output access path, picking up the given features.
type Propagation struct {
	Input    access.AccessPath
	Output   access.AccessPath
	Features taint.Features

	// Distance and Origins carry the call-edge provenance of an inferred
	// propagation; both are zero for hand-authored rules.
	Distance int
	Origins  []taint.Origin
}

// propagationTaint encodes a propagation output as a taint frame whose kind is the
// output access path. The propagations tree is keyed by input path, so one input may
// map to several outputs.
func propagationTaint(p Propagation) taint.Taint {
	frame := taint.NewFrame(taint.Kind(p.Output.String()))
	frame.Features = p.Features.Copy()
	frame.Distance = p.Distance
	frame.Origins = append([]taint.Origin{}, p.Origins...)
	return taint.NewTaint(frame)
}

// A PortTaint pairs an access path with an initial taint value, used in ModelInit.
type PortTaint struct {
	Port  access.AccessPath
	Taint taint.Taint
}

// A PortSanitizers pairs a root with sanitizers applying to that port only.
type PortSanitizers struct {
	Root       access.Root
	Sanitizers taint.SanitizerSet
}

// A PortFeatures pairs a root with features to attach at that port.
type PortFeatures struct {
	Root     access.Root
	Features taint.Features
}

// ModelInit carries the initial components of a model under construction.
type ModelInit struct {
	Modes                  Mode
	Frozen                 FreezeKind
	Generations            []PortTaint
	ParameterSources       []PortTaint
	Sinks                  []PortTaint
	CallEffectSources      []PortTaint
	CallEffectSinks        []PortTaint
	Propagations           []Propagation
	GlobalSanitizers       []taint.Sanitizer
	PortSanitizers         []PortSanitizers
	AttachToSources        []PortFeatures
	AttachToSinks          []PortFeatures
	AttachToPropagations   []PortFeatures
	AddFeaturesToArguments []PortFeatures
	InlineAsGetter         AccessPathConstant
	InlineAsSetter         SetterConstant
	ModelGenerators        []string
	Issues                 []Issue
}

// A Model is the summary of what the analysis knows about one method. The zero value
// is not usable; use EmptyModel or NewModel.
type Model struct {
	// method is nil for a template model not yet bound to a method. It is only
	// reassigned by Instantiate, which returns a new model.
	method Method

	modes  Mode
	frozen FreezeKind

	generations       tree.PortTree
	parameterSources  tree.PortTree
	sinks             tree.PortTree
	callEffectSources tree.PortTree
	callEffectSinks   tree.PortTree
	propagations      tree.PortTree

	globalSanitizers taint.SanitizerSet
	portSanitizers   tree.Partition[taint.SanitizerSet]

	attachToSources        tree.Partition[taint.Features]
	attachToSinks          tree.Partition[taint.Features]
	attachToPropagations   tree.Partition[taint.Features]
	addFeaturesToArguments tree.Partition[taint.Features]

	inlineAsGetter AccessPathConstant
	inlineAsSetter SetterConstant

	modelGenerators map[string]bool
	issues          IssueSet
}

// EmptyModel returns the all-bottom model with no method and no flags. It is the
// identity for JoinWith and is Leq every model.
func EmptyModel() *Model {
	return &Model{
		generations:            tree.NewPortTree(),
		parameterSources:       tree.NewPortTree(),
		sinks:                  tree.NewPortTree(),
		callEffectSources:      tree.NewPortTree(),
		callEffectSinks:        tree.NewPortTree(),
		propagations:           tree.NewPortTree(),
		globalSanitizers:       taint.NewSanitizerSet(),
		portSanitizers:         tree.NewPartition(func() taint.SanitizerSet { return taint.NewSanitizerSet() }),
		attachToSources:        tree.NewPartition(newFeatures),
		attachToSinks:          tree.NewPartition(newFeatures),
		attachToPropagations:   tree.NewPartition(newFeatures),
		addFeaturesToArguments: tree.NewPartition(newFeatures),
		modelGenerators:        map[string]bool{},
		issues:                 IssueSet{},
	}
}

func newFeatures() taint.Features { return taint.Features{} }

// NewModel builds a model for the given method from the initial components, checking
// every port-bearing input against the method's shape. A nil method produces a
// template model whose ports are validated when it is instantiated. A failing check
// returns an error wrapping ErrConsistency; no partially-valid model is produced.
func NewModel(method Method, init ModelInit) (*Model, error) {
	m := EmptyModel()
	m.method = method
	m.frozen = init.Frozen

	for _, g := range init.Generations {
		if err := m.AddGeneration(g.Port, g.Taint); err != nil {
			return nil, err
		}
	}
	for _, p := range init.ParameterSources {
		if err := m.AddParameterSource(p.Port, p.Taint); err != nil {
			return nil, err
		}
	}
	for _, s := range init.Sinks {
		if err := m.AddSink(s.Port, s.Taint); err != nil {
			return nil, err
		}
	}
	for _, s := range init.CallEffectSources {
		if err := m.AddCallEffectSource(s.Port, s.Taint); err != nil {
			return nil, err
		}
	}
	for _, s := range init.CallEffectSinks {
		if err := m.AddCallEffectSink(s.Port, s.Taint); err != nil {
			return nil, err
		}
	}
	for _, p := range init.Propagations {
		if err := m.AddPropagation(p); err != nil {
			return nil, err
		}
	}
	for _, s := range init.GlobalSanitizers {
		m.AddGlobalSanitizer(s)
	}
	for _, ps := range init.PortSanitizers {
		if err := m.AddPortSanitizers(ps.Root, ps.Sanitizers); err != nil {
			return nil, err
		}
	}
	for _, pf := range init.AttachToSources {
		if err := m.AddAttachToSources(pf.Root, pf.Features); err != nil {
			return nil, err
		}
	}
	for _, pf := range init.AttachToSinks {
		if err := m.AddAttachToSinks(pf.Root, pf.Features); err != nil {
			return nil, err
		}
	}
	for _, pf := range init.AttachToPropagations {
		if err := m.AddAttachToPropagations(pf.Root, pf.Features); err != nil {
			return nil, err
		}
	}
	for _, pf := range init.AddFeaturesToArguments {
		if err := m.AddAddFeaturesToArguments(pf.Root, pf.Features); err != nil {
			return nil, err
		}
	}
	if err := m.SetInlineAsGetter(init.InlineAsGetter); err != nil {
		return nil, err
	}
	if err := m.SetInlineAsSetter(init.InlineAsSetter); err != nil {
		return nil, err
	}
	for _, g := range init.ModelGenerators {
		m.AddModelGenerator(g)
	}
	for _, issue := range init.Issues {
		m.AddIssue(issue)
	}
	// AddMode last: taint-in-taint-out installs propagations that must not be
	// re-checked against user inputs.
	m.AddMode(init.Modes)
	return m, nil
}

// Method returns the method the model is attached to, or nil for a template.
func (m *Model) Method() Method { return m.method }

// Modes returns the mode flags of the model.
func (m *Model) Modes() Mode { return m.modes }

// Frozen returns the freeze flags of the model.
func (m *Model) Frozen() FreezeKind { return m.frozen }

// IsFrozen returns true if the given component is pinned.
func (m *Model) IsFrozen(kind FreezeKind) bool { return m.frozen.Has(kind) }

// Freeze pins the given components.
func (m *Model) Freeze(kind FreezeKind) { m.frozen |= kind }

// SkipAnalysis returns true if the method must not be analyzed.
func (m *Model) SkipAnalysis() bool { return m.modes.Has(SkipAnalysis) }

// AddViaObscure returns true if flows through the method are tagged via-obscure.
func (m *Model) AddViaObscure() bool { return m.modes.Has(AddViaObscureFeature) }

// IsTaintInTaintOut returns true if tainted arguments flow to the return value.
func (m *Model) IsTaintInTaintOut() bool { return m.modes.Has(TaintInTaintOut) }

// IsTaintInTaintThis returns true if tainted arguments flow to the receiver.
func (m *Model) IsTaintInTaintThis() bool { return m.modes.Has(TaintInTaintThis) }

// NoJoinVirtualOverrides returns true if this model is the sole applicable summary at
// virtual call sites.
func (m *Model) NoJoinVirtualOverrides() bool { return m.modes.Has(NoJoinVirtualOverrides) }

// NoCollapseOnPropagation returns true if input paths are preserved when applying
// propagations.
func (m *Model) NoCollapseOnPropagation() bool { return m.modes.Has(NoCollapseOnPropagation) }

// AliasMemoryLocationOnInvoke returns true if memory locations are aliased across
// invocation edges.
func (m *Model) AliasMemoryLocationOnInvoke() bool {
	return m.modes.Has(AliasMemoryLocationOnInvoke)
}

// StrongWriteOnPropagation returns true if propagations apply with strong write
// semantics.
func (m *Model) StrongWriteOnPropagation() bool { return m.modes.Has(StrongWriteOnPropagation) }

// Generations returns the generations tree. The caller must not mutate it.
func (m *Model) Generations() tree.PortTree { return m.generations }

// ParameterSources returns the parameter sources tree. The caller must not mutate it.
func (m *Model) ParameterSources() tree.PortTree { return m.parameterSources }

// Sinks returns the sinks tree. The caller must not mutate it.
func (m *Model) Sinks() tree.PortTree { return m.sinks }

// CallEffectSources returns the call-effect sources tree.
func (m *Model) CallEffectSources() tree.PortTree { return m.callEffectSources }

// CallEffectSinks returns the call-effect sinks tree.
func (m *Model) CallEffectSinks() tree.PortTree { return m.callEffectSinks }

// Propagations returns the propagations tree, keyed by input access path. The frames
// of each entry name the output access paths as kinds.
func (m *Model) Propagations() tree.PortTree { return m.propagations }

// GlobalSanitizers returns the sanitizers applying to every port.
func (m *Model) GlobalSanitizers() taint.SanitizerSet { return m.globalSanitizers }

// Issues returns the issues recorded on the model.
func (m *Model) Issues() IssueSet { return m.issues }

// ModelGenerators returns the names of the rule generators that contributed to the
// model, sorted.
func (m *Model) ModelGenerators() []string {
	return funcutil.SetToOrderedSlice(m.modelGenerators)
}

// InlineAsGetter returns the getter-inlining domain value.
func (m *Model) InlineAsGetter() AccessPathConstant { return m.inlineAsGetter }

// InlineAsSetter returns the setter-inlining domain value.
func (m *Model) InlineAsSetter() SetterConstant { return m.inlineAsSetter }

// consistencyError builds an ErrConsistency-wrapped error naming the offending
// component and port.
func (m *Model) consistencyError(component string, detail string) error {
	method := "<template>"
	if m.method != nil {
		method = m.method.String()
	}
	return fmt.Errorf("%w: %s of %s: %s", ErrConsistency, component, method, detail)
}

// checkRoot verifies that the root names a position that exists on the method.
// Template models defer the check to instantiation.
func (m *Model) checkRoot(component string, root access.Root) error {
	if m.method == nil {
		return nil
	}
	if !root.ValidForArity(m.method.Arity()) {
		return m.consistencyError(component,
			fmt.Sprintf("root %s invalid for arity %d", root, m.method.Arity()))
	}
	return nil
}

// checkPort verifies the root and the well-formedness of the path suffix.
func (m *Model) checkPort(component string, port access.AccessPath) error {
	if err := m.checkRoot(component, port.Root); err != nil {
		return err
	}
	if err := access.CheckPath(port.Path); err != nil {
		return m.consistencyError(component, err.Error())
	}
	return nil
}

// checkSignaturePort additionally rejects call-effect roots, which are only legal in
// the call-effect trees.
func (m *Model) checkSignaturePort(component string, port access.AccessPath) error {
	if port.Root.IsCallEffect() {
		return m.consistencyError(component,
			fmt.Sprintf("call-effect port %s not allowed", port))
	}
	return m.checkPort(component, port)
}

// AddGeneration inserts a (port, taint) pair into the generations tree without
// applying sanitizers. Hand-authored and generator-sourced configuration is expected
// to already account for sanitization.
func (m *Model) AddGeneration(port access.AccessPath, v taint.Taint) error {
	if err := m.checkSignaturePort("generation", port); err != nil {
		return err
	}
	m.generations.WriteWeak(port, v)
	return nil
}

// AddParameterSource inserts a parameter source. The port must be an argument or
// receiver port.
func (m *Model) AddParameterSource(port access.AccessPath, v taint.Taint) error {
	if !port.Root.IsArgument() {
		return m.consistencyError("parameter source",
			fmt.Sprintf("port %s is not an argument", port))
	}
	if err := m.checkPort("parameter source", port); err != nil {
		return err
	}
	m.parameterSources.WriteWeak(port, v)
	return nil
}

// AddSink inserts a (port, taint) pair into the sinks tree without applying
// sanitizers.
func (m *Model) AddSink(port access.AccessPath, v taint.Taint) error {
	if err := m.checkSignaturePort("sink", port); err != nil {
		return err
	}
	m.sinks.WriteWeak(port, v)
	return nil
}

// AddCallEffectSource inserts a call-effect source. The port must be a call-effect
// port.
func (m *Model) AddCallEffectSource(port access.AccessPath, v taint.Taint) error {
	if !port.Root.IsCallEffect() {
		return m.consistencyError("call-effect source",
			fmt.Sprintf("port %s is not a call-effect port", port))
	}
	if err := access.CheckPath(port.Path); err != nil {
		return m.consistencyError("call-effect source", err.Error())
	}
	m.callEffectSources.WriteWeak(port, v)
	return nil
}

// AddCallEffectSink inserts a call-effect sink. The port must be a call-effect port.
func (m *Model) AddCallEffectSink(port access.AccessPath, v taint.Taint) error {
	if !port.Root.IsCallEffect() {
		return m.consistencyError("call-effect sink",
			fmt.Sprintf("port %s is not a call-effect port", port))
	}
	if err := access.CheckPath(port.Path); err != nil {
		return m.consistencyError("call-effect sink", err.Error())
	}
	m.callEffectSinks.WriteWeak(port, v)
	return nil
}

// AddPropagation inserts a propagation. The input must be an argument port and the
// output a return or argument port.
func (m *Model) AddPropagation(p Propagation) error {
	if !p.Input.Root.IsArgument() {
		return m.consistencyError("propagation",
			fmt.Sprintf("input %s is not an argument", p.Input))
	}
	if err := m.checkPort("propagation", p.Input); err != nil {
		return err
	}
	if p.Output.Root.IsCallEffect() {
		return m.consistencyError("propagation",
			fmt.Sprintf("output %s is not a signature port", p.Output))
	}
	if err := m.checkPort("propagation", p.Output); err != nil {
		return err
	}
	m.propagations.WriteWeak(p.Input, propagationTaint(p))
	return nil
}

// AddMode ORs mode flags into the model. Enabling taint-in-taint-out or
// taint-in-taint-this also installs the corresponding argument-to-output
// propagations when the method is known.
func (m *Model) AddMode(mode Mode) {
	m.modes |= mode
	if mode.Has(TaintInTaintOut) {
		m.addArgumentPropagations(access.ReturnRoot(), 0)
	}
	if mode.Has(TaintInTaintThis) {
		m.addArgumentPropagations(access.ArgumentRoot(0), 1)
	}
}

// addArgumentPropagations installs a propagation from every argument at or above
// firstArg to the output root.
func (m *Model) addArgumentPropagations(output access.Root, firstArg int) {
	if m.method == nil {
		return
	}
	features := taint.Features{}
	if m.AddViaObscure() {
		features = taint.NewFeatures("via-obscure")
	}
	outputKind := taint.Kind(access.NewAccessPath(output).String())
	for i := firstArg; i < m.method.Arity(); i++ {
		if output.IsArgument() && output.Index == i {
			continue
		}
		input := access.NewAccessPath(access.ArgumentRoot(i))
		// Do not disturb an equivalent propagation already present, e.g. one
		// parsed back from a previous export.
		if _, ok := m.propagations.TaintAt(input)[outputKind]; ok {
			continue
		}
		m.propagations.WriteWeak(input, propagationTaint(Propagation{
			Input:    input,
			Output:   access.NewAccessPath(output),
			Features: features,
		}))
	}
}

// AddGlobalSanitizer adds a sanitizer applying to every port.
func (m *Model) AddGlobalSanitizer(s taint.Sanitizer) {
	m.globalSanitizers.Add(s)
}

// AddPortSanitizers joins sanitizers into the set for the given port.
func (m *Model) AddPortSanitizers(root access.Root, s taint.SanitizerSet) error {
	if err := m.checkRoot("port sanitizers", root); err != nil {
		return err
	}
	m.portSanitizers.Update(root, s)
	return nil
}

// AddAttachToSources joins features to attach to sources flowing out of the port.
func (m *Model) AddAttachToSources(root access.Root, features taint.Features) error {
	if err := m.checkRoot("attach to sources", root); err != nil {
		return err
	}
	m.attachToSources.Update(root, features)
	return nil
}

// AddAttachToSinks joins features to attach to sinks flowing into the port.
func (m *Model) AddAttachToSinks(root access.Root, features taint.Features) error {
	if err := m.checkRoot("attach to sinks", root); err != nil {
		return err
	}
	m.attachToSinks.Update(root, features)
	return nil
}

// AddAttachToPropagations joins features to attach to propagations from or to the
// port.
func (m *Model) AddAttachToPropagations(root access.Root, features taint.Features) error {
	if err := m.checkRoot("attach to propagations", root); err != nil {
		return err
	}
	m.attachToPropagations.Update(root, features)
	return nil
}

// AddAddFeaturesToArguments joins features to add to all taint flowing in or out of
// the argument, even without an inferred propagation.
func (m *Model) AddAddFeaturesToArguments(root access.Root, features taint.Features) error {
	if !root.IsArgument() {
		return m.consistencyError("add features to arguments",
			fmt.Sprintf("root %s is not an argument", root))
	}
	if err := m.checkRoot("add features to arguments", root); err != nil {
		return err
	}
	m.addFeaturesToArguments.Update(root, features)
	return nil
}

// AttachToSources returns the features to attach to sources at the port; the empty
// set for unknown ports.
func (m *Model) AttachToSources(root access.Root) taint.Features {
	return m.attachToSources.Get(root)
}

// AttachToSinks returns the features to attach to sinks at the port.
func (m *Model) AttachToSinks(root access.Root) taint.Features {
	return m.attachToSinks.Get(root)
}

// AttachToPropagations returns the features to attach to propagations at the port.
func (m *Model) AttachToPropagations(root access.Root) taint.Features {
	return m.attachToPropagations.Get(root)
}

// AddFeaturesToArgumentsAt returns the features to add to all taint at the argument.
func (m *Model) AddFeaturesToArgumentsAt(root access.Root) taint.Features {
	return m.addFeaturesToArguments.Get(root)
}

// HasAddFeaturesToArguments returns true if any argument has features to add.
func (m *Model) HasAddFeaturesToArguments() bool {
	return !m.addFeaturesToArguments.IsBottom()
}

// SetInlineAsGetter sets the getter-inlining domain value. A held access path must be
// an argument port.
func (m *Model) SetInlineAsGetter(c AccessPathConstant) error {
	if path, ok := c.Value(); ok {
		if !path.Root.IsArgument() {
			return m.consistencyError("inline as getter",
				fmt.Sprintf("path %s is not rooted at an argument", path))
		}
		if err := m.checkPort("inline as getter", path); err != nil {
			return err
		}
	}
	m.inlineAsGetter = c
	return nil
}

// SetInlineAsSetter sets the setter-inlining domain value. Held access paths must be
// argument ports.
func (m *Model) SetInlineAsSetter(c SetterConstant) error {
	if setter, ok := c.Value(); ok {
		for _, path := range []access.AccessPath{setter.Target, setter.Value} {
			if !path.Root.IsArgument() {
				return m.consistencyError("inline as setter",
					fmt.Sprintf("path %s is not rooted at an argument", path))
			}
			if err := m.checkPort("inline as setter", path); err != nil {
				return err
			}
		}
	}
	m.inlineAsSetter = c
	return nil
}

// AddModelGenerator records a rule generator as having contributed to the model.
func (m *Model) AddModelGenerator(name string) {
	if name != "" {
		m.modelGenerators[name] = true
	}
}

// AddModelGeneratorIfEmpty records the generator only if none is recorded yet, to
// avoid double-attributing provenance once any data exists.
func (m *Model) AddModelGeneratorIfEmpty(name string) {
	if len(m.modelGenerators) == 0 {
		m.AddModelGenerator(name)
	}
}

// AddIssue records a vulnerability finding on the model.
func (m *Model) AddIssue(issue Issue) {
	m.issues.Add(issue)
}

func (m *Model) String() string {
	var b strings.Builder
	if m.method != nil {
		fmt.Fprintf(&b, "model for %s", m.method)
	} else {
		b.WriteString("model template")
	}
	if m.modes != Normal {
		fmt.Fprintf(&b, " modes=%v", m.modes.Names())
	}
	if m.frozen != FrozenNone {
		fmt.Fprintf(&b, " frozen=%v", m.frozen.Names())
	}
	if !m.generations.IsBottom() {
		fmt.Fprintf(&b, "\n  generations: %s", m.generations)
	}
	if !m.parameterSources.IsBottom() {
		fmt.Fprintf(&b, "\n  parameter sources: %s", m.parameterSources)
	}
	if !m.sinks.IsBottom() {
		fmt.Fprintf(&b, "\n  sinks: %s", m.sinks)
	}
	if !m.propagations.IsBottom() {
		fmt.Fprintf(&b, "\n  propagations: %s", m.propagations)
	}
	return b.String()
}
