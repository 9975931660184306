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
	"encoding/json"
	"fmt"
	"sort"

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/taint"
	"github.com/awslabs/ar-taint-models/analysis/tree"
	"golang.org/x/exp/maps"
)

// ExportMode selects how much provenance a serialized model carries.
type ExportMode int

const (
	// ExportMinimal omits provenance and position detail: compact storage form.
	// Minimal-mode export intentionally does not round-trip exactly.
	ExportMinimal ExportMode = iota

	// ExportFull includes model-generator provenance and call-stack origins:
	// full diagnostic form. FromJSON of a full export reproduces the model.
	ExportFull
)

// frameJSON is the serialized form of one taint frame.
type frameJSON struct {
	Kind       string       `json:"kind"`
	Features   []string     `json:"features,omitempty"`
	Distance   int          `json:"distance,omitempty"`
	Origins    []originJSON `json:"origins,omitempty"`
	ViaValueOf *int         `json:"via_value_of,omitempty"`
	Constraint string       `json:"constraint,omitempty"`
	ViaTypeOf  *int         `json:"via_type_of,omitempty"`
	TypeName   string       `json:"type_constraint,omitempty"`
}

type originJSON struct {
	Method   string `json:"method"`
	Position string `json:"position,omitempty"`
}

// portTaintJSON is one entry of a serialized taint tree.
type portTaintJSON struct {
	Port  string      `json:"port"`
	Taint []frameJSON `json:"taint"`
}

// propagationJSON is one entry of the serialized propagations tree.
type propagationJSON struct {
	Input    string       `json:"input"`
	Output   string       `json:"output"`
	Features []string     `json:"features,omitempty"`
	Distance int          `json:"distance,omitempty"`
	Origins  []originJSON `json:"origins,omitempty"`
}

type sanitizerJSON struct {
	Scope string   `json:"scope"`
	Kinds []string `json:"kinds,omitempty"`
}

type portSanitizersJSON struct {
	Port       string          `json:"port"`
	Sanitizers []sanitizerJSON `json:"sanitizers"`
}

type portFeaturesJSON struct {
	Port     string   `json:"port"`
	Features []string `json:"features"`
}

type setterJSON struct {
	Target string `json:"target"`
	Value  string `json:"value"`
}

// modelJSON is the top-level serialization schema of a model. Every field is
// optional and defaults to the corresponding bottom value.
type modelJSON struct {
	Method                 string               `json:"method,omitempty"`
	Position               string               `json:"position,omitempty"`
	Modes                  []string             `json:"modes,omitempty"`
	Freeze                 []string             `json:"freeze,omitempty"`
	Generations            []portTaintJSON      `json:"generations,omitempty"`
	ParameterSources       []portTaintJSON      `json:"parameter_sources,omitempty"`
	Sinks                  []portTaintJSON      `json:"sinks,omitempty"`
	CallEffectSources      []portTaintJSON      `json:"call_effect_sources,omitempty"`
	CallEffectSinks        []portTaintJSON      `json:"call_effect_sinks,omitempty"`
	Propagation            []propagationJSON    `json:"propagation,omitempty"`
	Sanitizers             []sanitizerJSON      `json:"sanitizers,omitempty"`
	PortSanitizers         []portSanitizersJSON `json:"port_sanitizers,omitempty"`
	AttachToSources        []portFeaturesJSON   `json:"attach_to_sources,omitempty"`
	AttachToSinks          []portFeaturesJSON   `json:"attach_to_sinks,omitempty"`
	AttachToPropagations   []portFeaturesJSON   `json:"attach_to_propagations,omitempty"`
	AddFeaturesToArguments []portFeaturesJSON   `json:"add_features_to_arguments,omitempty"`
	InlineAsGetter         string               `json:"inline_as_getter,omitempty"`
	InlineAsSetter         *setterJSON          `json:"inline_as_setter,omitempty"`
	ModelGenerators        []string             `json:"model_generators,omitempty"`
	Issues                 []Issue              `json:"issues,omitempty"`
}

// knownFields lists the accepted top-level fields, used by strict parsing.
var knownFields = map[string]bool{
	"method": true, "position": true, "modes": true, "freeze": true,
	"generations": true, "parameter_sources": true, "sinks": true,
	"call_effect_sources": true, "call_effect_sinks": true, "propagation": true,
	"sanitizers": true, "port_sanitizers": true, "attach_to_sources": true,
	"attach_to_sinks": true, "attach_to_propagations": true,
	"add_features_to_arguments": true, "inline_as_getter": true,
	"inline_as_setter": true, "model_generators": true, "issues": true,
}

func frameToJSON(f taint.Frame, mode ExportMode) frameJSON {
	out := frameJSON{Kind: string(f.Kind), Features: f.Features.Labels()}
	if f.ViaValueOf >= 0 {
		via := f.ViaValueOf
		out.ViaValueOf = &via
		out.Constraint = f.ConstraintValue
	}
	if f.ViaTypeOf >= 0 {
		via := f.ViaTypeOf
		out.ViaTypeOf = &via
		out.TypeName = f.ConstraintType
	}
	if mode == ExportFull {
		out.Distance = f.Distance
		for _, o := range f.Origins {
			out.Origins = append(out.Origins, originJSON{Method: o.Method, Position: o.Position})
		}
	}
	return out
}

func frameFromJSON(in frameJSON) (taint.Frame, error) {
	if in.Kind == "" {
		return taint.Frame{}, fmt.Errorf("%w: taint frame without kind", ErrParse)
	}
	f := taint.NewFrame(taint.Kind(in.Kind))
	f.Features = taint.NewFeatures(in.Features...)
	f.Distance = in.Distance
	for _, o := range in.Origins {
		f.Origins = append(f.Origins, taint.Origin{Method: o.Method, Position: o.Position})
	}
	if in.ViaValueOf != nil {
		f.ViaValueOf = *in.ViaValueOf
		f.ConstraintValue = in.Constraint
	}
	if in.ViaTypeOf != nil {
		f.ViaTypeOf = *in.ViaTypeOf
		f.ConstraintType = in.TypeName
	}
	return f, nil
}

func taintToJSON(v taint.Taint, mode ExportMode) []frameJSON {
	frames := make([]frameJSON, 0, len(v))
	for _, k := range v.Kinds() {
		frames = append(frames, frameToJSON(v[k], mode))
	}
	return frames
}

func treeToJSON(t tree.PortTree, mode ExportMode) []portTaintJSON {
	var out []portTaintJSON
	t.ForEach(func(ap access.AccessPath, v taint.Taint) {
		out = append(out, portTaintJSON{Port: ap.String(), Taint: taintToJSON(v, mode)})
	})
	return out
}

func sanitizersToJSON(set taint.SanitizerSet) []sanitizerJSON {
	var out []sanitizerJSON
	for _, scope := range []taint.SanitizerScope{
		taint.SanitizeSources, taint.SanitizeSinks, taint.SanitizePropagations,
	} {
		s, ok := set[scope]
		if !ok {
			continue
		}
		entry := sanitizerJSON{Scope: scope.String()}
		for _, k := range sortedKinds(s.Kinds) {
			entry.Kinds = append(entry.Kinds, string(k))
		}
		out = append(out, entry)
	}
	return out
}

func sortedKinds(kinds map[taint.Kind]bool) []taint.Kind {
	out := maps.Keys(kinds)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sanitizersFromJSON(entries []sanitizerJSON) (taint.SanitizerSet, error) {
	set := taint.NewSanitizerSet()
	for _, e := range entries {
		scope, err := taint.ParseSanitizerScope(e.Scope)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		kinds := make([]taint.Kind, len(e.Kinds))
		for i, k := range e.Kinds {
			kinds[i] = taint.Kind(k)
		}
		set.Add(taint.NewSanitizer(scope, kinds...))
	}
	return set, nil
}

func featuresPartitionToJSON(p tree.Partition[taint.Features]) []portFeaturesJSON {
	var out []portFeaturesJSON
	p.ForEach(func(root access.Root, f taint.Features) {
		out = append(out, portFeaturesJSON{Port: root.String(), Features: f.Labels()})
	})
	return out
}

// ToJSON serializes the model. ExportMinimal drops provenance (origins, distances,
// generator names); ExportFull keeps everything and round-trips through FromJSON.
func (m *Model) ToJSON(mode ExportMode) ([]byte, error) {
	out := modelJSON{
		Modes:  m.modes.Names(),
		Freeze: m.frozen.Names(),
	}
	if m.method != nil {
		out.Method = m.method.String()
	}
	out.Generations = treeToJSON(m.generations, mode)
	out.ParameterSources = treeToJSON(m.parameterSources, mode)
	out.Sinks = treeToJSON(m.sinks, mode)
	out.CallEffectSources = treeToJSON(m.callEffectSources, mode)
	out.CallEffectSinks = treeToJSON(m.callEffectSinks, mode)
	m.propagations.ForEach(func(ap access.AccessPath, v taint.Taint) {
		for _, k := range v.Kinds() {
			f := v[k]
			entry := propagationJSON{
				Input:    ap.String(),
				Output:   string(k),
				Features: f.Features.Labels(),
			}
			if mode == ExportFull {
				entry.Distance = f.Distance
				for _, o := range f.Origins {
					entry.Origins = append(entry.Origins,
						originJSON{Method: o.Method, Position: o.Position})
				}
			}
			out.Propagation = append(out.Propagation, entry)
		}
	})
	out.Sanitizers = sanitizersToJSON(m.globalSanitizers)
	m.portSanitizers.ForEach(func(root access.Root, set taint.SanitizerSet) {
		out.PortSanitizers = append(out.PortSanitizers, portSanitizersJSON{
			Port:       root.String(),
			Sanitizers: sanitizersToJSON(set),
		})
	})
	out.AttachToSources = featuresPartitionToJSON(m.attachToSources)
	out.AttachToSinks = featuresPartitionToJSON(m.attachToSinks)
	out.AttachToPropagations = featuresPartitionToJSON(m.attachToPropagations)
	out.AddFeaturesToArguments = featuresPartitionToJSON(m.addFeaturesToArguments)
	if path, ok := m.inlineAsGetter.Value(); ok {
		out.InlineAsGetter = path.String()
	} else if m.inlineAsGetter.IsTop() {
		out.InlineAsGetter = "top"
	}
	if setter, ok := m.inlineAsSetter.Value(); ok {
		out.InlineAsSetter = &setterJSON{
			Target: setter.Target.String(),
			Value:  setter.Value.String(),
		}
	} else if m.inlineAsSetter.IsTop() {
		out.InlineAsSetter = &setterJSON{Target: "top", Value: "top"}
	}
	if mode == ExportFull {
		out.ModelGenerators = m.ModelGenerators()
	}
	out.Issues = m.issues.Sorted()
	return json.MarshalIndent(out, "", "  ")
}

// ToJSONWithPosition serializes the model in full mode and embeds the method's
// source position.
func (m *Model) ToJSONWithPosition() ([]byte, error) {
	data, err := m.ToJSON(ExportFull)
	if err != nil || m.method == nil {
		return data, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	pos, err := json.Marshal(m.method.Position())
	if err != nil {
		return nil, err
	}
	raw["position"] = pos
	return json.MarshalIndent(raw, "", "  ")
}

func portTaintsFromJSON(entries []portTaintJSON, component string) ([]PortTaint, error) {
	var out []PortTaint
	for _, e := range entries {
		ap, err := access.Parse(e.Port)
		if err != nil {
			return nil, fmt.Errorf("%w: %s port: %v", ErrParse, component, err)
		}
		frames := make([]taint.Frame, 0, len(e.Taint))
		for _, fj := range e.Taint {
			f, err := frameFromJSON(fj)
			if err != nil {
				return nil, fmt.Errorf("%s at %s: %w", component, e.Port, err)
			}
			frames = append(frames, f)
		}
		out = append(out, PortTaint{Port: ap, Taint: taint.NewTaint(frames...)})
	}
	return out, nil
}

func portFeaturesFromJSON(entries []portFeaturesJSON, component string) ([]PortFeatures, error) {
	var out []PortFeatures
	for _, e := range entries {
		root, err := access.ParseRoot(e.Port)
		if err != nil {
			return nil, fmt.Errorf("%w: %s port: %v", ErrParse, component, err)
		}
		out = append(out, PortFeatures{Root: root, Features: taint.NewFeatures(e.Features...)})
	}
	return out, nil
}

// FromJSON parses a serialized model and attaches it to the given method. With
// strict set, a record containing fields not in the schema is rejected, naming the
// offending field; this is the mode for hand-authored configuration. Lenient mode
// ignores unknown fields and is used to re-read the tool's own prior output.
func FromJSON(method Method, data []byte, strict bool) (*Model, error) {
	if strict {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		for field := range raw {
			if !knownFields[field] {
				return nil, fmt.Errorf("%w: unexpected field %q in model", ErrParse, field)
			}
		}
	}
	var in modelJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	init := ModelInit{}
	for _, name := range in.Modes {
		mode, err := ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		init.Modes |= mode
	}
	for _, name := range in.Freeze {
		f, err := ParseFreezeKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		init.Frozen |= f
	}

	var err error
	if init.Generations, err = portTaintsFromJSON(in.Generations, "generations"); err != nil {
		return nil, err
	}
	if init.ParameterSources, err = portTaintsFromJSON(in.ParameterSources, "parameter_sources"); err != nil {
		return nil, err
	}
	if init.Sinks, err = portTaintsFromJSON(in.Sinks, "sinks"); err != nil {
		return nil, err
	}
	if init.CallEffectSources, err = portTaintsFromJSON(in.CallEffectSources, "call_effect_sources"); err != nil {
		return nil, err
	}
	if init.CallEffectSinks, err = portTaintsFromJSON(in.CallEffectSinks, "call_effect_sinks"); err != nil {
		return nil, err
	}
	for _, p := range in.Propagation {
		input, err := access.Parse(p.Input)
		if err != nil {
			return nil, fmt.Errorf("%w: propagation input: %v", ErrParse, err)
		}
		output, err := access.Parse(p.Output)
		if err != nil {
			return nil, fmt.Errorf("%w: propagation output: %v", ErrParse, err)
		}
		prop := Propagation{
			Input:    input,
			Output:   output,
			Features: taint.NewFeatures(p.Features...),
			Distance: p.Distance,
		}
		for _, o := range p.Origins {
			prop.Origins = append(prop.Origins, taint.Origin{Method: o.Method, Position: o.Position})
		}
		init.Propagations = append(init.Propagations, prop)
	}
	if init.GlobalSanitizers, err = sanitizerListFromJSON(in.Sanitizers); err != nil {
		return nil, err
	}
	for _, ps := range in.PortSanitizers {
		root, err := access.ParseRoot(ps.Port)
		if err != nil {
			return nil, fmt.Errorf("%w: port_sanitizers port: %v", ErrParse, err)
		}
		set, err := sanitizersFromJSON(ps.Sanitizers)
		if err != nil {
			return nil, err
		}
		init.PortSanitizers = append(init.PortSanitizers, PortSanitizers{Root: root, Sanitizers: set})
	}
	if init.AttachToSources, err = portFeaturesFromJSON(in.AttachToSources, "attach_to_sources"); err != nil {
		return nil, err
	}
	if init.AttachToSinks, err = portFeaturesFromJSON(in.AttachToSinks, "attach_to_sinks"); err != nil {
		return nil, err
	}
	if init.AttachToPropagations, err = portFeaturesFromJSON(in.AttachToPropagations, "attach_to_propagations"); err != nil {
		return nil, err
	}
	if init.AddFeaturesToArguments, err = portFeaturesFromJSON(in.AddFeaturesToArguments, "add_features_to_arguments"); err != nil {
		return nil, err
	}
	switch in.InlineAsGetter {
	case "":
		init.InlineAsGetter = BottomAccessPathConstant()
	case "top":
		init.InlineAsGetter = TopAccessPathConstant()
	default:
		path, err := access.Parse(in.InlineAsGetter)
		if err != nil {
			return nil, fmt.Errorf("%w: inline_as_getter: %v", ErrParse, err)
		}
		init.InlineAsGetter = NewAccessPathConstant(path)
	}
	switch {
	case in.InlineAsSetter == nil:
		init.InlineAsSetter = BottomSetterConstant()
	case in.InlineAsSetter.Target == "top":
		init.InlineAsSetter = TopSetterConstant()
	default:
		target, err := access.Parse(in.InlineAsSetter.Target)
		if err != nil {
			return nil, fmt.Errorf("%w: inline_as_setter target: %v", ErrParse, err)
		}
		value, err := access.Parse(in.InlineAsSetter.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: inline_as_setter value: %v", ErrParse, err)
		}
		init.InlineAsSetter = NewSetterConstant(SetterAccessPath{Target: target, Value: value})
	}
	init.ModelGenerators = in.ModelGenerators
	init.Issues = in.Issues

	m, err := NewModel(method, init)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func sanitizerListFromJSON(entries []sanitizerJSON) ([]taint.Sanitizer, error) {
	var out []taint.Sanitizer
	for _, e := range entries {
		scope, err := taint.ParseSanitizerScope(e.Scope)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		kinds := make([]taint.Kind, len(e.Kinds))
		for i, k := range e.Kinds {
			kinds[i] = taint.Kind(k)
		}
		out = append(out, taint.NewSanitizer(scope, kinds...))
	}
	return out, nil
}
