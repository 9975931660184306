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

package fixpoint

import (
	"fmt"
	"testing"

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/config"
	"github.com/awslabs/ar-taint-models/analysis/model"
	"github.com/awslabs/ar-taint-models/analysis/taint"
)

type testMethod struct {
	name  string
	arity int
}

func (m testMethod) String() string   { return m.name }
func (m testMethod) Arity() int       { return m.arity }
func (m testMethod) Position() string { return m.name + ".go:1:1" }

// fakeGraph is a call graph given directly as an edge map.
type fakeGraph struct {
	methods []model.Method
	callees map[string][]model.Method
	callers map[string][]model.Method
}

func (g fakeGraph) Methods() []model.Method { return g.methods }
func (g fakeGraph) CalleesOf(m model.Method) []model.Method {
	return g.callees[m.String()]
}
func (g fakeGraph) CallersOf(m model.Method) []model.Method {
	return g.callers[m.String()]
}

func newTestState(t *testing.T) *State {
	t.Helper()
	cfg := config.NewDefault()
	cfg.SilenceWarn = true
	return &State{
		Config:   cfg,
		Logger:   config.NewLogGroup(cfg),
		Registry: NewRegistry(),
	}
}

func mustModel(t *testing.T, method model.Method, init model.ModelInit) *model.Model {
	t.Helper()
	m, err := model.NewModel(method, init)
	if err != nil {
		t.Fatalf("cannot build model: %v", err)
	}
	return m
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	b := testMethod{"pkg.b", 1}
	a := testMethod{"pkg.a", 1}
	r.Register(b, mustModel(t, b, model.ModelInit{}))
	r.Register(a, mustModel(t, a, model.ModelInit{}))
	if r.Size() != 2 {
		t.Fatalf("expected 2 methods, got %d", r.Size())
	}
	if r.Get(testMethod{"pkg.c", 0}) != nil {
		t.Errorf("unregistered methods should read as nil")
	}
	if r.Get(nil) != nil {
		t.Errorf("a nil method should read as nil")
	}
	methods := r.Methods()
	if methods[0].String() != "pkg.a" || methods[1].String() != "pkg.b" {
		t.Errorf("methods should come back in descriptor order, got %v", methods)
	}
	updated := mustModel(t, a, model.ModelInit{
		Sinks: []model.PortTaint{{
			Port:  access.NewAccessPath(access.ArgumentRoot(0)),
			Taint: taint.Singleton("A"),
		}},
	})
	r.Publish(a, updated)
	if r.Get(a).Empty() {
		t.Errorf("publish should replace the model")
	}
}

// sinkLifting derives caller models by specializing callee summaries at a synthetic
// call site passing the caller's first argument.
func sinkLifting(r *Registry) DeriveFunc {
	return func(method model.Method, lookup func(model.Method) *model.Model) (*model.Model, error) {
		result := r.Get(method).InitialModelForIteration()
		if method.String() != "pkg.caller" {
			return result, nil
		}
		callee := lookup(testMethod{"pkg.leaf", 1})
		if callee == nil {
			return nil, fmt.Errorf("leaf model missing")
		}
		contribution := callee.AtCallsite(method, "caller.go:5:2",
			[]model.CallArg{{Root: access.ArgumentRoot(0), Type: "string"}})
		port := access.NewAccessPath(access.ArgumentRoot(0))
		err := result.AddInferredSinks(port, contribution.Sinks().TaintAt(port), taint.Features{})
		return result, err
	}
}

func TestRunLiftsSinksAcrossCalls(t *testing.T) {
	s := newTestState(t)
	leaf := testMethod{"pkg.leaf", 1}
	caller := testMethod{"pkg.caller", 1}
	s.Registry.Register(leaf, mustModel(t, leaf, model.ModelInit{
		Sinks: []model.PortTaint{{
			Port:  access.NewAccessPath(access.ArgumentRoot(0)),
			Taint: taint.Singleton("SQL"),
		}},
	}))
	cg := fakeGraph{
		methods: []model.Method{caller, leaf},
		callees: map[string][]model.Method{"pkg.caller": {leaf}},
		callers: map[string][]model.Method{"pkg.leaf": {caller}},
	}
	if err := Run(s, cg, sinkLifting(s.Registry)); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	lifted := s.Registry.Get(caller).Sinks().TaintAt(access.NewAccessPath(access.ArgumentRoot(0)))
	frame, ok := lifted["SQL"]
	if !ok {
		t.Fatalf("the caller should inherit the leaf's sink, got %v", lifted)
	}
	if frame.Distance != 1 {
		t.Errorf("expected distance 1 on the lifted sink, got %d", frame.Distance)
	}
	if len(frame.Origins) != 1 || frame.Origins[0].Position != "caller.go:5:2" {
		t.Errorf("expected the call position as origin, got %v", frame.Origins)
	}
}

// growingDerive deepens the partner's sink path by one field every round; without
// widening the component would never stabilize.
func growingDerive(r *Registry, partner map[string]model.Method) DeriveFunc {
	return func(method model.Method, lookup func(model.Method) *model.Model) (*model.Model, error) {
		result := r.Get(method).InitialModelForIteration()
		other := lookup(partner[method.String()])
		var err error
		other.Sinks().ForEach(func(ap access.AccessPath, v taint.Taint) {
			deeper := access.AccessPath{Root: ap.Root, Path: ap.Path + ".x"}
			if e := result.AddInferredSinks(deeper, v.Copy(), taint.Features{}); e != nil && err == nil {
				err = e
			}
		})
		return result, err
	}
}

func TestRunWidensUnstableComponents(t *testing.T) {
	s := newTestState(t)
	s.Config.MaxIterations = 2
	f := testMethod{"pkg.f", 1}
	g := testMethod{"pkg.g", 1}
	s.Registry.Register(f, mustModel(t, f, model.ModelInit{
		Sinks: []model.PortTaint{{
			Port:  access.NewAccessPath(access.ArgumentRoot(0)),
			Taint: taint.Singleton("A"),
		}},
	}))
	cg := fakeGraph{
		methods: []model.Method{f, g},
		callees: map[string][]model.Method{"pkg.f": {g}, "pkg.g": {f}},
		callers: map[string][]model.Method{"pkg.f": {g}, "pkg.g": {f}},
	}
	partner := map[string]model.Method{"pkg.f": g, "pkg.g": f}
	if err := Run(s, cg, growingDerive(s.Registry, partner)); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	bound := s.Config.MaxAccessPathLength
	for _, method := range []model.Method{f, g} {
		m := s.Registry.Get(method)
		m.Sinks().ForEach(func(ap access.AccessPath, _ taint.Taint) {
			if got := len(ap.Path); got > 0 {
				elements, err := access.PathElements(ap.Path)
				if err != nil {
					t.Fatalf("bad path %q: %v", ap.Path, err)
				}
				if len(elements) > bound {
					t.Errorf("%s: path %s exceeds the widening bound", method, ap)
				}
			}
		})
	}
}

func TestStats(t *testing.T) {
	r := NewRegistry()
	empty := testMethod{"pkg.a", 1}
	small := testMethod{"pkg.b", 1}
	big := testMethod{"pkg.c", 2}
	r.Register(empty, mustModel(t, empty, model.ModelInit{}))
	r.Register(small, mustModel(t, small, model.ModelInit{
		Sinks: []model.PortTaint{{
			Port:  access.NewAccessPath(access.ArgumentRoot(0)),
			Taint: taint.Singleton("A"),
		}},
	}))
	r.Register(big, mustModel(t, big, model.ModelInit{
		Sinks: []model.PortTaint{
			{Port: access.NewAccessPath(access.ArgumentRoot(0)), Taint: taint.Singleton("A")},
			{Port: access.NewAccessPath(access.ArgumentRoot(1)), Taint: taint.Singleton("A")},
		},
		Generations: []model.PortTaint{
			{Port: access.NewAccessPath(access.ReturnRoot()), Taint: taint.Singleton("B")},
		},
	}))
	res := Stats(r)
	if res.Methods != 3 || res.Empty != 1 {
		t.Errorf("expected 3 methods with 1 empty, got %+v", res)
	}
	if res.MaxSize != 3 {
		t.Errorf("expected max size 3, got %d", res.MaxSize)
	}
	if res.MeanSize < 1.3 || res.MeanSize > 1.4 {
		t.Errorf("expected mean size near 4/3, got %f", res.MeanSize)
	}
}
