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

package loader

import (
	"sort"

	"github.com/awslabs/ar-taint-models/analysis/model"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/ssa"
)

// A ProgramGraph is the call graph restricted to the methods under analysis. It
// implements the graph contract of the fixpoint driver.
type ProgramGraph struct {
	methods []model.Method
	callees map[string][]model.Method
	callers map[string][]model.Method
}

// CHACallGraph builds the program graph using class hierarchy analysis, keeping only
// the functions for which include returns true. A nil include keeps every function
// with a package.
func CHACallGraph(prog *ssa.Program, include func(*ssa.Function) bool) *ProgramGraph {
	if include == nil {
		include = func(fn *ssa.Function) bool { return fn.Pkg != nil }
	}
	cg := cha.CallGraph(prog)
	cg.DeleteSyntheticNodes()

	g := &ProgramGraph{
		callees: map[string][]model.Method{},
		callers: map[string][]model.Method{},
	}
	byFn := map[*ssa.Function]*Method{}
	for fn := range cg.Nodes {
		if fn == nil || !include(fn) {
			continue
		}
		m := MethodFromSSA(fn)
		byFn[fn] = m
		g.methods = append(g.methods, m)
	}
	sort.Slice(g.methods, func(i, j int) bool {
		return g.methods[i].String() < g.methods[j].String()
	})

	addEdge := func(edges map[string][]model.Method, from *Method, to *Method) {
		key := from.String()
		for _, existing := range edges[key] {
			if existing.String() == to.String() {
				return
			}
		}
		edges[key] = append(edges[key], to)
	}
	for fn, node := range cg.Nodes {
		caller, ok := byFn[fn]
		if !ok {
			continue
		}
		for _, e := range node.Out {
			callee := calleeMethod(byFn, e)
			if callee == nil {
				continue
			}
			addEdge(g.callees, caller, callee)
			addEdge(g.callers, callee, caller)
		}
	}
	return g
}

func calleeMethod(byFn map[*ssa.Function]*Method, e *callgraph.Edge) *Method {
	if e.Callee == nil || e.Callee.Func == nil {
		return nil
	}
	return byFn[e.Callee.Func]
}

// Methods returns the methods under analysis, sorted by descriptor.
func (g *ProgramGraph) Methods() []model.Method { return g.methods }

// CalleesOf returns the methods m may call.
func (g *ProgramGraph) CalleesOf(m model.Method) []model.Method {
	return g.callees[m.String()]
}

// CallersOf returns the methods that may call m.
func (g *ProgramGraph) CallersOf(m model.Method) []model.Method {
	return g.callers[m.String()]
}
