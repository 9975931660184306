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

// Package fixpoint drives the interprocedural computation of method models. The call
// graph is processed one strongly connected component at a time, callees before
// callers; within a component, methods are re-derived and their models joined until
// nothing changes, with widening forced after a configured number of iterations.
package fixpoint

import (
	"fmt"

	"github.com/awslabs/ar-taint-models/analysis/config"
	"github.com/awslabs/ar-taint-models/analysis/model"
	"github.com/awslabs/ar-taint-models/analysis/taint"
	"github.com/yourbasic/graph"
)

// WideningFeature is the feature label attached to taint that was over-approximated
// by the forced widening at the iteration bound.
const WideningFeature = "via-widening"

// A CallGraph is the shape of the program the driver needs: the methods to analyze
// and the call edges between them. Callees outside the method set are ignored.
type CallGraph interface {
	Methods() []model.Method
	CalleesOf(m model.Method) []model.Method
	CallersOf(m model.Method) []model.Method
}

// A DeriveFunc computes one method's model from scratch, looking up the current
// models of its callees through lookup. It is the intraprocedural half of the
// analysis; implementations must not mutate the models returned by lookup.
type DeriveFunc func(method model.Method, lookup func(model.Method) *model.Model) (*model.Model, error)

// State carries the configuration, loggers and the model registry through a run.
type State struct {
	Config   *config.Config
	Logger   *config.LogGroup
	Registry *Registry
}

// callGraphIterator adapts an adjacency list to the graph iteration interface used
// by the strong-components algorithm.
type callGraphIterator struct {
	adjacency [][]int
}

func (it callGraphIterator) Order() int { return len(it.adjacency) }

func (it callGraphIterator) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for _, w := range it.adjacency[v] {
		if do(w, 1) {
			return true
		}
	}
	return false
}

// Run computes the fixpoint of derive over the call graph, publishing each method's
// model in s.Registry as it stabilizes. Methods without a registered initial model
// start from the empty model. An error deriving one method skips that method for the
// round; it never aborts the run.
func Run(s *State, cg CallGraph, derive DeriveFunc) error {
	if s.Registry == nil {
		return fmt.Errorf("fixpoint run without a registry")
	}
	model.SetMaxAccessPathLength(s.Config.MaxAccessPathLength)
	model.SetMaxPortLeaves(s.Config.MaxPortLeaves)
	model.SetMaxCallDepth(s.Config.MaxCallDepth)

	methods := cg.Methods()
	index := make(map[string]int, len(methods))
	for i, m := range methods {
		index[m.String()] = i
	}
	for _, m := range methods {
		if s.Registry.Get(m) == nil {
			initial := model.EmptyModel()
			bound, err := initial.Instantiate(m)
			if err != nil {
				return err
			}
			s.Registry.Register(m, bound)
		}
	}

	adjacency := make([][]int, len(methods))
	for i, m := range methods {
		for _, callee := range cg.CalleesOf(m) {
			if j, ok := index[callee.String()]; ok {
				adjacency[i] = append(adjacency[i], j)
			}
		}
	}

	// Components come back callees-first, so every model a component depends on is
	// final by the time the component runs.
	components := graph.StrongComponents(callGraphIterator{adjacency})
	s.Logger.Infof("fixpoint over %d methods in %d components", len(methods), len(components))

	for _, component := range components {
		s.runComponent(methods, component, derive)
	}
	return nil
}

// runComponent iterates the methods of one strongly connected component to a local
// fixpoint.
func (s *State) runComponent(methods []model.Method, component []int, derive DeriveFunc) {
	maxIterations := s.Config.MaxIterations
	for round := 0; round < maxIterations; round++ {
		if s.runRound(methods, component, derive, false) {
			return
		}
	}
	s.Logger.Warnf("component of %d methods did not stabilize after %d rounds, widening",
		len(component), maxIterations)
	s.runRound(methods, component, derive, true)
}

// runRound re-derives every method of the component once and returns true if no
// model changed. With widen set, joined models are approximated before publication.
func (s *State) runRound(methods []model.Method, component []int, derive DeriveFunc, widen bool) bool {
	widening := taint.NewFeatures(WideningFeature)
	stable := true
	for _, idx := range component {
		method := methods[idx]
		derived, err := derive(method, s.Registry.Get)
		if err != nil {
			s.Logger.Warnf("skipping %s this round: %s", method, err)
			continue
		}
		current := s.Registry.Get(method)
		if derived.Leq(current) {
			continue
		}
		next := current.Copy()
		if err := next.JoinWith(derived); err != nil {
			s.Logger.Errorf("cannot join derived model for %s: %s", method, err)
			continue
		}
		if widen {
			next.Approximate(widening)
		}
		if next.Equal(current) {
			continue
		}
		s.Registry.Publish(method, next)
		stable = false
	}
	return stable
}
