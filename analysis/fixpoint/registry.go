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
	"sort"
	"sync/atomic"

	"github.com/awslabs/ar-taint-models/analysis/model"
)

// A Registry holds the current model of every method under analysis. Registration
// happens once, before the fixpoint runs; after that the registry is read and updated
// concurrently. Each update swaps a whole-model pointer, so readers always observe a
// complete snapshot and published models are never mutated.
type Registry struct {
	methods map[string]model.Method
	models  map[string]*atomic.Pointer[model.Model]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		methods: map[string]model.Method{},
		models:  map[string]*atomic.Pointer[model.Model]{},
	}
}

// Register adds a method with its initial model. Registering the same method again
// replaces the model. Not safe for concurrent use; call before Run.
func (r *Registry) Register(method model.Method, initial *model.Model) {
	key := method.String()
	r.methods[key] = method
	p := &atomic.Pointer[model.Model]{}
	p.Store(initial)
	r.models[key] = p
}

// Get returns the current snapshot of the method's model, or nil if the method is not
// registered. The returned model must not be mutated.
func (r *Registry) Get(method model.Method) *model.Model {
	if method == nil {
		return nil
	}
	p, ok := r.models[method.String()]
	if !ok {
		return nil
	}
	return p.Load()
}

// Publish installs m as the method's current model. The method must have been
// registered.
func (r *Registry) Publish(method model.Method, m *model.Model) {
	if p, ok := r.models[method.String()]; ok {
		p.Store(m)
	}
}

// Size returns the number of registered methods.
func (r *Registry) Size() int { return len(r.models) }

// Methods returns the registered methods, sorted by descriptor.
func (r *Registry) Methods() []model.Method {
	keys := make([]string, 0, len(r.methods))
	for key := range r.methods {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	methods := make([]model.Method, len(keys))
	for i, key := range keys {
		methods[i] = r.methods[key]
	}
	return methods
}

// ForEach calls f on every method and its current model, in descriptor order.
func (r *Registry) ForEach(f func(method model.Method, m *model.Model)) {
	for _, method := range r.Methods() {
		f(method, r.Get(method))
	}
}
