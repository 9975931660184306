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
	"go/types"

	"github.com/awslabs/ar-taint-models/analysis/modelgen"
	"golang.org/x/tools/go/ssa"
)

// A Method wraps an SSA function as the method descriptor the models are keyed on.
// The descriptor is the function's fully qualified string; the arity counts the
// receiver for methods, matching the SSA parameter list.
type Method struct {
	fn *ssa.Function
}

// MethodFromSSA wraps an SSA function.
func MethodFromSSA(fn *ssa.Function) *Method {
	return &Method{fn: fn}
}

// Fn returns the underlying SSA function.
func (m *Method) Fn() *ssa.Function { return m.fn }

func (m *Method) String() string { return m.fn.String() }

// Arity returns the number of parameters, receiver included.
func (m *Method) Arity() int { return len(m.fn.Params) }

// Position returns the source position of the function declaration, or "" for
// synthetic functions.
func (m *Method) Position() string {
	pos := m.fn.Prog.Fset.Position(m.fn.Pos())
	if !pos.IsValid() {
		return ""
	}
	return pos.String()
}

// Info returns the method's identity for generator rule matching.
func (m *Method) Info() modelgen.MethodInfo {
	info := modelgen.MethodInfo{Name: m.fn.Name()}
	if m.fn.Pkg != nil {
		info.Package = m.fn.Pkg.Pkg.Path()
	}
	if recv := m.fn.Signature.Recv(); recv != nil {
		t := recv.Type()
		if ptr, ok := t.(*types.Pointer); ok {
			t = ptr.Elem()
		}
		if named, ok := t.(*types.Named); ok {
			info.Receiver = named.Obj().Name()
		}
	}
	return info
}
