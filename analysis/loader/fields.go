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
	"strings"

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/model"
)

// typeFieldChecker validates access paths against the declared types of a method's
// ports. Paths whose type structure cannot be resolved (interfaces, type parameters,
// foreign method implementations) are accepted: the checker only rejects paths it
// can prove invalid.
type typeFieldChecker struct{}

// NewFieldChecker returns the field checker backing CollapseInvalidPaths.
func NewFieldChecker() model.FieldChecker {
	return typeFieldChecker{}
}

// Exists reports whether the path suffix can exist on the type of the method's port.
func (typeFieldChecker) Exists(method model.Method, root access.Root, path string) bool {
	m, ok := method.(*Method)
	if !ok {
		return true
	}
	t := portType(m, root)
	if t == nil {
		return true
	}
	elements, err := access.PathElements(path)
	if err != nil {
		return false
	}
	for _, element := range elements {
		base := derefType(t)
		switch base.(type) {
		case *types.Interface, *types.TypeParam:
			return true
		}
		t = stepType(base, element)
		if t == nil {
			return false
		}
	}
	return true
}

// portType returns the declared type of the port, or nil when the port has no single
// type to check against.
func portType(m *Method, root access.Root) types.Type {
	fn := m.Fn()
	switch {
	case root.IsArgument():
		if root.Index >= len(fn.Params) {
			return nil
		}
		return fn.Params[root.Index].Type()
	case root.IsReturn():
		results := fn.Signature.Results()
		if results.Len() != 1 {
			return nil
		}
		return results.At(0).Type()
	default:
		return nil
	}
}

// stepType applies one path element to an already unwrapped type, returning nil
// when the element is impossible on it.
func stepType(t types.Type, element string) types.Type {
	if element == "[*]" {
		switch actual := t.(type) {
		case *types.Array:
			return actual.Elem()
		case *types.Slice:
			return actual.Elem()
		case *types.Map:
			return actual.Elem()
		default:
			return nil
		}
	}
	field := strings.TrimPrefix(element, ".")
	if structType, ok := t.(*types.Struct); ok {
		for i := 0; i < structType.NumFields(); i++ {
			if structType.Field(i).Name() == field {
				return structType.Field(i).Type()
			}
		}
	}
	return nil
}

// derefType unwraps pointers and named types down to the underlying structure.
func derefType(t types.Type) types.Type {
	for {
		switch actual := t.(type) {
		case *types.Pointer:
			t = actual.Elem()
		case *types.Named:
			t = actual.Underlying()
		default:
			return t
		}
	}
}
