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

// Package access defines the roots and access paths that identify positions in a
// method signature. A root is the return value, a numbered argument (the receiver of a
// method is argument 0) or a call-effect port; an access path refines a root with a
// field suffix such as ".field" or "[*]".
package access

import (
	"fmt"
	"strconv"
	"strings"
)

// RootKind discriminates the kinds of roots a taint summary can refer to.
type RootKind int

const (
	// Return is the root for the return value of a method.
	Return RootKind = iota

	// Argument is the root for a numbered argument. The receiver of a method is
	// argument 0.
	Argument

	// CallEffect is the root for effects attached to the act of calling the method
	// rather than to a value in its signature.
	CallEffect
)

// A Root identifies one position in a method signature.
type Root struct {
	Kind RootKind

	// Index is the argument position when Kind is Argument, 0 otherwise.
	Index int
}

// ReturnRoot returns the return-value root.
func ReturnRoot() Root { return Root{Kind: Return} }

// ArgumentRoot returns the root for argument i.
func ArgumentRoot(i int) Root { return Root{Kind: Argument, Index: i} }

// CallEffectRoot returns the call-effect root.
func CallEffectRoot() Root { return Root{Kind: CallEffect} }

// IsArgument returns true if the root is an argument (or receiver) root.
func (r Root) IsArgument() bool { return r.Kind == Argument }

// IsReturn returns true if the root is the return-value root.
func (r Root) IsReturn() bool { return r.Kind == Return }

// IsCallEffect returns true if the root is a call-effect port.
func (r Root) IsCallEffect() bool { return r.Kind == CallEffect }

// ValidForArity returns true if the root names a position that exists on a method with
// the given number of parameters (receiver included).
func (r Root) ValidForArity(arity int) bool {
	switch r.Kind {
	case Argument:
		return r.Index >= 0 && r.Index < arity
	default:
		return true
	}
}

// Less orders roots: Return < Argument(0) < Argument(1) < ... < CallEffect.
func (r Root) Less(other Root) bool {
	if r.Kind != other.Kind {
		return r.Kind < other.Kind
	}
	return r.Index < other.Index
}

func (r Root) String() string {
	switch r.Kind {
	case Return:
		return "Return"
	case Argument:
		return fmt.Sprintf("Argument(%d)", r.Index)
	case CallEffect:
		return "CallEffect"
	default:
		return "?"
	}
}

// ParseRoot parses the string representation of a root, e.g. "Argument(1)".
func ParseRoot(s string) (Root, error) {
	switch {
	case s == "Return":
		return ReturnRoot(), nil
	case s == "CallEffect":
		return CallEffectRoot(), nil
	case strings.HasPrefix(s, "Argument(") && strings.HasSuffix(s, ")"):
		num := strings.TrimSuffix(strings.TrimPrefix(s, "Argument("), ")")
		i, err := strconv.Atoi(num)
		if err != nil || i < 0 {
			return Root{}, fmt.Errorf("invalid argument index in root %q", s)
		}
		return ArgumentRoot(i), nil
	default:
		return Root{}, fmt.Errorf("invalid root %q", s)
	}
}

// An AccessPath is a root refined by a path suffix, e.g. Argument(1) with ".data[*]".
type AccessPath struct {
	Root Root
	Path string
}

// NewAccessPath returns the access path with the given root and an empty path.
func NewAccessPath(root Root) AccessPath {
	return AccessPath{Root: root}
}

func (a AccessPath) String() string {
	return a.Root.String() + a.Path
}

// Less orders access paths by root then by path.
func (a AccessPath) Less(other AccessPath) bool {
	if a.Root != other.Root {
		return a.Root.Less(other.Root)
	}
	return a.Path < other.Path
}

// Parse parses an access path of the form root followed by a path suffix, e.g.
// "Argument(1).data[*]".
func Parse(s string) (AccessPath, error) {
	rootEnd := len(s)
	if i := strings.IndexAny(s, ".["); i >= 0 {
		// "Argument(1)" contains no '.' or '[', so the first occurrence starts the
		// path suffix.
		rootEnd = i
	}
	root, err := ParseRoot(s[:rootEnd])
	if err != nil {
		return AccessPath{}, err
	}
	path := s[rootEnd:]
	if err := CheckPath(path); err != nil {
		return AccessPath{}, err
	}
	return AccessPath{Root: root, Path: path}, nil
}

// CheckPath verifies that path is a well-formed sequence of ".field" and "[*]"
// elements.
func CheckPath(path string) error {
	rest := path
	for rest != "" {
		if cut, ok := strings.CutPrefix(rest, "[*]"); ok {
			rest = cut
			continue
		}
		if !strings.HasPrefix(rest, ".") {
			return fmt.Errorf("invalid path element at %q in path %q", rest, path)
		}
		end := len(rest)
		if i := strings.IndexAny(rest[1:], ".["); i >= 0 {
			end = i + 1
		}
		if end == 1 {
			return fmt.Errorf("empty field name in path %q", path)
		}
		rest = rest[end:]
	}
	return nil
}

// PathElements splits the path into its elements: ".a[*].b" becomes
// [".a", "[*]", ".b"].
func PathElements(path string) ([]string, error) {
	if err := CheckPath(path); err != nil {
		return nil, err
	}
	var elements []string
	rest := path
	for rest != "" {
		if cut, ok := strings.CutPrefix(rest, "[*]"); ok {
			elements = append(elements, "[*]")
			rest = cut
			continue
		}
		end := len(rest)
		if i := strings.IndexAny(rest[1:], ".["); i >= 0 {
			end = i + 1
		}
		elements = append(elements, rest[:end])
		rest = rest[end:]
	}
	return elements, nil
}

// PathLen returns the number of elements of the path: ".a[*].b" has length 3.
func PathLen(path string) int {
	return strings.Count(path, "[*]") + strings.Count(path, ".")
}

// PathTrimLast removes the last element of the path.
func PathTrimLast(path string) string {
	if path == "" {
		return ""
	}
	if prefix, ok := strings.CutSuffix(path, "[*]"); ok {
		return prefix
	}
	n := strings.LastIndex(path, ".")
	if n >= 0 {
		return path[:n]
	}
	return path
}

// PathPrefix truncates the path to at most depth elements.
func PathPrefix(path string, depth int) string {
	if depth < 0 {
		depth = 0
	}
	for PathLen(path) > depth {
		trimmed := PathTrimLast(path)
		if trimmed == path {
			break
		}
		path = trimmed
	}
	return path
}

// PathAppendField appends a field access to the path.
func PathAppendField(path string, field string) string {
	return path + "." + field
}

// PathAppendIndex appends an indexing operation to the path.
func PathAppendIndex(path string) string {
	return path + "[*]"
}
