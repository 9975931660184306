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

package funcutil

import "testing"

func TestMerge(t *testing.T) {
	a := map[string]int{"x": 1, "y": 2}
	b := map[string]int{"y": 3, "z": 4}
	Merge(a, b, func(x int, y int) int { return x + y })
	if a["x"] != 1 || a["y"] != 5 || a["z"] != 4 {
		t.Errorf("unexpected merge result %v", a)
	}
}

func TestUnion(t *testing.T) {
	a := map[string]bool{"x": true}
	b := map[string]bool{"y": true}
	Union(a, b)
	if !a["x"] || !a["y"] {
		t.Errorf("unexpected union result %v", a)
	}
}

func TestSetToOrderedSlice(t *testing.T) {
	s := SetToOrderedSlice(map[string]bool{"b": true, "a": true, "c": false})
	if len(s) != 2 || s[0] != "a" || s[1] != "b" {
		t.Errorf("unexpected slice %v", s)
	}
}
