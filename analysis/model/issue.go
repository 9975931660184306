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
	"sort"

	"golang.org/x/exp/maps"
)

// An Issue is a concrete vulnerability finding discovered while analyzing a method.
// The model stores issues as opaque payloads; it never interprets them.
type Issue struct {
	Rule       string `json:"rule"`
	SourceKind string `json:"source_kind,omitempty"`
	SinkKind   string `json:"sink_kind,omitempty"`
	Position   string `json:"position,omitempty"`
	Message    string `json:"message,omitempty"`
}

// An IssueSet is a set of issues, deduplicated structurally.
type IssueSet map[Issue]bool

// NewIssueSet builds an issue set from the given issues.
func NewIssueSet(issues ...Issue) IssueSet {
	set := IssueSet{}
	for _, issue := range issues {
		set[issue] = true
	}
	return set
}

// IsBottom returns true if the set is empty.
func (set IssueSet) IsBottom() bool { return len(set) == 0 }

// Copy returns a copy of the set.
func (set IssueSet) Copy() IssueSet {
	if set == nil {
		return IssueSet{}
	}
	return maps.Clone(set)
}

// Add inserts an issue into the set.
func (set IssueSet) Add(issue Issue) { set[issue] = true }

// Join unions other into the set.
func (set IssueSet) Join(other IssueSet) {
	for issue := range other {
		set[issue] = true
	}
}

// Leq returns true if the set is included in other.
func (set IssueSet) Leq(other IssueSet) bool {
	for issue := range set {
		if !other[issue] {
			return false
		}
	}
	return true
}

// Equal returns true if the two sets hold the same issues.
func (set IssueSet) Equal(other IssueSet) bool {
	return len(set) == len(other) && set.Leq(other)
}

// Sorted returns the issues in deterministic order.
func (set IssueSet) Sorted() []Issue {
	issues := maps.Keys(set)
	sort.Slice(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if a.SourceKind != b.SourceKind {
			return a.SourceKind < b.SourceKind
		}
		if a.SinkKind != b.SinkKind {
			return a.SinkKind < b.SinkKind
		}
		return a.Message < b.Message
	})
	return issues
}
