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

import "errors"

// ErrConsistency reports a port or taint configuration that does not match the shape
// of the model's method. It aborts only the operation or model in question.
var ErrConsistency = errors.New("model consistency error")

// ErrParse reports malformed model JSON, or an unexpected field in strict mode.
var ErrParse = errors.New("model parse error")

// ErrLatticeMisuse reports a join or comparison across models that are not comparable,
// e.g. models for different methods. This is a programming error in the caller, not a
// data error, and must not be silently approximated.
var ErrLatticeMisuse = errors.New("model lattice misuse")
