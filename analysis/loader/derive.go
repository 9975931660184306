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
	"fmt"
	"go/constant"

	"github.com/awslabs/ar-taint-models/analysis/access"
	"github.com/awslabs/ar-taint-models/analysis/fixpoint"
	"github.com/awslabs/ar-taint-models/analysis/model"
	"github.com/awslabs/ar-taint-models/analysis/taint"
	"golang.org/x/tools/go/ssa"
)

// Derive returns the derive function of the fixpoint run. It re-computes a method's
// model by folding in the call-site specialization of every statically resolved
// callee:
//
//   - callee sinks landing on the caller's parameters become caller sinks;
//   - callee call-effect sinks climb to the caller at one more call edge;
//   - generations and propagations reaching the callee's return value surface on the
//     caller's return when the call result is returned.
//
// Taint that flows through intermediate locals rather than straight from parameter
// to call is out of reach of this summary-level pass and is left to the modes and
// hand-authored models.
func Derive() fixpoint.DeriveFunc {
	return func(method model.Method, lookup func(model.Method) *model.Model) (*model.Model, error) {
		m, ok := method.(*Method)
		if !ok {
			return nil, fmt.Errorf("method %s was not loaded from SSA", method)
		}
		current := lookup(method)
		if current == nil {
			return nil, fmt.Errorf("no registered model for %s", method)
		}
		result := current.InitialModelForIteration()
		// Re-adding the modes re-installs the propagations implied by
		// taint-in-taint-out and taint-in-taint-this.
		result.AddMode(result.Modes())
		if result.SkipAnalysis() {
			return result, nil
		}

		fn := m.Fn()
		returned := returnedValues(fn)
		for _, block := range fn.Blocks {
			for _, instr := range block.Instrs {
				call, ok := instr.(ssa.CallInstruction)
				if !ok {
					continue
				}
				callee := call.Common().StaticCallee()
				if callee == nil {
					continue
				}
				calleeModel := lookup(MethodFromSSA(callee))
				if calleeModel == nil || calleeModel.Empty() {
					continue
				}
				pos := fn.Prog.Fset.Position(call.Pos()).String()
				contribution := calleeModel.AtCallsite(method, pos, callArgs(fn, call.Common()))
				resultReturned := false
				if v, ok := instr.(ssa.Value); ok {
					resultReturned = returned[v]
				}
				foldContribution(result, contribution, resultReturned)
			}
		}
		return result, nil
	}
}

// foldContribution joins one call site's specialized summary into the caller model
// under construction. Entries on ports that do not exist in the caller are dropped
// by the inferred-add consistency checks.
func foldContribution(result *model.Model, contribution *model.Model, resultReturned bool) {
	widening := taint.Features{}
	contribution.Sinks().ForEach(func(ap access.AccessPath, v taint.Taint) {
		if ap.Root.IsArgument() {
			_ = result.AddInferredSinks(ap, v, widening)
		}
	})
	contribution.CallEffectSinks().ForEach(func(ap access.AccessPath, v taint.Taint) {
		_ = result.AddInferredCallEffectSinks(ap, v, widening)
	})
	if !resultReturned {
		return
	}
	contribution.Generations().ForEach(func(ap access.AccessPath, v taint.Taint) {
		if ap.Root.IsReturn() {
			_ = result.AddInferredGenerations(ap, v, widening)
		}
	})
	contribution.Propagations().ForEach(func(ap access.AccessPath, v taint.Taint) {
		if ap.Root.IsArgument() {
			_ = result.AddInferredPropagations(ap, returnOutputsOnly(v), widening)
		}
	})
}

// returnOutputsOnly drops propagation outputs that do not land on the return value.
// Propagation frames encode the output access path as their kind.
func returnOutputsOnly(v taint.Taint) taint.Taint {
	out := taint.Bottom()
	for kind, frame := range v {
		output, err := access.Parse(string(kind))
		if err != nil || !output.Root.IsReturn() {
			continue
		}
		out = out.Join(taint.NewTaint(frame))
	}
	return out
}

// returnedValues collects the values appearing as operands of the function's return
// instructions.
func returnedValues(fn *ssa.Function) map[ssa.Value]bool {
	returned := map[ssa.Value]bool{}
	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			ret, ok := instr.(*ssa.Return)
			if !ok {
				continue
			}
			for _, v := range ret.Results {
				returned[v] = true
				if extract, ok := v.(*ssa.Extract); ok {
					returned[extract.Tuple] = true
				}
			}
		}
	}
	return returned
}

// callArgs maps the concrete arguments of a call to caller-side roots. Arguments
// that are parameters of the caller map to the matching argument root; everything
// else maps to the call-effect root, which the signature port checks filter out when
// the contribution is folded.
func callArgs(fn *ssa.Function, cc *ssa.CallCommon) []model.CallArg {
	vals := cc.Args
	if cc.IsInvoke() {
		vals = append([]ssa.Value{cc.Value}, cc.Args...)
	}
	args := make([]model.CallArg, len(vals))
	for i, val := range vals {
		arg := model.CallArg{Root: access.CallEffectRoot(), Type: val.Type().String()}
		for j, param := range fn.Params {
			if param == val {
				arg.Root = access.ArgumentRoot(j)
				break
			}
		}
		if c, ok := val.(*ssa.Const); ok && c.Value != nil && c.Value.Kind() == constant.String {
			arg.Const = constant.StringVal(c.Value)
		}
		args[i] = arg
	}
	return args
}
