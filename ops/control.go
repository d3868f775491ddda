// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ops

import (
	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/dtype"
	"github.com/mir-org/mir/ir/irerr"
)

func registerControl(r *Registry) {
	r.MustRegister(condSpec())
	r.MustRegister(whileLoopSpec())
}

// condSpec returns the two-way conditional. The first sub-block is the
// then branch, the second the else branch; neither takes block inputs
// and both must yield the same number of outputs with unifiable types.
func condSpec() *Spec {
	return &Spec{
		Name: "cond",
		Inputs: []InputSpec{
			{Name: "pred", Class: BoolTensor},
		},
		Blocks: 2,
		Infer:  inferCond,
	}
}

func inferCond(ctx *InferContext) ([]ir.Type, error) {
	pred, err := ctx.Tensor("pred")
	if err != nil {
		return nil, err
	}
	if pred.Rank() != 0 {
		return nil, ctx.Errorf("predicate must be a scalar, got %s", pred)
	}
	blocks := ctx.Blocks()
	then, els := blocks[0], blocks[1]
	if n := len(then.Inputs()); n > 0 {
		return nil, ctx.Errorf("branch blocks take no inputs, then branch has %d", n)
	}
	if n := len(els.Inputs()); n > 0 {
		return nil, ctx.Errorf("branch blocks take no inputs, else branch has %d", n)
	}
	thenOuts := then.Outputs()
	elseOuts := els.Outputs()
	if len(thenOuts) != len(elseOuts) {
		return nil, ctx.Errorf("branches yield %d and %d outputs", len(thenOuts), len(elseOuts))
	}
	outs := make([]ir.Type, len(thenOuts))
	for i := range thenOuts {
		t, err := ir.Unify(ctx.Unifier(), thenOuts[i].Type(), elseOuts[i].Type())
		if err != nil {
			return nil, irerr.Wrapf(err, "branch output %d", i)
		}
		outs[i] = t
	}
	return outs, nil
}

// whileLoopSpec returns the loop operator. The first sub-block is the
// continuation test, the second the body; both take the loop variables
// as block inputs. Loop variable types are invariant: the body must
// yield the types it received.
func whileLoopSpec() *Spec {
	return &Spec{
		Name: "while_loop",
		Inputs: []InputSpec{
			{Name: "loop_vars", Class: AnyTensor, Variadic: true},
		},
		Blocks: 2,
		Infer:  inferWhileLoop,
	}
}

func inferWhileLoop(ctx *InferContext) ([]ir.Type, error) {
	vars := ctx.Types("loop_vars")
	blocks := ctx.Blocks()
	cond, body := blocks[0], blocks[1]
	if err := checkLoopInputs(ctx, "test", cond, vars); err != nil {
		return nil, err
	}
	if err := checkLoopInputs(ctx, "body", body, vars); err != nil {
		return nil, err
	}
	condOuts := cond.Outputs()
	if len(condOuts) != 1 {
		return nil, ctx.Errorf("loop test yields %d outputs, want a single bool scalar", len(condOuts))
	}
	if !isBoolScalar(condOuts[0].Type()) {
		return nil, ctx.Errorf("loop test yields a %s, want a bool scalar", condOuts[0].Type())
	}
	bodyOuts := body.Outputs()
	if len(bodyOuts) != len(vars) {
		return nil, ctx.Errorf("loop body yields %d outputs for %d loop variables", len(bodyOuts), len(vars))
	}
	outs := make([]ir.Type, len(vars))
	for i, v := range vars {
		if _, err := ir.Unify(ctx.Unifier(), v, bodyOuts[i].Type()); err != nil {
			return nil, irerr.Wrapf(err, "loop variable %d changes type across iterations", i)
		}
		outs[i] = v
	}
	return outs, nil
}

func checkLoopInputs(ctx *InferContext, role string, block *ir.Block, vars []ir.Type) error {
	inputs := block.Inputs()
	if len(inputs) != len(vars) {
		return ctx.Errorf("loop %s takes %d inputs for %d loop variables", role, len(inputs), len(vars))
	}
	for i, in := range inputs {
		if _, err := ir.Unify(ctx.Unifier(), vars[i], in.Type()); err != nil {
			return irerr.Wrapf(err, "loop %s input %d", role, i)
		}
	}
	return nil
}

func isBoolScalar(t ir.Type) bool {
	tt, ok := ir.TensorOf(t)
	return ok && tt.DType() == dtype.Bool && tt.Rank() == 0
}
