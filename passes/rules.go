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

package passes

import (
	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/dtype"
	"github.com/mir-org/mir/ops"
)

// newNoopElimination removes operations computing their own input:
// identity, shape-preserving reshape, identity-permutation transpose,
// additive zero and multiplicative one.
func newNoopElimination() Pass {
	return &rewritePass{
		name: "noop_elimination",
		reg:  ops.Default(),
		rules: []Rule{
			{Name: "identity", Rewrite: rewriteIdentity},
			{Name: "reshape_noop", Rewrite: rewriteReshapeNoop},
			{Name: "transpose_noop", Rewrite: rewriteTransposeNoop},
			{Name: "arith_noop", Rewrite: rewriteArithNoop},
		},
	}
}

func rewriteIdentity(_ *RewriteContext, op *ir.Operation) ([]*ir.Value, bool, error) {
	if op.Name() != "identity" {
		return nil, false, nil
	}
	x, _ := op.Arg("x")
	return []*ir.Value{x}, true, nil
}

func rewriteReshapeNoop(_ *RewriteContext, op *ir.Operation) ([]*ir.Value, bool, error) {
	if op.Name() != "reshape" {
		return nil, false, nil
	}
	x, _ := op.Arg("x")
	if !x.Type().Equal(op.Output(0).Type()) {
		return nil, false, nil
	}
	return []*ir.Value{x}, true, nil
}

func rewriteTransposeNoop(_ *RewriteContext, op *ir.Operation) ([]*ir.Value, bool, error) {
	if op.Name() != "transpose" {
		return nil, false, nil
	}
	perm, _ := op.Attr("perm")
	for i, p := range perm.(ir.IntsAttr) {
		if p != int64(i) {
			return nil, false, nil
		}
	}
	x, _ := op.Arg("x")
	return []*ir.Value{x}, true, nil
}

// rewriteArithNoop drops an add or sub of a zero constant and a mul or
// real_div by a one constant. The type gate of the engine rejects the
// rewrite when broadcasting made the result wider than the kept
// operand.
func rewriteArithNoop(_ *RewriteContext, op *ir.Operation) ([]*ir.Value, bool, error) {
	switch op.Name() {
	case "add", "sub", "mul", "real_div":
	default:
		return nil, false, nil
	}
	x, _ := op.Arg("x")
	y, _ := op.Arg("y")
	switch op.Name() {
	case "add":
		if isFilledWith(y.Const(), 0) {
			return []*ir.Value{x}, true, nil
		}
		if isFilledWith(x.Const(), 0) {
			return []*ir.Value{y}, true, nil
		}
	case "sub":
		if isFilledWith(y.Const(), 0) {
			return []*ir.Value{x}, true, nil
		}
	case "mul":
		if isFilledWith(y.Const(), 1) {
			return []*ir.Value{x}, true, nil
		}
		if isFilledWith(x.Const(), 1) {
			return []*ir.Value{y}, true, nil
		}
	case "real_div":
		if isFilledWith(y.Const(), 1) {
			return []*ir.Value{x}, true, nil
		}
	}
	return nil, false, nil
}

// isFilledWith returns true if the constant holds only the given
// numeric value.
func isFilledWith(c *ir.Constant, v int64) bool {
	if c == nil || c.Len() == 0 {
		return false
	}
	if ints := c.Ints(); ints != nil {
		for _, e := range ints {
			if e != v {
				return false
			}
		}
		return true
	}
	if floats := c.Floats(); floats != nil {
		for _, e := range floats {
			if e != float64(v) {
				return false
			}
		}
		return true
	}
	return false
}

// newMergeReshapes collapses a reshape feeding another reshape into a
// single reshape from the original input.
func newMergeReshapes() Pass {
	return &rewritePass{
		name: "merge_consecutive_reshapes",
		reg:  ops.Default(),
		rules: []Rule{
			{Name: "merge_reshapes", Rewrite: rewriteMergeReshapes},
		},
	}
}

func rewriteMergeReshapes(ctx *RewriteContext, op *ir.Operation) ([]*ir.Value, bool, error) {
	inner, ok := singleUseProducer(op, "reshape", "reshape")
	if !ok {
		return nil, false, nil
	}
	src, _ := inner.Arg("x")
	target, _ := op.Arg("shape")
	outs, err := ctx.Add("reshape", []ir.Argument{
		{Name: "x", Value: src},
		{Name: "shape", Value: target},
	})
	if err != nil {
		return nil, false, err
	}
	return outs, true, nil
}

// newMergeTransposes composes a transpose feeding another transpose
// into a single transpose with the composed permutation.
func newMergeTransposes() Pass {
	return &rewritePass{
		name: "merge_consecutive_transposes",
		reg:  ops.Default(),
		rules: []Rule{
			{Name: "merge_transposes", Rewrite: rewriteMergeTransposes},
		},
	}
}

func rewriteMergeTransposes(ctx *RewriteContext, op *ir.Operation) ([]*ir.Value, bool, error) {
	inner, ok := singleUseProducer(op, "transpose", "transpose")
	if !ok {
		return nil, false, nil
	}
	innerPermAttr, _ := inner.Attr("perm")
	outerPermAttr, _ := op.Attr("perm")
	innerPerm := innerPermAttr.(ir.IntsAttr)
	outerPerm := outerPermAttr.(ir.IntsAttr)
	if len(innerPerm) != len(outerPerm) {
		return nil, false, nil
	}
	composed := make(ir.IntsAttr, len(outerPerm))
	for i, p := range outerPerm {
		composed[i] = innerPerm[p]
	}
	src, _ := inner.Arg("x")
	outs, err := ctx.Add("transpose",
		[]ir.Argument{{Name: "x", Value: src}},
		ir.Attribute{Name: "perm", Value: composed})
	if err != nil {
		return nil, false, err
	}
	return outs, true, nil
}

// newCastOptimization drops casts to the input data type and collapses
// chains of casts when the intermediate type loses no information.
func newCastOptimization() Pass {
	return &rewritePass{
		name: "cast_optimization",
		reg:  ops.Default(),
		rules: []Rule{
			{Name: "cast_noop", Rewrite: rewriteCastNoop},
			{Name: "merge_casts", Rewrite: rewriteMergeCasts},
		},
	}
}

func castTarget(op *ir.Operation) dtype.Kind {
	attr, _ := op.Attr("dtype")
	return dtype.KindFromString(string(attr.(ir.StringAttr)))
}

func rewriteCastNoop(_ *RewriteContext, op *ir.Operation) ([]*ir.Value, bool, error) {
	if op.Name() != "cast" {
		return nil, false, nil
	}
	x, _ := op.Arg("x")
	if castTarget(op) != ir.DTypeOf(x.Type()) {
		return nil, false, nil
	}
	return []*ir.Value{x}, true, nil
}

func rewriteMergeCasts(ctx *RewriteContext, op *ir.Operation) ([]*ir.Value, bool, error) {
	inner, ok := singleUseProducer(op, "cast", "cast")
	if !ok {
		return nil, false, nil
	}
	src, _ := inner.Arg("x")
	from := ir.DTypeOf(src.Type())
	// The chain only collapses when the intermediate kind represents
	// every value of the source kind.
	if !representable(from, castTarget(inner)) {
		return nil, false, nil
	}
	target := castTarget(op)
	if target == from {
		return []*ir.Value{src}, true, nil
	}
	outs, err := ctx.Add("cast",
		[]ir.Argument{{Name: "x", Value: src}},
		ir.Attribute{Name: "dtype", Value: ir.StringAttr(target.String())})
	if err != nil {
		return nil, false, err
	}
	return outs, true, nil
}

// representable returns true if every value of kind from survives a
// round trip through kind to.
func representable(from, to dtype.Kind) bool {
	switch {
	case from == to:
		return true
	case from.IsFloat() && to.IsFloat():
		return to.Size() >= from.Size()
	case from.IsInteger() && to.IsInteger():
		if from.IsUnsigned() == to.IsUnsigned() {
			return to.Size() >= from.Size()
		}
		return from.IsUnsigned() && to.Size() > from.Size()
	case from.IsInteger() && to.IsFloat():
		// The mantissa of a float covers integers strictly narrower
		// than the float itself.
		return to.Size() > from.Size()
	}
	return false
}

// singleUseProducer returns the producer of the x input of a rootName
// operation when that producer is an innerName operation consumed only
// by the root.
func singleUseProducer(op *ir.Operation, rootName, innerName string) (*ir.Operation, bool) {
	if op.Name() != rootName {
		return nil, false
	}
	x, ok := op.Arg("x")
	if !ok {
		return nil, false
	}
	inner := x.Def()
	if inner == nil || inner.Name() != innerName || x.NumUses() != 1 {
		return nil, false
	}
	return inner, true
}
