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
	"math"

	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/dtype"
	"github.com/mir-org/mir/ir/irerr"
)

// inferBroadcastBinary is the inference rule shared by the
// elementwise binary operators: element types must agree (promotion
// happened in the builder) and shapes broadcast.
func inferBroadcastBinary(ctx *InferContext) ([]ir.Type, error) {
	return inferBinaryAs(ctx, dtype.Invalid)
}

// inferCompareBinary infers elementwise comparisons: broadcast shape,
// bool elements.
func inferCompareBinary(ctx *InferContext) ([]ir.Type, error) {
	return inferBinaryAs(ctx, dtype.Bool)
}

func inferBinaryAs(ctx *InferContext, resDT dtype.Kind) ([]ir.Type, error) {
	x, err := ctx.Tensor("x")
	if err != nil {
		return nil, err
	}
	y, err := ctx.Tensor("y")
	if err != nil {
		return nil, err
	}
	if x.DType() != y.DType() {
		return nil, ctx.Errorf("element type mismatch: x is %s, y is %s", x.DType(), y.DType())
	}
	shape, err := ir.Broadcast(ctx.Unifier(), x.Shape(), y.Shape())
	if err != nil {
		return nil, err
	}
	if resDT == dtype.Invalid {
		resDT = x.DType()
	}
	return []ir.Type{ir.NewTensorType(resDT, shape)}, nil
}

// inferSameAsInput infers elementwise unary operators: the output
// type is the input type.
func inferSameAsInput(ctx *InferContext) ([]ir.Type, error) {
	x, err := ctx.Tensor("x")
	if err != nil {
		return nil, err
	}
	return []ir.Type{x}, nil
}

func binarySpec(name string, fi intBinary, ff floatBinary) *Spec {
	return &Spec{
		Name: name,
		Inputs: []InputSpec{
			{Name: "x", Class: NumericTensor},
			{Name: "y", Class: NumericTensor},
		},
		PromoteArgs: []string{"x", "y"},
		Infer:       inferBroadcastBinary,
		Fold: func(ctx *FoldContext) ([]*ir.Constant, error) {
			out, err := foldNumericBinary(ctx.Const("x"), ctx.Const("y"), fi, ff)
			if err != nil {
				return nil, err
			}
			return []*ir.Constant{out}, nil
		},
	}
}

func compareSpec(name string, fi func(a, b int64) bool, ff func(a, b float64) bool) *Spec {
	return &Spec{
		Name: name,
		Inputs: []InputSpec{
			{Name: "x", Class: NumericTensor},
			{Name: "y", Class: NumericTensor},
		},
		PromoteArgs: []string{"x", "y"},
		Infer:       inferCompareBinary,
		Fold: func(ctx *FoldContext) ([]*ir.Constant, error) {
			out, err := foldCompare(ctx.Const("x"), ctx.Const("y"), fi, ff)
			if err != nil {
				return nil, err
			}
			return []*ir.Constant{out}, nil
		},
	}
}

func unarySpec(name string, class *TypeClass, fi func(int64) int64, ff func(float64) float64) *Spec {
	return &Spec{
		Name: name,
		Inputs: []InputSpec{
			{Name: "x", Class: class},
		},
		Infer: inferSameAsInput,
		Fold: func(ctx *FoldContext) ([]*ir.Constant, error) {
			out, err := foldNumericUnary(ctx.Const("x"), fi, ff)
			if err != nil {
				return nil, err
			}
			return []*ir.Constant{out}, nil
		},
	}
}

func registerElementwise(r *Registry) {
	r.MustRegister(binarySpec("add",
		func(a, b int64) (int64, error) { return a + b, nil },
		func(a, b float64) (float64, error) { return a + b, nil }))
	r.MustRegister(binarySpec("sub",
		func(a, b int64) (int64, error) { return a - b, nil },
		func(a, b float64) (float64, error) { return a - b, nil }))
	r.MustRegister(binarySpec("mul",
		func(a, b int64) (int64, error) { return a * b, nil },
		func(a, b float64) (float64, error) { return a * b, nil }))
	r.MustRegister(binarySpec("real_div",
		func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, irerr.Errorf(irerr.Pass, "integer division by zero")
			}
			return a / b, nil
		},
		func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, irerr.Errorf(irerr.Pass, "division by zero")
			}
			return a / b, nil
		}))
	r.MustRegister(binarySpec("pow",
		func(a, b int64) (int64, error) {
			// Squaring stays exact where math.Pow rounds through the
			// fp64 mantissa.
			if b < 0 {
				return 0, irerr.Errorf(irerr.Pass, "cannot fold negative integer exponent %d", b)
			}
			r := int64(1)
			for b > 0 {
				if b&1 == 1 {
					r *= a
				}
				a *= a
				b >>= 1
			}
			return r, nil
		},
		func(a, b float64) (float64, error) { return math.Pow(a, b), nil }))
	r.MustRegister(binarySpec("maximum",
		func(a, b int64) (int64, error) { return max(a, b), nil },
		func(a, b float64) (float64, error) { return math.Max(a, b), nil }))
	r.MustRegister(binarySpec("minimum",
		func(a, b int64) (int64, error) { return min(a, b), nil },
		func(a, b float64) (float64, error) { return math.Min(a, b), nil }))

	r.MustRegister(compareSpec("equal",
		func(a, b int64) bool { return a == b },
		func(a, b float64) bool { return a == b }))
	r.MustRegister(compareSpec("less",
		func(a, b int64) bool { return a < b },
		func(a, b float64) bool { return a < b }))
	r.MustRegister(compareSpec("greater",
		func(a, b int64) bool { return a > b },
		func(a, b float64) bool { return a > b }))

	r.MustRegister(unarySpec("abs", NumericTensor,
		func(v int64) int64 {
			if v < 0 {
				return -v
			}
			return v
		},
		math.Abs))
	r.MustRegister(unarySpec("neg", NumericTensor,
		func(v int64) int64 { return -v },
		func(v float64) float64 { return -v }))
	r.MustRegister(unarySpec("exp", FloatTensor, nil, math.Exp))
	r.MustRegister(unarySpec("log", FloatTensor, nil, math.Log))
	r.MustRegister(unarySpec("sqrt", FloatTensor, nil, math.Sqrt))
	r.MustRegister(unarySpec("rsqrt", FloatTensor, nil,
		func(v float64) float64 { return 1 / math.Sqrt(v) }))
	r.MustRegister(unarySpec("sigmoid", FloatTensor, nil,
		func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }))
	r.MustRegister(unarySpec("tanh", FloatTensor, nil, math.Tanh))
	r.MustRegister(unarySpec("relu", FloatTensor, nil,
		func(v float64) float64 { return math.Max(v, 0) }))
	r.MustRegister(unarySpec("identity", AnyTensor,
		func(v int64) int64 { return v },
		func(v float64) float64 { return v }))

	r.MustRegister(selectSpec())
}

// selectSpec returns the elementwise ternary choice operator.
func selectSpec() *Spec {
	return &Spec{
		Name: "select",
		Inputs: []InputSpec{
			{Name: "cond", Class: BoolTensor},
			{Name: "a", Class: AnyTensor},
			{Name: "b", Class: AnyTensor},
		},
		PromoteArgs: []string{"a", "b"},
		Infer: func(ctx *InferContext) ([]ir.Type, error) {
			cond, err := ctx.Tensor("cond")
			if err != nil {
				return nil, err
			}
			a, err := ctx.Tensor("a")
			if err != nil {
				return nil, err
			}
			b, err := ctx.Tensor("b")
			if err != nil {
				return nil, err
			}
			if a.DType() != b.DType() {
				return nil, ctx.Errorf("element type mismatch: a is %s, b is %s", a.DType(), b.DType())
			}
			shape, err := ir.Broadcast(ctx.Unifier(), a.Shape(), b.Shape())
			if err != nil {
				return nil, err
			}
			shape, err = ir.Broadcast(ctx.Unifier(), cond.Shape(), shape)
			if err != nil {
				return nil, err
			}
			return []ir.Type{ir.NewTensorType(a.DType(), shape)}, nil
		},
	}
}
