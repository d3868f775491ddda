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
	"github.com/mir-org/mir/ir/irerr"
)

func registerLinalg(r *Registry) {
	r.MustRegister(matmulSpec())
	r.MustRegister(reduceSpec("reduce_sum", false))
	r.MustRegister(reduceSpec("reduce_mean", true))
}

func matmulSpec() *Spec {
	return &Spec{
		Name: "matmul",
		Inputs: []InputSpec{
			{Name: "x", Class: NumericTensor},
			{Name: "y", Class: NumericTensor},
		},
		Attrs: []AttrSpec{
			{Name: "transpose_x", Kind: KBool, Default: ir.BoolAttr(false)},
			{Name: "transpose_y", Kind: KBool, Default: ir.BoolAttr(false)},
		},
		PromoteArgs: []string{"x", "y"},
		Infer:       inferMatmul,
		Fold:        foldMatmul,
	}
}

func inferMatmul(ctx *InferContext) ([]ir.Type, error) {
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
	if x.Rank() < 2 || y.Rank() < 2 {
		return nil, ctx.Errorf("matmul wants operands of rank 2 or more, got %s and %s", x.Shape(), y.Shape())
	}
	tx, err := ctx.BoolAttr("transpose_x")
	if err != nil {
		return nil, err
	}
	ty, err := ctx.BoolAttr("transpose_y")
	if err != nil {
		return nil, err
	}
	xm, xk := trailingDims(x.Shape(), tx)
	yk, yn := trailingDims(y.Shape(), ty)
	if _, err := ctx.Unifier().UnifyDim(xk, yk); err != nil {
		return nil, irerr.Wrapf(err, "contracting dimensions of %s and %s", x.Shape(), y.Shape())
	}
	batch, err := ir.Broadcast(ctx.Unifier(), x.Shape()[:x.Rank()-2], y.Shape()[:y.Rank()-2])
	if err != nil {
		return nil, irerr.Wrapf(err, "batch dimensions of %s and %s", x.Shape(), y.Shape())
	}
	dims := append(batch, xm, yn)
	return []ir.Type{ir.NewTensorType(x.DType(), dims)}, nil
}

// trailingDims returns the row and column dimension of the trailing
// matrix of a shape, swapped when the operand is transposed.
func trailingDims(shape ir.Shape, transposed bool) (rows, cols ir.Dim) {
	rank := len(shape)
	rows, cols = shape[rank-2], shape[rank-1]
	if transposed {
		rows, cols = cols, rows
	}
	return rows, cols
}

// foldMatmul folds a rank-2 matrix product. Batched products are left
// to the runtime.
func foldMatmul(ctx *FoldContext) ([]*ir.Constant, error) {
	x, y := ctx.Const("x"), ctx.Const("y")
	xdims, ydims := staticDims(x), staticDims(y)
	if len(xdims) != 2 || len(ydims) != 2 {
		return nil, ctx.Errorf("only rank-2 products fold, got ranks %d and %d", len(xdims), len(ydims))
	}
	txAttr, _ := ctx.Attr("transpose_x")
	tyAttr, _ := ctx.Attr("transpose_y")
	if bool(txAttr.(ir.BoolAttr)) {
		var err error
		if x, err = transposeConstant(x, []int64{1, 0}); err != nil {
			return nil, err
		}
		xdims = staticDims(x)
	}
	if bool(tyAttr.(ir.BoolAttr)) {
		var err error
		if y, err = transposeConstant(y, []int64{1, 0}); err != nil {
			return nil, err
		}
		ydims = staticDims(y)
	}
	m, k, n := xdims[0], xdims[1], ydims[1]
	shape := ir.StaticShape(m, n)
	switch {
	case x.Floats() != nil && y.Floats() != nil:
		xs, ys := x.Floats(), y.Floats()
		data := make([]float64, m*n)
		for i := int64(0); i < m; i++ {
			for j := int64(0); j < n; j++ {
				acc := float64(0)
				for p := int64(0); p < k; p++ {
					acc += xs[i*k+p] * ys[p*n+j]
				}
				data[i*n+j] = acc
			}
		}
		out, err := ir.NewTensor(x.DType(), shape, data)
		if err != nil {
			return nil, err
		}
		return []*ir.Constant{out}, nil
	case x.Ints() != nil && y.Ints() != nil:
		xs, ys := x.Ints(), y.Ints()
		data := make([]int64, m*n)
		for i := int64(0); i < m; i++ {
			for j := int64(0); j < n; j++ {
				acc := int64(0)
				for p := int64(0); p < k; p++ {
					acc += xs[i*k+p] * ys[p*n+j]
				}
				data[i*n+j] = acc
			}
		}
		out, err := ir.NewTensor(x.DType(), shape, data)
		if err != nil {
			return nil, err
		}
		return []*ir.Constant{out}, nil
	}
	return nil, ctx.Errorf("cannot fold %s operands", x.DType())
}

func reduceSpec(name string, mean bool) *Spec {
	return &Spec{
		Name: name,
		Inputs: []InputSpec{
			{Name: "x", Class: NumericTensor},
		},
		Attrs: []AttrSpec{
			{Name: "axes", Kind: KInts, Default: ir.IntsAttr(nil)},
			{Name: "keep_dims", Kind: KBool, Default: ir.BoolAttr(false)},
		},
		Infer: inferReduce,
		Fold: func(ctx *FoldContext) ([]*ir.Constant, error) {
			return foldReduce(ctx, mean)
		},
	}
}

func inferReduce(ctx *InferContext) ([]ir.Type, error) {
	x, err := ctx.Tensor("x")
	if err != nil {
		return nil, err
	}
	axes, err := ctx.IntsAttr("axes")
	if err != nil {
		return nil, err
	}
	keep, err := ctx.BoolAttr("keep_dims")
	if err != nil {
		return nil, err
	}
	reduced, err := reducedAxes(axes, x.Rank())
	if err != nil {
		return nil, ctx.Errorf("%s", err)
	}
	dims := ir.Shape{}
	for i, d := range x.Shape() {
		switch {
		case !reduced[i]:
			dims = append(dims, d)
		case keep:
			dims = append(dims, ir.ConcreteDim(1))
		}
	}
	return []ir.Type{ir.NewTensorType(x.DType(), dims)}, nil
}

// reducedAxes normalizes the reduction axes into a per-axis mask. No
// axis means reducing over all of them.
func reducedAxes(axes []int64, rank int) ([]bool, error) {
	reduced := make([]bool, rank)
	if len(axes) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
		return reduced, nil
	}
	for _, axis := range axes {
		axis, err := normalizeAxis(axis, rank)
		if err != nil {
			return nil, err
		}
		if reduced[axis] {
			return nil, irerr.Errorf(irerr.Pass, "axis %d reduced more than once", axis)
		}
		reduced[axis] = true
	}
	return reduced, nil
}

func foldReduce(ctx *FoldContext, mean bool) ([]*ir.Constant, error) {
	x := ctx.Const("x")
	axesAttr, _ := ctx.Attr("axes")
	keepAttr, _ := ctx.Attr("keep_dims")
	keep := bool(keepAttr.(ir.BoolAttr))
	src := staticDims(x)
	reduced, err := reducedAxes(axesAttr.(ir.IntsAttr), len(src))
	if err != nil {
		return nil, err
	}
	count := int64(1)
	var dims []int64
	dst := make([]int64, len(src))
	for i, d := range src {
		if reduced[i] {
			count *= d
			dst[i] = 1
			if keep {
				dims = append(dims, 1)
			}
			continue
		}
		dst[i] = d
		dims = append(dims, d)
	}
	if dims == nil {
		dims = []int64{}
	}
	shape := ir.StaticShape(dims...)
	// The kept-rank destination maps every source element to its
	// accumulator slot with the usual stride arithmetic.
	srcStrides := rowMajorStrides(src)
	dstStrides := rowMajorStrides(dst)
	n := int64(x.Len())
	slot := func(flat int64) int64 {
		dstFlat := int64(0)
		for axis := range src {
			if reduced[axis] {
				continue
			}
			idx := (flat / srcStrides[axis]) % src[axis]
			dstFlat += idx * dstStrides[axis]
		}
		return dstFlat
	}
	outLen := n / max(count, 1)
	if n == 0 {
		outLen = 0
	}
	switch {
	case x.Floats() != nil:
		data := make([]float64, outLen)
		for flat, v := range x.Floats() {
			data[slot(int64(flat))] += v
		}
		if mean {
			if count == 0 {
				return nil, ctx.Errorf("mean over an empty reduction")
			}
			for i := range data {
				data[i] /= float64(count)
			}
		}
		out, err := ir.NewTensor(x.DType(), shape, data)
		if err != nil {
			return nil, err
		}
		return []*ir.Constant{out}, nil
	case x.Ints() != nil:
		if mean {
			return nil, ctx.Errorf("cannot fold %s mean", x.DType())
		}
		data := make([]int64, outLen)
		for flat, v := range x.Ints() {
			data[slot(int64(flat))] += v
		}
		out, err := ir.NewTensor(x.DType(), shape, data)
		if err != nil {
			return nil, err
		}
		return []*ir.Constant{out}, nil
	}
	return nil, ctx.Errorf("cannot fold %s operands", x.DType())
}
