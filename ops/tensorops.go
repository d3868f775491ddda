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
	"slices"

	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/dtype"
	"github.com/mir-org/mir/ir/irerr"
)

func registerTensorOps(r *Registry) {
	r.MustRegister(constSpec())
	r.MustRegister(castSpec())
	r.MustRegister(reshapeSpec())
	r.MustRegister(transposeSpec())
	r.MustRegister(squeezeSpec())
	r.MustRegister(expandDimsSpec())
	r.MustRegister(concatSpec())
	r.MustRegister(shapeSpec())
}

// constSpec returns the operator materializing a compile-time
// constant in the graph. Constant folding rewrites folded operations
// into const operations, making const the anchor of all compile-time
// values.
func constSpec() *Spec {
	return &Spec{
		Name: "const",
		Attrs: []AttrSpec{
			{Name: "val", Kind: KConst},
		},
		Infer: func(ctx *InferContext) ([]ir.Type, error) {
			val, err := ctx.ConstAttr("val")
			if err != nil {
				return nil, err
			}
			return []ir.Type{val.TensorType()}, nil
		},
		Fold: func(ctx *FoldContext) ([]*ir.Constant, error) {
			val, _ := ctx.Attr("val")
			return []*ir.Constant{val.(ir.ConstAttr).Val}, nil
		},
	}
}

func castSpec() *Spec {
	return &Spec{
		Name: "cast",
		Inputs: []InputSpec{
			{Name: "x", Class: AnyTensor},
		},
		Attrs: []AttrSpec{
			{Name: "dtype", Kind: KString},
		},
		Infer: func(ctx *InferContext) ([]ir.Type, error) {
			x, err := ctx.Tensor("x")
			if err != nil {
				return nil, err
			}
			name, err := ctx.StringAttr("dtype")
			if err != nil {
				return nil, err
			}
			dt := dtype.KindFromString(name)
			if dt == dtype.Invalid {
				return nil, ctx.Errorf("unknown data type %q", name)
			}
			return []ir.Type{ir.NewTensorType(dt, x.Shape())}, nil
		},
		Fold: func(ctx *FoldContext) ([]*ir.Constant, error) {
			name, _ := ctx.Attr("dtype")
			dt := dtype.KindFromString(string(name.(ir.StringAttr)))
			out, err := castConstant(ctx.Const("x"), dt)
			if err != nil {
				return nil, err
			}
			return []*ir.Constant{out}, nil
		},
	}
}

// castConstant converts the payload of a constant to another numeric
// or bool data type. String casts are not folded.
func castConstant(x *ir.Constant, dt dtype.Kind) (*ir.Constant, error) {
	if dt == x.DType() {
		return x, nil
	}
	n := x.Len()
	switch {
	case dt.IsFloat():
		data := make([]float64, n)
		switch {
		case x.Floats() != nil:
			copy(data, x.Floats())
		case x.Ints() != nil:
			for i, v := range x.Ints() {
				data[i] = float64(v)
			}
		case x.Bools() != nil:
			for i, v := range x.Bools() {
				if v {
					data[i] = 1
				}
			}
		default:
			return nil, castError(x, dt)
		}
		return ir.NewTensor(dt, x.Shape(), data)
	case dt.IsInteger():
		data := make([]int64, n)
		switch {
		case x.Ints() != nil:
			copy(data, x.Ints())
		case x.Floats() != nil:
			for i, v := range x.Floats() {
				data[i] = int64(v)
			}
		case x.Bools() != nil:
			for i, v := range x.Bools() {
				if v {
					data[i] = 1
				}
			}
		default:
			return nil, castError(x, dt)
		}
		return ir.NewTensor(dt, x.Shape(), data)
	case dt == dtype.Bool:
		data := make([]bool, n)
		switch {
		case x.Ints() != nil:
			for i, v := range x.Ints() {
				data[i] = v != 0
			}
		case x.Floats() != nil:
			for i, v := range x.Floats() {
				data[i] = v != 0
			}
		default:
			return nil, castError(x, dt)
		}
		return ir.NewTensor(dt, x.Shape(), data)
	}
	return nil, castError(x, dt)
}

func castError(x *ir.Constant, dt dtype.Kind) error {
	return irerr.Errorf(irerr.Pass, "cannot fold cast from %s to %s", x.DType(), dt)
}

func reshapeSpec() *Spec {
	return &Spec{
		Name: "reshape",
		Inputs: []InputSpec{
			{Name: "x", Class: AnyTensor},
			{Name: "shape", Class: IntTensor, Const: true},
		},
		Infer: func(ctx *InferContext) ([]ir.Type, error) {
			x, err := ctx.Tensor("x")
			if err != nil {
				return nil, err
			}
			target := ctx.Const("shape").Ints()
			dims, err := reshapeDims(ctx, x, target)
			if err != nil {
				return nil, err
			}
			return []ir.Type{ir.NewTensorType(x.DType(), dims)}, nil
		},
		Fold: func(ctx *FoldContext) ([]*ir.Constant, error) {
			x := ctx.Const("x")
			target := slices.Clone(ctx.Const("shape").Ints())
			if err := resolveWildcard(target, int64(x.Len())); err != nil {
				return nil, err
			}
			out, err := ir.NewTensor(x.DType(), ir.StaticShape(target...), payloadOf(x))
			if err != nil {
				return nil, err
			}
			return []*ir.Constant{out}, nil
		},
	}
}

// reshapeDims computes the result shape of a reshape. At most one -1
// entry is inferred from the input size; when the input shape is
// symbolic the inferred dimension becomes a fresh symbol.
func reshapeDims(ctx *InferContext, x *ir.TensorType, target []int64) (ir.Shape, error) {
	wildcard := -1
	known := int64(1)
	for i, d := range target {
		switch {
		case d == -1:
			if wildcard >= 0 {
				return nil, ctx.Errorf("reshape target %v has more than one -1 entry", target)
			}
			wildcard = i
		case d <= 0:
			return nil, ctx.Errorf("reshape target dimension %d is not positive", d)
		default:
			known *= d
		}
	}
	total, static := x.Shape().NumElements()
	dims := ir.StaticShape(target...)
	if wildcard < 0 {
		if static && total != known {
			return nil, ctx.Errorf("cannot reshape %d elements into shape %v", total, target)
		}
		return dims, nil
	}
	if !static {
		dims[wildcard] = ir.SymbolDim{Sym: ctx.Pool().New()}
		return dims, nil
	}
	if known == 0 || total%known != 0 {
		return nil, ctx.Errorf("cannot reshape %d elements into shape %v", total, target)
	}
	dims[wildcard] = ir.ConcreteDim(total / known)
	return dims, nil
}

// resolveWildcard replaces the -1 entry of a static reshape target
// with the inferred dimension.
func resolveWildcard(target []int64, total int64) error {
	wildcard := -1
	known := int64(1)
	for i, d := range target {
		if d == -1 {
			wildcard = i
			continue
		}
		known *= d
	}
	if wildcard < 0 {
		return nil
	}
	if known == 0 || total%known != 0 {
		return irerr.Errorf(irerr.Pass, "cannot reshape %d elements into shape %v", total, target)
	}
	target[wildcard] = total / known
	return nil
}

// payloadOf returns the flat payload slice of a constant.
func payloadOf(c *ir.Constant) any {
	switch {
	case c.Bools() != nil:
		return c.Bools()
	case c.Ints() != nil:
		return c.Ints()
	case c.Floats() != nil:
		return c.Floats()
	default:
		return c.Strings()
	}
}

func transposeSpec() *Spec {
	return &Spec{
		Name: "transpose",
		Inputs: []InputSpec{
			{Name: "x", Class: AnyTensor},
		},
		Attrs: []AttrSpec{
			{Name: "perm", Kind: KInts},
		},
		Infer: func(ctx *InferContext) ([]ir.Type, error) {
			x, err := ctx.Tensor("x")
			if err != nil {
				return nil, err
			}
			perm, err := ctx.IntsAttr("perm")
			if err != nil {
				return nil, err
			}
			if err := checkPermutation(ctx, perm, x.Rank()); err != nil {
				return nil, err
			}
			dims := make(ir.Shape, len(perm))
			for i, p := range perm {
				dims[i] = x.Shape()[p]
			}
			return []ir.Type{ir.NewTensorType(x.DType(), dims)}, nil
		},
		Fold: func(ctx *FoldContext) ([]*ir.Constant, error) {
			perm, _ := ctx.Attr("perm")
			out, err := transposeConstant(ctx.Const("x"), perm.(ir.IntsAttr))
			if err != nil {
				return nil, err
			}
			return []*ir.Constant{out}, nil
		},
	}
}

func checkPermutation(ctx *InferContext, perm []int64, rank int) error {
	if len(perm) != rank {
		return ctx.Errorf("permutation %v does not match rank %d", perm, rank)
	}
	seen := make([]bool, rank)
	for _, p := range perm {
		if p < 0 || p >= int64(rank) || seen[p] {
			return ctx.Errorf("%v is not a permutation of rank %d", perm, rank)
		}
		seen[p] = true
	}
	return nil
}

func transposeConstant(x *ir.Constant, perm []int64) (*ir.Constant, error) {
	src := staticDims(x)
	dst := make([]int64, len(perm))
	for i, p := range perm {
		dst[i] = src[p]
	}
	srcStrides := rowMajorStrides(src)
	dstStrides := rowMajorStrides(dst)
	n := int64(x.Len())
	offsets := make([]int64, n)
	for flat := int64(0); flat < n; flat++ {
		srcFlat := int64(0)
		for axis := range dst {
			idx := (flat / dstStrides[axis]) % dst[axis]
			srcFlat += idx * srcStrides[perm[axis]]
		}
		offsets[flat] = srcFlat
	}
	shape := ir.StaticShape(dst...)
	switch {
	case x.Floats() != nil:
		return ir.NewTensor(x.DType(), shape, gatherData(x.Floats(), offsets))
	case x.Ints() != nil:
		return ir.NewTensor(x.DType(), shape, gatherData(x.Ints(), offsets))
	case x.Bools() != nil:
		return ir.NewTensor(x.DType(), shape, gatherData(x.Bools(), offsets))
	default:
		return ir.NewTensor(x.DType(), shape, gatherData(x.Strings(), offsets))
	}
}

func gatherData[T any](src []T, offsets []int64) []T {
	data := make([]T, len(offsets))
	for i, off := range offsets {
		data[i] = src[off]
	}
	return data
}

func squeezeSpec() *Spec {
	return &Spec{
		Name: "squeeze",
		Inputs: []InputSpec{
			{Name: "x", Class: AnyTensor},
		},
		Attrs: []AttrSpec{
			{Name: "axes", Kind: KInts, Default: ir.IntsAttr(nil)},
		},
		Infer: func(ctx *InferContext) ([]ir.Type, error) {
			x, err := ctx.Tensor("x")
			if err != nil {
				return nil, err
			}
			axes, err := ctx.IntsAttr("axes")
			if err != nil {
				return nil, err
			}
			dims, err := squeezeDims(ctx, x.Shape(), axes)
			if err != nil {
				return nil, err
			}
			return []ir.Type{ir.NewTensorType(x.DType(), dims)}, nil
		},
		Fold: foldReshapeLike(func(ctx *FoldContext, x *ir.Constant) (ir.Shape, error) {
			axes, _ := ctx.Attr("axes")
			dims, err := squeezeDims(nil, x.Shape(), axes.(ir.IntsAttr))
			if err != nil {
				return nil, err
			}
			return dims, nil
		}),
	}
}

// squeezeDims removes the given axes, which must have length 1, or
// every length-1 axis when no axis is given.
func squeezeDims(ctx *InferContext, shape ir.Shape, axes []int64) (ir.Shape, error) {
	errorf := func(format string, args ...any) error {
		if ctx != nil {
			return ctx.Errorf(format, args...)
		}
		return irerr.Errorf(irerr.Pass, format, args...)
	}
	if len(axes) == 0 {
		var dims ir.Shape
		for _, d := range shape {
			if c, ok := d.(ir.ConcreteDim); ok && c == 1 {
				continue
			}
			dims = append(dims, d)
		}
		if dims == nil {
			dims = ir.Shape{}
		}
		return dims, nil
	}
	remove := make([]bool, len(shape))
	for _, axis := range axes {
		axis, err := normalizeAxis(axis, len(shape))
		if err != nil {
			return nil, errorf("%s", err)
		}
		if c, ok := shape[axis].(ir.ConcreteDim); !ok || c != 1 {
			return nil, errorf("cannot squeeze axis %d of length %s", axis, shape[axis])
		}
		remove[axis] = true
	}
	dims := ir.Shape{}
	for i, d := range shape {
		if !remove[i] {
			dims = append(dims, d)
		}
	}
	return dims, nil
}

func expandDimsSpec() *Spec {
	return &Spec{
		Name: "expand_dims",
		Inputs: []InputSpec{
			{Name: "x", Class: AnyTensor},
		},
		Attrs: []AttrSpec{
			{Name: "axes", Kind: KInts},
		},
		Infer: func(ctx *InferContext) ([]ir.Type, error) {
			x, err := ctx.Tensor("x")
			if err != nil {
				return nil, err
			}
			axes, err := ctx.IntsAttr("axes")
			if err != nil {
				return nil, err
			}
			dims, err := expandDims(x.Shape(), axes)
			if err != nil {
				return nil, err
			}
			return []ir.Type{ir.NewTensorType(x.DType(), dims)}, nil
		},
		Fold: foldReshapeLike(func(ctx *FoldContext, x *ir.Constant) (ir.Shape, error) {
			axes, _ := ctx.Attr("axes")
			return expandDims(x.Shape(), axes.(ir.IntsAttr))
		}),
	}
}

// expandDims inserts length-1 axes at the given positions, counted in
// the result rank.
func expandDims(shape ir.Shape, axes []int64) (ir.Shape, error) {
	rank := len(shape) + len(axes)
	insert := make([]bool, rank)
	for _, axis := range axes {
		axis, err := normalizeAxis(axis, rank)
		if err != nil {
			return nil, err
		}
		if insert[axis] {
			return nil, irerr.Errorf(irerr.Pass, "axis %d inserted more than once", axis)
		}
		insert[axis] = true
	}
	dims := make(ir.Shape, 0, rank)
	next := 0
	for i := range rank {
		if insert[i] {
			dims = append(dims, ir.ConcreteDim(1))
			continue
		}
		dims = append(dims, shape[next])
		next++
	}
	return dims, nil
}

// foldReshapeLike folds operators that only reinterpret the shape of
// their input payload.
func foldReshapeLike(resultShape func(*FoldContext, *ir.Constant) (ir.Shape, error)) func(*FoldContext) ([]*ir.Constant, error) {
	return func(ctx *FoldContext) ([]*ir.Constant, error) {
		x := ctx.Const("x")
		dims, err := resultShape(ctx, x)
		if err != nil {
			return nil, err
		}
		out, err := ir.NewTensor(x.DType(), dims, payloadOf(x))
		if err != nil {
			return nil, err
		}
		return []*ir.Constant{out}, nil
	}
}

// normalizeAxis maps a possibly negative axis into [0, rank).
func normalizeAxis(axis int64, rank int) (int64, error) {
	if axis < 0 {
		axis += int64(rank)
	}
	if axis < 0 || axis >= int64(rank) {
		return 0, irerr.Errorf(irerr.Pass, "axis %d outside of rank %d", axis, rank)
	}
	return axis, nil
}

func concatSpec() *Spec {
	return &Spec{
		Name: "concat",
		Inputs: []InputSpec{
			{Name: "values", Class: AnyTensor, Variadic: true},
		},
		Attrs: []AttrSpec{
			{Name: "axis", Kind: KInt},
		},
		Infer: func(ctx *InferContext) ([]ir.Type, error) {
			return inferConcat(ctx)
		},
		Fold: func(ctx *FoldContext) ([]*ir.Constant, error) {
			return foldConcat(ctx)
		},
	}
}

func inferConcat(ctx *InferContext) ([]ir.Type, error) {
	types := ctx.Types("values")
	tensors := make([]*ir.TensorType, len(types))
	for i, t := range types {
		tt, ok := ir.TensorOf(t)
		if !ok {
			return nil, ctx.Errorf("input %d is not a tensor but a %s", i, t)
		}
		tensors[i] = tt
		if tt.DType() != tensors[0].DType() {
			return nil, ctx.Errorf("element type mismatch: input 0 is %s, input %d is %s", tensors[0].DType(), i, tt.DType())
		}
		if tt.Rank() != tensors[0].Rank() {
			return nil, ctx.Errorf("rank mismatch: input 0 is %s, input %d is %s", tensors[0].Shape(), i, tt.Shape())
		}
	}
	rank := tensors[0].Rank()
	axisAttr, err := ctx.IntAttr("axis")
	if err != nil {
		return nil, err
	}
	axis, err := normalizeAxis(axisAttr, rank)
	if err != nil {
		return nil, ctx.Errorf("%s", err)
	}
	dims := make(ir.Shape, rank)
	copy(dims, tensors[0].Shape())
	total := int64(0)
	static := true
	for _, tt := range tensors {
		for i, d := range tt.Shape() {
			if int64(i) == axis {
				if c, ok := d.(ir.ConcreteDim); ok {
					total += int64(c)
				} else {
					static = false
				}
				continue
			}
			dims[i], err = ctx.Unifier().UnifyDim(dims[i], d)
			if err != nil {
				return nil, err
			}
		}
	}
	if static {
		dims[axis] = ir.ConcreteDim(total)
	} else {
		dims[axis] = ir.SymbolDim{Sym: ctx.Pool().New()}
	}
	return []ir.Type{ir.NewTensorType(tensors[0].DType(), dims)}, nil
}

func foldConcat(ctx *FoldContext) ([]*ir.Constant, error) {
	consts := ctx.Consts("values")
	axisAttr, _ := ctx.Attr("axis")
	dims0 := staticDims(consts[0])
	axis, err := normalizeAxis(int64(axisAttr.(ir.IntAttr)), len(dims0))
	if err != nil {
		return nil, err
	}
	outer := int64(1)
	for _, d := range dims0[:axis] {
		outer *= d
	}
	inner := int64(1)
	for _, d := range dims0[axis+1:] {
		inner *= d
	}
	dims := slices.Clone(dims0)
	dims[axis] = 0
	for _, c := range consts {
		dims[axis] += staticDims(c)[axis]
	}
	shape := ir.StaticShape(dims...)
	var out *ir.Constant
	switch {
	case consts[0].Floats() != nil:
		out, err = concatParts(ctx, consts, shape, axis, outer, inner, (*ir.Constant).Floats)
	case consts[0].Ints() != nil:
		out, err = concatParts(ctx, consts, shape, axis, outer, inner, (*ir.Constant).Ints)
	case consts[0].Bools() != nil:
		out, err = concatParts(ctx, consts, shape, axis, outer, inner, (*ir.Constant).Bools)
	default:
		out, err = concatParts(ctx, consts, shape, axis, outer, inner, (*ir.Constant).Strings)
	}
	if err != nil {
		return nil, err
	}
	return []*ir.Constant{out}, nil
}

func concatParts[T any](ctx *FoldContext, consts []*ir.Constant, shape ir.Shape, axis, outer, inner int64, payload func(*ir.Constant) []T) (*ir.Constant, error) {
	var data []T
	for o := int64(0); o < outer; o++ {
		for _, c := range consts {
			part := payload(c)
			if part == nil {
				return nil, ctx.Errorf("concat operands have mixed payload classes")
			}
			chunk := staticDims(c)[axis] * inner
			data = append(data, part[o*chunk:(o+1)*chunk]...)
		}
	}
	return ir.NewTensor(consts[0].DType(), shape, data)
}

func shapeSpec() *Spec {
	return &Spec{
		Name: "shape",
		Inputs: []InputSpec{
			{Name: "x", Class: AnyTensor},
		},
		Infer: func(ctx *InferContext) ([]ir.Type, error) {
			x, err := ctx.Tensor("x")
			if err != nil {
				return nil, err
			}
			return []ir.Type{ir.NewTensorType(dtype.Int32, ir.StaticShape(int64(x.Rank())))}, nil
		},
		Fold: func(ctx *FoldContext) ([]*ir.Constant, error) {
			x := ctx.Const("x")
			dims := staticDims(x)
			out, err := ir.NewTensor(dtype.Int32, ir.StaticShape(int64(len(dims))), slices.Clone(dims))
			if err != nil {
				return nil, err
			}
			return []*ir.Constant{out}, nil
		},
		// The result needs only the input shape: a static type folds
		// even when the input value is unknown.
		FoldTypes: func(ctx *InferContext) ([]*ir.Constant, bool) {
			x, err := ctx.Tensor("x")
			if err != nil {
				return nil, false
			}
			dims, ok := x.Shape().Static()
			if !ok {
				return nil, false
			}
			out, err := ir.NewTensor(dtype.Int32, ir.StaticShape(int64(len(dims))), dims)
			if err != nil {
				return nil, false
			}
			return []*ir.Constant{out}, true
		},
	}
}
