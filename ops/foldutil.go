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

// broadcastStatic broadcasts two static dimension lists right to left.
func broadcastStatic(a, b []int64) ([]int64, error) {
	rank := max(len(a), len(b))
	r := make([]int64, rank)
	for i := 1; i <= rank; i++ {
		da, db := int64(1), int64(1)
		if i <= len(a) {
			da = a[len(a)-i]
		}
		if i <= len(b) {
			db = b[len(b)-i]
		}
		switch {
		case da == db, db == 1:
			r[rank-i] = da
		case da == 1:
			r[rank-i] = db
		default:
			return nil, irerr.Errorf(irerr.Pass, "dimensions %d and %d do not broadcast", da, db)
		}
	}
	return r, nil
}

// rowMajorStrides returns the row-major strides of a dimension list.
func rowMajorStrides(dims []int64) []int64 {
	strides := make([]int64, len(dims))
	stride := int64(1)
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= dims[i]
	}
	return strides
}

// broadcastOffsets returns, for every flat index of the result space,
// the flat index in a source of the given dimensions. The source rank
// may be lower than the result rank (missing leading axes) and axes
// of length 1 repeat.
func broadcastOffsets(result, src []int64) []int64 {
	srcStrides := rowMajorStrides(src)
	n := int64(1)
	for _, d := range result {
		n *= d
	}
	offsets := make([]int64, n)
	resStrides := rowMajorStrides(result)
	for flat := int64(0); flat < n; flat++ {
		srcFlat := int64(0)
		for axis := 1; axis <= len(src); axis++ {
			resAxis := len(result) - axis
			srcAxis := len(src) - axis
			idx := (flat / resStrides[resAxis]) % result[resAxis]
			if src[srcAxis] == 1 {
				idx = 0
			}
			srcFlat += idx * srcStrides[srcAxis]
		}
		offsets[flat] = srcFlat
	}
	return offsets
}

func staticDims(c *ir.Constant) []int64 {
	dims, _ := c.Shape().Static()
	return dims
}

type (
	intBinary   func(a, b int64) (int64, error)
	floatBinary func(a, b float64) (float64, error)
)

// foldNumericBinary folds an elementwise binary operator with
// broadcast over two numeric constants of the same data type.
func foldNumericBinary(x, y *ir.Constant, fi intBinary, ff floatBinary) (*ir.Constant, error) {
	if x.DType() != y.DType() {
		return nil, irerr.Errorf(irerr.Pass, "folding operands of data types %s and %s", x.DType(), y.DType())
	}
	rdims, err := broadcastStatic(staticDims(x), staticDims(y))
	if err != nil {
		return nil, err
	}
	xOff := broadcastOffsets(rdims, staticDims(x))
	yOff := broadcastOffsets(rdims, staticDims(y))
	shape := ir.StaticShape(rdims...)
	switch {
	case x.DType().IsFloat():
		if ff == nil {
			return nil, irerr.Errorf(irerr.Pass, "no float folder")
		}
		xs, ys := x.Floats(), y.Floats()
		data := make([]float64, len(xOff))
		for i := range data {
			if data[i], err = ff(xs[xOff[i]], ys[yOff[i]]); err != nil {
				return nil, err
			}
		}
		return ir.NewTensor(x.DType(), shape, data)
	case x.DType().IsInteger():
		if fi == nil {
			return nil, irerr.Errorf(irerr.Pass, "no integer folder")
		}
		xs, ys := x.Ints(), y.Ints()
		data := make([]int64, len(xOff))
		for i := range data {
			if data[i], err = fi(xs[xOff[i]], ys[yOff[i]]); err != nil {
				return nil, err
			}
		}
		return ir.NewTensor(x.DType(), shape, data)
	}
	return nil, irerr.Errorf(irerr.Pass, "cannot fold %s operands", x.DType())
}

// foldCompare folds an elementwise comparison with broadcast into a
// bool constant.
func foldCompare(x, y *ir.Constant, fi func(a, b int64) bool, ff func(a, b float64) bool) (*ir.Constant, error) {
	if x.DType() != y.DType() {
		return nil, irerr.Errorf(irerr.Pass, "folding operands of data types %s and %s", x.DType(), y.DType())
	}
	rdims, err := broadcastStatic(staticDims(x), staticDims(y))
	if err != nil {
		return nil, err
	}
	xOff := broadcastOffsets(rdims, staticDims(x))
	yOff := broadcastOffsets(rdims, staticDims(y))
	data := make([]bool, len(xOff))
	switch {
	case x.DType().IsFloat():
		xs, ys := x.Floats(), y.Floats()
		for i := range data {
			data[i] = ff(xs[xOff[i]], ys[yOff[i]])
		}
	case x.DType().IsInteger():
		xs, ys := x.Ints(), y.Ints()
		for i := range data {
			data[i] = fi(xs[xOff[i]], ys[yOff[i]])
		}
	default:
		return nil, irerr.Errorf(irerr.Pass, "cannot fold %s operands", x.DType())
	}
	return ir.NewTensor(dtype.Bool, ir.StaticShape(rdims...), data)
}

// foldFloatUnary folds an elementwise unary operator over a float
// constant.
func foldFloatUnary(x *ir.Constant, f func(float64) float64) (*ir.Constant, error) {
	xs := x.Floats()
	if xs == nil {
		return nil, irerr.Errorf(irerr.Pass, "cannot fold %s operand", x.DType())
	}
	data := make([]float64, len(xs))
	for i, v := range xs {
		data[i] = f(v)
	}
	return ir.NewTensor(x.DType(), x.Shape(), data)
}

// foldNumericUnary folds an elementwise unary operator over an
// integer or float constant.
func foldNumericUnary(x *ir.Constant, fi func(int64) int64, ff func(float64) float64) (*ir.Constant, error) {
	if ints := x.Ints(); ints != nil && fi != nil {
		data := make([]int64, len(ints))
		for i, v := range ints {
			data[i] = fi(v)
		}
		return ir.NewTensor(x.DType(), x.Shape(), data)
	}
	if ff != nil && x.Floats() != nil {
		return foldFloatUnary(x, ff)
	}
	return nil, irerr.Errorf(irerr.Pass, "cannot fold %s operand", x.DType())
}
