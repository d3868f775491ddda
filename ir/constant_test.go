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

package ir_test

import (
	"testing"

	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/dtype"
)

func TestNewTensor(t *testing.T) {
	pool := ir.NewPool()
	tests := []struct {
		dt    dtype.Kind
		shape ir.Shape
		data  any
		ok    bool
	}{
		{dt: dtype.Float32, shape: ir.StaticShape(2, 2), data: []float64{1, 2, 3, 4}, ok: true},
		{dt: dtype.Int64, shape: ir.StaticShape(3), data: []int64{1, 2, 3}, ok: true},
		{dt: dtype.Bool, shape: ir.Shape{}, data: []bool{true}, ok: true},
		{dt: dtype.String, shape: ir.StaticShape(1), data: []string{"a"}, ok: true},
		// Payload length must match the shape.
		{dt: dtype.Float32, shape: ir.StaticShape(2, 2), data: []float64{1, 2}, ok: false},
		// Payload class must match the data type.
		{dt: dtype.Float32, shape: ir.StaticShape(2), data: []int64{1, 2}, ok: false},
		// Constants have static shapes.
		{dt: dtype.Float32, shape: ir.Shape{ir.SymbolDim{Sym: pool.New()}}, data: []float64{1}, ok: false},
	}
	for ti, test := range tests {
		_, err := ir.NewTensor(test.dt, test.shape, test.data)
		if (err == nil) != test.ok {
			t.Errorf("test %d: got error %v but want ok=%v", ti, err, test.ok)
		}
	}
}

func TestConstantEqual(t *testing.T) {
	mk := func(dt dtype.Kind, shape ir.Shape, data any) *ir.Constant {
		c, err := ir.NewTensor(dt, shape, data)
		if err != nil {
			t.Fatal(err)
		}
		return c
	}
	a := mk(dtype.Float32, ir.StaticShape(2), []float64{1, 2})
	tests := []struct {
		b    *ir.Constant
		want bool
	}{
		{b: mk(dtype.Float32, ir.StaticShape(2), []float64{1, 2}), want: true},
		{b: mk(dtype.Float32, ir.StaticShape(2), []float64{1, 3}), want: false},
		{b: mk(dtype.Float64, ir.StaticShape(2), []float64{1, 2}), want: false},
		{b: mk(dtype.Float32, ir.StaticShape(2, 1), []float64{1, 2}), want: false},
		{b: nil, want: false},
	}
	for ti, test := range tests {
		if got := a.Equal(test.b); got != test.want {
			t.Errorf("test %d: got %v but want %v", ti, got, test.want)
		}
	}
}

func TestConstantString(t *testing.T) {
	scalar, err := ir.NewScalarInt(42, dtype.Int32)
	if err != nil {
		t.Fatal(err)
	}
	if got := scalar.String(); got != "42" {
		t.Errorf("got %s but want 42", got)
	}
	long, err := ir.NewTensor(dtype.Int32, ir.StaticShape(10),
		[]int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	if err != nil {
		t.Fatal(err)
	}
	if got := long.String(); got != "(0, 1, 2, 3, 4, 5, 6, 7, ...)" {
		t.Errorf("long constant prints as %s", got)
	}
}

func TestScalarConstructors(t *testing.T) {
	if _, err := ir.NewScalarInt(1, dtype.Float32); err == nil {
		t.Errorf("float kind accepted for an integer scalar")
	}
	if _, err := ir.NewScalarFloat(1, dtype.Int32); err == nil {
		t.Errorf("integer kind accepted for a float scalar")
	}
	b := ir.NewScalarBool(true)
	if v, ok := b.ScalarBool(); !ok || !v {
		t.Errorf("got %v, %v but want true, true", v, ok)
	}
	f, err := ir.NewScalarFloat(2.5, dtype.Float16)
	if err != nil {
		t.Fatal(err)
	}
	if f.TensorType().String() != "tensor<fp16, []>" {
		t.Errorf("got type %s but want tensor<fp16, []>", f.TensorType())
	}
}
