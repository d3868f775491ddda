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

package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mir-org/mir/ir/dtype"
	"github.com/mir-org/mir/ir/irerr"
)

// Constant is a compile-time tensor value. The payload is stored
// flattened in row-major order, one slice per scalar class:
// bools, int64 for all integer kinds, float64 for all float kinds,
// and strings. The nominal data type is kept separately so a fp16
// constant folds with fp16 semantics when serialized.
type Constant struct {
	dt    dtype.Kind
	shape Shape
	data  any
}

// NewTensor returns a constant given its data type, a static shape
// and a flat payload. The payload must be a []bool, []int64,
// []float64 or []string matching the class of the data type, with one
// element per shape element.
func NewTensor(dt dtype.Kind, shape Shape, data any) (*Constant, error) {
	n, static := shape.NumElements()
	if !static {
		return nil, irerr.Errorf(irerr.Type, "constant shape %s is not static", shape)
	}
	length, err := payloadLen(dt, data)
	if err != nil {
		return nil, err
	}
	if int64(length) != n {
		return nil, irerr.Errorf(irerr.Type, "constant payload has %d elements but shape %s wants %d", length, shape, n)
	}
	return &Constant{dt: dt, shape: shape, data: data}, nil
}

func payloadLen(dt dtype.Kind, data any) (int, error) {
	switch dataT := data.(type) {
	case []bool:
		if dt != dtype.Bool {
			break
		}
		return len(dataT), nil
	case []int64:
		if !dt.IsInteger() {
			break
		}
		return len(dataT), nil
	case []float64:
		if !dt.IsFloat() {
			break
		}
		return len(dataT), nil
	case []string:
		if dt != dtype.String {
			break
		}
		return len(dataT), nil
	}
	return 0, irerr.Errorf(irerr.Type, "constant payload %T does not match data type %s", data, dt)
}

// NewScalarBool returns a rank-0 bool constant.
func NewScalarBool(v bool) *Constant {
	return &Constant{dt: dtype.Bool, shape: Shape{}, data: []bool{v}}
}

// NewScalarInt returns a rank-0 integer constant of the given kind.
func NewScalarInt(v int64, dt dtype.Kind) (*Constant, error) {
	if !dt.IsInteger() {
		return nil, irerr.Errorf(irerr.Type, "%s is not an integer type", dt)
	}
	return &Constant{dt: dt, shape: Shape{}, data: []int64{v}}, nil
}

// NewScalarFloat returns a rank-0 float constant of the given kind.
func NewScalarFloat(v float64, dt dtype.Kind) (*Constant, error) {
	if !dt.IsFloat() {
		return nil, irerr.Errorf(irerr.Type, "%s is not a float type", dt)
	}
	return &Constant{dt: dt, shape: Shape{}, data: []float64{v}}, nil
}

// NewScalarString returns a rank-0 string constant.
func NewScalarString(v string) *Constant {
	return &Constant{dt: dtype.String, shape: Shape{}, data: []string{v}}
}

// DType returns the nominal data type of the constant.
func (c *Constant) DType() dtype.Kind { return c.dt }

// Shape of the constant. Always static.
func (c *Constant) Shape() Shape { return c.shape }

// Len returns the number of elements.
func (c *Constant) Len() int {
	n, _ := c.shape.NumElements()
	return int(n)
}

// TensorType returns the type of the constant.
func (c *Constant) TensorType() *TensorType {
	return NewTensorType(c.dt, c.shape)
}

// Bools returns the payload of a bool constant, or nil.
func (c *Constant) Bools() []bool {
	v, _ := c.data.([]bool)
	return v
}

// Ints returns the payload of an integer constant, or nil.
func (c *Constant) Ints() []int64 {
	v, _ := c.data.([]int64)
	return v
}

// Floats returns the payload of a float constant, or nil.
func (c *Constant) Floats() []float64 {
	v, _ := c.data.([]float64)
	return v
}

// Strings returns the payload of a string constant, or nil.
func (c *Constant) Strings() []string {
	v, _ := c.data.([]string)
	return v
}

// ScalarInt returns the value of a single-element integer constant.
func (c *Constant) ScalarInt() (int64, bool) {
	ints := c.Ints()
	if len(ints) != 1 {
		return 0, false
	}
	return ints[0], true
}

// ScalarFloat returns the value of a single-element float constant.
func (c *Constant) ScalarFloat() (float64, bool) {
	floats := c.Floats()
	if len(floats) != 1 {
		return 0, false
	}
	return floats[0], true
}

// ScalarBool returns the value of a single-element bool constant.
func (c *Constant) ScalarBool() (bool, bool) {
	bools := c.Bools()
	if len(bools) != 1 {
		return false, false
	}
	return bools[0], true
}

// Equal returns true if both constants have the same data type, shape
// and payload.
func (c *Constant) Equal(o *Constant) bool {
	if o == nil || c.dt != o.dt || !c.shape.Equal(o.shape) {
		return false
	}
	switch data := c.data.(type) {
	case []bool:
		return slices.Equal(data, o.Bools())
	case []int64:
		return slices.Equal(data, o.Ints())
	case []float64:
		return slices.Equal(data, o.Floats())
	case []string:
		return slices.Equal(data, o.Strings())
	}
	return false
}

const maxConstantElements = 8

// String returns an abbreviated representation of the payload.
func (c *Constant) String() string {
	var elts []string
	appendElt := func(v any) bool {
		if len(elts) == maxConstantElements {
			elts = append(elts, "...")
			return false
		}
		elts = append(elts, fmt.Sprintf("%v", v))
		return true
	}
	switch data := c.data.(type) {
	case []bool:
		for _, v := range data {
			if !appendElt(v) {
				break
			}
		}
	case []int64:
		for _, v := range data {
			if !appendElt(v) {
				break
			}
		}
	case []float64:
		for _, v := range data {
			if !appendElt(v) {
				break
			}
		}
	case []string:
		for _, v := range data {
			if !appendElt(fmt.Sprintf("%q", v)) {
				break
			}
		}
	}
	if c.shape.Rank() == 0 && len(elts) == 1 {
		return elts[0]
	}
	return "(" + strings.Join(elts, ", ") + ")"
}
