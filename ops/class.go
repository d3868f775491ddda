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
)

// TypeClass is the constraint an input schema puts on a slot.
type TypeClass struct {
	name  string
	check func(ir.Type) bool
}

// String returns the name of the class, used in schema errors.
func (c *TypeClass) String() string { return c.name }

// Check returns true if a type belongs to the class.
func (c *TypeClass) Check(t ir.Type) bool { return c.check(t) }

func tensorClass(name string, check func(*ir.TensorType) bool) *TypeClass {
	return &TypeClass{name: name, check: func(t ir.Type) bool {
		tt, ok := ir.TensorOf(t)
		return ok && check(tt)
	}}
}

// Input slot classes of the built-in operators.
var (
	// Any accepts every type.
	Any = &TypeClass{name: "any", check: func(ir.Type) bool { return true }}

	// AnyTensor accepts tensors and scalars of every data type.
	AnyTensor = tensorClass("tensor", func(*ir.TensorType) bool { return true })

	// NumericTensor accepts tensors of integer or float elements.
	NumericTensor = tensorClass("numeric tensor", func(t *ir.TensorType) bool {
		return t.DType().IsNumeric()
	})

	// FloatTensor accepts tensors of float elements.
	FloatTensor = tensorClass("float tensor", func(t *ir.TensorType) bool {
		return t.DType().IsFloat()
	})

	// BoolTensor accepts tensors of bool elements.
	BoolTensor = tensorClass("bool tensor", func(t *ir.TensorType) bool {
		return t.DType() == dtype.Bool
	})

	// IntTensor accepts 1-D tensors of integer elements, for example
	// the target shape of a reshape.
	IntTensor = tensorClass("integer tensor", func(t *ir.TensorType) bool {
		return t.DType().IsInteger()
	})

	// AnyState accepts state types.
	AnyState = &TypeClass{name: "state", check: func(t ir.Type) bool {
		_, ok := t.(*ir.StateType)
		return ok
	}}

	// AnyList accepts list types.
	AnyList = &TypeClass{name: "list", check: func(t ir.Type) bool {
		_, ok := t.(*ir.ListType)
		return ok
	}}
)
