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

	"github.com/mir-org/mir/ir/dtype"
)

// Type of a value in the graph.
type Type interface {
	typeNode()

	// Static returns true if the type carries no symbolic dimension.
	Static() bool

	// Equal returns true if both types are literally equal, with
	// symbolic dimensions compared by symbol identity.
	Equal(Type) bool

	// String representation of the type in the textual IR.
	String() string
}

// Scalar is the type of a single element, for example the predicate
// of a conditional.
type Scalar struct {
	kind dtype.Kind
}

var scalars [dtype.String + 1]*Scalar

func init() {
	for k := range scalars {
		scalars[k] = &Scalar{kind: dtype.Kind(k)}
	}
}

// ScalarType returns the singleton scalar type of a kind.
func ScalarType(k dtype.Kind) *Scalar {
	if int(k) >= len(scalars) {
		return scalars[dtype.Invalid]
	}
	return scalars[k]
}

func (*Scalar) typeNode() {}

// DType returns the data type of the scalar.
func (t *Scalar) DType() dtype.Kind { return t.kind }

// Static returns true: a scalar type has no dimension.
func (*Scalar) Static() bool { return true }

// Equal returns true if the other type is the same scalar type.
func (t *Scalar) Equal(o Type) bool {
	oT, ok := o.(*Scalar)
	return ok && t.kind == oT.kind
}

// String representation of the type.
func (t *Scalar) String() string { return t.kind.String() }

// TensorType is the type of a multi-dimensional array of one scalar
// data type. The shape may hold symbolic dimensions.
type TensorType struct {
	dt   dtype.Kind
	dims Shape
}

var _ Type = (*TensorType)(nil)

// NewTensorType returns a tensor type given an element type and a shape.
func NewTensorType(dt dtype.Kind, dims Shape) *TensorType {
	return &TensorType{dt: dt, dims: dims}
}

func (*TensorType) typeNode() {}

// DType returns the element data type.
func (t *TensorType) DType() dtype.Kind { return t.dt }

// Shape returns the dimensions of the tensor.
func (t *TensorType) Shape() Shape { return t.dims }

// Rank of the tensor.
func (t *TensorType) Rank() int { return len(t.dims) }

// Static returns true if every dimension is concrete.
func (t *TensorType) Static() bool { return t.dims.IsStatic() }

// Equal returns true if element types match and shapes are literally equal.
func (t *TensorType) Equal(o Type) bool {
	oT, ok := o.(*TensorType)
	return ok && t.dt == oT.dt && t.dims.Equal(oT.dims)
}

// String representation of the type, for example tensor<fp32, [2, is0]>.
func (t *TensorType) String() string {
	return fmt.Sprintf("tensor<%s, %s>", t.dt, t.dims)
}

// StateType wraps the tensor type of an externally persisted mutable
// buffer. It carries no shape of its own.
type StateType struct {
	wrapped *TensorType
}

var _ Type = (*StateType)(nil)

// NewStateType returns the state type wrapping a tensor type.
func NewStateType(wrapped *TensorType) *StateType {
	return &StateType{wrapped: wrapped}
}

func (*StateType) typeNode() {}

// Wrapped returns the tensor type stored in the state buffer.
func (t *StateType) Wrapped() *TensorType { return t.wrapped }

// Static returns true if the wrapped tensor type is static.
func (t *StateType) Static() bool { return t.wrapped.Static() }

// Equal returns true if both state types wrap equal tensor types.
func (t *StateType) Equal(o Type) bool {
	oT, ok := o.(*StateType)
	return ok && t.wrapped.Equal(oT.wrapped)
}

// String representation of the type.
func (t *StateType) String() string {
	return fmt.Sprintf("state<%s>", t.wrapped)
}

// ListType is the type of an ordered collection of values sharing one
// element type. A nil length marks a list of dynamic length.
type ListType struct {
	elem   Type
	length Dim
}

var _ Type = (*ListType)(nil)

// NewListType returns a list type. length may be nil for a list whose
// length is not known statically.
func NewListType(elem Type, length Dim) *ListType {
	return &ListType{elem: elem, length: length}
}

func (*ListType) typeNode() {}

// Elem returns the element type of the list.
func (t *ListType) Elem() Type { return t.elem }

// Length returns the length dimension of the list, or nil if dynamic.
func (t *ListType) Length() Dim { return t.length }

// Static returns true if the length is concrete and the element type
// is static.
func (t *ListType) Static() bool {
	return t.length != nil && t.length.IsStatic() && t.elem.Static()
}

// Equal returns true if element types and lengths are literally equal.
func (t *ListType) Equal(o Type) bool {
	oT, ok := o.(*ListType)
	if !ok || !t.elem.Equal(oT.elem) {
		return false
	}
	if t.length == nil || oT.length == nil {
		return t.length == oT.length
	}
	return dimEqual(t.length, oT.length)
}

// String representation of the type.
func (t *ListType) String() string {
	if t.length == nil {
		return fmt.Sprintf("list<%s, ?>", t.elem)
	}
	return fmt.Sprintf("list<%s, %s>", t.elem, t.length)
}

// TensorOf views a type as a tensor type: a scalar becomes a tensor of
// rank 0. The second result is false for state and list types.
func TensorOf(t Type) (*TensorType, bool) {
	switch tT := t.(type) {
	case *TensorType:
		return tT, true
	case *Scalar:
		return NewTensorType(tT.kind, Shape{}), true
	}
	return nil, false
}

// DTypeOf returns the scalar data type underlying a type: the element
// type of a tensor or list, the wrapped element type of a state.
func DTypeOf(t Type) dtype.Kind {
	switch tT := t.(type) {
	case *Scalar:
		return tT.kind
	case *TensorType:
		return tT.dt
	case *StateType:
		return tT.wrapped.dt
	case *ListType:
		return DTypeOf(tT.elem)
	}
	return dtype.Invalid
}
