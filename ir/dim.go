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
	"strings"

	"github.com/mir-org/mir/ir/irerr"
)

type (
	// Dim is one dimension of a tensor shape: a concrete length,
	// a symbol, or a ranged symbol.
	Dim interface {
		dim()

		// IsStatic returns true if the dimension is a concrete length.
		IsStatic() bool

		// String representation of the dimension.
		String() string
	}

	// ConcreteDim is a dimension of known length.
	ConcreteDim int64

	// SymbolDim is a dimension of unknown length.
	SymbolDim struct {
		Sym *Symbol
	}

	// RangeDim is a dimension of unknown length constrained to
	// [Lower, Upper], with a default used when a concrete length is
	// needed and none has been bound. Upper may be Unbounded.
	RangeDim struct {
		Sym          *Symbol
		Lower, Upper int64
		Default      int64
	}
)

// Unbounded marks a RangeDim with no upper bound.
const Unbounded = int64(-1)

func (ConcreteDim) dim() {}
func (SymbolDim) dim()   {}
func (RangeDim) dim()    {}

// IsStatic returns true: a concrete dimension is always static.
func (ConcreteDim) IsStatic() bool { return true }

// IsStatic returns false: the length of a symbol is unknown.
func (SymbolDim) IsStatic() bool { return false }

// IsStatic returns false: the length of a ranged symbol is unknown.
func (RangeDim) IsStatic() bool { return false }

// String representation of the dimension.
func (d ConcreteDim) String() string { return fmt.Sprintf("%d", int64(d)) }

// String representation of the dimension.
func (d SymbolDim) String() string { return d.Sym.String() }

// String representation of the dimension.
func (d RangeDim) String() string {
	if d.Upper == Unbounded {
		return fmt.Sprintf("%s=%d..*", d.Sym, d.Lower)
	}
	return fmt.Sprintf("%s=%d..%d", d.Sym, d.Lower, d.Upper)
}

// NewDim returns a concrete dimension, checking it is non-negative.
func NewDim(n int64) (ConcreteDim, error) {
	if n < 0 {
		return 0, irerr.Errorf(irerr.Type, "dimension length %d is negative", n)
	}
	return ConcreteDim(n), nil
}

// NewRangeDim returns a ranged dimension backed by a fresh symbol of
// the pool. Upper may be Unbounded; the default must lie within the
// bounds.
func NewRangeDim(pool *Pool, lower, upper, deflt int64) (RangeDim, error) {
	if lower < 0 {
		return RangeDim{}, irerr.Errorf(irerr.Type, "range lower bound %d is negative", lower)
	}
	if upper != Unbounded && upper < lower {
		return RangeDim{}, irerr.Errorf(irerr.Type, "range upper bound %d is below lower bound %d", upper, lower)
	}
	if deflt < lower || (upper != Unbounded && deflt > upper) {
		return RangeDim{}, irerr.Errorf(irerr.Type, "range default %d outside of bounds [%d, %d]", deflt, lower, upper)
	}
	return RangeDim{Sym: pool.New(), Lower: lower, Upper: upper, Default: deflt}, nil
}

// contains returns true if a concrete length satisfies the bounds.
func (d RangeDim) contains(n int64) bool {
	if n < d.Lower {
		return false
	}
	return d.Upper == Unbounded || n <= d.Upper
}

// dimSymbol returns the symbol backing a dimension, or nil for a
// concrete dimension.
func dimSymbol(d Dim) *Symbol {
	switch dimT := d.(type) {
	case SymbolDim:
		return dimT.Sym
	case RangeDim:
		return dimT.Sym
	}
	return nil
}

// dimEqual returns true if two dimensions are literally equal:
// same concrete length or same backing symbol.
func dimEqual(a, b Dim) bool {
	switch aT := a.(type) {
	case ConcreteDim:
		bT, ok := b.(ConcreteDim)
		return ok && aT == bT
	default:
		sym := dimSymbol(a)
		return sym != nil && sym == dimSymbol(b)
	}
}

// Shape is the ordered dimensions of a tensor type.
type Shape []Dim

// StaticShape builds a shape of concrete dimensions.
func StaticShape(dims ...int64) Shape {
	shape := make(Shape, len(dims))
	for i, d := range dims {
		shape[i] = ConcreteDim(d)
	}
	return shape
}

// Rank of the shape.
func (s Shape) Rank() int { return len(s) }

// IsStatic returns true if every dimension is concrete.
func (s Shape) IsStatic() bool {
	for _, d := range s {
		if !d.IsStatic() {
			return false
		}
	}
	return true
}

// NumElements returns the total number of elements.
// The second result is false if the shape is not static.
func (s Shape) NumElements() (int64, bool) {
	n := int64(1)
	for _, d := range s {
		concrete, ok := d.(ConcreteDim)
		if !ok {
			return 0, false
		}
		n *= int64(concrete)
	}
	return n, true
}

// Equal returns true if both shapes are literally equal, that is
// every dimension pair has the same length or the same symbol.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i, d := range s {
		if !dimEqual(d, o[i]) {
			return false
		}
	}
	return true
}

// Static returns the concrete dimension lengths.
// The second result is false if the shape is not static.
func (s Shape) Static() ([]int64, bool) {
	dims := make([]int64, len(s))
	for i, d := range s {
		concrete, ok := d.(ConcreteDim)
		if !ok {
			return nil, false
		}
		dims[i] = int64(concrete)
	}
	return dims, true
}

// String representation of the shape, for example [2, is0, 1..8].
func (s Shape) String() string {
	ss := make([]string, len(s))
	for i, d := range s {
		ss[i] = d.String()
	}
	return "[" + strings.Join(ss, ", ") + "]"
}
