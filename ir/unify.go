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
	"github.com/mir-org/mir/ir/irerr"
)

// Unifier holds the symbol bindings accumulated during one type
// inference call. Bindings never outlive the unifier: a symbol bound
// to a concrete length here keeps its symbolic identity everywhere
// else in the program.
type Unifier struct {
	bound map[*Symbol]Dim
}

// NewUnifier returns a unifier with no binding.
func NewUnifier() *Unifier {
	return &Unifier{bound: make(map[*Symbol]Dim)}
}

// Resolve follows the bindings of a dimension until reaching a
// concrete dimension or an unbound symbol. A range narrowed by
// aliasing binds its own symbol to the narrowed bounds, which is
// where the chain stops.
func (u *Unifier) Resolve(d Dim) Dim {
	for {
		sym := dimSymbol(d)
		if sym == nil {
			return d
		}
		next, ok := u.bound[sym]
		if !ok {
			return d
		}
		if dimSymbol(next) == sym {
			return next
		}
		d = next
	}
}

// Apply substitutes the bindings of the unifier in a shape.
func (u *Unifier) Apply(s Shape) Shape {
	r := make(Shape, len(s))
	for i, d := range s {
		r[i] = u.Resolve(d)
	}
	return r
}

func (u *Unifier) bind(sym *Symbol, to Dim) {
	u.bound[sym] = to
}

// bindConcrete binds a symbolic dimension to a concrete length,
// checking range bounds.
func (u *Unifier) bindConcrete(d Dim, n ConcreteDim) (Dim, error) {
	if ranged, ok := d.(RangeDim); ok && !ranged.contains(int64(n)) {
		return nil, irerr.Errorf(irerr.Type, "dimension length %d outside of the bounds of %s", int64(n), ranged)
	}
	u.bind(dimSymbol(d), n)
	return n, nil
}

// UnifyDim unifies two dimensions, binding symbols as needed.
// Both dimensions are resolved against the current bindings first.
func (u *Unifier) UnifyDim(a, b Dim) (Dim, error) {
	a, b = u.Resolve(a), u.Resolve(b)
	aC, aConcrete := a.(ConcreteDim)
	bC, bConcrete := b.(ConcreteDim)
	switch {
	case aConcrete && bConcrete:
		if aC != bC {
			return nil, irerr.Errorf(irerr.Type, "dimension mismatch: %d and %d", int64(aC), int64(bC))
		}
		return aC, nil
	case bConcrete:
		return u.bindConcrete(a, bC)
	case aConcrete:
		return u.bindConcrete(b, aC)
	}
	if dimSymbol(a) == dimSymbol(b) {
		return a, nil
	}
	return u.alias(a, b)
}

// alias binds one symbolic dimension to the other, preferring to keep
// the more constrained of the two.
func (u *Unifier) alias(a, b Dim) (Dim, error) {
	aR, aRanged := a.(RangeDim)
	bR, bRanged := b.(RangeDim)
	if aRanged && bRanged {
		merged, err := intersectRanges(aR, bR)
		if err != nil {
			return nil, err
		}
		// Both symbols resolve to the intersected bounds, so a later
		// concrete binding is checked against both ranges.
		u.bind(aR.Sym, merged)
		u.bind(bR.Sym, merged)
		return merged, nil
	}
	if aRanged && !bRanged {
		u.bind(dimSymbol(b), a)
		return a, nil
	}
	u.bind(dimSymbol(a), b)
	return b, nil
}

// intersectRanges narrows two aliased ranges to their intersection,
// keeping the symbol of the first. The intersection must be
// satisfiable.
func intersectRanges(a, b RangeDim) (RangeDim, error) {
	lower := max(a.Lower, b.Lower)
	upper := a.Upper
	if upper == Unbounded || (b.Upper != Unbounded && b.Upper < upper) {
		upper = b.Upper
	}
	if upper != Unbounded && lower > upper {
		return RangeDim{}, irerr.Errorf(irerr.Type, "disjoint dimension ranges %s and %s", a, b)
	}
	deflt := a.Default
	if deflt < lower {
		deflt = lower
	}
	if upper != Unbounded && deflt > upper {
		deflt = upper
	}
	return RangeDim{Sym: a.Sym, Lower: lower, Upper: upper, Default: deflt}, nil
}

// UnifyShape unifies two shapes dimension by dimension.
// Ranks must match; use Broadcast for rank-extending semantics.
func (u *Unifier) UnifyShape(a, b Shape) (Shape, error) {
	if len(a) != len(b) {
		return nil, irerr.Errorf(irerr.Type, "rank mismatch: %s and %s", a, b)
	}
	r := make(Shape, len(a))
	for i := range a {
		d, err := u.UnifyDim(a[i], b[i])
		if err != nil {
			return nil, irerr.Wrapf(err, "cannot unify shape %s with %s at axis %d", a, b, i)
		}
		r[i] = d
	}
	return r, nil
}

// Unify returns the type two types agree on, binding symbolic
// dimensions in the unifier. Scalar types unify only when identical:
// numeric promotion is a builder policy, not a type system rule.
func Unify(u *Unifier, a, b Type) (Type, error) {
	switch aT := a.(type) {
	case *Scalar:
		if aT.Equal(b) {
			return a, nil
		}
	case *TensorType:
		bT, ok := b.(*TensorType)
		if !ok {
			break
		}
		if aT.dt != bT.dt {
			return nil, irerr.Errorf(irerr.Type, "element type mismatch: %s and %s", aT.dt, bT.dt)
		}
		dims, err := u.UnifyShape(aT.dims, bT.dims)
		if err != nil {
			return nil, err
		}
		return NewTensorType(aT.dt, dims), nil
	case *StateType:
		bT, ok := b.(*StateType)
		if !ok {
			break
		}
		wrapped, err := Unify(u, aT.wrapped, bT.wrapped)
		if err != nil {
			return nil, err
		}
		return NewStateType(wrapped.(*TensorType)), nil
	case *ListType:
		bT, ok := b.(*ListType)
		if !ok {
			break
		}
		return unifyList(u, aT, bT)
	}
	return nil, irerr.Errorf(irerr.Type, "cannot unify type %s with %s", a, b)
}

func unifyList(u *Unifier, a, b *ListType) (Type, error) {
	elem, err := Unify(u, a.elem, b.elem)
	if err != nil {
		return nil, err
	}
	// A dynamic length unifies with anything.
	length := a.length
	switch {
	case a.length == nil:
		length = b.length
	case b.length == nil:
	default:
		length, err = u.UnifyDim(a.length, b.length)
		if err != nil {
			return nil, irerr.Wrapf(err, "cannot unify list length")
		}
	}
	return NewListType(elem, length), nil
}
