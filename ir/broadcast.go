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

// Broadcast aligns two shapes right to left and returns the
// broadcast result shape. A missing leading dimension or a dimension
// of length 1 is compatible with anything; two differing concrete
// dimensions, neither of length 1, do not broadcast. A rank-0 shape
// broadcasts to the other shape unchanged.
//
// A symbolic dimension facing a concrete length other than 1 yields
// the concrete length without binding the symbol: at runtime the
// symbol may be either 1 or that length, and both broadcast. Two
// distinct unbound symbols facing each other are aliased in the
// unifier, as in Unify.
func Broadcast(u *Unifier, a, b Shape) (Shape, error) {
	rank := max(len(a), len(b))
	r := make(Shape, rank)
	for i := 1; i <= rank; i++ {
		var d Dim
		var err error
		switch {
		case i > len(a):
			d = u.Resolve(b[len(b)-i])
		case i > len(b):
			d = u.Resolve(a[len(a)-i])
		default:
			d, err = broadcastDim(u, a[len(a)-i], b[len(b)-i])
			if err != nil {
				return nil, irerr.Wrapf(err, "cannot broadcast %s with %s", a, b)
			}
		}
		r[rank-i] = d
	}
	return r, nil
}

func broadcastDim(u *Unifier, a, b Dim) (Dim, error) {
	a, b = u.Resolve(a), u.Resolve(b)
	aC, aConcrete := a.(ConcreteDim)
	bC, bConcrete := b.(ConcreteDim)
	switch {
	case aConcrete && aC == 1:
		return b, nil
	case bConcrete && bC == 1:
		return a, nil
	case aConcrete && bConcrete:
		if aC != bC {
			return nil, irerr.Errorf(irerr.Type, "dimensions %d and %d do not broadcast", int64(aC), int64(bC))
		}
		return aC, nil
	case aConcrete:
		return aC, nil
	case bConcrete:
		return bC, nil
	}
	if dimSymbol(a) == dimSymbol(b) {
		return a, nil
	}
	return u.alias(a, b)
}
