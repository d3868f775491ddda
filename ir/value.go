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
)

// Value is an immutable typed handle to a quantity produced in the
// graph. A value has exactly one producer: the operation returned by
// Def, or, when Def returns nil, the block declaring it as an input.
// Consumers are tracked so that passes can redirect or count uses.
type Value struct {
	id    int
	name  string
	typ   Type
	konst *Constant

	def   *Operation
	owner *Block

	uses      []*Operation
	blockUses []*Block
}

// ID returns the program-unique identifier of the value.
func (v *Value) ID() int { return v.id }

// Name of the value in the textual IR.
func (v *Value) Name() string { return v.name }

// Type of the value.
func (v *Value) Type() Type { return v.typ }

// Const returns the compile-time payload of the value, or nil if the
// value is not known at compile time.
func (v *Value) Const() *Constant { return v.konst }

// IsConst returns true if the value is known at compile time.
func (v *Value) IsConst() bool { return v.konst != nil }

// Def returns the operation producing the value, or nil for a
// function or block input.
func (v *Value) Def() *Operation { return v.def }

// Owner returns the block in whose scope the value is defined.
func (v *Value) Owner() *Block { return v.owner }

// Uses returns the operations consuming the value. An operation
// consuming the value on several input slots appears once per slot.
func (v *Value) Uses() []*Operation {
	return slices.Clone(v.uses)
}

// NumUses returns the number of consuming input slots plus the number
// of block output lists referencing the value.
func (v *Value) NumUses() int {
	return len(v.uses) + len(v.blockUses)
}

// Unused returns true if no operation and no block output references
// the value.
func (v *Value) Unused() bool {
	return len(v.uses) == 0 && len(v.blockUses) == 0
}

func (v *Value) addUse(op *Operation) {
	v.uses = append(v.uses, op)
}

// removeUse removes one consuming slot of an operation.
func (v *Value) removeUse(op *Operation) {
	i := slices.Index(v.uses, op)
	if i < 0 {
		return
	}
	v.uses = slices.Delete(v.uses, i, i+1)
}

func (v *Value) addBlockUse(b *Block) {
	v.blockUses = append(v.blockUses, b)
}

func (v *Value) removeBlockUse(b *Block) {
	i := slices.Index(v.blockUses, b)
	if i < 0 {
		return
	}
	v.blockUses = slices.Delete(v.blockUses, i, i+1)
}

// String representation of the value, for example %x: tensor<fp32, [2]>.
func (v *Value) String() string {
	return fmt.Sprintf("%%%s: %s", v.name, v.typ)
}
