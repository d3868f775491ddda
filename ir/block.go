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
	"slices"

	"github.com/mir-org/mir/ir/irerr"
)

// Block is an ordered list of operations with its own value scope.
// The top-level block of a function declares the function inputs; a
// nested block belongs to a control-flow operation and may declare
// block-local inputs (loop variables). A block designates some of the
// values visible in it as its outputs.
type Block struct {
	fn    *Function
	owner *Operation
	encl  *Block

	inputs  []*Value
	ops     []*Operation
	outputs []*Value
}

// Function owning the block.
func (b *Block) Function() *Function { return b.fn }

// Owner returns the control-flow operation holding the block, or nil
// for the top-level block of a function.
func (b *Block) Owner() *Operation { return b.owner }

// Enclosing returns the lexically enclosing block, or nil for the
// top-level block of a function.
func (b *Block) Enclosing() *Block { return b.encl }

// NewBlock creates a nested block enclosed in this one. The block
// becomes owned by a control-flow operation when passed to it in a
// BlocksAttr.
func (b *Block) NewBlock() *Block {
	return &Block{fn: b.fn, encl: b}
}

// AddInput declares a block-local input value.
func (b *Block) AddInput(name string, typ Type) (*Value, error) {
	if typ == nil {
		return nil, irerr.Errorf(irerr.Schema, "input %s has no type", name)
	}
	v := b.fn.prog.newValue(name, typ, nil, nil, b)
	b.inputs = append(b.inputs, v)
	return v, nil
}

// Inputs returns the declared input values of the block.
func (b *Block) Inputs() []*Value {
	return slices.Clone(b.inputs)
}

// Ops returns the operations of the block in order. The returned
// slice is a copy: removing operations while ranging over it is safe.
func (b *Block) Ops() []*Operation {
	return slices.Clone(b.ops)
}

// NumOps returns the number of operations in the block.
func (b *Block) NumOps() int { return len(b.ops) }

// Outputs returns the designated output values of the block.
func (b *Block) Outputs() []*Value {
	return slices.Clone(b.outputs)
}

// SetOutputs designates the output values of the block. Every output
// must be visible in the block scope.
func (b *Block) SetOutputs(outs ...*Value) error {
	for _, out := range outs {
		if !b.Visible(out) {
			return irerr.Errorf(irerr.Name, "value %%%s is not visible in the block", out.Name())
		}
	}
	for _, out := range b.outputs {
		out.removeBlockUse(b)
	}
	b.outputs = slices.Clone(outs)
	for _, out := range outs {
		out.addBlockUse(b)
	}
	return nil
}

// Visible returns true if a value can be referenced from operations
// of this block: the value is scoped to this block or to a block
// enclosing it.
func (b *Block) Visible(v *Value) bool {
	for scope := b; scope != nil; scope = scope.enclosingScope() {
		if v.owner == scope {
			return true
		}
	}
	return false
}

// enclosingScope returns the block enclosing this one: the lexical
// parent when set, else the block holding the owner operation.
func (b *Block) enclosingScope() *Block {
	if b.encl != nil {
		return b.encl
	}
	if b.owner != nil {
		return b.owner.block
	}
	return nil
}

// Append adds an operation at the end of the block. The operation
// must have been created for this block and its inputs must be
// visible here.
func (b *Block) Append(op *Operation) error {
	return b.insert(op, len(b.ops))
}

// InsertBefore adds an operation before another operation of the
// block.
func (b *Block) InsertBefore(op, pos *Operation) error {
	i := slices.Index(b.ops, pos)
	if i < 0 {
		return irerr.Errorf(irerr.GraphInvariant, "operation %s is not in the block", pos.Name())
	}
	return b.insert(op, i)
}

func (b *Block) insert(op *Operation, at int) error {
	if op.block != b {
		return irerr.Errorf(irerr.GraphInvariant, "operation %s belongs to another block", op.Name())
	}
	if slices.Contains(b.ops, op) {
		return irerr.Errorf(irerr.GraphInvariant, "operation %s is already in the block", op.Name())
	}
	for _, arg := range op.args {
		if !b.Visible(arg.Value) {
			return irerr.Errorf(irerr.Name, "operation %s: value %%%s is not visible in the block", op.Name(), arg.Value.Name())
		}
	}
	b.ops = slices.Insert(b.ops, at, op)
	return nil
}

// Remove deletes an operation from the block. All its outputs must be
// unused; inputs are unregistered from use lists.
func (b *Block) Remove(op *Operation) error {
	i := slices.Index(b.ops, op)
	if i < 0 {
		return irerr.Errorf(irerr.GraphInvariant, "operation %s is not in the block", op.Name())
	}
	for _, out := range op.outs {
		if !out.Unused() {
			return irerr.Errorf(irerr.GraphInvariant, "cannot remove %s: output %%%s still has %d uses", op.Name(), out.Name(), out.NumUses())
		}
	}
	// Unlinking recurses into sub-blocks so values defined outside
	// them lose their nested consumers too.
	removeOpLinks(op)
	b.ops = slices.Delete(b.ops, i, i+1)
	return nil
}

func removeOpLinks(op *Operation) {
	op.unlink()
	for _, sub := range op.Blocks() {
		for _, subOp := range sub.ops {
			removeOpLinks(subOp)
		}
	}
}
