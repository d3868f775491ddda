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

// Argument is a named input of an operation. A variadic input slot is
// stored as consecutive arguments sharing the slot name.
type Argument struct {
	Name  string
	Value *Value
}

// Operation is a node of the graph: a registered operator applied to
// input values under attributes, producing output values.
//
// Operations are created by the builder package or by a pass rewrite;
// frontends never construct them directly.
type Operation struct {
	name  string
	args  []Argument
	attrs []Attribute
	outs  []*Value

	block      *Block
	sideEffect bool
}

// NewOperation creates an operation and its output values without
// appending it to a block. outTypes gives the type of each output;
// outConsts, when non-nil, gives the compile-time payload of each
// output (nil entries allowed).
//
// This is the low-level constructor used by the builder and by pass
// rewrites after schema validation and type inference; it performs
// neither. Frontends must go through builder.Builder.
func NewOperation(block *Block, name string, args []Argument, attrs []Attribute, outTypes []Type, outConsts []*Constant, sideEffect bool) (*Operation, error) {
	if block == nil {
		return nil, irerr.Errorf(irerr.GraphInvariant, "operation %s created without a block", name)
	}
	if outConsts != nil && len(outConsts) != len(outTypes) {
		return nil, irerr.Errorf(irerr.GraphInvariant, "operation %s: %d output constants for %d outputs", name, len(outConsts), len(outTypes))
	}
	op := &Operation{
		name:       name,
		args:       slices.Clone(args),
		attrs:      slices.Clone(attrs),
		block:      block,
		sideEffect: sideEffect,
	}
	prog := block.fn.prog
	op.outs = make([]*Value, len(outTypes))
	for i, typ := range outTypes {
		var konst *Constant
		if outConsts != nil {
			konst = outConsts[i]
		}
		op.outs[i] = prog.newValue(name, typ, konst, op, block)
	}
	for _, arg := range op.args {
		arg.Value.addUse(op)
	}
	for _, sub := range op.Blocks() {
		sub.owner = op
	}
	return op, nil
}

// Name of the operator.
func (op *Operation) Name() string { return op.name }

// Args returns the ordered named inputs.
func (op *Operation) Args() []Argument {
	return slices.Clone(op.args)
}

// Arg returns the first input bound to a slot name.
func (op *Operation) Arg(name string) (*Value, bool) {
	for _, arg := range op.args {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}

// ArgValues returns all the inputs bound to a slot name, in order.
// Used for variadic slots.
func (op *Operation) ArgValues(name string) []*Value {
	var vals []*Value
	for _, arg := range op.args {
		if arg.Name == name {
			vals = append(vals, arg.Value)
		}
	}
	return vals
}

// Attrs returns the ordered named attributes.
func (op *Operation) Attrs() []Attribute {
	return slices.Clone(op.attrs)
}

// Attr returns an attribute value given its name.
func (op *Operation) Attr(name string) (Attr, bool) {
	for _, attr := range op.attrs {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// Outputs returns the output values.
func (op *Operation) Outputs() []*Value {
	return slices.Clone(op.outs)
}

// Output returns the i-th output value.
func (op *Operation) Output(i int) *Value { return op.outs[i] }

// NumOutputs returns the number of output values.
func (op *Operation) NumOutputs() int { return len(op.outs) }

// Block returns the block owning the operation.
func (op *Operation) Block() *Block { return op.block }

// SideEffect returns true if the operation must be preserved even
// when its outputs are unused, for example a state write.
func (op *Operation) SideEffect() bool { return op.sideEffect }

// Blocks returns the sub-blocks of a control-flow operation, in
// attribute order. Empty for data operations.
func (op *Operation) Blocks() []*Block {
	var blocks []*Block
	for _, attr := range op.attrs {
		if sub, ok := attr.Value.(BlocksAttr); ok {
			blocks = append(blocks, sub.Blocks...)
		}
	}
	return blocks
}

// ReplaceInput replaces every occurrence of old in the input slots
// with repl, updating use lists. Returns the number of slots replaced.
func (op *Operation) ReplaceInput(old, repl *Value) int {
	n := 0
	for i, arg := range op.args {
		if arg.Value != old {
			continue
		}
		op.args[i].Value = repl
		old.removeUse(op)
		repl.addUse(op)
		n++
	}
	return n
}

// Discard unregisters an operation that was never inserted in its
// block, removing it from the use lists of its inputs, recursively
// through its sub-blocks. Discarding an inserted operation corrupts
// the graph; use Block.Remove instead.
func (op *Operation) Discard() {
	removeOpLinks(op)
}

// unlink removes the operation from the use lists of its inputs.
func (op *Operation) unlink() {
	for _, arg := range op.args {
		arg.Value.removeUse(op)
	}
}

// ReplaceAllUses redirects every consumer of old, including block
// output lists, to repl. The producer of old is left in place: callers
// typically remove it afterwards or let dead code elimination do it.
func ReplaceAllUses(old, repl *Value) {
	for _, op := range old.Uses() {
		op.ReplaceInput(old, repl)
	}
	for _, b := range slices.Clone(old.blockUses) {
		for i, out := range b.outputs {
			if out == old {
				b.outputs[i] = repl
				old.removeBlockUse(b)
				repl.addBlockUse(b)
			}
		}
	}
}
