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

// Package builder is the construction path for MIR programs.
//
// A Builder owns a program under construction and an insertion point,
// the block receiving the next operation. Every operation goes through
// the operator registry: schema validation, numeric promotion, type
// inference, then creation. A failing AddOperation never leaves a node
// in the graph, so frontends can recover and keep building.
package builder

import (
	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/dtype"
	"github.com/mir-org/mir/ir/irerr"
	"github.com/mir-org/mir/ops"
)

// Builder assembles a program operation by operation.
type Builder struct {
	prog *ir.Program
	reg  *ops.Registry

	fn *ir.Function
	// Insertion point stack: the bottom entry is the top-level block
	// of the current function, entries above it are open sub-blocks.
	stack []*ir.Block
}

// New returns a builder over an empty program, resolving operators
// against the default registry.
func New(programName string) *Builder {
	return NewWithRegistry(programName, ops.Default())
}

// NewWithRegistry returns a builder resolving operators against a
// custom registry.
func NewWithRegistry(programName string, reg *ops.Registry) *Builder {
	return &Builder{prog: ir.NewProgram(programName), reg: reg}
}

// Program returns the program under construction.
func (b *Builder) Program() *ir.Program { return b.prog }

// Registry returns the operator registry consulted by the builder.
func (b *Builder) Registry() *ops.Registry { return b.reg }

// NewFunction creates a function and moves the insertion point to its
// top-level block. An open sub-block of the previous function must be
// closed first.
func (b *Builder) NewFunction(name string) (*ir.Function, error) {
	if len(b.stack) > 1 {
		return nil, irerr.Errorf(irerr.Schema, "cannot start function %s: %d sub-blocks still open", name, len(b.stack)-1)
	}
	fn, err := b.prog.NewFunction(name)
	if err != nil {
		return nil, err
	}
	b.fn = fn
	b.stack = []*ir.Block{fn.Block()}
	return fn, nil
}

// SetFunction moves the insertion point to the top-level block of an
// existing function.
func (b *Builder) SetFunction(name string) error {
	if len(b.stack) > 1 {
		return irerr.Errorf(irerr.Schema, "cannot switch to function %s: %d sub-blocks still open", name, len(b.stack)-1)
	}
	fn, err := b.prog.Function(name)
	if err != nil {
		return err
	}
	b.fn = fn
	b.stack = []*ir.Block{fn.Block()}
	return nil
}

// Block returns the current insertion point.
func (b *Builder) Block() *ir.Block {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

func (b *Builder) block() (*ir.Block, error) {
	blk := b.Block()
	if blk == nil {
		return nil, irerr.Errorf(irerr.Schema, "no function under construction")
	}
	return blk, nil
}

// DeclareFunctionInput declares an input of the current function.
func (b *Builder) DeclareFunctionInput(name string, typ ir.Type) (*ir.Value, error) {
	if b.fn == nil {
		return nil, irerr.Errorf(irerr.Schema, "no function under construction")
	}
	return b.fn.Block().AddInput(name, typ)
}

// SetFunctionOutputs designates the outputs of the current function.
func (b *Builder) SetFunctionOutputs(outs ...*ir.Value) error {
	if b.fn == nil {
		return irerr.Errorf(irerr.Schema, "no function under construction")
	}
	return b.fn.Block().SetOutputs(outs...)
}

// DeclareState declares an externally persisted buffer of the program
// and exposes it to the current function as an input of state type.
func (b *Builder) DeclareState(name string, typ *ir.TensorType) (*ir.Value, error) {
	if b.fn == nil {
		return nil, irerr.Errorf(irerr.Schema, "no function under construction")
	}
	st, err := b.prog.DeclareState(name, typ)
	if err != nil {
		return nil, err
	}
	return b.fn.Block().AddInput(name, st)
}

// BeginBlock opens a sub-block nested in the insertion point and makes
// it the new insertion point. The block is handed to a control-flow
// operator through a blocks attribute once closed.
func (b *Builder) BeginBlock() (*ir.Block, error) {
	blk, err := b.block()
	if err != nil {
		return nil, err
	}
	sub := blk.NewBlock()
	b.stack = append(b.stack, sub)
	return sub, nil
}

// AddBlockInput declares a block-local input of the open sub-block,
// for example a loop variable.
func (b *Builder) AddBlockInput(name string, typ ir.Type) (*ir.Value, error) {
	if len(b.stack) < 2 {
		return nil, irerr.Errorf(irerr.Schema, "no open sub-block")
	}
	return b.Block().AddInput(name, typ)
}

// EndBlock designates the outputs of the open sub-block and moves the
// insertion point back to the enclosing block.
func (b *Builder) EndBlock(outs ...*ir.Value) (*ir.Block, error) {
	if len(b.stack) < 2 {
		return nil, irerr.Errorf(irerr.Schema, "no open sub-block")
	}
	sub := b.Block()
	if err := sub.SetOutputs(outs...); err != nil {
		return nil, err
	}
	b.stack = b.stack[:len(b.stack)-1]
	return sub, nil
}

// AddOperation validates, infers and appends an operation at the
// insertion point, returning its output values. Numeric arguments of
// promoting slots are widened to a common data type by inserting cast
// operations first.
func (b *Builder) AddOperation(name string, args []ir.Argument, attrs ...ir.Attribute) ([]*ir.Value, error) {
	blk, err := b.block()
	if err != nil {
		return nil, err
	}
	spec, err := b.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(args, attrs); err != nil {
		return nil, err
	}
	args = spec.CanonicalArgs(args)
	attrs = spec.WithDefaults(attrs)
	if args, err = b.promoteArgs(spec, args); err != nil {
		return nil, err
	}
	outTypes, err := spec.InferTypes(b.prog.Pool(), args, attrs)
	if err != nil {
		return nil, err
	}
	outConsts := b.foldEagerly(spec, args, attrs, outTypes)
	op, err := ir.NewOperation(blk, name, args, attrs, outTypes, outConsts, spec.SideEffect)
	if err != nil {
		return nil, err
	}
	if err := blk.Append(op); err != nil {
		op.Discard()
		return nil, err
	}
	return op.Outputs(), nil
}

// Const materializes a compile-time constant as a const operation and
// returns its output value.
func (b *Builder) Const(konst *ir.Constant) (*ir.Value, error) {
	outs, err := b.AddOperation("const", nil, ir.Attribute{Name: "val", Value: ir.ConstAttr{Val: konst}})
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

// promoteArgs widens the numeric arguments of the promoting slots of
// the schema to their common data type, inserting cast operations.
// Promotion is a builder policy: inference itself requires data types
// to agree.
func (b *Builder) promoteArgs(spec *ops.Spec, args []ir.Argument) ([]ir.Argument, error) {
	if len(spec.PromoteArgs) == 0 {
		return args, nil
	}
	promoting := make(map[string]bool, len(spec.PromoteArgs))
	for _, slot := range spec.PromoteArgs {
		promoting[slot] = true
	}
	common := dtype.Invalid
	mixed := false
	for _, arg := range args {
		if !promoting[arg.Name] {
			continue
		}
		dt := ir.DTypeOf(arg.Value.Type())
		if common == dtype.Invalid {
			common = dt
			continue
		}
		if dt == common {
			continue
		}
		mixed = true
		var ok bool
		if common, ok = dtype.Promote(common, dt); !ok {
			return nil, irerr.Errorf(irerr.Type, "operator %s: no common data type for %s operands", spec.Name, dt)
		}
	}
	if !mixed {
		return args, nil
	}
	for i, arg := range args {
		if !promoting[arg.Name] || ir.DTypeOf(arg.Value.Type()) == common {
			continue
		}
		cast, err := b.AddOperation("cast",
			[]ir.Argument{{Name: "x", Value: arg.Value}},
			ir.Attribute{Name: "dtype", Value: ir.StringAttr(common.String())})
		if err != nil {
			return nil, err
		}
		args[i].Value = cast[0]
	}
	return args, nil
}

// foldEagerly computes the compile-time payloads of the outputs when
// every input carries one, or from the input types alone for
// operators registering a type folder. A folding failure only means
// the payloads stay unknown, it never fails the construction.
func (b *Builder) foldEagerly(spec *ops.Spec, args []ir.Argument, attrs []ir.Attribute, outTypes []ir.Type) []*ir.Constant {
	allConst := true
	for _, arg := range args {
		if !arg.Value.IsConst() {
			allConst = false
			break
		}
	}
	if allConst {
		konsts, ok, err := spec.FoldConsts(args, attrs)
		if err != nil || !ok || len(konsts) != len(outTypes) {
			return nil
		}
		return konsts
	}
	konsts, ok := spec.FoldFromTypes(b.prog.Pool(), args, attrs)
	if !ok || len(konsts) != len(outTypes) {
		return nil
	}
	return konsts
}

// Arg binds a value to an input slot.
func Arg(name string, v *ir.Value) ir.Argument {
	return ir.Argument{Name: name, Value: v}
}

// Args binds several values to a variadic input slot.
func Args(name string, vals ...*ir.Value) []ir.Argument {
	args := make([]ir.Argument, len(vals))
	for i, v := range vals {
		args[i] = ir.Argument{Name: name, Value: v}
	}
	return args
}
