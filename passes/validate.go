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

package passes

import (
	"slices"

	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/irerr"
	"github.com/mir-org/mir/ops"
	"go.uber.org/multierr"
)

// validatePass checks the structural invariants of a program: single
// producer per value, definition before use, scope visibility, link
// consistency of the use lists, and agreement of every output type
// with a fresh run of the operator's inference rule.
type validatePass struct {
	reg *ops.Registry
}

func newValidate() *validatePass {
	return &validatePass{reg: ops.Default()}
}

// Validate checks a program against the structural invariants. Every
// violation is reported; the combined error is a graph invariant
// failure, which poisons the program for further passes.
func Validate(prog *ir.Program) error {
	return newValidate().validate(prog)
}

// ValidateWithRegistry checks a program whose operators live in a
// custom registry.
func ValidateWithRegistry(prog *ir.Program, reg *ops.Registry) error {
	return (&validatePass{reg: reg}).validate(prog)
}

func (v *validatePass) Name() string { return "validate" }

func (v *validatePass) setRegistry(reg *ops.Registry) { v.reg = reg }

func (v *validatePass) Run(prog *ir.Program) (bool, error) {
	return false, v.validate(prog)
}

func (v *validatePass) validate(prog *ir.Program) error {
	var err error
	for fn := range prog.Functions() {
		scope := &scope{fn: fn, defined: make(map[*ir.Value]bool)}
		err = multierr.Append(err, v.validateBlock(prog, fn.Block(), scope))
	}
	return err
}

// scope tracks the values visible at the current validation point and
// the producers seen so far.
type scope struct {
	fn      *ir.Function
	defined map[*ir.Value]bool
}

func (s *scope) define(v *ir.Value) error {
	if s.defined[v] {
		return irerr.Errorf(irerr.GraphInvariant, "function %s: value %%%s has more than one producer", s.fn.Name(), v.Name())
	}
	s.defined[v] = true
	return nil
}

// forget drops the definitions of a closed nested block so a sibling
// block cannot reference them.
func (s *scope) forget(vals []*ir.Value) {
	for _, v := range vals {
		delete(s.defined, v)
	}
}

func (v *validatePass) validateBlock(prog *ir.Program, b *ir.Block, sc *scope) error {
	var err error
	for _, in := range b.Inputs() {
		if in.Owner() != b {
			err = multierr.Append(err, irerr.Errorf(irerr.GraphInvariant, "function %s: input %%%s is owned by another block", sc.fn.Name(), in.Name()))
		}
		err = multierr.Append(err, sc.define(in))
	}
	for _, op := range b.Ops() {
		err = multierr.Append(err, v.validateOp(prog, b, op, sc))
	}
	for _, out := range b.Outputs() {
		if !sc.defined[out] {
			err = multierr.Append(err, irerr.Errorf(irerr.GraphInvariant, "function %s: block output %%%s is not visible in the block", sc.fn.Name(), out.Name()))
		}
	}
	return err
}

func (v *validatePass) validateOp(prog *ir.Program, b *ir.Block, op *ir.Operation, sc *scope) error {
	var err error
	if op.Block() != b {
		err = multierr.Append(err, irerr.Errorf(irerr.GraphInvariant, "function %s: operation %s is owned by another block", sc.fn.Name(), op.Name()))
	}
	for _, arg := range op.Args() {
		if !sc.defined[arg.Value] {
			err = multierr.Append(err, irerr.Errorf(irerr.GraphInvariant, "function %s: operation %s uses %%%s before its definition", sc.fn.Name(), op.Name(), arg.Value.Name()))
		}
		if !slices.Contains(arg.Value.Uses(), op) {
			err = multierr.Append(err, irerr.Errorf(irerr.GraphInvariant, "function %s: %%%s does not list operation %s as a consumer", sc.fn.Name(), arg.Value.Name(), op.Name()))
		}
	}
	for _, out := range op.Outputs() {
		if out.Def() != op {
			err = multierr.Append(err, irerr.Errorf(irerr.GraphInvariant, "function %s: output %%%s does not point back to operation %s", sc.fn.Name(), out.Name(), op.Name()))
		}
		if out.Owner() != b {
			err = multierr.Append(err, irerr.Errorf(irerr.GraphInvariant, "function %s: output %%%s is owned by another block", sc.fn.Name(), out.Name()))
		}
		err = multierr.Append(err, sc.define(out))
	}
	// Sub-blocks are validated before re-inference: inference of a
	// control-flow operator reads the sub-block outputs.
	for _, sub := range op.Blocks() {
		subErr := v.validateBlock(prog, sub, sc)
		err = multierr.Append(err, subErr)
		sc.forget(sub.Inputs())
		for _, subOp := range sub.Ops() {
			sc.forget(subOp.Outputs())
		}
	}
	err = multierr.Append(err, v.reinfer(prog, op, sc))
	return err
}

// reinfer re-runs the inference rule of the operator and checks that
// each stored output type still unifies with the inferred one. Fresh
// symbols minted by inference unify with the symbols minted at
// construction, so re-inference never demands symbol identity.
func (v *validatePass) reinfer(prog *ir.Program, op *ir.Operation, sc *scope) error {
	spec, err := v.reg.Lookup(op.Name())
	if err != nil {
		return irerr.Errorf(irerr.GraphInvariant, "function %s: %s", sc.fn.Name(), err)
	}
	outTypes, err := spec.InferTypes(prog.Pool(), op.Args(), op.Attrs())
	if err != nil {
		return irerr.Errorf(irerr.GraphInvariant, "function %s: operation %s no longer infers: %s", sc.fn.Name(), op.Name(), err)
	}
	if len(outTypes) != op.NumOutputs() {
		return irerr.Errorf(irerr.GraphInvariant, "function %s: operation %s infers %d outputs but has %d", sc.fn.Name(), op.Name(), len(outTypes), op.NumOutputs())
	}
	uni := ir.NewUnifier()
	for i, typ := range outTypes {
		stored := op.Output(i).Type()
		if _, uErr := ir.Unify(uni, typ, stored); uErr != nil {
			return irerr.Errorf(irerr.GraphInvariant, "function %s: output %%%s has type %s but inference yields %s", sc.fn.Name(), op.Output(i).Name(), stored, typ)
		}
	}
	return nil
}
