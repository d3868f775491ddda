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
	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ops"
)

// constElim folds operations whose inputs are all known at compile
// time into const operations. An operator without a folder, or a
// folder that fails (division by zero, unfoldable data type), is
// skipped: folding is an optimization, never a requirement.
type constElim struct {
	reg *ops.Registry
}

func newConstElim() *constElim {
	return &constElim{reg: ops.Default()}
}

func (*constElim) Name() string { return "const_elimination" }

func (c *constElim) setRegistry(reg *ops.Registry) { c.reg = reg }

func (c *constElim) Run(prog *ir.Program) (bool, error) {
	changed := false
	for fn := range prog.Functions() {
		ch, err := c.foldBlock(fn.Block())
		if err != nil {
			return changed, err
		}
		changed = changed || ch
	}
	return changed, nil
}

// folded is one planned replacement: the analysis phase collects them,
// the commit phase applies them. A failing analysis therefore leaves
// the block untouched.
type folded struct {
	op     *ir.Operation
	konsts []*ir.Constant
}

func (c *constElim) foldBlock(b *ir.Block) (bool, error) {
	var planned []folded
	changed := false
	for _, op := range b.Ops() {
		for _, sub := range op.Blocks() {
			ch, err := c.foldBlock(sub)
			if err != nil {
				return changed, err
			}
			changed = changed || ch
		}
		if konsts := c.analyze(op); konsts != nil {
			planned = append(planned, folded{op: op, konsts: konsts})
		}
	}
	for _, f := range planned {
		if err := c.commit(b, f); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// analyze returns the folded output payloads of an operation, or nil
// when the operation does not fold. An operation with non-constant
// inputs still folds when its operator registers a type folder and
// the input types are static.
func (c *constElim) analyze(op *ir.Operation) []*ir.Constant {
	if op.Name() == "const" || op.SideEffect() || len(op.Blocks()) > 0 {
		return nil
	}
	spec, err := c.reg.Lookup(op.Name())
	if err != nil {
		return nil
	}
	allConst := true
	for _, arg := range op.Args() {
		if !arg.Value.IsConst() {
			allConst = false
			break
		}
	}
	if !allConst {
		pool := op.Block().Function().Program().Pool()
		konsts, ok := spec.FoldFromTypes(pool, op.Args(), op.Attrs())
		if !ok || len(konsts) != op.NumOutputs() {
			return nil
		}
		return konsts
	}
	konsts, ok, err := spec.FoldConsts(op.Args(), op.Attrs())
	if err != nil || !ok || len(konsts) != op.NumOutputs() {
		return nil
	}
	return konsts
}

// commit materializes the folded payloads as const operations and
// retires the folded operation.
func (c *constElim) commit(b *ir.Block, f folded) error {
	for i, konst := range f.konsts {
		out, err := materializeConst(b, f.op, konst)
		if err != nil {
			return err
		}
		ir.ReplaceAllUses(f.op.Output(i), out)
	}
	return b.Remove(f.op)
}

// materializeConst inserts a const operation before another operation
// of the block and returns its output value.
func materializeConst(b *ir.Block, before *ir.Operation, konst *ir.Constant) (*ir.Value, error) {
	attrs := []ir.Attribute{{Name: "val", Value: ir.ConstAttr{Val: konst}}}
	op, err := ir.NewOperation(b, "const", nil, attrs, []ir.Type{konst.TensorType()}, []*ir.Constant{konst}, false)
	if err != nil {
		return nil, err
	}
	if err := b.InsertBefore(op, before); err != nil {
		return nil, err
	}
	return op.Output(0), nil
}
