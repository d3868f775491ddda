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
	"github.com/mir-org/mir/base/iter"
	"github.com/mir-org/mir/ir"
)

// deadCodeElim removes operations none of whose outputs are consumed,
// neither by another operation nor by a block output list. Operations
// carrying a side effect, directly or in a sub-block, always stay.
type deadCodeElim struct{}

func (*deadCodeElim) Name() string { return "dead_code_elimination" }

func (d *deadCodeElim) Run(prog *ir.Program) (bool, error) {
	changed := false
	for {
		c, err := d.sweep(prog)
		if err != nil {
			return changed, err
		}
		if !c {
			return changed, nil
		}
		changed = true
	}
}

func (d *deadCodeElim) sweep(prog *ir.Program) (bool, error) {
	changed := false
	for fn := range prog.Functions() {
		c, err := d.sweepBlock(fn.Block())
		if err != nil {
			return changed, err
		}
		changed = changed || c
	}
	return changed, nil
}

// sweepBlock walks the block backwards so a dead consumer is removed
// before its producers are considered.
func (d *deadCodeElim) sweepBlock(b *ir.Block) (bool, error) {
	changed := false
	for op := range iter.Backward(b.Ops()) {
		if removable(op) {
			if err := b.Remove(op); err != nil {
				return changed, err
			}
			changed = true
			continue
		}
		for _, sub := range op.Blocks() {
			c, err := d.sweepBlock(sub)
			if err != nil {
				return changed, err
			}
			changed = changed || c
		}
	}
	return changed, nil
}

func removable(op *ir.Operation) bool {
	if hasSideEffect(op) {
		return false
	}
	for _, out := range op.Outputs() {
		if !out.Unused() {
			return false
		}
	}
	return true
}

// hasSideEffect reports whether the operation or any operation of its
// sub-blocks carries a side effect.
func hasSideEffect(op *ir.Operation) bool {
	if op.SideEffect() {
		return true
	}
	for _, sub := range op.Blocks() {
		for _, subOp := range sub.Ops() {
			if hasSideEffect(subOp) {
				return true
			}
		}
	}
	return false
}
