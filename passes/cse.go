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
	"fmt"
	"strings"

	"github.com/mir-org/mir/ir"
)

// commonSubexpr merges operations of one block applying the same
// operator to the same input values under equal attributes. Operations
// with side effects or sub-blocks never merge.
type commonSubexpr struct{}

func (*commonSubexpr) Name() string { return "cse" }

func (c *commonSubexpr) Run(prog *ir.Program) (bool, error) {
	changed := false
	for fn := range prog.Functions() {
		ch, err := c.mergeBlock(fn.Block())
		if err != nil {
			return changed, err
		}
		changed = changed || ch
	}
	return changed, nil
}

func (c *commonSubexpr) mergeBlock(b *ir.Block) (bool, error) {
	changed := false
	seen := make(map[string][]*ir.Operation)
	for _, op := range b.Ops() {
		for _, sub := range op.Blocks() {
			ch, err := c.mergeBlock(sub)
			if err != nil {
				return changed, err
			}
			changed = changed || ch
		}
		if op.SideEffect() || len(op.Blocks()) > 0 {
			continue
		}
		// The key is a fast filter: the attributes are compared in
		// depth before merging, constants in particular print
		// abbreviated. Colliding operations share a bucket so each
		// stays a merge candidate for later duplicates.
		key := opKey(op)
		var prev *ir.Operation
		for _, cand := range seen[key] {
			if sameOperation(op, cand) {
				prev = cand
				break
			}
		}
		if prev == nil {
			seen[key] = append(seen[key], op)
			continue
		}
		for i, out := range op.Outputs() {
			ir.ReplaceAllUses(out, prev.Output(i))
		}
		if err := b.Remove(op); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

func opKey(op *ir.Operation) string {
	var sb strings.Builder
	sb.WriteString(op.Name())
	for _, arg := range op.Args() {
		fmt.Fprintf(&sb, "|%s=%d", arg.Name, arg.Value.ID())
	}
	for _, attr := range op.Attrs() {
		fmt.Fprintf(&sb, "|%s=%s", attr.Name, attr.Value)
	}
	return sb.String()
}

func sameOperation(a, b *ir.Operation) bool {
	if a.Name() != b.Name() || a.NumOutputs() != b.NumOutputs() {
		return false
	}
	aArgs, bArgs := a.Args(), b.Args()
	if len(aArgs) != len(bArgs) {
		return false
	}
	for i := range aArgs {
		if aArgs[i].Name != bArgs[i].Name || aArgs[i].Value != bArgs[i].Value {
			return false
		}
	}
	aAttrs, bAttrs := a.Attrs(), b.Attrs()
	if len(aAttrs) != len(bAttrs) {
		return false
	}
	for i := range aAttrs {
		if aAttrs[i].Name != bAttrs[i].Name || !aAttrs[i].Value.Equal(bAttrs[i].Value) {
			return false
		}
	}
	return true
}
