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
	"github.com/mir-org/mir/ir/irerr"
	"github.com/mir-org/mir/ops"
)

// Rule rewrites one operation. Rewrite returns the values replacing
// the outputs of the root, or ok=false when the rule does not apply.
// New operations are emitted through the context so the engine can
// discard them when the rewrite is rejected.
type Rule struct {
	Name    string
	Rewrite func(ctx *RewriteContext, op *ir.Operation) ([]*ir.Value, bool, error)
}

// RewriteContext inserts replacement operations before the root of the
// rewrite, going through the registry for validation and inference.
type RewriteContext struct {
	reg     *ops.Registry
	block   *ir.Block
	root    *ir.Operation
	emitted []*ir.Operation
}

// Add validates, infers and inserts an operation before the root.
func (ctx *RewriteContext) Add(name string, args []ir.Argument, attrs ...ir.Attribute) ([]*ir.Value, error) {
	spec, err := ctx.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(args, attrs); err != nil {
		return nil, err
	}
	args = spec.CanonicalArgs(args)
	attrs = spec.WithDefaults(attrs)
	prog := ctx.block.Function().Program()
	outTypes, err := spec.InferTypes(prog.Pool(), args, attrs)
	if err != nil {
		return nil, err
	}
	var outConsts []*ir.Constant
	if konsts, ok, fErr := spec.FoldConsts(args, attrs); fErr == nil && ok && len(konsts) == len(outTypes) {
		outConsts = konsts
	}
	op, err := ir.NewOperation(ctx.block, name, args, attrs, outTypes, outConsts, spec.SideEffect)
	if err != nil {
		return nil, err
	}
	if err := ctx.block.InsertBefore(op, ctx.root); err != nil {
		op.Discard()
		return nil, err
	}
	ctx.emitted = append(ctx.emitted, op)
	return op.Outputs(), nil
}

// Const inserts a const operation before the root.
func (ctx *RewriteContext) Const(konst *ir.Constant) (*ir.Value, error) {
	outs, err := ctx.Add("const", nil, ir.Attribute{Name: "val", Value: ir.ConstAttr{Val: konst}})
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

// rollback removes the emitted operations, newest first so chained
// emissions unwind cleanly.
func (ctx *RewriteContext) rollback() {
	for i := len(ctx.emitted) - 1; i >= 0; i-- {
		op := ctx.emitted[i]
		_ = op.Block().Remove(op)
	}
	ctx.emitted = nil
}

// rewritePass applies a rule set over every operation of a program.
// A rewrite commits only when the replacement values type-check
// against the outputs they replace; a rejected rewrite is rolled back
// and the pass continues.
type rewritePass struct {
	name  string
	reg   *ops.Registry
	rules []Rule
}

func (p *rewritePass) Name() string { return p.name }

func (p *rewritePass) setRegistry(reg *ops.Registry) { p.reg = reg }

func (p *rewritePass) Run(prog *ir.Program) (bool, error) {
	changed := false
	for fn := range prog.Functions() {
		c, err := p.rewriteBlock(fn.Block())
		if err != nil {
			return changed, err
		}
		changed = changed || c
	}
	return changed, nil
}

func (p *rewritePass) rewriteBlock(b *ir.Block) (bool, error) {
	changed := false
	for _, op := range b.Ops() {
		rewritten, err := p.tryRules(b, op)
		if err != nil {
			return changed, err
		}
		if rewritten {
			changed = true
			continue
		}
		for _, sub := range op.Blocks() {
			c, err := p.rewriteBlock(sub)
			if err != nil {
				return changed, err
			}
			changed = changed || c
		}
	}
	return changed, nil
}

func (p *rewritePass) tryRules(b *ir.Block, op *ir.Operation) (bool, error) {
	if op.SideEffect() {
		return false, nil
	}
	for _, rule := range p.rules {
		ctx := &RewriteContext{reg: p.reg, block: b, root: op}
		repl, ok, err := rule.Rewrite(ctx, op)
		if err != nil {
			ctx.rollback()
			if irerr.KindOf(err) == irerr.GraphInvariant {
				return false, err
			}
			continue
		}
		if !ok || !acceptable(op, repl) {
			ctx.rollback()
			continue
		}
		for i, out := range op.Outputs() {
			ir.ReplaceAllUses(out, repl[i])
		}
		if err := b.Remove(op); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// acceptable gates a rewrite: one replacement per output, none of them
// an output of the root itself, and every replacement type unifying
// with the type it stands in for.
func acceptable(op *ir.Operation, repl []*ir.Value) bool {
	if len(repl) != op.NumOutputs() {
		return false
	}
	uni := ir.NewUnifier()
	for i, out := range op.Outputs() {
		if repl[i] == nil || repl[i].Def() == op {
			return false
		}
		if _, err := ir.Unify(uni, out.Type(), repl[i].Type()); err != nil {
			return false
		}
	}
	return true
}
