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

package ops

import (
	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/irerr"
)

// InferContext is the view of an operation under construction handed
// to a type inference rule: the types of the inputs, the payloads of
// the compile-time-constant inputs, the attributes and the sub-blocks.
// Inference never sees the input values themselves.
type InferContext struct {
	spec *Spec
	pool *ir.Pool
	uni  *ir.Unifier

	types  map[string][]ir.Type
	consts map[string]*ir.Constant
	attrs  []ir.Attribute
	blocks []*ir.Block
}

// InferTypes runs the inference rule of the operator on the types of
// the given arguments. Validate must have accepted the arguments and
// attributes first, and the attributes must carry their defaults.
func (s *Spec) InferTypes(pool *ir.Pool, args []ir.Argument, attrs []ir.Attribute) ([]ir.Type, error) {
	ctx := &InferContext{
		spec:   s,
		pool:   pool,
		uni:    ir.NewUnifier(),
		types:  make(map[string][]ir.Type),
		consts: make(map[string]*ir.Constant),
		attrs:  attrs,
	}
	for _, arg := range args {
		ctx.types[arg.Name] = append(ctx.types[arg.Name], arg.Value.Type())
		if konst := arg.Value.Const(); konst != nil {
			ctx.consts[arg.Name] = konst
		}
	}
	if blocks, ok := findAttr(attrs, blocksAttrName); ok {
		ctx.blocks = blocks.(ir.BlocksAttr).Blocks
	}
	outs, err := s.Infer(ctx)
	if err != nil {
		return nil, irerr.Wrapf(err, "operator %s", s.Name)
	}
	return outs, nil
}

// FoldFromTypes runs the type folder of the operator on the types of
// the given arguments. The second result is false when the operator
// registers no type folder or the types are not static enough:
// skipping is a missed optimization, not an error.
func (s *Spec) FoldFromTypes(pool *ir.Pool, args []ir.Argument, attrs []ir.Attribute) ([]*ir.Constant, bool) {
	if s.FoldTypes == nil {
		return nil, false
	}
	ctx := &InferContext{
		spec:   s,
		pool:   pool,
		uni:    ir.NewUnifier(),
		types:  make(map[string][]ir.Type),
		consts: make(map[string]*ir.Constant),
		attrs:  attrs,
	}
	for _, arg := range args {
		ctx.types[arg.Name] = append(ctx.types[arg.Name], arg.Value.Type())
		if konst := arg.Value.Const(); konst != nil {
			ctx.consts[arg.Name] = konst
		}
	}
	return s.FoldTypes(ctx)
}

// Pool returns the symbol pool of the program under inference, used
// to create fresh symbols for unknown result dimensions.
func (ctx *InferContext) Pool() *ir.Pool { return ctx.pool }

// Unifier returns the symbol bindings of this inference call.
func (ctx *InferContext) Unifier() *ir.Unifier { return ctx.uni }

// HasArg returns true if the slot is bound.
func (ctx *InferContext) HasArg(slot string) bool {
	return len(ctx.types[slot]) > 0
}

// Type returns the type bound to a slot.
func (ctx *InferContext) Type(slot string) ir.Type {
	types := ctx.types[slot]
	if len(types) == 0 {
		return nil
	}
	return types[0]
}

// Types returns all the types bound to a variadic slot.
func (ctx *InferContext) Types(slot string) []ir.Type {
	return ctx.types[slot]
}

// Tensor returns the type bound to a slot viewed as a tensor.
func (ctx *InferContext) Tensor(slot string) (*ir.TensorType, error) {
	t := ctx.Type(slot)
	if t == nil {
		return nil, ctx.Errorf("missing input %s", slot)
	}
	tt, ok := ir.TensorOf(t)
	if !ok {
		return nil, ctx.Errorf("input %s is not a tensor but a %s", slot, t)
	}
	return tt, nil
}

// Const returns the compile-time payload of a slot, or nil when the
// bound value is not constant.
func (ctx *InferContext) Const(slot string) *ir.Constant {
	return ctx.consts[slot]
}

// Attr returns an attribute value. Defaults have been materialized,
// so an attribute of the schema is always present unless it is
// optional without default.
func (ctx *InferContext) Attr(name string) (ir.Attr, bool) {
	return findAttr(ctx.attrs, name)
}

// IntAttr returns the value of an integer attribute.
func (ctx *InferContext) IntAttr(name string) (int64, error) {
	a, ok := ctx.Attr(name)
	if !ok {
		return 0, ctx.Errorf("missing attribute %s", name)
	}
	v, ok := a.(ir.IntAttr)
	if !ok {
		return 0, ctx.Errorf("attribute %s is not an integer", name)
	}
	return int64(v), nil
}

// BoolAttr returns the value of a bool attribute.
func (ctx *InferContext) BoolAttr(name string) (bool, error) {
	a, ok := ctx.Attr(name)
	if !ok {
		return false, ctx.Errorf("missing attribute %s", name)
	}
	v, ok := a.(ir.BoolAttr)
	if !ok {
		return false, ctx.Errorf("attribute %s is not a bool", name)
	}
	return bool(v), nil
}

// StringAttr returns the value of a string attribute.
func (ctx *InferContext) StringAttr(name string) (string, error) {
	a, ok := ctx.Attr(name)
	if !ok {
		return "", ctx.Errorf("missing attribute %s", name)
	}
	v, ok := a.(ir.StringAttr)
	if !ok {
		return "", ctx.Errorf("attribute %s is not a string", name)
	}
	return string(v), nil
}

// IntsAttr returns the value of an integer list attribute, or nil if
// the attribute is absent.
func (ctx *InferContext) IntsAttr(name string) ([]int64, error) {
	a, ok := ctx.Attr(name)
	if !ok {
		return nil, nil
	}
	v, ok := a.(ir.IntsAttr)
	if !ok {
		return nil, ctx.Errorf("attribute %s is not an integer list", name)
	}
	return []int64(v), nil
}

// ConstAttr returns the constant carried by an attribute.
func (ctx *InferContext) ConstAttr(name string) (*ir.Constant, error) {
	a, ok := ctx.Attr(name)
	if !ok {
		return nil, ctx.Errorf("missing attribute %s", name)
	}
	v, ok := a.(ir.ConstAttr)
	if !ok {
		return nil, ctx.Errorf("attribute %s is not a constant", name)
	}
	return v.Val, nil
}

// Blocks returns the sub-blocks of a control-flow operator.
func (ctx *InferContext) Blocks() []*ir.Block { return ctx.blocks }

// Errorf reports a type inference failure.
func (ctx *InferContext) Errorf(format string, args ...any) error {
	return irerr.Errorf(irerr.Type, format, args...)
}

// FoldContext is the view of a fully-constant operation handed to a
// constant folder: the payloads of the inputs and the attributes.
type FoldContext struct {
	spec   *Spec
	consts map[string][]*ir.Constant
	attrs  []ir.Attribute
}

// FoldConsts runs the constant folder of the operator. The second
// result is false when the operator registers no folder: skipping is
// a missed optimization, not an error. Every input value must carry a
// compile-time payload.
func (s *Spec) FoldConsts(args []ir.Argument, attrs []ir.Attribute) ([]*ir.Constant, bool, error) {
	if s.Fold == nil {
		return nil, false, nil
	}
	ctx := &FoldContext{
		spec:   s,
		consts: make(map[string][]*ir.Constant),
		attrs:  attrs,
	}
	for _, arg := range args {
		konst := arg.Value.Const()
		if konst == nil {
			return nil, false, irerr.Errorf(irerr.Pass, "operator %s: folding input %s with no compile-time value", s.Name, arg.Name)
		}
		ctx.consts[arg.Name] = append(ctx.consts[arg.Name], konst)
	}
	outs, err := s.Fold(ctx)
	if err != nil {
		return nil, false, irerr.Wrapf(err, "operator %s", s.Name)
	}
	return outs, true, nil
}

// Const returns the payload bound to a slot.
func (ctx *FoldContext) Const(slot string) *ir.Constant {
	consts := ctx.consts[slot]
	if len(consts) == 0 {
		return nil
	}
	return consts[0]
}

// Consts returns all the payloads bound to a variadic slot.
func (ctx *FoldContext) Consts(slot string) []*ir.Constant {
	return ctx.consts[slot]
}

// Attr returns an attribute value.
func (ctx *FoldContext) Attr(name string) (ir.Attr, bool) {
	return findAttr(ctx.attrs, name)
}

// Errorf reports a folding failure.
func (ctx *FoldContext) Errorf(format string, args ...any) error {
	return irerr.Errorf(irerr.Pass, format, args...)
}
