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

// AttrKind is the expected kind of an attribute value.
type AttrKind int

// Attribute kinds of the attribute schema.
const (
	KInvalid AttrKind = iota
	KBool
	KInt
	KFloat
	KString
	KInts
	KFloats
	KStrings
	KConst
	KBlocks
)

// String returns the name of the attribute kind.
func (k AttrKind) String() string {
	switch k {
	case KBool:
		return "bool"
	case KInt:
		return "int"
	case KFloat:
		return "float"
	case KString:
		return "string"
	case KInts:
		return "int list"
	case KFloats:
		return "float list"
	case KStrings:
		return "string list"
	case KConst:
		return "constant"
	case KBlocks:
		return "blocks"
	}
	return "invalid"
}

// KindOfAttr returns the kind of an attribute value.
func KindOfAttr(a ir.Attr) AttrKind {
	switch a.(type) {
	case ir.BoolAttr:
		return KBool
	case ir.IntAttr:
		return KInt
	case ir.FloatAttr:
		return KFloat
	case ir.StringAttr:
		return KString
	case ir.IntsAttr:
		return KInts
	case ir.FloatsAttr:
		return KFloats
	case ir.StringsAttr:
		return KStrings
	case ir.ConstAttr:
		return KConst
	case ir.BlocksAttr:
		return KBlocks
	}
	return KInvalid
}

func (s *Spec) input(name string) *InputSpec {
	for i := range s.Inputs {
		if s.Inputs[i].Name == name {
			return &s.Inputs[i]
		}
	}
	return nil
}

func (s *Spec) attr(name string) *AttrSpec {
	for i := range s.Attrs {
		if s.Attrs[i].Name == name {
			return &s.Attrs[i]
		}
	}
	return nil
}

// Validate checks arguments and attributes against the schema:
// unknown or missing slots, arity of non-variadic slots, slot type
// classes, compile-time-constant requirements, attribute kinds and
// sub-block count.
func (s *Spec) Validate(args []ir.Argument, attrs []ir.Attribute) error {
	if err := s.validateArgs(args); err != nil {
		return err
	}
	return s.validateAttrs(attrs)
}

func (s *Spec) validateArgs(args []ir.Argument) error {
	counts := make(map[string]int)
	for _, arg := range args {
		in := s.input(arg.Name)
		if in == nil {
			return irerr.Errorf(irerr.Schema, "operator %s has no input slot %q", s.Name, arg.Name)
		}
		counts[arg.Name]++
		if counts[arg.Name] > 1 && !in.Variadic {
			return irerr.Errorf(irerr.Schema, "operator %s: input slot %q bound more than once", s.Name, arg.Name)
		}
		if arg.Value == nil {
			return irerr.Errorf(irerr.Schema, "operator %s: input slot %q bound to no value", s.Name, arg.Name)
		}
		if !in.Class.Check(arg.Value.Type()) {
			return irerr.Errorf(irerr.Type, "operator %s: input %s=%s is not a %s", s.Name, arg.Name, arg.Value.Type(), in.Class)
		}
		if in.Const && !arg.Value.IsConst() {
			return irerr.Errorf(irerr.Schema, "operator %s: input %s must be known at compile time", s.Name, arg.Name)
		}
	}
	for _, in := range s.Inputs {
		if counts[in.Name] == 0 && !in.Optional {
			return irerr.Errorf(irerr.Schema, "operator %s: missing input %s", s.Name, in.Name)
		}
	}
	return nil
}

func (s *Spec) validateAttrs(attrs []ir.Attribute) error {
	seen := make(map[string]bool)
	hasBlocks := false
	for _, attr := range attrs {
		if attr.Name == blocksAttrName {
			if err := s.validateBlocks(attr.Value); err != nil {
				return err
			}
			hasBlocks = true
			continue
		}
		spec := s.attr(attr.Name)
		if spec == nil {
			return irerr.Errorf(irerr.Schema, "operator %s has no attribute %q", s.Name, attr.Name)
		}
		if seen[attr.Name] {
			return irerr.Errorf(irerr.Schema, "operator %s: attribute %q set more than once", s.Name, attr.Name)
		}
		seen[attr.Name] = true
		if got := KindOfAttr(attr.Value); got != spec.Kind {
			return irerr.Errorf(irerr.Schema, "operator %s: attribute %s is a %s but wants a %s", s.Name, attr.Name, got, spec.Kind)
		}
	}
	for _, spec := range s.Attrs {
		if !seen[spec.Name] && spec.Default == nil {
			return irerr.Errorf(irerr.Schema, "operator %s: missing attribute %s", s.Name, spec.Name)
		}
	}
	if s.Blocks > 0 && !hasBlocks {
		return irerr.Errorf(irerr.Schema, "operator %s: missing %d sub-blocks", s.Name, s.Blocks)
	}
	return nil
}

func (s *Spec) validateBlocks(a ir.Attr) error {
	blocks, ok := a.(ir.BlocksAttr)
	if !ok {
		return irerr.Errorf(irerr.Schema, "operator %s: attribute %s is not a block list", s.Name, blocksAttrName)
	}
	if s.Blocks == 0 {
		return irerr.Errorf(irerr.Schema, "operator %s takes no sub-block", s.Name)
	}
	if len(blocks.Blocks) != s.Blocks {
		return irerr.Errorf(irerr.Schema, "operator %s wants %d sub-blocks but got %d", s.Name, s.Blocks, len(blocks.Blocks))
	}
	return nil
}

// blocksAttrName is the reserved attribute binding the sub-blocks of
// a control-flow operator.
const blocksAttrName = "blocks"

func findAttr(attrs []ir.Attribute, name string) (ir.Attr, bool) {
	for _, attr := range attrs {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// WithDefaults returns the attributes in canonical schema order with
// default values materialized. The sub-block attribute, when present,
// is kept last. Canonical ordering is what makes attribute lists
// comparable across operations.
func (s *Spec) WithDefaults(attrs []ir.Attribute) []ir.Attribute {
	canonical := make([]ir.Attribute, 0, len(s.Attrs)+1)
	for _, spec := range s.Attrs {
		value, ok := findAttr(attrs, spec.Name)
		if !ok {
			value = spec.Default
		}
		if value == nil {
			continue
		}
		canonical = append(canonical, ir.Attribute{Name: spec.Name, Value: value})
	}
	if blocks, ok := findAttr(attrs, blocksAttrName); ok {
		canonical = append(canonical, ir.Attribute{Name: blocksAttrName, Value: blocks})
	}
	return canonical
}

// CanonicalArgs returns the arguments reordered to schema slot order,
// keeping the relative order of the values of a variadic slot.
func (s *Spec) CanonicalArgs(args []ir.Argument) []ir.Argument {
	canonical := make([]ir.Argument, 0, len(args))
	for _, in := range s.Inputs {
		for _, arg := range args {
			if arg.Name == in.Name {
				canonical = append(canonical, arg)
			}
		}
	}
	return canonical
}
