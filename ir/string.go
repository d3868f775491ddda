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
	"fmt"
	"strings"

	mirfmt "github.com/mir-org/mir/base/fmt"
)

// String returns the textual representation of the program.
func (p *Program) String() string {
	var s strings.Builder
	s.WriteString(fmt.Sprintf("program %s {\n", p.name))
	for name, st := range p.state.Iter() {
		s.WriteString(mirfmt.Indent(fmt.Sprintf("state %s: %s\n", name, st.Wrapped())))
	}
	for fn := range p.Functions() {
		s.WriteString(mirfmt.Indent(fn.String()))
	}
	s.WriteString("}\n")
	return s.String()
}

// String returns the textual representation of the function.
func (f *Function) String() string {
	var s strings.Builder
	s.WriteString(fmt.Sprintf("func %s(%s) {\n", f.name, valueList(f.Inputs(), true)))
	for _, op := range f.block.ops {
		s.WriteString(mirfmt.Indent(op.String()))
	}
	s.WriteString(fmt.Sprintf("} -> (%s)\n", valueList(f.Outputs(), false)))
	return s.String()
}

// String returns the textual representation of the block.
func (b *Block) String() string {
	var s strings.Builder
	s.WriteString(fmt.Sprintf("(%s) {\n", valueList(b.inputs, true)))
	for _, op := range b.ops {
		s.WriteString(mirfmt.Indent(op.String()))
	}
	s.WriteString(fmt.Sprintf("} -> (%s)\n", valueList(b.outputs, false)))
	return s.String()
}

// String returns the textual representation of the operation, for
// example %t = add(x=%a, y=%b) : tensor<fp32, [2, 3]>.
func (op *Operation) String() string {
	var s strings.Builder
	if len(op.outs) > 0 {
		outs := make([]string, len(op.outs))
		for i, out := range op.outs {
			outs[i] = "%" + out.Name()
		}
		s.WriteString(strings.Join(outs, ", "))
		s.WriteString(" = ")
	}
	s.WriteString(op.name)
	args := make([]string, len(op.args))
	for i, arg := range op.args {
		args[i] = fmt.Sprintf("%s=%%%s", arg.Name, arg.Value.Name())
	}
	s.WriteString("(" + strings.Join(args, ", ") + ")")
	var attrs []string
	var blocks []*Block
	for _, attr := range op.attrs {
		if sub, ok := attr.Value.(BlocksAttr); ok {
			blocks = append(blocks, sub.Blocks...)
			continue
		}
		attrs = append(attrs, attr.String())
	}
	if len(attrs) > 0 {
		s.WriteString(" [" + strings.Join(attrs, ", ") + "]")
	}
	if len(op.outs) > 0 {
		types := make([]string, len(op.outs))
		for i, out := range op.outs {
			types[i] = out.Type().String()
		}
		s.WriteString(" : " + strings.Join(types, ", "))
	}
	s.WriteString("\n")
	for _, sub := range blocks {
		s.WriteString(mirfmt.Indent(sub.String()))
	}
	return s.String()
}

func valueList(vals []*Value, withTypes bool) string {
	ss := make([]string, len(vals))
	for i, v := range vals {
		if withTypes {
			ss[i] = v.String()
		} else {
			ss[i] = "%" + v.Name()
		}
	}
	return strings.Join(ss, ", ")
}
