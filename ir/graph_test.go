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

package ir_test

import (
	"testing"

	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/dtype"
)

func fp32Tensor(dims ...int64) *ir.TensorType {
	return ir.NewTensorType(dtype.Float32, ir.StaticShape(dims...))
}

// addOp appends a binary operation with a single output of the type
// of its first operand.
func addOp(t *testing.T, b *ir.Block, name string, x, y *ir.Value) *ir.Operation {
	t.Helper()
	op, err := ir.NewOperation(b, name,
		[]ir.Argument{{Name: "x", Value: x}, {Name: "y", Value: y}},
		nil, []ir.Type{x.Type()}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Append(op); err != nil {
		t.Fatal(err)
	}
	return op
}

func TestUseLists(t *testing.T) {
	prog := ir.NewProgram("main")
	fn, err := prog.NewFunction("main")
	if err != nil {
		t.Fatal(err)
	}
	x, err := fn.Block().AddInput("x", fp32Tensor(2))
	if err != nil {
		t.Fatal(err)
	}
	add := addOp(t, fn.Block(), "add", x, x)
	if got := x.NumUses(); got != 2 {
		t.Errorf("x has %d uses but want 2", got)
	}
	mul := addOp(t, fn.Block(), "mul", add.Output(0), x)
	if got := add.Output(0).NumUses(); got != 1 {
		t.Errorf("add output has %d uses but want 1", got)
	}
	if err := fn.Block().SetOutputs(mul.Output(0)); err != nil {
		t.Fatal(err)
	}
	if got := mul.Output(0).NumUses(); got != 1 {
		t.Errorf("block output has %d uses but want 1", got)
	}
}

func TestReplaceAllUses(t *testing.T) {
	prog := ir.NewProgram("main")
	fn, err := prog.NewFunction("main")
	if err != nil {
		t.Fatal(err)
	}
	x, err := fn.Block().AddInput("x", fp32Tensor(2))
	if err != nil {
		t.Fatal(err)
	}
	y, err := fn.Block().AddInput("y", fp32Tensor(2))
	if err != nil {
		t.Fatal(err)
	}
	add := addOp(t, fn.Block(), "add", x, y)
	mul := addOp(t, fn.Block(), "mul", add.Output(0), y)
	if err := fn.Block().SetOutputs(add.Output(0)); err != nil {
		t.Fatal(err)
	}

	ir.ReplaceAllUses(add.Output(0), x)
	if got, _ := mul.Arg("x"); got != x {
		t.Errorf("mul still consumes the replaced value")
	}
	if got := fn.Outputs()[0]; got != x {
		t.Errorf("block output list still references the replaced value")
	}
	if !add.Output(0).Unused() {
		t.Errorf("replaced value still has %d uses", add.Output(0).NumUses())
	}
}

func TestRemoveRefusesUsedOutputs(t *testing.T) {
	prog := ir.NewProgram("main")
	fn, err := prog.NewFunction("main")
	if err != nil {
		t.Fatal(err)
	}
	x, err := fn.Block().AddInput("x", fp32Tensor(2))
	if err != nil {
		t.Fatal(err)
	}
	add := addOp(t, fn.Block(), "add", x, x)
	addOp(t, fn.Block(), "mul", add.Output(0), x)
	if err := fn.Block().Remove(add); err == nil {
		t.Errorf("removed an operation whose output is in use")
	}
}

func TestRemoveUnlinksInputs(t *testing.T) {
	prog := ir.NewProgram("main")
	fn, err := prog.NewFunction("main")
	if err != nil {
		t.Fatal(err)
	}
	x, err := fn.Block().AddInput("x", fp32Tensor(2))
	if err != nil {
		t.Fatal(err)
	}
	add := addOp(t, fn.Block(), "add", x, x)
	if err := fn.Block().Remove(add); err != nil {
		t.Fatal(err)
	}
	if got := x.NumUses(); got != 0 {
		t.Errorf("x has %d uses after removal but want 0", got)
	}
	if got := fn.Block().NumOps(); got != 0 {
		t.Errorf("block has %d operations after removal but want 0", got)
	}
}

func TestBlockVisibility(t *testing.T) {
	prog := ir.NewProgram("main")
	fn, err := prog.NewFunction("main")
	if err != nil {
		t.Fatal(err)
	}
	x, err := fn.Block().AddInput("x", fp32Tensor(2))
	if err != nil {
		t.Fatal(err)
	}
	sub := fn.Block().NewBlock()
	v, err := sub.AddInput("v", fp32Tensor(2))
	if err != nil {
		t.Fatal(err)
	}
	if !sub.Visible(x) {
		t.Errorf("enclosing value not visible in the nested block")
	}
	if fn.Block().Visible(v) {
		t.Errorf("nested value visible in the enclosing block")
	}
	// An operation of the enclosing block cannot consume a nested value.
	op, err := ir.NewOperation(fn.Block(), "neg",
		[]ir.Argument{{Name: "x", Value: v}},
		nil, []ir.Type{v.Type()}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := fn.Block().Append(op); err == nil {
		t.Errorf("appended an operation consuming a value out of scope")
	}
}

func TestProgramDeclarations(t *testing.T) {
	prog := ir.NewProgram("main")
	if _, err := prog.NewFunction("f"); err != nil {
		t.Fatal(err)
	}
	if _, err := prog.NewFunction("f"); err == nil {
		t.Errorf("duplicate function name accepted")
	}
	if _, err := prog.Function("missing"); err == nil {
		t.Errorf("missing function lookup succeeded")
	}
	if _, err := prog.DeclareState("cache", fp32Tensor(4)); err != nil {
		t.Fatal(err)
	}
	if _, err := prog.DeclareState("cache", fp32Tensor(4)); err == nil {
		t.Errorf("duplicate state name accepted")
	}
	st, err := prog.State("cache")
	if err != nil {
		t.Fatal(err)
	}
	if got := st.String(); got != "state<tensor<fp32, [4]>>" {
		t.Errorf("got state type %s", got)
	}
}

func TestValueNaming(t *testing.T) {
	prog := ir.NewProgram("main")
	fn, err := prog.NewFunction("main")
	if err != nil {
		t.Fatal(err)
	}
	x, err := fn.Block().AddInput("x", fp32Tensor(2))
	if err != nil {
		t.Fatal(err)
	}
	first := addOp(t, fn.Block(), "add", x, x)
	second := addOp(t, fn.Block(), "add", x, x)
	if got := first.Output(0).Name(); got != "add" {
		t.Errorf("first output named %s but want add", got)
	}
	if got := second.Output(0).Name(); got != "add_1" {
		t.Errorf("second output named %s but want add_1", got)
	}
	if first.Output(0).ID() == second.Output(0).ID() {
		t.Errorf("two values share id %d", first.Output(0).ID())
	}
}

func TestProgramString(t *testing.T) {
	prog := ir.NewProgram("main")
	fn, err := prog.NewFunction("main")
	if err != nil {
		t.Fatal(err)
	}
	x, err := fn.Block().AddInput("x", fp32Tensor(2))
	if err != nil {
		t.Fatal(err)
	}
	y, err := fn.Block().AddInput("y", fp32Tensor(2))
	if err != nil {
		t.Fatal(err)
	}
	add := addOp(t, fn.Block(), "add", x, y)
	if err := fn.Block().SetOutputs(add.Output(0)); err != nil {
		t.Fatal(err)
	}
	want := `program main {
	func main(%x: tensor<fp32, [2]>, %y: tensor<fp32, [2]>) {
		%add = add(x=%x, y=%y) : tensor<fp32, [2]>
	} -> (%add)
}
`
	if got := prog.String(); got != want {
		t.Errorf("program prints as:\n%s\nbut want:\n%s", got, want)
	}
}
