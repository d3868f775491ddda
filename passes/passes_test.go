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

package passes_test

import (
	"strings"
	"testing"

	"github.com/mir-org/mir/builder"
	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/dtype"
	"github.com/mir-org/mir/ops"
	"github.com/mir-org/mir/passes"
)

func fp32(dims ...int64) *ir.TensorType {
	return ir.NewTensorType(dtype.Float32, ir.StaticShape(dims...))
}

func newFunc(t *testing.T) *builder.Builder {
	t.Helper()
	b := builder.New("test")
	if _, err := b.NewFunction("main"); err != nil {
		t.Fatal(err)
	}
	return b
}

// vec materializes a fp32 vector constant in the function under
// construction.
func vec(t *testing.T, b *builder.Builder, vals ...float64) *ir.Value {
	t.Helper()
	c, err := ir.NewTensor(dtype.Float32, ir.StaticShape(int64(len(vals))), vals)
	if err != nil {
		t.Fatal(err)
	}
	v, err := b.Const(c)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func unary(t *testing.T, b *builder.Builder, name string, x *ir.Value) *ir.Value {
	t.Helper()
	outs, err := b.AddOperation(name, []ir.Argument{builder.Arg("x", x)})
	if err != nil {
		t.Fatal(err)
	}
	return outs[0]
}

func readState(t *testing.T, b *builder.Builder, res *ir.Value) *ir.Value {
	t.Helper()
	outs, err := b.AddOperation("read_state", []ir.Argument{builder.Arg("resource", res)})
	if err != nil {
		t.Fatal(err)
	}
	return outs[0]
}

func binary(t *testing.T, b *builder.Builder, name string, x, y *ir.Value) *ir.Value {
	t.Helper()
	outs, err := b.AddOperation(name, []ir.Argument{builder.Arg("x", x), builder.Arg("y", y)})
	if err != nil {
		t.Fatal(err)
	}
	return outs[0]
}

// runPass resolves a pass by its pipeline name and runs it once.
func runPass(t *testing.T, name string, prog *ir.Program) bool {
	t.Helper()
	pass, err := passes.Lookup(name)
	if err != nil {
		t.Fatal(err)
	}
	changed, err := pass.Run(prog)
	if err != nil {
		t.Fatal(err)
	}
	return changed
}

func countOps(b *ir.Block, name string) int {
	n := 0
	for _, op := range b.Ops() {
		if op.Name() == name {
			n++
		}
	}
	return n
}

func TestDeadCodeElimination(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	// A dead chain: neg feeding an unused exp.
	unary(t, b, "exp", unary(t, b, "neg", x))
	live := binary(t, b, "mul", x, x)
	if err := b.SetFunctionOutputs(live); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "dead_code_elimination", prog); !changed {
		t.Fatalf("dead chain not removed")
	}
	if got := b.Block().NumOps(); got != 1 {
		t.Errorf("block holds %d operations but want 1", got)
	}
	if changed := runPass(t, "dead_code_elimination", prog); changed {
		t.Errorf("second run still reports changes")
	}
}

func TestDeadCodeKeepsStateWrites(t *testing.T) {
	b := newFunc(t)
	cache, err := b.DeclareState("cache", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	read := readState(t, b, cache)
	neg := unary(t, b, "neg", read)
	if _, err := b.AddOperation("write_state", []ir.Argument{
		builder.Arg("resource", cache),
		builder.Arg("value", neg),
	}); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	// Nothing feeds a function output, yet the write and its producers
	// must stay.
	runPass(t, "dead_code_elimination", prog)
	if got := b.Block().NumOps(); got != 3 {
		t.Errorf("block holds %d operations but want 3", got)
	}
}

func TestConstElimination(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	product := binary(t, b, "mul", vec(t, b, 2, 3), vec(t, b, 4, 5))
	out := binary(t, b, "add", x, product)
	if err := b.SetFunctionOutputs(out); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "const_elimination", prog); !changed {
		t.Fatalf("constant subgraph not folded")
	}
	if got := countOps(b.Block(), "mul"); got != 0 {
		t.Errorf("block still holds %d mul operations", got)
	}
	add := b.Block().Ops()[b.Block().NumOps()-1]
	if add.Name() != "add" {
		t.Fatalf("last operation is %s but want add", add.Name())
	}
	y, _ := add.Arg("y")
	if y.Def() == nil || y.Def().Name() != "const" {
		t.Errorf("add consumes %v instead of a materialized constant", y)
	}
	want := []float64{8, 15}
	got := y.Const().Floats()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got folded payload %v but want %v", got, want)
	}
}

func TestConstEliminationSkipsDivByZero(t *testing.T) {
	b := newFunc(t)
	div := binary(t, b, "real_div", vec(t, b, 1), vec(t, b, 0))
	if err := b.SetFunctionOutputs(div); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	// The folder fails on the zero divisor; the pass skips the
	// operation instead of failing.
	if changed := runPass(t, "const_elimination", prog); changed {
		t.Errorf("division by zero reported as folded")
	}
	if got := countOps(b.Block(), "real_div"); got != 1 {
		t.Errorf("block holds %d real_div operations but want 1", got)
	}
}

func TestConstEliminationShapeFromType(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(4, 5))
	if err != nil {
		t.Fatal(err)
	}
	// The input value is unknown, but shape depends only on its
	// static type.
	shp, err := b.AddOperation("shape", []ir.Argument{builder.Arg("x", x)})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetFunctionOutputs(shp[0]); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "const_elimination", prog); !changed {
		t.Fatalf("shape of a statically shaped input not folded")
	}
	if got := countOps(b.Block(), "shape"); got != 0 {
		t.Errorf("block still holds %d shape operations", got)
	}
	fn, err := prog.Function("main")
	if err != nil {
		t.Fatal(err)
	}
	out := fn.Outputs()[0]
	if out.Def() == nil || out.Def().Name() != "const" {
		t.Fatalf("function output is %s instead of a materialized constant", out)
	}
	ints := out.Const().Ints()
	if len(ints) != 2 || ints[0] != 4 || ints[1] != 5 {
		t.Errorf("got folded payload %v but want [4 5]", ints)
	}
}

func TestCommonSubexpressionElimination(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	a := binary(t, b, "add", x, x)
	c := binary(t, b, "add", x, x)
	out := binary(t, b, "mul", a, c)
	if err := b.SetFunctionOutputs(out); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "cse", prog); !changed {
		t.Fatalf("duplicate additions not merged")
	}
	if got := countOps(b.Block(), "add"); got != 1 {
		t.Errorf("block holds %d add operations but want 1", got)
	}
	mul := b.Block().Ops()[b.Block().NumOps()-1]
	mx, _ := mul.Arg("x")
	my, _ := mul.Arg("y")
	if mx != my {
		t.Errorf("mul operands differ after merging")
	}
}

func TestCSESkipsSideEffects(t *testing.T) {
	b := newFunc(t)
	cache, err := b.DeclareState("cache", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	// Two reads of the same resource are not interchangeable: a write
	// may happen between them.
	r1 := readState(t, b, cache)
	r2 := readState(t, b, cache)
	out := binary(t, b, "add", r1, r2)
	if err := b.SetFunctionOutputs(out); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	runPass(t, "cse", prog)
	if got := countOps(b.Block(), "read_state"); got != 2 {
		t.Errorf("block holds %d read_state operations but want 2", got)
	}
}

func TestCSEKeyCollision(t *testing.T) {
	b := newFunc(t)
	// Constants beyond eight elements print abbreviated, so the three
	// payloads share one key: the first two differ in depth, the third
	// equals the second and must still merge with it.
	k1 := intsConst(t, b, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	k2 := intsConst(t, b, 1, 2, 3, 4, 5, 6, 7, 8, 99, 100)
	k3 := intsConst(t, b, 1, 2, 3, 4, 5, 6, 7, 8, 99, 100)
	sum := binary(t, b, "add", binary(t, b, "add", k1, k2), k3)
	if err := b.SetFunctionOutputs(sum); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "cse", prog); !changed {
		t.Fatalf("duplicate constants not merged")
	}
	if got := countOps(b.Block(), "const"); got != 2 {
		t.Errorf("block holds %d const operations but want 2", got)
	}
}

func TestManagerCustomRegistry(t *testing.T) {
	reg := ops.NewRegistry()
	reg.MustRegister(&ops.Spec{
		Name: "passthrough",
		Inputs: []ops.InputSpec{
			{Name: "x", Class: ops.AnyTensor},
		},
		Infer: func(ctx *ops.InferContext) ([]ir.Type, error) {
			return []ir.Type{ctx.Type("x")}, nil
		},
	})
	b := builder.NewWithRegistry("test", reg)
	if _, err := b.NewFunction("main"); err != nil {
		t.Fatal(err)
	}
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	outs, err := b.AddOperation("passthrough", []ir.Argument{builder.Arg("x", x)})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetFunctionOutputs(outs[0]); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	// The default registry does not know the operator.
	if err := passes.Validate(prog); err == nil {
		t.Fatalf("custom operator validated against the default registry")
	}
	// A manager configured with the construction registry does.
	m, err := passes.NewManager(passes.Options{Strict: true, Registry: reg}, "dead_code_elimination")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(prog); err != nil {
		t.Fatalf("pipeline failed on a custom-registry program: %v", err)
	}
}

func TestManagerPipeline(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	// add of zero folds away, the sub is dead.
	out := binary(t, b, "add", x, vec(t, b, 0, 0))
	binary(t, b, "sub", x, x)
	if err := b.SetFunctionOutputs(out); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	m, err := passes.NewManager(passes.Options{}, passes.DefaultPipeline()...)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(prog); err != nil {
		t.Fatal(err)
	}
	if got := b.Block().NumOps(); got != 0 {
		t.Errorf("block holds %d operations after the pipeline but want 0", got)
	}
	fn, err := prog.Function("main")
	if err != nil {
		t.Fatal(err)
	}
	if fn.Outputs()[0] != x {
		t.Errorf("function output is %s but want the input directly", fn.Outputs()[0])
	}
}

func TestManagerStrict(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetFunctionOutputs(binary(t, b, "add", x, x)); err != nil {
		t.Fatal(err)
	}
	m, err := passes.NewManager(passes.Options{Strict: true}, passes.DefaultPipeline()...)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(b.Program()); err != nil {
		t.Fatal(err)
	}
}

func TestManagerUnknownPass(t *testing.T) {
	if _, err := passes.NewManager(passes.Options{}, "no_such_pass"); err == nil {
		t.Fatalf("unknown pass name resolved")
	}
}

// spinPass reports a change on every run without touching the program.
type spinPass struct{}

func (*spinPass) Name() string { return "spin" }

func (*spinPass) Run(*ir.Program) (bool, error) { return true, nil }

func TestManagerFixedPointCap(t *testing.T) {
	passes.MustRegister("spin", func() passes.Pass {
		return passes.FixedPoint(&spinPass{})
	})
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetFunctionOutputs(x); err != nil {
		t.Fatal(err)
	}
	m, err := passes.NewManager(passes.Options{FixedPointCap: 4}, "spin")
	if err != nil {
		t.Fatal(err)
	}
	// The cap bounds the iteration; the pipeline still completes.
	if err := m.Run(b.Program()); err != nil {
		t.Fatal(err)
	}
}

func TestValidateAcceptsBuilderOutput(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetFunctionOutputs(unary(t, b, "neg", binary(t, b, "add", x, x))); err != nil {
		t.Fatal(err)
	}
	if err := passes.Validate(b.Program()); err != nil {
		t.Fatal(err)
	}
}

func TestValidateUseBeforeDefinition(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	late := unary(t, b, "neg", x)
	blk := b.Block()
	// Hand-build a consumer and slot it in above its producer.
	early, err := ir.NewOperation(blk, "exp",
		[]ir.Argument{{Name: "x", Value: late}},
		nil, []ir.Type{late.Type()}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := blk.InsertBefore(early, late.Def()); err != nil {
		t.Fatal(err)
	}
	err = passes.Validate(b.Program())
	if err == nil {
		t.Fatalf("use before definition accepted")
	}
	if !strings.Contains(err.Error(), "before its definition") {
		t.Errorf("error %q does not point at the ordering violation", err)
	}
}

func TestValidateWrongOutputType(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	// A hand-built operation recording a wrong output type.
	op, err := ir.NewOperation(b.Block(), "neg",
		[]ir.Argument{{Name: "x", Value: x}},
		nil, []ir.Type{fp32(3)}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Block().Append(op); err != nil {
		t.Fatal(err)
	}
	err = passes.Validate(b.Program())
	if err == nil {
		t.Fatalf("wrong output type accepted")
	}
	if !strings.Contains(err.Error(), "inference yields") {
		t.Errorf("error %q does not point at re-inference", err)
	}
}
