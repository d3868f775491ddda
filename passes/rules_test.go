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
	"slices"
	"testing"

	"github.com/mir-org/mir/builder"
	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/dtype"
)

func intsConst(t *testing.T, b *builder.Builder, vals ...int64) *ir.Value {
	t.Helper()
	c, err := ir.NewTensor(dtype.Int32, ir.StaticShape(int64(len(vals))), vals)
	if err != nil {
		t.Fatal(err)
	}
	v, err := b.Const(c)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func cast(t *testing.T, b *builder.Builder, x *ir.Value, dt dtype.Kind) *ir.Value {
	t.Helper()
	outs, err := b.AddOperation("cast",
		[]ir.Argument{builder.Arg("x", x)},
		ir.Attribute{Name: "dtype", Value: ir.StringAttr(dt.String())})
	if err != nil {
		t.Fatal(err)
	}
	return outs[0]
}

func TestNoopAddZero(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	out := binary(t, b, "add", x, vec(t, b, 0, 0))
	if err := b.SetFunctionOutputs(out); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "noop_elimination", prog); !changed {
		t.Fatalf("additive zero not eliminated")
	}
	fn, err := prog.Function("main")
	if err != nil {
		t.Fatal(err)
	}
	if fn.Outputs()[0] != x {
		t.Errorf("function output is %s but want the input directly", fn.Outputs()[0])
	}
	if got := countOps(b.Block(), "add"); got != 0 {
		t.Errorf("block still holds %d add operations", got)
	}
}

func TestNoopRejectsBroadcastWidening(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(1))
	if err != nil {
		t.Fatal(err)
	}
	// x broadcasts from [1] to [2]: dropping the add would change the
	// result type, so the rewrite must not commit.
	out := binary(t, b, "add", x, vec(t, b, 0, 0))
	if err := b.SetFunctionOutputs(out); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "noop_elimination", prog); changed {
		t.Fatalf("type-changing rewrite committed")
	}
	if got := countOps(b.Block(), "add"); got != 1 {
		t.Errorf("block holds %d add operations but want 1", got)
	}
}

func TestNoopMulOneAndIdentity(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	kept := unary(t, b, "identity", binary(t, b, "mul", x, vec(t, b, 1, 1)))
	if err := b.SetFunctionOutputs(kept); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	runPass(t, "noop_elimination", prog)
	fn, err := prog.Function("main")
	if err != nil {
		t.Fatal(err)
	}
	if fn.Outputs()[0] != x {
		t.Errorf("function output is %s but want the input directly", fn.Outputs()[0])
	}
}

func TestMergeConsecutiveReshapes(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2, 6))
	if err != nil {
		t.Fatal(err)
	}
	mid, err := b.AddOperation("reshape",
		[]ir.Argument{builder.Arg("x", x), builder.Arg("shape", intsConst(t, b, 3, 4))})
	if err != nil {
		t.Fatal(err)
	}
	out, err := b.AddOperation("reshape",
		[]ir.Argument{builder.Arg("x", mid[0]), builder.Arg("shape", intsConst(t, b, 12))})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetFunctionOutputs(out[0]); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "merge_consecutive_reshapes", prog); !changed {
		t.Fatalf("reshape chain not merged")
	}
	fn, err := prog.Function("main")
	if err != nil {
		t.Fatal(err)
	}
	merged := fn.Outputs()[0].Def()
	if merged.Name() != "reshape" {
		t.Fatalf("output producer is %s but want reshape", merged.Name())
	}
	if src, _ := merged.Arg("x"); src != x {
		t.Errorf("merged reshape does not read the original input")
	}
	if got := fn.Outputs()[0].Type().String(); got != "tensor<fp32, [12]>" {
		t.Errorf("got %s but want tensor<fp32, [12]>", got)
	}
}

func TestMergeConsecutiveTransposes(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2, 3, 4))
	if err != nil {
		t.Fatal(err)
	}
	mid, err := b.AddOperation("transpose",
		[]ir.Argument{builder.Arg("x", x)},
		ir.Attribute{Name: "perm", Value: ir.IntsAttr{1, 0, 2}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := b.AddOperation("transpose",
		[]ir.Argument{builder.Arg("x", mid[0])},
		ir.Attribute{Name: "perm", Value: ir.IntsAttr{2, 1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetFunctionOutputs(out[0]); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "merge_consecutive_transposes", prog); !changed {
		t.Fatalf("transpose chain not merged")
	}
	fn, err := prog.Function("main")
	if err != nil {
		t.Fatal(err)
	}
	merged := fn.Outputs()[0].Def()
	if merged.Name() != "transpose" {
		t.Fatalf("output producer is %s but want transpose", merged.Name())
	}
	if src, _ := merged.Arg("x"); src != x {
		t.Errorf("merged transpose does not read the original input")
	}
	perm, _ := merged.Attr("perm")
	if !slices.Equal(perm.(ir.IntsAttr), ir.IntsAttr{2, 0, 1}) {
		t.Errorf("got composed permutation %v but want [2, 0, 1]", perm)
	}
	if got := fn.Outputs()[0].Type().String(); got != "tensor<fp32, [4, 2, 3]>" {
		t.Errorf("got %s but want tensor<fp32, [4, 2, 3]>", got)
	}
}

func TestCastNoop(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", fp32(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetFunctionOutputs(cast(t, b, x, dtype.Float32)); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "cast_optimization", prog); !changed {
		t.Fatalf("cast to the input data type kept")
	}
	fn, err := prog.Function("main")
	if err != nil {
		t.Fatal(err)
	}
	if fn.Outputs()[0] != x {
		t.Errorf("function output is %s but want the input directly", fn.Outputs()[0])
	}
}

func TestMergeCastsLossless(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", ir.NewTensorType(dtype.Int32, ir.StaticShape(2)))
	if err != nil {
		t.Fatal(err)
	}
	// int32 -> fp64 -> fp32: the intermediate fp64 holds every int32,
	// so one cast suffices.
	out := cast(t, b, cast(t, b, x, dtype.Float64), dtype.Float32)
	if err := b.SetFunctionOutputs(out); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "cast_optimization", prog); !changed {
		t.Fatalf("lossless cast chain not merged")
	}
	fn, err := prog.Function("main")
	if err != nil {
		t.Fatal(err)
	}
	merged := fn.Outputs()[0].Def()
	if merged.Name() != "cast" {
		t.Fatalf("output producer is %s but want cast", merged.Name())
	}
	if src, _ := merged.Arg("x"); src != x {
		t.Errorf("merged cast does not read the original input")
	}
	if got := fn.Outputs()[0].Type().String(); got != "tensor<fp32, [2]>" {
		t.Errorf("got %s but want tensor<fp32, [2]>", got)
	}
}

func TestMergeCastsKeepsLossyChain(t *testing.T) {
	b := newFunc(t)
	x, err := b.DeclareFunctionInput("x", ir.NewTensorType(dtype.Float64, ir.StaticShape(2)))
	if err != nil {
		t.Fatal(err)
	}
	// fp64 -> fp32 -> fp64 rounds through fp32; merging would undo the
	// rounding.
	out := cast(t, b, cast(t, b, x, dtype.Float32), dtype.Float64)
	if err := b.SetFunctionOutputs(out); err != nil {
		t.Fatal(err)
	}
	prog := b.Program()

	if changed := runPass(t, "cast_optimization", prog); changed {
		t.Fatalf("lossy cast chain rewritten")
	}
	if got := countOps(b.Block(), "cast"); got != 2 {
		t.Errorf("block holds %d cast operations but want 2", got)
	}
}
