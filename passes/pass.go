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

// Package passes transforms MIR programs in place: a registry of named
// passes, a manager running configured pipelines, and the built-in
// graph optimizations.
//
// Passes analyze before they mutate: a pass that returns an error has
// not touched the program, so the caller still holds the graph it
// passed in. Graph invariant violations are the exception and poison
// the program.
package passes

import (
	"github.com/mir-org/mir/base/ordered"
	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/irerr"
)

// Pass transforms a program in place. Run reports whether the program
// changed.
type Pass interface {
	Name() string
	Run(prog *ir.Program) (bool, error)
}

// fixedPoint marks a pass for repeated invocation by the manager until
// the pass reports no change or the iteration cap is reached.
type fixedPoint struct {
	inner Pass
}

// FixedPoint wraps a pass so the manager re-runs it until quiescence.
func FixedPoint(pass Pass) Pass {
	return &fixedPoint{inner: pass}
}

// Name of the wrapped pass.
func (f *fixedPoint) Name() string { return f.inner.Name() }

// Run performs a single step; iteration is driven by the manager.
func (f *fixedPoint) Run(prog *ir.Program) (bool, error) {
	return f.inner.Run(prog)
}

var registry = ordered.NewMap[string, func() Pass]()

// Register adds a pass factory under a pipeline name.
func Register(name string, factory func() Pass) error {
	if registry.Has(name) {
		return irerr.Errorf(irerr.Schema, "pass %s already registered", name)
	}
	registry.Store(name, factory)
	return nil
}

// MustRegister adds a pass factory, panicking on a duplicate name.
func MustRegister(name string, factory func() Pass) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// Lookup instantiates a registered pass.
func Lookup(name string) (Pass, error) {
	factory, ok := registry.Load(name)
	if !ok {
		return nil, irerr.Errorf(irerr.Name, "unknown pass %q", name)
	}
	return factory(), nil
}

// Names returns the registered pass names in registration order.
func Names() []string {
	var names []string
	for name := range registry.Keys() {
		names = append(names, name)
	}
	return names
}

// DefaultPipeline returns the standard optimization pipeline in
// execution order.
func DefaultPipeline() []string {
	return []string{
		"const_elimination",
		"cse",
		"noop_elimination",
		"merge_consecutive_reshapes",
		"merge_consecutive_transposes",
		"cast_optimization",
		"dead_code_elimination",
	}
}

func init() {
	MustRegister("dead_code_elimination", func() Pass {
		return &deadCodeElim{}
	})
	MustRegister("const_elimination", func() Pass {
		return FixedPoint(newConstElim())
	})
	MustRegister("cse", func() Pass {
		return &commonSubexpr{}
	})
	MustRegister("noop_elimination", func() Pass {
		return newNoopElimination()
	})
	MustRegister("merge_consecutive_reshapes", func() Pass {
		return newMergeReshapes()
	})
	MustRegister("merge_consecutive_transposes", func() Pass {
		return newMergeTransposes()
	})
	MustRegister("cast_optimization", func() Pass {
		return newCastOptimization()
	})
	MustRegister("validate", func() Pass {
		return newValidate()
	})
}
