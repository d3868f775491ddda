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

// Package ops defines the operator registry of MIR: for each operator,
// an input schema, an attribute schema, a type/shape inference rule
// and an optional constant folder.
//
// The builder package is the only construction path for operations and
// consults the registry on every construction; the validation pass
// re-runs the same inference rules, which must therefore be pure.
package ops

import (
	"sync"

	"github.com/mir-org/mir/base/ordered"
	"github.com/mir-org/mir/ir"
	"github.com/mir-org/mir/ir/irerr"
)

// InputSpec describes one input slot of an operator.
type InputSpec struct {
	// Name of the slot.
	Name string
	// Class constrains the type of the values bound to the slot.
	Class *TypeClass
	// Const requires the bound value to be known at compile time,
	// for example the target shape of a reshape.
	Const bool
	// Optional slots may be left unbound.
	Optional bool
	// Variadic slots accept one or more values. A variadic slot must
	// be the last slot of the schema.
	Variadic bool
}

// AttrSpec describes one attribute of an operator.
type AttrSpec struct {
	// Name of the attribute.
	Name string
	// Kind of the attribute value.
	Kind AttrKind
	// Default value materialized when the attribute is not provided.
	// An attribute without default is required.
	Default ir.Attr
}

// Spec is the registered specification of an operator.
type Spec struct {
	// Name of the operator.
	Name string
	// Inputs is the ordered input schema.
	Inputs []InputSpec
	// Attrs is the ordered attribute schema.
	Attrs []AttrSpec
	// Blocks is the number of sub-blocks of a control-flow operator,
	// bound through a "blocks" attribute. 0 for data operators.
	Blocks int
	// SideEffect marks operators that must never be eliminated even
	// when their outputs are unused, for example state writes.
	SideEffect bool
	// PromoteArgs lists the slots whose numeric data types the
	// builder promotes to a common kind by inserting casts.
	PromoteArgs []string

	// Infer returns the output types given input types and
	// attributes. It must be a pure function: calling it twice with
	// the same context yields the same types, which is what lets the
	// validation pass re-run it safely.
	Infer func(ctx *InferContext) ([]ir.Type, error)

	// Fold computes the output constants when every input is known at
	// compile time. A nil Fold makes constant folding skip the
	// operator, which is a missed optimization, never an error.
	Fold func(ctx *FoldContext) ([]*ir.Constant, error)

	// FoldTypes computes the output constants from the input types
	// alone, for operators like shape whose result depends on the
	// static part of a type rather than on a payload. Returns false
	// when the types are not static enough.
	FoldTypes func(ctx *InferContext) ([]*ir.Constant, bool)
}

// Registry maps operator names to their specifications.
type Registry struct {
	specs *ordered.Map[string, *Spec]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: ordered.NewMap[string, *Spec]()}
}

// Register adds an operator specification to the registry.
func (r *Registry) Register(spec *Spec) error {
	if r.specs.Has(spec.Name) {
		return irerr.Errorf(irerr.Schema, "operator %s already registered", spec.Name)
	}
	for i, in := range spec.Inputs {
		if in.Variadic && i != len(spec.Inputs)-1 {
			return irerr.Errorf(irerr.Schema, "operator %s: variadic slot %s is not the last slot", spec.Name, in.Name)
		}
	}
	r.specs.Store(spec.Name, spec)
	return nil
}

// MustRegister adds an operator specification, panicking on error.
// Used for process-wide startup registration of the built-ins.
func (r *Registry) MustRegister(spec *Spec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

// Lookup returns the specification of an operator.
func (r *Registry) Lookup(name string) (*Spec, error) {
	spec, ok := r.specs.Load(name)
	if !ok {
		return nil, irerr.Errorf(irerr.Name, "unknown operator %q", name)
	}
	return spec, nil
}

// Names returns the registered operator names in registration order.
func (r *Registry) Names() []string {
	var names []string
	for name := range r.specs.Keys() {
		names = append(names, name)
	}
	return names
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the registry holding all built-in operators.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		registerElementwise(defaultRegistry)
		registerTensorOps(defaultRegistry)
		registerLinalg(defaultRegistry)
		registerControl(defaultRegistry)
		registerState(defaultRegistry)
	})
	return defaultRegistry
}
