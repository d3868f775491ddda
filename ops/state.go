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

// State accesses carry a side effect mark: reads and writes on the
// same buffer must keep their program order, so neither is eligible
// for elimination or merging.
func registerState(r *Registry) {
	r.MustRegister(readStateSpec())
	r.MustRegister(writeStateSpec())
}

func readStateSpec() *Spec {
	return &Spec{
		Name: "read_state",
		Inputs: []InputSpec{
			{Name: "resource", Class: AnyState},
		},
		SideEffect: true,
		Infer: func(ctx *InferContext) ([]ir.Type, error) {
			st, err := stateArg(ctx, "resource")
			if err != nil {
				return nil, err
			}
			return []ir.Type{st.Wrapped()}, nil
		},
	}
}

func writeStateSpec() *Spec {
	return &Spec{
		Name: "write_state",
		Inputs: []InputSpec{
			{Name: "resource", Class: AnyState},
			{Name: "value", Class: AnyTensor},
		},
		SideEffect: true,
		Infer: func(ctx *InferContext) ([]ir.Type, error) {
			st, err := stateArg(ctx, "resource")
			if err != nil {
				return nil, err
			}
			value, err := ctx.Tensor("value")
			if err != nil {
				return nil, err
			}
			if _, err := ir.Unify(ctx.Unifier(), st.Wrapped(), value); err != nil {
				return nil, irerr.Wrapf(err, "cannot store a %s in a %s buffer", value, st.Wrapped())
			}
			// A write yields no value.
			return nil, nil
		},
	}
}

func stateArg(ctx *InferContext, slot string) (*ir.StateType, error) {
	t := ctx.Type(slot)
	if t == nil {
		return nil, ctx.Errorf("missing input %s", slot)
	}
	st, ok := t.(*ir.StateType)
	if !ok {
		return nil, ctx.Errorf("input %s is not a state but a %s", slot, t)
	}
	return st, nil
}
