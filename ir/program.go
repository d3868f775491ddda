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
	"github.com/mir-org/mir/base/ordered"
	"github.com/mir-org/mir/base/uname"
	"github.com/mir-org/mir/ir/irerr"
)

// Program is a framework-neutral model graph: named functions plus
// the externally persisted state buffers they read and write.
//
// A program exclusively owns every function, block, operation and
// value reachable from it. Passes mutate the owned graph in place;
// nothing is ever shared across two programs, including symbols.
type Program struct {
	name  string
	funcs *ordered.Map[string, *Function]
	state *ordered.Map[string, *StateType]

	pool   *Pool
	names  *uname.Unique
	nextID int
}

// NewProgram returns an empty program with its own symbol pool.
func NewProgram(name string) *Program {
	return &Program{
		name:  name,
		funcs: ordered.NewMap[string, *Function](),
		state: ordered.NewMap[string, *StateType](),
		pool:  NewPool(),
		names: uname.New(),
	}
}

// Name of the program.
func (p *Program) Name() string { return p.name }

// Pool returns the symbol pool of the program.
func (p *Program) Pool() *Pool { return p.pool }

// NewFunction creates an empty function in the program.
func (p *Program) NewFunction(name string) (*Function, error) {
	if p.funcs.Has(name) {
		return nil, irerr.Errorf(irerr.Schema, "function %s already declared", name)
	}
	fn := &Function{name: name, prog: p}
	fn.block = &Block{fn: fn}
	p.funcs.Store(name, fn)
	return fn, nil
}

// Function returns a function given its name.
func (p *Program) Function(name string) (*Function, error) {
	fn, ok := p.funcs.Load(name)
	if !ok {
		return nil, irerr.Errorf(irerr.Name, "program %s has no function %s", p.name, name)
	}
	return fn, nil
}

// Functions iterates over the functions in declaration order.
func (p *Program) Functions() func(yield func(*Function) bool) {
	return p.funcs.Values()
}

// NumFunctions returns the number of functions of the program.
func (p *Program) NumFunctions() int { return p.funcs.Size() }

// DeclareState declares an externally persisted buffer of the program.
func (p *Program) DeclareState(name string, typ *TensorType) (*StateType, error) {
	if p.state.Has(name) {
		return nil, irerr.Errorf(irerr.Schema, "state %s already declared", name)
	}
	st := NewStateType(typ)
	p.state.Store(name, st)
	return st, nil
}

// State returns the type of a declared state buffer.
func (p *Program) State(name string) (*StateType, error) {
	st, ok := p.state.Load(name)
	if !ok {
		return nil, irerr.Errorf(irerr.Name, "program %s has no state %s", p.name, name)
	}
	return st, nil
}

// StateNames returns the declared state names in declaration order.
func (p *Program) StateNames() []string {
	var names []string
	for name := range p.state.Keys() {
		names = append(names, name)
	}
	return names
}

// newValue creates a value owned by the program. The name hint is
// made unique within the program.
func (p *Program) newValue(hint string, typ Type, konst *Constant, def *Operation, owner *Block) *Value {
	var name string
	if hint == "" {
		name = p.names.Fresh("var")
	} else {
		name = p.names.Name(hint)
	}
	p.nextID++
	return &Value{
		id:    p.nextID,
		name:  name,
		typ:   typ,
		konst: konst,
		def:   def,
		owner: owner,
	}
}
