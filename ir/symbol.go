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

import "fmt"

// Symbol stands for an unknown non-negative integer dimension.
// Symbols are compared by identity: two dimensions holding the same
// *Symbol are known to be equal even though their value is unknown.
type Symbol struct {
	name string
}

// Name of the symbol.
func (s *Symbol) Name() string { return s.name }

// String representation of the symbol.
func (s *Symbol) String() string { return s.name }

// Pool creates the symbols of one conversion session.
//
// A pool is owned by a Program and carried explicitly through shape
// inference, so that independent conversions running in the same
// process never share symbols.
type Pool struct {
	names map[string]bool
	next  int
}

// NewPool returns an empty symbol pool.
func NewPool() *Pool {
	return &Pool{names: make(map[string]bool)}
}

// New returns a fresh symbol with a generated name (is0, is1, ...).
func (p *Pool) New() *Symbol {
	for {
		name := fmt.Sprintf("is%d", p.next)
		p.next++
		if !p.names[name] {
			p.names[name] = true
			return &Symbol{name: name}
		}
	}
}

// Named returns a fresh symbol with the given name. If the name is
// already taken, a numeric suffix is appended.
func (p *Pool) Named(name string) *Symbol {
	if !p.names[name] {
		p.names[name] = true
		return &Symbol{name: name}
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !p.names[candidate] {
			p.names[candidate] = true
			return &Symbol{name: candidate}
		}
	}
}
