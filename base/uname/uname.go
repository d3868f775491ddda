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

// Package uname provides unique names.
package uname

import "fmt"

// Unique generates names guaranteed to be unique within one generator,
// for example the names of all the values owned by a program.
type Unique struct {
	names map[string]int
}

// New name generator.
func New() *Unique {
	return &Unique{names: make(map[string]int)}
}

// Register marks a name as taken without generating anything.
// Used when a caller supplies its own name for a value.
func (n *Unique) Register(name string) {
	if _, ok := n.names[name]; !ok {
		n.names[name] = 1
	}
}

// Name returns a unique name given a desired base name.
// If the base name is available, it is returned directly.
// Else, a unique underscore suffix is appended.
func (n *Unique) Name(root string) string {
	nextIndex, ok := n.names[root]
	if !ok {
		n.names[root] = 1
		return root
	}
	for {
		name := fmt.Sprintf("%s_%d", root, nextIndex)
		nextIndex++
		n.names[root] = nextIndex
		if _, taken := n.names[name]; !taken {
			n.names[name] = 1
			return name
		}
	}
}

// Fresh returns a name for an anonymous value given a prefix,
// for example var_0, var_1, ...
func (n *Unique) Fresh(prefix string) string {
	index := n.names[prefix+"#"]
	for {
		name := fmt.Sprintf("%s_%d", prefix, index)
		index++
		n.names[prefix+"#"] = index
		if _, taken := n.names[name]; !taken {
			n.names[name] = 1
			return name
		}
	}
}
