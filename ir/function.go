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

// Function is a named graph with a declared input signature. The
// inputs of a function are the inputs of its top-level block; its
// outputs are the outputs of that block.
type Function struct {
	name  string
	prog  *Program
	block *Block
}

// Name of the function.
func (f *Function) Name() string { return f.name }

// Program owning the function.
func (f *Function) Program() *Program { return f.prog }

// Block returns the top-level block of the function.
func (f *Function) Block() *Block { return f.block }

// Inputs returns the declared function inputs.
func (f *Function) Inputs() []*Value {
	return f.block.Inputs()
}

// Outputs returns the function outputs.
func (f *Function) Outputs() []*Value {
	return f.block.Outputs()
}
