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

// Package irerr classifies the errors reported by the MIR core.
//
// Every error crossing a package boundary carries one of the kinds
// below. Builder-level kinds (Schema, Type, Name) are recoverable by
// the frontend emitting the graph; GraphInvariant is fatal and aborts
// the active pass pipeline; Pass marks a rejected rewrite that leaves
// the rest of the graph untouched.
package irerr

import (
	goerrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind of an error reported by the IR core.
type Kind int

const (
	// Unknown is the kind of errors produced outside of this package.
	Unknown Kind = iota
	// Schema reports an operator arity or attribute mismatch.
	Schema
	// Type reports a shape or type inference failure.
	Type
	// Name reports a reference to an unknown operator, value or function.
	Name
	// GraphInvariant reports a broken structural invariant
	// (SSA violation, use before def, dangling reference).
	GraphInvariant
	// Pass reports a rewrite rejected by a pass precondition.
	Pass
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case Schema:
		return "schema error"
	case Type:
		return "type error"
	case Name:
		return "name error"
	case GraphInvariant:
		return "graph invariant error"
	case Pass:
		return "pass error"
	}
	return "error"
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.err.Error())
}

func (e *kindError) Unwrap() error {
	return e.err
}

// New wraps an error with a kind. Returns nil if err is nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// Errorf creates an error of the given kind.
func Errorf(kind Kind, format string, args ...any) error {
	return &kindError{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrapf adds context to an error, keeping its innermost kind.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	return &kindError{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// KindOf returns the kind of an error, or Unknown if the error
// was not produced by this package. The outermost kind wins.
func KindOf(err error) Kind {
	var kerr *kindError
	if goerrors.As(err, &kerr) {
		return kerr.kind
	}
	return Unknown
}

// IsKind returns true if the error has the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
