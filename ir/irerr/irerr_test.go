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

package irerr_test

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/mir-org/mir/ir/irerr"
)

func TestKindOf(t *testing.T) {
	err := irerr.Errorf(irerr.Type, "cannot unify %s with %s", "fp32", "int32")
	if got := irerr.KindOf(err); got != irerr.Type {
		t.Errorf("KindOf = %v but want %v", got, irerr.Type)
	}
	if !irerr.IsKind(err, irerr.Type) {
		t.Errorf("IsKind(err, Type) = false but want true")
	}
	if irerr.IsKind(err, irerr.Schema) {
		t.Errorf("IsKind(err, Schema) = true but want false")
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := irerr.Errorf(irerr.Schema, "operator add: missing input y")
	wrapped := irerr.Wrapf(err, "function main")
	if got := irerr.KindOf(wrapped); got != irerr.Schema {
		t.Errorf("KindOf(wrapped) = %v but want %v", got, irerr.Schema)
	}
	wrapped = errors.Wrap(wrapped, "program p")
	if got := irerr.KindOf(wrapped); got != irerr.Schema {
		t.Errorf("KindOf(wrapped twice) = %v but want %v", got, irerr.Schema)
	}
}

func TestUnknownKind(t *testing.T) {
	err := errors.New("not from this package")
	if got := irerr.KindOf(err); got != irerr.Unknown {
		t.Errorf("KindOf = %v but want Unknown", got)
	}
	if irerr.New(irerr.Type, nil) != nil {
		t.Errorf("New(Type, nil) is not nil")
	}
	if irerr.Wrapf(nil, "context") != nil {
		t.Errorf("Wrapf(nil) is not nil")
	}
}

func TestErrorMessage(t *testing.T) {
	err := irerr.Errorf(irerr.Name, "unknown operator %q", "frobnicate")
	for _, want := range []string{"name error", "frobnicate"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not contain %q", err.Error(), want)
		}
	}
}
