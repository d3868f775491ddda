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
	"fmt"
	"slices"
	"strings"
)

type (
	// Attr is the value of an operation attribute: a literal, a list
	// of literals, a constant tensor, or the sub-blocks of a
	// control-flow operator.
	Attr interface {
		attrNode()

		// Equal returns true if both attribute values are equal.
		// Sub-block attributes are compared by block identity.
		Equal(Attr) bool

		// String representation of the attribute value.
		String() string
	}

	// BoolAttr is a bool literal attribute.
	BoolAttr bool

	// IntAttr is an integer literal attribute.
	IntAttr int64

	// FloatAttr is a float literal attribute.
	FloatAttr float64

	// StringAttr is a string literal attribute.
	StringAttr string

	// IntsAttr is an integer list attribute, for example the
	// permutation of a transpose.
	IntsAttr []int64

	// FloatsAttr is a float list attribute.
	FloatsAttr []float64

	// StringsAttr is a string list attribute.
	StringsAttr []string

	// ConstAttr carries a constant tensor, for example the payload of
	// a const operation.
	ConstAttr struct {
		Val *Constant
	}

	// BlocksAttr carries the sub-blocks of a control-flow operator.
	// The operation owns the blocks.
	BlocksAttr struct {
		Blocks []*Block
	}
)

func (BoolAttr) attrNode()    {}
func (IntAttr) attrNode()     {}
func (FloatAttr) attrNode()   {}
func (StringAttr) attrNode()  {}
func (IntsAttr) attrNode()    {}
func (FloatsAttr) attrNode()  {}
func (StringsAttr) attrNode() {}
func (ConstAttr) attrNode()   {}
func (BlocksAttr) attrNode()  {}

// Equal returns true if the other attribute is the same bool.
func (a BoolAttr) Equal(o Attr) bool {
	oT, ok := o.(BoolAttr)
	return ok && a == oT
}

// Equal returns true if the other attribute is the same integer.
func (a IntAttr) Equal(o Attr) bool {
	oT, ok := o.(IntAttr)
	return ok && a == oT
}

// Equal returns true if the other attribute is the same float.
func (a FloatAttr) Equal(o Attr) bool {
	oT, ok := o.(FloatAttr)
	return ok && a == oT
}

// Equal returns true if the other attribute is the same string.
func (a StringAttr) Equal(o Attr) bool {
	oT, ok := o.(StringAttr)
	return ok && a == oT
}

// Equal returns true if the other attribute is the same integer list.
func (a IntsAttr) Equal(o Attr) bool {
	oT, ok := o.(IntsAttr)
	return ok && slices.Equal(a, oT)
}

// Equal returns true if the other attribute is the same float list.
func (a FloatsAttr) Equal(o Attr) bool {
	oT, ok := o.(FloatsAttr)
	return ok && slices.Equal(a, oT)
}

// Equal returns true if the other attribute is the same string list.
func (a StringsAttr) Equal(o Attr) bool {
	oT, ok := o.(StringsAttr)
	return ok && slices.Equal(a, oT)
}

// Equal returns true if the other attribute carries an equal constant.
func (a ConstAttr) Equal(o Attr) bool {
	oT, ok := o.(ConstAttr)
	return ok && a.Val.Equal(oT.Val)
}

// Equal returns true if the other attribute carries the same blocks.
func (a BlocksAttr) Equal(o Attr) bool {
	oT, ok := o.(BlocksAttr)
	return ok && slices.Equal(a.Blocks, oT.Blocks)
}

// String representation of the attribute value.
func (a BoolAttr) String() string { return fmt.Sprintf("%v", bool(a)) }

// String representation of the attribute value.
func (a IntAttr) String() string { return fmt.Sprintf("%d", int64(a)) }

// String representation of the attribute value.
func (a FloatAttr) String() string { return fmt.Sprintf("%v", float64(a)) }

// String representation of the attribute value.
func (a StringAttr) String() string { return fmt.Sprintf("%q", string(a)) }

// String representation of the attribute value.
func (a IntsAttr) String() string {
	ss := make([]string, len(a))
	for i, v := range a {
		ss[i] = fmt.Sprintf("%d", v)
	}
	return "(" + strings.Join(ss, ", ") + ")"
}

// String representation of the attribute value.
func (a FloatsAttr) String() string {
	ss := make([]string, len(a))
	for i, v := range a {
		ss[i] = fmt.Sprintf("%v", v)
	}
	return "(" + strings.Join(ss, ", ") + ")"
}

// String representation of the attribute value.
func (a StringsAttr) String() string {
	ss := make([]string, len(a))
	for i, v := range a {
		ss[i] = fmt.Sprintf("%q", v)
	}
	return "(" + strings.Join(ss, ", ") + ")"
}

// String representation of the attribute value.
func (a ConstAttr) String() string { return a.Val.String() }

// String representation of the attribute value.
func (a BlocksAttr) String() string {
	return fmt.Sprintf("<%d blocks>", len(a.Blocks))
}

// Attribute is a named attribute of an operation.
type Attribute struct {
	Name  string
	Value Attr
}

// String representation of the attribute.
func (a Attribute) String() string {
	return fmt.Sprintf("%s=%s", a.Name, a.Value)
}
