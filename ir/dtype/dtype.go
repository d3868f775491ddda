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

// Package dtype defines the scalar data types of the MIR intermediate
// representation and the numeric promotion lattice used by the builder.
package dtype

// Kind of a scalar data type.
type Kind uint8

// Scalar data types supported by MIR.
const (
	Invalid Kind = iota

	Bool

	Int8
	Int16
	Int32
	Int64

	Uint8
	Uint16
	Uint32
	Uint64

	Float16
	Float32
	Float64

	String
)

// DefaultInt is the default kind for integer constants.
const DefaultInt = Int32

// DefaultFloat is the default kind for float constants.
const DefaultFloat = Float32

// String returns the name of the kind in the textual IR,
// for example fp32 or int8.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float16:
		return "fp16"
	case Float32:
		return "fp32"
	case Float64:
		return "fp64"
	case String:
		return "string"
	}
	return "invalid"
}

// KindFromString returns a kind given its name. Both the fp16/fp32/fp64
// spellings of the textual IR and float16/float32/float64 are accepted.
// Returns Invalid if the name matches no kind.
func KindFromString(s string) Kind {
	switch s {
	case "bool":
		return Bool
	case "int8":
		return Int8
	case "int16":
		return Int16
	case "int32":
		return Int32
	case "int64":
		return Int64
	case "uint8":
		return Uint8
	case "uint16":
		return Uint16
	case "uint32":
		return Uint32
	case "uint64":
		return Uint64
	case "fp16", "float16":
		return Float16
	case "fp32", "float32":
		return Float32
	case "fp64", "float64":
		return Float64
	case "string":
		return String
	}
	return Invalid
}

// IsFloat returns true if the kind is a floating point type.
func (k Kind) IsFloat() bool {
	switch k {
	case Float16, Float32, Float64:
		return true
	}
	return false
}

// IsInteger returns true if the kind is a signed or unsigned integer.
func (k Kind) IsInteger() bool {
	switch k {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// IsUnsigned returns true if the kind is an unsigned integer.
func (k Kind) IsUnsigned() bool {
	switch k {
	case Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// IsNumeric returns true if the kind supports arithmetic operators.
func (k Kind) IsNumeric() bool {
	return k.IsFloat() || k.IsInteger()
}

// Size returns the size of one element in bytes, or 0 for types
// without a fixed element size.
func (k Kind) Size() int {
	switch k {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16, Float16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// width returns the bit width of a numeric kind.
func (k Kind) width() int {
	return k.Size() * 8
}

func floatOfWidth(bits int) Kind {
	switch {
	case bits <= 16:
		return Float16
	case bits <= 32:
		return Float32
	}
	return Float64
}

func intOfWidth(bits int) Kind {
	switch {
	case bits <= 8:
		return Int8
	case bits <= 16:
		return Int16
	case bits <= 32:
		return Int32
	}
	return Int64
}

func uintOfWidth(bits int) Kind {
	switch {
	case bits <= 8:
		return Uint8
	case bits <= 16:
		return Uint16
	case bits <= 32:
		return Uint32
	}
	return Uint64
}

// Promote returns the common kind two numeric kinds widen to, following
// the usual conversion lattice: within a class the wider kind wins,
// integers promote to floats, and an unsigned integer mixed with a
// signed one promotes to the signed integer wide enough to hold it.
// The second result is false when no promotion exists (Bool, String,
// Invalid, or Uint64 mixed with a signed integer).
func Promote(a, b Kind) (Kind, bool) {
	if a == b {
		if a == Invalid {
			return Invalid, false
		}
		return a, true
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return Invalid, false
	}
	if a.IsFloat() || b.IsFloat() {
		return promoteFloat(a, b), true
	}
	return promoteInt(a, b)
}

func promoteFloat(a, b Kind) Kind {
	bits := 0
	for _, k := range [...]Kind{a, b} {
		// An integer operand promotes to the float of its own width.
		w := floatOfWidth(k.width()).width()
		if w > bits {
			bits = w
		}
	}
	return floatOfWidth(bits)
}

func promoteInt(a, b Kind) (Kind, bool) {
	if a.IsUnsigned() == b.IsUnsigned() {
		of := intOfWidth
		if a.IsUnsigned() {
			of = uintOfWidth
		}
		return of(max(a.width(), b.width())), true
	}
	signed, unsigned := a, b
	if a.IsUnsigned() {
		signed, unsigned = b, a
	}
	if unsigned == Uint64 {
		// No signed integer holds the full uint64 range.
		return Invalid, false
	}
	if signed.width() > unsigned.width() {
		return signed, true
	}
	return intOfWidth(unsigned.width() * 2), true
}
