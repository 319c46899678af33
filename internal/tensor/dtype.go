// Package tensor provides host-side tensor types shared by the graph model,
// the backend IR, and the host client: element types, shapes, and raw
// literal storage.
package tensor

import (
	"fmt"
	"strings"
)

// DataType represents runtime element type information.
type DataType int

// Supported element types.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	Float16
	BFloat16
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16, BFloat16:
		return 2
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	default:
		return "unknown"
	}
}

// ShortName returns the compact element type name used in backend IR dumps
// (f32, s64, pred, ...).
func (dt DataType) ShortName() string {
	switch dt {
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Int32:
		return "s32"
	case Int64:
		return "s64"
	case Uint8:
		return "u8"
	case Bool:
		return "pred"
	case Float16:
		return "f16"
	case BFloat16:
		return "bf16"
	default:
		return "invalid"
	}
}

// IsFloat reports whether dt is a floating point type.
func (dt DataType) IsFloat() bool {
	switch dt {
	case Float32, Float64, Float16, BFloat16:
		return true
	}
	return false
}

// IsInteger reports whether dt is a signed or unsigned integer type.
func (dt DataType) IsInteger() bool {
	switch dt {
	case Int32, Int64, Uint8:
		return true
	}
	return false
}

var dataTypeNames = map[string]DataType{
	"float32":  Float32,
	"f32":      Float32,
	"float":    Float32,
	"float64":  Float64,
	"f64":      Float64,
	"double":   Float64,
	"int32":    Int32,
	"s32":      Int32,
	"int":      Int32,
	"int64":    Int64,
	"s64":      Int64,
	"long":     Int64,
	"uint8":    Uint8,
	"u8":       Uint8,
	"byte":     Uint8,
	"bool":     Bool,
	"pred":     Bool,
	"float16":  Float16,
	"f16":      Float16,
	"half":     Float16,
	"bfloat16": BFloat16,
	"bf16":     BFloat16,
}

// ParseDataType parses a data type name. Both the long form ("float32") and
// the IR short form ("f32") are accepted.
func ParseDataType(s string) (DataType, error) {
	if dt, ok := dataTypeNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return dt, nil
	}
	return Float32, fmt.Errorf("unknown data type %q", s)
}
