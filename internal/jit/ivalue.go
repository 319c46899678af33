package jit

import (
	"fmt"
	"slices"
	"strings"

	"github.com/born-ml/lower/internal/tensor"
)

// IValueKind tags the payload of an IValue.
type IValueKind int

// Payload kinds.
const (
	IValueNone IValueKind = iota
	IValueTensor
	IValueDouble
	IValueInt
	IValueIntList
	IValueBoolList
	IValueDoubleList
	IValueBool
	IValueString
)

func (k IValueKind) String() string {
	switch k {
	case IValueNone:
		return "None"
	case IValueTensor:
		return "Tensor"
	case IValueDouble:
		return "float"
	case IValueInt:
		return "int"
	case IValueIntList:
		return "int[]"
	case IValueBoolList:
		return "bool[]"
	case IValueDoubleList:
		return "float[]"
	case IValueBool:
		return "bool"
	case IValueString:
		return "str"
	default:
		return fmt.Sprintf("ivalue(%d)", int(k))
	}
}

// IValue is a constant payload: a node attribute or the value embedded in a
// prim::Constant node.
type IValue struct {
	kind    IValueKind
	tensor  *tensor.RawTensor
	double  float64
	integer int64
	boolean bool
	str     string
	ints    []int64
	bools   []bool
	doubles []float64
}

// None returns the empty IValue.
func None() IValue { return IValue{} }

// TensorValue wraps a tensor literal.
func TensorValue(t *tensor.RawTensor) IValue { return IValue{kind: IValueTensor, tensor: t} }

// DoubleValue wraps a float scalar.
func DoubleValue(v float64) IValue { return IValue{kind: IValueDouble, double: v} }

// IntValue wraps an int scalar.
func IntValue(v int64) IValue { return IValue{kind: IValueInt, integer: v} }

// BoolValue wraps a bool scalar.
func BoolValue(v bool) IValue { return IValue{kind: IValueBool, boolean: v} }

// StringValue wraps a string.
func StringValue(v string) IValue { return IValue{kind: IValueString, str: v} }

// IntListValue wraps an int list.
func IntListValue(v ...int64) IValue { return IValue{kind: IValueIntList, ints: slices.Clone(v)} }

// BoolListValue wraps a bool list.
func BoolListValue(v ...bool) IValue { return IValue{kind: IValueBoolList, bools: slices.Clone(v)} }

// DoubleListValue wraps a float list.
func DoubleListValue(v ...float64) IValue {
	return IValue{kind: IValueDoubleList, doubles: slices.Clone(v)}
}

// Kind returns the payload tag.
func (v IValue) Kind() IValueKind { return v.kind }

// IsNone reports whether v carries no payload.
func (v IValue) IsNone() bool { return v.kind == IValueNone }

// Tensor returns the tensor payload.
func (v IValue) Tensor() (*tensor.RawTensor, bool) { return v.tensor, v.kind == IValueTensor }

// Double returns the float payload.
func (v IValue) Double() (float64, bool) { return v.double, v.kind == IValueDouble }

// Int returns the int payload.
func (v IValue) Int() (int64, bool) { return v.integer, v.kind == IValueInt }

// Bool returns the bool payload.
func (v IValue) Bool() (bool, bool) { return v.boolean, v.kind == IValueBool }

// Str returns the string payload.
func (v IValue) Str() (string, bool) { return v.str, v.kind == IValueString }

// IntList returns the int list payload.
func (v IValue) IntList() ([]int64, bool) { return v.ints, v.kind == IValueIntList }

// BoolList returns the bool list payload.
func (v IValue) BoolList() ([]bool, bool) { return v.bools, v.kind == IValueBoolList }

// DoubleList returns the float list payload.
func (v IValue) DoubleList() ([]float64, bool) { return v.doubles, v.kind == IValueDoubleList }

// ToScalar converts a numeric scalar payload (float, int or bool) to float64.
func (v IValue) ToScalar() (float64, error) {
	switch v.kind {
	case IValueDouble:
		return v.double, nil
	case IValueInt:
		return float64(v.integer), nil
	case IValueBool:
		if v.boolean {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("expected a scalar, got %s", v.kind)
}

// ToInts converts an int list, or a single int, to []int64.
func (v IValue) ToInts() ([]int64, error) {
	switch v.kind {
	case IValueIntList:
		return v.ints, nil
	case IValueInt:
		return []int64{v.integer}, nil
	}
	return nil, fmt.Errorf("expected int[], got %s", v.kind)
}

func (v IValue) String() string {
	switch v.kind {
	case IValueNone:
		return "None"
	case IValueTensor:
		return v.tensor.String()
	case IValueDouble:
		return fmt.Sprintf("%g", v.double)
	case IValueInt:
		return fmt.Sprintf("%d", v.integer)
	case IValueBool:
		return fmt.Sprintf("%t", v.boolean)
	case IValueString:
		return fmt.Sprintf("%q", v.str)
	case IValueIntList:
		return listString(v.ints)
	case IValueBoolList:
		return listString(v.bools)
	case IValueDoubleList:
		return listString(v.doubles)
	}
	return "?"
}

func listString[T any](vals []T) string {
	parts := make([]string, len(vals))
	for i, x := range vals {
		parts[i] = fmt.Sprint(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
