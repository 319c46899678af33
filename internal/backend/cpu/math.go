package cpu

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/lower/internal/hlo"
)

// operandData returns x's elements as a slice of n values; rank-0
// operands of array ops broadcast implicitly.
func operandData(x *array, n int) []float64 {
	if len(x.data) == n {
		return x.data
	}
	expanded := make([]float64, n)
	for i := range expanded {
		expanded[i] = x.data[0]
	}
	return expanded
}

func binary(code hlo.OpCode, lhs, rhs *array, shape hlo.Shape) (*array, error) {
	out := newArray(shape)
	n := len(out.data)
	l, r := operandData(lhs, n), operandData(rhs, n)
	switch code {
	case hlo.OpAdd:
		floats.AddTo(out.data, l, r)
	case hlo.OpSubtract:
		floats.SubTo(out.data, l, r)
	case hlo.OpMultiply:
		floats.MulTo(out.data, l, r)
	case hlo.OpDivide:
		if shape.DType.IsInteger() {
			for i := range out.data {
				if r[i] == 0 {
					return nil, fmt.Errorf("integer division by zero")
				}
				out.data[i] = math.Trunc(l[i] / r[i])
			}
		} else {
			floats.DivTo(out.data, l, r)
		}
	case hlo.OpMaximum:
		for i := range out.data {
			out.data[i] = math.Max(l[i], r[i])
		}
	case hlo.OpMinimum:
		for i := range out.data {
			out.data[i] = math.Min(l[i], r[i])
		}
	default:
		return nil, fmt.Errorf("%s is not a binary op", code)
	}
	roundTo(out.data, shape.DType)
	return out, nil
}

var unaryFuncs = map[hlo.OpCode]func(float64) float64{
	hlo.OpNegate: func(v float64) float64 { return -v },
	hlo.OpSqrt:   math.Sqrt,
	hlo.OpRsqrt:  func(v float64) float64 { return 1 / math.Sqrt(v) },
	hlo.OpTanh:   math.Tanh,
	hlo.OpExp:    math.Exp,
	hlo.OpLog:    math.Log,
}

func unary(code hlo.OpCode, x *array) (*array, error) {
	fn, ok := unaryFuncs[code]
	if !ok {
		return nil, fmt.Errorf("%s is not a unary op", code)
	}
	out := newArray(x.shape)
	for i, v := range x.data {
		out.data[i] = fn(v)
	}
	roundTo(out.data, x.shape.DType)
	return out, nil
}

func compare(dir hlo.ComparisonDirection, lhs, rhs *array, shape hlo.Shape) *array {
	out := newArray(shape)
	n := len(out.data)
	l, r := operandData(lhs, n), operandData(rhs, n)
	for i := range out.data {
		var ok bool
		switch dir {
		case hlo.CompareEQ:
			ok = l[i] == r[i]
		case hlo.CompareNE:
			ok = l[i] != r[i]
		case hlo.CompareGT:
			ok = l[i] > r[i]
		case hlo.CompareGE:
			ok = l[i] >= r[i]
		case hlo.CompareLT:
			ok = l[i] < r[i]
		case hlo.CompareLE:
			ok = l[i] <= r[i]
		}
		if ok {
			out.data[i] = 1
		}
	}
	return out
}

func selectOp(pred, onTrue, onFalse *array, shape hlo.Shape) *array {
	out := newArray(shape)
	n := len(out.data)
	p, t, f := operandData(pred, n), operandData(onTrue, n), operandData(onFalse, n)
	for i := range out.data {
		if p[i] != 0 {
			out.data[i] = t[i]
		} else {
			out.data[i] = f[i]
		}
	}
	return out
}
