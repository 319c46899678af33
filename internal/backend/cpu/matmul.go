package cpu

import (
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/lower/internal/hlo"
)

// dot multiplies rank-1 or rank-2 operands. A rank-1 lhs is a row vector
// and a rank-1 rhs is a column vector.
func dot(lhs, rhs *array, shape hlo.Shape) *array {
	out := newArray(shape)
	m, k := 1, lhs.shape.Dims[0]
	if lhs.shape.Rank() == 2 {
		m, k = lhs.shape.Dims[0], lhs.shape.Dims[1]
	}
	n := 1
	if rhs.shape.Rank() == 2 {
		n = rhs.shape.Dims[1]
	}
	// gonum rejects empty matrices; an empty product is all zeros.
	if m == 0 || n == 0 || k == 0 {
		return out
	}

	a := mat.NewDense(m, k, lhs.data)
	b := mat.NewDense(k, n, rhs.data)
	c := mat.NewDense(m, n, out.data)
	c.Mul(a, b)
	roundTo(out.data, shape.DType)
	return out
}
