package opbuild

import (
	"fmt"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
)

// BuildTranspose swaps the two dimensions of a rank-2 op (aten::t). Rank-0
// and rank-1 ops are returned unchanged.
func BuildTranspose(x *hlo.Op) (*hlo.Op, error) {
	switch x.Shape().Rank() {
	case 0, 1:
		return x, nil
	case 2:
		return x.Builder().Transpose(x, 1, 0)
	}
	return nil, fmt.Errorf("t expects a tensor with <= 2 dimensions, got %s", x.Shape())
}

// BuildMatMul lowers aten::mm.
func BuildMatMul(lhs, rhs *hlo.Op, precision hlo.Precision) (*hlo.Op, error) {
	if lhs.Shape().Rank() != 2 || rhs.Shape().Rank() != 2 {
		return nil, fmt.Errorf("mm expects matrices, got %s and %s", lhs.Shape(), rhs.Shape())
	}
	return lhs.Builder().Dot(lhs, rhs, precision)
}

// BuildAddmm lowers aten::addmm (self, mat1, mat2, beta, alpha) as
// beta*self + alpha*(mat1 @ mat2), with self broadcast to the product shape.
func BuildAddmm(node *jit.Node, bias, mat1, mat2 *hlo.Op, precision hlo.Precision) (*hlo.Op, error) {
	b := bias.Builder()
	prod, err := BuildMatMul(mat1, mat2, precision)
	if err != nil {
		return nil, err
	}
	beta, err := argScalar(node, "beta", 3, 1)
	if err != nil {
		return nil, err
	}
	alpha, err := argScalar(node, "alpha", 4, 1)
	if err != nil {
		return nil, err
	}
	if prod, err = scale(prod, alpha); err != nil {
		return nil, err
	}
	if bias, err = scale(bias, beta); err != nil {
		return nil, err
	}
	if bias, err = b.BroadcastTo(bias, prod.Shape().Dims); err != nil {
		return nil, fmt.Errorf("addmm: %w", err)
	}
	return b.Add(prod, bias)
}

func scale(x *hlo.Op, factor float64) (*hlo.Op, error) {
	if factor == 1 {
		return x, nil
	}
	b := x.Builder()
	f, err := b.ScalarConstant(factor, x.DType())
	if err != nil {
		return nil, err
	}
	return b.Mul(x, f)
}
