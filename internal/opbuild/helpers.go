package opbuild

import (
	"fmt"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/tensor"
)

// ScalarValue creates a rank-0 constant of the given element type.
func ScalarValue(b *hlo.Builder, v float64, dtype tensor.DataType) (*hlo.Op, error) {
	return b.ScalarConstant(v, dtype)
}

// argInts reads an int list argument. Missing arguments yield def.
func argInts(node *jit.Node, name string, index int, def []int64) ([]int64, error) {
	v, ok := node.Arg(name, index)
	if !ok || v.IsNone() {
		return def, nil
	}
	ints, err := v.ToInts()
	if err != nil {
		return nil, fmt.Errorf("%s: argument %q: %w", node.Kind(), name, err)
	}
	return ints, nil
}

// argIntList reads an int list argument and expands a single value to n
// entries, as PyTorch does for kernel sizes, strides and paddings.
func argIntList(node *jit.Node, name string, index, n int, def []int64) ([]int, error) {
	ints, err := argInts(node, name, index, def)
	if err != nil {
		return nil, err
	}
	if len(ints) == 1 && n > 1 {
		expanded := make([]int64, n)
		for i := range expanded {
			expanded[i] = ints[0]
		}
		ints = expanded
	}
	if len(ints) != n {
		return nil, fmt.Errorf("%s: argument %q must have %d values, got %v", node.Kind(), name, n, ints)
	}
	out := make([]int, n)
	for i, v := range ints {
		out[i] = int(v)
	}
	return out, nil
}

// argInt reads an int argument. Missing arguments yield def.
func argInt(node *jit.Node, name string, index int, def int64) (int64, error) {
	v, ok := node.Arg(name, index)
	if !ok || v.IsNone() {
		return def, nil
	}
	i, isInt := v.Int()
	if !isInt {
		return 0, fmt.Errorf("%s: argument %q: expected int, got %s", node.Kind(), name, v.Kind())
	}
	return i, nil
}

// argScalar reads a numeric scalar argument. Missing arguments yield def.
func argScalar(node *jit.Node, name string, index int, def float64) (float64, error) {
	v, ok := node.Arg(name, index)
	if !ok || v.IsNone() {
		return def, nil
	}
	s, err := v.ToScalar()
	if err != nil {
		return 0, fmt.Errorf("%s: argument %q: %w", node.Kind(), name, err)
	}
	return s, nil
}

// requireScalar reads a numeric scalar argument that must be present.
func requireScalar(node *jit.Node, name string, index int) (float64, error) {
	v, ok := node.Arg(name, index)
	if !ok || v.IsNone() {
		return 0, fmt.Errorf("%s: missing required argument %q", node.Kind(), name)
	}
	s, err := v.ToScalar()
	if err != nil {
		return 0, fmt.Errorf("%s: argument %q: %w", node.Kind(), name, err)
	}
	return s, nil
}

// normalizeDim maps a possibly negative dimension into [0, rank).
func normalizeDim(dim int64, rank int) (int, error) {
	d := int(dim)
	if d < 0 {
		d += rank
	}
	if d < 0 || d >= rank {
		return 0, fmt.Errorf("dimension %d out of range for rank %d", dim, rank)
	}
	return d, nil
}

// broadcastPair broadcasts two operands numpy-style to a common shape.
// Scalars are left untouched; the backend broadcasts them implicitly.
func broadcastPair(lhs, rhs *hlo.Op) (*hlo.Op, *hlo.Op, error) {
	ls, rs := lhs.Shape(), rhs.Shape()
	if ls.IsScalar() || rs.IsScalar() {
		return lhs, rhs, nil
	}
	dims, needs, err := tensor.BroadcastShapes(ls.Dims, rs.Dims)
	if err != nil {
		return nil, nil, err
	}
	if !needs {
		return lhs, rhs, nil
	}
	b := lhs.Builder()
	if lhs, err = b.BroadcastTo(lhs, dims); err != nil {
		return nil, nil, err
	}
	if rhs, err = b.BroadcastTo(rhs, dims); err != nil {
		return nil, nil, err
	}
	return lhs, rhs, nil
}

// broadcastAlong broadcasts a rank-1 per-feature op (e.g. a bias of size C)
// to shape, mapping it onto dimension dim.
func broadcastAlong(v *hlo.Op, shape hlo.Shape, dim int) (*hlo.Op, error) {
	if v.Shape().Rank() != 1 {
		return nil, fmt.Errorf("expected a rank-1 operand, got %s", v.Shape())
	}
	return v.Builder().BroadcastInDim(v, shape.Dims, []int{dim})
}

// allDimsExcept lists [0, rank) without dim.
func allDimsExcept(rank, dim int) []int {
	dims := make([]int, 0, rank)
	for i := 0; i < rank; i++ {
		if i != dim {
			dims = append(dims, i)
		}
	}
	return dims
}

// keepDims maps a reduced op back to rank with size-1 dims at reduced
// positions.
func keepDims(reduced *hlo.Op, in hlo.Shape, dims []int) (*hlo.Op, error) {
	out := make([]int, in.Rank())
	copy(out, in.Dims)
	for _, d := range dims {
		out[d] = 1
	}
	return reduced.Builder().Reshape(reduced, out...)
}

// reduceKeep reduces x over dims and broadcasts the result back to x's shape.
func reduceKeep(x *hlo.Op, kind hlo.ReduceKind, dims ...int) (*hlo.Op, error) {
	b := x.Builder()
	red, err := b.Reduce(x, kind, dims...)
	if err != nil {
		return nil, err
	}
	kept := make([]int, 0, x.Shape().Rank()-len(dims))
	reducedSet := make(map[int]bool, len(dims))
	for _, d := range dims {
		reducedSet[d] = true
	}
	for i := 0; i < x.Shape().Rank(); i++ {
		if !reducedSet[i] {
			kept = append(kept, i)
		}
	}
	return b.BroadcastInDim(red, x.Shape().Dims, kept)
}
