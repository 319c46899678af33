package opbuild

import (
	"fmt"
	"slices"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/tensor"
)

// BuildSum lowers aten::sum(self, dim, keepdim). Without a dim argument every
// dimension is reduced.
func BuildSum(node *jit.Node, x *hlo.Op) (*hlo.Op, error) {
	shape := x.Shape()
	rawDims, err := argInts(node, "dim", 1, nil)
	if err != nil {
		return nil, err
	}
	var dims []int
	if len(rawDims) == 0 {
		for i := range shape.Rank() {
			dims = append(dims, i)
		}
	} else {
		for _, d := range rawDims {
			nd, err := normalizeDim(d, shape.Rank())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", node.Kind(), err)
			}
			if !slices.Contains(dims, nd) {
				dims = append(dims, nd)
			}
		}
	}
	keep := false
	if v, ok := node.Arg("keepdim", 2); ok {
		keep, _ = v.Bool()
	}
	sum, err := x.Builder().Reduce(x, hlo.ReduceSum, dims...)
	if err != nil {
		return nil, err
	}
	if !keep {
		return sum, nil
	}
	return keepDims(sum, shape, dims)
}

// BuildSumToSize reduces x down to size, summing over the leading
// dimensions x has in excess and over dimensions that size keeps at 1.
func BuildSumToSize(x *hlo.Op, size []int64) (*hlo.Op, error) {
	shape := x.Shape()
	target := tensor.FromInt64s(size)
	if slices.Equal(shape.Dims, []int(target)) {
		return x, nil
	}
	lead := shape.Rank() - len(target)
	if lead < 0 {
		return nil, fmt.Errorf("sum_to_size: cannot reduce %s to %v", shape, size)
	}
	var dims []int
	for i, d := range shape.Dims {
		if i < lead {
			dims = append(dims, i)
			continue
		}
		t := target[i-lead]
		switch {
		case t == d:
		case t == 1:
			dims = append(dims, i)
		default:
			return nil, fmt.Errorf("sum_to_size: cannot reduce %s to %v", shape, size)
		}
	}
	b := x.Builder()
	sum, err := b.Reduce(x, hlo.ReduceSum, dims...)
	if err != nil {
		return nil, err
	}
	return b.Reshape(sum, target...)
}

// BuildSize lowers aten::size(self). The dimensions of x are known while
// building, so the result is an s64 constant; the sizes are returned as well
// so callers can record them.
func BuildSize(x *hlo.Op) (*hlo.Op, []int64, error) {
	sizes := tensor.Shape(x.Shape().Dims).Int64s()
	lit, err := tensor.FromSlice(slices.Clone(sizes), tensor.Shape{len(sizes)})
	if err != nil {
		return nil, nil, err
	}
	op, err := x.Builder().Constant(lit)
	if err != nil {
		return nil, nil, err
	}
	return op, sizes, nil
}
