package cpu

import (
	"math"
	"slices"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/tensor"
)

func combine(kind hlo.ReduceKind, acc, v float64) float64 {
	if kind == hlo.ReduceMax {
		return math.Max(acc, v)
	}
	return acc + v
}

// reduce folds x over dims. The remaining dimensions keep their order.
func reduce(x *array, shape hlo.Shape, kind hlo.ReduceKind, dims []int) *array {
	out := newArray(shape)
	init := hlo.ReduceInit(kind, shape.DType)
	for i := range out.data {
		out.data[i] = init
	}

	inStrides := x.dims().ComputeStrides()
	outStrides := out.dims().ComputeStrides()
	// outStride[d] is the output stride of input dimension d, 0 if reduced.
	outStride := make([]int, len(inStrides))
	j := 0
	for d := range inStrides {
		if slices.Contains(dims, d) {
			continue
		}
		outStride[d] = outStrides[j]
		j++
	}
	for i, v := range x.data {
		o := computeFlatIndex(i, inStrides, outStride)
		out.data[o] = combine(kind, out.data[o], v)
	}
	roundTo(out.data, shape.DType)
	return out
}

// windowPositions returns the strides of the window's own index space.
func windowPositions(w *hlo.Window) ([]int, int) {
	dims := tensor.Shape(w.Dimensions)
	return dims.ComputeStrides(), dims.NumElements()
}

// windowSource maps window position k of output element outCoord onto the
// operand, writing the operand coordinate into coord. It reports false for
// positions that fall into padding.
func windowSource(w *hlo.Window, in, outCoord, kCoord, coord []int) bool {
	for d := range coord {
		c := outCoord[d]*w.Strides[d] - w.PadLow[d] + kCoord[d]
		if c < 0 || c >= in[d] {
			return false
		}
		coord[d] = c
	}
	return true
}

// reduceWindow folds every window of x. Padding holds the identity of kind.
func reduceWindow(x *array, shape hlo.Shape, kind hlo.ReduceKind, w *hlo.Window) *array {
	out := newArray(shape)
	init := hlo.ReduceInit(kind, shape.DType)
	inStrides := x.dims().ComputeStrides()
	outStrides := out.dims().ComputeStrides()
	kStrides, kN := windowPositions(w)

	rank := len(shape.Dims)
	outCoord, kCoord, coord := make([]int, rank), make([]int, rank), make([]int, rank)
	for i := range out.data {
		unravel(i, outStrides, outCoord)
		acc := init
		for k := 0; k < kN; k++ {
			unravel(k, kStrides, kCoord)
			if windowSource(w, x.shape.Dims, outCoord, kCoord, coord) {
				acc = combine(kind, acc, x.data[ravel(coord, inStrides)])
			}
		}
		out.data[i] = acc
	}
	roundTo(out.data, shape.DType)
	return out
}

// selectAndScatter adds each source element to the position of the first
// maximum of its window in operand. Padding is never selected.
func selectAndScatter(operand, source *array, w *hlo.Window) *array {
	out := newArray(operand.shape)
	inStrides := operand.dims().ComputeStrides()
	srcStrides := source.dims().ComputeStrides()
	kStrides, kN := windowPositions(w)

	rank := len(operand.shape.Dims)
	srcCoord, kCoord, coord := make([]int, rank), make([]int, rank), make([]int, rank)
	for i, g := range source.data {
		unravel(i, srcStrides, srcCoord)
		best, bestVal := -1, math.Inf(-1)
		for k := 0; k < kN; k++ {
			unravel(k, kStrides, kCoord)
			if !windowSource(w, operand.shape.Dims, srcCoord, kCoord, coord) {
				continue
			}
			idx := ravel(coord, inStrides)
			if best < 0 || operand.data[idx] > bestVal {
				best, bestVal = idx, operand.data[idx]
			}
		}
		if best >= 0 {
			out.data[best] += g
		}
	}
	roundTo(out.data, operand.shape.DType)
	return out
}
