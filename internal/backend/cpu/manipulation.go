package cpu

import (
	"math"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/tensor"
)

// iotaArray fills shape with each element's coordinate along axis.
func iotaArray(shape hlo.Shape, axis int) *array {
	out := newArray(shape)
	strides := out.dims().ComputeStrides()
	dim := shape.Dims[axis]
	for i := range out.data {
		out.data[i] = float64(i / strides[axis] % dim)
	}
	return out
}

func broadcastInDim(x *array, shape hlo.Shape, mapping []int) *array {
	out := newArray(shape)
	outStrides := out.dims().ComputeStrides()
	inStrides := computeBroadcastStrides(x.dims(), len(shape.Dims), mapping)
	for i := range out.data {
		out.data[i] = x.data[computeFlatIndex(i, outStrides, inStrides)]
	}
	return out
}

// transpose permutes dimensions: output dimension i is input dimension perm[i].
func transpose(x *array, shape hlo.Shape, perm []int) *array {
	out := newArray(shape)
	outStrides := out.dims().ComputeStrides()
	origStrides := x.dims().ComputeStrides()
	inStrides := make([]int, len(perm))
	for i, p := range perm {
		inStrides[i] = origStrides[p]
	}
	for i := range out.data {
		out.data[i] = x.data[computeFlatIndex(i, outStrides, inStrides)]
	}
	return out
}

func slice(x *array, shape hlo.Shape, starts, steps []int) *array {
	out := newArray(shape)
	outStrides := out.dims().ComputeStrides()
	origStrides := x.dims().ComputeStrides()
	inStrides := make([]int, len(origStrides))
	base := 0
	for i, s := range origStrides {
		inStrides[i] = s * steps[i]
		base += starts[i] * s
	}
	for i := range out.data {
		out.data[i] = x.data[base+computeFlatIndex(i, outStrides, inStrides)]
	}
	return out
}

func concatenate(xs []*array, shape hlo.Shape, axis int) *array {
	out := newArray(shape)
	outStrides := out.dims().ComputeStrides()
	coord := make([]int, len(shape.Dims))
	offset := 0
	for _, x := range xs {
		inStrides := x.dims().ComputeStrides()
		for i, v := range x.data {
			unravel(i, inStrides, coord)
			coord[axis] += offset
			out.data[ravel(coord, outStrides)] = v
		}
		offset += x.shape.Dims[axis]
	}
	return out
}

// pad places element c of x at low + c*(interior+1); coordinates that fall
// outside the result (negative padding) are dropped.
func pad(x, value *array, shape hlo.Shape, low, interior []int) *array {
	out := newArray(shape)
	for i := range out.data {
		out.data[i] = value.data[0]
	}
	outStrides := out.dims().ComputeStrides()
	inStrides := x.dims().ComputeStrides()
	coord := make([]int, len(shape.Dims))
next:
	for i, v := range x.data {
		unravel(i, inStrides, coord)
		for d := range coord {
			coord[d] = low[d] + coord[d]*(interior[d]+1)
			if coord[d] < 0 || coord[d] >= shape.Dims[d] {
				continue next
			}
		}
		out.data[ravel(coord, outStrides)] = v
	}
	return out
}

func reverse(x *array, dims []int) *array {
	out := newArray(x.shape)
	strides := x.dims().ComputeStrides()
	coord := make([]int, len(strides))
	for i, v := range x.data {
		unravel(i, strides, coord)
		for _, d := range dims {
			coord[d] = x.shape.Dims[d] - 1 - coord[d]
		}
		out.data[ravel(coord, strides)] = v
	}
	return out
}

// roundTo rounds values in place to what dtype can represent.
func roundTo(data []float64, dtype tensor.DataType) {
	switch {
	case dtype == tensor.Bool:
		for i, v := range data {
			if v != 0 {
				data[i] = 1
			}
		}
	case dtype.IsInteger():
		for i, v := range data {
			data[i] = math.Trunc(v)
		}
	case dtype != tensor.Float64:
		for i, v := range data {
			data[i] = float64(float32(v))
		}
	}
}
