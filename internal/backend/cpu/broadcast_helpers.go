package cpu

import (
	"github.com/born-ml/lower/internal/tensor"
)

// computeBroadcastStrides computes input strides laid over an output of
// outRank dimensions. Input dimension i lands on output dimension
// mapping[i]; size-1 input dimensions and unmapped output dimensions get
// stride 0.
func computeBroadcastStrides(inShape tensor.Shape, outRank int, mapping []int) []int {
	strides := make([]int, outRank)
	origStrides := inShape.ComputeStrides()
	for i, d := range mapping {
		if inShape[i] != 1 {
			strides[d] = origStrides[i]
		}
	}
	return strides
}

// computeFlatIndex computes the flat index in the source array for a given output index.
// outStrides: strides of the output shape.
// inStrides: broadcast-adjusted strides of the input shape.
func computeFlatIndex(outIdx int, outStrides, inStrides []int) int {
	flatIdx := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flatIdx += coord * inStrides[i]
	}
	return flatIdx
}

// unravel writes the coordinates of flat index idx into coord.
func unravel(idx int, strides, coord []int) {
	for i, s := range strides {
		coord[i] = idx / s
		idx %= s
	}
}

// ravel returns the flat index of coord.
func ravel(coord, strides []int) int {
	idx := 0
	for i, c := range coord {
		idx += c * strides[i]
	}
	return idx
}

// identityMapping returns [0, 1, ..., n-1].
func identityMapping(n int) []int {
	m := make([]int, n)
	for i := range m {
		m[i] = i
	}
	return m
}
