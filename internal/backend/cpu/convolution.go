package cpu

import (
	"github.com/born-ml/lower/internal/hlo"
)

// convolution computes a direct (non-im2col) convolution with arbitrary
// dimension numbers, padding, strides, and input/kernel dilation.
//
// For output spatial position o and kernel position k, the dilated input
// position is p = o*stride - padLow + k*rhsDilation. Positions that are
// not multiples of lhsDilation fall into the holes of the dilated input
// and contribute nothing.
func convolution(lhs, rhs *array, shape hlo.Shape, cfg *hlo.ConvConfig) *array {
	out := newArray(shape)
	n := len(cfg.InputSpatial)
	inStrides := lhs.dims().ComputeStrides()
	kStrides := rhs.dims().ComputeStrides()
	outStrides := out.dims().ComputeStrides()

	features := lhs.shape.Dims[cfg.InputFeature]
	kernelSpatial := make([]int, n)
	for i, d := range cfg.KernelSpatial {
		kernelSpatial[i] = rhs.shape.Dims[d]
	}
	kPosStrides, kN := windowPositions(&hlo.Window{Dimensions: kernelSpatial})

	outCoord := make([]int, n+2)
	kPos := make([]int, n)
	inPos := make([]int, n)
	for idx := range out.data {
		unravel(idx, outStrides, outCoord)
		batch := outCoord[cfg.OutputBatch]
		feature := outCoord[cfg.OutputFeature]

		var sum float64
		for k := 0; k < kN; k++ {
			unravel(k, kPosStrides, kPos)
			if !dilatedSource(cfg, lhs.shape.Dims, outCoord, kPos, inPos) {
				continue
			}
			inBase := batch * inStrides[cfg.InputBatch]
			kBase := feature * kStrides[cfg.KernelOutput]
			for s := 0; s < n; s++ {
				inBase += inPos[s] * inStrides[cfg.InputSpatial[s]]
				kBase += kPos[s] * kStrides[cfg.KernelSpatial[s]]
			}
			for c := 0; c < features; c++ {
				sum += lhs.data[inBase+c*inStrides[cfg.InputFeature]] * rhs.data[kBase+c*kStrides[cfg.KernelInput]]
			}
		}
		out.data[idx] = sum
	}
	roundTo(out.data, shape.DType)
	return out
}

// dilatedSource resolves kernel position kPos of output element outCoord to
// input spatial coordinates. It reports false for padding and dilation holes.
func dilatedSource(cfg *hlo.ConvConfig, inDims, outCoord, kPos, inPos []int) bool {
	for s := range kPos {
		p := outCoord[cfg.OutputSpatial[s]]*cfg.Strides[s] - cfg.PadLow[s] + kPos[s]*cfg.RhsDilation[s]
		if p < 0 || p%cfg.LhsDilation[s] != 0 {
			return false
		}
		p /= cfg.LhsDilation[s]
		if p >= inDims[cfg.InputSpatial[s]] {
			return false
		}
		inPos[s] = p
	}
	return true
}
