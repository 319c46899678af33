package opbuild

import (
	"fmt"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
)

// pool2d describes a 2D pooling window over the last two dims of an NCHW
// operand.
type pool2d struct {
	kernel, stride, padding []int
}

func (p pool2d) window() hlo.Window {
	return hlo.Window{
		Dimensions: []int{1, 1, p.kernel[0], p.kernel[1]},
		Strides:    []int{1, 1, p.stride[0], p.stride[1]},
		PadLow:     []int{0, 0, p.padding[0], p.padding[1]},
		PadHigh:    []int{0, 0, p.padding[0], p.padding[1]},
	}
}

func (p pool2d) area() float64 {
	return float64(p.kernel[0] * p.kernel[1])
}

// poolArgs reads kernel_size, stride and padding starting at operand index
// first. An empty stride defaults to the kernel size.
func poolArgs(node *jit.Node, first int) (pool2d, error) {
	var p pool2d
	var err error
	if p.kernel, err = argIntList(node, "kernel_size", first, 2, nil); err != nil {
		return p, err
	}
	stride, err := argInts(node, "stride", first+1, nil)
	if err != nil {
		return p, err
	}
	if len(stride) == 0 {
		p.stride = append([]int(nil), p.kernel...)
	} else if p.stride, err = argIntList(node, "stride", first+1, 2, nil); err != nil {
		return p, err
	}
	if p.padding, err = argIntList(node, "padding", first+2, 2, []int64{0}); err != nil {
		return p, err
	}
	return p, nil
}

func require4D(node *jit.Node, op *hlo.Op) error {
	if op.Shape().Rank() != 4 {
		return fmt.Errorf("%s: expected a 4D NCHW operand, got %s", node.Kind(), op.Shape())
	}
	return nil
}

// BuildMaxPool2d lowers aten::max_pool2d_with_indices(self, kernel_size,
// stride, padding, dilation, ceil_mode). Only the pooled values are
// produced; the indices output is not lowered.
func BuildMaxPool2d(node *jit.Node, input *hlo.Op) (*hlo.Op, error) {
	if err := require4D(node, input); err != nil {
		return nil, err
	}
	p, err := poolArgs(node, 1)
	if err != nil {
		return nil, err
	}
	return input.Builder().ReduceWindow(input, hlo.ReduceMax, p.window())
}

// BuildMaxPool2dBackward lowers aten::max_pool2d_with_indices_backward
// (grad_output, self, kernel_size, stride, padding, dilation, ceil_mode,
// indices) by scattering each gradient to its window's maximum.
func BuildMaxPool2dBackward(node *jit.Node, gradOutput, input *hlo.Op) (*hlo.Op, error) {
	if err := require4D(node, input); err != nil {
		return nil, err
	}
	p, err := poolArgs(node, 2)
	if err != nil {
		return nil, err
	}
	return input.Builder().SelectAndScatter(input, gradOutput, p.window())
}

// BuildAvgPool2d lowers aten::avg_pool2d(self, kernel_size, stride, padding,
// ceil_mode, count_include_pad). Padded elements count towards the divisor.
func BuildAvgPool2d(node *jit.Node, input *hlo.Op) (*hlo.Op, error) {
	if err := require4D(node, input); err != nil {
		return nil, err
	}
	p, err := poolArgs(node, 1)
	if err != nil {
		return nil, err
	}
	return avgPool(input, p)
}

func avgPool(input *hlo.Op, p pool2d) (*hlo.Op, error) {
	b := input.Builder()
	sum, err := b.ReduceWindow(input, hlo.ReduceSum, p.window())
	if err != nil {
		return nil, err
	}
	area, err := b.ScalarConstant(p.area(), input.DType())
	if err != nil {
		return nil, err
	}
	return b.Div(sum, area)
}

// BuildAvgPool2dBackward lowers aten::avg_pool2d_backward(grad_output, self,
// kernel_size, stride, padding, ceil_mode, count_include_pad).
func BuildAvgPool2dBackward(node *jit.Node, gradOutput, input *hlo.Op) (*hlo.Op, error) {
	if err := require4D(node, input); err != nil {
		return nil, err
	}
	p, err := poolArgs(node, 2)
	if err != nil {
		return nil, err
	}
	return avgPoolGrad(gradOutput, input.Shape(), p)
}

// avgPoolGrad spreads each output gradient evenly over its window: the
// gradient is dilated by the stride, padded to a full correlation and summed
// over kernel-sized windows.
func avgPoolGrad(gradOutput *hlo.Op, in hlo.Shape, p pool2d) (*hlo.Op, error) {
	b := gradOutput.Builder()
	low := []int{0, 0, 0, 0}
	high := []int{0, 0, 0, 0}
	interior := []int{0, 0, 0, 0}
	for i := range 2 {
		rem := (in.Dims[i+2] + 2*p.padding[i] - p.kernel[i]) % p.stride[i]
		low[i+2] = p.kernel[i] - 1 - p.padding[i]
		high[i+2] = p.kernel[i] - 1 - p.padding[i] + rem
		interior[i+2] = p.stride[i] - 1
	}
	zero, err := b.ScalarConstant(0, gradOutput.DType())
	if err != nil {
		return nil, err
	}
	padded, err := b.Pad(gradOutput, zero, low, high, interior)
	if err != nil {
		return nil, err
	}
	unit := pool2d{kernel: p.kernel, stride: []int{1, 1}, padding: []int{0, 0}}
	sum, err := b.ReduceWindow(padded, hlo.ReduceSum, unit.window())
	if err != nil {
		return nil, err
	}
	area, err := b.ScalarConstant(p.area(), gradOutput.DType())
	if err != nil {
		return nil, err
	}
	return b.Div(sum, area)
}

// adaptivePool derives the fixed window that maps in onto output_size. Only
// exact divisions are supported.
func adaptivePool(node *jit.Node, in hlo.Shape, outSize []int) (pool2d, error) {
	p := pool2d{kernel: make([]int, 2), stride: make([]int, 2), padding: []int{0, 0}}
	for i := range 2 {
		d, o := in.Dims[i+2], outSize[i]
		if o <= 0 || d%o != 0 {
			return p, fmt.Errorf("%s: input size %d is not divisible by output size %d", node.Kind(), d, o)
		}
		p.kernel[i] = d / o
		p.stride[i] = d / o
	}
	return p, nil
}

// BuildAdaptiveAvgPool2d lowers aten::adaptive_avg_pool2d(self, output_size).
func BuildAdaptiveAvgPool2d(node *jit.Node, input *hlo.Op) (*hlo.Op, error) {
	if err := require4D(node, input); err != nil {
		return nil, err
	}
	outSize, err := argIntList(node, "output_size", 1, 2, nil)
	if err != nil {
		return nil, err
	}
	p, err := adaptivePool(node, input.Shape(), outSize)
	if err != nil {
		return nil, err
	}
	return avgPool(input, p)
}

// BuildAdaptiveAvgPool2dBackward lowers
// aten::adaptive_avg_pool2d_backward(grad_output, self).
func BuildAdaptiveAvgPool2dBackward(node *jit.Node, gradOutput, input *hlo.Op) (*hlo.Op, error) {
	if err := require4D(node, input); err != nil {
		return nil, err
	}
	if err := require4D(node, gradOutput); err != nil {
		return nil, err
	}
	outSize := gradOutput.Shape().Dims[2:]
	p, err := adaptivePool(node, input.Shape(), outSize)
	if err != nil {
		return nil, err
	}
	return avgPoolGrad(gradOutput, input.Shape(), p)
}
