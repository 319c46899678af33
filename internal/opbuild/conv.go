package opbuild

import (
	"fmt"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
)

// Operand positions of the convolution schemas:
//
//	aten::convolution(input, weight, bias, stride, padding, dilation, ...)
//	aten::thnn_conv2d_forward(self, weight, kernel_size, bias, stride, padding)
//	aten::thnn_conv2d_backward(grad_output, self, weight, kernel_size, stride,
//	                           padding, finput, fgrad_input, output_mask)
type convLayout struct {
	bias, stride, padding int
}

var convLayouts = map[jit.Kind]convLayout{
	jit.AtenConvolution:        {bias: 2, stride: 3, padding: 4},
	jit.AtenThnnConv2dForward:  {bias: 3, stride: 4, padding: 5},
	jit.AtenThnnConv2dBackward: {bias: -1, stride: 4, padding: 5},
}

// ConvBiasIndex returns the operand index of the optional bias for a
// forward convolution kind, or -1.
func ConvBiasIndex(kind jit.Kind) int {
	if l, ok := convLayouts[kind]; ok {
		return l.bias
	}
	return -1
}

func convWindow(node *jit.Node) (strides, padding []int, err error) {
	layout, ok := convLayouts[node.Kind()]
	if !ok {
		return nil, nil, fmt.Errorf("invalid convolution operator kind: %s", node.Kind())
	}
	if strides, err = argIntList(node, "stride", layout.stride, 2, []int64{1}); err != nil {
		return nil, nil, err
	}
	if padding, err = argIntList(node, "padding", layout.padding, 2, []int64{0}); err != nil {
		return nil, nil, err
	}
	return strides, padding, nil
}

// BuildConvolution lowers a 2D NCHW convolution without bias.
func BuildConvolution(node *jit.Node, input, kernel *hlo.Op, precision hlo.Precision) (*hlo.Op, error) {
	if input.Shape().Rank() != 4 || kernel.Shape().Rank() != 4 {
		return nil, fmt.Errorf("%s: expected 4D input and kernel, got %s and %s", node.Kind(), input.Shape(), kernel.Shape())
	}
	strides, padding, err := convWindow(node)
	if err != nil {
		return nil, err
	}
	return input.Builder().Convolution(input, kernel, *hlo.NCHWConfig(strides, padding), precision)
}

// BuildConvolutionBias lowers a 2D convolution and adds the per-channel
// bias.
func BuildConvolutionBias(node *jit.Node, input, kernel, bias *hlo.Op, precision hlo.Precision) (*hlo.Op, error) {
	conv, err := BuildConvolution(node, input, kernel, precision)
	if err != nil {
		return nil, err
	}
	bb, err := broadcastAlong(bias, conv.Shape(), 1)
	if err != nil {
		return nil, fmt.Errorf("%s: bias: %w", node.Kind(), err)
	}
	return conv.Builder().Add(conv, bb)
}

// Conv2DGrads holds the gradients produced by a convolution backward pass.
type Conv2DGrads struct {
	GradInput  *hlo.Op
	GradWeight *hlo.Op
	GradBias   *hlo.Op
}

// BuildConv2dBackward computes the input, weight and bias gradients of a 2D
// NCHW convolution.
func BuildConv2dBackward(node *jit.Node, gradOutput, input, weight *hlo.Op, precision hlo.Precision) (*Conv2DGrads, error) {
	for _, op := range []*hlo.Op{gradOutput, input, weight} {
		if op.Shape().Rank() != 4 {
			return nil, fmt.Errorf("%s: expected 4D operands, got %s", node.Kind(), op.Shape())
		}
	}
	strides, padding, err := convWindow(node)
	if err != nil {
		return nil, err
	}
	b := input.Builder()
	in, w := input.Shape(), weight.Shape()

	// Remainder of the forward window sweep per spatial dim.
	rem := make([]int, 2)
	for i := range rem {
		rem[i] = (in.Dims[i+2] + 2*padding[i] - w.Dims[i+2]) % strides[i]
	}

	// Input gradient: full correlation of the dilated output gradient with
	// the spatially flipped kernel, swapping the kernel's feature roles.
	flipped, err := b.Reverse(weight, 2, 3)
	if err != nil {
		return nil, err
	}
	inCfg := *hlo.NCHWConfig([]int{1, 1}, []int{0, 0})
	inCfg.KernelOutput, inCfg.KernelInput = 1, 0
	for i := range 2 {
		inCfg.LhsDilation[i] = strides[i]
		inCfg.PadLow[i] = w.Dims[i+2] - 1 - padding[i]
		inCfg.PadHigh[i] = w.Dims[i+2] - 1 - padding[i] + rem[i]
	}
	gradInput, err := b.Convolution(gradOutput, flipped, inCfg, precision)
	if err != nil {
		return nil, fmt.Errorf("%s: grad_input: %w", node.Kind(), err)
	}

	// Weight gradient: correlate the input with the output gradient, treating
	// the batch as the contracted feature dimension.
	wCfg := *hlo.NCHWConfig([]int{1, 1}, padding)
	wCfg.InputBatch, wCfg.InputFeature = 1, 0
	wCfg.KernelOutput, wCfg.KernelInput = 1, 0
	wCfg.OutputBatch, wCfg.OutputFeature = 1, 0
	copy(wCfg.RhsDilation, strides)
	gradWeight, err := b.Convolution(input, gradOutput, wCfg, precision)
	if err != nil {
		return nil, fmt.Errorf("%s: grad_weight: %w", node.Kind(), err)
	}
	if !gradWeight.Shape().Equal(w) {
		gradWeight, err = b.Slice(gradWeight, []int{0, 0, 0, 0}, w.Dims, []int{1, 1, 1, 1})
		if err != nil {
			return nil, fmt.Errorf("%s: grad_weight: %w", node.Kind(), err)
		}
	}

	gradBias, err := b.Reduce(gradOutput, hlo.ReduceSum, 0, 2, 3)
	if err != nil {
		return nil, err
	}
	return &Conv2DGrads{GradInput: gradInput, GradWeight: gradWeight, GradBias: gradBias}, nil
}
