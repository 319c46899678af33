package hlo

import (
	"fmt"
	"slices"

	"github.com/born-ml/lower/internal/tensor"
)

// Op is one operation of a computation under construction. Ops are created
// by a Builder and are immutable afterwards.
type Op struct {
	id       int
	code     OpCode
	operands []*Op
	shape    Shape
	attrs    Attrs
	builder  *Builder
}

// Attrs holds the static attributes of an Op. Only the fields relevant to
// the Op's code are set.
type Attrs struct {
	// Parameter.
	ParameterNumber int
	Name            string

	// Constant.
	Literal *tensor.RawTensor

	// Broadcast target dims mapping, Transpose permutation, Reduce and
	// Reverse dimensions.
	Dimensions []int

	// Iota and Concatenate axis; GetTupleElement index.
	Axis  int
	Index int

	// Slice.
	Starts, Limits, Strides []int

	// Pad.
	PadLow, PadHigh, PadInterior []int

	Comparison ComparisonDirection
	Reduce     ReduceKind
	Window     *Window
	Conv       *ConvConfig
	Precision  Precision
}

// Window describes the sliding window of ReduceWindow and SelectAndScatter.
// Every slice has one entry per operand dimension.
type Window struct {
	Dimensions []int
	Strides    []int
	PadLow     []int
	PadHigh    []int
}

// ConvConfig describes a convolution: window parameters for the spatial
// dimensions plus the dimension numbers of the input, kernel and output.
type ConvConfig struct {
	Strides     []int
	PadLow      []int
	PadHigh     []int
	LhsDilation []int
	RhsDilation []int

	InputBatch    int
	InputFeature  int
	InputSpatial  []int
	KernelOutput  int
	KernelInput   int
	KernelSpatial []int
	OutputBatch   int
	OutputFeature int
	OutputSpatial []int
}

// NCHWConfig returns the convolution config for NCHW inputs, OIHW kernels,
// and NCHW outputs with the given strides and symmetric padding.
func NCHWConfig(strides, padding []int) *ConvConfig {
	n := len(strides)
	spatial := make([]int, n)
	ones := make([]int, n)
	for i := range spatial {
		spatial[i] = i + 2
		ones[i] = 1
	}
	return &ConvConfig{
		Strides:       slices.Clone(strides),
		PadLow:        slices.Clone(padding),
		PadHigh:       slices.Clone(padding),
		LhsDilation:   ones,
		RhsDilation:   slices.Clone(ones),
		InputBatch:    0,
		InputFeature:  1,
		InputSpatial:  spatial,
		KernelOutput:  0,
		KernelInput:   1,
		KernelSpatial: slices.Clone(spatial),
		OutputBatch:   0,
		OutputFeature: 1,
		OutputSpatial: slices.Clone(spatial),
	}
}

// ID returns the op's sequence number within its builder.
func (op *Op) ID() int {
	return op.id
}

// Code returns the operation kind.
func (op *Op) Code() OpCode {
	return op.code
}

// Operands returns the op's inputs in order.
func (op *Op) Operands() []*Op {
	return op.operands
}

// Shape returns the op's inferred result shape.
func (op *Op) Shape() Shape {
	return op.shape
}

// DType returns the element type of the op's result.
func (op *Op) DType() tensor.DataType {
	return op.shape.DType
}

// Attrs returns the op's static attributes.
func (op *Op) Attrs() Attrs {
	return op.attrs
}

// Builder returns the builder that created op.
func (op *Op) Builder() *Builder {
	return op.builder
}

// Name returns the op's printable name, e.g. "add.7".
func (op *Op) Name() string {
	return fmt.Sprintf("%s.%d", op.code, op.id)
}

// String renders the op as a single line of the computation dump.
func (op *Op) String() string {
	s := fmt.Sprintf("%%%s = %s %s(", op.Name(), op.shape, op.code)
	for i, o := range op.operands {
		if i > 0 {
			s += ", "
		}
		s += "%" + o.Name()
	}
	if op.code == OpConstant && op.attrs.Literal != nil {
		s += op.attrs.Literal.String()
	}
	if op.code == OpParameter {
		s += fmt.Sprint(op.attrs.ParameterNumber)
	}
	s += ")"
	return s + op.attrSuffix()
}

func (op *Op) attrSuffix() string {
	a := op.attrs
	switch op.code {
	case OpParameter:
		return fmt.Sprintf(", name=%q", a.Name)
	case OpBroadcastInDim, OpTranspose, OpReduce, OpReverse:
		s := fmt.Sprintf(", dimensions=%v", a.Dimensions)
		if op.code == OpReduce {
			s += ", to_apply=" + a.Reduce.String()
		}
		return s
	case OpIota:
		return fmt.Sprintf(", iota_dimension=%d", a.Axis)
	case OpConcatenate:
		return fmt.Sprintf(", dimensions={%d}", a.Axis)
	case OpGetTupleElement:
		return fmt.Sprintf(", index=%d", a.Index)
	case OpSlice:
		return fmt.Sprintf(", slice={starts=%v, limits=%v, strides=%v}", a.Starts, a.Limits, a.Strides)
	case OpPad:
		return fmt.Sprintf(", padding={low=%v, high=%v, interior=%v}", a.PadLow, a.PadHigh, a.PadInterior)
	case OpCompare:
		return ", direction=" + a.Comparison.String()
	case OpDot:
		return ", precision=" + a.Precision.String()
	case OpReduceWindow, OpSelectAndScatter:
		w := a.Window
		s := fmt.Sprintf(", window={size=%v, stride=%v, pad_low=%v, pad_high=%v}", w.Dimensions, w.Strides, w.PadLow, w.PadHigh)
		if op.code == OpReduceWindow {
			s += ", to_apply=" + a.Reduce.String()
		}
		return s
	case OpConvolution:
		c := a.Conv
		return fmt.Sprintf(", window={stride=%v, pad_low=%v, pad_high=%v, lhs_dilate=%v, rhs_dilate=%v}, precision=%s",
			c.Strides, c.PadLow, c.PadHigh, c.LhsDilation, c.RhsDilation, a.Precision)
	}
	return ""
}
