package lower

import (
	"errors"
	"slices"
	"testing"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ints(v ...int64) jit.IValue { return jit.IntListValue(v...) }

// convNet builds a small training-style forward graph:
// conv(+bias) -> relu -> max_pool -> view -> addmm -> log_softmax -> nll_loss.
func convNet() *jit.Graph {
	g := jit.NewGraph("convnet")
	x := g.AddInput("x", nil)
	w := g.AddInput("w", nil)
	bias := g.AddInput("bias", nil)
	fcW := g.AddInput("fc_w", nil)
	fcB := g.AddInput("fc_b", nil)
	labels := g.AddInput("labels", nil)

	kernel := g.Constant(ints(3, 3))
	conv := g.AddNode(jit.AtenThnnConv2dForward, []*jit.Value{x, w, kernel, bias}, 1, map[string]jit.IValue{
		"stride": ints(1, 1), "padding": ints(1, 1),
	})
	relu := g.AddNode(jit.AtenRelu, []*jit.Value{conv.Output(0)}, 1, nil)
	pool := g.AddNode(jit.AtenMaxPool2dWithIndices, []*jit.Value{relu.Output(0)}, 2, map[string]jit.IValue{
		"kernel_size": ints(2, 2), "stride": ints(2, 2),
	})
	flat := g.AddNode(jit.AtenView, []*jit.Value{pool.Output(0), g.Constant(ints(2, -1))}, 1, nil)
	fcWT := g.AddNode(jit.AtenT, []*jit.Value{fcW}, 1, nil)
	fc := g.AddNode(jit.AtenAddmm, []*jit.Value{fcB, flat.Output(0), fcWT.Output(0)}, 1, nil)
	ls := g.AddNode(jit.AtenLogSoftmax, []*jit.Value{fc.Output(0), g.Constant(jit.IntValue(1))}, 1, nil)
	loss := g.AddNode(jit.AtenNllLoss, []*jit.Value{
		ls.Output(0), labels, g.AddNode(jit.PrimUndefined, nil, 1, nil).Output(0),
		g.Constant(jit.IntValue(1)), g.Constant(jit.IntValue(-100)),
	}, 1, nil)
	g.SetReturn(loss.Output(0), ls.Output(0))
	return g
}

func TestLowerConvNet(t *testing.T) {
	params := []ParameterShape{
		f32(2, 1, 4, 4),
		f32(3, 1, 3, 3),
		f32(3),
		f32(5, 12),
		f32(5),
		{Kind: GraphInput, Shape: hlo.MakeShape(tensor.Int64, 2)},
	}
	res, err := translate(t, convNet(), params, nil)
	require.NoError(t, err)

	outs := rootElements(t, res)
	require.Len(t, outs, 2)
	assert.True(t, outs[0].Shape().IsScalar())
	assert.Equal(t, []int{2, 5}, outs[1].Shape().Dims)
	assert.Len(t, res.InputOps, 6)
}

func TestConvolutionBiasIsOptional(t *testing.T) {
	g := jit.NewGraph("conv")
	x := g.AddInput("x", nil)
	w := g.AddInput("w", nil)
	undef := g.AddNode(jit.PrimUndefined, nil, 1, nil)
	conv := g.AddNode(jit.AtenConvolution, []*jit.Value{x, w, undef.Output(0)}, 1, nil)
	g.SetReturn(conv.Output(0))

	res, err := translate(t, g, []ParameterShape{f32(1, 2, 5, 5), f32(4, 2, 3, 3)}, nil)
	require.NoError(t, err)
	out := rootElements(t, res)[0]
	assert.Equal(t, hlo.OpConvolution, out.Code())
	assert.Equal(t, []int{1, 4, 3, 3}, out.Shape().Dims)
}

func TestThnnConvWithoutBiasOperand(t *testing.T) {
	g := jit.NewGraph("thnn_conv")
	x := g.AddInput("x", nil)
	w := g.AddInput("w", nil)
	conv := g.AddNode(jit.AtenThnnConv2dForward, []*jit.Value{x, w, g.Constant(ints(3, 3))}, 1, map[string]jit.IValue{
		"stride": ints(2, 2), "padding": ints(1, 1),
	})
	g.SetReturn(conv.Output(0))

	var res *TranslationResult
	var err error
	require.NotPanics(t, func() {
		res, err = translate(t, g, []ParameterShape{f32(1, 1, 5, 5), f32(2, 1, 3, 3)}, nil)
	})
	require.NoError(t, err)
	out := rootElements(t, res)[0]
	assert.Equal(t, hlo.OpConvolution, out.Code())
	assert.Equal(t, []int{1, 2, 3, 3}, out.Shape().Dims)
}

func TestMultiOutputRules(t *testing.T) {
	g := jit.NewGraph("backward")
	gradOut := g.AddInput("grad_out", nil)
	x := g.AddInput("x", nil)
	w := g.AddInput("w", nil)
	mean := g.AddInput("mean", nil)
	invstd := g.AddInput("invstd", nil)
	none := g.AddNode(jit.PrimUndefined, nil, 1, nil).Output(0)

	convInputs := []*jit.Value{gradOut, x, w, g.Constant(ints(3, 3)), g.Constant(ints(1, 1)), g.Constant(ints(1, 1)), none, none, g.Constant(jit.BoolListValue(true, true, true))}
	conv := g.AddNode(jit.AtenThnnConv2dBackward, convInputs, 3, nil)

	bnInputs := []*jit.Value{x, none, none, none, none, g.Constant(jit.BoolValue(true)), g.Constant(jit.DoubleValue(0.1)), g.Constant(jit.DoubleValue(1e-5))}
	bn := g.AddNode(jit.AtenNativeBatchNorm, bnInputs, 3, nil)

	bnbInputs := []*jit.Value{x, x, none, none, none, mean, invstd, g.Constant(jit.BoolValue(true)), g.Constant(jit.DoubleValue(1e-5)), none}
	bnb := g.AddNode(jit.AtenNativeBatchNormBackward, bnbInputs, 3, nil)

	g.SetReturn(slices.Concat(conv.Outputs(), bn.Outputs(), bnb.Outputs())...)

	params := []ParameterShape{f32(1, 2, 4, 4), f32(1, 3, 4, 4), f32(2, 3, 3, 3), f32(3), f32(3)}
	res, err := translate(t, g, params, nil)
	require.NoError(t, err)
	outs := rootElements(t, res)
	require.Len(t, outs, 9)
	assert.Equal(t, []int{1, 3, 4, 4}, outs[0].Shape().Dims, "grad_input")
	assert.Equal(t, []int{2, 3, 3, 3}, outs[1].Shape().Dims, "grad_weight")
	assert.Equal(t, []int{2}, outs[2].Shape().Dims, "grad_bias")
	assert.Equal(t, []int{3}, outs[4].Shape().Dims, "save_mean")
	assert.Equal(t, []int{3}, outs[8].Shape().Dims, "bn grad_bias")
}

func TestBatchNormSingleOutput(t *testing.T) {
	g := jit.NewGraph("bn")
	x := g.AddInput("x", nil)
	none := g.AddNode(jit.PrimUndefined, nil, 1, nil).Output(0)
	inputs := []*jit.Value{x, none, none, none, none, none, none, none}
	bn := g.AddNode(jit.AtenBatchNorm, inputs, 3, nil)
	g.SetReturn(bn.Output(0))

	_, err := translate(t, g, []ParameterShape{f32(2, 3)}, nil)
	require.ErrorIs(t, err, ErrShapeArityMismatch)
	assert.Contains(t, err.Error(), "outputs")
}

func TestChunkOutputCount(t *testing.T) {
	build := func(outputs int) *jit.Graph {
		g := jit.NewGraph("chunk")
		x := g.AddInput("x", nil)
		c := g.AddNode(jit.AtenChunk, []*jit.Value{x, g.Constant(jit.IntValue(3)), g.Constant(jit.IntValue(0))}, outputs, nil)
		g.SetReturn(c.Outputs()...)
		return g
	}

	res, err := translate(t, build(3), []ParameterShape{f32(6, 2)}, nil)
	require.NoError(t, err)
	for _, out := range rootElements(t, res) {
		assert.Equal(t, []int{2, 2}, out.Shape().Dims)
	}

	_, err = translate(t, build(2), []ParameterShape{f32(6, 2)}, nil)
	assert.ErrorIs(t, err, ErrShapeArityMismatch)
}

func TestStackAndCatLookupList(t *testing.T) {
	g := jit.NewGraph("list")
	a := g.AddInput("a", nil)
	b := g.AddInput("b", nil)
	list := g.AddNode(jit.PrimListConstruct, []*jit.Value{a, b}, 1, nil)
	stack := g.AddNode(jit.AtenStack, []*jit.Value{list.Output(0), g.Constant(jit.IntValue(0))}, 1, nil)
	cat := g.AddNode(jit.AtenCat, []*jit.Value{list.Output(0), g.Constant(jit.IntValue(0))}, 1, nil)
	g.SetReturn(stack.Output(0), cat.Output(0))

	res, err := translate(t, g, []ParameterShape{f32(2, 3), f32(2, 3)}, nil)
	require.NoError(t, err)
	outs := rootElements(t, res)
	assert.Equal(t, []int{2, 2, 3}, outs[0].Shape().Dims)
	assert.Equal(t, []int{4, 3}, outs[1].Shape().Dims)

	unbound := jit.NewGraph("unbound")
	x := unbound.AddInput("x", nil)
	ghost := unbound.AddNode(jit.AtenDropout, []*jit.Value{x}, 1, nil)
	l := unbound.AddNode(jit.PrimListConstruct, []*jit.Value{x, ghost.Output(0)}, 1, nil)
	unbound.AddNode(jit.AtenCat, []*jit.Value{l.Output(0), unbound.Constant(jit.IntValue(0))}, 1, nil)
	// Dropout is unsupported, so translation stops there.
	_, err = translate(t, unbound, []ParameterShape{f32(2)}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestElementwiseRules(t *testing.T) {
	g := jit.NewGraph("elementwise")
	x := g.AddInput("x", nil)
	grad := g.AddInput("grad", nil)
	var outs []*jit.Value
	for _, k := range []jit.Kind{jit.AtenSqrt, jit.AtenRsqrt, jit.AtenNeg, jit.AtenTanh, jit.AtenSigmoid, jit.AtenRelu, jit.AtenHardtanh} {
		outs = append(outs, g.AddNode(k, []*jit.Value{x}, 1, nil).Output(0))
	}
	th := g.AddNode(jit.AtenThreshold, []*jit.Value{x, g.Constant(jit.DoubleValue(0)), g.Constant(jit.DoubleValue(0))}, 1, nil)
	thb := g.AddNode(jit.AtenThresholdBackward, []*jit.Value{grad, x, g.Constant(jit.DoubleValue(0))}, 1, nil)
	gt := g.AddNode(jit.AtenGt, []*jit.Value{x, g.Constant(jit.DoubleValue(0.5))}, 1, nil)
	typeAs := g.AddNode(jit.AtenTypeAs, []*jit.Value{gt.Output(0), x}, 1, nil)
	x.SetType(&jit.TensorType{DType: tensor.Float32, Sizes: []int64{4}})
	outs = append(outs, th.Output(0), thb.Output(0), gt.Output(0), typeAs.Output(0))
	g.SetReturn(outs...)

	res, err := translate(t, g, []ParameterShape{f32(4), f32(4)}, nil)
	require.NoError(t, err)
	got := rootElements(t, res)
	require.Len(t, got, len(outs))
	assert.Equal(t, tensor.Uint8, got[len(got)-2].DType(), "gt")
	assert.Equal(t, tensor.Float32, got[len(got)-1].DType(), "type_as")
}

func TestPoolingRules(t *testing.T) {
	g := jit.NewGraph("pool")
	x := g.AddInput("x", nil)
	k := g.Constant(ints(2, 2))
	avg := g.AddNode(jit.AtenAvgPool2d, []*jit.Value{x, k, k}, 1, nil)
	avgb := g.AddNode(jit.AtenAvgPool2dBackward, []*jit.Value{avg.Output(0), x, k, k}, 1, nil)
	mp := g.AddNode(jit.AtenMaxPool2dWithIndices, []*jit.Value{x, k, k}, 2, nil)
	none := g.AddNode(jit.PrimUndefined, nil, 1, nil).Output(0)
	mpb := g.AddNode(jit.AtenMaxPool2dWithIndicesBackward, []*jit.Value{mp.Output(0), x, k, k, none, none, none, none}, 1, nil)
	ad := g.AddNode(jit.AtenAdaptiveAvgPool2d, []*jit.Value{x, g.Constant(ints(1, 1))}, 1, nil)
	adb := g.AddNode(jit.AtenAdaptiveAvgPool2dBackward, []*jit.Value{ad.Output(0), x}, 1, nil)
	g.SetReturn(avg.Output(0), avgb.Output(0), mpb.Output(0), ad.Output(0), adb.Output(0))

	res, err := translate(t, g, []ParameterShape{f32(1, 1, 4, 4)}, nil)
	require.NoError(t, err)
	outs := rootElements(t, res)
	assert.Equal(t, []int{1, 1, 2, 2}, outs[0].Shape().Dims)
	assert.Equal(t, []int{1, 1, 4, 4}, outs[1].Shape().Dims)
	assert.Equal(t, []int{1, 1, 4, 4}, outs[2].Shape().Dims)
	assert.Equal(t, []int{1, 1, 1, 1}, outs[3].Shape().Dims)
	assert.Equal(t, []int{1, 1, 4, 4}, outs[4].Shape().Dims)

	// The indices output of max_pool2d_with_indices is never bound.
	g2 := jit.NewGraph("indices")
	y := g2.AddInput("y", nil)
	mp2 := g2.AddNode(jit.AtenMaxPool2dWithIndices, []*jit.Value{y, g2.Constant(ints(2, 2))}, 2, nil)
	g2.SetReturn(mp2.Output(1))
	_, err = translate(t, g2, []ParameterShape{f32(1, 1, 4, 4)}, nil)
	assert.ErrorIs(t, err, ErrMissingOperand)
}

func TestBuilderErrorsAreWrapped(t *testing.T) {
	g := jit.NewGraph("bad_view")
	x := g.AddInput("x", nil)
	v := g.AddNode(jit.AtenView, []*jit.Value{x, g.Constant(ints(5, -1))}, 1, nil)
	g.SetReturn(v.Output(0))

	_, err := translate(t, g, []ParameterShape{f32(2, 3)}, nil)
	require.Error(t, err)
	var lerr *Error
	assert.False(t, errors.As(err, &lerr), "op builder failures are not translation errors")
	assert.Contains(t, err.Error(), "node 1 (aten::view)")
	assert.NotNil(t, errors.Unwrap(err))
}
