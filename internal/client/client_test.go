package client

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/lower"
	"github.com/born-ml/lower/internal/tensor"
)

func f32(dims ...int) lower.ParameterShape {
	return lower.ParameterShape{Kind: lower.GraphInput, Shape: hlo.MakeShape(tensor.Float32, dims...)}
}

func raw(t *testing.T, values []float32, dims ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromSlice(values, tensor.Shape(dims))
	require.NoError(t, err)
	return r
}

func seq(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i + 1)
	}
	return out
}

func ints(v ...int64) jit.IValue {
	return jit.IntListValue(v...)
}

// lowerAndRun translates g, compiles it on a fresh client, and runs it.
func lowerAndRun(t *testing.T, g *jit.Graph, params []lower.ParameterShape, args ...*tensor.RawTensor) [][]float64 {
	t.Helper()
	res, err := lower.NewTranslator(g, lower.DefaultConfig()).BuildComputation(g.Name(), params, nil, lower.BuildOptions{})
	require.NoError(t, err)

	c := New()
	exe, err := c.Compile(res.Computation)
	require.NoError(t, err)
	results, err := c.Execute(context.Background(), exe, args...)
	require.NoError(t, err)

	out := make([][]float64, len(results))
	for i, r := range results {
		out[i] = r.Float64s()
	}
	return out
}

func assertClose(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "element %d", i)
	}
}

func TestSharedIsProcessWide(t *testing.T) {
	assert.Same(t, Shared(), Shared())
	assert.NotSame(t, Shared(), New())
	assert.Equal(t, "CPU", New().Platform())
}

func TestCompileAndUnload(t *testing.T) {
	b := hlo.NewBuilder("one")
	one, err := b.ScalarConstant(1, tensor.Float32)
	require.NoError(t, err)
	comp, err := b.BuildWithRoot(one)
	require.NoError(t, err)

	c := New()
	exe, err := c.Compile(comp)
	require.NoError(t, err)
	assert.Equal(t, "one", exe.Name())
	got, ok := c.Lookup(exe.ID)
	require.True(t, ok)
	assert.Same(t, exe, got)

	c.Unload(exe)
	_, err = c.Execute(context.Background(), exe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not loaded")

	_, err = c.Compile(nil)
	require.Error(t, err)
}

func TestTransferAndRelease(t *testing.T) {
	c := New()
	x := raw(t, []float32{1, 2}, 2)
	d := c.TransferToServer(x)
	assert.True(t, d.Shape.Equal(hlo.MakeShape(tensor.Float32, 2)))

	// Later writes to the source do not reach client storage.
	x.AsFloat32()[0] = 100
	fetched, err := c.Fetch(d.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, fetched.AsFloat32())

	other := c.TransferToServer(x)
	assert.NotEqual(t, d.ID, other.ID)

	c.Release(d.ID)
	_, err = c.Fetch(d.ID)
	require.Error(t, err)
	c.Release(d.ID)
}

// Data handles drive parameter creation; a handle used twice occupies one slot.
func TestExecuteDataWithLoweringContext(t *testing.T) {
	c := New()
	a := c.TransferToServer(raw(t, []float32{1, 2, 3}, 3))
	b := c.TransferToServer(raw(t, []float32{10, 20, 30}, 3))

	lc := lower.NewLoweringContext("data")
	pa, err := lc.GetOrCreateParameter(a.ID, a.Shape)
	require.NoError(t, err)
	pb, err := lc.GetOrCreateParameter(b.ID, b.Shape)
	require.NoError(t, err)
	again, err := lc.GetOrCreateParameter(a.ID, a.Shape)
	require.NoError(t, err)
	assert.Same(t, pa, again)

	sum, err := lc.Builder().Add(pa, pb)
	require.NoError(t, err)
	twice, err := lc.Builder().Add(sum, again)
	require.NoError(t, err)
	lc.AddResult(twice)
	comp, err := lc.Build()
	require.NoError(t, err)

	exe, err := c.Compile(comp)
	require.NoError(t, err)
	results, err := c.ExecuteData(context.Background(), exe, lc.ParametersData()...)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []float32{12, 24, 36}, results[0].AsFloat32())

	c.Release(b.ID)
	_, err = c.ExecuteData(context.Background(), exe, lc.ParametersData()...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument 1")
}

func TestLoweredArithmetic(t *testing.T) {
	g := jit.NewGraph("arith")
	a := g.AddInput("a", nil)
	b := g.AddInput("b", nil)
	sum := g.AddNode(jit.AtenAdd, []*jit.Value{a, b}, 1, nil)
	scaled := g.AddNode(jit.AtenSub, []*jit.Value{a, b, g.Constant(jit.IntValue(2))}, 1, nil)
	undef := g.AddNode(jit.PrimUndefined, nil, 1, nil)
	half := g.AddNode(jit.AtenMul, []*jit.Value{a, undef.Output(0)}, 1, map[string]jit.IValue{"other": jit.DoubleValue(0.5)})
	g.SetReturn(sum.Output(0), scaled.Output(0), half.Output(0))

	got := lowerAndRun(t, g, []lower.ParameterShape{f32(3), f32(3)},
		raw(t, []float32{1, 2, 3}, 3), raw(t, []float32{10, 20, 30}, 3))
	require.Len(t, got, 3)
	assert.Equal(t, []float64{11, 22, 33}, got[0])
	assert.Equal(t, []float64{-19, -38, -57}, got[1])
	assert.Equal(t, []float64{0.5, 1, 1.5}, got[2])
}

func TestLoweredActivations(t *testing.T) {
	g := jit.NewGraph("act")
	x := g.AddInput("x", nil)
	relu := g.AddNode(jit.AtenRelu, []*jit.Value{x}, 1, nil)
	sig := g.AddNode(jit.AtenSigmoid, []*jit.Value{x}, 1, nil)
	clip := g.AddNode(jit.AtenHardtanh, []*jit.Value{x}, 1, nil)
	g.SetReturn(relu.Output(0), sig.Output(0), clip.Output(0))

	got := lowerAndRun(t, g, []lower.ParameterShape{f32(3)}, raw(t, []float32{-2, 0, 0.5}, 3))
	assert.Equal(t, []float64{0, 0, 0.5}, got[0])
	sigmoid := func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }
	assertClose(t, []float64{sigmoid(-2), 0.5, sigmoid(0.5)}, got[1])
	assert.Equal(t, []float64{-1, 0, 0.5}, got[2])
}

func TestLoweredConvolution(t *testing.T) {
	g := jit.NewGraph("conv")
	x := g.AddInput("x", nil)
	w := g.AddInput("w", nil)
	bias := g.AddInput("bias", nil)
	conv := g.AddNode(jit.AtenConvolution, []*jit.Value{x, w, bias, g.Constant(ints(1, 1)), g.Constant(ints(0, 0))}, 1, nil)
	g.SetReturn(conv.Output(0))

	got := lowerAndRun(t, g, []lower.ParameterShape{f32(1, 1, 3, 3), f32(1, 1, 2, 2), f32(1)},
		raw(t, seq(9), 1, 1, 3, 3), raw(t, []float32{1, 1, 1, 1}, 1, 1, 2, 2), raw(t, []float32{0.5}, 1))
	assert.Equal(t, []float64{12.5, 16.5, 24.5, 28.5}, got[0])
}

func TestLoweredConvolutionBackward(t *testing.T) {
	g := jit.NewGraph("conv_backward")
	gradOut := g.AddInput("grad_output", nil)
	x := g.AddInput("x", nil)
	w := g.AddInput("w", nil)
	none := g.AddNode(jit.PrimUndefined, nil, 1, nil).Output(0)
	inputs := []*jit.Value{
		gradOut, x, w,
		g.Constant(ints(2, 2)), g.Constant(ints(1, 1)), g.Constant(ints(0, 0)),
		none, none, g.Constant(jit.BoolListValue(true, true, true)),
	}
	back := g.AddNode(jit.AtenThnnConv2dBackward, inputs, 3, nil)
	g.SetReturn(back.Outputs()...)

	got := lowerAndRun(t, g, []lower.ParameterShape{f32(1, 1, 2, 2), f32(1, 1, 3, 3), f32(1, 1, 2, 2)},
		raw(t, []float32{1, 1, 1, 1}, 1, 1, 2, 2), raw(t, seq(9), 1, 1, 3, 3), raw(t, []float32{1, 1, 1, 1}, 1, 1, 2, 2))
	require.Len(t, got, 3)
	// Every input element receives one unit per window covering it.
	assert.Equal(t, []float64{1, 2, 1, 2, 4, 2, 1, 2, 1}, got[0])
	assert.Equal(t, []float64{12, 16, 24, 28}, got[1])
	assert.Equal(t, []float64{4}, got[2])
}

func TestLoweredStridedConvolutionBackward(t *testing.T) {
	g := jit.NewGraph("conv_backward_strided")
	gradOut := g.AddInput("grad_output", nil)
	x := g.AddInput("x", nil)
	w := g.AddInput("w", nil)
	none := g.AddNode(jit.PrimUndefined, nil, 1, nil).Output(0)
	inputs := []*jit.Value{
		gradOut, x, w,
		g.Constant(ints(1, 1)), g.Constant(ints(2, 2)), g.Constant(ints(0, 0)),
		none, none, g.Constant(jit.BoolListValue(true, true, true)),
	}
	back := g.AddNode(jit.AtenThnnConv2dBackward, inputs, 3, nil)
	g.SetReturn(back.Outputs()...)

	// A 1x1 kernel with stride 2 over 3x3 samples the four corners.
	got := lowerAndRun(t, g, []lower.ParameterShape{f32(1, 1, 2, 2), f32(1, 1, 3, 3), f32(1, 1, 1, 1)},
		raw(t, []float32{1, 2, 3, 4}, 1, 1, 2, 2), raw(t, seq(9), 1, 1, 3, 3), raw(t, []float32{2}, 1, 1, 1, 1))
	assert.Equal(t, []float64{2, 0, 4, 0, 0, 0, 6, 0, 8}, got[0])
	assert.Equal(t, []float64{1*1 + 2*3 + 3*7 + 4*9}, got[1])
	assert.Equal(t, []float64{10}, got[2])
}

func TestLoweredPooling(t *testing.T) {
	g := jit.NewGraph("pool")
	x := g.AddInput("x", nil)
	grad := g.AddInput("grad", nil)
	kernel, stride, padding, dilation := g.Constant(ints(2, 2)), g.Constant(ints(2, 2)), g.Constant(ints(0, 0)), g.Constant(ints(1, 1))
	ceil := g.Constant(jit.BoolValue(false))
	pool := g.AddNode(jit.AtenMaxPool2dWithIndices, []*jit.Value{x, kernel, stride, padding, dilation, ceil}, 2, nil)
	poolBack := g.AddNode(jit.AtenMaxPool2dWithIndicesBackward, []*jit.Value{grad, x, kernel, stride, padding, dilation, ceil, pool.Output(1)}, 1, nil)
	avg := g.AddNode(jit.AtenAvgPool2d, []*jit.Value{x, kernel, stride}, 1, nil)
	avgBack := g.AddNode(jit.AtenAvgPool2dBackward, []*jit.Value{grad, x, kernel, stride}, 1, nil)
	g.SetReturn(pool.Output(0), poolBack.Output(0), avg.Output(0), avgBack.Output(0))

	// Only the max-pool indices output stays unbound, and the backward rule
	// never reads it.
	got := lowerAndRun(t, g, []lower.ParameterShape{f32(1, 1, 4, 4), f32(1, 1, 2, 2)},
		raw(t, seq(16), 1, 1, 4, 4), raw(t, []float32{1, 2, 3, 4}, 1, 1, 2, 2))
	require.Len(t, got, 4)
	assert.Equal(t, []float64{6, 8, 14, 16}, got[0])

	wantMax := make([]float64, 16)
	wantMax[5], wantMax[7], wantMax[13], wantMax[15] = 1, 2, 3, 4
	assert.Equal(t, wantMax, got[1])

	assert.Equal(t, []float64{3.5, 5.5, 11.5, 13.5}, got[2])
	assert.Equal(t, []float64{
		0.25, 0.25, 0.5, 0.5,
		0.25, 0.25, 0.5, 0.5,
		0.75, 0.75, 1, 1,
		0.75, 0.75, 1, 1,
	}, got[3])
}

func TestLoweredAdaptivePooling(t *testing.T) {
	g := jit.NewGraph("adaptive")
	x := g.AddInput("x", nil)
	pool := g.AddNode(jit.AtenAdaptiveAvgPool2d, []*jit.Value{x, g.Constant(ints(1, 1))}, 1, nil)
	back := g.AddNode(jit.AtenAdaptiveAvgPool2dBackward, []*jit.Value{pool.Output(0), x}, 1, nil)
	g.SetReturn(pool.Output(0), back.Output(0))

	got := lowerAndRun(t, g, []lower.ParameterShape{f32(1, 1, 2, 2)}, raw(t, []float32{1, 2, 3, 6}, 1, 1, 2, 2))
	assert.Equal(t, []float64{3}, got[0])
	assert.Equal(t, []float64{0.75, 0.75, 0.75, 0.75}, got[1])
}

func TestLoweredLogSoftmaxAndNllLoss(t *testing.T) {
	g := jit.NewGraph("loss")
	logits := g.AddInput("logits", nil)
	labels := g.AddInput("labels", nil)
	none := g.AddNode(jit.PrimUndefined, nil, 1, nil).Output(0)
	ls := g.AddNode(jit.AtenLogSoftmax, []*jit.Value{logits, g.Constant(jit.IntValue(1))}, 1, nil)
	loss := g.AddNode(jit.AtenNllLoss, []*jit.Value{
		ls.Output(0), labels, none, g.Constant(jit.IntValue(1)), g.Constant(jit.IntValue(-100)),
	}, 1, nil)
	g.SetReturn(ls.Output(0), loss.Output(0))

	params := []lower.ParameterShape{
		f32(2, 2),
		{Kind: lower.GraphInput, Shape: hlo.MakeShape(tensor.Int64, 2)},
	}
	labelData, err := tensor.FromSlice([]int64{0, 1}, tensor.Shape{2})
	require.NoError(t, err)
	got := lowerAndRun(t, g, params, raw(t, []float32{0, 0, 1, 3}, 2, 2), labelData)

	lse := math.Log(math.Exp(1) + math.Exp(3))
	assertClose(t, []float64{-math.Ln2, -math.Ln2, 1 - lse, 3 - lse}, got[0])
	assertClose(t, []float64{-(-math.Ln2 + 3 - lse) / 2}, got[1])
}

func TestLoweredBatchNorm(t *testing.T) {
	g := jit.NewGraph("bn")
	x := g.AddInput("x", nil)
	none := g.AddNode(jit.PrimUndefined, nil, 1, nil).Output(0)
	bn := g.AddNode(jit.AtenNativeBatchNorm, []*jit.Value{
		x, none, none, none, none,
		g.Constant(jit.BoolValue(true)), g.Constant(jit.DoubleValue(0.1)), g.Constant(jit.DoubleValue(1e-5)),
	}, 3, nil)
	g.SetReturn(bn.Outputs()...)

	got := lowerAndRun(t, g, []lower.ParameterShape{f32(2, 1)}, raw(t, []float32{1, 3}, 2, 1))
	require.Len(t, got, 3)
	invStd := 1 / math.Sqrt(1+1e-5)
	assertClose(t, []float64{-invStd, invStd}, got[0])
	assertClose(t, []float64{2}, got[1])
	assertClose(t, []float64{invStd}, got[2])
}

func TestLoweredSumToSize(t *testing.T) {
	g := jit.NewGraph("sum_to_size")
	x := g.AddInput("x", nil)
	y := g.AddInput("y", nil)
	size := g.AddNode(jit.AtenSize, []*jit.Value{y}, 1, nil)
	reduced := g.AddNode(jit.PrimSumToSize, []*jit.Value{x, size.Output(0)}, 1, nil)
	g.SetReturn(reduced.Output(0), size.Output(0))

	ones := make([]float32, 24)
	for i := range ones {
		ones[i] = 1
	}
	got := lowerAndRun(t, g, []lower.ParameterShape{f32(4, 2, 3), f32(1, 3)},
		raw(t, ones, 4, 2, 3), raw(t, []float32{0, 0, 0}, 1, 3))
	assert.Equal(t, []float64{8, 8, 8}, got[0])
	assert.Equal(t, []float64{1, 3}, got[1])
}
