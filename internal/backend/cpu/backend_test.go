package cpu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/tensor"
)

func constF32(t *testing.T, b *hlo.Builder, values []float32, dims ...int) *hlo.Op {
	t.Helper()
	lit, err := tensor.FromSlice(values, tensor.Shape(dims))
	require.NoError(t, err)
	op, err := b.Constant(lit)
	require.NoError(t, err)
	return op
}

func iotaF32(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

// run builds b with root and executes it, returning every result decoded.
func run(t *testing.T, b *hlo.Builder, root *hlo.Op, args ...*tensor.RawTensor) [][]float64 {
	t.Helper()
	comp, err := b.BuildWithRoot(root)
	require.NoError(t, err)
	results, err := New().Execute(context.Background(), comp, args...)
	require.NoError(t, err)
	out := make([][]float64, len(results))
	for i, r := range results {
		out[i] = r.Float64s()
	}
	return out
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	require.NotNil(t, backend)
	assert.Equal(t, "CPU", backend.Name())
}

func TestCPUBackend_Parameters(t *testing.T) {
	b := hlo.NewBuilder("params")
	x, err := b.Parameter(0, hlo.MakeShape(tensor.Float32, 2, 2), "x")
	require.NoError(t, err)
	y, err := b.Parameter(1, hlo.ScalarShape(tensor.Float32), "y")
	require.NoError(t, err)
	sum, err := b.Add(x, y)
	require.NoError(t, err)
	comp, err := b.BuildWithRoot(sum)
	require.NoError(t, err)

	xv, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	require.NoError(t, err)
	backend := New()

	t.Run("ScalarBroadcast", func(t *testing.T) {
		results, err := backend.Execute(context.Background(), comp, xv, tensor.Scalar[float32](10))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, []float32{11, 12, 13, 14}, results[0].AsFloat32())
		assert.Equal(t, tensor.Shape{2, 2}, results[0].Shape())
	})

	t.Run("WrongArity", func(t *testing.T) {
		_, err := backend.Execute(context.Background(), comp, xv)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 2 arguments, got 1")
	})

	t.Run("WrongShape", func(t *testing.T) {
		_, err := backend.Execute(context.Background(), comp, xv, xv)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `parameter "y" expects f32[]`)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := backend.Execute(ctx, comp, xv, tensor.Scalar[float32](1))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestCPUBackend_Manipulation(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T, b *hlo.Builder) (*hlo.Op, error)
		want  []float64
	}{
		{"Iota", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			return b.Iota(hlo.MakeShape(tensor.Int64, 2, 3), 1)
		}, []float64{0, 1, 2, 0, 1, 2}},
		{"BroadcastTrailing", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			return b.BroadcastInDim(constF32(t, b, []float32{1, 2}, 2), []int{2, 2}, []int{1})
		}, []float64{1, 2, 1, 2}},
		{"BroadcastLeading", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			return b.BroadcastInDim(constF32(t, b, []float32{1, 2}, 2), []int{2, 2}, []int{0})
		}, []float64{1, 1, 2, 2}},
		{"Transpose", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			return b.Transpose(constF32(t, b, iotaF32(6), 2, 3), 1, 0)
		}, []float64{0, 3, 1, 4, 2, 5}},
		{"Slice", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			return b.Slice(constF32(t, b, iotaF32(6), 6), []int{1}, []int{6}, []int{2})
		}, []float64{1, 3, 5}},
		{"SliceInDim", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			return b.SliceInDim(constF32(t, b, iotaF32(6), 2, 3), 1, 3, 1, 1)
		}, []float64{1, 2, 4, 5}},
		{"Concatenate", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			return b.Concatenate(1, constF32(t, b, []float32{1, 2}, 2, 1), constF32(t, b, []float32{3, 4, 5, 6}, 2, 2))
		}, []float64{1, 3, 4, 2, 5, 6}},
		{"Pad", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			zero, err := b.ScalarConstant(0, tensor.Float32)
			if err != nil {
				return nil, err
			}
			return b.Pad(constF32(t, b, []float32{1, 2}, 2), zero, []int{1}, []int{2}, []int{1})
		}, []float64{0, 1, 0, 2, 0, 0}},
		{"PadNegative", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			zero, err := b.ScalarConstant(0, tensor.Float32)
			if err != nil {
				return nil, err
			}
			return b.Pad(constF32(t, b, []float32{1, 2, 3}, 3), zero, []int{-1}, []int{0}, []int{0})
		}, []float64{2, 3}},
		{"Reverse", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			return b.Reverse(constF32(t, b, []float32{1, 2, 3, 4}, 2, 2), 0)
		}, []float64{3, 4, 1, 2}},
		{"Reshape", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			return b.Reshape(constF32(t, b, iotaF32(6), 2, 3), 3, 2)
		}, []float64{0, 1, 2, 3, 4, 5}},
		{"ConvertTruncates", func(t *testing.T, b *hlo.Builder) (*hlo.Op, error) {
			return b.Convert(constF32(t, b, []float32{1.75, -1.75}, 2), tensor.Int64)
		}, []float64{1, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := hlo.NewBuilder(tt.name)
			root, err := tt.build(t, b)
			require.NoError(t, err)
			got := run(t, b, root)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestCPUBackend_Elementwise(t *testing.T) {
	b := hlo.NewBuilder("elementwise")
	x := constF32(t, b, []float32{1, 4, 9}, 3)
	y := constF32(t, b, []float32{2, 2, 2}, 3)

	sub, err := b.Sub(x, y)
	require.NoError(t, err)
	div, err := b.Div(x, y)
	require.NoError(t, err)
	mx, err := b.Max(x, y)
	require.NoError(t, err)
	mn, err := b.Min(x, y)
	require.NoError(t, err)
	sqrt, err := b.Sqrt(x)
	require.NoError(t, err)
	neg, err := b.Neg(x)
	require.NoError(t, err)
	gt, err := b.Compare(hlo.CompareGT, x, y)
	require.NoError(t, err)
	sel, err := b.Select(gt, x, y)
	require.NoError(t, err)
	root, err := b.Tuple(sub, div, mx, mn, sqrt, neg, gt, sel)
	require.NoError(t, err)

	got := run(t, b, root)
	require.Len(t, got, 8)
	assert.Equal(t, []float64{-1, 2, 7}, got[0])
	assert.Equal(t, []float64{0.5, 2, 4.5}, got[1])
	assert.Equal(t, []float64{2, 4, 9}, got[2])
	assert.Equal(t, []float64{1, 2, 2}, got[3])
	assert.Equal(t, []float64{1, 2, 3}, got[4])
	assert.Equal(t, []float64{-1, -4, -9}, got[5])
	assert.Equal(t, []float64{0, 1, 1}, got[6])
	assert.Equal(t, []float64{2, 4, 9}, got[7])
}

func TestCPUBackend_IntegerDivision(t *testing.T) {
	b := hlo.NewBuilder("idiv")
	seven, err := b.ScalarConstant(7, tensor.Int64)
	require.NoError(t, err)
	two, err := b.ScalarConstant(2, tensor.Int64)
	require.NoError(t, err)
	q, err := b.Div(seven, two)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3}}, run(t, b, q))

	b = hlo.NewBuilder("idiv_zero")
	seven, err = b.ScalarConstant(7, tensor.Int64)
	require.NoError(t, err)
	zero, err := b.ScalarConstant(0, tensor.Int64)
	require.NoError(t, err)
	q, err = b.Div(seven, zero)
	require.NoError(t, err)
	comp, err := b.BuildWithRoot(q)
	require.NoError(t, err)
	_, err = New().Execute(context.Background(), comp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integer division by zero")
}

func TestCPUBackend_Dot(t *testing.T) {
	b := hlo.NewBuilder("dot")
	lhs := constF32(t, b, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	rhs := constF32(t, b, []float32{1, 0, 0, 1, 1, 1}, 3, 2)
	vec := constF32(t, b, []float32{1, 1, 1}, 3)

	mm, err := b.Dot(lhs, rhs, hlo.PrecisionDefault)
	require.NoError(t, err)
	mv, err := b.Dot(lhs, vec, hlo.PrecisionHighest)
	require.NoError(t, err)
	root, err := b.Tuple(mm, mv)
	require.NoError(t, err)

	got := run(t, b, root)
	assert.Equal(t, []float64{4, 5, 10, 11}, got[0])
	assert.Equal(t, []float64{6, 15}, got[1])
}

func TestCPUBackend_Reduce(t *testing.T) {
	b := hlo.NewBuilder("reduce")
	x := constF32(t, b, iotaF32(6), 2, 3)
	rows, err := b.Reduce(x, hlo.ReduceSum, 1)
	require.NoError(t, err)
	cols, err := b.Reduce(x, hlo.ReduceMax, 0)
	require.NoError(t, err)
	all, err := b.Reduce(x, hlo.ReduceSum, 0, 1)
	require.NoError(t, err)
	root, err := b.Tuple(rows, cols, all)
	require.NoError(t, err)

	got := run(t, b, root)
	assert.Equal(t, []float64{3, 12}, got[0])
	assert.Equal(t, []float64{3, 4, 5}, got[1])
	assert.Equal(t, []float64{15}, got[2])
}

func TestCPUBackend_Windows(t *testing.T) {
	window := hlo.Window{
		Dimensions: []int{1, 1, 2, 2},
		Strides:    []int{1, 1, 2, 2},
		PadLow:     []int{0, 0, 0, 0},
		PadHigh:    []int{0, 0, 0, 0},
	}

	t.Run("MaxPool", func(t *testing.T) {
		b := hlo.NewBuilder("maxpool")
		x := constF32(t, b, iotaF32(16), 1, 1, 4, 4)
		pooled, err := b.ReduceWindow(x, hlo.ReduceMax, window)
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{5, 7, 13, 15}}, run(t, b, pooled))
	})

	t.Run("PaddedSum", func(t *testing.T) {
		b := hlo.NewBuilder("padded")
		x := constF32(t, b, []float32{1, 1, 1, 1}, 1, 1, 2, 2)
		w := hlo.Window{
			Dimensions: []int{1, 1, 2, 2},
			Strides:    []int{1, 1, 1, 1},
			PadLow:     []int{0, 0, 1, 1},
			PadHigh:    []int{0, 0, 0, 0},
		}
		sum, err := b.ReduceWindow(x, hlo.ReduceSum, w)
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{1, 2, 2, 4}}, run(t, b, sum))
	})

	t.Run("SelectAndScatter", func(t *testing.T) {
		b := hlo.NewBuilder("scatter")
		x := constF32(t, b, iotaF32(16), 1, 1, 4, 4)
		src := constF32(t, b, []float32{1, 2, 3, 4}, 1, 1, 2, 2)
		grad, err := b.SelectAndScatter(x, src, window)
		require.NoError(t, err)
		want := make([]float64, 16)
		want[5], want[7], want[13], want[15] = 1, 2, 3, 4
		assert.Equal(t, [][]float64{want}, run(t, b, grad))
	})
}

func TestCPUBackend_Convolution(t *testing.T) {
	t.Run("NCHW", func(t *testing.T) {
		b := hlo.NewBuilder("conv")
		x := constF32(t, b, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
		w := constF32(t, b, []float32{1, 1, 1, 1}, 1, 1, 2, 2)
		y, err := b.Convolution(x, w, *hlo.NCHWConfig([]int{1, 1}, []int{0, 0}), hlo.PrecisionDefault)
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{12, 16, 24, 28}}, run(t, b, y))
	})

	t.Run("PaddedStrided", func(t *testing.T) {
		b := hlo.NewBuilder("conv_pad")
		x := constF32(t, b, []float32{1, 2, 3, 4}, 1, 1, 2, 2)
		w := constF32(t, b, []float32{1}, 1, 1, 1, 1)
		y, err := b.Convolution(x, w, *hlo.NCHWConfig([]int{2, 2}, []int{1, 1}), hlo.PrecisionDefault)
		require.NoError(t, err)
		// Padded input is 4x4; a stride of 2 samples (0,0) (0,2) (2,0) (2,2).
		assert.Equal(t, [][]float64{{0, 0, 0, 4}}, run(t, b, y))
	})

	t.Run("LhsDilation", func(t *testing.T) {
		b := hlo.NewBuilder("conv_dilate")
		x := constF32(t, b, []float32{1, 2}, 1, 1, 1, 2)
		w := constF32(t, b, []float32{1}, 1, 1, 1, 1)
		cfg := hlo.NCHWConfig([]int{1, 1}, []int{0, 0})
		cfg.LhsDilation = []int{1, 2}
		y, err := b.Convolution(x, w, *cfg, hlo.PrecisionDefault)
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{1, 0, 2}}, run(t, b, y))
	})
}

func TestCPUBackend_NestedTuple(t *testing.T) {
	b := hlo.NewBuilder("nested")
	x := constF32(t, b, []float32{1}, 1)
	y := constF32(t, b, []float32{2}, 1)
	inner, err := b.Tuple(x, y)
	require.NoError(t, err)
	first, err := b.GetTupleElement(inner, 1)
	require.NoError(t, err)
	root, err := b.Tuple(inner, first)
	require.NoError(t, err)

	assert.Equal(t, [][]float64{{1}, {2}, {2}}, run(t, b, root))
}
