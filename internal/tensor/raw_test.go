package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRaw(t *testing.T) {
	raw, err := NewRaw(Shape{3, 2}, Int64)
	require.NoError(t, err)
	assert.Equal(t, 6, raw.NumElements())
	assert.Equal(t, 48, raw.ByteSize())
	assert.Equal(t, make([]int64, 6), raw.AsInt64())

	_, err = NewRaw(Shape{-1}, Float32)
	require.Error(t, err)
}

func TestFromSlice(t *testing.T) {
	raw, err := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2})
	require.NoError(t, err)
	assert.Equal(t, Float32, raw.DType())
	assert.Equal(t, Shape{2, 2}, raw.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4}, raw.AsFloat32())

	_, err = FromSlice([]float32{1, 2, 3}, Shape{2, 2})
	require.Error(t, err)

	b, err := FromSlice([]bool{true, false}, Shape{2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, b.Float64s())

	empty, err := FromSlice([]int32{}, Shape{0})
	require.NoError(t, err)
	assert.Nil(t, empty.AsInt32())
}

func TestScalar(t *testing.T) {
	s := Scalar(int64(7))
	assert.Empty(t, s.Shape())
	assert.Equal(t, Int64, s.DType())
	assert.Equal(t, []int64{7}, s.AsInt64())
}

func TestFromFloat64sRoundTrip(t *testing.T) {
	values := []float64{-2.5, 0, 1, 3.75}
	tests := []struct {
		dtype DataType
		want  []float64
	}{
		{Float32, []float64{-2.5, 0, 1, 3.75}},
		{Float64, []float64{-2.5, 0, 1, 3.75}},
		{Float16, []float64{-2.5, 0, 1, 3.75}},
		{BFloat16, []float64{-2.5, 0, 1, 3.75}},
		{Int32, []float64{-2, 0, 1, 3}},
		{Int64, []float64{-2, 0, 1, 3}},
		{Bool, []float64{1, 0, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.dtype.String(), func(t *testing.T) {
			raw, err := FromFloat64s(values, Shape{4}, tt.dtype)
			require.NoError(t, err)
			assert.Equal(t, tt.dtype, raw.DType())
			assert.Equal(t, tt.want, raw.Float64s())
		})
	}

	_, err := FromFloat64s(values, Shape{3}, Float32)
	require.Error(t, err)
}

func TestAccessorPanicsOnWrongDType(t *testing.T) {
	raw := Scalar(float32(1))
	assert.Panics(t, func() { raw.AsFloat64() })
	assert.Panics(t, func() { raw.AsInt64() })
}

func TestCloneIsDeep(t *testing.T) {
	raw, err := FromSlice([]float64{1, 2}, Shape{2})
	require.NoError(t, err)
	c := raw.Clone()
	c.AsFloat64()[0] = 9
	assert.Equal(t, []float64{1, 2}, raw.AsFloat64())
}

func TestRawString(t *testing.T) {
	raw, err := FromSlice([]int64{1, 2, 3}, Shape{3})
	require.NoError(t, err)
	assert.Equal(t, "s64[3]{1, 2, 3}", raw.String())

	f, err := FromSlice([]float32{0.5, 2}, Shape{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "f32[1,2]{0.5, 2}", f.String())

	b, err := FromSlice([]bool{true, false}, Shape{2})
	require.NoError(t, err)
	assert.Equal(t, "pred[2]{true, false}", b.String())

	long, err := FromFloat64s(make([]float64, 20), Shape{20}, Float64)
	require.NoError(t, err)
	assert.Contains(t, long.String(), ", ...}")
}
