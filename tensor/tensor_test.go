// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lower/tensor"
)

// TestRawTensorAPI verifies the RawTensor alias exposes the expected API.
func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
	require.NoError(t, err)

	assert.True(t, raw.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, tensor.Float32, raw.DType())
	assert.Equal(t, 6, raw.NumElements())
	assert.Equal(t, 24, raw.ByteSize())

	data := raw.AsFloat32()
	data[0] = 1.5
	clone := raw.Clone()
	data[0] = 2.5
	assert.Equal(t, float32(1.5), clone.AsFloat32()[0])
}

func TestFromSlice(t *testing.T) {
	raw, err := tensor.FromSlice([]int64{1, 2, 3}, tensor.Shape{3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Int64, raw.DType())
	assert.Equal(t, []float64{1, 2, 3}, raw.Float64s())
	assert.Equal(t, "s64[3]{1, 2, 3}", raw.String())

	_, err = tensor.FromSlice([]float32{1, 2}, tensor.Shape{3})
	require.Error(t, err)
}

func TestHalfPrecision(t *testing.T) {
	for _, dt := range []tensor.DataType{tensor.Float16, tensor.BFloat16} {
		t.Run(dt.String(), func(t *testing.T) {
			raw, err := tensor.FromFloat64s([]float64{1, -2.5, 0.125}, tensor.Shape{3}, dt)
			require.NoError(t, err)
			assert.Equal(t, 6, raw.ByteSize())
			assert.Equal(t, []float64{1, -2.5, 0.125}, raw.Float64s())
		})
	}
}

func TestScalar(t *testing.T) {
	s := tensor.Scalar(true)
	assert.Equal(t, tensor.Bool, s.DType())
	assert.Empty(t, s.Shape())
	assert.Equal(t, []float64{1}, s.Float64s())
}

func TestParseDataType(t *testing.T) {
	dt, err := tensor.ParseDataType("bf16")
	require.NoError(t, err)
	assert.Equal(t, tensor.BFloat16, dt)

	_, err = tensor.ParseDataType("complex64")
	require.Error(t, err)
}
