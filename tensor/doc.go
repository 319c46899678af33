// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides host tensors for feeding and reading lowered
// computations.
//
// # Overview
//
// A RawTensor is a dense, row-major buffer with a Shape and a DataType.
// Tensors are used as constant payloads in traced graphs, as arguments to
// compiled executables, and as their results.
//
// Supported element types:
//   - Float32, Float64, Float16, BFloat16
//   - Int32, Int64, Uint8
//   - Bool
//
// # Basic Usage
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(x)             // f32[2,3]{1, 2, 3, 4, 5, 6}
//	fmt.Println(x.Float64s())  // decoded regardless of element type
//
// Half-precision tensors are built from float64 values and rounded to the
// nearest representable value:
//
//	h, _ := tensor.FromFloat64s([]float64{0.1, 0.2}, tensor.Shape{2}, tensor.Float16)
package tensor
