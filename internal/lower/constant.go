package lower

import (
	"errors"
	"fmt"

	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/tensor"
)

// constantLiteral converts a prim::Constant payload into a backend literal.
// Floats are narrowed to f32 and integer and boolean lists widen to s64.
func constantLiteral(v jit.IValue) (*tensor.RawTensor, error) {
	switch v.Kind() {
	case jit.IValueTensor:
		t, _ := v.Tensor()
		if t == nil {
			return nil, fmt.Errorf("nil tensor payload")
		}
		return t.Clone(), nil
	case jit.IValueDouble:
		d, _ := v.Double()
		return tensor.Scalar(float32(d)), nil
	case jit.IValueInt:
		i, _ := v.Int()
		return tensor.Scalar(i), nil
	case jit.IValueIntList:
		ints, _ := v.IntList()
		return tensor.FromSlice(append([]int64{}, ints...), tensor.Shape{len(ints)})
	case jit.IValueBoolList:
		bools, _ := v.BoolList()
		ints := make([]int64, len(bools))
		for i, b := range bools {
			if b {
				ints[i] = 1
			}
		}
		return tensor.FromSlice(ints, tensor.Shape{len(ints)})
	case jit.IValueDoubleList:
		doubles, _ := v.DoubleList()
		floats := make([]float32, len(doubles))
		for i, d := range doubles {
			floats[i] = float32(d)
		}
		return tensor.FromSlice(floats, tensor.Shape{len(floats)})
	case jit.IValueBool:
		b, _ := v.Bool()
		return tensor.Scalar(b), nil
	}
	return nil, errUnsupportedPayload
}

var errUnsupportedPayload = errors.New("unsupported payload")
