package hlo

import (
	"slices"
	"strings"

	"github.com/born-ml/lower/internal/tensor"
)

// Shape is the static type of an Op: an element type with dimensions, or a
// tuple of shapes.
type Shape struct {
	DType tensor.DataType
	Dims  []int
	Tuple []Shape // non-nil for tuple shapes
}

// MakeShape creates an array shape. No dims means a scalar.
func MakeShape(dtype tensor.DataType, dims ...int) Shape {
	return Shape{DType: dtype, Dims: slices.Clone(dims)}
}

// ScalarShape creates a rank-0 shape.
func ScalarShape(dtype tensor.DataType) Shape {
	return Shape{DType: dtype}
}

// TupleShape creates a tuple shape with the given element shapes.
func TupleShape(elems ...Shape) Shape {
	t := make([]Shape, len(elems))
	copy(t, elems)
	return Shape{Tuple: t}
}

// IsTuple reports whether s is a tuple shape.
func (s Shape) IsTuple() bool {
	return s.Tuple != nil
}

// Rank returns the number of dimensions. Tuples have rank 0.
func (s Shape) Rank() int {
	return len(s.Dims)
}

// IsScalar reports whether s is a rank-0 array shape.
func (s Shape) IsScalar() bool {
	return s.Tuple == nil && len(s.Dims) == 0
}

// Size returns the number of elements of an array shape.
func (s Shape) Size() int {
	return tensor.Shape(s.Dims).NumElements()
}

// Dim returns dimension i; negative values count from the end.
func (s Shape) Dim(i int) int {
	if i < 0 {
		i += len(s.Dims)
	}
	return s.Dims[i]
}

// Equal reports whether both shapes have the same element type and dims, or
// are tuples of equal shapes.
func (s Shape) Equal(o Shape) bool {
	if s.IsTuple() != o.IsTuple() {
		return false
	}
	if s.IsTuple() {
		if len(s.Tuple) != len(o.Tuple) {
			return false
		}
		for i := range s.Tuple {
			if !s.Tuple[i].Equal(o.Tuple[i]) {
				return false
			}
		}
		return true
	}
	return s.DType == o.DType && slices.Equal(s.Dims, o.Dims)
}

// Clone returns a deep copy of s.
func (s Shape) Clone() Shape {
	c := Shape{DType: s.DType, Dims: slices.Clone(s.Dims)}
	if s.IsTuple() {
		c.Tuple = make([]Shape, len(s.Tuple))
		for i, e := range s.Tuple {
			c.Tuple[i] = e.Clone()
		}
	}
	return c
}

// WithDType returns a copy of s with a different element type.
func (s Shape) WithDType(dtype tensor.DataType) Shape {
	c := s.Clone()
	c.DType = dtype
	return c
}

// String formats the shape as in backend dumps, e.g. "f32[2,3]" or
// "(f32[2], s64[])".
func (s Shape) String() string {
	if s.IsTuple() {
		parts := make([]string, len(s.Tuple))
		for i, e := range s.Tuple {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return s.DType.ShortName() + tensor.Shape(s.Dims).String()
}
