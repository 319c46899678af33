package hlo

import (
	"fmt"
	"math"
	"slices"

	"github.com/born-ml/lower/internal/tensor"
)

// Builder accumulates ops for a single computation. A Builder is not safe
// for concurrent use; each translation owns its own.
type Builder struct {
	name   string
	ops    []*Op
	params map[int]*Op
	built  bool
}

// NewBuilder creates an empty builder for a computation called name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:   name,
		params: make(map[int]*Op),
	}
}

// Name returns the computation name.
func (b *Builder) Name() string {
	return b.name
}

// NumOps returns the number of ops added so far.
func (b *Builder) NumOps() int {
	return len(b.ops)
}

// NumParameters returns the number of parameters declared so far.
func (b *Builder) NumParameters() int {
	return len(b.params)
}

func (b *Builder) add(code OpCode, shape Shape, attrs Attrs, operands ...*Op) (*Op, error) {
	if b.built {
		return nil, fmt.Errorf("builder %q: already built", b.name)
	}
	for i, o := range operands {
		if o == nil {
			return nil, fmt.Errorf("%s: operand %d is nil", code, i)
		}
		if o.builder != b {
			return nil, fmt.Errorf("%s: operand %d (%s) belongs to builder %q, not %q", code, i, o.Name(), o.builder.name, b.name)
		}
	}
	op := &Op{
		id:       len(b.ops),
		code:     code,
		operands: operands,
		shape:    shape,
		attrs:    attrs,
		builder:  b,
	}
	b.ops = append(b.ops, op)
	return op, nil
}

// Parameter declares input number n with the given shape.
func (b *Builder) Parameter(n int, shape Shape, name string) (*Op, error) {
	if n < 0 {
		return nil, fmt.Errorf("parameter number must be >= 0, got %d", n)
	}
	if prev, ok := b.params[n]; ok {
		return nil, fmt.Errorf("parameter %d already declared as %q", n, prev.attrs.Name)
	}
	op, err := b.add(OpParameter, shape.Clone(), Attrs{ParameterNumber: n, Name: name})
	if err != nil {
		return nil, err
	}
	b.params[n] = op
	return op, nil
}

// Constant embeds a literal.
func (b *Builder) Constant(lit *tensor.RawTensor) (*Op, error) {
	if lit == nil {
		return nil, fmt.Errorf("constant: nil literal")
	}
	return b.add(OpConstant, MakeShape(lit.DType(), lit.Shape()...), Attrs{Literal: lit.Clone()})
}

// ScalarConstant embeds a rank-0 literal of the given element type.
func (b *Builder) ScalarConstant(v float64, dtype tensor.DataType) (*Op, error) {
	lit, err := tensor.FromFloat64s([]float64{v}, tensor.Shape{}, dtype)
	if err != nil {
		return nil, fmt.Errorf("constant: %w", err)
	}
	return b.Constant(lit)
}

// ScalarBroadcast creates an array of shape filled with v.
func (b *Builder) ScalarBroadcast(v float64, shape Shape) (*Op, error) {
	scalar, err := b.ScalarConstant(v, shape.DType)
	if err != nil {
		return nil, err
	}
	if shape.IsScalar() {
		return scalar, nil
	}
	return b.BroadcastInDim(scalar, shape.Dims, nil)
}

// Iota creates an array whose values count up along axis.
func (b *Builder) Iota(shape Shape, axis int) (*Op, error) {
	if axis < 0 || axis >= shape.Rank() {
		return nil, fmt.Errorf("iota: axis %d out of range for %s", axis, shape)
	}
	return b.add(OpIota, shape.Clone(), Attrs{Axis: axis})
}

// BroadcastInDim broadcasts x into an array with dims. broadcastDims maps
// each dimension of x to an output dimension and must be increasing; each
// mapped input dimension must be 1 or equal the output dimension.
func (b *Builder) BroadcastInDim(x *Op, dims, broadcastDims []int) (*Op, error) {
	if x == nil {
		return nil, fmt.Errorf("broadcast: nil operand")
	}
	if len(broadcastDims) != x.shape.Rank() {
		return nil, fmt.Errorf("broadcast: %d broadcast dimensions for operand %s", len(broadcastDims), x.shape)
	}
	for i, d := range broadcastDims {
		if d < 0 || d >= len(dims) || (i > 0 && d <= broadcastDims[i-1]) {
			return nil, fmt.Errorf("broadcast: invalid broadcast dimensions %v for output %v", broadcastDims, dims)
		}
		if in := x.shape.Dims[i]; in != 1 && in != dims[d] {
			return nil, fmt.Errorf("broadcast: operand dim %d (%d) incompatible with output dim %d (%d)", i, in, d, dims[d])
		}
	}
	return b.add(OpBroadcastInDim, MakeShape(x.shape.DType, dims...), Attrs{Dimensions: slices.Clone(broadcastDims)}, x)
}

// BroadcastTo broadcasts x numpy-style to dims, aligning trailing dimensions.
func (b *Builder) BroadcastTo(x *Op, dims []int) (*Op, error) {
	if x == nil {
		return nil, fmt.Errorf("broadcast: nil operand")
	}
	if slices.Equal(x.shape.Dims, dims) {
		return x, nil
	}
	offset := len(dims) - x.shape.Rank()
	if offset < 0 {
		return nil, fmt.Errorf("broadcast: cannot broadcast %s to %v", x.shape, dims)
	}
	bdims := make([]int, x.shape.Rank())
	for i := range bdims {
		bdims[i] = offset + i
	}
	return b.BroadcastInDim(x, dims, bdims)
}

// Reshape changes the dimensions of x without changing its element count.
func (b *Builder) Reshape(x *Op, dims ...int) (*Op, error) {
	if x == nil {
		return nil, fmt.Errorf("reshape: nil operand")
	}
	if tensor.Shape(dims).NumElements() != x.shape.Size() {
		return nil, fmt.Errorf("reshape: cannot reshape %s into %v", x.shape, dims)
	}
	return b.add(OpReshape, MakeShape(x.shape.DType, dims...), Attrs{}, x)
}

// Transpose permutes the dimensions of x.
func (b *Builder) Transpose(x *Op, perm ...int) (*Op, error) {
	if x == nil {
		return nil, fmt.Errorf("transpose: nil operand")
	}
	if len(perm) != x.shape.Rank() {
		return nil, fmt.Errorf("transpose: permutation %v for operand %s", perm, x.shape)
	}
	seen := make([]bool, len(perm))
	dims := make([]int, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return nil, fmt.Errorf("transpose: invalid permutation %v", perm)
		}
		seen[p] = true
		dims[i] = x.shape.Dims[p]
	}
	return b.add(OpTranspose, MakeShape(x.shape.DType, dims...), Attrs{Dimensions: slices.Clone(perm)}, x)
}

// Slice extracts the strided sub-array [starts, limits) of x.
func (b *Builder) Slice(x *Op, starts, limits, strides []int) (*Op, error) {
	if x == nil {
		return nil, fmt.Errorf("slice: nil operand")
	}
	rank := x.shape.Rank()
	if len(starts) != rank || len(limits) != rank || len(strides) != rank {
		return nil, fmt.Errorf("slice: bounds rank mismatch for operand %s", x.shape)
	}
	dims := make([]int, rank)
	for i := range dims {
		if starts[i] < 0 || limits[i] > x.shape.Dims[i] || starts[i] > limits[i] || strides[i] <= 0 {
			return nil, fmt.Errorf("slice: invalid bounds [%d:%d:%d] for dimension %d of %s", starts[i], limits[i], strides[i], i, x.shape)
		}
		dims[i] = (limits[i] - starts[i] + strides[i] - 1) / strides[i]
	}
	return b.add(OpSlice, MakeShape(x.shape.DType, dims...), Attrs{
		Starts:  slices.Clone(starts),
		Limits:  slices.Clone(limits),
		Strides: slices.Clone(strides),
	}, x)
}

// SliceInDim slices a single dimension of x, keeping the others whole.
func (b *Builder) SliceInDim(x *Op, start, limit, stride, dim int) (*Op, error) {
	if x == nil {
		return nil, fmt.Errorf("slice: nil operand")
	}
	rank := x.shape.Rank()
	starts := make([]int, rank)
	limits := slices.Clone(x.shape.Dims)
	strides := make([]int, rank)
	for i := range strides {
		strides[i] = 1
	}
	if dim < 0 || dim >= rank {
		return nil, fmt.Errorf("slice: dimension %d out of range for %s", dim, x.shape)
	}
	starts[dim], limits[dim], strides[dim] = start, limit, stride
	return b.Slice(x, starts, limits, strides)
}

// Concatenate joins ops along axis. All other dimensions must match.
func (b *Builder) Concatenate(axis int, ops ...*Op) (*Op, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("concatenate requires at least 1 operand")
	}
	first := ops[0].shape
	if axis < 0 || axis >= first.Rank() {
		return nil, fmt.Errorf("concatenate: axis %d out of range for %s", axis, first)
	}
	dims := slices.Clone(first.Dims)
	for _, o := range ops[1:] {
		s := o.shape
		if s.DType != first.DType || s.Rank() != first.Rank() {
			return nil, fmt.Errorf("concatenate: operand %s incompatible with %s", s, first)
		}
		for i := range dims {
			if i != axis && s.Dims[i] != first.Dims[i] {
				return nil, fmt.Errorf("concatenate: operand %s incompatible with %s", s, first)
			}
		}
		dims[axis] += s.Dims[axis]
	}
	return b.add(OpConcatenate, MakeShape(first.DType, dims...), Attrs{Axis: axis}, ops...)
}

// Pad pads x with padValue (a scalar) at both edges and between elements.
func (b *Builder) Pad(x, padValue *Op, low, high, interior []int) (*Op, error) {
	if x == nil || padValue == nil {
		return nil, fmt.Errorf("pad: nil operand")
	}
	rank := x.shape.Rank()
	if len(low) != rank || len(high) != rank || len(interior) != rank {
		return nil, fmt.Errorf("pad: padding rank mismatch for operand %s", x.shape)
	}
	if !padValue.shape.IsScalar() || padValue.shape.DType != x.shape.DType {
		return nil, fmt.Errorf("pad: padding value must be a %s scalar, got %s", x.shape.DType.ShortName(), padValue.shape)
	}
	dims := make([]int, rank)
	for i, d := range x.shape.Dims {
		if interior[i] < 0 {
			return nil, fmt.Errorf("pad: negative interior padding %d", interior[i])
		}
		dims[i] = low[i] + high[i] + d + max(d-1, 0)*interior[i]
		if dims[i] < 0 {
			return nil, fmt.Errorf("pad: negative result dimension %d", i)
		}
	}
	return b.add(OpPad, MakeShape(x.shape.DType, dims...), Attrs{
		PadLow:      slices.Clone(low),
		PadHigh:     slices.Clone(high),
		PadInterior: slices.Clone(interior),
	}, x, padValue)
}

// Reverse flips x along dims.
func (b *Builder) Reverse(x *Op, dims ...int) (*Op, error) {
	if x == nil {
		return nil, fmt.Errorf("reverse: nil operand")
	}
	for _, d := range dims {
		if d < 0 || d >= x.shape.Rank() {
			return nil, fmt.Errorf("reverse: dimension %d out of range for %s", d, x.shape)
		}
	}
	return b.add(OpReverse, x.shape.Clone(), Attrs{Dimensions: slices.Clone(dims)}, x)
}

// Convert changes the element type of x.
func (b *Builder) Convert(x *Op, dtype tensor.DataType) (*Op, error) {
	if x == nil {
		return nil, fmt.Errorf("convert: nil operand")
	}
	if x.shape.DType == dtype {
		return x, nil
	}
	return b.add(OpConvert, x.shape.WithDType(dtype), Attrs{}, x)
}

// binaryShape infers the result of an elementwise binary op. Rank-0
// operands broadcast implicitly; otherwise dims must match exactly.
func binaryShape(code OpCode, lhs, rhs *Op) (Shape, error) {
	if lhs == nil || rhs == nil {
		return Shape{}, fmt.Errorf("%s: nil operand", code)
	}
	l, r := lhs.shape, rhs.shape
	if l.IsTuple() || r.IsTuple() {
		return Shape{}, fmt.Errorf("%s: tuple operand", code)
	}
	if l.DType != r.DType {
		return Shape{}, fmt.Errorf("%s: element type mismatch %s vs %s", code, l, r)
	}
	switch {
	case slices.Equal(l.Dims, r.Dims):
		return l.Clone(), nil
	case r.IsScalar():
		return l.Clone(), nil
	case l.IsScalar():
		return r.Clone(), nil
	}
	return Shape{}, fmt.Errorf("%s: shape mismatch %s vs %s", code, l, r)
}

// Binary applies an elementwise binary op.
func (b *Builder) Binary(code OpCode, lhs, rhs *Op) (*Op, error) {
	if !code.IsElementwiseBinary() {
		return nil, fmt.Errorf("%s is not an elementwise binary op", code)
	}
	shape, err := binaryShape(code, lhs, rhs)
	if err != nil {
		return nil, err
	}
	return b.add(code, shape, Attrs{}, lhs, rhs)
}

// Add returns lhs + rhs.
func (b *Builder) Add(lhs, rhs *Op) (*Op, error) { return b.Binary(OpAdd, lhs, rhs) }

// Sub returns lhs - rhs.
func (b *Builder) Sub(lhs, rhs *Op) (*Op, error) { return b.Binary(OpSubtract, lhs, rhs) }

// Mul returns lhs * rhs.
func (b *Builder) Mul(lhs, rhs *Op) (*Op, error) { return b.Binary(OpMultiply, lhs, rhs) }

// Div returns lhs / rhs.
func (b *Builder) Div(lhs, rhs *Op) (*Op, error) { return b.Binary(OpDivide, lhs, rhs) }

// Max returns the elementwise maximum.
func (b *Builder) Max(lhs, rhs *Op) (*Op, error) { return b.Binary(OpMaximum, lhs, rhs) }

// Min returns the elementwise minimum.
func (b *Builder) Min(lhs, rhs *Op) (*Op, error) { return b.Binary(OpMinimum, lhs, rhs) }

// Unary applies an elementwise unary op.
func (b *Builder) Unary(code OpCode, x *Op) (*Op, error) {
	if !code.IsElementwiseUnary() {
		return nil, fmt.Errorf("%s is not an elementwise unary op", code)
	}
	if x == nil {
		return nil, fmt.Errorf("%s: nil operand", code)
	}
	if x.shape.IsTuple() {
		return nil, fmt.Errorf("%s: tuple operand", code)
	}
	return b.add(code, x.shape.Clone(), Attrs{}, x)
}

// Neg returns -x.
func (b *Builder) Neg(x *Op) (*Op, error) { return b.Unary(OpNegate, x) }

// Sqrt returns the square root of x.
func (b *Builder) Sqrt(x *Op) (*Op, error) { return b.Unary(OpSqrt, x) }

// Rsqrt returns 1/sqrt(x).
func (b *Builder) Rsqrt(x *Op) (*Op, error) { return b.Unary(OpRsqrt, x) }

// Tanh returns the hyperbolic tangent of x.
func (b *Builder) Tanh(x *Op) (*Op, error) { return b.Unary(OpTanh, x) }

// Exp returns e**x.
func (b *Builder) Exp(x *Op) (*Op, error) { return b.Unary(OpExp, x) }

// Log returns the natural logarithm of x.
func (b *Builder) Log(x *Op) (*Op, error) { return b.Unary(OpLog, x) }

// Compare compares lhs and rhs elementwise, producing a pred array.
func (b *Builder) Compare(dir ComparisonDirection, lhs, rhs *Op) (*Op, error) {
	shape, err := binaryShape(OpCompare, lhs, rhs)
	if err != nil {
		return nil, err
	}
	return b.add(OpCompare, shape.WithDType(tensor.Bool), Attrs{Comparison: dir}, lhs, rhs)
}

// Select picks onTrue where pred is set and onFalse elsewhere.
func (b *Builder) Select(pred, onTrue, onFalse *Op) (*Op, error) {
	if pred == nil || onTrue == nil || onFalse == nil {
		return nil, fmt.Errorf("select: nil operand")
	}
	if pred.shape.DType != tensor.Bool {
		return nil, fmt.Errorf("select: predicate must be pred, got %s", pred.shape)
	}
	shape, err := binaryShape(OpSelect, onTrue, onFalse)
	if err != nil {
		return nil, err
	}
	if !pred.shape.IsScalar() && !slices.Equal(pred.shape.Dims, shape.Dims) {
		return nil, fmt.Errorf("select: predicate %s does not match %s", pred.shape, shape)
	}
	return b.add(OpSelect, shape, Attrs{}, pred, onTrue, onFalse)
}

// Dot computes a vector/matrix product of rank-1 or rank-2 operands.
func (b *Builder) Dot(lhs, rhs *Op, precision Precision) (*Op, error) {
	if lhs == nil || rhs == nil {
		return nil, fmt.Errorf("dot: nil operand")
	}
	l, r := lhs.shape, rhs.shape
	if l.DType != r.DType {
		return nil, fmt.Errorf("dot: element type mismatch %s vs %s", l, r)
	}
	if l.Rank() < 1 || l.Rank() > 2 || r.Rank() < 1 || r.Rank() > 2 {
		return nil, fmt.Errorf("dot: unsupported ranks %s x %s", l, r)
	}
	if l.Dim(-1) != r.Dims[0] {
		return nil, fmt.Errorf("dot: contracting dimensions mismatch %s x %s", l, r)
	}
	var dims []int
	if l.Rank() == 2 {
		dims = append(dims, l.Dims[0])
	}
	if r.Rank() == 2 {
		dims = append(dims, r.Dims[1])
	}
	return b.add(OpDot, MakeShape(l.DType, dims...), Attrs{Precision: precision}, lhs, rhs)
}

// Reduce combines x over dims, removing them from the result.
func (b *Builder) Reduce(x *Op, kind ReduceKind, dims ...int) (*Op, error) {
	if x == nil {
		return nil, fmt.Errorf("reduce: nil operand")
	}
	seen := make(map[int]bool, len(dims))
	for _, d := range dims {
		if d < 0 || d >= x.shape.Rank() || seen[d] {
			return nil, fmt.Errorf("reduce: invalid dimensions %v for %s", dims, x.shape)
		}
		seen[d] = true
	}
	var out []int
	for i, d := range x.shape.Dims {
		if !seen[i] {
			out = append(out, d)
		}
	}
	sorted := slices.Clone(dims)
	slices.Sort(sorted)
	return b.add(OpReduce, MakeShape(x.shape.DType, out...), Attrs{Dimensions: sorted, Reduce: kind}, x)
}

// ReduceInit returns the identity element of kind for dtype.
func ReduceInit(kind ReduceKind, dtype tensor.DataType) float64 {
	if kind == ReduceMax {
		if dtype.IsFloat() {
			return math.Inf(-1)
		}
		return math.MinInt64
	}
	return 0
}

func windowOutput(in []int, w *Window) ([]int, error) {
	rank := len(in)
	if len(w.Dimensions) != rank || len(w.Strides) != rank || len(w.PadLow) != rank || len(w.PadHigh) != rank {
		return nil, fmt.Errorf("window rank mismatch for operand dims %v", in)
	}
	out := make([]int, rank)
	for i := range out {
		padded := in[i] + w.PadLow[i] + w.PadHigh[i]
		if w.Strides[i] <= 0 || w.Dimensions[i] <= 0 || padded < w.Dimensions[i] {
			return nil, fmt.Errorf("invalid window %v stride %v for operand dims %v", w.Dimensions, w.Strides, in)
		}
		out[i] = (padded-w.Dimensions[i])/w.Strides[i] + 1
	}
	return out, nil
}

// ReduceWindow combines x over sliding windows.
func (b *Builder) ReduceWindow(x *Op, kind ReduceKind, w Window) (*Op, error) {
	if x == nil {
		return nil, fmt.Errorf("reduce-window: nil operand")
	}
	dims, err := windowOutput(x.shape.Dims, &w)
	if err != nil {
		return nil, fmt.Errorf("reduce-window: %w", err)
	}
	return b.add(OpReduceWindow, MakeShape(x.shape.DType, dims...), Attrs{Window: &w, Reduce: kind}, x)
}

// SelectAndScatter scatters source back to the argmax position of each
// window of operand, summing overlapping contributions.
func (b *Builder) SelectAndScatter(operand, source *Op, w Window) (*Op, error) {
	if operand == nil || source == nil {
		return nil, fmt.Errorf("select-and-scatter: nil operand")
	}
	dims, err := windowOutput(operand.shape.Dims, &w)
	if err != nil {
		return nil, fmt.Errorf("select-and-scatter: %w", err)
	}
	if !slices.Equal(dims, source.shape.Dims) {
		return nil, fmt.Errorf("select-and-scatter: source %s does not match window output %v", source.shape, dims)
	}
	return b.add(OpSelectAndScatter, operand.shape.Clone(), Attrs{Window: &w}, operand, source)
}

// Convolution convolves lhs with the kernel rhs.
func (b *Builder) Convolution(lhs, rhs *Op, cfg ConvConfig, precision Precision) (*Op, error) {
	if lhs == nil || rhs == nil {
		return nil, fmt.Errorf("convolution: nil operand")
	}
	l, r := lhs.shape, rhs.shape
	n := len(cfg.InputSpatial)
	if l.Rank() != n+2 || r.Rank() != n+2 || len(cfg.KernelSpatial) != n || len(cfg.OutputSpatial) != n ||
		len(cfg.Strides) != n || len(cfg.PadLow) != n || len(cfg.PadHigh) != n ||
		len(cfg.LhsDilation) != n || len(cfg.RhsDilation) != n {
		return nil, fmt.Errorf("convolution: config does not match operands %s, %s", l, r)
	}
	if l.DType != r.DType {
		return nil, fmt.Errorf("convolution: element type mismatch %s vs %s", l, r)
	}
	if l.Dims[cfg.InputFeature] != r.Dims[cfg.KernelInput] {
		return nil, fmt.Errorf("convolution: input features %d do not match kernel input features %d",
			l.Dims[cfg.InputFeature], r.Dims[cfg.KernelInput])
	}
	out := make([]int, n+2)
	out[cfg.OutputBatch] = l.Dims[cfg.InputBatch]
	out[cfg.OutputFeature] = r.Dims[cfg.KernelOutput]
	for i := 0; i < n; i++ {
		in := (l.Dims[cfg.InputSpatial[i]]-1)*cfg.LhsDilation[i] + 1
		k := (r.Dims[cfg.KernelSpatial[i]]-1)*cfg.RhsDilation[i] + 1
		padded := in + cfg.PadLow[i] + cfg.PadHigh[i]
		if cfg.Strides[i] <= 0 || padded < k {
			return nil, fmt.Errorf("convolution: window %d does not fit spatial dimension %d", k, i)
		}
		out[cfg.OutputSpatial[i]] = (padded-k)/cfg.Strides[i] + 1
	}
	return b.add(OpConvolution, MakeShape(l.DType, out...), Attrs{Conv: &cfg, Precision: precision}, lhs, rhs)
}

// Tuple groups ops into one tuple-valued op.
func (b *Builder) Tuple(ops ...*Op) (*Op, error) {
	shapes := make([]Shape, len(ops))
	for i, o := range ops {
		if o == nil {
			return nil, fmt.Errorf("tuple: element %d is nil", i)
		}
		shapes[i] = o.shape
	}
	return b.add(OpTuple, TupleShape(shapes...), Attrs{}, ops...)
}

// GetTupleElement extracts element index of a tuple-valued op.
func (b *Builder) GetTupleElement(t *Op, index int) (*Op, error) {
	if t == nil {
		return nil, fmt.Errorf("get-tuple-element: nil operand")
	}
	if !t.shape.IsTuple() || index < 0 || index >= len(t.shape.Tuple) {
		return nil, fmt.Errorf("get-tuple-element: index %d invalid for %s", index, t.shape)
	}
	return b.add(OpGetTupleElement, t.shape.Tuple[index].Clone(), Attrs{Index: index}, t)
}

// Build finalizes the computation using the last added op as its root.
func (b *Builder) Build() (*Computation, error) {
	if len(b.ops) == 0 {
		return nil, fmt.Errorf("builder %q: no ops to build", b.name)
	}
	return b.BuildWithRoot(b.ops[len(b.ops)-1])
}

// BuildWithRoot finalizes the computation with root as its result. The
// builder cannot be used afterwards.
func (b *Builder) BuildWithRoot(root *Op) (*Computation, error) {
	if b.built {
		return nil, fmt.Errorf("builder %q: already built", b.name)
	}
	if root == nil || root.builder != b {
		return nil, fmt.Errorf("builder %q: root does not belong to this builder", b.name)
	}
	params := make([]*Op, len(b.params))
	for n, p := range b.params {
		if n >= len(params) {
			return nil, fmt.Errorf("builder %q: parameter numbers are not contiguous (found %d with %d parameters)", b.name, n, len(params))
		}
		params[n] = p
	}
	b.built = true
	return &Computation{
		name:   b.name,
		params: params,
		root:   root,
		ops:    postOrder(root, params),
	}, nil
}
