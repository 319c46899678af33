// Package cpu evaluates finalized backend computations on the host.
//
// Every element is computed in float64 and rounded back to the op's element
// type after each step, so float32 results match a float32 device closely
// and integer results stay integral.
package cpu

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/tensor"
)

// CPUBackend executes computations op by op on the host.
type CPUBackend struct {
	logger *slog.Logger
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		logger: slog.Default(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// WithLogger returns a copy of the backend that logs through l.
func (cpu *CPUBackend) WithLogger(l *slog.Logger) *CPUBackend {
	return &CPUBackend{logger: l}
}

// array is the evaluated value of one op. Array values keep their elements
// in data; tuple values keep their elements in elems.
type array struct {
	shape hlo.Shape
	data  []float64
	elems []*array
}

func newArray(shape hlo.Shape) *array {
	return &array{shape: shape, data: make([]float64, shape.Size())}
}

func (a *array) dims() tensor.Shape {
	return tensor.Shape(a.shape.Dims)
}

// Execute runs comp with args bound to its parameters in order. A tuple
// root is flattened into one result per array element.
func (cpu *CPUBackend) Execute(ctx context.Context, comp *hlo.Computation, args ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	params := comp.Parameters()
	if len(args) != len(params) {
		return nil, fmt.Errorf("execute %s: expected %d arguments, got %d", comp.Name(), len(params), len(args))
	}

	values := make(map[*hlo.Op]*array, len(comp.Ops()))
	for i, p := range params {
		arg := args[i]
		want := p.Shape()
		if arg == nil {
			return nil, fmt.Errorf("execute %s: argument %d is nil", comp.Name(), i)
		}
		if arg.DType() != want.DType || !arg.Shape().Equal(tensor.Shape(want.Dims)) {
			return nil, fmt.Errorf("execute %s: argument %d has shape %s%s, parameter %q expects %s",
				comp.Name(), i, arg.DType().ShortName(), arg.Shape(), p.Attrs().Name, want)
		}
		values[p] = &array{shape: want, data: arg.Float64s()}
	}

	for _, op := range comp.Ops() {
		if op.Code() == hlo.OpParameter {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		operands := make([]*array, len(op.Operands()))
		for i, o := range op.Operands() {
			operands[i] = values[o]
		}
		v, err := evalOp(op, operands)
		if err != nil {
			return nil, fmt.Errorf("execute %s: %s: %w", comp.Name(), op.Name(), err)
		}
		values[op] = v
	}

	root := values[comp.Root()]
	var flat []*array
	flatten(root, &flat)
	results := make([]*tensor.RawTensor, len(flat))
	for i, a := range flat {
		raw, err := tensor.FromFloat64s(a.data, a.dims().Clone(), a.shape.DType)
		if err != nil {
			return nil, fmt.Errorf("execute %s: result %d: %w", comp.Name(), i, err)
		}
		results[i] = raw
	}
	cpu.logger.Debug("executed computation", "name", comp.Name(), "ops", len(comp.Ops()), "results", len(results))
	return results, nil
}

func flatten(a *array, out *[]*array) {
	if !a.shape.IsTuple() {
		*out = append(*out, a)
		return
	}
	for _, e := range a.elems {
		flatten(e, out)
	}
}

func evalOp(op *hlo.Op, in []*array) (*array, error) {
	attrs := op.Attrs()
	shape := op.Shape()
	switch code := op.Code(); {
	case code == hlo.OpConstant:
		return &array{shape: shape, data: attrs.Literal.Float64s()}, nil
	case code == hlo.OpIota:
		return iotaArray(shape, attrs.Axis), nil
	case code == hlo.OpBroadcastInDim:
		return broadcastInDim(in[0], shape, attrs.Dimensions), nil
	case code == hlo.OpReshape:
		out := newArray(shape)
		copy(out.data, in[0].data)
		return out, nil
	case code == hlo.OpTranspose:
		return transpose(in[0], shape, attrs.Dimensions), nil
	case code == hlo.OpSlice:
		return slice(in[0], shape, attrs.Starts, attrs.Strides), nil
	case code == hlo.OpConcatenate:
		return concatenate(in, shape, attrs.Axis), nil
	case code == hlo.OpPad:
		return pad(in[0], in[1], shape, attrs.PadLow, attrs.PadInterior), nil
	case code == hlo.OpReverse:
		return reverse(in[0], attrs.Dimensions), nil
	case code == hlo.OpConvert:
		out := newArray(shape)
		copy(out.data, in[0].data)
		roundTo(out.data, shape.DType)
		return out, nil
	case code.IsElementwiseBinary():
		return binary(code, in[0], in[1], shape)
	case code.IsElementwiseUnary():
		return unary(code, in[0])
	case code == hlo.OpCompare:
		return compare(attrs.Comparison, in[0], in[1], shape), nil
	case code == hlo.OpSelect:
		return selectOp(in[0], in[1], in[2], shape), nil
	case code == hlo.OpDot:
		return dot(in[0], in[1], shape), nil
	case code == hlo.OpReduce:
		return reduce(in[0], shape, attrs.Reduce, attrs.Dimensions), nil
	case code == hlo.OpReduceWindow:
		return reduceWindow(in[0], shape, attrs.Reduce, attrs.Window), nil
	case code == hlo.OpSelectAndScatter:
		return selectAndScatter(in[0], in[1], attrs.Window), nil
	case code == hlo.OpConvolution:
		return convolution(in[0], in[1], shape, attrs.Conv), nil
	case code == hlo.OpTuple:
		return &array{shape: shape, elems: in}, nil
	case code == hlo.OpGetTupleElement:
		return in[0].elems[attrs.Index], nil
	default:
		return nil, fmt.Errorf("unsupported opcode %s", code)
	}
}
