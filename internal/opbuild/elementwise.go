package opbuild

import (
	"fmt"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/tensor"
)

// BuildArithmeticOp lowers aten::add, aten::sub, aten::mul and aten::div.
// Operands are broadcast numpy-style and rhs is converted to lhs's element
// type. For add and sub a non-unit "alpha" argument scales rhs first.
func BuildArithmeticOp(node *jit.Node, lhs, rhs *hlo.Op) (*hlo.Op, error) {
	b := lhs.Builder()
	rhs, err := b.Convert(rhs, lhs.DType())
	if err != nil {
		return nil, err
	}
	kind := node.Kind()
	if kind == jit.AtenAdd || kind == jit.AtenSub {
		alpha, err := argScalar(node, "alpha", 2, 1)
		if err != nil {
			return nil, err
		}
		if alpha != 1 {
			scale, err := b.ScalarConstant(alpha, rhs.DType())
			if err != nil {
				return nil, err
			}
			if rhs, err = b.Mul(rhs, scale); err != nil {
				return nil, err
			}
		}
	}
	lhs, rhs, err = broadcastPair(lhs, rhs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	switch kind {
	case jit.AtenAdd:
		return b.Add(lhs, rhs)
	case jit.AtenSub:
		return b.Sub(lhs, rhs)
	case jit.AtenMul:
		return b.Mul(lhs, rhs)
	case jit.AtenDiv:
		return b.Div(lhs, rhs)
	}
	return nil, fmt.Errorf("invalid binary operator kind: %s", kind)
}

// BuildComparisonOp lowers aten::gt against the scalar "other" argument.
// The result is a uint8 mask, matching PyTorch's byte tensors.
func BuildComparisonOp(node *jit.Node, x *hlo.Op) (*hlo.Op, error) {
	if node.Kind() != jit.AtenGt {
		return nil, fmt.Errorf("invalid comparison operator kind: %s", node.Kind())
	}
	other, err := requireScalar(node, "other", 1)
	if err != nil {
		return nil, err
	}
	b := x.Builder()
	rhs, err := b.ScalarConstant(other, x.DType())
	if err != nil {
		return nil, err
	}
	pred, err := b.Compare(hlo.CompareGT, x, rhs)
	if err != nil {
		return nil, err
	}
	return b.Convert(pred, tensor.Uint8)
}

// BuildTypeAs converts x to the element type recorded on the node's second
// input, falling back to the node's output type.
func BuildTypeAs(node *jit.Node, x *hlo.Op) (*hlo.Op, error) {
	var target *jit.TensorType
	if in := node.Input(1); in != nil && in.Type() != nil {
		target = in.Type()
	} else if out := node.Output(0); out != nil && out.Type() != nil {
		target = out.Type()
	}
	if target == nil {
		return nil, fmt.Errorf("%s: target element type is unknown", node.Kind())
	}
	return x.Builder().Convert(x, target.DType)
}

// BuildUnary lowers the elementwise math operators sqrt, rsqrt, neg and tanh.
func BuildUnary(node *jit.Node, x *hlo.Op) (*hlo.Op, error) {
	b := x.Builder()
	switch node.Kind() {
	case jit.AtenSqrt:
		return b.Sqrt(x)
	case jit.AtenRsqrt:
		return b.Rsqrt(x)
	case jit.AtenNeg:
		return b.Neg(x)
	case jit.AtenTanh:
		return b.Tanh(x)
	}
	return nil, fmt.Errorf("invalid unary operator kind: %s", node.Kind())
}

// BuildSigmoid computes 0.5 + 0.5*tanh(0.5*x).
func BuildSigmoid(x *hlo.Op) (*hlo.Op, error) {
	b := x.Builder()
	half, err := b.ScalarConstant(0.5, x.DType())
	if err != nil {
		return nil, err
	}
	scaled, err := b.Mul(half, x)
	if err != nil {
		return nil, err
	}
	t, err := b.Tanh(scaled)
	if err != nil {
		return nil, err
	}
	ht, err := b.Mul(half, t)
	if err != nil {
		return nil, err
	}
	return b.Add(half, ht)
}

// BuildRelu computes max(x, 0).
func BuildRelu(x *hlo.Op) (*hlo.Op, error) {
	b := x.Builder()
	zero, err := b.ScalarConstant(0, x.DType())
	if err != nil {
		return nil, err
	}
	return b.Max(x, zero)
}

// BuildHardtanh clamps x into [min_val, max_val], defaulting to [-1, 1].
func BuildHardtanh(node *jit.Node, x *hlo.Op) (*hlo.Op, error) {
	lo, err := argScalar(node, "min_val", 1, -1)
	if err != nil {
		return nil, err
	}
	hi, err := argScalar(node, "max_val", 2, 1)
	if err != nil {
		return nil, err
	}
	if lo > hi {
		return nil, fmt.Errorf("%s: min_val %g exceeds max_val %g", node.Kind(), lo, hi)
	}
	b := x.Builder()
	loOp, err := b.ScalarConstant(lo, x.DType())
	if err != nil {
		return nil, err
	}
	hiOp, err := b.ScalarConstant(hi, x.DType())
	if err != nil {
		return nil, err
	}
	clamped, err := b.Max(x, loOp)
	if err != nil {
		return nil, err
	}
	return b.Min(clamped, hiOp)
}

// BuildThreshold selects output where input > threshold and value
// elsewhere. aten::threshold passes the same op as input and output;
// aten::threshold_backward passes the forward input and the incoming grad
// with value 0.
func BuildThreshold(input, output *hlo.Op, threshold, value float64) (*hlo.Op, error) {
	b := input.Builder()
	th, err := b.ScalarConstant(threshold, input.DType())
	if err != nil {
		return nil, err
	}
	pred, err := b.Compare(hlo.CompareGT, input, th)
	if err != nil {
		return nil, err
	}
	fill, err := b.ScalarBroadcast(value, output.Shape())
	if err != nil {
		return nil, err
	}
	return b.Select(pred, output, fill)
}

// ThresholdArgs reads the threshold and replacement value of
// aten::threshold (self, threshold, value).
func ThresholdArgs(node *jit.Node) (threshold, value float64, err error) {
	if threshold, err = requireScalar(node, "threshold", 1); err != nil {
		return 0, 0, err
	}
	if value, err = requireScalar(node, "value", 2); err != nil {
		return 0, 0, err
	}
	return threshold, value, nil
}

// BuildThresholdBackward lowers aten::threshold_backward
// (grad_output, self, threshold).
func BuildThresholdBackward(node *jit.Node, gradOutput, input *hlo.Op) (*hlo.Op, error) {
	threshold, err := requireScalar(node, "threshold", 2)
	if err != nil {
		return nil, err
	}
	return BuildThreshold(input, gradOutput, threshold, 0)
}
