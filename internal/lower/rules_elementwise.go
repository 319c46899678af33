package lower

import (
	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/opbuild"
)

func (r ruleTable) registerElementwiseRules() {
	r.register(lowerBinary, atLeast(2), jit.AtenAdd, jit.AtenSub, jit.AtenMul, jit.AtenDiv)
	r.register(lowerComparison, exactly(2), jit.AtenGt)
	r.register(lowerTypeAs, exactly(2), jit.AtenTypeAs)
	r.register(lowerUnary, exactly(1), jit.AtenSqrt, jit.AtenRsqrt, jit.AtenNeg, jit.AtenTanh)
	r.register(lowerSigmoid, exactly(1), jit.AtenSigmoid)
	r.register(lowerRelu, exactly(1), jit.AtenRelu)
	r.register(lowerHardtanh, atLeast(1), jit.AtenHardtanh)
	r.register(lowerThreshold, exactly(3), jit.AtenThreshold)
	r.register(lowerThresholdBackward, exactly(3), jit.AtenThresholdBackward)
}

// lowerBinary resolves operand 1 from the "other" scalar attribute when it
// is not bound in the graph.
func lowerBinary(tr *translation, node *jit.Node) error {
	lhs, err := tr.ctx.RequireInput(node, 0)
	if err != nil {
		return err
	}
	var rhs *hlo.Op
	if operand := tr.ctx.TryLookup(node, 1); operand.State == Present {
		rhs = operand.Op
	} else {
		other, ok := node.Attr("other")
		if !ok {
			e := nodeError(MissingOperand, node, "operand is %s and no %q attribute is set", operand.State, "other")
			e.Operand = "operand 1"
			return tr.ctx.withGraph(e)
		}
		v, err := other.ToScalar()
		if err != nil {
			return builderError(node, err)
		}
		if rhs, err = opbuild.ScalarValue(tr.b, v, lhs.DType()); err != nil {
			return builderError(node, err)
		}
	}
	out, err := opbuild.BuildArithmeticOp(node, lhs, rhs)
	if err != nil {
		return builderError(node, err)
	}
	return tr.bindOutput(node, out)
}

// lowerUnaryWith lowers a single-operand node through build.
func lowerUnaryWith(build func(node *jit.Node, x *hlo.Op) (*hlo.Op, error)) lowerFunc {
	return func(tr *translation, node *jit.Node) error {
		x, err := tr.ctx.RequireInput(node, 0)
		if err != nil {
			return err
		}
		out, err := build(node, x)
		if err != nil {
			return builderError(node, err)
		}
		return tr.bindOutput(node, out)
	}
}

var (
	lowerComparison = lowerUnaryWith(opbuild.BuildComparisonOp)
	lowerTypeAs     = lowerUnaryWith(opbuild.BuildTypeAs)
	lowerUnary      = lowerUnaryWith(opbuild.BuildUnary)
	lowerHardtanh   = lowerUnaryWith(opbuild.BuildHardtanh)
	lowerSigmoid    = lowerUnaryWith(func(_ *jit.Node, x *hlo.Op) (*hlo.Op, error) { return opbuild.BuildSigmoid(x) })
	lowerRelu       = lowerUnaryWith(func(_ *jit.Node, x *hlo.Op) (*hlo.Op, error) { return opbuild.BuildRelu(x) })
)

func lowerThreshold(tr *translation, node *jit.Node) error {
	x, err := tr.ctx.RequireInput(node, 0)
	if err != nil {
		return err
	}
	threshold, value, err := opbuild.ThresholdArgs(node)
	if err != nil {
		return builderError(node, err)
	}
	out, err := opbuild.BuildThreshold(x, x, threshold, value)
	if err != nil {
		return builderError(node, err)
	}
	return tr.bindOutput(node, out)
}

func lowerThresholdBackward(tr *translation, node *jit.Node) error {
	ops, err := tr.operands(node, 0, 1)
	if err != nil {
		return err
	}
	out, err := opbuild.BuildThresholdBackward(node, ops[0], ops[1])
	if err != nil {
		return builderError(node, err)
	}
	return tr.bindOutput(node, out)
}
