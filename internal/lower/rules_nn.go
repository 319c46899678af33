package lower

import (
	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/opbuild"
)

func (r ruleTable) registerPoolingRules() {
	r.register(lowerMaxPool2d, atLeast(1), jit.AtenMaxPool2dWithIndices)
	r.register(lowerBinaryWith(opbuild.BuildMaxPool2dBackward, 0, 1), exactly(8), jit.AtenMaxPool2dWithIndicesBackward)
	r.register(lowerUnaryWith(opbuild.BuildAvgPool2d), atLeast(1), jit.AtenAvgPool2d)
	r.register(lowerBinaryWith(opbuild.BuildAvgPool2dBackward, 0, 1), atLeast(2), jit.AtenAvgPool2dBackward)
	r.register(lowerUnaryWith(opbuild.BuildAdaptiveAvgPool2d), exactly(2), jit.AtenAdaptiveAvgPool2d)
	r.register(lowerBinaryWith(opbuild.BuildAdaptiveAvgPool2dBackward, 0, 1), exactly(2), jit.AtenAdaptiveAvgPool2dBackward)
}

func (r ruleTable) registerNormalizationRules() {
	r.register(lowerBatchNorm, exactly(8), jit.AtenBatchNorm, jit.AtenNativeBatchNorm)
	r.register(lowerBatchNormBackward, exactly(10), jit.AtenNativeBatchNormBackward)
	r.register(lowerUnaryWith(opbuild.BuildLogSoftmax), exactly(2), jit.AtenLogSoftmax)
	r.register(lowerBinaryWith(opbuild.BuildLogSoftmaxGrad, 0, 1), exactly(4), jit.AtenLogSoftmaxBackwardData)
	r.register(lowerBinaryWith(opbuild.BuildNllLoss, 0, 1), exactly(5), jit.AtenNllLoss)
	r.register(lowerBinaryWith(opbuild.BuildNllLossBackward, 1, 2), exactly(7), jit.AtenNllLossBackward)
}

// lowerBinaryWith lowers a node from the two operands at i and j.
func lowerBinaryWith(build func(node *jit.Node, a, b *hlo.Op) (*hlo.Op, error), i, j int) lowerFunc {
	return func(tr *translation, node *jit.Node) error {
		ops, err := tr.operands(node, i, j)
		if err != nil {
			return err
		}
		out, err := build(node, ops[0], ops[1])
		if err != nil {
			return builderError(node, err)
		}
		return tr.bindOutput(node, out)
	}
}

// lowerMaxPool2d binds only the pooled values; the indices output stays
// unbound.
func lowerMaxPool2d(tr *translation, node *jit.Node) error {
	x, err := tr.ctx.RequireInput(node, 0)
	if err != nil {
		return err
	}
	if len(node.Outputs()) < 1 {
		e := nodeError(ShapeArityMismatch, node, "outputs")
		e.Expected, e.Actual, e.AtLeast = 1, 0, true
		return tr.ctx.withGraph(e)
	}
	out, err := opbuild.BuildMaxPool2d(node, x)
	if err != nil {
		return builderError(node, err)
	}
	return tr.ctx.Bind(node.Output(0), out)
}

// lowerBatchNorm binds the normalized output, plus the saved mean and
// inverse standard deviation for native_batch_norm.
func lowerBatchNorm(tr *translation, node *jit.Node) error {
	x, err := tr.ctx.RequireInput(node, 0)
	if err != nil {
		return err
	}
	weight, err := tr.optional(node, 1)
	if err != nil {
		return err
	}
	bias, err := tr.optional(node, 2)
	if err != nil {
		return err
	}
	out, err := opbuild.BuildBatchNorm(node, x, weight, bias)
	if err != nil {
		return builderError(node, err)
	}
	if node.Kind() == jit.AtenBatchNorm {
		return tr.bindOutput(node, out.Output)
	}
	return tr.bindOutputs(node, out.Output, out.SaveMean, out.SaveInvStd)
}

func lowerBatchNormBackward(tr *translation, node *jit.Node) error {
	// grad_output, input, save_mean, save_invstd
	ops, err := tr.operands(node, 0, 1, 5, 6)
	if err != nil {
		return err
	}
	weight, err := tr.optional(node, 2)
	if err != nil {
		return err
	}
	grads, err := opbuild.BuildBatchNormBackward(node, ops[0], ops[1], weight, ops[2], ops[3])
	if err != nil {
		return builderError(node, err)
	}
	return tr.bindOutputs(node, grads.GradInput, grads.GradWeight, grads.GradBias)
}
