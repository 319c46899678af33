package lower

import (
	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/opbuild"
)

func (r ruleTable) registerLinalgRules() {
	r.register(lowerConvolution, atLeast(3), jit.AtenConvolution, jit.AtenThnnConv2dForward)
	r.register(lowerConv2dBackward, exactly(9), jit.AtenThnnConv2dBackward)
	r.register(lowerUnaryWith(func(_ *jit.Node, x *hlo.Op) (*hlo.Op, error) { return opbuild.BuildTranspose(x) }),
		exactly(1), jit.AtenT)
	r.register(lowerAddmm, atLeast(3), jit.AtenAddmm)
	r.register(lowerMm, exactly(2), jit.AtenMm)
}

// lowerConvolution picks the bias variant when the optional bias operand is
// bound.
func lowerConvolution(tr *translation, node *jit.Node) error {
	ops, err := tr.operands(node, 0, 1)
	if err != nil {
		return err
	}
	var out *hlo.Op
	if bias := tr.ctx.TryLookup(node, opbuild.ConvBiasIndex(node.Kind())); bias.State == Present {
		out, err = opbuild.BuildConvolutionBias(node, ops[0], ops[1], bias.Op, tr.cfg.Precision)
	} else {
		out, err = opbuild.BuildConvolution(node, ops[0], ops[1], tr.cfg.Precision)
	}
	if err != nil {
		return builderError(node, err)
	}
	return tr.bindOutput(node, out)
}

func lowerConv2dBackward(tr *translation, node *jit.Node) error {
	ops, err := tr.operands(node, 0, 1, 2)
	if err != nil {
		return err
	}
	grads, err := opbuild.BuildConv2dBackward(node, ops[0], ops[1], ops[2], tr.cfg.Precision)
	if err != nil {
		return builderError(node, err)
	}
	return tr.bindOutputs(node, grads.GradInput, grads.GradWeight, grads.GradBias)
}

func lowerAddmm(tr *translation, node *jit.Node) error {
	ops, err := tr.operands(node, 0, 1, 2)
	if err != nil {
		return err
	}
	out, err := opbuild.BuildAddmm(node, ops[0], ops[1], ops[2], tr.cfg.Precision)
	if err != nil {
		return builderError(node, err)
	}
	return tr.bindOutput(node, out)
}

func lowerMm(tr *translation, node *jit.Node) error {
	ops, err := tr.operands(node, 0, 1)
	if err != nil {
		return err
	}
	out, err := opbuild.BuildMatMul(ops[0], ops[1], tr.cfg.Precision)
	if err != nil {
		return builderError(node, err)
	}
	return tr.bindOutput(node, out)
}
