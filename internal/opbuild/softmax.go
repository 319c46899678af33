package opbuild

import (
	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
)

// BuildLogSoftmax lowers aten::log_softmax(self, dim) with the usual
// max-shift for numerical stability.
func BuildLogSoftmax(node *jit.Node, logits *hlo.Op) (*hlo.Op, error) {
	dim, err := softmaxDim(node, logits, 1)
	if err != nil {
		return nil, err
	}
	b := logits.Builder()
	maxB, err := reduceKeep(logits, hlo.ReduceMax, dim)
	if err != nil {
		return nil, err
	}
	shifted, err := b.Sub(logits, maxB)
	if err != nil {
		return nil, err
	}
	exp, err := b.Exp(shifted)
	if err != nil {
		return nil, err
	}
	sumB, err := reduceKeep(exp, hlo.ReduceSum, dim)
	if err != nil {
		return nil, err
	}
	lse, err := b.Log(sumB)
	if err != nil {
		return nil, err
	}
	return b.Sub(shifted, lse)
}

// BuildLogSoftmaxGrad lowers aten::_log_softmax_backward_data(grad_output,
// output, dim, self) as grad - exp(output) * sum(grad, dim).
func BuildLogSoftmaxGrad(node *jit.Node, gradOutput, output *hlo.Op) (*hlo.Op, error) {
	dim, err := softmaxDim(node, output, 2)
	if err != nil {
		return nil, err
	}
	b := output.Builder()
	sumB, err := reduceKeep(gradOutput, hlo.ReduceSum, dim)
	if err != nil {
		return nil, err
	}
	probs, err := b.Exp(output)
	if err != nil {
		return nil, err
	}
	weighted, err := b.Mul(probs, sumB)
	if err != nil {
		return nil, err
	}
	return b.Sub(gradOutput, weighted)
}

func softmaxDim(node *jit.Node, x *hlo.Op, index int) (int, error) {
	d, err := argInt(node, "dim", index, -1)
	if err != nil {
		return 0, err
	}
	return normalizeDim(d, x.Shape().Rank())
}
