package opbuild

import (
	"fmt"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/tensor"
)

// oneHot returns a pred mask of logits' shape that is set where the class
// index equals the label of its row.
func oneHot(logits, labels *hlo.Op) (*hlo.Op, error) {
	ls := logits.Shape()
	if ls.Rank() != 2 || labels.Shape().Rank() != 1 || labels.Shape().Dims[0] != ls.Dims[0] {
		return nil, fmt.Errorf("expected [N, C] logits and [N] labels, got %s and %s", ls, labels.Shape())
	}
	b := logits.Builder()
	classes, err := b.Iota(hlo.MakeShape(tensor.Int64, ls.Dims...), 1)
	if err != nil {
		return nil, err
	}
	idx, err := b.Convert(labels, tensor.Int64)
	if err != nil {
		return nil, err
	}
	idxB, err := b.BroadcastInDim(idx, ls.Dims, []int{0})
	if err != nil {
		return nil, err
	}
	return b.Compare(hlo.CompareEQ, classes, idxB)
}

// BuildNllLoss lowers aten::nll_loss(self, target, weight, reduction,
// ignore_index) with mean reduction: -sum(logits[i, target[i]]) / N.
func BuildNllLoss(node *jit.Node, logits, labels *hlo.Op) (*hlo.Op, error) {
	mask, err := oneHot(logits, labels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Kind(), err)
	}
	b := logits.Builder()
	zeros, err := b.ScalarBroadcast(0, logits.Shape())
	if err != nil {
		return nil, err
	}
	picked, err := b.Select(mask, logits, zeros)
	if err != nil {
		return nil, err
	}
	total, err := b.Reduce(picked, hlo.ReduceSum, 0, 1)
	if err != nil {
		return nil, err
	}
	n, err := b.ScalarConstant(float64(logits.Shape().Dims[0]), logits.DType())
	if err != nil {
		return nil, err
	}
	mean, err := b.Div(total, n)
	if err != nil {
		return nil, err
	}
	return b.Neg(mean)
}

// BuildNllLossBackward lowers aten::nll_loss_backward(grad_output, self,
// target, weight, reduction, ignore_index, total_weight) for mean
// reduction: -1/N at each row's target class and 0 elsewhere.
func BuildNllLossBackward(node *jit.Node, logits, labels *hlo.Op) (*hlo.Op, error) {
	mask, err := oneHot(logits, labels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Kind(), err)
	}
	b := logits.Builder()
	grad, err := b.ScalarBroadcast(-1/float64(logits.Shape().Dims[0]), logits.Shape())
	if err != nil {
		return nil, err
	}
	zeros, err := b.ScalarBroadcast(0, logits.Shape())
	if err != nil {
		return nil, err
	}
	return b.Select(mask, grad, zeros)
}
