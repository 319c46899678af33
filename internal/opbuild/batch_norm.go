package opbuild

import (
	"fmt"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
)

const defaultBatchNormEps = 1e-5

// BatchNormOutput holds the results of a training-mode batch normalization.
type BatchNormOutput struct {
	Output     *hlo.Op
	SaveMean   *hlo.Op
	SaveInvStd *hlo.Op
}

// BatchNormGrads holds the gradients of a batch normalization.
type BatchNormGrads struct {
	GradInput  *hlo.Op
	GradWeight *hlo.Op
	GradBias   *hlo.Op
}

func batchNormEps(node *jit.Node) (float64, error) {
	return argScalar(node, "eps", 7, defaultBatchNormEps)
}

// featureReduce returns the dims reduced by batch norm (all but dim 1) and
// the number of elements per feature.
func featureReduce(node *jit.Node, x hlo.Shape) ([]int, float64, error) {
	if x.Rank() < 2 {
		return nil, 0, fmt.Errorf("%s: expected an input with a feature dimension, got %s", node.Kind(), x)
	}
	dims := allDimsExcept(x.Rank(), 1)
	count := 1
	for _, d := range dims {
		count *= x.Dims[d]
	}
	return dims, float64(count), nil
}

// BuildBatchNorm normalizes input with batch statistics computed over every
// dimension but the feature dimension 1, then applies the per-feature
// weight and bias.
//
//	aten::native_batch_norm(input, weight, bias, running_mean, running_var,
//	                        training, momentum, eps)
func BuildBatchNorm(node *jit.Node, input, weight, bias *hlo.Op) (*BatchNormOutput, error) {
	eps, err := batchNormEps(node)
	if err != nil {
		return nil, err
	}
	shape := input.Shape()
	dims, count, err := featureReduce(node, shape)
	if err != nil {
		return nil, err
	}
	b := input.Builder()
	n, err := b.ScalarConstant(count, input.DType())
	if err != nil {
		return nil, err
	}
	sum, err := b.Reduce(input, hlo.ReduceSum, dims...)
	if err != nil {
		return nil, err
	}
	mean, err := b.Div(sum, n)
	if err != nil {
		return nil, err
	}
	meanB, err := broadcastAlong(mean, shape, 1)
	if err != nil {
		return nil, err
	}
	centered, err := b.Sub(input, meanB)
	if err != nil {
		return nil, err
	}
	sq, err := b.Mul(centered, centered)
	if err != nil {
		return nil, err
	}
	sqSum, err := b.Reduce(sq, hlo.ReduceSum, dims...)
	if err != nil {
		return nil, err
	}
	variance, err := b.Div(sqSum, n)
	if err != nil {
		return nil, err
	}
	epsOp, err := b.ScalarConstant(eps, input.DType())
	if err != nil {
		return nil, err
	}
	shifted, err := b.Add(variance, epsOp)
	if err != nil {
		return nil, err
	}
	invstd, err := b.Rsqrt(shifted)
	if err != nil {
		return nil, err
	}
	invstdB, err := broadcastAlong(invstd, shape, 1)
	if err != nil {
		return nil, err
	}
	out, err := b.Mul(centered, invstdB)
	if err != nil {
		return nil, err
	}
	if out, err = applyAffine(out, weight, bias); err != nil {
		return nil, fmt.Errorf("%s: %w", node.Kind(), err)
	}
	return &BatchNormOutput{Output: out, SaveMean: mean, SaveInvStd: invstd}, nil
}

func applyAffine(x, weight, bias *hlo.Op) (*hlo.Op, error) {
	b := x.Builder()
	if weight != nil {
		w, err := broadcastAlong(weight, x.Shape(), 1)
		if err != nil {
			return nil, fmt.Errorf("weight: %w", err)
		}
		if x, err = b.Mul(x, w); err != nil {
			return nil, err
		}
	}
	if bias != nil {
		bb, err := broadcastAlong(bias, x.Shape(), 1)
		if err != nil {
			return nil, fmt.Errorf("bias: %w", err)
		}
		if x, err = b.Add(x, bb); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// BuildBatchNormBackward computes the training-mode batch norm gradients
// from the saved statistics.
//
//	aten::native_batch_norm_backward(grad_out, input, weight, running_mean,
//	                                 running_var, save_mean, save_invstd,
//	                                 train, eps, output_mask)
func BuildBatchNormBackward(node *jit.Node, gradOutput, input, weight, saveMean, saveInvStd *hlo.Op) (*BatchNormGrads, error) {
	shape := input.Shape()
	dims, count, err := featureReduce(node, shape)
	if err != nil {
		return nil, err
	}
	b := input.Builder()
	meanB, err := broadcastAlong(saveMean, shape, 1)
	if err != nil {
		return nil, err
	}
	invstdB, err := broadcastAlong(saveInvStd, shape, 1)
	if err != nil {
		return nil, err
	}
	centered, err := b.Sub(input, meanB)
	if err != nil {
		return nil, err
	}
	xhat, err := b.Mul(centered, invstdB)
	if err != nil {
		return nil, err
	}
	gradBias, err := b.Reduce(gradOutput, hlo.ReduceSum, dims...)
	if err != nil {
		return nil, err
	}
	gx, err := b.Mul(gradOutput, xhat)
	if err != nil {
		return nil, err
	}
	gradWeight, err := b.Reduce(gx, hlo.ReduceSum, dims...)
	if err != nil {
		return nil, err
	}

	// grad_input = weight*invstd/N * (N*grad_out - grad_bias - xhat*grad_weight)
	n, err := b.ScalarConstant(count, input.DType())
	if err != nil {
		return nil, err
	}
	scaledGrad, err := b.Mul(gradOutput, n)
	if err != nil {
		return nil, err
	}
	gbB, err := broadcastAlong(gradBias, shape, 1)
	if err != nil {
		return nil, err
	}
	gwB, err := broadcastAlong(gradWeight, shape, 1)
	if err != nil {
		return nil, err
	}
	term, err := b.Sub(scaledGrad, gbB)
	if err != nil {
		return nil, err
	}
	xg, err := b.Mul(xhat, gwB)
	if err != nil {
		return nil, err
	}
	if term, err = b.Sub(term, xg); err != nil {
		return nil, err
	}
	factor, err := b.Div(saveInvStd, n)
	if err != nil {
		return nil, err
	}
	if weight != nil {
		if factor, err = b.Mul(factor, weight); err != nil {
			return nil, err
		}
	}
	factorB, err := broadcastAlong(factor, shape, 1)
	if err != nil {
		return nil, err
	}
	gradInput, err := b.Mul(term, factorB)
	if err != nil {
		return nil, err
	}
	return &BatchNormGrads{GradInput: gradInput, GradWeight: gradWeight, GradBias: gradBias}, nil
}
