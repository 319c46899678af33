package jit

import (
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"
)

// Kind identifies the operator a Node applies. The set of kinds is closed.
type Kind int

// Operator kinds.
const (
	KindInvalid Kind = iota

	AtenAdd
	AtenSub
	AtenMul
	AtenDiv
	AtenGt
	AtenTypeAs

	AtenConvolution
	AtenConvolutionUntraced // aten::_convolution; rewritten before lowering
	AtenThnnConv2dForward
	AtenThnnConv2dBackward

	AtenT
	AtenAddmm
	AtenMm

	AtenMaxPool2dWithIndices
	AtenMaxPool2dWithIndicesBackward
	AtenAvgPool2d
	AtenAvgPool2dBackward
	AtenAdaptiveAvgPool2d
	AtenAdaptiveAvgPool2dBackward

	AtenSqrt
	AtenRsqrt
	AtenNeg
	AtenTanh
	AtenSigmoid
	AtenRelu
	AtenHardtanh
	AtenThreshold
	AtenThresholdBackward
	AtenDropout

	AtenLogSoftmax
	AtenLogSoftmaxBackwardData

	AtenReshape
	AtenView
	AtenExpand
	AtenStack
	AtenCat
	AtenChunk

	AtenBatchNorm
	AtenNativeBatchNorm
	AtenNativeBatchNormBackward

	AtenSum
	AtenNllLoss
	AtenNllLossBackward
	AtenSize

	PrimConstant
	PrimListConstruct
	PrimUndefined
	PrimSumToSize
	PrimReturn

	numKinds
)

var kindNames = [numKinds]string{
	KindInvalid: "invalid",

	AtenAdd:    "aten::add",
	AtenSub:    "aten::sub",
	AtenMul:    "aten::mul",
	AtenDiv:    "aten::div",
	AtenGt:     "aten::gt",
	AtenTypeAs: "aten::type_as",

	AtenConvolution:         "aten::convolution",
	AtenConvolutionUntraced: "aten::_convolution",
	AtenThnnConv2dForward:   "aten::thnn_conv2d_forward",
	AtenThnnConv2dBackward:  "aten::thnn_conv2d_backward",

	AtenT:     "aten::t",
	AtenAddmm: "aten::addmm",
	AtenMm:    "aten::mm",

	AtenMaxPool2dWithIndices:         "aten::max_pool2d_with_indices",
	AtenMaxPool2dWithIndicesBackward: "aten::max_pool2d_with_indices_backward",
	AtenAvgPool2d:                    "aten::avg_pool2d",
	AtenAvgPool2dBackward:            "aten::avg_pool2d_backward",
	AtenAdaptiveAvgPool2d:            "aten::adaptive_avg_pool2d",
	AtenAdaptiveAvgPool2dBackward:    "aten::adaptive_avg_pool2d_backward",

	AtenSqrt:              "aten::sqrt",
	AtenRsqrt:             "aten::rsqrt",
	AtenNeg:               "aten::neg",
	AtenTanh:              "aten::tanh",
	AtenSigmoid:           "aten::sigmoid",
	AtenRelu:              "aten::relu",
	AtenHardtanh:          "aten::hardtanh",
	AtenThreshold:         "aten::threshold",
	AtenThresholdBackward: "aten::threshold_backward",
	AtenDropout:           "aten::dropout",

	AtenLogSoftmax:             "aten::log_softmax",
	AtenLogSoftmaxBackwardData: "aten::_log_softmax_backward_data",

	AtenReshape: "aten::reshape",
	AtenView:    "aten::view",
	AtenExpand:  "aten::expand",
	AtenStack:   "aten::stack",
	AtenCat:     "aten::cat",
	AtenChunk:   "aten::chunk",

	AtenBatchNorm:               "aten::batch_norm",
	AtenNativeBatchNorm:         "aten::native_batch_norm",
	AtenNativeBatchNormBackward: "aten::native_batch_norm_backward",

	AtenSum:             "aten::sum",
	AtenNllLoss:         "aten::nll_loss",
	AtenNllLossBackward: "aten::nll_loss_backward",
	AtenSize:            "aten::size",

	PrimConstant:      "prim::Constant",
	PrimListConstruct: "prim::ListConstruct",
	PrimUndefined:     "prim::Undefined",
	PrimSumToSize:     "prim::SumToSize",
	PrimReturn:        "prim::Return",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k := KindInvalid + 1; k < numKinds; k++ {
		m[kindNames[k]] = k
	}
	return m
}()

// String returns the qualified operator name, e.g. "aten::add".
func (k Kind) String() string {
	if k >= 0 && k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is a member of the enumeration.
func (k Kind) Valid() bool {
	return k > KindInvalid && k < numKinds
}

// AllKinds returns every valid kind in declaration order.
func AllKinds() []Kind {
	kinds := make([]Kind, 0, numKinds-1)
	for k := KindInvalid + 1; k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ParseKind looks up a kind by its qualified name. Unknown names produce an
// error suggesting the closest known names.
func ParseKind(name string) (Kind, error) {
	if k, ok := kindsByName[name]; ok {
		return k, nil
	}
	if suggestions := SuggestKinds(name, 3); len(suggestions) > 0 {
		return KindInvalid, fmt.Errorf("unknown operator kind %q (did you mean %v?)", name, suggestions)
	}
	return KindInvalid, fmt.Errorf("unknown operator kind %q", name)
}

// SuggestKinds returns up to n kind names closest to name by edit distance.
func SuggestKinds(name string, n int) []string {
	type candidate struct {
		name string
		dist int
	}
	var cands []candidate
	for k := KindInvalid + 1; k < numKinds; k++ {
		d := levenshtein.ComputeDistance(name, kindNames[k])
		if d <= max(3, len(name)/3) {
			cands = append(cands, candidate{kindNames[k], d})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > n {
		cands = cands[:n]
	}
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.name
	}
	return names
}
