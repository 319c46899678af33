package hlo

import "fmt"

// OpCode identifies the operation an Op performs.
type OpCode int

// Supported operations.
const (
	OpInvalid OpCode = iota
	OpParameter
	OpConstant
	OpIota
	OpBroadcastInDim
	OpReshape
	OpTranspose
	OpSlice
	OpConcatenate
	OpPad
	OpReverse
	OpConvert
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpMaximum
	OpMinimum
	OpNegate
	OpSqrt
	OpRsqrt
	OpTanh
	OpExp
	OpLog
	OpCompare
	OpSelect
	OpDot
	OpReduce
	OpReduceWindow
	OpSelectAndScatter
	OpConvolution
	OpTuple
	OpGetTupleElement
)

var opCodeNames = [...]string{
	OpInvalid:          "invalid",
	OpParameter:        "parameter",
	OpConstant:         "constant",
	OpIota:             "iota",
	OpBroadcastInDim:   "broadcast",
	OpReshape:          "reshape",
	OpTranspose:        "transpose",
	OpSlice:            "slice",
	OpConcatenate:      "concatenate",
	OpPad:              "pad",
	OpReverse:          "reverse",
	OpConvert:          "convert",
	OpAdd:              "add",
	OpSubtract:         "subtract",
	OpMultiply:         "multiply",
	OpDivide:           "divide",
	OpMaximum:          "maximum",
	OpMinimum:          "minimum",
	OpNegate:           "negate",
	OpSqrt:             "sqrt",
	OpRsqrt:            "rsqrt",
	OpTanh:             "tanh",
	OpExp:              "exponential",
	OpLog:              "log",
	OpCompare:          "compare",
	OpSelect:           "select",
	OpDot:              "dot",
	OpReduce:           "reduce",
	OpReduceWindow:     "reduce-window",
	OpSelectAndScatter: "select-and-scatter",
	OpConvolution:      "convolution",
	OpTuple:            "tuple",
	OpGetTupleElement:  "get-tuple-element",
}

func (c OpCode) String() string {
	if c >= 0 && int(c) < len(opCodeNames) {
		return opCodeNames[c]
	}
	return fmt.Sprintf("opcode(%d)", int(c))
}

// IsElementwiseBinary reports whether c combines two operands element by element.
func (c OpCode) IsElementwiseBinary() bool {
	switch c {
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpMaximum, OpMinimum:
		return true
	}
	return false
}

// IsElementwiseUnary reports whether c maps each element of one operand.
func (c OpCode) IsElementwiseUnary() bool {
	switch c {
	case OpNegate, OpSqrt, OpRsqrt, OpTanh, OpExp, OpLog:
		return true
	}
	return false
}

// ComparisonDirection selects the predicate of an OpCompare.
type ComparisonDirection int

// Comparison directions.
const (
	CompareEQ ComparisonDirection = iota
	CompareNE
	CompareGT
	CompareGE
	CompareLT
	CompareLE
)

func (d ComparisonDirection) String() string {
	switch d {
	case CompareEQ:
		return "EQ"
	case CompareNE:
		return "NE"
	case CompareGT:
		return "GT"
	case CompareGE:
		return "GE"
	case CompareLT:
		return "LT"
	case CompareLE:
		return "LE"
	default:
		return "??"
	}
}

// ReduceKind selects the combiner of OpReduce and OpReduceWindow.
type ReduceKind int

// Reduction combiners.
const (
	ReduceSum ReduceKind = iota
	ReduceMax
)

func (k ReduceKind) String() string {
	if k == ReduceMax {
		return "max"
	}
	return "add"
}
