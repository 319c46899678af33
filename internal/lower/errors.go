package lower

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/lower/internal/jit"
)

// ErrorKind classifies a translation failure.
type ErrorKind int

// Error kinds. Every kind is fatal for the translation attempt that raised
// it.
const (
	ShapeArityMismatch ErrorKind = iota + 1
	UnsupportedOperator
	UnsupportedConstant
	DuplicateRegistration
	MissingOperand
	MalformedGraph
)

// Sentinels matched by errors.Is against *Error values of the same kind.
var (
	ErrShapeArityMismatch    = errors.New("shape arity mismatch")
	ErrUnsupportedOperator   = errors.New("unsupported operator")
	ErrUnsupportedConstant   = errors.New("unsupported constant")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrMissingOperand        = errors.New("missing operand")
	ErrMalformedGraph        = errors.New("malformed graph")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case ShapeArityMismatch:
		return ErrShapeArityMismatch
	case UnsupportedOperator:
		return ErrUnsupportedOperator
	case UnsupportedConstant:
		return ErrUnsupportedConstant
	case DuplicateRegistration:
		return ErrDuplicateRegistration
	case MissingOperand:
		return ErrMissingOperand
	case MalformedGraph:
		return ErrMalformedGraph
	}
	return nil
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the structured failure returned by translation and assembly.
// Fields that do not apply to a given failure hold their zero value, except
// Node which is -1 when no node is involved.
type Error struct {
	Kind ErrorKind

	// Operator is the kind of the node being lowered.
	Operator jit.Kind
	// Node is the position of the node in the graph's node list.
	Node int
	// Expected and Actual describe an arity mismatch. AtLeast is set when
	// Expected is a minimum.
	Expected int
	Actual   int
	AtLeast  bool
	// Operand names the value or operand involved.
	Operand string

	Msg string
	// Graph holds the text dump of the graph when it was captured.
	Graph string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Operator.Valid() {
		fmt.Fprintf(&sb, ": %s", e.Operator)
		if e.Node >= 0 {
			fmt.Fprintf(&sb, " (node %d)", e.Node)
		}
	}
	if e.Kind == ShapeArityMismatch && e.Expected >= 0 {
		qual := ""
		if e.AtLeast {
			qual = "at least "
		}
		fmt.Fprintf(&sb, ": expected %s%d, got %d", qual, e.Expected, e.Actual)
	}
	if e.Operand != "" {
		fmt.Fprintf(&sb, ": %s", e.Operand)
	}
	if e.Msg != "" {
		fmt.Fprintf(&sb, ": %s", e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if e.Graph != "" {
		sb.WriteString("\nGraph:\n")
		sb.WriteString(e.Graph)
	}
	return sb.String()
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates an Error not tied to any node.
func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Node: -1, Expected: -1, Msg: fmt.Sprintf(format, args...)}
}

// nodeError creates an Error describing node.
func nodeError(kind ErrorKind, node *jit.Node, format string, args ...any) *Error {
	e := newError(kind, format, args...)
	if node != nil {
		e.Operator = node.Kind()
		e.Node = node.Index()
	}
	return e
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
