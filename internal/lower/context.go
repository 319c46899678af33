package lower

import (
	"fmt"
	"slices"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/emirpasic/gods/v2/sets/hashset"
)

// OperandState is the outcome of a three-way operand lookup.
type OperandState int

const (
	// Unbound means no op has been bound to the value yet.
	Unbound OperandState = iota
	// Undefined means the value is explicitly absent.
	Undefined
	// Present means the value is bound to an op.
	Present
)

func (s OperandState) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Undefined:
		return "undefined"
	case Present:
		return "present"
	}
	return fmt.Sprintf("OperandState(%d)", int(s))
}

// Operand is the result of TranslationContext.TryLookup. Op is set only
// when State is Present.
type Operand struct {
	State OperandState
	Op    *hlo.Op
}

// TranslationContext holds the per-value bookkeeping of one translation:
// bound ops, values marked undefined, the ordered input ops and the size
// values known at lowering time. A context is used for a single attempt and
// discarded afterwards.
type TranslationContext struct {
	graph     *jit.Graph
	dumpGraph bool

	ops       map[jit.ValueID]*hlo.Op
	undefined *hashset.Set[jit.ValueID]
	inputOps  []*hlo.Op
	sizes     map[jit.ValueID][]int64
}

// NewTranslationContext creates an empty context for graph. When dumpGraph
// is set, errors carry the graph's text dump.
func NewTranslationContext(graph *jit.Graph, dumpGraph bool) *TranslationContext {
	return &TranslationContext{
		graph:     graph,
		dumpGraph: dumpGraph,
		ops:       make(map[jit.ValueID]*hlo.Op),
		undefined: hashset.New[jit.ValueID](),
		sizes:     make(map[jit.ValueID][]int64),
	}
}

// withGraph attaches the graph dump to e when enabled.
func (c *TranslationContext) withGraph(e *Error) *Error {
	if c.dumpGraph && c.graph != nil {
		e.Graph = c.graph.String()
	}
	return e
}

func (c *TranslationContext) checkUnbound(v *jit.Value) error {
	id := v.ID()
	if _, ok := c.ops[id]; ok {
		e := newError(DuplicateRegistration, "value is already bound to an op")
		e.Operand = v.String()
		return c.withGraph(e)
	}
	if c.undefined.Contains(id) {
		e := newError(DuplicateRegistration, "value is already marked undefined")
		e.Operand = v.String()
		return c.withGraph(e)
	}
	return nil
}

// Bind associates v with op. A value can be bound or marked undefined once.
func (c *TranslationContext) Bind(v *jit.Value, op *hlo.Op) error {
	if err := c.checkUnbound(v); err != nil {
		return err
	}
	c.ops[v.ID()] = op
	return nil
}

// MarkUndefined records v as intentionally absent.
func (c *TranslationContext) MarkUndefined(v *jit.Value) error {
	if err := c.checkUnbound(v); err != nil {
		return err
	}
	c.undefined.Add(v.ID())
	return nil
}

// Lookup returns the op bound to v.
func (c *TranslationContext) Lookup(v *jit.Value) (*hlo.Op, error) {
	if op, ok := c.ops[v.ID()]; ok {
		return op, nil
	}
	e := newError(MissingOperand, "no op bound")
	if n := v.Node(); n != nil {
		e.Operator = n.Kind()
		e.Node = n.Index()
	}
	e.Operand = v.String()
	if c.undefined.Contains(v.ID()) {
		e.Msg = "value is undefined"
	}
	return nil, c.withGraph(e)
}

// TryLookup resolves operand index of node without failing. An index past
// the node's operands is Unbound.
func (c *TranslationContext) TryLookup(node *jit.Node, index int) Operand {
	v := operandAt(node, index)
	if v == nil {
		return Operand{State: Unbound}
	}
	if c.undefined.Contains(v.ID()) {
		return Operand{State: Undefined}
	}
	if op, ok := c.ops[v.ID()]; ok {
		return Operand{State: Present, Op: op}
	}
	return Operand{State: Unbound}
}

// RequireInput resolves operand index of node, failing with MissingOperand
// unless an op is bound.
func (c *TranslationContext) RequireInput(node *jit.Node, index int) (*hlo.Op, error) {
	operand := c.TryLookup(node, index)
	if operand.State == Present {
		return operand.Op, nil
	}
	e := nodeError(MissingOperand, node, "operand is %s", operand.State)
	if v := operandAt(node, index); v != nil {
		e.Operand = fmt.Sprintf("operand %d (%s)", index, v)
	} else {
		e.Operand = fmt.Sprintf("operand %d", index)
	}
	return nil, c.withGraph(e)
}

// operandAt returns operand index of node, or nil when node has no such
// operand.
func operandAt(node *jit.Node, index int) *jit.Value {
	if index < 0 || index >= len(node.Inputs()) {
		return nil
	}
	return node.Input(index)
}

// RecordSize attaches a size value to v. A value has at most one size.
func (c *TranslationContext) RecordSize(v *jit.Value, sizes []int64) error {
	if _, ok := c.sizes[v.ID()]; ok {
		e := newError(DuplicateRegistration, "size value already recorded")
		e.Operand = v.String()
		return c.withGraph(e)
	}
	c.sizes[v.ID()] = slices.Clone(sizes)
	return nil
}

// LookupSize returns the size value attached to v.
func (c *TranslationContext) LookupSize(v *jit.Value) ([]int64, bool) {
	sizes, ok := c.sizes[v.ID()]
	return sizes, ok
}

// AddInputOp appends a real input parameter.
func (c *TranslationContext) AddInputOp(op *hlo.Op) {
	c.inputOps = append(c.inputOps, op)
}

// NumInputOps returns the number of input parameters added so far.
func (c *TranslationContext) NumInputOps() int {
	return len(c.inputOps)
}

// TakeInputOps returns the ordered input ops and clears the list.
func (c *TranslationContext) TakeInputOps() []*hlo.Op {
	ops := c.inputOps
	c.inputOps = nil
	return ops
}
