package jit

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/born-ml/lower/internal/tensor"
)

// ValueID is the stable integer handle of a Value, unique within its Graph.
// IDs are assigned once, in creation order.
type ValueID int

// TensorType is the optional static type annotation of a Value.
type TensorType struct {
	DType tensor.DataType
	Sizes []int64 // nil when the sizes are not known statically
}

func (t *TensorType) String() string {
	if t == nil {
		return "Tensor"
	}
	name := strings.ToUpper(t.DType.String()[:1]) + t.DType.String()[1:]
	if t.Sizes == nil {
		return name
	}
	parts := make([]string, len(t.Sizes))
	for i, s := range t.Sizes {
		parts[i] = fmt.Sprint(s)
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// Value is a data-flow edge endpoint: a graph input or a node output.
type Value struct {
	id    ValueID
	name  string
	typ   *TensorType
	node  *Node // producer; nil for graph inputs
	graph *Graph
}

// ID returns the value's handle.
func (v *Value) ID() ValueID {
	return v.id
}

// DebugName returns the value's display name without the leading '%'.
func (v *Value) DebugName() string {
	if v.name != "" {
		return v.name
	}
	return fmt.Sprint(int(v.id))
}

// Type returns the static type annotation, or nil.
func (v *Value) Type() *TensorType {
	return v.typ
}

// SetType attaches a static type annotation.
func (v *Value) SetType(t *TensorType) {
	v.typ = t
}

// SetDebugName sets the display name used in graph dumps.
func (v *Value) SetDebugName(name string) {
	v.name = name
}

// Node returns the producing node, or nil for a graph input.
func (v *Value) Node() *Node {
	return v.node
}

// Graph returns the owning graph.
func (v *Value) Graph() *Graph {
	return v.graph
}

// Constant returns the embedded payload when v is produced by prim::Constant.
func (v *Value) Constant() (IValue, bool) {
	if v.node == nil || v.node.kind != PrimConstant {
		return IValue{}, false
	}
	return v.node.Attr("value")
}

func (v *Value) String() string {
	return "%" + v.DebugName()
}

// Node is one operator application.
type Node struct {
	kind    Kind
	inputs  []*Value
	outputs []*Value
	attrs   map[string]IValue
	index   int
	graph   *Graph
}

// Kind returns the operator kind.
func (n *Node) Kind() Kind {
	return n.kind
}

// Inputs returns the operand values in order.
func (n *Node) Inputs() []*Value {
	return n.inputs
}

// Input returns operand i.
func (n *Node) Input(i int) *Value {
	return n.inputs[i]
}

// Outputs returns the produced values in order.
func (n *Node) Outputs() []*Value {
	return n.outputs
}

// Output returns output i.
func (n *Node) Output(i int) *Value {
	return n.outputs[i]
}

// Index returns the node's position in the graph's node list, or -1 for the
// return node.
func (n *Node) Index() int {
	return n.index
}

// Graph returns the owning graph.
func (n *Node) Graph() *Graph {
	return n.graph
}

// Attr returns a named attribute.
func (n *Node) Attr(name string) (IValue, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

// SetAttr sets a named attribute.
func (n *Node) SetAttr(name string, v IValue) {
	if n.attrs == nil {
		n.attrs = make(map[string]IValue)
	}
	n.attrs[name] = v
}

// AttrNames returns the attribute names in sorted order.
func (n *Node) AttrNames() []string {
	names := slices.Collect(maps.Keys(n.attrs))
	sort.Strings(names)
	return names
}

// Arg resolves a named argument: the attribute called name if present,
// otherwise the payload of operand inputIndex when that operand is a
// constant. A negative inputIndex only consults attributes.
func (n *Node) Arg(name string, inputIndex int) (IValue, bool) {
	if v, ok := n.attrs[name]; ok {
		return v, true
	}
	if inputIndex >= 0 && inputIndex < len(n.inputs) {
		return n.inputs[inputIndex].Constant()
	}
	return IValue{}, false
}

// String renders the node as one line of the graph dump.
func (n *Node) String() string {
	var sb strings.Builder
	for i, o := range n.outputs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(o.String())
		sb.WriteString(" : ")
		sb.WriteString(o.typ.String())
	}
	if len(n.outputs) > 0 {
		sb.WriteString(" = ")
	}
	sb.WriteString(n.kind.String())
	if names := n.AttrNames(); len(names) > 0 {
		sb.WriteByte('[')
		for i, name := range names {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(name)
			sb.WriteByte('=')
			sb.WriteString(n.attrs[name].String())
		}
		sb.WriteByte(']')
	}
	sb.WriteByte('(')
	for i, in := range n.inputs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(in.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Graph is a traced program: declared inputs, a node list already sorted so
// producers precede consumers, and one return node.
type Graph struct {
	name   string
	inputs []*Value
	nodes  []*Node
	ret    *Node
	nextID ValueID
}

// NewGraph creates an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{name: name}
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// Inputs returns the declared inputs in order.
func (g *Graph) Inputs() []*Value {
	return g.inputs
}

// Nodes returns the node list in graph order.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Return returns the return node, or nil if none was set.
func (g *Graph) Return() *Node {
	return g.ret
}

// Outputs returns the operands of the return node.
func (g *Graph) Outputs() []*Value {
	if g.ret == nil {
		return nil
	}
	return g.ret.inputs
}

func (g *Graph) newValue(name string, typ *TensorType, producer *Node) *Value {
	v := &Value{id: g.nextID, name: name, typ: typ, node: producer, graph: g}
	g.nextID++
	return v
}

// AddInput declares a new graph input.
func (g *Graph) AddInput(name string, typ *TensorType) *Value {
	v := g.newValue(name, typ, nil)
	g.inputs = append(g.inputs, v)
	return v
}

// AddNode appends a node of kind with the given operands and numOutputs
// fresh output values. Nodes are kept in insertion order.
func (g *Graph) AddNode(kind Kind, inputs []*Value, numOutputs int, attrs map[string]IValue) *Node {
	n := &Node{
		kind:   kind,
		inputs: slices.Clone(inputs),
		attrs:  maps.Clone(attrs),
		index:  len(g.nodes),
		graph:  g,
	}
	for i := 0; i < numOutputs; i++ {
		n.outputs = append(n.outputs, g.newValue("", nil, n))
	}
	g.nodes = append(g.nodes, n)
	return n
}

// Constant appends a prim::Constant node holding v and returns its output.
func (g *Graph) Constant(v IValue) *Value {
	return g.AddNode(PrimConstant, nil, 1, map[string]IValue{"value": v}).Output(0)
}

// SetReturn sets the graph's return node with values as its operands.
func (g *Graph) SetReturn(values ...*Value) *Node {
	g.ret = &Node{
		kind:   PrimReturn,
		inputs: slices.Clone(values),
		index:  -1,
		graph:  g,
	}
	return g.ret
}

// String dumps the graph in a TorchScript-like text form.
func (g *Graph) String() string {
	var sb strings.Builder
	sb.WriteString("graph(")
	for i, in := range g.inputs {
		if i > 0 {
			sb.WriteString(",\n      ")
		}
		sb.WriteString(in.String())
		sb.WriteString(" : ")
		sb.WriteString(in.typ.String())
	}
	sb.WriteString("):\n")
	for _, n := range g.nodes {
		sb.WriteString("  ")
		sb.WriteString(n.String())
		sb.WriteByte('\n')
	}
	if g.ret != nil {
		sb.WriteString("  return (")
		for i, v := range g.ret.inputs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.String())
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}
