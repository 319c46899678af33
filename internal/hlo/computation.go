package hlo

import (
	"strings"
)

// Computation is a finalized, immutable backend program.
type Computation struct {
	name   string
	params []*Op
	root   *Op
	ops    []*Op
}

// Name returns the computation name.
func (c *Computation) Name() string {
	return c.name
}

// Parameters returns the parameter ops ordered by parameter number.
func (c *Computation) Parameters() []*Op {
	return c.params
}

// Root returns the op whose value the computation returns.
func (c *Computation) Root() *Op {
	return c.root
}

// Ops returns every op the computation evaluates in dependency order:
// parameters first, then everything reachable from the root.
func (c *Computation) Ops() []*Op {
	return c.ops
}

// ProgramShape returns the parameter shapes and the result shape.
func (c *Computation) ProgramShape() ([]Shape, Shape) {
	params := make([]Shape, len(c.params))
	for i, p := range c.params {
		params[i] = p.shape
	}
	return params, c.root.shape
}

// String renders the computation in a text form close to HLO.
func (c *Computation) String() string {
	var sb strings.Builder
	sb.WriteString("HloModule ")
	sb.WriteString(c.name)
	sb.WriteString("\n\nENTRY ")
	sb.WriteString(c.name)
	sb.WriteString(" {\n")
	for _, op := range c.ops {
		sb.WriteString("  ")
		if op == c.root {
			sb.WriteString("ROOT ")
		}
		sb.WriteString(op.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")
	return sb.String()
}

// postOrder lists params followed by every op reachable from root, each
// after its operands.
func postOrder(root *Op, params []*Op) []*Op {
	visited := make(map[*Op]bool)
	order := make([]*Op, 0, len(params)+1)
	for _, p := range params {
		visited[p] = true
		order = append(order, p)
	}

	type frame struct {
		op   *Op
		next int
	}
	stack := []frame{{op: root}}
	if visited[root] {
		return order
	}
	visited[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.op.operands) {
			child := top.op.operands[top.next]
			top.next++
			if !visited[child] {
				visited[child] = true
				stack = append(stack, frame{op: child})
			}
			continue
		}
		order = append(order, top.op)
		stack = stack[:len(stack)-1]
	}
	return order
}
