package lower

import (
	"github.com/born-ml/lower/internal/jit"
)

func (r ruleTable) registerPrimRules() {
	r.register(lowerConstant, exactly(0), jit.PrimConstant)
	r.register(func(*translation, *jit.Node) error { return nil }, atLeast(0), jit.PrimListConstruct)
	r.register(lowerUndefined, exactly(0), jit.PrimUndefined)
}

func lowerConstant(tr *translation, node *jit.Node) error {
	v, ok := node.Attr("value")
	if !ok {
		return tr.ctx.withGraph(nodeError(UnsupportedConstant, node, "missing value attribute"))
	}
	lit, err := constantLiteral(v)
	if err != nil {
		e := nodeError(UnsupportedConstant, node, "%s payload", v.Kind())
		e.Err = err
		return tr.ctx.withGraph(e)
	}
	op, err := tr.b.Constant(lit)
	if err != nil {
		return builderError(node, err)
	}
	return tr.bindOutput(node, op)
}

// lowerUndefined marks the node's single output as intentionally absent.
func lowerUndefined(tr *translation, node *jit.Node) error {
	if n := len(node.Outputs()); n != 1 {
		e := nodeError(ShapeArityMismatch, node, "outputs")
		e.Expected, e.Actual = 1, n
		return tr.ctx.withGraph(e)
	}
	return tr.ctx.MarkUndefined(node.Output(0))
}
