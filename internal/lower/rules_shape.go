package lower

import (
	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/opbuild"
	"github.com/born-ml/lower/internal/tensor"
)

func (r ruleTable) registerShapeRules() {
	r.register(lowerUnaryWith(opbuild.BuildView), exactly(2), jit.AtenReshape, jit.AtenView)
	r.register(lowerUnaryWith(opbuild.BuildExpand), atLeast(1), jit.AtenExpand)
	r.register(lowerList(opbuild.BuildStack), exactly(2), jit.AtenStack)
	r.register(lowerList(opbuild.BuildCat), exactly(2), jit.AtenCat)
	r.register(lowerChunk, atLeast(1), jit.AtenChunk)
}

func (r ruleTable) registerReductionRules() {
	r.register(lowerUnaryWith(opbuild.BuildSum), atLeast(1), jit.AtenSum)
	r.register(lowerSize, exactly(1), jit.AtenSize)
	r.register(lowerSumToSize, exactly(2), jit.PrimSumToSize)
}

// lowerList lowers a node whose operand 0 is a tensor list.
func lowerList(build func(node *jit.Node, lookup opbuild.ValueLookup) (*hlo.Op, error)) lowerFunc {
	return func(tr *translation, node *jit.Node) error {
		out, err := build(node, tr.ctx.Lookup)
		if err != nil {
			if IsKind(err, MissingOperand) {
				return err
			}
			return builderError(node, err)
		}
		return tr.bindOutput(node, out)
	}
}

// lowerChunk binds the pieces positionally; the builder must produce one
// piece per node output.
func lowerChunk(tr *translation, node *jit.Node) error {
	x, err := tr.ctx.RequireInput(node, 0)
	if err != nil {
		return err
	}
	parts, err := opbuild.BuildChunk(node, x)
	if err != nil {
		return builderError(node, err)
	}
	return tr.bindOutputs(node, parts...)
}

// lowerSize records the operand's dimensions against the node's output.
// Sizes seeded for a graph input are reused as given.
func lowerSize(tr *translation, node *jit.Node) error {
	x, err := tr.ctx.RequireInput(node, 0)
	if err != nil {
		return err
	}
	var (
		out   *hlo.Op
		sizes []int64
	)
	input := node.Input(0)
	if seeded, ok := tr.ctx.LookupSize(input); ok && input.Node() == nil {
		sizes = seeded
		lit, err := tensor.FromSlice(append([]int64{}, seeded...), tensor.Shape{len(seeded)})
		if err != nil {
			return builderError(node, err)
		}
		if out, err = tr.b.Constant(lit); err != nil {
			return builderError(node, err)
		}
	} else if out, sizes, err = opbuild.BuildSize(x); err != nil {
		return builderError(node, err)
	}
	if err := tr.bindOutput(node, out); err != nil {
		return err
	}
	return tr.ctx.RecordSize(node.Output(0), sizes)
}

// lowerSumToSize reduces operand 0 to the size value recorded for operand 1.
func lowerSumToSize(tr *translation, node *jit.Node) error {
	x, err := tr.ctx.RequireInput(node, 0)
	if err != nil {
		return err
	}
	sizeValue := node.Input(1)
	sizes, ok := tr.ctx.LookupSize(sizeValue)
	if !ok {
		e := nodeError(MissingOperand, node, "no size value recorded")
		e.Operand = "operand 1 (" + sizeValue.String() + ")"
		return tr.ctx.withGraph(e)
	}
	out, err := opbuild.BuildSumToSize(x, sizes)
	if err != nil {
		return builderError(node, err)
	}
	return tr.bindOutput(node, out)
}
