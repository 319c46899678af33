package opbuild

import (
	"fmt"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
)

// ValueLookup resolves a graph value to its lowered op.
type ValueLookup func(v *jit.Value) (*hlo.Op, error)

// inferSize resolves a view/reshape size list with at most one -1 entry.
func inferSize(node *jit.Node, size []int64, numElements int) ([]int, error) {
	dims := make([]int, len(size))
	infer := -1
	known := 1
	for i, s := range size {
		switch {
		case s == -1:
			if infer >= 0 {
				return nil, fmt.Errorf("%s: only one dimension can be inferred in %v", node.Kind(), size)
			}
			infer = i
		case s < 0:
			return nil, fmt.Errorf("%s: invalid size %d in %v", node.Kind(), s, size)
		default:
			dims[i] = int(s)
			known *= int(s)
		}
	}
	if infer >= 0 {
		if known == 0 || numElements%known != 0 {
			return nil, fmt.Errorf("%s: shape %v is invalid for %d elements", node.Kind(), size, numElements)
		}
		dims[infer] = numElements / known
	}
	return dims, nil
}

// BuildView lowers aten::view and aten::reshape (self, size).
func BuildView(node *jit.Node, x *hlo.Op) (*hlo.Op, error) {
	size, err := argInts(node, "size", 1, nil)
	if err != nil {
		return nil, err
	}
	if size == nil {
		return nil, fmt.Errorf("%s: missing required argument %q", node.Kind(), "size")
	}
	dims, err := inferSize(node, size, x.Shape().Size())
	if err != nil {
		return nil, err
	}
	out, err := x.Builder().Reshape(x, dims...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Kind(), err)
	}
	return out, nil
}

// BuildExpand lowers aten::expand(self, size). New leading dimensions are
// added and -1 keeps an existing dimension.
func BuildExpand(node *jit.Node, x *hlo.Op) (*hlo.Op, error) {
	size, err := argInts(node, "size", 1, nil)
	if err != nil {
		return nil, err
	}
	in := x.Shape()
	if len(size) < in.Rank() {
		return nil, fmt.Errorf("%s: size %v has fewer dimensions than %s", node.Kind(), size, in)
	}
	offset := len(size) - in.Rank()
	dims := make([]int, len(size))
	for i, s := range size {
		switch {
		case s != -1:
			dims[i] = int(s)
		case i < offset:
			return nil, fmt.Errorf("%s: -1 is not allowed for new leading dimension %d", node.Kind(), i)
		default:
			dims[i] = in.Dims[i-offset]
		}
	}
	out, err := x.Builder().BroadcastTo(x, dims)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Kind(), err)
	}
	return out, nil
}

// listOperands resolves the prim::ListConstruct feeding operand 0 of node.
func listOperands(node *jit.Node, lookup ValueLookup) ([]*hlo.Op, error) {
	list := node.Input(0)
	if list == nil || list.Node() == nil || list.Node().Kind() != jit.PrimListConstruct {
		return nil, fmt.Errorf("%s: operand 0 must be produced by %s", node.Kind(), jit.PrimListConstruct)
	}
	elems := list.Node().Inputs()
	if len(elems) == 0 {
		return nil, fmt.Errorf("%s: empty tensor list", node.Kind())
	}
	ops := make([]*hlo.Op, len(elems))
	for i, v := range elems {
		op, err := lookup(v)
		if err != nil {
			return nil, err
		}
		ops[i] = op
	}
	return ops, nil
}

// BuildStack lowers aten::stack(tensors, dim): every list element gains a
// unit dimension at dim and the results are concatenated along it.
func BuildStack(node *jit.Node, lookup ValueLookup) (*hlo.Op, error) {
	ops, err := listOperands(node, lookup)
	if err != nil {
		return nil, err
	}
	d, err := argInt(node, "dim", 1, 0)
	if err != nil {
		return nil, err
	}
	rank := ops[0].Shape().Rank()
	dim, err := normalizeDim(d, rank+1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Kind(), err)
	}
	b := ops[0].Builder()
	expanded := make([]*hlo.Op, len(ops))
	for i, op := range ops {
		dims := append([]int(nil), op.Shape().Dims[:dim]...)
		dims = append(dims, 1)
		dims = append(dims, op.Shape().Dims[dim:]...)
		if expanded[i], err = b.Reshape(op, dims...); err != nil {
			return nil, err
		}
	}
	return b.Concatenate(dim, expanded...)
}

// BuildCat lowers aten::cat(tensors, dim).
func BuildCat(node *jit.Node, lookup ValueLookup) (*hlo.Op, error) {
	ops, err := listOperands(node, lookup)
	if err != nil {
		return nil, err
	}
	d, err := argInt(node, "dim", 1, 0)
	if err != nil {
		return nil, err
	}
	dim, err := normalizeDim(d, ops[0].Shape().Rank())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Kind(), err)
	}
	out, err := ops[0].Builder().Concatenate(dim, ops...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Kind(), err)
	}
	return out, nil
}

// BuildChunk lowers aten::chunk(self, chunks, dim). Chunks have
// ceil(size/chunks) elements along dim except possibly the last, so fewer
// than chunks pieces may be produced.
func BuildChunk(node *jit.Node, x *hlo.Op) ([]*hlo.Op, error) {
	chunks, err := argInt(node, "chunks", 1, 0)
	if err != nil {
		return nil, err
	}
	if chunks <= 0 {
		return nil, fmt.Errorf("%s: chunks must be positive, got %d", node.Kind(), chunks)
	}
	d, err := argInt(node, "dim", 2, 0)
	if err != nil {
		return nil, err
	}
	dim, err := normalizeDim(d, x.Shape().Rank())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Kind(), err)
	}
	size := x.Shape().Dims[dim]
	step := (size + int(chunks) - 1) / int(chunks)
	if step == 0 {
		return []*hlo.Op{x}, nil
	}
	b := x.Builder()
	var parts []*hlo.Op
	for start := 0; start < size; start += step {
		part, err := b.SliceInDim(x, start, min(start+step, size), 1, dim)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}
