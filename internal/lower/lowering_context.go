package lower

import (
	"fmt"
	"slices"

	"github.com/born-ml/lower/internal/hlo"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DataID is the stable handle of a piece of data supplying a parameter.
// Handles are assigned once when the data is registered and never reused.
type DataID uint64

// OutputKey names a computed op handed to a downstream consumer.
type OutputKey struct {
	Component string
	Index     int
}

func (k OutputKey) String() string {
	return fmt.Sprintf("%s:%d", k.Component, k.Index)
}

// LoweringContext assembles a computation from ops built outside the
// dispatcher: parameters are deduplicated by data identity and results
// accumulate into a tuple root.
type LoweringContext struct {
	builder *hlo.Builder
	params  *orderedmap.OrderedMap[DataID, *hlo.Op]
	results []*hlo.Op
	outputs map[OutputKey]*hlo.Op
}

// NewLoweringContext creates a context building a computation called name.
func NewLoweringContext(name string) *LoweringContext {
	return &LoweringContext{
		builder: hlo.NewBuilder(name),
		params:  orderedmap.New[DataID, *hlo.Op](),
		outputs: make(map[OutputKey]*hlo.Op),
	}
}

// Builder returns the underlying builder.
func (lc *LoweringContext) Builder() *hlo.Builder {
	return lc.builder
}

// GetOrCreateParameter returns the parameter for id, declaring it with shape
// on first request. Parameters are numbered in first-request order.
func (lc *LoweringContext) GetOrCreateParameter(id DataID, shape hlo.Shape) (*hlo.Op, error) {
	if op, ok := lc.params.Get(id); ok {
		return op, nil
	}
	n := lc.params.Len()
	op, err := lc.builder.Parameter(n, shape, fmt.Sprintf("param_%d", n))
	if err != nil {
		return nil, err
	}
	lc.params.Set(id, op)
	return op, nil
}

// ParametersData returns the data handles in parameter order.
func (lc *LoweringContext) ParametersData() []DataID {
	ids := make([]DataID, 0, lc.params.Len())
	for pair := lc.params.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// NumParameters returns the number of distinct parameters.
func (lc *LoweringContext) NumParameters() int {
	return lc.params.Len()
}

// AddResult appends op to the root tuple and returns its position.
func (lc *LoweringContext) AddResult(op *hlo.Op) int {
	lc.results = append(lc.results, op)
	return len(lc.results) - 1
}

// Results returns the accumulated root tuple elements.
func (lc *LoweringContext) Results() []*hlo.Op {
	return slices.Clone(lc.results)
}

// Build finalizes the computation. Accumulated results become a tuple root;
// without results the last op built is the root.
func (lc *LoweringContext) Build() (*hlo.Computation, error) {
	if len(lc.results) == 0 {
		return lc.builder.Build()
	}
	root, err := lc.builder.Tuple(lc.results...)
	if err != nil {
		return nil, err
	}
	return lc.builder.BuildWithRoot(root)
}

// BuildWithRoot finalizes the computation with an explicit root. It is only
// valid when no results were accumulated.
func (lc *LoweringContext) BuildWithRoot(root *hlo.Op) (*hlo.Computation, error) {
	if len(lc.results) > 0 {
		return nil, newError(MalformedGraph, "explicit root given with %d accumulated results", len(lc.results))
	}
	return lc.builder.BuildWithRoot(root)
}

// AssignOutputOp hands op to downstream consumers under key.
func (lc *LoweringContext) AssignOutputOp(key OutputKey, op *hlo.Op) {
	lc.outputs[key] = op
}

// GetOutputOp returns the op assigned to key.
func (lc *LoweringContext) GetOutputOp(key OutputKey) (*hlo.Op, error) {
	op, ok := lc.outputs[key]
	if !ok {
		e := newError(MissingOperand, "no op assigned to output")
		e.Operand = key.String()
		return nil, e
	}
	return op, nil
}
