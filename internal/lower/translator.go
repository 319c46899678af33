package lower

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
)

// levelTrace sits below debug for per-node records.
const levelTrace = slog.Level(-8)

// ParameterKind tells how a graph input is supplied.
type ParameterKind int

const (
	// GraphInput is a real input bound to a backend parameter.
	GraphInput ParameterKind = iota
	// ZeroInput is an absent upstream value replaced by zeros.
	ZeroInput
)

func (k ParameterKind) String() string {
	switch k {
	case GraphInput:
		return "input"
	case ZeroInput:
		return "zero"
	}
	return fmt.Sprintf("ParameterKind(%d)", int(k))
}

// ParameterShape declares how one graph input is supplied.
type ParameterShape struct {
	Kind  ParameterKind
	Shape hlo.Shape
}

// SizeValues maps a parameter or result position to a size value known at
// lowering time.
type SizeValues map[int][]int64

// OutputTransform rewrites result index before the computation is
// finalized.
type OutputTransform func(op *hlo.Op, index int) (*hlo.Op, error)

// BuildOptions configures BuildComputation.
type BuildOptions struct {
	OutputTransform OutputTransform
}

// Config configures a Translator.
type Config struct {
	// Precision is used by matrix products and convolutions.
	Precision hlo.Precision
	// DumpGraph attaches the graph's text dump to errors.
	DumpGraph bool
	// Logger receives debug records. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default translator configuration.
func DefaultConfig() Config {
	return Config{Precision: hlo.PrecisionDefault, DumpGraph: true}
}

// Program is the result of lowering a graph into a builder.
type Program struct {
	// InputOps are the parameters created for GraphInput entries, in order.
	InputOps []*hlo.Op
	// Outputs are the ops of the return node's operands, in order.
	Outputs []*hlo.Op
	// ResultSizes holds the size values of outputs known at lowering time,
	// keyed by output position.
	ResultSizes SizeValues
}

// TranslationResult is a finalized computation with its metadata.
type TranslationResult struct {
	Computation *hlo.Computation
	InputOps    []*hlo.Op
	ResultSizes SizeValues
}

// Translator lowers a graph into backend computations. A Translator holds no
// per-translation state and can be reused; each call works on a fresh
// TranslationContext.
type Translator struct {
	graph  *jit.Graph
	cfg    Config
	logger *slog.Logger
}

// NewTranslator creates a translator for graph.
func NewTranslator(graph *jit.Graph, cfg Config) *Translator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{graph: graph, cfg: cfg, logger: logger}
}

// Graph returns the graph being translated.
func (t *Translator) Graph() *jit.Graph {
	return t.graph
}

// BuildComputation lowers the graph into a new computation called name. The
// results, after opts.OutputTransform, are returned as a tuple root; a
// single result is still wrapped in a 1-tuple.
func (t *Translator) BuildComputation(name string, params []ParameterShape, paramSizes SizeValues, opts BuildOptions) (*TranslationResult, error) {
	b := hlo.NewBuilder(name)
	prog, err := t.BuildProgram(b, params, paramSizes)
	if err != nil {
		return nil, err
	}
	if opts.OutputTransform != nil {
		for i, op := range prog.Outputs {
			out, err := opts.OutputTransform(op, i)
			if err != nil {
				return nil, fmt.Errorf("output transform %d: %w", i, err)
			}
			prog.Outputs[i] = out
		}
	}
	root, err := b.Tuple(prog.Outputs...)
	if err != nil {
		return nil, err
	}
	comp, err := b.BuildWithRoot(root)
	if err != nil {
		return nil, err
	}
	return &TranslationResult{Computation: comp, InputOps: prog.InputOps, ResultSizes: prog.ResultSizes}, nil
}

// BuildProgram lowers the graph into b without finalizing it.
func (t *Translator) BuildProgram(b *hlo.Builder, params []ParameterShape, paramSizes SizeValues) (*Program, error) {
	tr := &translation{
		Translator: t,
		ctx:        NewTranslationContext(t.graph, t.cfg.DumpGraph),
		b:          b,
	}
	t.logger.Debug("lowering graph", "graph", t.graph.Name(), "nodes", len(t.graph.Nodes()), "inputs", len(t.graph.Inputs()))
	if err := tr.bindParameters(params, paramSizes); err != nil {
		return nil, err
	}
	for _, node := range t.graph.Nodes() {
		if err := tr.lowerNode(node); err != nil {
			return nil, err
		}
	}
	prog, err := tr.finalize()
	if err != nil {
		return nil, err
	}
	t.logger.Debug("lowered graph", "graph", t.graph.Name(), "parameters", len(prog.InputOps), "results", len(prog.Outputs), "ops", b.NumOps())
	return prog, nil
}

// translation is the state of one BuildProgram call.
type translation struct {
	*Translator
	ctx *TranslationContext
	b   *hlo.Builder
}

func (tr *translation) bindParameters(params []ParameterShape, paramSizes SizeValues) error {
	inputs := tr.graph.Inputs()
	if len(inputs) != len(params) {
		e := newError(ShapeArityMismatch, "parameter shapes do not match graph inputs")
		e.Expected, e.Actual = len(inputs), len(params)
		return tr.ctx.withGraph(e)
	}
	for i, input := range inputs {
		var op *hlo.Op
		var err error
		switch params[i].Kind {
		case GraphInput:
			n := tr.ctx.NumInputOps()
			if op, err = tr.b.Parameter(n, params[i].Shape, fmt.Sprintf("param_%d", n)); err != nil {
				return fmt.Errorf("parameter %d: %w", i, err)
			}
			tr.ctx.AddInputOp(op)
		case ZeroInput:
			if op, err = tr.b.ScalarBroadcast(0, params[i].Shape); err != nil {
				return fmt.Errorf("parameter %d: %w", i, err)
			}
		default:
			return fmt.Errorf("parameter %d: invalid kind %s", i, params[i].Kind)
		}
		if err := tr.ctx.Bind(input, op); err != nil {
			return err
		}
		if sizes, ok := paramSizes[i]; ok {
			if err := tr.ctx.RecordSize(input, sizes); err != nil {
				return err
			}
		}
	}
	return nil
}

func (tr *translation) lowerNode(node *jit.Node) error {
	r, ok := rules[node.Kind()]
	if !ok {
		return tr.ctx.withGraph(nodeError(UnsupportedOperator, node, ""))
	}
	if actual := len(node.Inputs()); !r.arity.accepts(actual) {
		e := nodeError(ShapeArityMismatch, node, "")
		e.Expected, e.Actual, e.AtLeast = r.arity.n, actual, r.arity.atLeast
		return tr.ctx.withGraph(e)
	}
	tr.logger.Log(context.Background(), levelTrace, "lowering node", "index", node.Index(), "kind", node.Kind())
	return r.lower(tr, node)
}

func (tr *translation) finalize() (*Program, error) {
	ret := tr.graph.Return()
	if ret == nil || ret.Kind() != jit.PrimReturn || len(ret.Inputs()) == 0 {
		return nil, tr.ctx.withGraph(newError(MalformedGraph, "unexpected end of graph"))
	}
	prog := &Program{ResultSizes: make(SizeValues)}
	for i, v := range ret.Inputs() {
		if sizes, ok := tr.ctx.LookupSize(v); ok {
			if _, dup := prog.ResultSizes[i]; dup {
				return nil, newError(DuplicateRegistration, "duplicated return component index %d", i)
			}
			prog.ResultSizes[i] = sizes
		}
		op, err := tr.ctx.Lookup(v)
		if err != nil {
			return nil, err
		}
		prog.Outputs = append(prog.Outputs, op)
	}
	prog.InputOps = tr.ctx.TakeInputOps()
	return prog, nil
}

// operands resolves the required operands at indices.
func (tr *translation) operands(node *jit.Node, indices ...int) ([]*hlo.Op, error) {
	ops := make([]*hlo.Op, len(indices))
	for i, idx := range indices {
		op, err := tr.ctx.RequireInput(node, idx)
		if err != nil {
			return nil, err
		}
		ops[i] = op
	}
	return ops, nil
}

// optional resolves an operand that may be explicitly undefined, returning
// nil in that case.
func (tr *translation) optional(node *jit.Node, index int) (*hlo.Op, error) {
	if operand := tr.ctx.TryLookup(node, index); operand.State == Undefined {
		return nil, nil
	}
	return tr.ctx.RequireInput(node, index)
}

// bindOutput binds the single output of node.
func (tr *translation) bindOutput(node *jit.Node, op *hlo.Op) error {
	if n := len(node.Outputs()); n != 1 {
		e := nodeError(ShapeArityMismatch, node, "outputs")
		e.Expected, e.Actual = 1, n
		return tr.ctx.withGraph(e)
	}
	return tr.ctx.Bind(node.Output(0), op)
}

// bindOutputs binds ops to node's outputs positionally. The counts must
// match.
func (tr *translation) bindOutputs(node *jit.Node, ops ...*hlo.Op) error {
	outputs := node.Outputs()
	if len(outputs) != len(ops) {
		e := nodeError(ShapeArityMismatch, node, "outputs")
		e.Expected, e.Actual = len(ops), len(outputs)
		return tr.ctx.withGraph(e)
	}
	for i, v := range outputs {
		if err := tr.ctx.Bind(v, ops[i]); err != nil {
			return err
		}
	}
	return nil
}

// builderError wraps a failure reported by an op builder.
func builderError(node *jit.Node, err error) error {
	return fmt.Errorf("node %d (%s): %w", node.Index(), node.Kind(), err)
}
