// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lower

import (
	"log/slog"

	"github.com/born-ml/lower/internal/envconfig"
	"github.com/born-ml/lower/internal/graphfile"
	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	internallower "github.com/born-ml/lower/internal/lower"
	"github.com/born-ml/lower/internal/tensor"
)

// Graph model.
type (
	Graph      = jit.Graph
	Node       = jit.Node
	Value      = jit.Value
	Kind       = jit.Kind
	IValue     = jit.IValue
	TensorType = jit.TensorType
)

// NewGraph creates an empty graph.
func NewGraph(name string) *Graph {
	return jit.NewGraph(name)
}

// ParseKind looks up an operator kind by its qualified name, e.g. "aten::mm".
func ParseKind(name string) (Kind, error) {
	return jit.ParseKind(name)
}

// MustParseKind is like ParseKind but panics on unknown names.
func MustParseKind(name string) Kind {
	k, err := jit.ParseKind(name)
	if err != nil {
		panic(err)
	}
	return k
}

// Constant payload constructors.
var (
	IntValue        = jit.IntValue
	DoubleValue     = jit.DoubleValue
	BoolValue       = jit.BoolValue
	StringValue     = jit.StringValue
	IntListValue    = jit.IntListValue
	BoolListValue   = jit.BoolListValue
	DoubleListValue = jit.DoubleListValue
	TensorValue     = jit.TensorValue
)

// Translation types.
type (
	Translator        = internallower.Translator
	Config            = internallower.Config
	BuildOptions      = internallower.BuildOptions
	OutputTransform   = internallower.OutputTransform
	ParameterShape    = internallower.ParameterShape
	ParameterKind     = internallower.ParameterKind
	SizeValues        = internallower.SizeValues
	TranslationResult = internallower.TranslationResult
	Computation       = hlo.Computation
	Precision         = hlo.Precision
)

// Parameter kinds.
const (
	GraphInput = internallower.GraphInput
	ZeroInput  = internallower.ZeroInput
)

// Input returns a GraphInput parameter of the given element type and dims.
func Input(dtype tensor.DataType, dims ...int) ParameterShape {
	return ParameterShape{Kind: GraphInput, Shape: hlo.MakeShape(dtype, dims...)}
}

// DefaultConfig returns the default translator configuration.
func DefaultConfig() Config {
	return internallower.DefaultConfig()
}

// ConfigFromEnv returns a translator configuration from LOWER_PRECISION
// and LOWER_DUMP_GRAPH.
func ConfigFromEnv() Config {
	return Config{
		Precision: envconfig.Precision(),
		DumpGraph: envconfig.DumpGraph(true),
		Logger:    slog.Default(),
	}
}

// NewTranslator creates a translator for graph.
func NewTranslator(graph *Graph, cfg Config) *Translator {
	return internallower.NewTranslator(graph, cfg)
}

// Translate lowers graph into a finalized computation named after it.
func Translate(graph *Graph, params []ParameterShape, sizes SizeValues, cfg Config, opts ...BuildOptions) (*TranslationResult, error) {
	var o BuildOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return internallower.NewTranslator(graph, cfg).BuildComputation(graph.Name(), params, sizes, o)
}

// Operator describes an operator kind with a lowering rule.
type Operator struct {
	Name  string
	Arity string
}

// ListSupportedOps returns every operator kind with a lowering rule.
func ListSupportedOps() []Operator {
	infos := internallower.SupportedKinds()
	ops := make([]Operator, len(infos))
	for i, info := range infos {
		ops[i] = Operator{Name: info.Kind.String(), Arity: info.Arity}
	}
	return ops
}

// GraphFile is a graph read from a YAML description, with its parameter
// shapes and seeded size values.
type GraphFile = graphfile.Program

// LoadGraph reads a YAML graph description.
func LoadGraph(path string) (*GraphFile, error) {
	return graphfile.Load(path)
}

// ParseGraph parses a YAML graph description.
func ParseGraph(data []byte) (*GraphFile, error) {
	return graphfile.Parse(data)
}
