// Package graphfile reads traced graphs from YAML descriptions.
//
// A description lists the graph inputs with their backend shapes, the nodes
// in execution order, and the returned values:
//
//	name: linear
//	inputs:
//	  - {name: x, dtype: f32, shape: [2, 3]}
//	  - {name: w, dtype: f32, shape: [4, 3]}
//	nodes:
//	  - {op: aten::t, inputs: [w], outputs: [wt]}
//	  - {op: aten::mm, inputs: [x, wt], outputs: [y]}
//	return: [y]
//
// Attribute values are typed by their YAML form: integers, floats, booleans,
// strings, homogeneous lists of those, or a tensor mapping with dtype,
// shape and data keys.
package graphfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/lower"
	"github.com/born-ml/lower/internal/tensor"
)

// File is the decoded form of a graph description.
type File struct {
	Name   string   `yaml:"name"`
	Inputs []Input  `yaml:"inputs"`
	Nodes  []Node   `yaml:"nodes"`
	Return []string `yaml:"return"`
}

// Input declares one graph input and the backend parameter bound to it.
type Input struct {
	Name  string  `yaml:"name"`
	DType string  `yaml:"dtype"`
	Shape []int   `yaml:"shape"`
	Zero  bool    `yaml:"zero"` // bind a zero-filled array instead of a parameter
	Size  []int64 `yaml:"size"` // seeded size value, if any
}

// Node describes one operator application.
type Node struct {
	Op      string               `yaml:"op"`
	Inputs  []string             `yaml:"inputs"`
	Outputs []string             `yaml:"outputs"`
	Attrs   map[string]yaml.Node `yaml:"attrs"`

	line int
}

// UnmarshalYAML records the source line of the node for error messages.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	type plain Node
	if err := value.Decode((*plain)(n)); err != nil {
		return err
	}
	n.line = value.Line
	return nil
}

// Program is a graph ready for translation, with its parameter shapes and
// seeded size values.
type Program struct {
	Graph  *jit.Graph
	Params []lower.ParameterShape
	Sizes  lower.SizeValues
}

// Load reads and parses the description at path.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a description and builds its graph.
func Parse(data []byte) (*Program, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode graph description: %w", err)
	}
	return f.Build()
}

// Build constructs the graph described by f.
func (f *File) Build() (*Program, error) {
	if f.Name == "" {
		return nil, errors.New("graph description has no name")
	}
	g := jit.NewGraph(f.Name)
	p := &Program{Graph: g, Sizes: lower.SizeValues{}}
	values := make(map[string]*jit.Value)

	define := func(name string, v *jit.Value) error {
		if name == "" {
			return errors.New("empty value name")
		}
		if _, ok := values[name]; ok {
			return fmt.Errorf("value %q defined twice", name)
		}
		v.SetDebugName(name)
		values[name] = v
		return nil
	}

	for i, in := range f.Inputs {
		dtype, err := tensor.ParseDataType(in.DType)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", in.Name, err)
		}
		sizes := make([]int64, len(in.Shape))
		for j, d := range in.Shape {
			sizes[j] = int64(d)
		}
		v := g.AddInput(in.Name, &jit.TensorType{DType: dtype, Sizes: sizes})
		if err := define(in.Name, v); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		kind := lower.GraphInput
		if in.Zero {
			kind = lower.ZeroInput
		}
		p.Params = append(p.Params, lower.ParameterShape{Kind: kind, Shape: hlo.MakeShape(dtype, in.Shape...)})
		if in.Size != nil {
			p.Sizes[i] = in.Size
		}
	}

	for _, n := range f.Nodes {
		kind, err := jit.ParseKind(n.Op)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.line, err)
		}
		inputs := make([]*jit.Value, len(n.Inputs))
		for i, name := range n.Inputs {
			if inputs[i], err = resolve(values, name); err != nil {
				return nil, fmt.Errorf("line %d: %s input %d: %w", n.line, n.Op, i, err)
			}
		}
		attrs := make(map[string]jit.IValue, len(n.Attrs))
		for name, node := range n.Attrs {
			if attrs[name], err = decodeValue(&node); err != nil {
				return nil, fmt.Errorf("line %d: %s attribute %q: %w", n.line, n.Op, name, err)
			}
		}
		node := g.AddNode(kind, inputs, len(n.Outputs), attrs)
		for i, name := range n.Outputs {
			if err := define(name, node.Output(i)); err != nil {
				return nil, fmt.Errorf("line %d: %s output %d: %w", n.line, n.Op, i, err)
			}
		}
	}

	if len(f.Return) == 0 {
		return nil, errors.New("graph description has no return values")
	}
	rets := make([]*jit.Value, len(f.Return))
	for i, name := range f.Return {
		v, err := resolve(values, name)
		if err != nil {
			return nil, fmt.Errorf("return %d: %w", i, err)
		}
		rets[i] = v
	}
	g.SetReturn(rets...)
	return p, nil
}

// resolve finds a defined value, suggesting near misses when name is unknown.
func resolve(values map[string]*jit.Value, name string) (*jit.Value, error) {
	if v, ok := values[name]; ok {
		return v, nil
	}
	if s := suggest(values, name); s != "" {
		return nil, fmt.Errorf("undefined value %q (did you mean %q?)", name, s)
	}
	return nil, fmt.Errorf("undefined value %q", name)
}

func suggest(values map[string]*jit.Value, name string) string {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	best, bestDist := "", max(2, len(name)/3)+1
	for _, n := range names {
		if d := levenshtein.ComputeDistance(name, n); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}
