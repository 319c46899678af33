package graphfile

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/lower/internal/jit"
	"github.com/born-ml/lower/internal/tensor"
)

// tensorLiteral is the mapping form of a tensor attribute.
type tensorLiteral struct {
	DType string    `yaml:"dtype"`
	Shape []int     `yaml:"shape"`
	Data  []float64 `yaml:"data"`
}

// decodeValue converts a YAML attribute into a constant payload. Scalars
// keep their YAML type; a list of ints and floats becomes a double list.
func decodeValue(n *yaml.Node) (jit.IValue, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return decodeScalar(n)
	case yaml.SequenceNode:
		return decodeList(n)
	case yaml.MappingNode:
		var lit tensorLiteral
		if err := n.Decode(&lit); err != nil {
			return jit.IValue{}, err
		}
		dtype, err := tensor.ParseDataType(lit.DType)
		if err != nil {
			return jit.IValue{}, err
		}
		raw, err := tensor.FromFloat64s(lit.Data, tensor.Shape(lit.Shape), dtype)
		if err != nil {
			return jit.IValue{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return jit.TensorValue(raw), nil
	default:
		return jit.IValue{}, fmt.Errorf("line %d: unsupported attribute form", n.Line)
	}
}

func decodeScalar(n *yaml.Node) (jit.IValue, error) {
	switch n.ShortTag() {
	case "!!null":
		return jit.None(), nil
	case "!!int":
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return jit.IValue{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return jit.IntValue(v), nil
	case "!!float":
		var v float64
		if err := n.Decode(&v); err != nil {
			return jit.IValue{}, err
		}
		return jit.DoubleValue(v), nil
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			return jit.IValue{}, err
		}
		return jit.BoolValue(v), nil
	default:
		return jit.StringValue(n.Value), nil
	}
}

func decodeList(n *yaml.Node) (jit.IValue, error) {
	var ints []int64
	var doubles []float64
	var bools []bool
	for _, item := range n.Content {
		v, err := decodeScalar(item)
		if err != nil {
			return jit.IValue{}, err
		}
		switch item.ShortTag() {
		case "!!int":
			i, _ := v.Int()
			ints = append(ints, i)
			doubles = append(doubles, float64(i))
		case "!!float":
			d, _ := v.Double()
			doubles = append(doubles, d)
		case "!!bool":
			b, _ := v.Bool()
			bools = append(bools, b)
		default:
			return jit.IValue{}, fmt.Errorf("line %d: unsupported list element %q", item.Line, item.Value)
		}
	}
	switch {
	case len(bools) == len(n.Content) && len(bools) > 0:
		return jit.BoolListValue(bools...), nil
	case len(bools) > 0:
		return jit.IValue{}, fmt.Errorf("line %d: list mixes booleans and numbers", n.Line)
	case len(ints) == len(n.Content):
		return jit.IntListValue(ints...), nil
	default:
		return jit.DoubleListValue(doubles...), nil
	}
}
