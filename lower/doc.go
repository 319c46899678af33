// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package lower translates traced tensor-operator graphs into backend
// computations and runs them.
//
// # Overview
//
// A traced graph is an ordered list of operator nodes (aten::add,
// aten::convolution, prim::Constant, ...) over numbered values. Lowering
// walks the nodes once, in order, and emits backend ops for each through a
// per-kind rule. The result is a finalized computation whose root is a
// tuple of the graph's returned values.
//
// # Example Usage
//
//	g := lower.NewGraph("add")
//	a := g.AddInput("a", nil)
//	b := g.AddInput("b", nil)
//	sum := g.AddNode(lower.MustParseKind("aten::add"), []*lower.Value{a, b}, 1, nil)
//	g.SetReturn(sum.Output(0))
//
//	params := []lower.ParameterShape{
//	    lower.Input(tensor.Float32, 2, 3),
//	    lower.Input(tensor.Float32, 2, 3),
//	}
//	compiled, err := lower.Compile(g, params, nil, lower.ConfigFromEnv())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, err := compiled.Run(ctx, x, y)
//
// # Errors
//
// Every translation failure is a *Error with a Kind. Use errors.Is with the
// package sentinels:
//
//	if errors.Is(err, lower.ErrUnsupportedOperator) {
//	    // the graph uses an operator with no lowering rule
//	}
//
// Graphs can also be described in YAML and read with [LoadGraph].
package lower
