// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lower

import (
	"context"

	"github.com/born-ml/lower/internal/client"
	"github.com/born-ml/lower/internal/tensor"
)

// Compiled is a lowered graph loaded on a client.
type Compiled struct {
	*TranslationResult
	client *client.Client
	exe    *client.Executable
}

// Compile lowers graph and loads the computation on the shared host client.
func Compile(graph *Graph, params []ParameterShape, sizes SizeValues, cfg Config, opts ...BuildOptions) (*Compiled, error) {
	c := client.Shared()
	res, err := Translate(graph, params, sizes, cfg, opts...)
	if err != nil {
		return nil, err
	}
	exe, err := c.Compile(res.Computation)
	if err != nil {
		return nil, err
	}
	return &Compiled{TranslationResult: res, client: c, exe: exe}, nil
}

// ID returns the executable handle.
func (c *Compiled) ID() string {
	return c.exe.ID.String()
}

// Run executes the computation with one tensor per parameter and returns
// one tensor per returned graph value.
func (c *Compiled) Run(ctx context.Context, args ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	return c.client.Execute(ctx, c.exe, args...)
}

// Close unloads the executable from its client.
func (c *Compiled) Close() {
	c.client.Unload(c.exe)
}
