// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lower

import (
	"context"
	"fmt"

	"github.com/born-ml/lower/internal/client"
	"github.com/born-ml/lower/internal/hlo"
	internallower "github.com/born-ml/lower/internal/lower"
	"github.com/born-ml/lower/internal/tensor"
)

// Computation assembly types.
type (
	// LoweringContext assembles a computation from ops built directly on its
	// Builder: parameters are deduplicated by DataID and results accumulate
	// into a tuple root.
	LoweringContext = internallower.LoweringContext
	// DataID is the handle of data held by the shared client.
	DataID = internallower.DataID
	// OutputKey names an op handed to a downstream consumer.
	OutputKey = internallower.OutputKey

	Builder      = hlo.Builder
	Op           = hlo.Op
	BackendShape = hlo.Shape
)

// NewLoweringContext creates a context building a computation called name.
func NewLoweringContext(name string) *LoweringContext {
	return internallower.NewLoweringContext(name)
}

// MakeShape returns an array shape for GetOrCreateParameter.
func MakeShape(dtype tensor.DataType, dims ...int) BackendShape {
	return hlo.MakeShape(dtype, dims...)
}

// Transfer copies raw into the shared client and returns its handle and
// backend shape.
func Transfer(raw *tensor.RawTensor) (DataID, BackendShape) {
	d := client.Shared().TransferToServer(raw)
	return d.ID, d.Shape
}

// Fetch returns a copy of the data behind id.
func Fetch(id DataID) (*tensor.RawTensor, error) {
	return client.Shared().Fetch(id)
}

// Release frees the data behind id.
func Release(id DataID) {
	client.Shared().Release(id)
}

// Assembled is a computation built through a LoweringContext and loaded on
// the shared client. Its parameters are bound to the data handles the
// context was given.
type Assembled struct {
	Computation *Computation
	params      []DataID
	client      *client.Client
	exe         *client.Executable
}

// CompileAssembled finalizes lc and loads the computation on the shared
// client.
func CompileAssembled(lc *LoweringContext) (*Assembled, error) {
	comp, err := lc.Build()
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	c := client.Shared()
	exe, err := c.Compile(comp)
	if err != nil {
		return nil, err
	}
	return &Assembled{Computation: comp, params: lc.ParametersData(), client: c, exe: exe}, nil
}

// Parameters returns the data handles bound to the parameters, in order.
func (a *Assembled) Parameters() []DataID {
	return append([]DataID(nil), a.params...)
}

// Run executes the computation on the data behind its parameter handles.
func (a *Assembled) Run(ctx context.Context) ([]*tensor.RawTensor, error) {
	return a.client.ExecuteData(ctx, a.exe, a.params...)
}

// Close unloads the executable.
func (a *Assembled) Close() {
	a.client.Unload(a.exe)
}
