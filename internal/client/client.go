// Package client connects finalized computations to an execution backend.
//
// A Client compiles computations into executables, holds device-side data
// handles, and runs executables against either host tensors or handles.
// Clients are constructed explicitly with New; Shared returns a lazily
// created process-wide instance for callers that want one.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/born-ml/lower/internal/backend/cpu"
	"github.com/born-ml/lower/internal/hlo"
	"github.com/born-ml/lower/internal/lower"
	"github.com/born-ml/lower/internal/tensor"
)

// Executable is a compiled computation.
type Executable struct {
	ID   uuid.UUID
	comp *hlo.Computation
}

// Name returns the name of the computation the executable was compiled from.
func (e *Executable) Name() string {
	return e.comp.Name()
}

// ProgramShape returns the parameter shapes and the result shape.
func (e *Executable) ProgramShape() ([]hlo.Shape, hlo.Shape) {
	return e.comp.ProgramShape()
}

// Data is a handle to a tensor held by the client.
type Data struct {
	ID    lower.DataID
	Shape hlo.Shape
}

// Client compiles and executes computations. It is safe for concurrent use.
type Client struct {
	backend *cpu.CPUBackend
	logger  *slog.Logger

	nextID atomic.Uint64

	mu          sync.Mutex
	executables map[uuid.UUID]*Executable
	data        map[lower.DataID]*tensor.RawTensor
}

// New creates a client backed by the host CPU.
func New() *Client {
	return NewWithLogger(slog.Default())
}

// NewWithLogger creates a client that logs through logger.
func NewWithLogger(logger *slog.Logger) *Client {
	return &Client{
		backend:     cpu.New().WithLogger(logger),
		logger:      logger,
		executables: make(map[uuid.UUID]*Executable),
		data:        make(map[lower.DataID]*tensor.RawTensor),
	}
}

var shared = sync.OnceValue(New)

// Shared returns the process-wide client, creating it on first use.
func Shared() *Client {
	return shared()
}

// Platform names the backend executables run on.
func (c *Client) Platform() string {
	return c.backend.Name()
}

// Compile registers comp for execution.
func (c *Client) Compile(comp *hlo.Computation) (*Executable, error) {
	if comp == nil {
		return nil, fmt.Errorf("compile: nil computation")
	}
	exe := &Executable{ID: uuid.New(), comp: comp}

	c.mu.Lock()
	c.executables[exe.ID] = exe
	c.mu.Unlock()

	c.logger.Debug("compiled computation", "name", comp.Name(), "id", exe.ID, "ops", len(comp.Ops()))
	return exe, nil
}

// Lookup returns a previously compiled executable.
func (c *Client) Lookup(id uuid.UUID) (*Executable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exe, ok := c.executables[id]
	return exe, ok
}

// Unload forgets a compiled executable.
func (c *Client) Unload(exe *Executable) {
	c.mu.Lock()
	delete(c.executables, exe.ID)
	c.mu.Unlock()
}

// Execute runs exe with host tensors as arguments. Tuple results are
// flattened, one tensor per array element.
func (c *Client) Execute(ctx context.Context, exe *Executable, args ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if _, ok := c.Lookup(exe.ID); !ok {
		return nil, fmt.Errorf("execute: executable %s is not loaded", exe.ID)
	}
	return c.backend.Execute(ctx, exe.comp, args...)
}

// ExecuteData runs exe with client-held data as arguments, in parameter order.
func (c *Client) ExecuteData(ctx context.Context, exe *Executable, ids ...lower.DataID) ([]*tensor.RawTensor, error) {
	args := make([]*tensor.RawTensor, len(ids))
	for i, id := range ids {
		raw, err := c.Fetch(id)
		if err != nil {
			return nil, fmt.Errorf("execute: argument %d: %w", i, err)
		}
		args[i] = raw
	}
	return c.Execute(ctx, exe, args...)
}

// TransferToServer copies raw into client storage and returns its handle.
func (c *Client) TransferToServer(raw *tensor.RawTensor) *Data {
	id := lower.DataID(c.nextID.Add(1))
	c.mu.Lock()
	c.data[id] = raw.Clone()
	c.mu.Unlock()
	return &Data{ID: id, Shape: hlo.MakeShape(raw.DType(), raw.Shape()...)}
}

// Fetch returns a copy of the tensor behind id.
func (c *Client) Fetch(id lower.DataID) (*tensor.RawTensor, error) {
	c.mu.Lock()
	raw, ok := c.data[id]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("data %d not found", id)
	}
	return raw.Clone(), nil
}

// Release frees the tensor behind id. Releasing an unknown id is a no-op.
func (c *Client) Release(id lower.DataID) {
	c.mu.Lock()
	delete(c.data, id)
	c.mu.Unlock()
}
