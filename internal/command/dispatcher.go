// Package command implements the narrow IPC boundary the UI issues
// operations across: a batched request/response protocol dispatched
// concurrently while preserving the caller's ordering.
package command

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	coreerrors "github.com/cortex-ide/core/internal/errors"
)

// Handler executes one named operation against a raw JSON payload.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Request is one command within a batch.
type Request struct {
	ID      string          `json:"id"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the matching outcome for a Request with the same ID.
type Response struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Dispatcher routes named operations to registered handlers.
type Dispatcher struct {
	handlers   map[string]Handler
	maxWorkers int
}

// New constructs a Dispatcher. maxWorkers bounds how many requests in
// one batch run concurrently; 0 means unbounded.
func New(maxWorkers int) *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler), maxWorkers: maxWorkers}
}

// Register binds op to handler. Each component registers its own
// operations at wiring time (task.run, task.cancel, diagnostics.filter,
// extension.activate, collab.create, ...).
func (d *Dispatcher) Register(op string, handler Handler) {
	d.handlers[op] = handler
}

// Dispatch runs every request in the batch concurrently (bounded by
// maxWorkers) and returns responses in the same order as the input.
func (d *Dispatcher) Dispatch(ctx context.Context, requests []Request) []Response {
	responses := make([]Response, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	if d.maxWorkers > 0 {
		g.SetLimit(d.maxWorkers)
	}
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			responses[i] = d.runOne(gctx, req)
			return nil
		})
	}
	_ = g.Wait() // runOne never returns an error itself; it's captured per-response
	return responses
}

func (d *Dispatcher) runOne(ctx context.Context, req Request) Response {
	handler, ok := d.handlers[req.Op]
	if !ok {
		return Response{ID: req.ID, Error: coreerrors.NotFound("no handler registered for op %q", req.Op).Error()}
	}
	result, err := handler(ctx, req.Payload)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return Response{ID: req.ID, Result: result}
}
