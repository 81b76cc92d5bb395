package pipeline

import (
	"context"
	"sync/atomic"
	"time"
)

// NewPassthrough returns frames unchanged.
func NewPassthrough(ctx context.Context, _ Params) (Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &passthrough{}, nil
}

type passthrough struct{ closed atomic.Bool }

func (p *passthrough) Process(ctx context.Context, in Frame) (Frame, error) {
	if p.closed.Load() {
		return Frame{}, ErrClosed
	}
	return in, ctx.Err()
}

func (p *passthrough) Close() error {
	p.closed.Store(true)
	return nil
}

// Demo simulates a generative model: construction takes warmup_ms and each
// frame takes latency_ms. Frame payloads are forwarded unchanged.
type Demo struct {
	latency time.Duration
	frames  atomic.Uint64
	closed  atomic.Bool
}

// NewDemo builds a Demo pipeline.
func NewDemo(ctx context.Context, params Params) (Pipeline, error) {
	warmup, err := params.Millis("warmup_ms", 200*time.Millisecond)
	if err != nil {
		return nil, err
	}
	latency, err := params.Millis("latency_ms", 0)
	if err != nil {
		return nil, err
	}
	if err := sleepCtx(ctx, warmup); err != nil {
		return nil, err
	}
	return &Demo{latency: latency}, nil
}

func (d *Demo) Process(ctx context.Context, in Frame) (Frame, error) {
	if d.closed.Load() {
		return Frame{}, ErrClosed
	}
	if err := sleepCtx(ctx, d.latency); err != nil {
		return Frame{}, err
	}
	d.frames.Add(1)
	return in, nil
}

// Frames reports how many frames were processed.
func (d *Demo) Frames() uint64 { return d.frames.Load() }

func (d *Demo) Close() error {
	d.closed.Store(true)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
