package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scoped/internal/pipeline"
	"scoped/internal/registry"
)

// fakePipeline records Close calls.
type fakePipeline struct {
	id     string
	closes atomic.Int32
}

func (f *fakePipeline) Process(_ context.Context, in pipeline.Frame) (pipeline.Frame, error) {
	if f.closes.Load() > 0 {
		return pipeline.Frame{}, pipeline.ErrClosed
	}
	return in, nil
}

func (f *fakePipeline) Close() error {
	f.closes.Add(1)
	return nil
}

func (f *fakePipeline) closed() bool { return f.closes.Load() > 0 }

// fakeCtor is a controllable constructor. When gate is non-nil construction
// blocks until the gate is closed (or ctx is done unless ignoreCtx is set).
type fakeCtor struct {
	id        string
	gate      chan struct{}
	ignoreCtx bool
	err       error
	panics    bool

	mu      sync.Mutex
	built   []*fakePipeline
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	started chan struct{}
}

func newFakeCtor(id string) *fakeCtor {
	return &fakeCtor{id: id, started: make(chan struct{}, 16)}
}

func (c *fakeCtor) gated() *fakeCtor {
	c.gate = make(chan struct{})
	return c
}

func (c *fakeCtor) New(ctx context.Context, _ pipeline.Params) (pipeline.Pipeline, error) {
	c.calls.Add(1)
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		m := c.maxSeen.Load()
		if n <= m || c.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case c.started <- struct{}{}:
	default:
	}
	if c.panics {
		panic("boom")
	}
	if c.gate != nil {
		if c.ignoreCtx {
			<-c.gate
		} else {
			select {
			case <-c.gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	p := &fakePipeline{id: c.id}
	c.mu.Lock()
	c.built = append(c.built, p)
	c.mu.Unlock()
	return p, nil
}

func (c *fakeCtor) pipelines() []*fakePipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakePipeline(nil), c.built...)
}

func (c *fakeCtor) last(t *testing.T) *fakePipeline {
	t.Helper()
	ps := c.pipelines()
	if len(ps) == 0 {
		t.Fatalf("constructor %s built nothing", c.id)
	}
	return ps[len(ps)-1]
}

func (c *fakeCtor) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-c.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("constructor %s never started", c.id)
	}
}

func newTestManager(t *testing.T, timeout time.Duration, ctors ...*fakeCtor) (*Manager, *MemoryPublisher) {
	t.Helper()
	reg := registry.New()
	for _, c := range ctors {
		if err := reg.Register(registry.Entry{ID: c.id, Name: c.id, New: c.New}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	pub := NewMemoryPublisher()
	m := New(Config{
		Registry:    reg,
		LoadTimeout: timeout,
		Publisher:   pub,
		Accelerator: func() error { return nil },
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m, pub
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitState(t *testing.T, m *Manager, want State) Snapshot {
	t.Helper()
	waitFor(t, "state "+string(want), func() bool { return m.GetStatus().State == want })
	return m.GetStatus()
}

var errBoom = errors.New("cuda out of memory")
