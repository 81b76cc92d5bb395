package bridge

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scoped/internal/pipeline"
)

// chanSource yields frames sent on ch and io.EOF once ch is closed.
type chanSource struct {
	ch chan Frame
}

func newChanSource() *chanSource { return &chanSource{ch: make(chan Frame)} }

func (s *chanSource) ReadFrame(ctx context.Context) (Frame, error) {
	select {
	case f, ok := <-s.ch:
		if !ok {
			return Frame{}, io.EOF
		}
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// burstSource yields n frames back to back, then io.EOF.
type burstSource struct {
	n    int
	sent int
}

func (s *burstSource) ReadFrame(ctx context.Context) (Frame, error) {
	if s.sent >= s.n {
		return Frame{}, io.EOF
	}
	s.sent++
	return Frame{Data: []byte{byte(s.sent)}, Duration: 33 * time.Millisecond}, nil
}

// recSink records written frames.
type recSink struct {
	mu     sync.Mutex
	frames []Frame
}

func (s *recSink) WriteFrame(f Frame) error {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
	return nil
}

func (s *recSink) got() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

func (s *recSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// tagPipeline prefixes frame data with tag after an optional delay.
type tagPipeline struct {
	tag     string
	latency time.Duration
	block   chan struct{} // when set, Process ignores ctx and waits on it
}

func (p *tagPipeline) Process(ctx context.Context, in Frame) (Frame, error) {
	if p.block != nil {
		<-p.block
	}
	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
	out := in
	out.Data = append([]byte(p.tag), in.Data...)
	return out, nil
}

func (p *tagPipeline) Close() error { return nil }

// fakeResolver serves a swappable pipeline and counts lease releases.
type fakeResolver struct {
	mu       sync.Mutex
	p        pipeline.Pipeline
	gen      uint64
	acquired atomic.Int64
	released atomic.Int64
}

func (r *fakeResolver) set(p pipeline.Pipeline, gen uint64) {
	r.mu.Lock()
	r.p, r.gen = p, gen
	r.mu.Unlock()
}

func (r *fakeResolver) Acquire() (Lease, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.p == nil {
		return nil, false
	}
	r.acquired.Add(1)
	return &fakeLease{r: r, p: r.p, gen: r.gen}, true
}

type fakeLease struct {
	r    *fakeResolver
	p    pipeline.Pipeline
	gen  uint64
	once sync.Once
}

func (l *fakeLease) Pipeline() pipeline.Pipeline { return l.p }
func (l *fakeLease) Generation() uint64          { return l.gen }
func (l *fakeLease) Release()                    { l.once.Do(func() { l.r.released.Add(1) }) }

// runBridge starts b and returns a function that waits for Run to return.
func runBridge(t *testing.T, ctx context.Context, b *Bridge) func() error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	return func() error {
		t.Helper()
		select {
		case err := <-done:
			return err
		case <-time.After(3 * time.Second):
			t.Fatalf("bridge did not stop")
			return nil
		}
	}
}

// feed sends f and waits until the bridge has accounted for it.
func feed(t *testing.T, src *chanSource, b *Bridge, f Frame) {
	t.Helper()
	before := b.Stats()
	src.ch <- f
	waitFor(t, "frame accounted", func() bool {
		s := b.Stats()
		return s.Processed+s.Dropped > before.Processed+before.Dropped
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func hasPrefix(f Frame, tag string) bool { return bytes.HasPrefix(f.Data, []byte(tag)) }
