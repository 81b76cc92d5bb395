// Package bridge pumps frames between a session's inbound track, the
// currently loaded pipeline and the session's outbound track.
//
// A Bridge never caches a pipeline: every frame resolves the current one
// through a Resolver and holds a Lease only while that frame is processed.
package bridge

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"scoped/internal/manager"
	"scoped/internal/pipeline"
	"scoped/pkg/types"
)

const (
	DefaultQueueCapacity = 2
	DefaultFrameTimeout  = 2 * time.Second
)

// Frame is the unit moved through the bridge.
type Frame = pipeline.Frame

// Source yields inbound frames. ReadFrame returns io.EOF once the track ends.
type Source interface {
	ReadFrame(ctx context.Context) (pipeline.Frame, error)
}

// Sink receives processed frames.
type Sink interface {
	WriteFrame(f pipeline.Frame) error
}

// Lease pins one pipeline for one frame.
type Lease interface {
	Pipeline() pipeline.Pipeline
	Generation() uint64
	Release()
}

// Resolver hands out the current pipeline, if any.
type Resolver interface {
	Acquire() (Lease, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func() (Lease, bool)

func (f ResolverFunc) Acquire() (Lease, bool) { return f() }

// FromManager resolves pipelines through the lifecycle manager.
func FromManager(m *manager.Manager) Resolver {
	return ResolverFunc(func() (Lease, bool) {
		l, ok := m.Acquire()
		if !ok {
			return nil, false
		}
		return l, true
	})
}

// Config configures a Bridge.
type Config struct {
	Mid           string
	Resolver      Resolver
	Source        Source
	Sink          Sink
	QueueCapacity int
	FrameTimeout  time.Duration
	// OnPipelineChange runs on the pump goroutine when a frame is about to
	// be processed by a different pipeline generation than the previous one.
	OnPipelineChange func(gen uint64)
	Logger           *zerolog.Logger
}

// Bridge is a per media line frame pump.
type Bridge struct {
	mid      string
	res      Resolver
	src      Source
	sink     Sink
	timeout  time.Duration
	onChange func(uint64)
	log      zerolog.Logger
	in       *inbox

	seq          atomic.Uint64
	received     atomic.Uint64
	processed    atomic.Uint64
	overflow     atomic.Uint64
	unloaded     atomic.Uint64
	timedOut     atomic.Uint64
	errs         atomic.Uint64
	gen          atomic.Uint64
	lastActivity atomic.Int64
}

// New constructs a Bridge. Run starts it.
func New(cfg Config) *Bridge {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = DefaultFrameTimeout
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Bridge{
		mid:      cfg.Mid,
		res:      cfg.Resolver,
		src:      cfg.Source,
		sink:     cfg.Sink,
		timeout:  cfg.FrameTimeout,
		onChange: cfg.OnPipelineChange,
		log:      log.With().Str("component", "bridge").Str("mid", cfg.Mid).Logger(),
		in:       newInbox(cfg.QueueCapacity),
	}
}

// Run pumps frames until the source ends or ctx is done. A frame already
// submitted to a pipeline is not aborted when ctx is canceled; it finishes
// or times out on its own bound.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	activeBridges.Inc()
	defer activeBridges.Dec()

	readErr := make(chan error, 1)
	go func() { readErr <- b.readLoop(ctx) }()

	b.log.Debug().Msg("bridge started")
	for {
		f, ok := b.in.pop(ctx)
		if !ok {
			break
		}
		b.handle(ctx, f)
	}
	var err error
	select {
	case err = <-readErr:
	case <-ctx.Done():
		// The reader exits once the source unblocks (the track is closed).
	}
	st := b.Stats()
	b.log.Debug().Uint64("received", st.Received).Uint64("processed", st.Processed).Uint64("dropped", st.Dropped).Msg("bridge stopped")
	return err
}

func (b *Bridge) readLoop(ctx context.Context) error {
	defer b.in.close()
	for {
		f, err := b.src.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		f.Seq = b.seq.Add(1)
		if f.Received.IsZero() {
			f.Received = time.Now()
		}
		b.received.Add(1)
		framesTotal.WithLabelValues("received").Inc()
		if b.in.push(f) {
			b.overflow.Add(1)
			framesTotal.WithLabelValues("overflow").Inc()
		}
	}
}

func (b *Bridge) handle(ctx context.Context, f pipeline.Frame) {
	lease, ok := b.res.Acquire()
	if !ok {
		b.unloaded.Add(1)
		framesTotal.WithLabelValues("unloaded").Inc()
		return
	}
	gen := lease.Generation()
	if prev := b.gen.Swap(gen); prev != gen {
		b.log.Debug().Uint64("generation", gen).Uint64("previous", prev).Msg("bridge pipeline changed")
		if b.onChange != nil {
			b.onChange(gen)
		}
	}

	out, err := b.process(ctx, lease, f)
	switch {
	case errors.Is(err, errFrameTimeout):
		b.timedOut.Add(1)
		framesTotal.WithLabelValues("timeout").Inc()
		return
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return
	case err != nil:
		b.errs.Add(1)
		framesTotal.WithLabelValues("error").Inc()
		b.log.Debug().Uint64("seq", f.Seq).Err(err).Msg("pipeline process failed")
		return
	}
	if out.Duration <= 0 {
		out.Duration = f.Duration
	}
	if out.Timestamp == 0 {
		out.Timestamp = f.Timestamp
	}
	if err := b.sink.WriteFrame(out); err != nil {
		b.errs.Add(1)
		framesTotal.WithLabelValues("error").Inc()
		b.log.Debug().Uint64("seq", f.Seq).Err(err).Msg("write sample failed")
		return
	}
	b.processed.Add(1)
	b.lastActivity.Store(time.Now().UnixNano())
	framesTotal.WithLabelValues("processed").Inc()
	processLatency.Observe(time.Since(f.Received).Seconds())
}

var errFrameTimeout = errors.New("frame processing timed out")

type processResult struct {
	out pipeline.Frame
	err error
}

// process runs one frame on the leased pipeline in its own goroutine so the
// pump can give up after the frame timeout. The lease is released when
// Process returns, not when the pump stops waiting.
func (b *Bridge) process(ctx context.Context, lease Lease, f pipeline.Frame) (pipeline.Frame, error) {
	pctx, pcancel := context.WithTimeout(context.Background(), b.timeout)
	ch := make(chan processResult, 1)
	go func() {
		defer lease.Release()
		defer pcancel()
		out, err := lease.Pipeline().Process(pctx, f)
		ch <- processResult{out: out, err: err}
	}()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return pipeline.Frame{}, errFrameTimeout
		}
		return r.out, r.err
	case <-timer.C:
		return pipeline.Frame{}, errFrameTimeout
	case <-ctx.Done():
		return pipeline.Frame{}, ctx.Err()
	}
}

// Stats is a point-in-time view of the bridge counters.
type Stats struct {
	Mid          string
	Received     uint64
	Processed    uint64
	Dropped      uint64
	Overflow     uint64
	Unloaded     uint64
	TimedOut     uint64
	Errors       uint64
	Generation   uint64
	LastActivity time.Time
}

func (b *Bridge) Stats() Stats {
	s := Stats{
		Mid:        b.mid,
		Received:   b.received.Load(),
		Processed:  b.processed.Load(),
		Overflow:   b.overflow.Load(),
		Unloaded:   b.unloaded.Load(),
		TimedOut:   b.timedOut.Load(),
		Errors:     b.errs.Load(),
		Generation: b.gen.Load(),
	}
	s.Dropped = s.Overflow + s.Unloaded + s.TimedOut + s.Errors
	if ns := b.lastActivity.Load(); ns != 0 {
		s.LastActivity = time.Unix(0, ns)
	}
	return s
}

// Info converts s to its wire representation.
func (s Stats) Info() types.BridgeStats {
	return types.BridgeStats{
		Mid:        s.Mid,
		Received:   s.Received,
		Processed:  s.Processed,
		Dropped:    s.Dropped,
		Overflow:   s.Overflow,
		Unloaded:   s.Unloaded,
		TimedOut:   s.TimedOut,
		Errors:     s.Errors,
		Generation: s.Generation,
	}
}
