package bridge

import (
	"context"

	"scoped/internal/pipeline"
)

// inbox is a bounded single-producer queue that favours freshness: pushing
// onto a full queue evicts the oldest frame.
type inbox struct {
	ch chan pipeline.Frame
}

func newInbox(capacity int) *inbox {
	return &inbox{ch: make(chan pipeline.Frame, capacity)}
}

// push enqueues f and reports whether an older frame was evicted for it.
// It must only be called from the producer goroutine.
func (q *inbox) push(f pipeline.Frame) (evicted bool) {
	for {
		select {
		case q.ch <- f:
			return evicted
		default:
		}
		select {
		case <-q.ch:
			evicted = true
		default:
		}
	}
}

// pop blocks for the next frame. ok is false once the producer closed the
// queue and it is drained, or ctx is done.
func (q *inbox) pop(ctx context.Context) (pipeline.Frame, bool) {
	select {
	case f, ok := <-q.ch:
		return f, ok
	case <-ctx.Done():
		return pipeline.Frame{}, false
	}
}

func (q *inbox) close() { close(q.ch) }

func (q *inbox) len() int { return len(q.ch) }
