// Package pipeline defines the unit of GPU-resident frame processing that the
// lifecycle manager constructs, publishes and releases, plus the built-in
// implementations registered at startup.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Frame is one encoded video frame travelling between transport and pipeline.
type Frame struct {
	Seq       uint64        // per-bridge sequence number, assigned on receipt
	Data      []byte        // encoded payload
	Duration  time.Duration // presentation duration, preserved on output
	Timestamp uint32        // RTP timestamp of the first packet
	Received  time.Time
}

// Pipeline processes frames. A single instance is shared by every live
// session, so Process must be safe for concurrent use. Close is called
// exactly once by the lifecycle manager after the last in-flight Process
// returns.
type Pipeline interface {
	Process(ctx context.Context, in Frame) (Frame, error)
	Close() error
}

// Constructor builds a pipeline. Implementations should return promptly
// once ctx is done; the manager treats a late return as a failed load and
// releases whatever was built.
type Constructor func(ctx context.Context, params Params) (Pipeline, error)

// Params are string-keyed load parameters.
type Params map[string]string

// Clone returns an independent copy.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Encode renders the params as sorted k=v pairs for logging.
func (p Params) Encode() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p[k])
	}
	return b.String()
}

// String returns the value for key or def when absent or blank.
func (p Params) String(key, def string) string {
	if v, ok := p[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// Millis parses key as a non-negative millisecond count.
func (p Params) Millis(key string, def time.Duration) (time.Duration, error) {
	v, ok := p[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("param %s: invalid millisecond value %q", key, v)
	}
	return time.Duration(n) * time.Millisecond, nil
}
