package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestParamsHelpers(t *testing.T) {
	p := Params{"a": " x ", "blank": "  ", "ms": "250", "bad": "-1"}
	if got := p.String("a", "d"); got != "x" {
		t.Fatalf("String trimmed = %q", got)
	}
	if got := p.String("blank", "d"); got != "d" {
		t.Fatalf("blank should fall back, got %q", got)
	}
	if d, err := p.Millis("ms", 0); err != nil || d != 250*time.Millisecond {
		t.Fatalf("Millis = %v, %v", d, err)
	}
	if d, err := p.Millis("missing", time.Second); err != nil || d != time.Second {
		t.Fatalf("Millis default = %v, %v", d, err)
	}
	if _, err := p.Millis("bad", 0); err == nil {
		t.Fatalf("expected error for negative millis")
	}
	c := p.Clone()
	c["a"] = "changed"
	if p["a"] != " x " {
		t.Fatalf("Clone shares storage")
	}
	if got := (Params{"b": "2", "a": "1"}).Encode(); got != "a=1,b=2" {
		t.Fatalf("Encode = %q", got)
	}
	if Params(nil).Clone() != nil {
		t.Fatalf("nil clone should be nil")
	}
}

func TestPassthrough(t *testing.T) {
	p, err := NewPassthrough(context.Background(), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	in := Frame{Seq: 7, Data: []byte{1, 2, 3}, Duration: 33 * time.Millisecond}
	out, err := p.Process(context.Background(), in)
	if err != nil || out.Seq != 7 || !bytes.Equal(out.Data, in.Data) || out.Duration != in.Duration {
		t.Fatalf("unexpected out=%+v err=%v", out, err)
	}
	_ = p.Close()
	if _, err := p.Process(context.Background(), in); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}

func TestDemo_WarmupHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := NewDemo(ctx, Params{"warmup_ms": "5000"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("construction ignored context")
	}
}

func TestDemo_ProcessCountsFrames(t *testing.T) {
	p, err := NewDemo(context.Background(), Params{"warmup_ms": "0", "latency_ms": "1"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := p.Process(context.Background(), Frame{Seq: uint64(i)}); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if got := p.(*Demo).Frames(); got != 3 {
		t.Fatalf("frames=%d", got)
	}
}

func TestDemo_BadParams(t *testing.T) {
	if _, err := NewDemo(context.Background(), Params{"latency_ms": "abc"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRemote_WaitsForHealthAndProcesses(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			if !healthy.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		case "/process":
			if r.Header.Get("X-Frame-Seq") != "9" {
				http.Error(w, "missing seq", http.StatusBadRequest)
				return
			}
			b, _ := io.ReadAll(r.Body)
			_, _ = w.Write(bytes.ToUpper(b))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	go func() {
		time.Sleep(300 * time.Millisecond)
		healthy.Store(true)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := NewRemote(ctx, Params{"endpoint": srv.URL + "/"})
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}
	defer p.Close()
	out, err := p.Process(ctx, Frame{Seq: 9, Data: []byte("abc")})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if string(out.Data) != "ABC" || out.Seq != 9 {
		t.Fatalf("unexpected out: %+v", out)
	}
}

func TestRemote_Errors(t *testing.T) {
	if _, err := NewRemote(context.Background(), Params{}); err == nil {
		t.Fatalf("expected missing endpoint error")
	}
	if _, err := NewRemote(context.Background(), Params{"endpoint": "ftp://x"}); err == nil {
		t.Fatalf("expected invalid endpoint error")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := NewRemote(ctx, Params{"endpoint": srv.URL}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestRemote_ProcessHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			return
		}
		http.Error(w, "gpu on fire", http.StatusInternalServerError)
	}))
	defer srv.Close()
	p, err := NewRemote(context.Background(), Params{"endpoint": srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer p.Close()
	if _, err := p.Process(context.Background(), Frame{Data: []byte("x")}); err == nil {
		t.Fatalf("expected http error")
	}
}
