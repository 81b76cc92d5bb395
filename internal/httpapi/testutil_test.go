package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"scoped/internal/manager"
	"scoped/internal/pipeline"
	"scoped/internal/session"
	"scoped/pkg/types"
)

type fakePipelines struct {
	mu       sync.Mutex
	ready    bool
	status   types.PipelineStatusResponse
	loadErr  error
	loaded   []string
	params   []pipeline.Params
	gen      uint64
	unloads  int
	accelOK  bool
	accelWhy string
}

func (f *fakePipelines) Pipelines() []types.PipelineInfo {
	return []types.PipelineInfo{{ID: "demo", Name: "Demo"}, {ID: "passthrough", Name: "Passthrough"}}
}

func (f *fakePipelines) Load(id string, params pipeline.Params) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if f.loadErr != nil {
		return f.gen, f.loadErr
	}
	f.loaded = append(f.loaded, id)
	f.params = append(f.params, params)
	return f.gen, nil
}

func (f *fakePipelines) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.unloads++
	f.ready = false
	return nil
}

func (f *fakePipelines) Status() types.PipelineStatusResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.status
	s.Generation = f.gen
	return s
}

func (f *fakePipelines) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakePipelines) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

func (f *fakePipelines) Accelerator() (bool, string) { return f.accelOK, f.accelWhy }
func (f *fakePipelines) LoadsTotal() uint64          { return f.Generation() }
func (f *fakePipelines) Uptime() time.Duration       { return 90 * time.Second }

type fakeSessions struct {
	mu       sync.Mutex
	offers   []webrtc.SessionDescription
	offerErr error
	block    bool
	open     map[string]bool
}

func (f *fakeSessions) HandleOffer(ctx context.Context, offer webrtc.SessionDescription) (session.Answer, error) {
	f.mu.Lock()
	f.offers = append(f.offers, offer)
	block, err := f.block, f.offerErr
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return session.Answer{}, ctx.Err()
	}
	if err != nil {
		return session.Answer{}, err
	}
	return session.Answer{
		SessionID:   "s-1",
		Description: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"},
	}, nil
}

func (f *fakeSessions) Sessions() []types.SessionInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.SessionInfo
	for id := range f.open {
		out = append(out, types.SessionInfo{ID: id, State: "connected"})
	}
	return out
}

func (f *fakeSessions) Close(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open[id] {
		return session.ErrSessionNotFound(id)
	}
	delete(f.open, id)
	return nil
}

func (f *fakeSessions) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.open)
}

func newTestMux(t *testing.T, p *fakePipelines, s *fakeSessions) http.Handler {
	t.Helper()
	if p == nil {
		p = &fakePipelines{}
	}
	if s == nil {
		s = &fakeSessions{}
	}
	return NewMux(p, s, t.TempDir())
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return serve(h, req)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var errBoom = errors.New("boom")

var _ Pipelines = (*manager.Manager)(nil)
var _ Sessions = (*session.Manager)(nil)
