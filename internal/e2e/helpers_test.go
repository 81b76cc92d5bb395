package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"scoped/internal/bridge"
	"scoped/internal/httpapi"
	"scoped/internal/manager"
	"scoped/internal/registry"
	"scoped/internal/session"
	"scoped/pkg/types"
)

type stack struct {
	srv      *httptest.Server
	pipes    *manager.Manager
	sessions *session.Manager
	events   *manager.MemoryPublisher
}

// newStack wires a real manager, session manager and HTTP API together.
func newStack(t *testing.T) *stack {
	t.Helper()
	pub := manager.NewMemoryPublisher()
	mgr := manager.New(manager.Config{
		Registry:    registry.Default(),
		LoadTimeout: 5 * time.Second,
		Publisher:   pub,
		Accelerator: func() error { return nil },
	})
	sess, err := session.New(session.Config{
		Resolver:        bridge.FromManager(mgr),
		GatherTimeout:   2 * time.Second,
		ShutdownGrace:   200 * time.Millisecond,
		FrameTimeout:    time.Second,
		IncludeLoopback: true,
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(mgr, sess, t.TempDir()))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sess.Shutdown(ctx)
		_ = mgr.Close(ctx)
	})
	return &stack{srv: srv, pipes: mgr, sessions: sess, events: pub}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func (s *stack) status(t *testing.T) types.PipelineStatusResponse {
	t.Helper()
	_, body := httpGet(t, s.srv.URL+"/api/v1/pipeline/status")
	var st types.PipelineStatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("status json: %v body=%s", err, body)
	}
	return st
}

// waitStatus polls the status endpoint until it reports want.
func (s *stack) waitStatus(t *testing.T, want string, within time.Duration) types.PipelineStatusResponse {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		st := s.status(t)
		if st.Status == want {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("status did not become %q; last=%+v", want, st)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// newClient builds a loopback pion peer with one sendrecv VP8 track and
// returns it with its gathered offer.
func newClient(t *testing.T) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, webrtc.SessionDescription) {
	t.Helper()
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		t.Fatalf("codecs: %v", err)
	}
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	api := webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se))
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("client pc: %v", err)
	}
	t.Cleanup(func() { _ = pc.Close() })
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "client")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		t.Fatalf("add track: %v", err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatalf("set local: %v", err)
	}
	select {
	case <-gathered:
	case <-time.After(3 * time.Second):
	}
	return pc, track, *pc.LocalDescription()
}
