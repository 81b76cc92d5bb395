package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	remoteFrameLimit    = 16 << 20
	remoteHealthEvery   = 250 * time.Millisecond
	remoteHealthTimeout = 2 * time.Second
)

// remote forwards frames to an inference worker over HTTP. The worker is
// expected to expose GET /health (2xx once the model is resident) and
// POST /process taking and returning one encoded frame.
type remote struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemote builds a pipeline backed by the worker at params["endpoint"].
// Construction blocks until the worker reports healthy or ctx is done.
func NewRemote(ctx context.Context, params Params) (Pipeline, error) {
	endpoint := params.String("endpoint", "")
	if endpoint == "" {
		return nil, errors.New("remote pipeline: endpoint param is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("remote pipeline: invalid endpoint %q", endpoint)
	}
	connectTimeout, err := params.Millis("connect_timeout_ms", 5*time.Second)
	if err != nil {
		return nil, err
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	// Timeout=0: every request carries its own context deadline.
	r := &remote{
		baseURL:    strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Transport: tr, Timeout: 0},
	}
	if err := r.waitHealthy(ctx); err != nil {
		tr.CloseIdleConnections()
		return nil, err
	}
	return r, nil
}

func (r *remote) isHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, remoteHealthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (r *remote) waitHealthy(ctx context.Context) error {
	t := time.NewTicker(remoteHealthEvery)
	defer t.Stop()
	for {
		if r.isHealthy(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("remote pipeline %s not healthy: %w", r.baseURL, ctx.Err())
		case <-t.C:
		}
	}
}

func (r *remote) Process(ctx context.Context, in Frame) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/process", bytes.NewReader(in.Data))
	if err != nil {
		return Frame{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Frame-Seq", strconv.FormatUint(in.Seq, 10))
	req.Header.Set("X-Frame-Timestamp", strconv.FormatUint(uint64(in.Timestamp), 10))
	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		return Frame{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Frame{}, fmt.Errorf("remote pipeline http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, remoteFrameLimit))
	if err != nil {
		return Frame{}, err
	}
	out := in
	out.Data = data
	return out, nil
}

func (r *remote) Close() error {
	if tr, ok := r.httpClient.Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
	return nil
}
