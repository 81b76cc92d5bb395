package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"scoped/internal/bridge"
	"scoped/internal/common/fsutil"
	"scoped/internal/config"
	"scoped/internal/httpapi"
	"scoped/internal/logging"
	"scoped/internal/manager"
	"scoped/internal/pipeline"
	"scoped/internal/registry"
	"scoped/internal/session"
)

// app is the wired server. It is separate from runServe so tests can drive
// it on an ephemeral listener.
type app struct {
	log       zerolog.Logger
	cfg       config.Config
	modelsDir string
	pipelines *manager.Manager
	sessions  *session.Manager
	handler   http.Handler
}

func newApp(cfg config.Config, log zerolog.Logger) (*app, error) {
	modelsDir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("models dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(modelsDir, "lora"), 0o755); err != nil {
		// LoRA listing degrades to an empty result; serving continues.
		log.Warn().Err(err).Str("models_dir", modelsDir).Msg("cannot create models directory")
	}

	mgr := manager.New(manager.Config{
		Registry:    registry.Default(),
		LoadTimeout: cfg.LoadTimeout.D(),
		Logger:      &log,
		Publisher:   manager.NewLogPublisher(log),
	})
	sess, err := session.New(session.Config{
		Resolver:      bridge.FromManager(mgr),
		ICEServers:    iceServers(cfg.ICEServers),
		GatherTimeout: cfg.GatherTimeout.D(),
		ShutdownGrace: cfg.ShutdownGrace.D(),
		FrameTimeout:  cfg.FrameTimeout.D(),
		QueueCapacity: cfg.QueueCapacity,
		UDPPortMin:    cfg.UDPPortMin,
		UDPPortMax:    cfg.UDPPortMax,
		Logger:        &log,
	})
	if err != nil {
		_ = mgr.Close(context.Background())
		return nil, fmt.Errorf("session manager: %w", err)
	}

	httpapi.SetLogger(log)
	httpapi.SetRequestLogLevel(cfg.LogLevel)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)

	return &app{
		log:       log,
		cfg:       cfg,
		modelsDir: modelsDir,
		pipelines: mgr,
		sessions:  sess,
		handler:   httpapi.NewMux(mgr, sess, modelsDir),
	}, nil
}

// serve runs the HTTP server on ln until ctx is done, then shuts down the
// server, the sessions and the pipeline manager in that order.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	httpapi.SetBaseContext(ctx)
	// Pre-warm never blocks readiness; the outcome shows up in status.
	a.pipelines.Prewarm(a.cfg.Pipeline, pipeline.Params(a.cfg.PipelineParams))

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", ln.Addr().String()).Str("models_dir", a.modelsDir).Msg("scoped listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	grace := a.cfg.ShutdownGrace.D() + 5*time.Second
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Warn().Err(err).Msg("http shutdown")
	}
	if err := a.sessions.Shutdown(sctx); err != nil {
		a.log.Warn().Err(err).Msg("session shutdown")
	}
	if err := a.pipelines.Close(sctx); err != nil {
		a.log.Warn().Err(err).Msg("pipeline manager shutdown")
	}
	a.log.Info().Msg("scoped stopped")
	return serveErr
}

func runServe(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = a.sessions.Shutdown(context.Background())
		_ = a.pipelines.Close(context.Background())
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return a.serve(ctx, ln)
}

func iceServers(in []config.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(in))
	for _, s := range in {
		ice := webrtc.ICEServer{URLs: append([]string(nil), s.URLs...), Username: s.Username}
		if s.Credential != "" {
			ice.Credential = s.Credential
		}
		out = append(out, ice)
	}
	return out
}
