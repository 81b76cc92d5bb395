package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scoped/internal/pipeline"
	"scoped/internal/registry"
	"scoped/internal/session"
	"scoped/pkg/types"
)

// Pipelines is the pipeline lifecycle surface used by the HTTP layer.
type Pipelines interface {
	Pipelines() []types.PipelineInfo
	Load(id string, params pipeline.Params) (uint64, error)
	Unload() error
	Status() types.PipelineStatusResponse
	Ready() bool
	Generation() uint64
	Accelerator() (available bool, reason string)
	LoadsTotal() uint64
	Uptime() time.Duration
}

// Sessions is the peer session surface used by the HTTP layer.
type Sessions interface {
	HandleOffer(ctx context.Context, offer webrtc.SessionDescription) (session.Answer, error)
	Sessions() []types.SessionInfo
	Close(id string) error
	Count() int
}

type server struct {
	pipes     Pipelines
	sessions  Sessions
	modelsDir string
}

// NewMux builds the HTTP API. modelsDir is the already expanded models
// directory used for LoRA listing.
func NewMux(pipes Pipelines, sessions Sessions, modelsDir string) http.Handler {
	s := &server{pipes: pipes, sessions: sessions, modelsDir: modelsDir}
	reg := newRegistry()

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", s.health)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.pipes.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(s.pipes.Status().Status))
	})
	r.Get("/status", s.status)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequestLogger)
		r.Use(middleware.Compress(5, "application/json"))
		r.Get("/pipelines", s.listPipelines)
		r.Post("/pipeline/load", s.loadPipeline)
		r.Post("/pipeline/unload", s.unloadPipeline)
		r.Get("/pipeline/status", s.pipelineStatus)
		r.Post("/webrtc/offer", s.offer)
		r.Get("/sessions", s.listSessions)
		r.Delete("/sessions/{id}", s.closeSession)
		r.Get("/lora/list", s.listLoRA)
	})

	r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	MountSwagger(r)
	return r
}

// decodeJSON enforces a JSON content type and the body size limit.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		// Oversized bodies surface here too; report 400 without size details.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// loadParams flattens JSON load parameters into their string form. Numbers
// keep their literal text; null values are dropped.
func loadParams(raw map[string]any) (pipeline.Params, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(pipeline.Params, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case nil:
		case string:
			out[k] = x
		case json.Number:
			out[k] = x.String()
		case bool:
			out[k] = strconv.FormatBool(x)
		default:
			return nil, fmt.Errorf("load_params.%s must be a string, number or boolean", k)
		}
	}
	return out, nil
}

// health godoc
// @Summary      Health probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Router       /health [get]
func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// status godoc
// @Summary      Combined server status
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (s *server) status(w http.ResponseWriter, r *http.Request) {
	ok, reason := s.pipes.Accelerator()
	now := time.Now()
	writeJSON(w, http.StatusOK, types.StatusResponse{
		Pipeline:             s.pipes.Status(),
		AcceleratorAvailable: ok,
		AcceleratorError:     reason,
		Sessions:             s.sessions.Count(),
		LoadsTotal:           s.pipes.LoadsTotal(),
		UptimeSeconds:        int64(s.pipes.Uptime() / time.Second),
		ServerTimeUnix:       now.Unix(),
	})
}

// listPipelines godoc
// @Summary      List registered pipelines
// @Tags         pipeline
// @Produce      json
// @Success      200  {object}  types.PipelinesResponse
// @Router       /api/v1/pipelines [get]
func (s *server) listPipelines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.PipelinesResponse{Pipelines: s.pipes.Pipelines()})
}

// loadPipeline godoc
// @Summary      Start loading a pipeline
// @Description  Returns immediately. The outcome is reported by the status endpoint.
// @Tags         pipeline
// @Accept       json
// @Produce      json
// @Param        request  body      types.PipelineLoadRequest  true  "Pipeline to load"
// @Success      200      {object}  types.PipelineLoadResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /api/v1/pipeline/load [post]
func (s *server) loadPipeline(w http.ResponseWriter, r *http.Request) {
	var req types.PipelineLoadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.PipelineID)
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "pipeline_id is required")
		return
	}
	params, err := loadParams(req.LoadParams)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	gen, err := s.pipes.Load(id, params)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.PipelineLoadResponse{
		Message:    "Pipeline loading initiated successfully",
		Generation: gen,
	})
}

// unloadPipeline godoc
// @Summary      Unload the current pipeline
// @Tags         pipeline
// @Produce      json
// @Success      200  {object}  types.PipelineUnloadResponse
// @Router       /api/v1/pipeline/unload [post]
func (s *server) unloadPipeline(w http.ResponseWriter, r *http.Request) {
	if err := s.pipes.Unload(); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.PipelineUnloadResponse{
		Message:    "Pipeline unloaded successfully",
		Generation: s.pipes.Generation(),
	})
}

// pipelineStatus godoc
// @Summary      Pipeline lifecycle status
// @Tags         pipeline
// @Produce      json
// @Success      200  {object}  types.PipelineStatusResponse
// @Router       /api/v1/pipeline/status [get]
func (s *server) pipelineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipes.Status())
}

// offer godoc
// @Summary      Negotiate a media session
// @Description  Rejected while no pipeline is loaded.
// @Tags         webrtc
// @Accept       json
// @Produce      json
// @Param        request  body      types.WebRTCOfferRequest  true  "Session description offer"
// @Success      200      {object}  types.WebRTCOfferResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /api/v1/webrtc/offer [post]
func (s *server) offer(w http.ResponseWriter, r *http.Request) {
	var req types.WebRTCOfferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !s.pipes.Ready() {
		IncrementOfferRejected("not_loaded")
		writeJSONError(w, http.StatusBadRequest, errPipelineNotLoaded)
		return
	}
	if strings.TrimSpace(req.SDP) == "" {
		IncrementOfferRejected("empty_sdp")
		writeJSONError(w, http.StatusBadRequest, "sdp is required")
		return
	}
	ctx, cancel := negotiationContext(r.Context())
	defer cancel()
	ans, err := s.sessions.HandleOffer(ctx, webrtc.SessionDescription{
		Type: webrtc.NewSDPType(req.Type),
		SDP:  req.SDP,
	})
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.WebRTCOfferResponse{
		SDP:       ans.Description.SDP,
		Type:      ans.Description.Type.String(),
		SessionID: ans.SessionID,
	})
}

// listSessions godoc
// @Summary      List open sessions
// @Tags         webrtc
// @Produce      json
// @Success      200  {object}  types.SessionsResponse
// @Router       /api/v1/sessions [get]
func (s *server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.SessionsResponse{Sessions: s.sessions.Sessions()})
}

// closeSession godoc
// @Summary      Stop a session
// @Tags         webrtc
// @Param        id   path  string  true  "Session id"
// @Success      204
// @Failure      404  {object}  types.ErrorResponse
// @Router       /api/v1/sessions/{id} [delete]
func (s *server) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "id")); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listLoRA godoc
// @Summary      List LoRA files
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.LoRAFilesResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /api/v1/lora/list [get]
func (s *server) listLoRA(w http.ResponseWriter, r *http.Request) {
	files, err := registry.ScanLoRA(s.modelsDir)
	if err != nil {
		zlog.Error().Err(err).Str("models_dir", s.modelsDir).Msg("list lora files")
		writeJSONError(w, http.StatusInternalServerError, "failed to list LoRA files")
		return
	}
	writeJSON(w, http.StatusOK, types.LoRAFilesResponse{LoRAFiles: files})
}
