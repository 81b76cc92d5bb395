package types

// PipelineLoadRequest is the payload for POST /api/v1/pipeline/load.
type PipelineLoadRequest struct {
	// Identifier of the pipeline to load.
	// example: demo
	PipelineID string `json:"pipeline_id" example:"demo"`
	// Optional constructor parameters. Scalar values (string, number,
	// bool) are accepted; nested objects and arrays are rejected.
	// example: {"warmup_ms":500}
	LoadParams map[string]any `json:"load_params,omitempty" swaggertype:"object"`
}

// PipelineLoadResponse acknowledges a load request. The outcome is only
// observable via GET /api/v1/pipeline/status.
type PipelineLoadResponse struct {
	// example: Pipeline loading initiated successfully
	Message string `json:"message" example:"Pipeline loading initiated successfully"`
	// Generation assigned to this load attempt.
	// example: 3
	Generation uint64 `json:"generation" example:"3"`
}

// PipelineUnloadResponse acknowledges an unload request.
type PipelineUnloadResponse struct {
	// example: Pipeline unloaded successfully
	Message string `json:"message" example:"Pipeline unloaded successfully"`
	// Generation after the unload.
	// example: 4
	Generation uint64 `json:"generation" example:"4"`
}

// PipelineStatusResponse is returned by GET /api/v1/pipeline/status.
type PipelineStatusResponse struct {
	// One of unloaded, loading, loaded, error.
	// example: loaded
	Status string `json:"status" example:"loaded"`
	// Pipeline the current state refers to.
	// example: demo
	PipelineID string `json:"pipeline_id,omitempty" example:"demo"`
	// Load parameters of the current attempt.
	LoadParams map[string]string `json:"load_params,omitempty"`
	// Error message when status is error.
	ErrorMessage string `json:"error_message,omitempty"`
	// Error class when status is error (not_found, construction_failure, timeout, resource_unavailable).
	// example: timeout
	ErrorKind string `json:"error_kind,omitempty" example:"timeout"`
	// Time spent loading, in milliseconds.
	// example: 1520
	ElapsedMS *int64 `json:"elapsed_ms,omitempty" example:"1520"`
	// Generation of the current load attempt.
	// example: 3
	Generation uint64 `json:"generation" example:"3"`
	// Time the pipeline became loaded (unix seconds).
	LoadedAt int64 `json:"loaded_at,omitempty"`
}

// WebRTCOfferRequest carries a session description offer.
type WebRTCOfferRequest struct {
	// SDP body.
	SDP string `json:"sdp"`
	// Description type, must be "offer".
	// example: offer
	Type string `json:"type" example:"offer"`
}

// WebRTCOfferResponse carries the session description answer.
type WebRTCOfferResponse struct {
	// SDP body.
	SDP string `json:"sdp"`
	// Description type, always "answer".
	// example: answer
	Type string `json:"type" example:"answer"`
	// Identifier of the session created for this offer.
	SessionID string `json:"session_id,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Server time, RFC 3339.
	// example: 2025-01-01T12:00:00Z
	Timestamp string `json:"timestamp" example:"2025-01-01T12:00:00Z"`
}

// PipelinesResponse wraps the list returned by GET /api/v1/pipelines.
type PipelinesResponse struct {
	Pipelines []PipelineInfo `json:"pipelines"`
}

// LoRAFilesResponse wraps the list returned by GET /api/v1/lora/list.
type LoRAFilesResponse struct {
	LoRAFiles []LoRAFileInfo `json:"lora_files"`
}

// SessionsResponse wraps the list returned by GET /api/v1/sessions.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Pipeline lifecycle state.
	Pipeline PipelineStatusResponse `json:"pipeline"`
	// Whether a compatible accelerator was detected at startup.
	// example: true
	AcceleratorAvailable bool `json:"accelerator_available" example:"true"`
	// Reason the accelerator is unavailable, if any.
	AcceleratorError string `json:"accelerator_error,omitempty"`
	// Number of open sessions.
	// example: 2
	Sessions int `json:"sessions" example:"2"`
	// Total number of load attempts since start.
	// example: 4
	LoadsTotal uint64 `json:"loads_total" example:"4"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
