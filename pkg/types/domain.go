package types

// PipelineCapabilities describes what a registered pipeline can do.
type PipelineCapabilities struct {
	// True when the pipeline consumes and emits video frames.
	// example: true
	Video bool `json:"video" example:"true"`
	// True when construction needs a GPU/accelerator to be present.
	// example: true
	RequiresAccelerator bool `json:"requires_accelerator" example:"true"`
	// Load parameter keys understood by the pipeline constructor.
	// example: ["warmup_ms","latency_ms"]
	Params []string `json:"params,omitempty" example:"[\"warmup_ms\",\"latency_ms\"]"`
}

// PipelineInfo represents a pipeline that can be loaded by id.
type PipelineInfo struct {
	// Stable identifier for the pipeline.
	// example: demo
	ID string `json:"id" example:"demo"`
	// Human-friendly name.
	// example: Demo pipeline
	Name string `json:"name" example:"Demo pipeline"`
	// Short description of what the pipeline does.
	Description string `json:"description,omitempty"`
	// Declared capabilities.
	Capabilities PipelineCapabilities `json:"capabilities"`
}

// LoRAFileInfo is metadata for an available LoRA file on disk.
type LoRAFileInfo struct {
	// File name without extension.
	// example: watercolor
	Name string `json:"name" example:"watercolor"`
	// Absolute path to the file.
	// example: /home/user/.scope/models/lora/styles/watercolor.safetensors
	Path string `json:"path" example:"/home/user/.scope/models/lora/styles/watercolor.safetensors"`
	// File size in megabytes rounded to two decimals.
	// example: 144.12
	SizeMB float64 `json:"size_mb" example:"144.12"`
	// Sub-folder relative to the lora directory, omitted for top-level files.
	// example: styles
	Folder string `json:"folder,omitempty" example:"styles"`
}

// BridgeStats summarizes one media bridge of a session.
type BridgeStats struct {
	// Media line identifier (mid) the bridge serves.
	// example: 0
	Mid string `json:"mid" example:"0"`
	// Frames read from the inbound track.
	Received uint64 `json:"received"`
	// Frames emitted to the outbound track.
	Processed uint64 `json:"processed"`
	// Frames dropped for any reason.
	Dropped uint64 `json:"dropped"`
	// Frames evicted from the full inbound queue.
	Overflow uint64 `json:"overflow"`
	// Frames dropped because no pipeline was loaded.
	Unloaded uint64 `json:"unloaded"`
	// Frames whose processing exceeded the per-frame bound.
	TimedOut uint64 `json:"timed_out"`
	// Frames that failed in the pipeline or the outbound track.
	Errors uint64 `json:"errors"`
	// Pipeline generation used for the most recent frame.
	Generation uint64 `json:"generation"`
}

// SessionInfo summarizes a peer session.
type SessionInfo struct {
	// Session identifier.
	// example: 5b1c0f5e-8c1a-4b77-9d7e-0e5a9b1f2c33
	ID string `json:"id" example:"5b1c0f5e-8c1a-4b77-9d7e-0e5a9b1f2c33"`
	// Connection state: new, connecting, connected, disconnected, closed.
	// example: connected
	State string `json:"state" example:"connected"`
	// Creation time (unix seconds).
	CreatedAt int64 `json:"created_at"`
	// Last time a frame flowed through the session (unix seconds).
	LastActivity int64 `json:"last_activity"`
	// Per media line bridge statistics.
	Bridges []BridgeStats `json:"bridges"`
}
