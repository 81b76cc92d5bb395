// Package registry maps pipeline identifiers to constructors and declared
// capabilities.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"scoped/internal/pipeline"
	"scoped/pkg/types"
)

// Entry describes one loadable pipeline.
type Entry struct {
	ID           string
	Name         string
	Description  string
	Capabilities types.PipelineCapabilities
	New          pipeline.Constructor
}

// Info projects the entry onto its wire representation.
func (e Entry) Info() types.PipelineInfo {
	caps := e.Capabilities
	caps.Params = append([]string(nil), caps.Params...)
	return types.PipelineInfo{ID: e.ID, Name: e.Name, Description: e.Description, Capabilities: caps}
}

// Registry is safe for concurrent use. Entries are normally registered once
// at startup and only looked up afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds e. Ids are case-sensitive and must be unique.
func (r *Registry) Register(e Entry) error {
	e.ID = strings.TrimSpace(e.ID)
	if e.ID == "" {
		return errors.New("registry: empty pipeline id")
	}
	if e.New == nil {
		return fmt.Errorf("registry: pipeline %q has no constructor", e.ID)
	}
	if e.Name == "" {
		e.Name = e.ID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[e.ID]; dup {
		return fmt.Errorf("registry: duplicate pipeline id %q", e.ID)
	}
	r.entries[e.ID] = e
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(e Entry) {
	if err := r.Register(e); err != nil {
		panic(err)
	}
}

// Lookup returns the entry registered under id.
func (r *Registry) Lookup(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// List returns all entries sorted by id.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Default returns a registry populated with the built-in pipelines.
func Default() *Registry {
	r := New()
	r.MustRegister(Entry{
		ID:           "passthrough",
		Name:         "Passthrough",
		Description:  "Returns every frame unchanged.",
		Capabilities: types.PipelineCapabilities{Video: true},
		New:          pipeline.NewPassthrough,
	})
	r.MustRegister(Entry{
		ID:           "demo",
		Name:         "Demo pipeline",
		Description:  "Simulated generative model with configurable warmup and per-frame latency.",
		Capabilities: types.PipelineCapabilities{Video: true, Params: []string{"warmup_ms", "latency_ms"}},
		New:          pipeline.NewDemo,
	})
	r.MustRegister(Entry{
		ID:          "remote",
		Name:        "Remote worker",
		Description: "Forwards frames to an HTTP inference worker that owns the GPU.",
		Capabilities: types.PipelineCapabilities{
			Video:               true,
			RequiresAccelerator: true,
			Params:              []string{"endpoint", "connect_timeout_ms"},
		},
		New: pipeline.NewRemote,
	})
	return r
}
