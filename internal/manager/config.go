package manager

import (
	"time"

	"github.com/rs/zerolog"

	"scoped/internal/registry"
)

// DefaultLoadTimeout bounds a single pipeline construction.
const DefaultLoadTimeout = 300 * time.Second

// Config encapsulates all tunables for Manager construction.
type Config struct {
	Registry    *registry.Registry
	LoadTimeout time.Duration
	// Logger defaults to a disabled logger when nil.
	Logger    *zerolog.Logger
	Publisher EventPublisher
	// Accelerator probes for a compatible device at startup. Nil uses
	// ProbeAccelerator.
	Accelerator func() error
}

func (c Config) withDefaults() Config {
	if c.Registry == nil {
		c.Registry = registry.Default()
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = DefaultLoadTimeout
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.Accelerator == nil {
		c.Accelerator = ProbeAccelerator
	}
	return c
}
