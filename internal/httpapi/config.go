package httpapi

import "context"

const defaultMaxBodyBytes = 1 << 20

// Server-wide settings, configured once by the binary before NewMux.
var (
	maxBodyBytes int64 = defaultMaxBodyBytes

	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string

	// shutdownCtx is canceled when the process begins shutting down.
	shutdownCtx = context.Background()
)

// SetMaxBodyBytes bounds JSON request bodies. Non-positive values restore
// the 1 MiB default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		n = defaultMaxBodyBytes
	}
	maxBodyBytes = n
}

// SetCORSOptions enables the CORS middleware. Empty methods or headers fall
// back to what the API uses.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
	if len(corsAllowedMethods) == 0 {
		corsAllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(corsAllowedHeaders) == 0 {
		corsAllowedHeaders = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
	}
}

// SetBaseContext installs the process shutdown context. nil resets it.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx = ctx
}

// negotiationContext derives a context from the request that is also
// canceled when the server shuts down, so in-flight offers do not hold up
// session teardown.
func negotiationContext(r context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r)
	stop := context.AfterFunc(shutdownCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
