package resilient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alvarolm/datastar-resilient/internal/registry"
)

// Config holds the global configuration for an engine.
type Config struct {
	// CorrelationTTL bounds how long an issued correlation id may wait
	// for its network call before being reclaimed (covers requests that
	// fail validation before ever reaching the transport).
	CorrelationTTL time.Duration

	// Transport is the underlying RoundTripper the interceptor wraps.
	Transport http.RoundTripper

	// Dispatcher is the action-dispatch framework boundary, if any.
	Dispatcher Dispatcher

	// Logger for engine diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CorrelationTTL: registry.DefaultTTL,
	}
}
