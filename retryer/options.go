package retryer

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alvarolm/datastar-resilient/backoff"
	"github.com/alvarolm/datastar-resilient/cursor"
)

// Options configures a Controller. The zero value is usable; nil or zero
// fields fall back to the defaults documented per field.
type Options struct {
	// Debug raises lifecycle transition logging to info level.
	Debug bool

	// Backoff computes reconnect delays. Default: backoff.NewDefault().
	Backoff backoff.Calculator

	// IsFailedRequest classifies a completed response as a failure.
	// Default: DefaultIsFailedRequest (status code >= 400).
	IsFailedRequest func(*http.Response) bool

	// InactivityTimeout is the maximum allowed silence on an open stream
	// before the in-flight request is cancelled and a reconnect is
	// scheduled. 0 disables inactivity monitoring.
	InactivityTimeout time.Duration

	// EnableConnectionEvents gates the "connected" and "disconnected"
	// element events. The "connect" event is always dispatched.
	EnableConnectionEvents bool

	// RequestInterceptor transforms the outgoing request before dispatch.
	// Returning nil keeps the request unmodified.
	RequestInterceptor func(*http.Request) *http.Request

	// ResponseInterceptor transforms the response before it is returned.
	// Returning nil keeps the response unmodified.
	ResponseInterceptor func(*http.Response) *http.Response

	// DataInterceptor transforms each received stream chunk. Returning nil
	// forwards the chunk unmodified.
	DataInterceptor func([]byte) []byte

	// Connect is invoked whenever a new connection attempt is requested.
	// Integrations turn this into an actual outbound request.
	Connect func()

	// Cursor, when set, tracks the last seen SSE event id so reconnects
	// resume the stream via Last-Event-ID.
	Cursor cursor.Cursor

	// Subscribers receive every lifecycle notification, starting with the
	// ones emitted during construction.
	Subscribers []Subscriber

	// Logger for lifecycle logging. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultIsFailedRequest is the stock failure classifier: any response
// with a status code of 400 or above is a failure.
func DefaultIsFailedRequest(resp *http.Response) bool {
	return resp.StatusCode >= http.StatusBadRequest
}

func (o Options) withDefaults() Options {
	if o.Backoff == nil {
		o.Backoff = backoff.NewDefault()
	}
	if o.IsFailedRequest == nil {
		o.IsFailedRequest = DefaultIsFailedRequest
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
