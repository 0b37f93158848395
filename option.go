package resilient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/alvarolm/datastar-resilient/backoff"
	"github.com/alvarolm/datastar-resilient/cursor"
	"github.com/alvarolm/datastar-resilient/retryer"
	"github.com/alvarolm/datastar-resilient/subscriber"
)

// Option configures an engine.
type Option func(*Resilient)

// WithTransport sets the underlying RoundTripper the interceptor wraps.
func WithTransport(rt http.RoundTripper) Option {
	return func(r *Resilient) {
		r.config.Transport = rt
	}
}

// WithDispatcher sets the action-dispatch framework boundary.
func WithDispatcher(d Dispatcher) Option {
	return func(r *Resilient) {
		r.config.Dispatcher = d
	}
}

// WithCorrelationTTL overrides how long unclaimed correlation ids live.
func WithCorrelationTTL(ttl time.Duration) Option {
	return func(r *Resilient) {
		r.config.CorrelationTTL = ttl
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resilient) {
		r.config.Logger = l
	}
}

// controllerConfig accumulates per-element settings before the controller
// is built.
type controllerConfig struct {
	opts   retryer.Options
	action string
}

// ControllerOption configures one attached element.
type ControllerOption func(*controllerConfig)

// WithDebug raises transition logging for this controller to info level.
func WithDebug() ControllerOption {
	return func(c *controllerConfig) {
		c.opts.Debug = true
	}
}

// WithBackoff sets the reconnect delay policy.
func WithBackoff(calc backoff.Calculator) ControllerOption {
	return func(c *controllerConfig) {
		c.opts.Backoff = calc
	}
}

// WithFailureClassifier sets the predicate deciding whether a completed
// response counts as a failure. Default: status code >= 400.
func WithFailureClassifier(fn func(*http.Response) bool) ControllerOption {
	return func(c *controllerConfig) {
		c.opts.IsFailedRequest = fn
	}
}

// WithInactivityTimeout enables inactivity monitoring: after d with no
// stream activity the in-flight request is cancelled and a reconnect is
// scheduled. 0 disables.
func WithInactivityTimeout(d time.Duration) ControllerOption {
	return func(c *controllerConfig) {
		c.opts.InactivityTimeout = d
	}
}

// WithConnectionEvents enables the "connected"/"disconnected" element
// events. The "connect" event is always dispatched.
func WithConnectionEvents() ControllerOption {
	return func(c *controllerConfig) {
		c.opts.EnableConnectionEvents = true
	}
}

// WithRequestInterceptor sets the outgoing request transform hook.
func WithRequestInterceptor(fn func(*http.Request) *http.Request) ControllerOption {
	return func(c *controllerConfig) {
		c.opts.RequestInterceptor = fn
	}
}

// WithResponseInterceptor sets the response transform hook.
func WithResponseInterceptor(fn func(*http.Response) *http.Response) ControllerOption {
	return func(c *controllerConfig) {
		c.opts.ResponseInterceptor = fn
	}
}

// WithDataInterceptor sets the per-chunk transform hook. Returning nil
// from the hook forwards the chunk unmodified.
func WithDataInterceptor(fn func([]byte) []byte) ControllerOption {
	return func(c *controllerConfig) {
		c.opts.DataInterceptor = fn
	}
}

// WithConnect sets the function invoked whenever a new connection attempt
// is requested. Mutually exclusive with WithAction, which installs its
// own connect trigger.
func WithConnect(fn func()) ControllerOption {
	return func(c *controllerConfig) {
		c.opts.Connect = fn
	}
}

// WithAction ties the element to a named dispatcher action: every connect
// request re-dispatches it. Wrap the action first (see WrapAction) so the
// re-dispatched call carries a correlation id.
func WithAction(name string) ControllerOption {
	return func(c *controllerConfig) {
		c.action = name
	}
}

// WithCursor enables resumable streams: the last seen SSE event id is
// persisted and replayed via Last-Event-ID on reconnect.
func WithCursor(cur cursor.Cursor) ControllerOption {
	return func(c *controllerConfig) {
		c.opts.Cursor = cur
	}
}

// WithSubscriber registers a lifecycle subscriber on the controller.
// Subscribers receive every transition, including the ones emitted
// during construction.
func WithSubscriber(s retryer.Subscriber) ControllerOption {
	return func(c *controllerConfig) {
		c.opts.Subscribers = append(c.opts.Subscribers, s)
	}
}

// WithDatastarSignals publishes lifecycle transitions as Datastar signal
// patches under key. An empty key disables the channel.
func WithDatastarSignals(sse *datastar.ServerSentEventGenerator, key string) ControllerOption {
	return func(c *controllerConfig) {
		if key == "" {
			return
		}
		c.opts.Subscribers = append(c.opts.Subscribers, subscriber.NewSignals(sse, key))
	}
}
