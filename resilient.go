// Package resilient provides automatic, configurable reconnection for
// long-lived streaming HTTP requests, chiefly Server-Sent Events, issued
// on behalf of an element.
//
// The engine is a closed loop: the request interceptor observes every
// correlated network call, the per-element controller decides what to do
// about failures, and the connect trigger re-issues the request after the
// backoff delay.
//
// Usage:
//
//	engine := resilient.New()
//
//	el := resilient.NewNode("feed")
//	engine.Attach(el,
//	    resilient.WithConnect(func() {
//	        go openStream(engine.Client(), el)
//	    }),
//	    resilient.WithInactivityTimeout(8*time.Second),
//	)
//
// openStream issues the GET through engine.Client(); chunks keep the
// connection marked active, and any failure schedules a reconnect.
package resilient

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/alvarolm/datastar-resilient/internal/intercept"
	"github.com/alvarolm/datastar-resilient/internal/registry"
	"github.com/alvarolm/datastar-resilient/retryer"
)

// Resilient is the engine: it owns the correlation registry and the
// interception transport, and attaches controllers to elements.
type Resilient struct {
	config     Config
	registry   *registry.Registry
	transport  *intercept.Transport
	client     *http.Client
	dispatcher Dispatcher
	logger     *slog.Logger

	mu       sync.Mutex
	shutdown bool
}

// New creates an engine with the given options.
func New(opts ...Option) *Resilient {
	r := &Resilient{config: DefaultConfig()}
	for _, opt := range opts {
		opt(r)
	}

	r.logger = r.config.Logger
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.dispatcher = r.config.Dispatcher
	r.registry = registry.New(r.config.CorrelationTTL)
	r.transport = intercept.NewTransport(r.config.Transport, r.registry, r.logger)
	r.client = &http.Client{Transport: r.transport}
	return r
}

// Attach creates a controller for the element and registers it. The first
// connection attempt is scheduled immediately, following the
// initial-connect branch of the backoff policy.
func (r *Resilient) Attach(el Element, copts ...ControllerOption) (*retryer.Controller, error) {
	if el == nil {
		return nil, retryer.ErrNilElement
	}

	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return nil, ErrShutdown
	}
	r.mu.Unlock()

	cc := controllerConfig{}
	for _, opt := range copts {
		opt(&cc)
	}
	if cc.opts.Logger == nil {
		cc.opts.Logger = r.logger
	}
	if cc.action != "" {
		name := cc.action
		cc.opts.Connect = func() {
			go r.dispatch(name, el)
		}
	}

	ctrl, notifier, err := retryer.New(el, cc.opts)
	if err != nil {
		return nil, err
	}

	entry := registry.Entry{Element: el, Controller: ctrl, Notifier: notifier}
	if err := r.registry.Register(entry); err != nil {
		_ = ctrl.Close()
		return nil, ErrAlreadyAttached
	}
	return ctrl, nil
}

// Detach tears down the element's controller and removes it from the
// registry. Typically called when the element leaves its owner's tree.
func (r *Resilient) Detach(el Element) error {
	ent, ok := r.registry.Lookup(el.ID())
	if !ok {
		return ErrNotAttached
	}
	r.registry.Unregister(el.ID())
	return ent.Controller.Close()
}

// Controller returns the controller attached to the element, if any.
func (r *Resilient) Controller(el Element) (*retryer.Controller, bool) {
	ent, ok := r.registry.Lookup(el.ID())
	if !ok {
		return nil, false
	}
	return ent.Controller, true
}

// Correlate returns a context that attributes the next request made with
// it to the element. The id it carries is single-use and expires after
// the correlation TTL if no request follows.
func (r *Resilient) Correlate(ctx context.Context, el Element) context.Context {
	return intercept.WithFetchID(ctx, r.registry.Issue(el))
}

// Client returns an http.Client whose transport feeds the resilience
// loop. Requests carrying a correlation id are instrumented; all others
// pass through untouched.
func (r *Resilient) Client() *http.Client {
	return r.client
}

// Transport returns the interception RoundTripper for callers that bring
// their own http.Client.
func (r *Resilient) Transport() http.RoundTripper {
	return r.transport
}

// Shutdown gracefully closes all controllers and stops the registry.
func (r *Resilient) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.shutdown = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ent := range r.registry.Entries() {
			_ = ent.Controller.Close()
		}
		_ = r.registry.Close()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
