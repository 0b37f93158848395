// Package intercept instruments outgoing HTTP requests at the transport
// boundary. Requests carrying a correlation id are resolved to their
// controller, wired with a fresh cancellation handle, classified on
// completion, and their body stream wrapped so every chunk refreshes the
// controller's activity clock. Requests without an id pass through
// untouched and pay no resilience cost.
package intercept

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alvarolm/datastar-resilient/internal/registry"
)

// FetchIDHeader carries the opaque correlation id linking a dispatched
// request to the element that issued it. It is stripped before the real
// network call and never reaches the origin server.
const FetchIDHeader = "X-Fetch-Id"

// LastEventIDHeader carries the resume position on reconnect.
const LastEventIDHeader = "Last-Event-ID"

// ErrFailedRequest marks a completed response that the failure classifier
// rejected. It is distinguishable from ordinary network errors so callers
// can suppress it; the reconnect decision has already been made by the
// time it is returned.
var ErrFailedRequest = errors.New("resilient: request classified as failed")

type ctxKey struct{}

// WithFetchID returns a context carrying the correlation id. The context
// is the mutable per-call bag and is consulted before the request headers.
func WithFetchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func fetchIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Transport is an http.RoundTripper that feeds connection lifecycle facts
// into the controller owning each correlated request.
type Transport struct {
	base http.RoundTripper
	reg  *registry.Registry
	log  *slog.Logger
}

// NewTransport wraps base with request interception. A nil base selects
// http.DefaultTransport.
func NewTransport(base http.RoundTripper, reg *registry.Registry, log *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if log == nil {
		log = slog.Default()
	}
	return &Transport{base: base, reg: reg, log: log}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Per-call bag first, then the request's own headers.
	id := fetchIDFromContext(req.Context())
	if id == "" {
		id = req.Header.Get(FetchIDHeader)
	}
	if id == "" {
		return t.base.RoundTrip(req)
	}

	el, ok := t.reg.Claim(id)
	if !ok {
		t.log.Debug("correlation id has no element, passing through", "id", id)
		return t.base.RoundTrip(stripID(req))
	}

	ent, ok := t.reg.Lookup(el.ID())
	if !ok {
		t.log.Debug("element has no controller, passing through", "element", el.ID())
		return t.base.RoundTrip(stripID(req))
	}
	notifier := ent.Notifier
	opts := notifier.Options()

	req = req.Clone(req.Context())
	req.Header.Del(FetchIDHeader)

	if opts.Cursor != nil {
		if last, err := opts.Cursor.Load(el.ID()); err == nil && last != "" {
			req.Header.Set(LastEventIDHeader, last)
		}
	}

	if opts.RequestInterceptor != nil {
		if modified := opts.RequestInterceptor(req); modified != nil {
			req = modified
		}
	}

	// Fresh cancellation handle for this attempt, chained off the caller's
	// context: an external cancel forwards to the internal one, never the
	// other way around.
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	notifier.Started(time.Now())
	notifier.SetCancel(cancel)

	// A caller context that was already cancelled aborts before any
	// network I/O.
	if err := ctx.Err(); err != nil {
		notifier.Stopped(true)
		return nil, err
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		notifier.Stopped(true)
		cancel()
		return nil, err
	}

	if opts.IsFailedRequest(resp) {
		status := resp.StatusCode
		cancel() // signal the origin to stop sending
		if resp.Body != nil {
			resp.Body.Close()
		}
		notifier.Stopped(true)
		return nil, fmt.Errorf("%w: status %d", ErrFailedRequest, status)
	}

	notifier.Connected()

	if opts.ResponseInterceptor != nil {
		if modified := opts.ResponseInterceptor(resp); modified != nil {
			resp = modified
		}
	}

	if resp.Body != nil {
		resp.Body = newBody(resp.Body, notifier, el.ID(), opts, cancel, t.log)
	}
	return resp, nil
}

// stripID removes the correlation header from an uncorrelated pass-through
// request; the id must never reach the origin even when no controller
// claims it.
func stripID(req *http.Request) *http.Request {
	if req.Header.Get(FetchIDHeader) == "" {
		return req
	}
	req = req.Clone(req.Context())
	req.Header.Del(FetchIDHeader)
	return req
}
