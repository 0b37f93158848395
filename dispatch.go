package resilient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/alvarolm/datastar-resilient/internal/intercept"
)

// ActionOptions is the mutable per-call bag handed to an action. The
// wrapped action stamps the correlation header here and zeroes the
// framework's own retry budget.
type ActionOptions struct {
	// Header holds extra headers the action must copy onto its outgoing
	// request.
	Header http.Header

	// MaxRetries is the dispatch framework's own retry budget for this
	// call. The wrapper sets it to 0: retry policy lives in the engine.
	MaxRetries int
}

// NewActionOptions creates an empty per-call bag.
func NewActionOptions() *ActionOptions {
	return &ActionOptions{Header: make(http.Header)}
}

// ActionFunc issues the outbound request for a named action on behalf of
// an element.
type ActionFunc func(ctx context.Context, el Element, opts *ActionOptions) error

// Dispatcher is the action-dispatch framework boundary. The engine
// consumes exactly two capabilities: registering a wrapped implementation
// for a named outbound action, and looking up the currently registered
// implementation.
type Dispatcher interface {
	// Register installs the implementation for a named action, replacing
	// any previous one.
	Register(name string, fn ActionFunc)

	// Lookup returns the currently registered implementation.
	Lookup(name string) (ActionFunc, bool)
}

// MapDispatcher is a trivial in-memory Dispatcher.
type MapDispatcher struct {
	mu      sync.RWMutex
	actions map[string]ActionFunc
}

// NewMapDispatcher creates an empty MapDispatcher.
func NewMapDispatcher() *MapDispatcher {
	return &MapDispatcher{actions: make(map[string]ActionFunc)}
}

// Register implements Dispatcher.
func (d *MapDispatcher) Register(name string, fn ActionFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions[name] = fn
}

// Lookup implements Dispatcher.
func (d *MapDispatcher) Lookup(name string) (ActionFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn, ok := d.actions[name]
	return fn, ok
}

// WrapAction replaces the named action with a resilience-aware wrapper.
// The wrapper stamps a fresh correlation id on every call (header and
// context), disables the framework's own retry for the call, and
// suppresses ErrRetriesExhausted since this engine owns retry policy.
func (r *Resilient) WrapAction(name string) error {
	if r.dispatcher == nil {
		return ErrNoDispatcher
	}
	orig, ok := r.dispatcher.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}
	r.dispatcher.Register(name, r.wrapAction(orig))
	return nil
}

func (r *Resilient) wrapAction(orig ActionFunc) ActionFunc {
	return func(ctx context.Context, el Element, opts *ActionOptions) error {
		if opts == nil {
			opts = NewActionOptions()
		}

		id := r.registry.Issue(el)
		opts.Header.Set(intercept.FetchIDHeader, id)
		ctx = intercept.WithFetchID(ctx, id)
		opts.MaxRetries = 0

		err := orig(ctx, el, opts)
		if errors.Is(err, ErrRetriesExhausted) {
			// The framework reporting retry exhaustion is expected: its
			// retry was disabled and this engine reconnects on its own.
			return nil
		}
		return err
	}
}

// dispatch re-invokes the named action for the element; it is the connect
// trigger installed by WithAction.
func (r *Resilient) dispatch(name string, el Element) {
	if r.dispatcher == nil {
		r.logger.Warn("connect requested but no dispatcher configured", "action", name)
		return
	}
	fn, ok := r.dispatcher.Lookup(name)
	if !ok {
		r.logger.Warn("connect requested for unknown action", "action", name)
		return
	}
	if err := fn(context.Background(), el, NewActionOptions()); err != nil {
		r.logger.Debug("action dispatch failed", "action", name, "element", el.ID(), "error", err)
	}
}
