package resilient

import (
	"errors"

	"github.com/alvarolm/datastar-resilient/internal/intercept"
)

var (
	// ErrShutdown is returned when operating on a shut-down engine.
	ErrShutdown = errors.New("resilient: engine has been shut down")

	// ErrAlreadyAttached is returned when attaching an element that
	// already has a controller.
	ErrAlreadyAttached = errors.New("resilient: element already attached")

	// ErrNotAttached is returned when operating on an element without a
	// controller.
	ErrNotAttached = errors.New("resilient: element not attached")

	// ErrActionNotFound is returned when wrapping or dispatching an
	// action the dispatcher does not know.
	ErrActionNotFound = errors.New("resilient: action not registered")

	// ErrNoDispatcher is returned when an action-based operation runs on
	// an engine configured without a dispatcher.
	ErrNoDispatcher = errors.New("resilient: no dispatcher configured")

	// ErrRetriesExhausted is the dispatch framework's "max retries
	// reached" error class. The wrapped action suppresses it: retry
	// policy belongs to this engine, not the framework.
	ErrRetriesExhausted = errors.New("resilient: framework retries exhausted")
)

// ErrFailedRequest marks a completed response the failure classifier
// rejected. Callers of the engine's HTTP client can suppress it with
// errors.Is; the reconnect has already been scheduled when it surfaces.
var ErrFailedRequest = intercept.ErrFailedRequest
