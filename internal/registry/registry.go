// Package registry holds the process-wide correlation state: which
// controller belongs to which element, and which in-flight correlation id
// belongs to which element.
package registry

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alvarolm/datastar-resilient/retryer"
)

// DefaultTTL bounds how long an issued correlation id may wait for its
// network call before it is reclaimed.
const DefaultTTL = 5 * time.Second

const sweepInterval = 1 * time.Second

// ErrRegistered is returned when registering an element that already has
// a controller.
var ErrRegistered = errors.New("registry: element already registered")

// Entry ties an element to its controller and privileged notifier. The
// notifier never leaves this module; holding an Entry is what makes the
// interception layer privileged.
type Entry struct {
	Element    retryer.Element
	Controller *retryer.Controller
	Notifier   *retryer.Notifier
}

type pending struct {
	element   retryer.Element
	expiresAt time.Time
}

// Registry maps elements to controllers and short-lived correlation ids to
// elements. The element association is non-owning: entries whose element
// is no longer alive are reclaimed by the background sweep (and their
// controllers closed), so the registry never extends an element's
// lifetime. Correlation ids are single-use and expire after the TTL when
// the network call they were issued for never happens.
type Registry struct {
	ttl    time.Duration
	nextID atomic.Uint64

	mu          sync.Mutex
	controllers map[string]Entry
	ids         map[string]pending

	shutdown chan struct{}
	done     chan struct{}
}

// New creates a registry. ttl <= 0 selects DefaultTTL.
func New(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Registry{
		ttl:         ttl,
		controllers: make(map[string]Entry),
		ids:         make(map[string]pending),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	go r.sweep()
	return r
}

// Register associates an element with its controller and notifier.
func (r *Registry) Register(e Entry) error {
	id := e.Element.ID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.controllers[id]; exists {
		return ErrRegistered
	}
	r.controllers[id] = e
	return nil
}

// Unregister removes the element's entry. The controller is not closed;
// that is the caller's decision.
func (r *Registry) Unregister(elementID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, elementID)
}

// Lookup resolves an element id to its entry. Entries whose element is no
// longer alive are removed and reported as absent.
func (r *Registry) Lookup(elementID string) (Entry, bool) {
	r.mu.Lock()
	e, ok := r.controllers[elementID]
	if ok && !e.Element.Alive() {
		delete(r.controllers, elementID)
		r.mu.Unlock()
		_ = e.Controller.Close()
		return Entry{}, false
	}
	r.mu.Unlock()
	return e, ok
}

// Issue allocates a fresh correlation id for a request about to be
// dispatched on behalf of the element. The id expires after the TTL if
// never claimed.
func (r *Registry) Issue(el retryer.Element) string {
	id := strconv.FormatUint(r.nextID.Add(1), 10)
	r.mu.Lock()
	r.ids[id] = pending{element: el, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()
	return id
}

// Claim resolves and consumes a correlation id. Ids are single-use: the
// first claim removes the entry. Unknown or expired ids report absence;
// that is the normal "no resilience configured" path, not an error.
func (r *Registry) Claim(id string) (retryer.Element, bool) {
	r.mu.Lock()
	p, ok := r.ids[id]
	if ok {
		delete(r.ids, id)
	}
	r.mu.Unlock()

	if !ok || time.Now().After(p.expiresAt) {
		return nil, false
	}
	return p.element, true
}

// Entries returns a snapshot of all registered entries.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.controllers))
	for _, e := range r.controllers {
		out = append(out, e)
	}
	return out
}

// Len returns the number of registered controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// Close stops the background sweep.
func (r *Registry) Close() error {
	select {
	case <-r.shutdown:
	default:
		close(r.shutdown)
	}
	<-r.done
	return nil
}

// sweep periodically removes expired correlation ids and entries whose
// element has been destroyed externally.
func (r *Registry) sweep() {
	defer close(r.done)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.shutdown:
			return
		case <-ticker.C:
			r.removeStale()
		}
	}
}

func (r *Registry) removeStale() {
	now := time.Now()
	var dead []Entry

	r.mu.Lock()
	for id, p := range r.ids {
		if now.After(p.expiresAt) {
			delete(r.ids, id)
		}
	}
	for id, e := range r.controllers {
		if !e.Element.Alive() {
			dead = append(dead, e)
			delete(r.controllers, id)
		}
	}
	r.mu.Unlock()

	// Close reclaimed controllers outside the lock.
	for _, e := range dead {
		_ = e.Controller.Close()
	}
}
