package resilient

import (
	"sync"
	"sync/atomic"

	"github.com/alvarolm/datastar-resilient/retryer"
)

// Element identifies the owner of a resilient connection.
type Element = retryer.Element

// EventTarget is optionally implemented by elements that want lifecycle
// events dispatched directly.
type EventTarget = retryer.EventTarget

// Node is a minimal Element implementation for callers without a UI tree:
// it is alive until Remove is called and forwards lifecycle events to an
// optional callback.
type Node struct {
	id    string
	alive atomic.Bool

	mu      sync.Mutex
	onEvent func(event string)
}

// NewNode creates a live node with the given id.
func NewNode(id string) *Node {
	n := &Node{id: id}
	n.alive.Store(true)
	return n
}

// ID returns the node's identifier.
func (n *Node) ID() string {
	return n.id
}

// Alive reports whether the node still exists.
func (n *Node) Alive() bool {
	return n.alive.Load()
}

// Remove marks the node as destroyed. Its controller stops reconnecting
// and is eventually reclaimed by the registry sweep.
func (n *Node) Remove() {
	n.alive.Store(false)
}

// OnEvent sets the callback receiving dispatched lifecycle events.
func (n *Node) OnEvent(fn func(event string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onEvent = fn
}

// DispatchEvent implements EventTarget.
func (n *Node) DispatchEvent(event string) {
	n.mu.Lock()
	fn := n.onEvent
	n.mu.Unlock()
	if fn != nil {
		fn(event)
	}
}
