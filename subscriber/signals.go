package subscriber

import (
	"sync"

	"github.com/starfederation/datastar-go/datastar"
)

// Signals publishes lifecycle transitions as Datastar signal patches: the
// configured key receives "connecting", "connected" or "disconnected" on
// every transition, mirroring the element events. An empty key disables
// publishing.
type Signals struct {
	mu   sync.Mutex
	sse  *datastar.ServerSentEventGenerator
	key  string
	done bool
}

// NewSignals creates a signal-channel subscriber writing to sse.
func NewSignals(sse *datastar.ServerSentEventGenerator, key string) *Signals {
	return &Signals{sse: sse, key: key}
}

// Send patches the signal with the new status.
func (s *Signals) Send(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || s.key == "" || s.sse == nil {
		return
	}
	// The connection backing sse may be gone; the error carries no
	// recovery path here.
	_ = s.sse.MarshalAndPatchSignals(map[string]any{s.key: string(n.Status)})
}

// Close stops publishing.
func (s *Signals) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
}
