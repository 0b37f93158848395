package subscriber

import (
	"sync"

	"github.com/alvarolm/datastar-resilient/retryer"
)

// Broadcast distributes notifications to multiple subscribers.
type Broadcast struct {
	mu   sync.RWMutex
	subs []retryer.Subscriber
}

// NewBroadcast creates a new broadcast dispatcher.
func NewBroadcast() *Broadcast {
	return &Broadcast{}
}

// Add registers a subscriber to receive broadcast notifications.
func (b *Broadcast) Add(sub retryer.Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, sub)
}

// Send delivers a notification to all registered subscribers.
func (b *Broadcast) Send(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		sub.Send(n)
	}
}

// Close shuts down all registered subscribers.
func (b *Broadcast) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.Close()
	}
	b.subs = nil
}

// Len returns the number of registered subscribers.
func (b *Broadcast) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
