package subscriber

// CallbackFunc is the function signature for lifecycle callbacks.
type CallbackFunc func(Notification)

// Callback delivers notifications by invoking a callback function.
type Callback struct {
	fn   CallbackFunc
	done chan struct{}
}

// NewCallback creates a callback-based subscriber.
func NewCallback(fn CallbackFunc) *Callback {
	return &Callback{
		fn:   fn,
		done: make(chan struct{}),
	}
}

// Send invokes the callback with the notification. No-op if closed.
func (c *Callback) Send(n Notification) {
	select {
	case <-c.done:
		return
	default:
	}
	c.fn(n)
}

// Close stops the subscriber.
func (c *Callback) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
