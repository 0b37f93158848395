package subscriber

// Channel delivers notifications through a Go channel.
type Channel struct {
	ch   chan Notification
	done chan struct{}
}

// NewChannel creates a channel-based subscriber with the given buffer size.
func NewChannel(bufSize int) *Channel {
	if bufSize <= 0 {
		bufSize = 128
	}
	return &Channel{
		ch:   make(chan Notification, bufSize),
		done: make(chan struct{}),
	}
}

// Notifications returns the channel to read transitions from.
func (c *Channel) Notifications() <-chan Notification {
	return c.ch
}

// Send delivers a notification to the channel. Drops it if the channel is full.
func (c *Channel) Send(n Notification) {
	select {
	case c.ch <- n:
	case <-c.done:
	default:
		// drop: subscriber is not keeping up
	}
}

// Close shuts down the subscriber.
func (c *Channel) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
