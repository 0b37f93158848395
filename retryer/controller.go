package retryer

import (
	"log/slog"
	"sync"
	"time"
)

// Controller is the per-element connection state machine. Construction
// immediately runs the stopped path with retry enabled, so every
// controller schedules its first connection attempt without callers
// special-casing startup.
//
// The public surface is read-only plus teardown; state mutation happens
// only through the Notifier returned by New.
type Controller struct {
	element Element
	opts    Options
	log     *slog.Logger

	mu          sync.Mutex
	closed      bool
	connected   bool
	retryCount  int
	successes   int // -1 until the first connection succeeds
	lastStart   time.Time
	lastData    time.Time
	cancel      func()
	retryTimer  *time.Timer
	monitorStop chan struct{}
	subs        []Subscriber
}

// New creates a Controller for the element and returns it together with
// the privileged Notifier. The Notifier is handed out exactly once, here:
// whoever wires the controller passes it to the interception layer, and
// every other holder of the *Controller is limited to the read-only
// surface. The first connection attempt is scheduled before New returns.
func New(el Element, opts Options) (*Controller, *Notifier, error) {
	if el == nil {
		return nil, nil, ErrNilElement
	}
	opts = opts.withDefaults()

	c := &Controller{
		element:   el,
		opts:      opts,
		log:       opts.Logger,
		successes: -1,
		subs:      append([]Subscriber(nil), opts.Subscribers...),
	}

	// The stopped path schedules the first attempt through the same
	// initial-connect backoff branch every later failure uses.
	c.stopped(true)

	return c, &Notifier{c: c}, nil
}

// Element returns the element this controller belongs to.
func (c *Controller) Element() Element {
	return c.element
}

// Connected reports the last known connection state. The interception
// layer is authoritative; this is a best-effort cache for guard checks
// and inspection.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Reconnections returns the number of consecutive failed attempts since
// the last successful connection.
func (c *Controller) Reconnections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryCount
}

// LastStartTime returns when the most recent attempt started, or the zero
// time if no attempt has been made.
func (c *Controller) LastStartTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStart
}

// Subscribe registers a subscriber for lifecycle notifications.
func (c *Controller) Subscribe(s Subscriber) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, s)
}

// Unsubscribe removes a previously registered subscriber.
func (c *Controller) Unsubscribe(s Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subs {
		if sub == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

// Close tears the controller down: cancels any in-flight request, disarms
// timers, and stops all future reconnect attempts. Safe to call multiple
// times.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	cancel := c.cancel
	c.cancel = nil
	c.stopRetryTimerLocked()
	c.stopMonitorLocked()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// started records that a new attempt is in flight.
func (c *Controller) started(at time.Time) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.lastStart = at
	c.lastData = at
	// A live attempt supersedes any scheduled retry.
	c.stopRetryTimerLocked()
	c.startMonitorLocked()
	c.mu.Unlock()

	c.logf("attempt started", "element", c.element.ID())
}

// connectedNow records a confirmed connection.
func (c *Controller) connectedNow() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.connected = true
	c.retryCount = 0
	c.successes++
	successes := c.successes
	c.stopRetryTimerLocked()
	fire := c.notifyLocked(StatusConnected)
	c.mu.Unlock()

	c.logf("connected", "element", c.element.ID(), "successes", successes)
	fire()
}

// stopped records that the connection ended. With retry true the next
// attempt is scheduled through the backoff policy; otherwise the
// controller stays disconnected until an external trigger.
func (c *Controller) stopped(retry bool) {
	c.mu.Lock()
	c.cancel = nil
	c.connected = false
	c.lastData = time.Time{}
	c.stopMonitorLocked()
	fire := c.notifyLocked(StatusDisconnected)
	var after func()
	if retry {
		after = c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	c.logf("disconnected", "element", c.element.ID(), "retry", retry)
	fire()
	if after != nil {
		after()
	}
}

// touch refreshes the inactivity baseline on stream activity.
func (c *Controller) touch() {
	c.mu.Lock()
	c.lastData = time.Now()
	c.mu.Unlock()
}

// setCancel records the cancellation handle of the in-flight request.
// Exactly one handle is live at a time; stopped clears it so a stale
// handle can never abort a later, unrelated request.
func (c *Controller) setCancel(cancel func()) {
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
}

// scheduleReconnectLocked arms the reconnect timer. It is idempotent:
// while a timer is pending, further stop notifications are no-ops. The
// returned function, when non-nil, must be run after releasing the mutex.
func (c *Controller) scheduleReconnectLocked() func() {
	if c.retryTimer != nil || c.closed {
		return nil
	}
	if !c.element.Alive() {
		id := c.element.ID()
		return func() {
			c.log.Debug("element no longer alive, not reconnecting", "element", id)
		}
	}

	c.retryCount++
	delay, ok := c.opts.Backoff.Next(c.retryCount, c.lastStart, c.successes)
	if !ok {
		attempts := c.retryCount
		return func() {
			c.log.Warn("reconnect attempts exhausted", "element", c.element.ID(), "attempts", attempts)
			c.stopped(false)
		}
	}

	c.retryTimer = time.AfterFunc(delay, c.retryTimerFired)
	return nil
}

// retryTimerFired runs when the reconnect timer elapses. A connection may
// have completed while the timer was queued, so the state is re-checked
// before requesting a new attempt.
func (c *Controller) retryTimerFired() {
	c.mu.Lock()
	c.retryTimer = nil
	if c.connected || c.closed {
		c.mu.Unlock()
		return
	}
	attempt := c.retryCount
	fire := c.notifyLocked(StatusConnecting)
	c.mu.Unlock()

	c.logf("connect requested", "element", c.element.ID(), "attempt", attempt)
	fire()
}

func (c *Controller) stopRetryTimerLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// notifyLocked builds the notification fan-out for a transition. The
// returned function runs the element event dispatch, the subscriber sends
// and the connect trigger, and must be called after releasing the mutex
// so subscribers may call back into the controller.
func (c *Controller) notifyLocked(s Status) func() {
	subs := append([]Subscriber(nil), c.subs...)
	n := Notification{Element: c.element.ID(), Status: s, At: time.Now()}
	target, hasTarget := c.element.(EventTarget)
	events := c.opts.EnableConnectionEvents
	connect := c.opts.Connect

	return func() {
		if hasTarget {
			switch s {
			case StatusConnecting:
				// "connect" is always dispatched; the gate applies only to
				// the connected/disconnected pair.
				target.DispatchEvent(EventConnect)
			case StatusConnected:
				if events {
					target.DispatchEvent(EventConnected)
				}
			case StatusDisconnected:
				if events {
					target.DispatchEvent(EventDisconnected)
				}
			}
		}
		for _, sub := range subs {
			sub.Send(n)
		}
		if s == StatusConnecting && connect != nil {
			connect()
		}
	}
}

// startMonitorLocked (re)starts inactivity monitoring when configured.
// At most one monitor runs per controller.
func (c *Controller) startMonitorLocked() {
	if c.opts.InactivityTimeout <= 0 {
		return
	}
	c.stopMonitorLocked()

	interval := c.opts.InactivityTimeout / 2
	if interval > time.Second {
		interval = time.Second
	}

	stop := make(chan struct{})
	c.monitorStop = stop
	go c.monitor(stop, interval)
}

func (c *Controller) stopMonitorLocked() {
	if c.monitorStop != nil {
		close(c.monitorStop)
		c.monitorStop = nil
	}
}

// monitor periodically compares the time since the last received chunk
// against the inactivity timeout. Checking at a sub-interval rather than a
// single deadline timer self-corrects for drift. On timeout the in-flight
// request is cancelled and the shared stop/reconnect path runs; inactivity
// is not a special case.
func (c *Controller) monitor(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.monitorStop != stop || c.closed {
				c.mu.Unlock()
				return
			}
			if c.lastData.IsZero() || time.Since(c.lastData) <= c.opts.InactivityTimeout {
				c.mu.Unlock()
				continue
			}
			cancel := c.cancel
			c.mu.Unlock()

			c.logf("inactivity timeout", "element", c.element.ID(), "timeout", c.opts.InactivityTimeout)
			if cancel != nil {
				cancel()
			}
			c.stopped(true)
			return
		}
	}
}

func (c *Controller) logf(msg string, args ...any) {
	if c.opts.Debug {
		c.log.Info(msg, args...)
		return
	}
	c.log.Debug(msg, args...)
}
