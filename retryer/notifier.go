package retryer

import "time"

// Notifier is the privileged mutation handle for a Controller. New returns
// it exactly once; the engine passes it to the request interception layer
// through constructor injection. Callers holding only the *Controller
// cannot alter connection state, so misuse is a compile-time error rather
// than a runtime check.
type Notifier struct {
	c *Controller
}

// Controller returns the controller this notifier mutates.
func (n *Notifier) Controller() *Controller {
	return n.c
}

// Options returns the controller's configuration snapshot.
func (n *Notifier) Options() Options {
	return n.c.opts
}

// Started records that an attempt began at the given time. It refreshes
// the inactivity baseline, disarms any pending reconnect timer, and
// (re)starts inactivity monitoring if configured.
func (n *Notifier) Started(at time.Time) {
	n.c.started(at)
}

// Connected records a confirmed connection: the retry counter resets, the
// success counter advances, and connected notifications are emitted.
func (n *Notifier) Connected() {
	n.c.connectedNow()
}

// Stopped records that the connection ended. With retry true the backoff
// policy decides when (or whether) the next attempt happens.
func (n *Notifier) Stopped(retry bool) {
	n.c.stopped(retry)
}

// SetCancel records the handle that aborts the in-flight request.
func (n *Notifier) SetCancel(cancel func()) {
	n.c.setCancel(cancel)
}

// Activity refreshes the inactivity baseline; called per received chunk.
func (n *Notifier) Activity() {
	n.c.touch()
}
