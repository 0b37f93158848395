// Package subscriber provides delivery mechanisms for connection
// lifecycle notifications. Every type here implements retryer.Subscriber
// and can be registered on a controller.
package subscriber

import (
	"github.com/alvarolm/datastar-resilient/retryer"
)

// Notification is the lifecycle transition payload.
type Notification = retryer.Notification
