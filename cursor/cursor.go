// Package cursor provides stream position tracking for resumable reconnects.
package cursor

// Cursor tracks the last seen SSE event id for each element, allowing a
// reconnect to resume the stream via the Last-Event-ID request header.
type Cursor interface {
	// Load returns the last saved event id for the given element.
	// Returns "" if no position has been saved.
	Load(elementID string) (string, error)

	// Save persists the latest event id for the given element.
	Save(elementID, eventID string) error
}
