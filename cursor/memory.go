package cursor

import "sync"

// Memory is an in-memory Cursor implementation.
// Suitable for single-process use; positions are lost on restart.
type Memory struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewMemory creates a new in-memory cursor.
func NewMemory() *Memory {
	return &Memory{
		ids: make(map[string]string),
	}
}

// Load returns the last saved event id for the element, or "" if not found.
func (m *Memory) Load(elementID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ids[elementID], nil
}

// Save stores the event id for the element.
func (m *Memory) Save(elementID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[elementID] = eventID
	return nil
}
