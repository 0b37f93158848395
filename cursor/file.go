package cursor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// File is a file-based Cursor implementation that persists positions as JSON,
// so streams resume across process restarts.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a file-backed cursor. The directory containing path
// will be created if it does not exist.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads the last saved event id for the element from the file.
func (f *File) Load(elementID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readAll()
	if err != nil {
		return "", nil // file doesn't exist yet, no saved position
	}
	return data[elementID], nil
}

// Save writes the event id for the element to the file.
func (f *File) Save(elementID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, _ := f.readAll()
	if data == nil {
		data = make(map[string]string)
	}
	data[elementID] = eventID

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(f.path, b, 0o644)
}

func (f *File) readAll() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var data map[string]string
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	return data, nil
}
