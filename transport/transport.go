// Package transport provides raw chunk streams for long-lived connections.
package transport

import (
	"io"
	"sync"
)

// Stream delivers the raw chunks of one long-lived connection. Chunk
// delivery and error delivery are separate channels, so consumers observe
// stream errors independently of data.
type Stream interface {
	// Chunks returns the channel raw chunks arrive on.
	Chunks() <-chan []byte

	// Err returns the channel stream errors arrive on. At most one error
	// is delivered; the stream is dead afterwards.
	Err() <-chan error

	// Close terminates the stream. Safe to call multiple times.
	Close() error
}

// Reader adapts an io.ReadCloser into a Stream.
type Reader struct {
	rc     io.ReadCloser
	chunks chan []byte
	errs   chan error

	closed    chan struct{}
	closeOnce sync.Once
}

// NewReader creates a Stream pumping chunks from rc. Reading starts
// immediately in a background goroutine.
func NewReader(rc io.ReadCloser) *Reader {
	r := &Reader{
		rc:     rc,
		chunks: make(chan []byte, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go r.readLoop()
	return r
}

// Chunks returns the chunk channel.
func (r *Reader) Chunks() <-chan []byte {
	return r.chunks
}

// Err returns the error channel.
func (r *Reader) Err() <-chan error {
	return r.errs
}

// Close terminates the stream and the underlying reader.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
	})
	return r.rc.Close()
}

func (r *Reader) readLoop() {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.rc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case r.chunks <- chunk:
			case <-r.closed:
				return
			}
		}
		if err != nil {
			select {
			case r.errs <- err:
			case <-r.closed:
			}
			return
		}
	}
}
