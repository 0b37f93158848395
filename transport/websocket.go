package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocket implements Stream over a WebSocket connection. Each received
// message is one chunk.
type WebSocket struct {
	conn   *websocket.Conn
	chunks chan []byte
	errs   chan error

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial establishes a WebSocket stream to url. The header may carry
// authentication; nil is fine.
func Dial(ctx context.Context, url string, header http.Header) (*WebSocket, error) {
	dialer := websocket.Dialer{}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}

	ws := &WebSocket{
		conn:   conn,
		chunks: make(chan []byte, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go ws.readLoop()
	return ws, nil
}

// Chunks returns the message channel.
func (ws *WebSocket) Chunks() <-chan []byte {
	return ws.chunks
}

// Err returns the error channel.
func (ws *WebSocket) Err() <-chan error {
	return ws.errs
}

// Close terminates the connection. Safe to call multiple times.
func (ws *WebSocket) Close() error {
	ws.closeOnce.Do(func() {
		close(ws.closed)
	})
	return ws.conn.Close()
}

func (ws *WebSocket) readLoop() {
	for {
		_, message, err := ws.conn.ReadMessage()
		if err != nil {
			select {
			case ws.errs <- err:
			case <-ws.closed:
			}
			return
		}
		select {
		case ws.chunks <- message:
		case <-ws.closed:
			return
		}
	}
}
