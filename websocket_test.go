package resilient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("tick"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("tock"))
		// Keep the connection open so the stream stays up.
		time.Sleep(5 * time.Second)
	}))
	defer srv.Close()

	r := newTestEngine()
	defer r.Shutdown(context.Background())

	var (
		mu   sync.Mutex
		got  []string
		url  = "ws" + strings.TrimPrefix(srv.URL, "http")
		el   = NewNode("ticker")
		take = func(msg []byte) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, string(msg))
		}
	)

	ctrl, err := r.WatchWebSocket(el, url, nil, take, WithBackoff(fastBackoff{}))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 2
	}, 10*time.Second, 10*time.Millisecond, "messages never arrived")

	mu.Lock()
	assert.Equal(t, []string{"tick", "tock"}, got[:2])
	mu.Unlock()
	assert.True(t, ctrl.Connected())

	require.NoError(t, r.Detach(el))
}

func TestWatchWebSocket_ReconnectsAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	conns := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		mu.Unlock()
		// Hang up immediately; the client should keep coming back.
		conn.Close()
	}))
	defer srv.Close()

	r := newTestEngine()
	defer r.Shutdown(context.Background())

	el := NewNode("ticker")
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, err := r.WatchWebSocket(el, url, nil, nil, WithBackoff(fastBackoff{}))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return conns >= 3
	}, 10*time.Second, 10*time.Millisecond, "client stopped reconnecting")

	require.NoError(t, r.Detach(el))
}
