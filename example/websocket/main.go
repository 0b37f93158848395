// Example: websocket — keep a WebSocket subscription alive.
//
// Starts a local ticker server that drops every connection after a few
// messages, then watches it with WatchWebSocket: the engine redials
// through every drop.
//
// Usage:
//
//	go run ./example/websocket
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	resilient "github.com/alvarolm/datastar-resilient"
	"github.com/alvarolm/datastar-resilient/backoff"
)

const addr = ":8080"

var upgrader = websocket.Upgrader{}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/ticks", tickerWS)

	go func() {
		log.Printf("demo server on ws://localhost%s/ws/ticks", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatal(err)
		}
	}()

	engine := resilient.New()

	ticks := resilient.NewNode("ticks")
	ticks.OnEvent(func(event string) {
		log.Printf("[ticks] %s", event)
	})

	_, err := engine.WatchWebSocket(ticks, "ws://localhost"+addr+"/ws/ticks", nil,
		func(msg []byte) {
			fmt.Printf("  %s\n", msg)
		},
		resilient.WithConnectionEvents(),
		resilient.WithBackoff(backoff.Jittered(500*time.Millisecond, 10*time.Second)),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Watching ticks through connection drops... Press Ctrl+C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = engine.Shutdown(ctx)
}

// tickerWS sends one tick per second and hangs up after five.
func tickerWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for i := 1; i <= 5; i++ {
		msg := fmt.Sprintf("tick #%d at %s", i, time.Now().Format("15:04:05"))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
		time.Sleep(time.Second)
	}
	log.Println("[server] dropping connection")
}
