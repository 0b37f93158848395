// Example: basic — keep an SSE stream alive against a flaky origin.
//
// Starts a local demo server whose endpoint randomly refuses connections
// and drops the stream after a few events, then attaches a resilient
// client that reconnects through every failure.
//
// Usage:
//
//	go run ./example/basic
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	resilient "github.com/alvarolm/datastar-resilient"
)

const addr = ":8080"

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stable", stableSSE)
	mux.HandleFunc("/api/random-failures", randomFailuresSSE)

	go func() {
		log.Printf("demo server on http://localhost%s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatal(err)
		}
	}()

	// 1. Create the engine
	engine := resilient.New()

	// 2. Attach an element; its connect trigger opens the stream
	feed := resilient.NewNode("feed")
	feed.OnEvent(func(event string) {
		log.Printf("[feed] %s", event)
	})

	_, err := engine.Attach(feed,
		resilient.WithConnectionEvents(),
		resilient.WithConnect(func() {
			go openStream(engine, feed, "/api/random-failures")
		}),
	)
	if err != nil {
		log.Fatal(err)
	}

	// A second element with its own independent controller.
	status := resilient.NewNode("status")
	_, err = engine.Attach(status,
		resilient.WithConnect(func() {
			go openStream(engine, status, "/api/stable")
		}),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Streaming through random failures... Press Ctrl+C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = engine.Shutdown(ctx)
}

// openStream performs one connection attempt. Failures are already handled
// by the engine; it only needs to read until the stream ends.
func openStream(engine *resilient.Resilient, el *resilient.Node, path string) {
	ctx := engine.Correlate(context.Background(), el)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost"+addr+path, nil)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := engine.Client().Do(req)
	if err != nil {
		// The reconnect is already scheduled; nothing to do here.
		return
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			fmt.Printf("  [%s] %s\n", el.ID(), line)
		}
	}
}

// stableSSE never fails; it just keeps counting.
func stableSSE(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	count := 0

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			count++
			_ = sse.MarshalAndPatchSignals(map[string]any{
				"uptime": count,
			})
		}
	}
}

// randomFailuresSSE refuses half of all connections and kills the stream
// after four events.
func randomFailuresSSE(w http.ResponseWriter, r *http.Request) {
	if rand.Float32() < 0.50 {
		log.Println("[server] simulating connection failure")
		http.Error(w, "random failure", http.StatusServiceUnavailable)
		return
	}

	sse := datastar.NewSSE(w, r)
	count := 0

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Println("[server] client disconnected")
			return
		case <-ticker.C:
			count++
			if count > 4 {
				log.Println("[server] simulating mid-stream failure")
				return
			}
			_ = sse.MarshalAndPatchSignals(map[string]any{
				"count": count,
				"at":    time.Now().Format("15:04:05"),
			})
		}
	}
}
