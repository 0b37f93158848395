// Example: inactivity — recover from a stream that goes silent.
//
// The demo endpoint stops sending after three events but keeps the
// connection open. The inactivity monitor notices the silence, cancels
// the hung request and reconnects, resuming from the last seen event id.
//
// Usage:
//
//	go run ./example/inactivity
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	resilient "github.com/alvarolm/datastar-resilient"
	"github.com/alvarolm/datastar-resilient/cursor"
)

const addr = ":8080"

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/inactivity-test", inactivitySSE)

	go func() {
		log.Printf("demo server on http://localhost%s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatal(err)
		}
	}()

	engine := resilient.New()

	feed := resilient.NewNode("feed")
	feed.OnEvent(func(event string) {
		log.Printf("[feed] %s", event)
	})

	_, err := engine.Attach(feed,
		resilient.WithConnectionEvents(),
		resilient.WithInactivityTimeout(3*time.Second),
		resilient.WithCursor(cursor.NewFile("./progress_inactivity.json")),
		resilient.WithConnect(func() {
			go openStream(engine, feed)
		}),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Watching a stream that goes silent... Press Ctrl+C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = engine.Shutdown(ctx)
}

func openStream(engine *resilient.Resilient, el *resilient.Node) {
	ctx := engine.Correlate(context.Background(), el)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost"+addr+"/api/inactivity-test", nil)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := engine.Client().Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			fmt.Println(" ", line)
		}
	}
}

// inactivitySSE emits three events carrying SSE ids, then hangs without
// closing. Resumed connections pick up the count from Last-Event-ID.
func inactivitySSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	count := 0
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if n, err := strconv.Atoi(last); err == nil {
			count = n
			log.Printf("[server] resuming from event %d", n)
		}
	}
	stopAt := count + 3

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Println("[server] client disconnected")
			return
		case <-ticker.C:
			count++
			fmt.Fprintf(w, "id: %d\ndata: event #%d at %s\n\n", count, count, time.Now().Format("15:04:05"))
			flusher.Flush()

			if count >= stopAt {
				log.Println("[server] going silent")
				<-r.Context().Done()
				return
			}
		}
	}
}
