package resilient

import (
	"context"
	"net/http"
	"time"

	"github.com/alvarolm/datastar-resilient/retryer"
	"github.com/alvarolm/datastar-resilient/transport"
)

// WatchWebSocket attaches a controller to the element and keeps a
// WebSocket stream to url alive, delivering each received message to
// handler. The full controller lifecycle applies: backoff on failures,
// inactivity monitoring, lifecycle events and subscribers.
func (r *Resilient) WatchWebSocket(el Element, url string, header http.Header, handler func([]byte), copts ...ControllerOption) (*retryer.Controller, error) {
	copts = append(copts, WithConnect(func() {
		go r.runWebSocket(el.ID(), url, header, handler)
	}))
	return r.Attach(el, copts...)
}

// runWebSocket performs one connection attempt and pumps the stream until
// it ends, reporting lifecycle facts to the controller's notifier.
func (r *Resilient) runWebSocket(elementID, url string, header http.Header, handler func([]byte)) {
	ent, ok := r.registry.Lookup(elementID)
	if !ok {
		return
	}
	notifier := ent.Notifier
	opts := notifier.Options()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier.Started(time.Now())
	notifier.SetCancel(cancel)

	stream, err := transport.Dial(ctx, url, header)
	if err != nil {
		r.logger.Debug("websocket dial failed", "element", elementID, "url", url, "error", err)
		notifier.Stopped(true)
		return
	}
	defer stream.Close()

	// The cancellation handle tears the stream down, so inactivity
	// aborts and teardown both unblock the loop below.
	go func() {
		<-ctx.Done()
		stream.Close()
	}()

	notifier.Connected()

	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				notifier.Stopped(true)
				return
			}
			notifier.Activity()
			if opts.DataInterceptor != nil {
				if out := opts.DataInterceptor(chunk); out != nil {
					chunk = out
				}
			}
			if handler != nil {
				handler(chunk)
			}
		case err := <-stream.Err():
			r.logger.Debug("websocket stream error", "element", elementID, "error", err)
			notifier.Stopped(true)
			return
		case <-ctx.Done():
			notifier.Stopped(true)
			return
		}
	}
}
