package intercept

import (
	"bytes"
	"io"
	"log/slog"
	"sync"

	"github.com/alvarolm/datastar-resilient/retryer"
)

const readChunkSize = 32 * 1024

// maxLineCarry bounds the partial-line buffer used for SSE id scanning so
// a stream without newlines cannot grow it unbounded.
const maxLineCarry = 8 * 1024

// body wraps a response body stream. Per chunk it refreshes the
// controller's activity clock, records SSE event ids when a cursor is
// configured, and applies the data interceptor (a nil return forwards the
// chunk unmodified). Any end of the stream (EOF, a read error, or the
// consumer closing) feeds the controller's stop/reconnect path exactly
// once.
type body struct {
	rc       io.ReadCloser
	notifier *retryer.Notifier
	element  string
	opts     retryer.Options
	cancel   func()
	log      *slog.Logger

	pending  []byte
	savedErr error
	scratch  []byte
	lineBuf  []byte
	once     sync.Once
}

func newBody(rc io.ReadCloser, n *retryer.Notifier, elementID string, opts retryer.Options, cancel func(), log *slog.Logger) *body {
	return &body{
		rc:       rc,
		notifier: n,
		element:  elementID,
		opts:     opts,
		cancel:   cancel,
		log:      log,
	}
}

// Read implements io.Reader.
func (b *body) Read(p []byte) (int, error) {
	if len(b.pending) == 0 && b.savedErr == nil {
		b.fill()
	}

	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}

	if b.savedErr != nil {
		b.finish()
		return 0, b.savedErr
	}
	return 0, nil
}

// fill reads one chunk from the underlying stream into the pending buffer,
// applying the per-chunk processing.
func (b *body) fill() {
	if b.scratch == nil {
		b.scratch = make([]byte, readChunkSize)
	}

	n, err := b.rc.Read(b.scratch)
	if n > 0 {
		b.notifier.Activity()

		chunk := b.scratch[:n]
		if b.opts.Cursor != nil {
			b.scanEventID(chunk)
		}
		if b.opts.DataInterceptor != nil {
			if out := b.opts.DataInterceptor(chunk); out != nil {
				chunk = out
			}
		}
		b.pending = append(b.pending[:0], chunk...)
	}
	if err != nil {
		b.savedErr = err
	}
}

// Close implements io.Closer. Closing the stream of a still-attached
// element counts as a disconnect; deliberate shutdown goes through the
// controller's teardown instead.
func (b *body) Close() error {
	b.finish()
	return b.rc.Close()
}

// finish runs the stop/reconnect path exactly once per stream.
func (b *body) finish() {
	b.once.Do(func() {
		b.cancel()
		b.notifier.Stopped(true)
	})
}

// scanEventID scans chunk for SSE "id:" fields, carrying partial lines
// across chunk boundaries, and persists the latest id to the cursor.
func (b *body) scanEventID(chunk []byte) {
	b.lineBuf = append(b.lineBuf, chunk...)
	for {
		i := bytes.IndexByte(b.lineBuf, '\n')
		if i < 0 {
			if len(b.lineBuf) > maxLineCarry {
				b.lineBuf = b.lineBuf[:0]
			}
			return
		}
		line := bytes.TrimRight(b.lineBuf[:i], "\r")
		b.lineBuf = b.lineBuf[i+1:]

		value, ok := bytes.CutPrefix(line, []byte("id:"))
		if !ok {
			continue
		}
		id := string(bytes.TrimSpace(value))
		if id == "" {
			continue
		}
		if err := b.opts.Cursor.Save(b.element, id); err != nil {
			b.log.Debug("saving stream position failed", "element", b.element, "error", err)
		}
	}
}
