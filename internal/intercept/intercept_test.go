package intercept

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarolm/datastar-resilient/cursor"
	"github.com/alvarolm/datastar-resilient/internal/registry"
	"github.com/alvarolm/datastar-resilient/retryer"
)

type stubElement struct {
	id    string
	alive atomic.Bool
}

func newStubElement(id string) *stubElement {
	e := &stubElement{id: id}
	e.alive.Store(true)
	return e
}

func (e *stubElement) ID() string  { return e.id }
func (e *stubElement) Alive() bool { return e.alive.Load() }

type hourCalculator struct{}

func (hourCalculator) Next(int, time.Time, int) (time.Duration, bool) {
	return time.Hour, true
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingTransport counts round trips so tests can assert a request never
// reached the network.
type countingTransport struct {
	base  http.RoundTripper
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return c.base.RoundTrip(req)
}

func setup(t *testing.T, opts retryer.Options) (*registry.Registry, *stubElement, *retryer.Controller) {
	t.Helper()

	if opts.Backoff == nil {
		opts.Backoff = hourCalculator{}
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}

	reg := registry.New(0)
	t.Cleanup(func() { _ = reg.Close() })

	el := newStubElement("el-1")
	ctrl, notifier, err := retryer.New(el, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Close() })

	require.NoError(t, reg.Register(registry.Entry{Element: el, Controller: ctrl, Notifier: notifier}))
	return reg, el, ctrl
}

func TestTransport_PassThroughWithoutID(t *testing.T) {
	var sawHeader atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(FetchIDHeader) != "" {
			sawHeader.Store(true)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg, _, _ := setup(t, retryer.Options{})
	tr := NewTransport(nil, reg, quietLogger())

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, sawHeader.Load())
}

func TestTransport_UnknownIDStripsHeader(t *testing.T) {
	var sawHeader atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(FetchIDHeader) != "" {
			sawHeader.Store(true)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg, _, _ := setup(t, retryer.Options{})
	tr := NewTransport(nil, reg, quietLogger())

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set(FetchIDHeader, "no-such-id")

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, sawHeader.Load(), "correlation id must never reach the origin")
}

func TestTransport_SuccessfulStream(t *testing.T) {
	var sawHeader atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(FetchIDHeader) != "" {
			sawHeader.Store(true)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: hello\n\ndata: world\n\n")
	}))
	defer srv.Close()

	reg, el, ctrl := setup(t, retryer.Options{})
	tr := NewTransport(nil, reg, quietLogger())

	id := reg.Issue(el)
	req, err := http.NewRequestWithContext(WithFetchID(context.Background(), id), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)

	assert.True(t, ctrl.Connected())
	assert.False(t, sawHeader.Load())

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "data: hello\n\ndata: world\n\n", string(got))
	_ = resp.Body.Close()

	// Stream end counts as a disconnect and schedules a reconnect.
	assert.False(t, ctrl.Connected())
}

func TestTransport_FailedRequestClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reg, el, ctrl := setup(t, retryer.Options{})
	tr := NewTransport(nil, reg, quietLogger())

	id := reg.Issue(el)
	req, err := http.NewRequestWithContext(WithFetchID(context.Background(), id), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = tr.RoundTrip(req)
	require.ErrorIs(t, err, ErrFailedRequest)

	assert.False(t, ctrl.Connected())
	assert.GreaterOrEqual(t, ctrl.Reconnections(), 1)
}

func TestTransport_CustomFailureClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	reg, el, ctrl := setup(t, retryer.Options{
		IsFailedRequest: func(resp *http.Response) bool {
			return resp.StatusCode >= 500
		},
	})
	tr := NewTransport(nil, reg, quietLogger())

	id := reg.Issue(el)
	req, err := http.NewRequestWithContext(WithFetchID(context.Background(), id), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.True(t, ctrl.Connected())
}

func TestTransport_CancelledContextAbortsBeforeNetwork(t *testing.T) {
	base := &countingTransport{base: http.DefaultTransport}
	reg, el, ctrl := setup(t, retryer.Options{})
	tr := NewTransport(base, reg, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := reg.Issue(el)
	req, err := http.NewRequestWithContext(WithFetchID(ctx, id), http.MethodGet, "http://example.invalid/stream", nil)
	require.NoError(t, err)

	_, err = tr.RoundTrip(req)
	require.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, base.calls.Load())
	assert.False(t, ctrl.Connected())
	// The failed attempt still feeds the reconnect loop.
	assert.GreaterOrEqual(t, ctrl.Reconnections(), 1)
}

func TestTransport_NetworkErrorSchedulesReconnect(t *testing.T) {
	reg, el, ctrl := setup(t, retryer.Options{})
	tr := NewTransport(nil, reg, quietLogger())

	id := reg.Issue(el)
	req, err := http.NewRequestWithContext(WithFetchID(context.Background(), id), http.MethodGet, "http://127.0.0.1:1/stream", nil)
	require.NoError(t, err)

	_, err = tr.RoundTrip(req)
	require.Error(t, err)

	assert.False(t, ctrl.Connected())
	assert.GreaterOrEqual(t, ctrl.Reconnections(), 1)
}

func TestTransport_RequestInterceptor(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg, el, _ := setup(t, retryer.Options{
		RequestInterceptor: func(req *http.Request) *http.Request {
			req.Header.Set("Authorization", "Bearer token")
			return req
		},
	})
	tr := NewTransport(nil, reg, quietLogger())

	id := reg.Issue(el)
	req, err := http.NewRequestWithContext(WithFetchID(context.Background(), id), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, "Bearer token", gotAuth.Load())
}

func TestTransport_DataInterceptor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: secret\n\n")
	}))
	defer srv.Close()

	reg, el, _ := setup(t, retryer.Options{
		DataInterceptor: func(chunk []byte) []byte {
			return bytes.ToUpper(chunk)
		},
	})
	tr := NewTransport(nil, reg, quietLogger())

	id := reg.Issue(el)
	req, err := http.NewRequestWithContext(WithFetchID(context.Background(), id), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "DATA: SECRET\n\n", string(got))
}

func TestTransport_DataInterceptorNilKeepsChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: original\n\n")
	}))
	defer srv.Close()

	reg, el, _ := setup(t, retryer.Options{
		DataInterceptor: func([]byte) []byte { return nil },
	})
	tr := NewTransport(nil, reg, quietLogger())

	id := reg.Issue(el)
	req, err := http.NewRequestWithContext(WithFetchID(context.Background(), id), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "data: original\n\n", string(got))
}

func TestTransport_CursorResume(t *testing.T) {
	var lastEventID atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastEventID.Store(r.Header.Get(LastEventIDHeader))
		_, _ = io.WriteString(w, "id: 42\ndata: tick\n\n")
	}))
	defer srv.Close()

	cur := cursor.NewMemory()
	require.NoError(t, cur.Save("el-1", "41"))

	reg, el, _ := setup(t, retryer.Options{Cursor: cur})
	tr := NewTransport(nil, reg, quietLogger())

	id := reg.Issue(el)
	req, err := http.NewRequestWithContext(WithFetchID(context.Background(), id), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	// The saved position was sent, and the new id was recorded.
	assert.Equal(t, "41", lastEventID.Load())
	saved, err := cur.Load("el-1")
	require.NoError(t, err)
	assert.Equal(t, "42", saved)
}

func TestTransport_BodyCloseCountsAsDisconnect(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: one\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(done)

	reg, el, ctrl := setup(t, retryer.Options{})
	tr := NewTransport(nil, reg, quietLogger())

	id := reg.Issue(el)
	req, err := http.NewRequestWithContext(WithFetchID(context.Background(), id), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	require.True(t, ctrl.Connected())

	buf := make([]byte, 64)
	_, err = resp.Body.Read(buf)
	require.NoError(t, err)

	_ = resp.Body.Close()
	assert.False(t, ctrl.Connected())
	assert.GreaterOrEqual(t, ctrl.Reconnections(), 1)
}

func TestScanEventID_SplitAcrossChunks(t *testing.T) {
	cur := cursor.NewMemory()
	b := &body{
		element: "el-1",
		opts:    retryer.Options{Cursor: cur},
		log:     quietLogger(),
	}

	b.scanEventID([]byte("id: 1"))
	saved, _ := cur.Load("el-1")
	assert.Empty(t, saved, "partial line must not be recorded")

	b.scanEventID([]byte("7\ndata: x\n"))
	saved, _ = cur.Load("el-1")
	assert.Equal(t, "17", saved)
}
