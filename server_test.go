package nitro

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrohttp/nitro/internal/config"
	"github.com/nitrohttp/nitro/internal/util"
)

func newTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_HelloWorld(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.Get("/hello", func(err error, r *Request) {
		_ = r.SendText("Hello, World!")
	}))

	rec := doRequest(s, "GET", "/hello", nil)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "Hello, World!", rec.Body.String())
	assert.Equal(t, contentTypeText, rec.Header().Get("Content-Type"))
}

func TestServer_JSONEcho(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.Post("/echo", func(err error, r *Request) {
		var in map[string]any
		if err := r.BodyJSON(&in); err != nil {
			r.SetStatusCode(400)
			_ = r.SendText("bad request body")
			return
		}
		_ = r.SendObject(map[string]any{"received": in["message"]})
	}))

	rec := doRequest(s, "POST", "/echo", strings.NewReader(`{"message":"hi"}`))

	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"received":"hi"}`, rec.Body.String())
	assert.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))
}

func TestServer_PathParams(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.Get("/users/:id/posts/:postId", func(err error, r *Request) {
		id, _ := r.PathParam("id")
		postID, _ := r.PathParam("postId")
		_ = r.SendText(id + "/" + postID)
	}))

	rec := doRequest(s, "GET", "/users/42/posts/7", nil)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "42/7", rec.Body.String())
}

func TestServer_QueryParams(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.Get("/search", func(err error, r *Request) {
		_ = r.SendText(r.QueryParams()["q"])
	}))

	rec := doRequest(s, "GET", "/search?q=hello%20world&page=2", nil)

	assert.Equal(t, "hello world", rec.Body.String())
}

func TestServer_NotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.Get("/exists", func(err error, r *Request) {
		_ = r.SendEmpty()
	}))

	rec := doRequest(s, "GET", "/missing", nil)

	assert.Equal(t, 404, rec.Code)
	assert.JSONEq(t, `{"error":"Route not found","path":"/missing"}`, rec.Body.String())

	// Wrong method on an existing path is a miss too.
	rec = doRequest(s, "POST", "/exists", nil)
	assert.Equal(t, 404, rec.Code)
}

func TestServer_AsyncTimeout(t *testing.T) {
	t.Parallel()

	cfg := &Config{DispatchTimeout: config.Duration(50 * time.Millisecond)}
	s := newTestServer(t, cfg)
	require.NoError(t, s.HandleAsync("GET", "/stuck", func(err error, r *Request) {
		// Never resolves.
	}))

	rec := doRequest(s, "GET", "/stuck", nil)

	assert.Equal(t, 504, rec.Code)
	assert.JSONEq(t, `{"error":"Handler timeout","path":"/stuck"}`, rec.Body.String())
}

func TestServer_SyncHandlerBlockedTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	cfg := &Config{DispatchTimeout: config.Duration(50 * time.Millisecond)}
	s := newTestServer(t, cfg)
	require.NoError(t, s.Get("/wedged", func(err error, r *Request) {
		<-release
	}))

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- doRequest(s, "GET", "/wedged", nil) }()

	select {
	case rec := <-done:
		assert.Equal(t, 504, rec.Code)
		assert.JSONEq(t, `{"error":"Handler timeout","path":"/wedged"}`, rec.Body.String())
	case <-time.After(2 * time.Second):
		t.Fatal("request did not complete after the dispatch timeout")
	}
}

func TestServer_AsyncSend(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.HandleAsync("GET", "/async", func(err error, r *Request) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			r.SetStatusCode(202)
			_ = r.SendJSON(`{"queued":true}`)
		}()
	}))

	rec := doRequest(s, "GET", "/async", nil)

	assert.Equal(t, 202, rec.Code)
	assert.JSONEq(t, `{"queued":true}`, rec.Body.String())
}

func TestServer_CustomHeadersAndStatus(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.Post("/items", func(err error, r *Request) {
		r.SetStatusCode(201)
		r.AddHeader("Location", "/items/1")
		r.AddHeader("X-Custom", "value")
		_ = r.SendJSON(`{"id":1}`)
	}))

	rec := doRequest(s, "POST", "/items", strings.NewReader(`{}`))

	assert.Equal(t, 201, rec.Code)
	assert.Equal(t, "/items/1", rec.Header().Get("Location"))
	assert.Equal(t, "value", rec.Header().Get("X-Custom"))
}

func TestServer_HandlerContentTypeOverride(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.Get("/xml", func(err error, r *Request) {
		r.AddHeader("Content-Type", "application/xml")
		_ = r.SendText("<ok/>")
	}))

	rec := doRequest(s, "GET", "/xml", nil)

	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
}

func TestServer_SendRaw(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.Get("/blob", func(err error, r *Request) {
		_ = r.SendRaw([]byte{0xDE, 0xAD})
	}))

	rec := doRequest(s, "GET", "/blob", nil)

	assert.Equal(t, contentTypeBinary, rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0xDE, 0xAD}, rec.Body.Bytes())
}

func TestServer_PanicRecovery(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.Get("/panic", func(err error, r *Request) {
		panic("handler exploded")
	}))

	rec := doRequest(s, "GET", "/panic", nil)

	assert.Equal(t, 500, rec.Code)
	assert.Equal(t, "Internal Server Error", rec.Body.String())
}

func TestServer_BodyTooLarge(t *testing.T) {
	t.Parallel()

	cfg := &Config{MaxBodyBytes: 16}
	s := newTestServer(t, cfg)
	require.NoError(t, s.Post("/upload", func(err error, r *Request) {
		_ = r.SendEmpty()
	}))

	rec := doRequest(s, "POST", "/upload", strings.NewReader(strings.Repeat("x", 64)))

	assert.Equal(t, 413, rec.Code)
}

func TestServer_RegisterValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)

	assert.ErrorIs(t, s.Handle("BREW", "/teapot", func(error, *Request) {}), util.ErrInvalidInput)
	assert.ErrorIs(t, s.Handle("GET", "/ok", nil), util.ErrInvalidInput)
	assert.ErrorIs(t, s.Handle("GET", "no-slash", func(error, *Request) {}), util.ErrInvalidPattern)

	require.NoError(t, s.Get("/dup", func(error, *Request) {}))
	assert.ErrorIs(t, s.Get("/dup", func(error, *Request) {}), util.ErrDuplicateRoute)

	// Same shape under different capture names is ambiguous.
	require.NoError(t, s.Get("/users/:id", func(error, *Request) {}))
	assert.ErrorIs(t, s.Get("/users/:userId", func(error, *Request) {}), util.ErrDuplicateRoute)

	// Lowercase methods are normalized.
	require.NoError(t, s.Handle("get", "/lower", func(error, *Request) {}))
}

func TestServer_ClearRoutes(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.Get("/a", func(err error, r *Request) { _ = r.SendEmpty() }))
	require.NoError(t, s.Get("/b", func(err error, r *Request) { _ = r.SendEmpty() }))
	assert.Equal(t, 2, s.RouteCount())

	assert.Equal(t, 200, doRequest(s, "GET", "/a", nil).Code)

	s.ClearRoutes()
	assert.Equal(t, 0, s.RouteCount())
	assert.Equal(t, 404, doRequest(s, "GET", "/a", nil).Code)

	// Routes can be registered again after a clear.
	require.NoError(t, s.Get("/a", func(err error, r *Request) { _ = r.SendText("back") }))
	assert.Equal(t, "back", doRequest(s, "GET", "/a", nil).Body.String())
}

func TestServer_RateLimit(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		RateLimit: &config.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			Burst:             1,
		},
	}
	s := newTestServer(t, cfg)
	require.NoError(t, s.Get("/limited", func(err error, r *Request) {
		_ = r.SendEmpty()
	}))

	assert.Equal(t, 200, doRequest(s, "GET", "/limited", nil).Code)
	assert.Equal(t, 429, doRequest(s, "GET", "/limited", nil).Code)
}

func TestServer_RequestIDPropagated(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	require.NoError(t, s.Get("/id", func(err error, r *Request) {
		_ = r.SendEmpty()
	}))

	req := httptest.NewRequest("GET", "/id", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}

func TestServer_Lifecycle(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s, err := New(nil, WithListener(ln))
	require.NoError(t, err)
	require.NoError(t, s.Get("/ping", func(err error, r *Request) {
		_ = r.SendText("pong")
	}))

	assert.Equal(t, StateStopped, s.State())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.Equal(t, StateRunning, s.State())
	assert.True(t, s.IsRunning())
	assert.NotEmpty(t, s.Addr())

	// Starting twice fails.
	assert.ErrorIs(t, s.Start(ctx), ErrServerNotStopped)

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "pong", string(body))

	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, StateStopped, s.State())

	// Stopping twice fails.
	assert.ErrorIs(t, s.Stop(ctx), ErrServerNotRunning)
}

func TestServer_RoutesRegisteredWhileRunning(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s, err := New(nil, WithListener(ln))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Stop(ctx) }()

	require.NoError(t, s.Get("/late", func(err error, r *Request) {
		_ = r.SendText("registered late")
	}))

	resp, err := http.Get("http://" + s.Addr() + "/late")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "registered late", string(body))
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "stopped"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
