package xhttp

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newCtx(method, uri string) *RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	return ctx
}

func decodeError(t *testing.T, ctx *RequestCtx) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	return body
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(ctx *RequestCtx) {
		panic("boom")
	})

	ctx := newCtx("GET", "/api/customers")
	assert.NotPanics(t, func() { h(ctx) })

	assert.Equal(t, StatusInternalServerError, ctx.Response.StatusCode())
	body := decodeError(t, ctx)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "internal server error", body["error"])
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(func(ctx *RequestCtx) {
		seen = RequestID(ctx)
	})

	t.Run("keeps caller id", func(t *testing.T) {
		ctx := newCtx("GET", "/")
		ctx.Request.Header.Set(HeaderRequestID, "req-42")
		h(ctx)
		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", string(ctx.Response.Header.Peek(HeaderRequestID)))
	})

	t.Run("assigns new id", func(t *testing.T) {
		ctx := newCtx("GET", "/")
		h(ctx)
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, string(ctx.Response.Header.Peek(HeaderRequestID)))
	})
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	h := CORSMiddleware([]string{"https://admin.farm.local"})(func(ctx *RequestCtx) {
		called = true
		ctx.SetStatusCode(StatusOK)
	})

	ctx := newCtx("GET", "/api/customers")
	ctx.Request.Header.Set("Origin", "https://admin.farm.local")
	h(ctx)
	assert.True(t, called)
	assert.Equal(t, "https://admin.farm.local", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))

	ctx = newCtx("GET", "/api/customers")
	ctx.Request.Header.Set("Origin", "https://evil.example")
	h(ctx)
	assert.Empty(t, ctx.Response.Header.Peek("Access-Control-Allow-Origin"))

	called = false
	ctx = newCtx("OPTIONS", "/api/customers")
	ctx.Request.Header.Set("Origin", "https://admin.farm.local")
	h(ctx)
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
}

func TestCORSMiddleware_Wildcard(t *testing.T) {
	h := CORSMiddleware([]string{" * "})(func(ctx *RequestCtx) {})

	ctx := newCtx("GET", "/")
	ctx.Request.Header.Set("Origin", "http://localhost:5173")
	h(ctx)
	assert.Equal(t, "http://localhost:5173", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
}

func TestDefaultRouter_NotFound(t *testing.T) {
	r := CreateDefaultRouter()
	r.GET("/api/health", func(ctx *RequestCtx) { ctx.SetStatusCode(StatusOK) })

	ctx := newCtx("GET", "/api/nothing")
	r.Handler(ctx)
	assert.Equal(t, StatusNotFound, ctx.Response.StatusCode())
	assert.Equal(t, "route not found", decodeError(t, ctx)["error"])

	ctx = newCtx("DELETE", "/api/health")
	r.Handler(ctx)
	assert.Equal(t, StatusMethodNotAllowed, ctx.Response.StatusCode())
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"plain"`, quote("plain"))
	assert.Equal(t, `"say \"hi\"\\"`, quote(`say "hi"\`))
	assert.Equal(t, `"a\nb"`, quote("a\nb\t"))
}

func TestEngine_MiddlewareOrder(t *testing.T) {
	e := NewServer(DefaultServerOption)
	var order []string
	mark := func(name string) MiddlewareFunc {
		return func(next RequestHandler) RequestHandler {
			return func(ctx *RequestCtx) {
				order = append(order, name)
				next(ctx)
			}
		}
	}
	e.Use(mark("outer"))
	e.Use(mark("inner"))
	e.Router.GET("/ping", func(ctx *RequestCtx) {
		order = append(order, "handler")
		ctx.SetStatusCode(StatusOK)
	})

	ctx := newCtx("GET", "/ping")
	e.Handler()(ctx)

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
	assert.Equal(t, StatusOK, ctx.Response.StatusCode())
}

func TestEngine_PanicBehindTimeout(t *testing.T) {
	e := NewServer(DefaultServerOption)
	e.Use(RecoverMiddleware)
	e.Use(RequestIDMiddleware)
	e.Use(TimeoutMiddleware(2 * time.Second))
	e.Router.GET("/boom", func(ctx *RequestCtx) {
		panic("boom")
	})
	e.Router.GET("/ok", func(ctx *RequestCtx) {
		ctx.SetStatusCode(StatusOK)
	})

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: e.Handler()}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	client := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
	get := func(path string) *fasthttp.Response {
		req := fasthttp.AcquireRequest()
		defer fasthttp.ReleaseRequest(req)
		req.SetRequestURI("http://ledger.local" + path)
		resp := &fasthttp.Response{}
		require.NoError(t, client.DoTimeout(req, resp, 5*time.Second))
		return resp
	}

	resp := get("/boom")
	assert.Equal(t, StatusInternalServerError, resp.StatusCode())
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "internal server error", body["error"])

	// the server survives and keeps answering
	assert.Equal(t, StatusOK, get("/ok").StatusCode())
}
