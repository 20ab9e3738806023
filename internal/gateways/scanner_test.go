package gateway

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func startScanner(t *testing.T, h fasthttp.RequestHandler) fasthttp.DialFunc {
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = ln.Close()
	})
	return func(string) (net.Conn, error) { return ln.Dial() }
}

const identityJSON = `{"scan_id":"abc","identity":{"name":"Ravi Kumar","care_of":"Ram Prasad","gender":"male","year_of_birth":"1979","national_id":"234567890123","village":"Rampur","district":"Meerut","state":"Uttar Pradesh","pincode":"250342"}}`

func TestClient_Scan(t *testing.T) {
	dial := startScanner(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != scanPath || !ctx.IsPost() {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(identityJSON)
	})

	c, err := NewClient(Config{URLs: []string{"http://scanner"}, Timeout: time.Second, Dial: dial})
	require.NoError(t, err)
	defer c.Close()

	d, err := c.Scan(context.Background(), "<PrintLetterBarcodeData/>")
	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", d.Name)
	assert.Equal(t, "Ram Prasad", d.FatherName)
	assert.Equal(t, "234567890123", d.NationalID)
	assert.Equal(t, SourceScanner, d.Source)

	stats := c.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].TotalRequests)
	assert.Equal(t, "HEALTHY", stats[0].State)
}

func TestClient_Scan_RejectedIsFinal(t *testing.T) {
	var calls atomic.Int32
	dial := startScanner(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusUnprocessableEntity)
	})

	c, err := NewClient(Config{URLs: []string{"http://scanner"}, MaxRetries: 3, Dial: dial})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Scan(context.Background(), "junk")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Scan_CircuitOpens(t *testing.T) {
	dial := startScanner(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	})

	c, err := NewClient(Config{
		URLs:                    []string{"http://scanner"},
		MaxRetries:              5,
		RetryDelay:              time.Millisecond,
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   time.Minute,
		Dial:                    dial,
	})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Scan(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoAvailableEndpoints)
	assert.Equal(t, "CIRCUIT_OPEN", c.Stats()[0].State)
}

func TestEndpoint_CircuitCloses(t *testing.T) {
	e := NewEndpoint("http://a")
	e.SetState(StateCircuitOpen)
	e.circuitOpenUntil.Store(time.Now().Add(-time.Second).UnixMilli())

	assert.True(t, e.Available(time.Now()))
	assert.Equal(t, StateHealthy, e.State())
}

func TestEndpoint_Score(t *testing.T) {
	fresh := NewEndpoint("http://a")
	failing := NewEndpoint("http://b")
	failing.metrics.RecordFailure()
	failing.metrics.RecordFailure()

	now := time.Now()
	assert.Greater(t, fresh.Score(now), failing.Score(now))

	failing.SetState(StateUnhealthy)
	assert.Zero(t, failing.Score(now))
}

func TestClient_HealthCheck(t *testing.T) {
	var healthy atomic.Bool
	dial := startScanner(t, func(ctx *fasthttp.RequestCtx) {
		if healthy.Load() {
			ctx.SetBodyString(`{"status":"healthy"}`)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	})

	c, err := NewClient(Config{URLs: []string{"http://scanner"}, Dial: dial})
	require.NoError(t, err)
	defer c.Close()

	c.checkHealth()
	assert.Equal(t, StateUnhealthy, c.endpoints[0].State())

	healthy.Store(true)
	c.checkHealth()
	assert.Equal(t, StateHealthy, c.endpoints[0].State())
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
