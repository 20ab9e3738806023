package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

const (
	SourceScanner = "scanner"
	scanPath      = "/api/v1/scan/qr"
	healthPath    = "/health"
)

var (
	ErrNoAvailableEndpoints = errors.New("no available scanner endpoints")
	ErrRejected             = errors.New("scanner rejected the payload")
)

type ScanRequest struct {
	Payload string `json:"payload"`
}

// Identity is the scanner service's view of a card.
type Identity struct {
	Name        string `json:"name"`
	CareOf      string `json:"care_of"`
	Gender      string `json:"gender"`
	YearOfBirth string `json:"year_of_birth"`
	NationalID  string `json:"national_id"`
	Village     string `json:"village"`
	Address     string `json:"address"`
	District    string `json:"district"`
	State       string `json:"state"`
	Pincode     string `json:"pincode"`
}

type ScanResponse struct {
	ScanID   string   `json:"scan_id"`
	Identity Identity `json:"identity"`
}

func (r *ScanResponse) Draft() *model.CustomerDraft {
	id := r.Identity
	return &model.CustomerDraft{
		Name:        id.Name,
		FatherName:  id.CareOf,
		Gender:      id.Gender,
		YearOfBirth: id.YearOfBirth,
		NationalID:  id.NationalID,
		Village:     id.Village,
		Address:     id.Address,
		District:    id.District,
		State:       id.State,
		Pincode:     id.Pincode,
		Source:      SourceScanner,
	}
}

type EndpointMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	ConsecutiveFails atomic.Int32
}

func (m *EndpointMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.ConsecutiveFails.Store(0)
}

func (m *EndpointMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
}

func (m *EndpointMetrics) AvgLatencyMs() int64 {
	ok := m.SuccessfulReqs.Load()
	if ok == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / ok
}

func (m *EndpointMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

type EndpointState int32

const (
	StateHealthy EndpointState = iota
	StateUnhealthy
	StateCircuitOpen
)

func (s EndpointState) String() string {
	switch s {
	case StateHealthy:
		return "HEALTHY"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	}
	return "UNKNOWN"
}

type Endpoint struct {
	url              string
	metrics          EndpointMetrics
	state            atomic.Int32
	circuitOpenUntil atomic.Int64
}

func NewEndpoint(url string) *Endpoint {
	return &Endpoint{url: url}
}

func (e *Endpoint) State() EndpointState {
	return EndpointState(e.state.Load())
}

func (e *Endpoint) SetState(s EndpointState) {
	e.state.Store(int32(s))
}

// Available closes an expired circuit as a side effect.
func (e *Endpoint) Available(now time.Time) bool {
	switch e.State() {
	case StateCircuitOpen:
		if now.UnixMilli() >= e.circuitOpenUntil.Load() {
			e.SetState(StateHealthy)
			return true
		}
		return false
	case StateUnhealthy:
		return false
	}
	return true
}

// Score ranks endpoints, higher is better. 0 means unavailable.
func (e *Endpoint) Score(now time.Time) float64 {
	if !e.Available(now) {
		return 0
	}
	latencyScore := 100.0 * (1.0 - float64(e.metrics.AvgLatencyMs())/5000.0)
	if latencyScore < 0 {
		latencyScore = 0
	}
	penalty := 1.0 - float64(e.metrics.ConsecutiveFails.Load())*0.1
	if penalty < 0.1 {
		penalty = 0.1
	}
	return (e.metrics.SuccessRate()*100*0.6 + latencyScore*0.4) * penalty
}

type Config struct {
	URLs                    []string
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	HealthCheckInterval     time.Duration
	// Dial replaces the network dialer, used by tests.
	Dial fasthttp.DialFunc
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 100 * time.Millisecond
	}
	if c.CircuitBreakerThreshold <= 0 {
		c.CircuitBreakerThreshold = 3
	}
	if c.CircuitBreakerTimeout <= 0 {
		c.CircuitBreakerTimeout = 30 * time.Second
	}
}

// Client calls the scanner service, picking the best endpoint per attempt.
type Client struct {
	config    Config
	http      *fasthttp.Client
	endpoints []*Endpoint
	mu        sync.RWMutex
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewClient(config Config) (*Client, error) {
	if len(config.URLs) == 0 {
		return nil, errors.New("at least one scanner url is required")
	}
	config.setDefaults()

	c := &Client{
		config: config,
		http: &fasthttp.Client{
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			Dial:                config.Dial,
		},
		stopCh: make(chan struct{}),
	}
	for _, u := range config.URLs {
		c.endpoints = append(c.endpoints, NewEndpoint(u))
	}

	if config.HealthCheckInterval > 0 {
		c.wg.Add(1)
		go c.healthChecker()
	}
	logger.Info("scanner client initialized", "endpoints", len(c.endpoints), "timeout", config.Timeout)
	return c, nil
}

func (c *Client) SelectEndpoint() (*Endpoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	var best *Endpoint
	var bestScore float64
	for _, e := range c.endpoints {
		if s := e.Score(now); s > bestScore {
			best, bestScore = e, s
		}
	}
	if best == nil {
		return nil, ErrNoAvailableEndpoints
	}
	return best, nil
}

// Scan sends the payload to the scanner. A 4xx answer is final and
// returned as ErrRejected, other failures are retried on the next endpoint.
func (c *Client) Scan(ctx context.Context, payload string) (*model.CustomerDraft, error) {
	body, err := json.Marshal(ScanRequest{Payload: payload})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		endpoint, err := c.SelectEndpoint()
		if err != nil {
			return nil, err
		}

		start := time.Now()
		status, resp, err := c.do(ctx, endpoint, fasthttp.MethodPost, scanPath, body)
		if err == nil && status >= 400 && status < 500 {
			endpoint.metrics.RecordSuccess(time.Since(start).Milliseconds())
			return nil, fmt.Errorf("%w: status %d", ErrRejected, status)
		}
		if err == nil && status != fasthttp.StatusOK {
			err = fmt.Errorf("unexpected status code: %d", status)
		}
		if err != nil {
			endpoint.metrics.RecordFailure()
			c.checkCircuitBreaker(endpoint)
			logger.Warn("scanner request failed", "endpoint", endpoint.url, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		endpoint.metrics.RecordSuccess(time.Since(start).Milliseconds())

		var out ScanResponse
		if err := json.Unmarshal(resp, &out); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		logger.Debug("scan completed", "scan_id", out.ScanID, "endpoint", endpoint.url)
		return out.Draft(), nil
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) do(ctx context.Context, e *Endpoint, method, path string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(e.url + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return resp.StatusCode(), out, nil
}

func (c *Client) checkCircuitBreaker(e *Endpoint) {
	fails := e.metrics.ConsecutiveFails.Load()
	if fails >= int32(c.config.CircuitBreakerThreshold) {
		e.SetState(StateCircuitOpen)
		e.circuitOpenUntil.Store(time.Now().Add(c.config.CircuitBreakerTimeout).UnixMilli())
		logger.Warn("scanner circuit opened", "endpoint", e.url, "consecutive_fails", fails)
	}
}

func (c *Client) healthChecker() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.checkHealth()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Client) checkHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	c.mu.RLock()
	endpoints := append([]*Endpoint(nil), c.endpoints...)
	c.mu.RUnlock()

	for _, e := range endpoints {
		if e.State() == StateCircuitOpen {
			continue
		}
		status, _, err := c.do(ctx, e, fasthttp.MethodGet, healthPath, nil)
		healthy := err == nil && status == fasthttp.StatusOK
		switch {
		case healthy && e.State() == StateUnhealthy:
			e.SetState(StateHealthy)
			logger.Info("scanner endpoint recovered", "endpoint", e.url)
		case !healthy && e.State() == StateHealthy:
			e.SetState(StateUnhealthy)
			logger.Warn("scanner endpoint unhealthy", "endpoint", e.url, "error", err)
		}
	}
}

type EndpointStats struct {
	URL              string
	State            string
	Score            float64
	TotalRequests    int64
	FailedReqs       int64
	AvgLatencyMs     int64
	ConsecutiveFails int32
}

// Stats lists endpoints by descending score.
func (c *Client) Stats() []EndpointStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	stats := make([]EndpointStats, 0, len(c.endpoints))
	for _, e := range c.endpoints {
		stats = append(stats, EndpointStats{
			URL:              e.url,
			State:            e.State().String(),
			Score:            e.Score(now),
			TotalRequests:    e.metrics.TotalRequests.Load(),
			FailedReqs:       e.metrics.FailedReqs.Load(),
			AvgLatencyMs:     e.metrics.AvgLatencyMs(),
			ConsecutiveFails: e.metrics.ConsecutiveFails.Load(),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Score > stats[j].Score })
	return stats
}

func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	return nil
}
