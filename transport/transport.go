// Package transport executes API calls over HTTP with an optional durable response
// cache in front of the network.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-lms-client/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Request is one call as the transport sees it.
type Request struct {
	Method    string
	Path      string // Relative to the base URL, or an absolute URL
	Query     url.Values
	Header    http.Header
	Body      []byte
	Cacheable bool          // Read and write the response cache
	TTL       time.Duration // Overrides the default TTL when positive
}

// Response is the outcome of a call. Network failures are reported in Err with a zero
// Status instead of as a returned error, so callers always have a response to inspect.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	Err       error
	FromCache bool
}

// OK reports whether the call reached the server and got a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Err == nil && r.Status >= 200 && r.Status < 300
}

type Transport struct {
	baseURL    string
	client     *http.Client
	cache      store.Store
	defaultTTL time.Duration
	breaker    *gobreaker.CircuitBreaker
	middleware []Middleware
	colour     bool
	writes     sync.WaitGroup
	logger     zerolog.Logger
}

// TransportOption defines a function type to modify the Transport instance.
type TransportOption func(*Transport)

// WithHTTPClient sets the client calls are made with. The client is copied; its own
// Transport becomes the innermost round tripper.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *Transport) {
		t.client = client
	}
}

// WithCache enables the response cache. A zero defaultTTL stores entries without expiry.
func WithCache(cache store.Store, defaultTTL time.Duration) TransportOption {
	return func(t *Transport) {
		t.cache = cache
		t.defaultTTL = defaultTTL
	}
}

func WithBreaker(cb *gobreaker.CircuitBreaker) TransportOption {
	return func(t *Transport) {
		t.breaker = cb
	}
}

// WithMiddleware adds round trip middleware inside the built-in request ID and
// logging middleware.
func WithMiddleware(mw ...Middleware) TransportOption {
	return func(t *Transport) {
		t.middleware = append(t.middleware, mw...)
	}
}

// WithColour colours request log lines for console output
func WithColour(colour bool) TransportOption {
	return func(t *Transport) {
		t.colour = colour
	}
}

func WithLogger(logger zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

func New(baseURL string, options ...TransportOption) *Transport {
	t := &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}

	client := *t.client
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	mw := []Middleware{RequestIDMiddleware, LoggingMiddleware(t.logger, t.colour)}
	mw = append(mw, t.middleware...)
	if t.breaker != nil {
		mw = append(mw, BreakerMiddleware(t.breaker))
	}
	client.Transport = ChainMiddleware(base, mw...)
	t.client = &client
	return t
}

// Client returns the HTTP client with the middleware chain installed, for callers
// that build their own requests against the same API.
func (t *Transport) Client() *http.Client {
	return t.client
}

// Do executes req, consulting the cache first when req is cacheable. Successful
// cacheable responses are written back asynchronously.
func (t *Transport) Do(ctx context.Context, req *Request) *Response {
	var key string
	if req.Cacheable && t.cache != nil {
		key = Signature(req.Method, req.Path, req.Query, req.Body)
		if resp, ok := t.lookup(ctx, key); ok {
			t.logger.Debug().Str("method", req.Method).Str("path", req.Path).Msg("cache hit")
			return resp
		}
		t.logger.Debug().Str("method", req.Method).Str("path", req.Path).Msg("cache miss")
	}

	resp := t.roundTrip(ctx, req)
	if key != "" && resp.OK() && len(resp.Body) > 0 {
		ttl := t.defaultTTL
		if req.TTL > 0 {
			ttl = req.TTL
		}
		t.storeAsync(ctx, key, resp, ttl)
	}
	return resp
}

func (t *Transport) roundTrip(ctx context.Context, req *Request) *Response {
	httpReq, err := t.newHTTPRequest(ctx, req)
	if err != nil {
		return &Response{Err: err}
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return &Response{Err: fmt.Errorf("[Transport Do] %s %s: %w", req.Method, req.Path, err)}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &Response{Err: fmt.Errorf("[Transport Do] reading body: %w", err)}
	}
	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   body,
	}
}

func (t *Transport) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target := t.URL(req.Path)
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), target, body)
	if err != nil {
		return nil, fmt.Errorf("[Transport Do] new request: %w", err)
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	return httpReq, nil
}

// URL resolves an API path against the base URL. Absolute URLs are returned unchanged.
func (t *Transport) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return t.baseURL + path
}

// ClearCache waits for pending cache writes and then empties the cache, so a write
// started before the clear cannot resurrect an entry after it.
func (t *Transport) ClearCache(ctx context.Context) error {
	if t.cache == nil {
		return nil
	}
	t.Wait()
	if err := t.cache.Clear(ctx); err != nil {
		return fmt.Errorf("[Transport ClearCache] %w", err)
	}
	t.logger.Info().Msg("response cache cleared")
	return nil
}

// Wait blocks until all pending cache writes have finished.
func (t *Transport) Wait() {
	t.writes.Wait()
}
