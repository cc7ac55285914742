package api

import (
	"context"
	"time"

	"github.com/jrsteele09/go-lms-client/response"
)

// ResponseTypeBlob returns the response body as []byte instead of decoded JSON.
const ResponseTypeBlob = "blob"

// CachePolicy selects whether a call uses the response cache and for how long.
type CachePolicy struct {
	Enabled bool
	TTL     time.Duration // Zero uses the configured default
}

var (
	NoCache      = CachePolicy{}
	DefaultCache = CachePolicy{Enabled: true}
)

// CacheTTL enables caching with a TTL in milliseconds.
func CacheTTL(ms int64) CachePolicy {
	return CachePolicy{Enabled: true, TTL: time.Duration(ms) * time.Millisecond}
}

// Call describes one API invocation.
type Call struct {
	Method        string
	Path          string
	Input         any // map[string]any, url.Values or a struct
	RequiresToken bool
	Options       Options
}

// Options are the recognised per-call settings. The zero value is a plain JSON call
// that fails and redirects when authentication is required but unavailable.
type Options struct {
	Cache        CachePolicy
	Optional     bool // Proceed without a token instead of redirecting to login
	Raw          bool // Return the *transport.Response untouched
	Flatten      bool
	PostProcess  response.PostProcessFunc
	SkipMocker   bool
	Language     string
	ResponseType string // "" or ResponseTypeBlob
}

// Mocker serves simulated endpoints on the client side. handled is false for calls
// it does not know, which then go to the network.
type Mocker interface {
	Mock(ctx context.Context, call Call) (result any, handled bool, err error)
}

// MockerFunc adapts a plain function to Mocker.
type MockerFunc func(ctx context.Context, call Call) (any, bool, error)

func (f MockerFunc) Mock(ctx context.Context, call Call) (any, bool, error) {
	return f(ctx, call)
}
