package transport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-lms-client/internal/ui"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const HeaderRequestID = "X-Request-ID"

// Middleware wraps an outgoing round trip.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a plain function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// ChainMiddleware wraps rt so that mw[0] sees the request first.
func ChainMiddleware(rt http.RoundTripper, mw ...Middleware) http.RoundTripper {
	chained := rt
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

// RequestIDMiddleware stamps every request with a fresh ID unless it already has one.
func RequestIDMiddleware(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get(HeaderRequestID) == "" {
			r = r.Clone(r.Context())
			r.Header.Set(HeaderRequestID, uuid.New().String())
		}
		return next.RoundTrip(r)
	})
}

// LoggingMiddleware logs each round trip at debug level. With colour set the message
// carries a coloured method and status for console output.
func LoggingMiddleware(logger zerolog.Logger, colour bool) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)

			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			msg := r.Method + " " + r.URL.Path
			if colour {
				msg = fmt.Sprintf("[%-19s] %s %s", ui.Method(r.Method), ui.Status(status), r.URL.Path)
			}
			logger.Debug().
				Err(err).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Str("request_id", r.Header.Get(HeaderRequestID)).
				Dur("took", time.Since(start)).
				Msg(msg)
			return resp, err
		})
	}
}

// NewBreaker returns the circuit breaker used around API calls: it opens after at
// least 5 requests with 60% of them failing at the network level.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	})
}

// BreakerMiddleware runs round trips through cb. Only transport errors count as
// failures; any HTTP status is a successful round trip. While the breaker is open
// requests fail immediately with gobreaker.ErrOpenState.
func BreakerMiddleware(cb *gobreaker.CircuitBreaker) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			res, err := cb.Execute(func() (interface{}, error) {
				return next.RoundTrip(r)
			})
			if err != nil {
				return nil, err
			}
			return res.(*http.Response), nil
		})
	}
}
