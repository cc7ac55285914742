// Package response turns a transport outcome into either the call's data or a
// normalized error.
package response

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"

	"github.com/jrsteele09/go-lms-client/apierror"
	"github.com/jrsteele09/go-lms-client/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PostProcessFunc transforms a successful body before it is returned.
type PostProcessFunc func(body any, header http.Header) (any, error)

// Redirector is notified when the backend rejects the session with a 401.
type Redirector interface {
	Redirect(optional bool, failingPath string)
}

// Options are the per-call settings classification depends on.
type Options struct {
	Path        string
	Optional    bool
	Raw         bool // Return the *transport.Response untouched
	Blob        bool // Return the body as []byte instead of decoding JSON
	PostProcess PostProcessFunc
}

type Classifier struct {
	redirector Redirector
	logger     zerolog.Logger
}

// ClassifierOption defines a function type to modify the Classifier instance.
type ClassifierOption func(*Classifier)

func WithLogger(logger zerolog.Logger) ClassifierOption {
	return func(c *Classifier) {
		c.logger = logger
	}
}

func NewClassifier(redirector Redirector, options ...ClassifierOption) *Classifier {
	c := &Classifier{redirector: redirector, logger: log.Logger}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Classify applies the rules in order, first match wins:
//
//  1. no response reached the client: network error
//  2. raw requested: the response itself
//  3. 401: login redirect and an Unauthorized error
//  4. other non-2xx: rate limited, backend error, JSON blob error or a generic error
//  5. 2xx with an empty or unreadable body: server error
//  6. post-processing, when requested
//  7. the body
func (c *Classifier) Classify(resp *transport.Response, opts Options) (any, error) {
	if resp == nil || resp.Err != nil || resp.Status == 0 {
		var cause error
		if resp != nil {
			cause = resp.Err
		}
		return nil, apierror.New(apierror.KindTransport, "", "").WithCause(cause)
	}

	if opts.Raw {
		return resp, nil
	}

	if resp.Status == http.StatusUnauthorized {
		c.redirect(opts)
		body := decodeObject(resp.Body)
		msg, code := "", ""
		if apierror.HasBackendMessage(body) {
			backend := apierror.FromBackend(resp.Status, body)
			msg, code = backend.ErrorMessage, backend.ErrorCode
		}
		return nil, apierror.New(apierror.KindUnauthorized, msg, code).WithStatus(resp.Status).WithFields(body)
	}

	if resp.Status < 200 || resp.Status >= 300 {
		return nil, c.failure(resp, opts)
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, apierror.New(apierror.KindContract, "", "").WithStatus(resp.Status)
	}

	var body any = resp.Body
	if !opts.Blob {
		decoded, err := decode(resp.Body)
		if err != nil {
			c.logger.Warn().Err(err).Str("path", opts.Path).Msg("unreadable response body")
			return nil, apierror.New(apierror.KindContract, "", "").WithStatus(resp.Status).WithCause(err)
		}
		body = decoded
	}

	if opts.PostProcess != nil {
		return opts.PostProcess(body, resp.Header)
	}
	return body, nil
}

func (c *Classifier) failure(resp *transport.Response, opts Options) error {
	if resp.Status == http.StatusTooManyRequests {
		return apierror.New(apierror.KindRateLimited, "", "").WithStatus(resp.Status)
	}

	if !opts.Blob {
		if body := decodeObject(resp.Body); apierror.HasBackendMessage(body) {
			return apierror.FromBackend(resp.Status, body)
		}
	} else if isJSON(resp.Header) {
		// Blob responses skip JSON decoding, so an error document arrives as bytes.
		if body := decodeObject(resp.Body); apierror.EncodesError(body) {
			return apierror.FromBackend(resp.Status, body)
		}
	}

	c.logger.Warn().
		Int("status", resp.Status).
		Str("path", opts.Path).
		Str("content_type", resp.Header.Get("Content-Type")).
		Bytes("body", truncate(resp.Body, 1024)).
		Msg("unexpected API response")
	return apierror.New(apierror.KindBackend, "", "").WithStatus(resp.Status)
}

func (c *Classifier) redirect(opts Options) {
	if c.redirector == nil {
		return
	}
	c.redirector.Redirect(opts.Optional, opts.Path)
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeObject returns data as a JSON object, or nil when it is not one.
func decodeObject(data []byte) map[string]any {
	v, err := decode(data)
	if err != nil {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

func isJSON(header http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(header.Get("Content-Type"))
	return err == nil && (mediaType == "application/json" || mediaType == "application/problem+json")
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
