package response_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/jrsteele09/go-lms-client/apierror"
	"github.com/jrsteele09/go-lms-client/response"
	"github.com/jrsteele09/go-lms-client/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type redirectCall struct {
	optional bool
	path     string
}

type spyRedirector struct {
	calls []redirectCall
}

func (s *spyRedirector) Redirect(optional bool, failingPath string) {
	s.calls = append(s.calls, redirectCall{optional, failingPath})
}

// testFixture holds all test dependencies
type testFixture struct {
	redirector *spyRedirector
	classifier *response.Classifier
}

// setupTestFixture creates a classifier with a recording redirector
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	r := &spyRedirector{}
	return &testFixture{
		redirector: r,
		classifier: response.NewClassifier(r, response.WithLogger(zerolog.Nop())),
	}
}

func jsonResponse(status int, body string) *transport.Response {
	return &transport.Response{
		Status: status,
		Header: http.Header{"Content-Type": {"application/json; charset=utf-8"}},
		Body:   []byte(body),
	}
}

func requireKind(t *testing.T, err error, kind apierror.Kind) *apierror.Error {
	t.Helper()
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, kind, apiErr.Kind)
	require.NotEmpty(t, apiErr.ErrorMessage)
	require.NotEmpty(t, apiErr.ErrorCode)
	return apiErr
}

// TestClassify_NoResponse tests that transport failures become network errors
func TestClassify_NoResponse(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.classifier.Classify(nil, response.Options{})
	requireKind(t, err, apierror.KindTransport)

	cause := errors.New("dial tcp: connection refused")
	_, err = f.classifier.Classify(&transport.Response{Err: cause}, response.Options{Raw: true})
	apiErr := requireKind(t, err, apierror.KindTransport)
	require.Equal(t, apierror.MsgNetwork, apiErr.ErrorMessage)
	require.ErrorIs(t, err, cause)
}

// TestClassify_Raw tests that raw calls get the response without classification
func TestClassify_Raw(t *testing.T) {
	f := setupTestFixture(t)
	resp := jsonResponse(http.StatusUnauthorized, ``)

	got, err := f.classifier.Classify(resp, response.Options{Raw: true})

	require.NoError(t, err)
	require.Same(t, resp, got)
	require.Empty(t, f.redirector.calls)
}

// TestClassify_Unauthorized tests the redirect and message on 401
func TestClassify_Unauthorized(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.classifier.Classify(jsonResponse(401, `{"error_message":"Token revoked","reason":"logout"}`),
		response.Options{Path: "/essays"})
	apiErr := requireKind(t, err, apierror.KindUnauthorized)
	require.Equal(t, "Token revoked", apiErr.ErrorMessage)
	require.Equal(t, "logout", apiErr.Fields["reason"])
	require.Equal(t, []redirectCall{{false, "/essays"}}, f.redirector.calls)

	_, err = f.classifier.Classify(jsonResponse(401, ``), response.Options{Path: "/me", Optional: true})
	apiErr = requireKind(t, err, apierror.KindUnauthorized)
	require.Equal(t, apierror.MsgUnauthorized, apiErr.ErrorMessage)
	require.Equal(t, redirectCall{true, "/me"}, f.redirector.calls[1])
}

// TestClassify_RateLimited tests the 429 message
func TestClassify_RateLimited(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.classifier.Classify(jsonResponse(429, `{"errorMessage":"slow down"}`), response.Options{})

	apiErr := requireKind(t, err, apierror.KindRateLimited)
	require.Equal(t, "Too many requests. Please retry in a moment.", apiErr.ErrorMessage)
	require.Equal(t, 429, apiErr.Status)
}

// TestClassify_BackendError tests that structured errors keep their fields
func TestClassify_BackendError(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.classifier.Classify(
		jsonResponse(422, `{"error_message":"Essay is locked","error_code":"essay_locked","essayId":7}`),
		response.Options{})

	apiErr := requireKind(t, err, apierror.KindBackend)
	require.Equal(t, "Essay is locked", apiErr.ErrorMessage)
	require.Equal(t, "essay_locked", apiErr.ErrorCode)
	require.Equal(t, json.Number("7"), apiErr.Fields["essayId"])

	data, err := json.Marshal(apiErr)
	require.NoError(t, err)
	require.JSONEq(t, `{"error":true,"errorMessage":"Essay is locked","errorCode":"essay_locked",
		"error_message":"Essay is locked","error_code":"essay_locked","essayId":7}`, string(data))
}

// TestClassify_BackendErrorDefaultCode tests the internal code fallback
func TestClassify_BackendErrorDefaultCode(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.classifier.Classify(jsonResponse(400, `{"errorMessage":"Bad essay"}`), response.Options{})

	apiErr := requireKind(t, err, apierror.KindBackend)
	require.Equal(t, "internal", apiErr.ErrorCode)
}

// TestClassify_BlobError tests that JSON errors are found inside blob responses
func TestClassify_BlobError(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.classifier.Classify(jsonResponse(404, `{"error":"not_found","errorMessage":"No export"}`),
		response.Options{Blob: true})
	apiErr := requireKind(t, err, apierror.KindBackend)
	require.Equal(t, "No export", apiErr.ErrorMessage)
	require.Equal(t, "not_found", apiErr.ErrorCode)

	pdf := &transport.Response{Status: 500, Header: http.Header{"Content-Type": {"application/pdf"}}, Body: []byte("%PDF")}
	_, err = f.classifier.Classify(pdf, response.Options{Blob: true})
	apiErr = requireKind(t, err, apierror.KindBackend)
	require.Equal(t, apierror.MsgGeneric, apiErr.ErrorMessage)
}

// TestClassify_GenericFailure tests unrecognised error responses
func TestClassify_GenericFailure(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.classifier.Classify(&transport.Response{Status: 502, Body: []byte("<html>Bad Gateway</html>")}, response.Options{})

	apiErr := requireKind(t, err, apierror.KindBackend)
	require.Equal(t, apierror.MsgGeneric, apiErr.ErrorMessage)
	require.Equal(t, "internal", apiErr.ErrorCode)
	require.Equal(t, 502, apiErr.Status)
}

// TestClassify_EmptyBody tests that an empty 2xx body is a server error
func TestClassify_EmptyBody(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.classifier.Classify(jsonResponse(200, "  "), response.Options{})

	apiErr := requireKind(t, err, apierror.KindContract)
	require.Equal(t, "server", apiErr.ErrorCode)
}

// TestClassify_UnreadableBody tests that a non-JSON 2xx body is a server error
func TestClassify_UnreadableBody(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.classifier.Classify(jsonResponse(200, "<html>"), response.Options{})

	requireKind(t, err, apierror.KindContract)
}

// TestClassify_PostProcess tests that post-processing sees the body and headers
func TestClassify_PostProcess(t *testing.T) {
	f := setupTestFixture(t)
	resp := jsonResponse(200, `{"items":[1,2]}`)
	resp.Header.Set("X-Total", "2")

	got, err := f.classifier.Classify(resp, response.Options{
		PostProcess: func(body any, header http.Header) (any, error) {
			items := body.(map[string]any)["items"].([]any)
			return map[string]any{"count": len(items), "total": header.Get("X-Total")}, nil
		},
	})

	require.NoError(t, err)
	require.Equal(t, map[string]any{"count": 2, "total": "2"}, got)
}

// TestClassify_Body tests the plain success path for JSON and blob calls
func TestClassify_Body(t *testing.T) {
	f := setupTestFixture(t)

	got, err := f.classifier.Classify(jsonResponse(200, `{"id":"e1"}`), response.Options{})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": "e1"}, got)

	got, err = f.classifier.Classify(jsonResponse(200, `{"id":"e1"}`), response.Options{Blob: true})
	require.NoError(t, err)
	require.Equal(t, []byte(`{"id":"e1"}`), got)
}
