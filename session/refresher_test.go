package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-lms-client/internal/utils"
	"github.com/jrsteele09/go-lms-client/session"
	"github.com/stretchr/testify/require"
)

// TestHTTPRefresher_Success tests that the refresh token is posted and the grant decoded
func TestHTTPRefresher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/refresh", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "refresh-1", body["refreshToken"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"a2","refreshToken":"r2","expiresIn":900,"refreshTokenExpiresIn":604800,"serverTime":1740819600000}`))
	}))
	defer srv.Close()

	r := session.NewHTTPRefresher(srv.URL+"/", "/auth/refresh", srv.Client())
	grant, err := r.Refresh(context.Background(), "refresh-1")

	require.NoError(t, err)
	require.True(t, grant.Complete())
	require.Equal(t, "a2", utils.Value(grant.Token))
	require.Equal(t, int64(900), utils.Value(grant.ExpiresIn))
	require.Equal(t, int64(1740819600000), utils.Value(grant.ServerTime))
}

// TestHTTPRefresher_Rejected tests that a non-2xx status is an error
func TestHTTPRefresher_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorMessage":"refresh token revoked"}`))
	}))
	defer srv.Close()

	_, err := session.NewHTTPRefresher(srv.URL, "/auth/refresh", nil).Refresh(context.Background(), "refresh-1")

	require.ErrorContains(t, err, "status 401")
}

// TestHTTPRefresher_PartialGrant tests that missing fields decode as an incomplete grant
func TestHTTPRefresher_PartialGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token":"a2","refreshToken":"r2","expiresIn":900}`))
	}))
	defer srv.Close()

	grant, err := session.NewHTTPRefresher(srv.URL, "/auth/refresh", nil).Refresh(context.Background(), "refresh-1")

	require.NoError(t, err)
	require.False(t, grant.Complete())
}
