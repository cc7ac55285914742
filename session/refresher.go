package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Refresher exchanges a refresh token for new token material.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)
}

// RefresherFunc adapts a plain function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (*TokenGrant, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	return f(ctx, refreshToken)
}

var _ Refresher = (*HTTPRefresher)(nil)

// HTTPRefresher calls the backend's refresh endpoint.
type HTTPRefresher struct {
	client *http.Client
	url    string
}

func NewHTTPRefresher(baseURL, refreshPath string, client *http.Client) *HTTPRefresher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRefresher{
		client: client,
		url:    strings.TrimRight(baseURL, "/") + refreshPath,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh posts the refresh token and decodes the grant. Completeness of the grant is
// checked by the Guard, not here.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("[HTTPRefresher Refresh] marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("[HTTPRefresher Refresh] new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[HTTPRefresher Refresh] %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("[HTTPRefresher Refresh] reading body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("[HTTPRefresher Refresh] status %d: %s", resp.StatusCode, truncate(data, 256))
	}

	var grant TokenGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, fmt.Errorf("[HTTPRefresher Refresh] decoding grant: %w", err)
	}
	return &grant, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
