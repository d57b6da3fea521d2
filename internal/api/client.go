// Package api is the client for the service's archive endpoints: the
// manifest, the relay passthrough, and the direct-URL refresher. It wraps
// a retrying HTTP client, decodes JSON responses, and distinguishes
// errors by status-code family.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/offloadhq/offload-client/internal/config"
	"github.com/offloadhq/offload-client/internal/httpclient"
	"github.com/offloadhq/offload-client/internal/models"
)

// Client talks to the archive-parts endpoints of a configured base URL
// using an authenticated, cookie-jar-carrying, retrying HTTP client.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
}

// NewClient builds a Client from config (base URL, proxy settings).
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("api: base URL is empty")
	}

	httpClient, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("api: failed to configure HTTP client: %w", err)
	}

	return &Client{http: httpClient, baseURL: cfg.APIBaseURL}, nil
}

// HTTPClient returns the underlying retrying client, for the part fetcher
// to reuse on direct-URL GETs.
func (c *Client) HTTPClient() *retryablehttp.Client {
	return c.http
}

// FetchManifest retrieves the archive manifest. A non-2xx
// response is a server_error:<code> failure.
func (c *Client) FetchManifest(ctx context.Context, archiveID string) (*models.Manifest, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet,
		fmt.Sprintf("%s/api/archives/%s/parts", c.baseURL, archiveID), nil)
	if err != nil {
		return nil, fmt.Errorf("api: failed to build manifest request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server_error:%d", resp.StatusCode)
	}

	var manifest models.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("api: failed to decode manifest: %w", err)
	}
	return &manifest, nil
}

// OpenRelay opens the relay passthrough for one part. The
// caller must close the returned body. A non-2xx response is
// relay_status_<code>.
func (c *Client) OpenRelay(ctx context.Context, archiveID string, index int64) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet,
		fmt.Sprintf("%s/api/archives/%s/parts/%d/relay", c.baseURL, archiveID, index), nil)
	if err != nil {
		return nil, fmt.Errorf("api: failed to build relay request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("relay_status_%d", resp.StatusCode)
	}
	return resp.Body, nil
}

type refreshResponse struct {
	URL string `json:"url"`
}

// RefreshURL requests a fresh direct URL for one part. A non-2xx
// response is refresh_status_<code>.
func (c *Client) RefreshURL(ctx context.Context, archiveID string, index int64) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodPost,
		fmt.Sprintf("%s/api/archives/%s/parts/%d/refresh", c.baseURL, archiveID, index), nil)
	if err != nil {
		return "", fmt.Errorf("api: failed to build refresh request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("refresh_status_%d", resp.StatusCode)
	}

	var body refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("api: failed to decode refresh response: %w", err)
	}
	return body.URL, nil
}
