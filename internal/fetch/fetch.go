// Package fetch implements the part fetcher and URL refresher: downloading
// one ciphertext part via a direct origin URL or a server relay, honoring
// cancellation at every chunk boundary, and requesting a fresh direct URL
// when one has expired. Both paths stream into a cache file and report
// failures as distinguished status-code errors.
package fetch

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/offloadhq/offload-client/internal/api"
)

// ErrExpired signals that a direct URL returned 404 and should be
// refreshed and retried once. It is internal to the driver's
// direct/relay policy and never surfaces to the user directly.
var ErrExpired = fmt.Errorf("expired")

// ErrCancelled is returned when the cancel function reports true between
// chunks.
var ErrCancelled = fmt.Errorf("cancelled")

// Fetcher downloads single ciphertext parts to the on-disk cache.
type Fetcher struct {
	httpClient *retryablehttp.Client
	apiClient  *api.Client
}

// New creates a Fetcher that shares the API client's single authenticated
// HTTP client across Direct, Relay, and Refresh — direct origin
// downloads are authenticated the same way as relay and refresh calls.
func New(apiClient *api.Client) *Fetcher {
	return &Fetcher{
		httpClient: apiClient.HTTPClient(),
		apiClient:  apiClient,
	}
}

// Direct downloads one part from its manifest-supplied absolute URL. A 404
// is reported as ErrExpired; any other non-2xx is status_<code>; network
// errors propagate verbatim.
func (f *Fetcher) Direct(ctx context.Context, url, destPath string, cancelled func() bool) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("fetch: failed to build direct request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == nethttp.StatusNotFound:
		return ErrExpired
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("status_%d", resp.StatusCode)
	}

	return streamToFile(resp.Body, destPath, cancelled)
}

// Relay downloads one part via the service's relay passthrough. Non-2xx is
// relay_status_<code>.
func (f *Fetcher) Relay(ctx context.Context, archiveID string, index int64, destPath string, cancelled func() bool) error {
	body, err := f.apiClient.OpenRelay(ctx, archiveID, index)
	if err != nil {
		return err
	}
	defer body.Close()

	return streamToFile(body, destPath, cancelled)
}

// Refresh requests a fresh direct URL for one part.
func (f *Fetcher) Refresh(ctx context.Context, archiveID string, index int64) (string, error) {
	return f.apiClient.RefreshURL(ctx, archiveID, index)
}

// streamToFile writes r's bytes to destPath, truncating any prior
// contents, checking cancelled() at every chunk boundary. On
// cancellation it returns ErrCancelled and leaves a truncated file behind.
func streamToFile(r io.Reader, destPath string, cancelled func() bool) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("fetch: failed to create %s: %w", destPath, err)
	}
	defer out.Close()

	buf := make([]byte, 256*1024)
	for {
		if cancelled != nil && cancelled() {
			return ErrCancelled
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return fmt.Errorf("fetch: failed to write %s: %w", destPath, err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
