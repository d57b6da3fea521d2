// Package httpclient builds the authenticated HTTP client shared by the
// API client and the part fetcher: proxy-aware, HTTP/2-enabled, retrying
// transient failures, and carrying a persistent cookie jar for the
// out-of-scope login flow. Proxy configuration supports the system proxy
// or an explicit host:port; NTLM proxy authentication is not supported.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http/httpproxy"
	"golang.org/x/net/http2"

	"github.com/offloadhq/offload-client/internal/config"
	"github.com/offloadhq/offload-client/internal/constants"
)

// retryLogger adapts retryablehttp.LeveledLogger, staying silent unless
// OFFLOAD_DEBUG is set.
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...interface{}) {
	if os.Getenv("OFFLOAD_DEBUG") != "" {
		fmt.Fprintf(os.Stderr, "[retry error] %s %v\n", msg, kv)
	}
}
func (retryLogger) Info(string, ...interface{})  {}
func (retryLogger) Debug(string, ...interface{}) {}
func (retryLogger) Warn(msg string, kv ...interface{}) {
	if os.Getenv("OFFLOAD_DEBUG") != "" {
		fmt.Fprintf(os.Stderr, "[retry warn] %s %v\n", msg, kv)
	}
}

// New builds a retrying, proxy-aware HTTP client with a persistent cookie
// jar, used for all authenticated calls to the service (manifest, relay,
// refresh) as well as direct part downloads.
func New(cfg *config.Config) (*retryablehttp.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: failed to create cookie jar: %w", err)
	}

	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
	configureProxy(transport, cfg)
	_ = http2.ConfigureTransport(transport)

	base := &nethttp.Client{
		Jar:       jar,
		Transport: transport,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = base
	retryClient.RetryMax = 5
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryLogger{}

	return retryClient, nil
}

func configureProxy(transport *nethttp.Transport, cfg *config.Config) {
	if cfg == nil {
		return
	}

	switch strings.ToLower(cfg.ProxyMode) {
	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment
	case "", "no-proxy":
		transport.Proxy = nil
	default:
		if cfg.ProxyHost == "" {
			transport.Proxy = nil
			return
		}
		proxyURL := &url.URL{
			Scheme: "http",
			Host:   fmt.Sprintf("%s:%d", cfg.ProxyHost, cfg.ProxyPort),
		}
		transport.Proxy = nethttp.ProxyURL(proxyURL)
	}

	// Respect NO_PROXY/no_proxy for whichever proxy ended up configured.
	if transport.Proxy != nil {
		cfgEnv := httpproxy.FromEnvironment()
		original := transport.Proxy
		transport.Proxy = func(req *nethttp.Request) (*url.URL, error) {
			if cfgEnv.NoProxy != "" {
				if u, err := cfgEnv.ProxyFunc()(req.URL); err == nil && u == nil {
					return nil, nil
				}
			}
			return original(req)
		}
	}
}
