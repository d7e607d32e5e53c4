package polygon

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds one HTTP round trip including the body read.
const DefaultTimeout = 60 * time.Second

// baseTransportConfig returns the shared HTTP transport configuration used by Polygon clients.
func baseTransportConfig(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   4,
	}
}

// newHTTPClient creates an HTTP client configured for Polygon requests.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: baseTransportConfig(timeout),
		Timeout:   timeout,
	}
}
