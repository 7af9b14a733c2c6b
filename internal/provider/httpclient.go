package provider

import (
	"net"
	"net/http"
	"time"
)

// defaultHTTPTimeout bounds the response headers of a streaming call. The body
// itself is bounded by the caller's context.
const defaultHTTPTimeout = 120 * time.Second

// SharedHTTPClient returns an HTTP client with connection pooling suitable for
// long-lived streaming responses. It sets no overall Timeout so a slow stream
// is not cut off mid-body.
func SharedHTTPClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = defaultHTTPTimeout
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}
