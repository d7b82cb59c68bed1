package http

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient creates the client used for provider calls.
//
// timeout bounds a whole request; the provider can take tens of seconds to
// assemble a year of minute bars, so callers pass the configured value.
// maxConnsPerHost caps parallel requests to one host, which matters when
// several symbols are ingested at once. Zero leaves it unlimited.
//
// http.DefaultClient has no timeout, so it is never used for outbound calls.
func NewHTTPClient(timeout time.Duration, maxConnsPerHost int) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxIdlePerHost(maxConnsPerHost),
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}

func maxIdlePerHost(maxConns int) int {
	if maxConns <= 0 {
		return http.DefaultMaxIdleConnsPerHost
	}
	return maxConns
}
