// Package network provides a pre-configured HTTP client for remote version queries.
package network

import (
	"net/http"
	"time"
)

// Client is the singleton HTTP client shared across the application.
// It carries a deliberately short timeout: the only network call this tool makes is the
// remote version query, and a timeout there is treated as fatal rather than retried.
var Client = &http.Client{
	Timeout:   15 * time.Second,
	Transport: newTransport(),
}

// newTransport initializes a tuned http.Transport with conservative pool and timeout parameters.
func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 10
	t.IdleConnTimeout = 30 * time.Second
	t.ResponseHeaderTimeout = 10 * time.Second
	return t
}
