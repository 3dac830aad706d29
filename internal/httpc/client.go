// Package httpc builds HTTP clients tuned for long-lived streaming
// requests to synthesis and transcription services.
package httpc

import (
	"net"
	"net/http"
	"time"
)

const (
	connectTimeout  = 10 * time.Second
	keepAlive       = 30 * time.Second
	idleConnTimeout = 90 * time.Second

	// responseHeaderTimeout bounds the wait for first byte; the overall
	// client timeout covers the streamed body.
	responseHeaderTimeout = 15 * time.Second
)

// NewClient returns a client whose timeout covers the whole exchange,
// including reading a streamed body. A zero timeout means no limit.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: keepAlive,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       idleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: responseHeaderTimeout,
		},
	}
}
