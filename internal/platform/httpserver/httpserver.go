// Package httpserver builds the HTTP server with timeouts suited to the
// provisioning API, whose slowest requests wait on two region round trips.
package httpserver

import (
	"net/http"
	"time"
)

func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Provisioning holds the request open for sequential calls to both
		// regions; leave headroom above the per-call timeout.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
