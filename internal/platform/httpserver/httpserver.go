package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server for the admin surface. The SIP traffic itself
// runs over the raw TCP listener; this only serves health and metrics.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
