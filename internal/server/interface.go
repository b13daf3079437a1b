package server

import (
	"context"
	"net/http"
)

// Service is the network layer of the process.
type Service interface {
	// Start binds the listener and serves until a fatal error occurs or the
	// context is canceled. A bind failure is returned immediately.
	Start(ctx context.Context) error

	// Stop gracefully shuts the server down, waiting for active requests to
	// drain or for the context to expire.
	Stop(ctx context.Context) error

	// RegisterHTTPHandler registers a handler for a pattern.
	// This must be called BEFORE Start().
	RegisterHTTPHandler(pattern string, handler http.Handler)

	// HTTPMux returns the underlying ServeMux for direct route registration.
	// This must be called BEFORE Start().
	HTTPMux() *http.ServeMux

	// Addr returns the bound listener address, or "" before Start.
	Addr() string
}
