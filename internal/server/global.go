package server

import (
	"log/slog"
	"net/http"
)

var (
	defaultService Service
)

// InitDefault initializes the process-wide server instance.
// This should be called once at application startup.
func InitDefault(cfg Config, logger *slog.Logger) Service {
	defaultService = New(cfg, logger)
	return defaultService
}

// Default returns the process-wide server instance, or nil if InitDefault
// has not been called.
func Default() Service {
	return defaultService
}

// SetDefault replaces the process-wide server instance.
func SetDefault(s Service) {
	defaultService = s
}

// RegisterHTTP registers an HTTP handler with the default server.
func RegisterHTTP(pattern string, handler http.Handler) {
	if s := Default(); s != nil {
		s.RegisterHTTPHandler(pattern, handler)
	}
}

// HandleFunc registers an HTTP handler function with the default server.
func HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	if s := Default(); s != nil {
		s.RegisterHTTPHandler(pattern, http.HandlerFunc(handler))
	}
}
