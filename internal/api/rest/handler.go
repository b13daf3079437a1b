// Package rest exposes table filtering and saved filters over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/worktrack/worktrack/internal/identity"
	"github.com/worktrack/worktrack/internal/savedfilter"
	"github.com/worktrack/worktrack/internal/server"
	"github.com/worktrack/worktrack/internal/table"
	"github.com/worktrack/worktrack/pkg/model"
)

// FilterService manages saved filters.
type FilterService interface {
	Create(ctx context.Context, owner, tableID, name string, fs model.FilterSet) (*savedfilter.SavedFilter, error)
	Get(ctx context.Context, key savedfilter.Key) (*savedfilter.SavedFilter, error)
	List(ctx context.Context, opts savedfilter.ListOptions) ([]*savedfilter.SavedFilter, int, error)
	Update(ctx context.Context, key savedfilter.Key, newName string, fs model.FilterSet) (*savedfilter.SavedFilter, error)
	Delete(ctx context.Context, key savedfilter.Key) error
	Apply(ctx context.Context, key savedfilter.Key, items []model.Document) ([]model.Document, error)
}

// TableCatalog resolves table definitions.
type TableCatalog interface {
	Get(id string) (*table.Table, error)
	IDs() []string
}

// Authenticator guards the API routes.
type Authenticator interface {
	Middleware(next http.Handler) http.Handler
}

var (
	_ FilterService = (*savedfilter.Service)(nil)
	_ TableCatalog  = (*table.Registry)(nil)
	_ Authenticator = (*identity.Authenticator)(nil)
)

type Handler struct {
	filters  FilterService
	tables   TableCatalog
	auth     Authenticator
	realtime http.HandlerFunc
	logger   *slog.Logger
}

func NewHandler(filters FilterService, tables TableCatalog, auth Authenticator, logger *slog.Logger) *Handler {
	if filters == nil {
		panic("filter service cannot be nil")
	}
	if tables == nil {
		panic("table catalog cannot be nil")
	}
	if auth == nil {
		panic("authenticator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		filters: filters,
		tables:  tables,
		auth:    auth,
		logger:  logger.With("component", "rest"),
	}
}

// SetRealtime installs the websocket endpoint. Without it the route
// answers 404.
func (h *Handler) SetRealtime(handler http.HandlerFunc) {
	h.realtime = handler
}

// Default body size limits
const (
	DefaultMaxBodySize = 1 << 20  // 1MB
	FilterMaxBodySize  = 16 << 20 // items travel in the request
)

// Default request timeout
const (
	DefaultRequestTimeout = 30 * time.Second
	FilterRequestTimeout  = 60 * time.Second
)

// Error codes
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Filtering (large bodies: the items are part of the request)
	mux.HandleFunc("POST /api/v1/tables/{table}/filter", withTimeout(maxBodySize(h.protected(h.handleFilter), FilterMaxBodySize), FilterRequestTimeout))

	// Saved filters
	mux.HandleFunc("GET /api/v1/tables/{table}/filters", withTimeout(h.protected(h.handleListFilters), DefaultRequestTimeout))
	mux.HandleFunc("POST /api/v1/tables/{table}/filters", withTimeout(maxBodySize(h.protected(h.handleCreateFilter), DefaultMaxBodySize), DefaultRequestTimeout))
	mux.HandleFunc("GET /api/v1/tables/{table}/filters/{name}", withTimeout(h.protected(h.handleGetFilter), DefaultRequestTimeout))
	mux.HandleFunc("PUT /api/v1/tables/{table}/filters/{name}", withTimeout(maxBodySize(h.protected(h.handleUpdateFilter), DefaultMaxBodySize), DefaultRequestTimeout))
	mux.HandleFunc("DELETE /api/v1/tables/{table}/filters/{name}", withTimeout(h.protected(h.handleDeleteFilter), DefaultRequestTimeout))

	// Table definitions
	mux.HandleFunc("GET /api/v1/tables", withTimeout(h.protected(h.handleListTables), DefaultRequestTimeout))

	// Realtime (long lived, no timeout). Browsers authenticate in-protocol.
	mux.HandleFunc("GET /api/v1/realtime", h.handleRealtime)

	// Health Check (no auth, minimal timeout)
	mux.HandleFunc("GET /health", withTimeout(h.handleHealth, 5*time.Second))
}

func (h *Handler) protected(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.auth.Middleware(handler).ServeHTTP(w, r)
	}
}

func (h *Handler) handleRealtime(w http.ResponseWriter, r *http.Request) {
	if h.realtime == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Realtime is not enabled")
		return
	}
	h.realtime(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ownerOrError returns the authenticated user id.
func ownerOrError(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := identity.UserID(r.Context())
	if owner == "" {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return "", false
	}
	return owner, true
}

// writeError writes a structured JSON error response
func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, server.APIError{Code: code, Message: message})
}

// writeInternalError writes a 500, or 499 when the client went away.
func (h *Handler) writeInternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if model.IsCanceled(err) {
		w.WriteHeader(server.StatusClientClosedRequest)
		return
	}
	h.logger.Error(message, "error", err, "request_id", server.GetRequestID(r.Context()))
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// writeServiceError maps saved filter and table errors to responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrUnknownTable):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Unknown table")
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Filter not found")
	case errors.Is(err, model.ErrExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "A filter with this name already exists")
	case errors.Is(err, model.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, model.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "Permission denied")
	default:
		h.writeInternalError(w, r, err, "Internal storage error")
	}
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode JSON response", "error", err)
	}
}

// decodeBody decodes a JSON body, answering 413 or 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return false
	}
	return true
}

// maxBodySize wraps a handler with request body size limiting
func maxBodySize(next http.HandlerFunc, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next(w, r)
	}
}

// withTimeout wraps a handler with a context timeout
func withTimeout(next http.HandlerFunc, timeout time.Duration) http.HandlerFunc {
	return server.TimeoutMiddleware(timeout)(next).ServeHTTP
}
