package realtime

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/worktrack/worktrack/internal/identity"
)

// Authenticator verifies the tokens clients present on the handshake or in
// an auth message.
type Authenticator interface {
	ValidateToken(tokenString string) (*identity.Claims, error)
	MiddlewareOptional(next http.Handler) http.Handler
}

var _ Authenticator = (*identity.Authenticator)(nil)

// Server exposes the hub over websockets.
type Server struct {
	hub        *Hub
	auth       Authenticator
	knownTable func(string) bool
}

// NewServer creates a realtime server. knownTable may be nil to accept any
// table id in subscriptions. Without auth, only connections whose request
// context already carries claims are authenticated.
func NewServer(knownTable func(string) bool, auth Authenticator, logger *slog.Logger) *Server {
	return &Server{
		hub:        NewHub(logger),
		auth:       auth,
		knownTable: knownTable,
	}
}

// Hub returns the hub, which is also the server's event publisher.
func (s *Server) Hub() *Hub { return s.hub }

// HandleWS serves GET /api/v1/realtime. A bearer header authenticates the
// connection up front; otherwise the client sends an auth message before
// subscribing.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if tokenFromQueryParam(r) != "" {
		http.Error(w, "Query token not allowed", http.StatusUnauthorized)
		return
	}

	serve := func(w http.ResponseWriter, r *http.Request) {
		ServeWs(s.hub, s.auth, identity.UserID(r.Context()), s.knownTable, w, r)
	}
	if s.auth != nil {
		s.auth.MiddlewareOptional(http.HandlerFunc(serve)).ServeHTTP(w, r)
		return
	}
	serve(w, r)
}

func tokenFromQueryParam(r *http.Request) string {
	if r == nil {
		return ""
	}
	q := r.URL.Query()
	if v := q.Get("access_token"); v != "" {
		return v
	}
	if v := q.Get("token"); v != "" {
		return v
	}
	return ""
}

// StartBackgroundTasks starts the hub. It runs until ctx is cancelled.
func (s *Server) StartBackgroundTasks(ctx context.Context) error {
	go s.hub.Run(ctx)
	return nil
}
