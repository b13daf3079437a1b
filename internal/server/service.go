package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/worktrack/worktrack/internal/server/ratelimit"
)

type serverImpl struct {
	cfg    Config
	logger *slog.Logger

	httpMux    *http.ServeMux
	httpServer *http.Server
	listener   net.Listener

	limiter *ratelimit.MemoryLimiter

	mu      sync.Mutex
	started bool
}

// New creates a new Service instance.
func New(cfg Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	s := &serverImpl{
		cfg:     cfg,
		logger:  logger,
		httpMux: http.NewServeMux(),
	}
	if cfg.RateLimit.Enabled {
		s.limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit)
	}
	return s
}

func (s *serverImpl) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.started = true

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.HTTPPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("http listen %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.wrapMiddleware(s.httpMux),
		ReadTimeout:  s.cfg.HTTPReadTimeout,
		WriteTimeout: s.cfg.HTTPWriteTimeout,
		IdleTimeout:  s.cfg.HTTPIdleTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (s *serverImpl) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.httpServer != nil {
		s.logger.Info("Stopping HTTP server")
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			s.logger.Warn("Graceful shutdown incomplete, closing connections", "error", shutdownErr)
			err = errors.Join(fmt.Errorf("http shutdown error: %w", shutdownErr), s.httpServer.Close())
		}
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return err
}

func (s *serverImpl) RegisterHTTPHandler(pattern string, handler http.Handler) {
	s.httpMux.Handle(pattern, handler)
}

func (s *serverImpl) HTTPMux() *http.ServeMux {
	return s.httpMux
}

func (s *serverImpl) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
