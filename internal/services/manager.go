package services

import (
	"context"
	"log/slog"

	"github.com/worktrack/worktrack/internal/config"
	"github.com/worktrack/worktrack/internal/identity"
	"github.com/worktrack/worktrack/internal/pubsub"
	"github.com/worktrack/worktrack/internal/realtime"
	"github.com/worktrack/worktrack/internal/savedfilter"
	"github.com/worktrack/worktrack/internal/server"
	"github.com/worktrack/worktrack/internal/table"
)

type Options struct {
	// ListenHost overrides server.host when set.
	ListenHost string
	// DisableRealtime turns off the websocket endpoint and its hub.
	DisableRealtime bool
}

// eventProvider is the part of the NATS provider the manager uses.
type eventProvider interface {
	Connect(ctx context.Context) error
	NewPublisher(ctx context.Context, opts pubsub.PublisherOptions) (pubsub.Publisher, error)
	Close() error
}

// Manager builds the process from config and owns the shutdown order.
type Manager struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	server       server.Service
	tables       *table.Registry
	store        savedfilter.Store
	filters      *savedfilter.Service
	auth         *identity.Authenticator
	rtServer     *realtime.Server
	publisher    pubsub.Publisher
	natsProvider eventProvider
}

func NewManager(cfg *config.Config, opts Options) *Manager {
	return &Manager{
		cfg:    cfg,
		opts:   opts,
		logger: slog.Default().With("component", "manager"),
	}
}

// AuthService returns the token authenticator, nil before Init.
func (m *Manager) AuthService() *identity.Authenticator {
	return m.auth
}

// Tables returns the table registry, nil before Init.
func (m *Manager) Tables() *table.Registry {
	return m.tables
}

// Addr returns the bound HTTP address once Start has bound the listener.
func (m *Manager) Addr() string {
	if m.server == nil {
		return ""
	}
	return m.server.Addr()
}
