package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/worktrack/worktrack/internal/api/rest"
	"github.com/worktrack/worktrack/internal/filter"
	"github.com/worktrack/worktrack/internal/filter/cel"
	"github.com/worktrack/worktrack/internal/identity"
	"github.com/worktrack/worktrack/internal/logging"
	"github.com/worktrack/worktrack/internal/pubsub"
	natspubsub "github.com/worktrack/worktrack/internal/pubsub/nats"
	"github.com/worktrack/worktrack/internal/realtime"
	"github.com/worktrack/worktrack/internal/savedfilter"
	"github.com/worktrack/worktrack/internal/server"
	"github.com/worktrack/worktrack/internal/table"
)

// Dependency injection for testing
var (
	openStore           = savedfilter.Open
	natsProviderFactory = func(url string) eventProvider { return natspubsub.NewProvider(url) }
)

// Init builds every component. On error the components built so far are
// released by Shutdown.
func (m *Manager) Init(ctx context.Context) error {
	if err := m.initTables(); err != nil {
		return err
	}
	if err := m.initAuthService(); err != nil {
		return err
	}
	if err := m.initStore(ctx); err != nil {
		return err
	}
	if err := m.initEvents(ctx); err != nil {
		return err
	}

	cache := savedfilter.NewCache(m.store, m.cfg.Storage.Cache)
	m.filters = savedfilter.NewService(m.store, cache, m.tables, m.publisher, slog.Default())

	m.initHTTP()
	return nil
}

func (m *Manager) initTables() error {
	loc, err := m.cfg.Filter.Location()
	if err != nil {
		return err
	}

	// A broken saved condition would otherwise log once per item per request.
	diagnostics := logging.NewDedupLogger(slog.Default().With("component", "filter"), m.cfg.Filter.LogDedupWindow)

	compiler, err := cel.NewCompiler(diagnostics)
	if err != nil {
		return fmt.Errorf("failed to create CEL compiler: %w", err)
	}
	evaluator := filter.NewEvaluator(filter.WithLogger(diagnostics), filter.WithLocation(loc))

	m.tables, err = table.NewRegistry(m.cfg.Tables, evaluator, compiler, m.cfg.Filter.Tag())
	if err != nil {
		return fmt.Errorf("failed to build tables: %w", err)
	}
	m.logger.Info("Initialized tables", "tables", m.tables.IDs(), "timezone", loc.String())
	return nil
}

func (m *Manager) initAuthService() error {
	auth, err := identity.NewAuthenticator(m.cfg.Identity)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}
	m.auth = auth
	return nil
}

func (m *Manager) initStore(ctx context.Context) error {
	store, err := openStore(ctx, m.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open saved filter store: %w", err)
	}
	m.store = store
	m.logger.Info("Connected to storage", "backend", m.cfg.Storage.Backend)
	return nil
}

// initEvents sets up the publishers saved filter changes go to: the
// websocket hub, and NATS JetStream when events.nats_url is set.
func (m *Manager) initEvents(ctx context.Context) error {
	var publishers []pubsub.Publisher

	if !m.opts.DisableRealtime {
		tables := m.tables
		m.rtServer = realtime.NewServer(func(id string) bool {
			_, err := tables.Get(id)
			return err == nil
		}, m.auth, slog.Default())
		publishers = append(publishers, m.rtServer.Hub())
	}

	if url := m.cfg.Events.NATSURL; url != "" {
		provider := natsProviderFactory(url)
		if err := provider.Connect(ctx); err != nil {
			return err
		}
		m.natsProvider = provider

		pub, err := provider.NewPublisher(ctx, m.cfg.Events.PublisherOptions())
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		publishers = append(publishers, pub)
	}

	m.publisher = pubsub.Multi(publishers...)
	return nil
}

func (m *Manager) initHTTP() {
	cfg := m.cfg.Server
	if m.opts.ListenHost != "" {
		cfg.Host = m.opts.ListenHost
	}
	m.server = server.InitDefault(cfg, slog.Default())

	handler := rest.NewHandler(m.filters, m.tables, m.auth, slog.Default())
	if m.rtServer != nil {
		handler.SetRealtime(m.rtServer.HandleWS)
	}
	handler.RegisterRoutes(m.server.HTTPMux())
}
