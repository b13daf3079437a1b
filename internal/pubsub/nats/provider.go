package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/worktrack/worktrack/internal/pubsub"
)

// natsConnectFunc is a function type for connecting to NATS (injectable for testing)
type natsConnectFunc func(url string, opts ...nats.Option) (*nats.Conn, error)

// Provider manages the NATS connection the publishers share.
type Provider struct {
	url         string
	nc          *nats.Conn
	js          JetStream
	natsConnect natsConnectFunc
}

// NewProvider creates a provider for the server at url. Call Connect before
// creating publishers.
func NewProvider(url string) *Provider {
	return &Provider{url: url, natsConnect: nats.Connect}
}

// Connect establishes the NATS connection and initializes JetStream.
func (p *Provider) Connect(ctx context.Context) error {
	nc, err := p.natsConnect(p.url, nats.Name("worktrack"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.url, err)
	}

	js, err := JetStreamNew(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream: %w", err)
	}

	p.nc = nc
	p.js = js
	slog.Info("Connected to NATS", "url", p.url)
	return nil
}

// NewPublisher creates a new Publisher backed by NATS JetStream.
func (p *Provider) NewPublisher(ctx context.Context, opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return NewPublisher(ctx, p.js, opts)
}

// Close closes the NATS connection.
func (p *Provider) Close() error {
	if p.nc != nil {
		slog.Info("Closing NATS connection...")
		p.nc.Close()
		p.nc = nil
		p.js = nil
	}
	return nil
}
