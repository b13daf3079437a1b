// Package pubsub publishes saved filter change events to interested parties:
// a NATS JetStream stream for other services and the realtime hub for
// browsers.
package pubsub

import (
	"context"
	"errors"
	"time"
)

// Publisher publishes messages to a stream.
type Publisher interface {
	// Publish sends a message to the specified subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases resources.
	Close() error
}

// StorageType defines the storage backend for streams.
type StorageType int

const (
	// MemoryStorage stores data in memory (default).
	MemoryStorage StorageType = iota
	// FileStorage stores data on disk.
	FileStorage
)

// PublisherOptions configures publisher behavior.
type PublisherOptions struct {
	// StreamName is the name of the stream to publish to.
	StreamName string

	// SubjectPrefix is prepended to all subjects.
	SubjectPrefix string

	// RetryAttempts is the number of retry attempts for publishing.
	// 0 means no retry (default).
	RetryAttempts int

	// Storage is the storage type for the stream.
	// Defaults to MemoryStorage.
	Storage StorageType

	// OnPublish is called after each publish attempt (for metrics).
	OnPublish func(subject string, err error, latency time.Duration)
}

type multiPublisher struct {
	publishers []Publisher
}

// Multi returns a Publisher that publishes to every non-nil publisher in
// order. Errors are joined; a failing publisher does not stop the others.
func Multi(publishers ...Publisher) Publisher {
	var ps []Publisher
	for _, p := range publishers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	if len(ps) == 0 {
		return Nop()
	}
	if len(ps) == 1 {
		return ps[0]
	}
	return &multiPublisher{publishers: ps}
}

func (m *multiPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, subject, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiPublisher) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopPublisher struct{}

// Nop returns a Publisher that drops every message.
func Nop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (nopPublisher) Close() error                                  { return nil }
