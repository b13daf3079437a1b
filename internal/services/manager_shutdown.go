package services

import (
	"context"
	"errors"
	"fmt"
)

// Shutdown stops the server first so no request sees a closed store, then
// the publishers and the store. Errors are logged and returned joined.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	record := func(what string, err error) {
		if err != nil {
			m.logger.Error("Shutdown step failed", "step", what, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", what, err))
		}
	}

	if m.server != nil {
		m.logger.Info("Stopping HTTP server...")
		record("server", m.server.Stop(ctx))
	}

	if m.publisher != nil {
		record("publisher", m.publisher.Close())
	}
	if m.natsProvider != nil {
		m.logger.Info("Closing NATS provider...")
		record("nats", m.natsProvider.Close())
	}
	if m.store != nil {
		record("store", m.store.Close(ctx))
	}

	return errors.Join(errs...)
}
