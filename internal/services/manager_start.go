package services

import (
	"context"
	"errors"
)

// Start runs the realtime hub and the HTTP server. It blocks until ctx is
// done or the server fails to start or serve.
func (m *Manager) Start(ctx context.Context) error {
	if m.server == nil {
		return errors.New("manager not initialized")
	}

	if m.rtServer != nil {
		if err := m.rtServer.StartBackgroundTasks(ctx); err != nil {
			return err
		}
		m.logger.Info("Realtime hub started")
	}

	return m.server.Start(ctx)
}
