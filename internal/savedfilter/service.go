package savedfilter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/worktrack/worktrack/internal/pubsub"
	"github.com/worktrack/worktrack/internal/table"
	"github.com/worktrack/worktrack/pkg/model"
)

// EventType names a saved filter change.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is published on "filters.<table>.<type>" after every change.
type Event struct {
	Type      EventType    `json:"type"`
	Owner     string       `json:"owner"`
	Table     string       `json:"table"`
	Name      string       `json:"name"`
	OldName   string       `json:"old_name,omitempty"` // set when an update renamed the filter
	Filter    *SavedFilter `json:"filter,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Subject returns the subject the event is published on.
func (e Event) Subject() string {
	return fmt.Sprintf("filters.%s.%s", e.Table, e.Type)
}

// Service manages saved filters and applies them to table items.
type Service struct {
	store     Store
	cache     *Cache
	tables    *table.Registry
	publisher pubsub.Publisher
	logger    *slog.Logger
	newID     func() string
}

// NewService creates a saved filter service. publisher may be nil.
func NewService(store Store, cache *Cache, tables *table.Registry, publisher pubsub.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = pubsub.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		cache:     cache,
		tables:    tables,
		publisher: publisher,
		logger:    logger.With("component", "savedfilter"),
		newID:     func() string { return uuid.NewString() },
	}
}

// Create validates and stores a new filter for owner.
func (s *Service) Create(ctx context.Context, owner, tableID, name string, fs model.FilterSet) (*SavedFilter, error) {
	f := &SavedFilter{
		ID:        s.newID(),
		OwnerID:   owner,
		TableID:   tableID,
		Name:      name,
		FilterSet: fs,
	}
	if err := s.validate(f); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, f); err != nil {
		return nil, err
	}
	s.remember(f)
	s.publish(ctx, Event{Type: EventCreated, Filter: f}, f.Key())
	return f, nil
}

// Get returns one of owner's filters.
func (s *Service) Get(ctx context.Context, key Key) (*SavedFilter, error) {
	if s.cache != nil {
		return s.cache.Get(ctx, key)
	}
	return s.store.Get(ctx, key)
}

// List returns owner's filters.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*SavedFilter, int, error) {
	if opts.TableID != "" {
		if _, err := s.tables.Get(opts.TableID); err != nil {
			return nil, 0, err
		}
	}
	return s.store.List(ctx, opts)
}

// Update replaces the filter set of the filter at key and renames it when
// newName is not empty.
func (s *Service) Update(ctx context.Context, key Key, newName string, fs model.FilterSet) (*SavedFilter, error) {
	f, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	f.FilterSet = fs
	if newName != "" {
		f.Name = newName
	}
	if err := s.validate(f); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, f); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(key)
	}
	s.remember(f)
	evt := Event{Type: EventUpdated, Filter: f}
	if f.Name != key.Name {
		evt.OldName = key.Name
	}
	s.publish(ctx, evt, f.Key())
	return f, nil
}

// Delete removes the filter at key.
func (s *Service) Delete(ctx context.Context, key Key) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(key)
	}
	s.publish(ctx, Event{Type: EventDeleted}, key)
	return nil
}

// Apply loads the filter at key and applies it to items.
func (s *Service) Apply(ctx context.Context, key Key, items []model.Document) ([]model.Document, error) {
	t, err := s.tables.Get(key.TableID)
	if err != nil {
		return nil, err
	}
	f, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return t.Filter(items, f.FilterSet), nil
}

func (s *Service) validate(f *SavedFilter) error {
	t, err := s.tables.Get(f.TableID)
	if err != nil {
		return err
	}
	return Validate(f, t)
}

func (s *Service) remember(f *SavedFilter) {
	if s.cache != nil {
		s.cache.Put(f)
	}
}

// publish reports the change. Failures are logged; the change itself is
// already stored.
func (s *Service) publish(ctx context.Context, evt Event, key Key) {
	evt.Owner = key.OwnerID
	evt.Table = key.TableID
	evt.Name = key.Name
	evt.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("Failed to encode filter event", "key", key.String(), "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, evt.Subject(), data); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn("Failed to publish filter event", "subject", evt.Subject(), "error", err)
	}
}
