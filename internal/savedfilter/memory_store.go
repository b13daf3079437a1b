package savedfilter

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/worktrack/worktrack/pkg/model"
)

// MemoryStore keeps saved filters in process memory. Used for development
// and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	byKey map[Key]*SavedFilter
	keyOf map[string]Key // id -> key
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey: make(map[Key]*SavedFilter),
		keyOf: make(map[string]Key),
	}
}

func (s *MemoryStore) Create(ctx context.Context, f *SavedFilter) error {
	if err := ctx.Err(); err != nil {
		return model.WrapError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[f.Key()]; ok {
		return model.ErrExists
	}
	if _, ok := s.keyOf[f.ID]; ok {
		return model.ErrExists
	}

	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = now
	}
	s.byKey[f.Key()] = clone(f)
	s.keyOf[f.ID] = f.Key()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key Key) (*SavedFilter, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.WrapError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.byKey[key]
	if !ok {
		return nil, model.ErrNotFound
	}
	return clone(f), nil
}

func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]*SavedFilter, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, model.WrapError(err)
	}
	opts = opts.Normalized()

	s.mu.RLock()
	var all []*SavedFilter
	for key, f := range s.byKey {
		if key.OwnerID != opts.OwnerID {
			continue
		}
		if opts.TableID != "" && key.TableID != opts.TableID {
			continue
		}
		all = append(all, f)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].TableID != all[j].TableID {
			return all[i].TableID < all[j].TableID
		}
		return all[i].Name < all[j].Name
	})

	total := len(all)
	if opts.Offset >= total {
		return []*SavedFilter{}, total, nil
	}
	end := opts.Offset + opts.Limit
	if end > total {
		end = total
	}

	out := make([]*SavedFilter, 0, end-opts.Offset)
	for _, f := range all[opts.Offset:end] {
		out = append(out, clone(f))
	}
	return out, total, nil
}

func (s *MemoryStore) Update(ctx context.Context, f *SavedFilter) error {
	if err := ctx.Err(); err != nil {
		return model.WrapError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	oldKey, ok := s.keyOf[f.ID]
	if !ok {
		return model.ErrNotFound
	}
	if other, taken := s.byKey[f.Key()]; taken && other.ID != f.ID {
		return model.ErrExists
	}

	f.CreatedAt = s.byKey[oldKey].CreatedAt
	f.UpdatedAt = time.Now()
	delete(s.byKey, oldKey)
	s.byKey[f.Key()] = clone(f)
	s.keyOf[f.ID] = f.Key()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return model.WrapError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.byKey[key]
	if !ok {
		return model.ErrNotFound
	}
	delete(s.byKey, key)
	delete(s.keyOf, f.ID)
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
