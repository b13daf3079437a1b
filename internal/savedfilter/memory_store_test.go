package savedfilter

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worktrack/worktrack/pkg/model"
)

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	f := validFilter()
	require.NoError(t, s.Create(ctx, f))
	assert.False(t, f.CreatedAt.IsZero())

	dup := validFilter()
	dup.ID = "f2"
	assert.ErrorIs(t, s.Create(ctx, dup), model.ErrExists)

	got, err := s.Get(ctx, f.Key())
	require.NoError(t, err)
	assert.Equal(t, f.Name, got.Name)
	assert.Len(t, got.Conditions, 2)

	// Returned filters are copies.
	got.Conditions[0].Column = "mutated"
	again, err := s.Get(ctx, f.Key())
	require.NoError(t, err)
	assert.Equal(t, "status", again.Conditions[0].Column)

	renamed := clone(f)
	renamed.Name = "Renamed"
	require.NoError(t, s.Update(ctx, renamed))
	_, err = s.Get(ctx, f.Key())
	assert.ErrorIs(t, err, model.ErrNotFound)
	got, err = s.Get(ctx, renamed.Key())
	require.NoError(t, err)
	assert.Equal(t, f.CreatedAt, got.CreatedAt)

	missing := validFilter()
	missing.ID = "nope"
	assert.ErrorIs(t, s.Update(ctx, missing), model.ErrNotFound)

	require.NoError(t, s.Delete(ctx, renamed.Key()))
	assert.ErrorIs(t, s.Delete(ctx, renamed.Key()), model.ErrNotFound)
	assert.NoError(t, s.Close(ctx))
}

func TestMemoryStore_UpdateConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := validFilter()
	b := validFilter()
	b.ID, b.Name = "f2", "Other"
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	b.Name = a.Name
	assert.ErrorIs(t, s.Update(ctx, b), model.ErrExists)
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i, name := range []string{"c", "a", "b"} {
		f := validFilter()
		f.ID, f.Name = fmt.Sprintf("t%d", i), name
		require.NoError(t, s.Create(ctx, f))
	}
	other := validFilter()
	other.ID, other.TableID = "inv", "invoices"
	require.NoError(t, s.Create(ctx, other))
	foreign := validFilter()
	foreign.ID, foreign.OwnerID = "foreign", "7"
	require.NoError(t, s.Create(ctx, foreign))

	all, total, err := s.List(ctx, ListOptions{OwnerID: "42"})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, "invoices", all[0].TableID)

	page, total, err := s.List(ctx, ListOptions{OwnerID: "42", TableID: "tasks", Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Name)
	assert.Equal(t, "c", page[1].Name)

	empty, total, err := s.List(ctx, ListOptions{OwnerID: "42", Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Empty(t, empty)
}

func TestMemoryStore_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	assert.ErrorIs(t, s.Create(ctx, validFilter()), model.ErrCanceled)
	_, err := s.Get(ctx, Key{})
	assert.ErrorIs(t, err, model.ErrCanceled)
}
