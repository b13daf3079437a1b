// Package savedfilter stores named filter sets per user and table and
// applies them to table items.
package savedfilter

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/worktrack/worktrack/pkg/model"
)

// MaxNameLength is the longest accepted filter name, in characters.
const MaxNameLength = 100

// SavedFilter is a named filter set owned by one user for one table.
type SavedFilter struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	TableID string `json:"table"`
	Name    string `json:"name"`
	model.FilterSet
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key identifies a saved filter. Names are unique per owner and table.
type Key struct {
	OwnerID string
	TableID string
	Name    string
}

// Key returns the identifying key of f.
func (f *SavedFilter) Key() Key {
	return Key{OwnerID: f.OwnerID, TableID: f.TableID, Name: f.Name}
}

func (k Key) String() string {
	return k.OwnerID + "/" + k.TableID + "/" + k.Name
}

// ListOptions contains options for listing saved filters
type ListOptions struct {
	// OwnerID filters by owner (required)
	OwnerID string
	// TableID filters by table (empty means all tables)
	TableID string
	// Limit is the maximum number of results to return (0 means default limit)
	Limit int
	// Offset is the number of results to skip
	Offset int
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Normalized applies the default and maximum page size.
func (o ListOptions) Normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Store defines the persistence operations for saved filters.
type Store interface {
	// Create stores a new filter. Returns model.ErrExists when the key is taken.
	Create(ctx context.Context, f *SavedFilter) error

	// Get retrieves a filter by key.
	Get(ctx context.Context, key Key) (*SavedFilter, error)

	// List returns the owner's filters ordered by table and name, and the
	// total count before paging.
	List(ctx context.Context, opts ListOptions) ([]*SavedFilter, int, error)

	// Update replaces the filter with the same ID.
	Update(ctx context.Context, f *SavedFilter) error

	// Delete removes a filter by key.
	Delete(ctx context.Context, key Key) error

	// Close closes any underlying connections
	Close(ctx context.Context) error
}

// Checker validates a filter set against a table definition.
type Checker interface {
	Check(fs model.FilterSet) error
}

// Validate checks the shape of f. checker, when not nil, also checks the
// referenced columns.
func Validate(f *SavedFilter, checker Checker) error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", model.ErrInvalidFilter)
	}
	if utf8.RuneCountInString(f.Name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", model.ErrInvalidFilter, MaxNameLength)
	}
	if !model.CheckTableID(f.TableID) {
		return fmt.Errorf("%w: invalid table id %q", model.ErrInvalidFilter, f.TableID)
	}
	if f.OwnerID == "" {
		return fmt.Errorf("%w: owner is required", model.ErrInvalidFilter)
	}
	if n := len(f.Conditions); n > 0 && len(f.Operators) > n-1 {
		return fmt.Errorf("%w: %d operators for %d conditions", model.ErrInvalidFilter, len(f.Operators), n)
	}
	if len(f.Conditions) == 0 && len(f.Operators) > 0 {
		return fmt.Errorf("%w: operators without conditions", model.ErrInvalidFilter)
	}
	for _, op := range f.Operators {
		if !op.IsValid() {
			return fmt.Errorf("%w: unknown logical operator %q", model.ErrInvalidFilter, op)
		}
	}
	for i, c := range f.Conditions {
		if c.Column == "" {
			return fmt.Errorf("%w: condition %d has no column", model.ErrInvalidFilter, i)
		}
	}
	for _, s := range f.Sort {
		if !s.Direction.IsValid() {
			return fmt.Errorf("%w: unknown sort direction %q", model.ErrInvalidFilter, s.Direction)
		}
	}
	if checker != nil {
		return checker.Check(f.FilterSet)
	}
	return nil
}

func clone(f *SavedFilter) *SavedFilter {
	if f == nil {
		return nil
	}
	out := *f
	out.Conditions = append([]model.Condition(nil), f.Conditions...)
	out.Operators = append([]model.LogicalOp(nil), f.Operators...)
	out.Sort = append([]model.SortSpec(nil), f.Sort...)
	return &out
}
