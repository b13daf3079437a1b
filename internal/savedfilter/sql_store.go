package savedfilter

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/worktrack/worktrack/pkg/model"
)

// Dialect selects the SQL flavour of an SQLStore.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

var (
	//go:embed schema/postgres.sql
	postgresSchema string

	//go:embed schema/sqlite.sql
	sqliteSchema string
)

// SQLStore implements Store on PostgreSQL or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore creates a store over an open database handle.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	if dialect == "" {
		dialect = DialectPostgres
	}
	return &SQLStore{db: db, dialect: dialect}
}

// EnsureSchema creates the saved_filters table and indexes if they don't exist
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	schema := postgresSchema
	if s.dialect == DialectSQLite {
		schema = sqliteSchema
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const selectColumns = `id, owner_id, table_id, name, conditions, operators, sort, created_at, updated_at`

func (s *SQLStore) Create(ctx context.Context, f *SavedFilter) error {
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = now
	}

	conds, ops, srt, err := encodeFilterSet(f.FilterSet)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO saved_filters (
			id, owner_id, table_id, name, conditions, operators, sort, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`),
		f.ID, f.OwnerID, f.TableID, f.Name, conds, ops, srt, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrExists
		}
		return model.WrapError(err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key Key) (*SavedFilter, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+selectColumns+`
		FROM saved_filters WHERE owner_id = $1 AND table_id = $2 AND name = $3
	`), key.OwnerID, key.TableID, key.Name)

	f, err := scanFilter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	return f, nil
}

func (s *SQLStore) List(ctx context.Context, opts ListOptions) ([]*SavedFilter, int, error) {
	opts = opts.Normalized()

	var tableFilter interface{}
	if opts.TableID != "" {
		tableFilter = opts.TableID
	}

	var total int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM saved_filters
		WHERE owner_id = $1 AND (CAST($2 AS TEXT) IS NULL OR table_id = $2)
	`), opts.OwnerID, tableFilter).Scan(&total)
	if err != nil {
		return nil, 0, model.WrapError(err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+selectColumns+`
		FROM saved_filters
		WHERE owner_id = $1 AND (CAST($2 AS TEXT) IS NULL OR table_id = $2)
		ORDER BY table_id, name
		LIMIT $3 OFFSET $4
	`), opts.OwnerID, tableFilter, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, model.WrapError(err)
	}
	defer rows.Close()

	filters := []*SavedFilter{}
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, 0, err
		}
		filters = append(filters, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, model.WrapError(err)
	}
	return filters, total, nil
}

func (s *SQLStore) Update(ctx context.Context, f *SavedFilter) error {
	f.UpdatedAt = time.Now().UTC()

	conds, ops, srt, err := encodeFilterSet(f.FilterSet)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE saved_filters SET
			name = $2,
			conditions = $3,
			operators = $4,
			sort = $5,
			updated_at = $6
		WHERE id = $1
	`), f.ID, f.Name, conds, ops, srt, f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrExists
		}
		return model.WrapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key Key) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM saved_filters WHERE owner_id = $1 AND table_id = $2 AND name = $3
	`), key.OwnerID, key.TableID, key.Name)
	if err != nil {
		return model.WrapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *SQLStore) Close(ctx context.Context) error {
	return s.db.Close()
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// rebind turns $N placeholders into SQLite's ?N form.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?$1")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFilter(row rowScanner) (*SavedFilter, error) {
	var f SavedFilter
	var conds, ops, srt []byte

	err := row.Scan(
		&f.ID, &f.OwnerID, &f.TableID, &f.Name,
		&conds, &ops, &srt,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeJSONColumn(conds, &f.Conditions); err != nil {
		return nil, fmt.Errorf("saved filter %s: conditions: %w", f.ID, err)
	}
	if err := decodeJSONColumn(ops, &f.Operators); err != nil {
		return nil, fmt.Errorf("saved filter %s: operators: %w", f.ID, err)
	}
	if err := decodeJSONColumn(srt, &f.Sort); err != nil {
		return nil, fmt.Errorf("saved filter %s: sort: %w", f.ID, err)
	}
	return &f, nil
}

func decodeJSONColumn(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func encodeFilterSet(fs model.FilterSet) (conds, ops, srt string, err error) {
	encode := func(v interface{}, empty bool) (string, error) {
		if empty {
			return "[]", nil
		}
		data, err := json.Marshal(v)
		return string(data), err
	}

	if conds, err = encode(fs.Conditions, len(fs.Conditions) == 0); err != nil {
		return "", "", "", fmt.Errorf("failed to encode conditions: %w", err)
	}
	if ops, err = encode(fs.Operators, len(fs.Operators) == 0); err != nil {
		return "", "", "", fmt.Errorf("failed to encode operators: %w", err)
	}
	if srt, err = encode(fs.Sort, len(fs.Sort) == 0); err != nil {
		return "", "", "", fmt.Errorf("failed to encode sort: %w", err)
	}
	return conds, ops, srt, nil
}

// isUniqueViolation checks if the error is a unique constraint violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
