// Package table binds the generic filter engine to the configured tables.
// Items are documents; columns map abstract column ids to document paths and
// pick the evaluator used for conditions on them.
package table

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/worktrack/worktrack/internal/filter"
	"github.com/worktrack/worktrack/internal/filter/cel"
	"github.com/worktrack/worktrack/pkg/model"
)

// Table filters and sorts the items of one configured table.
type Table struct {
	id      string
	columns []ColumnConfig
	byID    map[string]ColumnConfig

	pipeline filter.Pipeline[model.Document]
	sorter   filter.Sorter[model.Document]
}

// ID returns the table id.
func (t *Table) ID() string { return t.id }

// Columns returns the column declarations in configuration order.
func (t *Table) Columns() []ColumnConfig {
	out := make([]ColumnConfig, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether the table declares column.
func (t *Table) HasColumn(column string) bool {
	_, ok := t.byID[column]
	return ok
}

// Field returns the value shown in column for item. Assignment columns read
// their display text. Unknown columns are undefined.
func (t *Table) Field(item model.Document, column string) model.Value {
	col, ok := t.byID[column]
	if !ok {
		return model.Undefined
	}
	switch col.Kind {
	case KindUserRole, KindResponsibleQualityControl:
		if col.TextField != "" {
			return item.Lookup(col.TextField)
		}
		return item.Lookup(col.UserField)
	}
	return item.Lookup(col.Field)
}

// Check returns model.ErrInvalidFilter if fs references unknown columns or
// carries unknown logical operators or sort directions.
func (t *Table) Check(fs model.FilterSet) error {
	for _, column := range fs.Columns() {
		if !t.HasColumn(column) {
			return fmt.Errorf("%w: unknown column %q in table %s", model.ErrInvalidFilter, column, t.id)
		}
	}
	for _, op := range fs.Operators {
		if !op.IsValid() {
			return fmt.Errorf("%w: unknown logical operator %q", model.ErrInvalidFilter, op)
		}
	}
	for _, s := range fs.Sort {
		if !t.HasColumn(s.Column) {
			return fmt.Errorf("%w: unknown sort column %q in table %s", model.ErrInvalidFilter, s.Column, t.id)
		}
		if !s.Direction.IsValid() {
			return fmt.Errorf("%w: unknown sort direction %q", model.ErrInvalidFilter, s.Direction)
		}
	}
	return nil
}

// Filter applies the conditions of fs, then its sort. items is not modified.
func (t *Table) Filter(items []model.Document, fs model.FilterSet) []model.Document {
	out := t.pipeline.Apply(items, fs.Conditions, fs.Operators)
	return t.sorter.Sort(out, fs.Sort)
}

// Registry holds the configured tables.
type Registry struct {
	tables map[string]*Table
}

// NewRegistry builds the tables of cfg. compiler may be nil when no table
// declares a cel column.
func NewRegistry(cfg Config, evaluator *filter.Evaluator, compiler *cel.Compiler, lang language.Tag) (*Registry, error) {
	if evaluator == nil {
		evaluator = filter.Default()
	}

	r := &Registry{tables: make(map[string]*Table, len(cfg))}
	for _, def := range cfg {
		t := &Table{
			id:      def.ID,
			columns: def.Columns,
			byID:    make(map[string]ColumnConfig, len(def.Columns)),
		}
		evaluators := make(map[string]filter.ColumnEvaluator[model.Document])
		for _, col := range def.Columns {
			t.byID[col.ID] = col

			eval, err := columnEvaluator(col, evaluator, compiler)
			if err != nil {
				return nil, fmt.Errorf("table %s: %w", def.ID, err)
			}
			if eval != nil {
				evaluators[col.ID] = eval
			}
		}

		t.pipeline = filter.Pipeline[model.Document]{
			Evaluator: evaluator,
			Field:     t.Field,
			Columns:   evaluators,
		}
		t.sorter = filter.Sorter[model.Document]{Field: t.Field, Lang: lang}
		r.tables[def.ID] = t
	}
	return r, nil
}

// Get returns the table with the given id.
func (r *Registry) Get(id string) (*Table, error) {
	t, ok := r.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownTable, id)
	}
	return t, nil
}

// IDs returns the table ids in lexical order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func columnEvaluator(col ColumnConfig, e *filter.Evaluator, compiler *cel.Compiler) (filter.ColumnEvaluator[model.Document], error) {
	switch col.Kind {
	case KindDate:
		return func(item model.Document, c model.Condition) (bool, bool) {
			return e.EvaluateDateCondition(item.Lookup(col.Field), c), true
		}, nil

	case KindUserRole:
		return func(item model.Document, c model.Condition) (bool, bool) {
			return filter.EvaluateUserRoleCondition(
				idAt(item, col.UserField),
				idAt(item, col.RoleField),
				c,
				textAt(item, col.TextField),
			), true
		}, nil

	case KindResponsibleQualityControl:
		return func(item model.Document, c model.Condition) (bool, bool) {
			return filter.EvaluateResponsibleAndQualityControl(
				idAt(item, col.UserField),
				idAt(item, col.RoleField),
				idAt(item, col.QCField),
				c,
				textAt(item, col.TextField),
				textAt(item, col.QCTextField),
			), true
		}, nil

	case KindCEL:
		if compiler == nil {
			return nil, fmt.Errorf("column %s: no CEL compiler configured", col.ID)
		}
		return compiler.Column(col.ID, col.Expr)
	}
	return nil, nil
}

// idAt reads an integer id. Absent, null and non-integral values are nil.
func idAt(item model.Document, path string) *int64 {
	if path == "" {
		return nil
	}
	v := item.Lookup(path)
	switch v.Kind() {
	case model.KindNumber:
		n, _ := v.Num()
		id := int64(n)
		if float64(id) != n {
			return nil
		}
		return &id
	case model.KindString:
		s, _ := v.Str()
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil
		}
		return &id
	}
	return nil
}

// textAt reads a display text. Absent and null values are nil.
func textAt(item model.Document, path string) *string {
	if path == "" {
		return nil
	}
	s, ok := item.Lookup(path).ComparableString()
	if !ok {
		return nil
	}
	return &s
}
