package table

import (
	"fmt"

	"github.com/worktrack/worktrack/pkg/model"
)

// ColumnKind selects how conditions on a column are evaluated.
type ColumnKind string

const (
	KindField                     ColumnKind = "field"
	KindDate                      ColumnKind = "date"
	KindUserRole                  ColumnKind = "user_role"
	KindResponsibleQualityControl ColumnKind = "responsible_quality_control"
	KindCEL                       ColumnKind = "cel"
)

// ColumnConfig declares one filterable column. Paths are dotted item paths.
type ColumnConfig struct {
	ID   string     `yaml:"id" json:"id"`
	Kind ColumnKind `yaml:"kind" json:"kind"`

	// Field is the item path for field, date and cel columns. Defaults to ID.
	Field string `yaml:"field" json:"field,omitempty"`

	// Assignment columns.
	UserField   string `yaml:"user_field" json:"user_field,omitempty"`
	RoleField   string `yaml:"role_field" json:"role_field,omitempty"`
	TextField   string `yaml:"text_field" json:"text_field,omitempty"`
	QCField     string `yaml:"qc_field" json:"qc_field,omitempty"`
	QCTextField string `yaml:"qc_text_field" json:"qc_text_field,omitempty"`

	// Expr is the CEL expression of a cel column.
	Expr string `yaml:"expr" json:"-"`
}

// Definition declares a table and its columns.
type Definition struct {
	ID      string         `yaml:"id"`
	Columns []ColumnConfig `yaml:"columns"`
}

// Config is the list of configured tables.
type Config []Definition

// ApplyDefaults fills in column kinds and field paths.
func (c *Config) ApplyDefaults() {
	for i := range *c {
		def := &(*c)[i]
		for j := range def.Columns {
			col := &def.Columns[j]
			if col.Kind == "" {
				col.Kind = KindField
			}
			if col.Field == "" && (col.Kind == KindField || col.Kind == KindDate || col.Kind == KindCEL) {
				col.Field = col.ID
			}
		}
	}
}

// ApplyEnvOverrides applies environment variable overrides.
// No env vars for table config.
func (c *Config) ApplyEnvOverrides() { _ = c }

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in table config.
func (c *Config) ResolvePaths(_ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	tables := make(map[string]bool, len(*c))
	for _, def := range *c {
		if !model.CheckTableID(def.ID) {
			return fmt.Errorf("invalid table id %q", def.ID)
		}
		if tables[def.ID] {
			return fmt.Errorf("duplicate table id %q", def.ID)
		}
		tables[def.ID] = true

		columns := make(map[string]bool, len(def.Columns))
		for _, col := range def.Columns {
			if col.ID == "" {
				return fmt.Errorf("table %s: column id is required", def.ID)
			}
			if columns[col.ID] {
				return fmt.Errorf("table %s: duplicate column %q", def.ID, col.ID)
			}
			columns[col.ID] = true

			if err := col.validate(); err != nil {
				return fmt.Errorf("table %s: column %s: %w", def.ID, col.ID, err)
			}
		}
	}
	return nil
}

func (col ColumnConfig) validate() error {
	switch col.Kind {
	case KindField, KindDate:
		if col.Field == "" {
			return fmt.Errorf("field is required")
		}
	case KindUserRole:
		if col.UserField == "" && col.RoleField == "" && col.TextField == "" {
			return fmt.Errorf("one of user_field, role_field or text_field is required")
		}
	case KindResponsibleQualityControl:
		if col.UserField == "" && col.QCField == "" && col.RoleField == "" {
			return fmt.Errorf("one of user_field, role_field or qc_field is required")
		}
	case KindCEL:
		if col.Expr == "" {
			return fmt.Errorf("expr is required")
		}
	default:
		return fmt.Errorf("unknown column kind %q", col.Kind)
	}
	return nil
}
