package rest

import (
	"github.com/worktrack/worktrack/internal/savedfilter"
	"github.com/worktrack/worktrack/internal/table"
	"github.com/worktrack/worktrack/pkg/model"
)

// FilterRequest filters items either by an inline filter set or by the
// name of one of the caller's saved filters, never both.
type FilterRequest struct {
	Items []model.Document `json:"items"`
	model.FilterSet
	Saved string `json:"saved,omitempty"`
}

type FilterResponse struct {
	Items   []model.Document `json:"items"`
	Total   int              `json:"total"`
	Matched int              `json:"matched"`
}

// SavedFilterRequest is the body of create and update. On update a
// non-empty Name renames the filter.
type SavedFilterRequest struct {
	Name string `json:"name"`
	model.FilterSet
}

// ListFiltersQuery is decoded from the query string.
type ListFiltersQuery struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}

type ListFiltersResponse struct {
	Filters []*savedfilter.SavedFilter `json:"filters"`
	Total   int                        `json:"total"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
}

type TableInfo struct {
	ID      string               `json:"id"`
	Columns []table.ColumnConfig `json:"columns"`
}

type ListTablesResponse struct {
	Tables    []TableInfo      `json:"tables"`
	Operators []model.Operator `json:"operators"`
}
