package rest

import (
	"net/http"

	"github.com/worktrack/worktrack/pkg/model"
)

func (h *Handler) handleListTables(w http.ResponseWriter, r *http.Request) {
	ids := h.tables.IDs()
	resp := ListTablesResponse{
		Tables:    make([]TableInfo, 0, len(ids)),
		Operators: model.KnownOperators(),
	}
	for _, id := range ids {
		t, err := h.tables.Get(id)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		resp.Tables = append(resp.Tables, TableInfo{ID: id, Columns: t.Columns()})
	}
	writeJSON(w, http.StatusOK, resp)
}
