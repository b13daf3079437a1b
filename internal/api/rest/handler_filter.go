package rest

import (
	"net/http"

	"github.com/worktrack/worktrack/internal/savedfilter"
	"github.com/worktrack/worktrack/pkg/model"
)

// handleFilter applies an inline or saved filter set to the posted items.
// Inline sets are evaluated as sent: unknown columns read as undefined and
// unknown joins fall back to OR, the same as stored data would.
func (h *Handler) handleFilter(w http.ResponseWriter, r *http.Request) {
	tableID := r.PathValue("table")
	if err := validateTableParam(tableID); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	owner, ok := ownerOrError(w, r)
	if !ok {
		return
	}

	var req FilterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateFilterRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var (
		out []model.Document
		err error
	)
	if req.Saved != "" {
		out, err = h.filters.Apply(r.Context(), savedfilter.Key{OwnerID: owner, TableID: tableID, Name: req.Saved}, req.Items)
	} else {
		t, getErr := h.tables.Get(tableID)
		if getErr != nil {
			h.writeServiceError(w, r, getErr)
			return
		}
		out = t.Filter(req.Items, req.FilterSet)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := r.Context().Err(); err != nil {
		h.writeInternalError(w, r, err, "Filter evaluation interrupted")
		return
	}

	if out == nil {
		out = []model.Document{}
	}
	h.logger.Debug("Filter applied",
		"table", tableID,
		"saved", req.Saved,
		"total", len(req.Items),
		"matched", len(out),
	)
	writeJSON(w, http.StatusOK, FilterResponse{Items: out, Total: len(req.Items), Matched: len(out)})
}
