package rest

import (
	"net/http"

	"github.com/gorilla/schema"

	"github.com/worktrack/worktrack/internal/savedfilter"
)

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// filterKey builds the key of the addressed filter for the caller.
func filterKey(w http.ResponseWriter, r *http.Request) (savedfilter.Key, bool) {
	tableID := r.PathValue("table")
	if err := validateTableParam(tableID); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return savedfilter.Key{}, false
	}
	owner, ok := ownerOrError(w, r)
	if !ok {
		return savedfilter.Key{}, false
	}
	return savedfilter.Key{OwnerID: owner, TableID: tableID, Name: r.PathValue("name")}, true
}

func (h *Handler) handleListFilters(w http.ResponseWriter, r *http.Request) {
	key, ok := filterKey(w, r)
	if !ok {
		return
	}

	var q ListFiltersQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		h.logger.Warn("Invalid list query", "error", err)
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid query parameters")
		return
	}
	if err := validateListQuery(&q); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	opts := savedfilter.ListOptions{
		OwnerID: key.OwnerID,
		TableID: key.TableID,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}.Normalized()
	filters, total, err := h.filters.List(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if filters == nil {
		filters = []*savedfilter.SavedFilter{}
	}
	writeJSON(w, http.StatusOK, ListFiltersResponse{Filters: filters, Total: total, Limit: opts.Limit, Offset: opts.Offset})
}

func (h *Handler) handleCreateFilter(w http.ResponseWriter, r *http.Request) {
	key, ok := filterKey(w, r)
	if !ok {
		return
	}

	var req SavedFilterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	f, err := h.filters.Create(r.Context(), key.OwnerID, key.TableID, req.Name, req.FilterSet)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.logger.Info("Saved filter created", "table", f.TableID, "name", f.Name, "owner", f.OwnerID)
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	key, ok := filterKey(w, r)
	if !ok {
		return
	}

	f, err := h.filters.Get(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) handleUpdateFilter(w http.ResponseWriter, r *http.Request) {
	key, ok := filterKey(w, r)
	if !ok {
		return
	}

	var req SavedFilterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	f, err := h.filters.Update(r.Context(), key, req.Name, req.FilterSet)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) handleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	key, ok := filterKey(w, r)
	if !ok {
		return
	}

	if err := h.filters.Delete(r.Context(), key); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
