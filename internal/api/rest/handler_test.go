package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/worktrack/worktrack/internal/identity"
	"github.com/worktrack/worktrack/internal/savedfilter"
	"github.com/worktrack/worktrack/internal/server"
	"github.com/worktrack/worktrack/internal/table"
	"github.com/worktrack/worktrack/pkg/model"
)

func newTestRegistry(t *testing.T) *table.Registry {
	t.Helper()
	cfg := table.Config{
		{ID: "tasks", Columns: []table.ColumnConfig{
			{ID: "title"},
			{ID: "status"},
			{ID: "priority"},
			{ID: "assignee", Kind: table.KindUserRole, UserField: "assignee_id"},
		}},
		{ID: "invoices", Columns: []table.ColumnConfig{{ID: "amount"}}},
	}
	cfg.ApplyDefaults()
	reg, err := table.NewRegistry(cfg, nil, nil, language.English)
	require.NoError(t, err)
	return reg
}

func newTestHandler(t *testing.T) (*Handler, *MockFilterService, *http.ServeMux) {
	t.Helper()
	svc := new(MockFilterService)
	h := NewHandler(svc, newTestRegistry(t), headerAuth{}, nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, svc, mux
}

func do(mux http.Handler, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) server.APIError {
	t.Helper()
	var e server.APIError
	require.NoError(t, json.NewDecoder(w.Body).Decode(&e))
	return e
}

var sampleItems = []model.Document{
	{"id": "1", "title": "Fix printer", "status": "open", "priority": 3.0, "assignee_id": 7.0},
	{"id": "2", "title": "Order toner", "status": "done", "priority": 1.0},
	{"id": "3", "title": "Replace cable", "status": "open", "priority": 9.0, "assignee_id": 8.0},
}

func ids(docs []model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.GetID()
	}
	return out
}

func TestNewHandler_PanicsWithoutDependencies(t *testing.T) {
	reg := newTestRegistry(t)
	assert.Panics(t, func() { NewHandler(nil, reg, headerAuth{}, nil) })
	assert.Panics(t, func() { NewHandler(new(MockFilterService), nil, headerAuth{}, nil) })
	assert.Panics(t, func() { NewHandler(new(MockFilterService), reg, nil, nil) })
}

func TestHandleFilter_Inline(t *testing.T) {
	_, _, mux := newTestHandler(t)

	tests := []struct {
		name string
		body map[string]interface{}
		want []string
	}{
		{
			name: "no conditions keeps everything",
			body: map[string]interface{}{"items": sampleItems},
			want: []string{"1", "2", "3"},
		},
		{
			name: "equals ignores case",
			body: map[string]interface{}{
				"items":      sampleItems,
				"conditions": []map[string]interface{}{{"column": "status", "operator": "equals", "value": "OPEN"}},
			},
			want: []string{"1", "3"},
		},
		{
			name: "or with sort",
			body: map[string]interface{}{
				"items": sampleItems,
				"conditions": []map[string]interface{}{
					{"column": "status", "operator": "equals", "value": "done"},
					{"column": "priority", "operator": "greaterThan", "value": "5"},
				},
				"operators": []string{"OR"},
				"sort":      []map[string]string{{"column": "priority", "direction": "desc"}},
			},
			want: []string{"3", "2"},
		},
		{
			name: "assignee column",
			body: map[string]interface{}{
				"items":      sampleItems,
				"conditions": []map[string]interface{}{{"column": "assignee", "operator": "equals", "value": "user-8"}},
			},
			want: []string{"3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(mux, http.MethodPost, "/api/v1/tables/tasks/filter", "u1", tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp FilterResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.want, ids(resp.Items))
			assert.Equal(t, 3, resp.Total)
			assert.Equal(t, len(tt.want), resp.Matched)
		})
	}
}

func TestHandleFilter_EmptyResultIsArray(t *testing.T) {
	_, _, mux := newTestHandler(t)

	w := do(mux, http.MethodPost, "/api/v1/tables/tasks/filter", "u1", map[string]interface{}{
		"conditions": []map[string]interface{}{{"column": "status", "operator": "equals", "value": "x"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0,"matched":0}`, w.Body.String())
}

func TestHandleFilter_Saved(t *testing.T) {
	_, svc, mux := newTestHandler(t)

	key := savedfilter.Key{OwnerID: "u1", TableID: "tasks", Name: "My open"}
	svc.On("Apply", mock.Anything, key, mock.AnythingOfType("[]model.Document")).
		Return([]model.Document{{"id": "1"}}, nil).Once()

	w := do(mux, http.MethodPost, "/api/v1/tables/tasks/filter", "u1", map[string]interface{}{
		"items": sampleItems,
		"saved": "My open",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[{"id":"1"}],"total":3,"matched":1}`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestHandleFilter_Errors(t *testing.T) {
	_, svc, mux := newTestHandler(t)
	svc.On("Apply", mock.Anything, savedfilter.Key{OwnerID: "u1", TableID: "tasks", Name: "gone"}, mock.Anything).
		Return(nil, fmt.Errorf("load: %w", model.ErrNotFound))

	tests := []struct {
		name   string
		path   string
		user   string
		body   interface{}
		status int
		code   string
	}{
		{"unauthenticated", "/api/v1/tables/tasks/filter", "", map[string]interface{}{}, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"bad table id", "/api/v1/tables/bad%20id/filter", "u1", map[string]interface{}{}, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown table", "/api/v1/tables/people/filter", "u1", map[string]interface{}{}, http.StatusNotFound, ErrCodeNotFound},
		{"invalid json", "/api/v1/tables/tasks/filter", "u1", "{", http.StatusBadRequest, ErrCodeBadRequest},
		{"saved with conditions", "/api/v1/tables/tasks/filter", "u1", map[string]interface{}{
			"saved":      "x",
			"conditions": []map[string]interface{}{{"column": "status", "operator": "equals", "value": "open"}},
		}, http.StatusBadRequest, ErrCodeBadRequest},
		{"operators without conditions", "/api/v1/tables/tasks/filter", "u1", map[string]interface{}{"operators": []string{"AND"}}, http.StatusBadRequest, ErrCodeBadRequest},
		{"saved not found", "/api/v1/tables/tasks/filter", "u1", map[string]interface{}{"saved": "gone"}, http.StatusNotFound, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(mux, http.MethodPost, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestHandleFilter_BodyTooLarge(t *testing.T) {
	h, _, _ := newTestHandler(t)
	handler := maxBodySize(h.handleFilter, 64)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tables/tasks/filter", strings.NewReader(`{"items":[`+strings.Repeat(`{"id":"1"},`, 20)+`{}]}`))
	req.SetPathValue("table", "tasks")
	req = req.WithContext(identity.WithClaims(req.Context(), userClaims("u1")))
	w := httptest.NewRecorder()
	handler(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, ErrCodeRequestTooLarge, decodeError(t, w).Code)
}

func TestHandleFilter_ClientCanceled(t *testing.T) {
	h, _, _ := newTestHandler(t)

	ctx, cancel := context.WithCancel(identity.WithClaims(context.Background(), userClaims("u1")))
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tables/tasks/filter", strings.NewReader(`{"items":[]}`)).WithContext(ctx)
	req.SetPathValue("table", "tasks")
	w := httptest.NewRecorder()
	h.handleFilter(w, req)

	assert.Equal(t, server.StatusClientClosedRequest, w.Code)
}

func TestSavedFilterCRUD(t *testing.T) {
	_, svc, mux := newTestHandler(t)

	now := time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)
	fs := model.FilterSet{
		Conditions: []model.Condition{{Column: "status", Operator: model.OpEquals, Value: model.String("open")}},
		Operators:  []model.LogicalOp{},
	}
	saved := &savedfilter.SavedFilter{ID: "f1", OwnerID: "u1", TableID: "tasks", Name: "Open", FilterSet: fs, CreatedAt: now, UpdatedAt: now}
	key := savedfilter.Key{OwnerID: "u1", TableID: "tasks", Name: "Open"}

	t.Run("create", func(t *testing.T) {
		svc.On("Create", mock.Anything, "u1", "tasks", "Open", fs).Return(saved, nil).Once()
		w := do(mux, http.MethodPost, "/api/v1/tables/tasks/filters", "u1", map[string]interface{}{
			"name":       "Open",
			"conditions": []map[string]interface{}{{"column": "status", "operator": "equals", "value": "open"}},
			"operators":  []string{},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var got savedfilter.SavedFilter
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "f1", got.ID)
		assert.Equal(t, "Open", got.Name)
	})

	t.Run("get", func(t *testing.T) {
		svc.On("Get", mock.Anything, key).Return(saved, nil).Once()
		w := do(mux, http.MethodGet, "/api/v1/tables/tasks/filters/Open", "u1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"owner_id":"u1"`)
	})

	t.Run("get escaped name", func(t *testing.T) {
		spaced := savedfilter.Key{OwnerID: "u1", TableID: "tasks", Name: "My open"}
		svc.On("Get", mock.Anything, spaced).Return(saved, nil).Once()
		w := do(mux, http.MethodGet, "/api/v1/tables/tasks/filters/My%20open", "u1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("update renames", func(t *testing.T) {
		renamed := *saved
		renamed.Name = "Still open"
		svc.On("Update", mock.Anything, key, "Still open", mock.AnythingOfType("model.FilterSet")).Return(&renamed, nil).Once()
		w := do(mux, http.MethodPut, "/api/v1/tables/tasks/filters/Open", "u1", map[string]interface{}{"name": "Still open"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"name":"Still open"`)
	})

	t.Run("delete", func(t *testing.T) {
		svc.On("Delete", mock.Anything, key).Return(nil).Once()
		w := do(mux, http.MethodDelete, "/api/v1/tables/tasks/filters/Open", "u1", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	svc.AssertExpectations(t)
}

func TestSavedFilter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", model.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"unknown table", fmt.Errorf("%w: people", model.ErrUnknownTable), http.StatusNotFound, ErrCodeNotFound},
		{"exists", model.ErrExists, http.StatusConflict, ErrCodeConflict},
		{"invalid", fmt.Errorf("%w: name is required", model.ErrInvalidFilter), http.StatusBadRequest, ErrCodeBadRequest},
		{"denied", model.ErrPermissionDenied, http.StatusForbidden, ErrCodeForbidden},
		{"storage", errors.New("connection reset"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, svc, mux := newTestHandler(t)
			svc.On("Create", mock.Anything, "u1", "tasks", "x", mock.Anything).Return(nil, tt.err)

			w := do(mux, http.MethodPost, "/api/v1/tables/tasks/filters", "u1", map[string]interface{}{"name": "x"})
			assert.Equal(t, tt.status, w.Code)
			e := decodeError(t, w)
			assert.Equal(t, tt.code, e.Code)
			if tt.name == "invalid" {
				assert.Contains(t, e.Message, "name is required")
			}
		})
	}

	t.Run("canceled", func(t *testing.T) {
		_, svc, mux := newTestHandler(t)
		svc.On("Delete", mock.Anything, mock.Anything).Return(model.ErrCanceled)
		w := do(mux, http.MethodDelete, "/api/v1/tables/tasks/filters/x", "u1", nil)
		assert.Equal(t, server.StatusClientClosedRequest, w.Code)
	})
}

func TestListFilters(t *testing.T) {
	_, svc, mux := newTestHandler(t)

	list := []*savedfilter.SavedFilter{{ID: "f1", OwnerID: "u1", TableID: "tasks", Name: "A"}}
	svc.On("List", mock.Anything, savedfilter.ListOptions{OwnerID: "u1", TableID: "tasks", Limit: 5, Offset: 10}).Return(list, 11, nil).Once()
	svc.On("List", mock.Anything, savedfilter.ListOptions{OwnerID: "u1", TableID: "tasks", Limit: 20}).Return(nil, 0, nil).Once()
	svc.On("List", mock.Anything, savedfilter.ListOptions{OwnerID: "u1", TableID: "tasks", Limit: 100}).Return(nil, 0, nil).Once()

	w := do(mux, http.MethodGet, "/api/v1/tables/tasks/filters?limit=5&offset=10&unknown=1", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ListFiltersResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 11, resp.Total)
	assert.Equal(t, 5, resp.Limit)
	assert.Equal(t, 10, resp.Offset)
	require.Len(t, resp.Filters, 1)
	assert.Equal(t, "A", resp.Filters[0].Name)

	w = do(mux, http.MethodGet, "/api/v1/tables/tasks/filters", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"filters":[],"total":0,"limit":20,"offset":0}`, w.Body.String())

	w = do(mux, http.MethodGet, "/api/v1/tables/tasks/filters?limit=1000", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	svc.AssertExpectations(t)

	for _, q := range []string{"limit=abc", "limit=-1", "offset=-5", "offset=100001"} {
		t.Run(q, func(t *testing.T) {
			w := do(mux, http.MethodGet, "/api/v1/tables/tasks/filters?"+q, "u1", nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestListTables(t *testing.T) {
	_, _, mux := newTestHandler(t)

	w := do(mux, http.MethodGet, "/api/v1/tables", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListTablesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Tables, 2)
	assert.Equal(t, "invoices", resp.Tables[0].ID)
	assert.Equal(t, "tasks", resp.Tables[1].ID)
	assert.Len(t, resp.Tables[1].Columns, 4)
	assert.Equal(t, table.KindUserRole, resp.Tables[1].Columns[3].Kind)
	assert.Equal(t, model.KnownOperators(), resp.Operators)

	assert.Equal(t, http.StatusUnauthorized, do(mux, http.MethodGet, "/api/v1/tables", "", nil).Code)
}

func TestRealtimeRoute(t *testing.T) {
	h, _, mux := newTestHandler(t)

	w := do(mux, http.MethodGet, "/api/v1/realtime", "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var seenUser string
	h.SetRealtime(func(w http.ResponseWriter, r *http.Request) {
		seenUser = identity.UserID(r.Context())
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	w = do(mux, http.MethodGet, "/api/v1/realtime", "u1", nil)
	assert.Equal(t, http.StatusSwitchingProtocols, w.Code)
	assert.Equal(t, "", seenUser, "the realtime server authenticates on its own")

	w = do(mux, http.MethodGet, "/api/v1/realtime", "", nil)
	assert.Equal(t, http.StatusSwitchingProtocols, w.Code)
}

func TestHealth(t *testing.T) {
	_, _, mux := newTestHandler(t)
	w := do(mux, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestWithTimeout(t *testing.T) {
	var deadline time.Time
	handler := withTimeout(func(w http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
	}, time.Minute)
	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, time.Second)
}

func TestRoutes_WithRealAuthenticator(t *testing.T) {
	auth, err := identity.NewAuthenticator(identity.Config{
		Secret:   strings.Repeat("k", 32),
		Issuer:   "worktrack",
		TokenTTL: time.Hour,
	})
	require.NoError(t, err)

	h := NewHandler(new(MockFilterService), newTestRegistry(t), auth, nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	token, err := auth.Issue("u1", "anna", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tables", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tables", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func userClaims(user string) *identity.Claims {
	c := &identity.Claims{Username: user}
	c.Subject = user
	return c
}
