package rest

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"

	"github.com/worktrack/worktrack/internal/identity"
	"github.com/worktrack/worktrack/internal/savedfilter"
	"github.com/worktrack/worktrack/pkg/model"
)

type MockFilterService struct {
	mock.Mock
}

func (m *MockFilterService) Create(ctx context.Context, owner, tableID, name string, fs model.FilterSet) (*savedfilter.SavedFilter, error) {
	args := m.Called(ctx, owner, tableID, name, fs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*savedfilter.SavedFilter), args.Error(1)
}

func (m *MockFilterService) Get(ctx context.Context, key savedfilter.Key) (*savedfilter.SavedFilter, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*savedfilter.SavedFilter), args.Error(1)
}

func (m *MockFilterService) List(ctx context.Context, opts savedfilter.ListOptions) ([]*savedfilter.SavedFilter, int, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*savedfilter.SavedFilter), args.Int(1), args.Error(2)
}

func (m *MockFilterService) Update(ctx context.Context, key savedfilter.Key, newName string, fs model.FilterSet) (*savedfilter.SavedFilter, error) {
	args := m.Called(ctx, key, newName, fs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*savedfilter.SavedFilter), args.Error(1)
}

func (m *MockFilterService) Delete(ctx context.Context, key savedfilter.Key) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockFilterService) Apply(ctx context.Context, key savedfilter.Key, items []model.Document) ([]model.Document, error) {
	args := m.Called(ctx, key, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

// headerAuth authenticates the user named in X-Test-User.
type headerAuth struct{}

func (headerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get("X-Test-User")
		if user == "" {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing token")
			return
		}
		claims := &identity.Claims{Username: user, RegisteredClaims: jwt.RegisteredClaims{Subject: user}}
		next.ServeHTTP(w, r.WithContext(identity.WithClaims(r.Context(), claims)))
	})
}
