package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Secret = testSecret
	a, err := NewAuthenticator(cfg)
	require.NoError(t, err)
	return a
}

func TestIssueAndValidate(t *testing.T) {
	a := newTestAuthenticator(t)

	token, err := a.Issue("42", "anna", []string{"it"})
	require.NoError(t, err)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "anna", claims.Username)
	assert.Equal(t, []string{"it"}, claims.Roles)
	assert.Equal(t, "worktrack", claims.Issuer)

	_, err = a.Issue("", "anna", nil)
	assert.Error(t, err)
}

func TestValidateToken_Rejects(t *testing.T) {
	a := newTestAuthenticator(t)
	now := time.Now()

	sign := func(method jwt.SigningMethod, key interface{}, claims Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func() Claims {
		return Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "worktrack",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	otherIssuer := valid()
	otherIssuer.Issuer = "elsewhere"
	noSubject := valid()
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong key", sign(jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), valid())},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, []byte(testSecret), valid())},
		{"unsigned", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())},
		{"expired", sign(jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"other issuer", sign(jwt.SigningMethodHS256, []byte(testSecret), otherIssuer)},
		{"no subject", sign(jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	a := newTestAuthenticator(t)
	token, err := a.Issue("42", "anna", nil)
	require.NoError(t, err)

	var seen string
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"basic auth", "Basic YW5uYTpzZWNyZXQ=", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tables", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Empty(t, seen)
				assert.Contains(t, rr.Body.String(), `"code":"UNAUTHORIZED"`)
			} else {
				assert.Equal(t, "42", seen)
			}
		})
	}
}

func TestMiddlewareOptional(t *testing.T) {
	a := newTestAuthenticator(t)
	token, err := a.Issue("42", "anna", nil)
	require.NoError(t, err)

	var seen string
	var called bool
	handler := a.MiddlewareOptional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name     string
		header   string
		want     int
		wantUser string
	}{
		{"valid", "Bearer " + token, http.StatusNoContent, "42"},
		{"missing passes through", "", http.StatusNoContent, ""},
		{"bad token", "Bearer abc.def.ghi", http.StatusUnauthorized, ""},
		{"basic auth", "Basic YW5uYTpzZWNyZXQ=", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, called = "", false
			req := httptest.NewRequest(http.MethodGet, "/api/v1/realtime", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			assert.Equal(t, tt.want != http.StatusUnauthorized, called)
			assert.Equal(t, tt.wantUser, seen)
		})
	}
}

func TestFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := FromContext(req.Context())
	assert.False(t, ok)
	assert.Equal(t, "", UserID(req.Context()))
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
	assert.ErrorContains(t, cfg.Validate(), "WORKTRACK_JWT_SECRET")

	t.Setenv("WORKTRACK_JWT_SECRET", testSecret)
	cfg.ApplyEnvOverrides()
	assert.NoError(t, cfg.Validate())

	cfg.TokenTTL = -time.Second
	assert.Error(t, cfg.Validate())

	_, err := NewAuthenticator(Config{Secret: "short", TokenTTL: time.Hour})
	assert.Error(t, err)
}
