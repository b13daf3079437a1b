// Package identity verifies the bearer tokens issued by the intranet sign-on
// and exposes the caller to handlers through the request context.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingToken = errors.New("authorization header required")
)

// ContextKey is used for storing identity data in the request context.
type ContextKey string

const ContextKeyClaims ContextKey = "claims"

// Claims represents the JWT claims of a caller. Subject is the user id.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies HS256 tokens.
type Authenticator struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewAuthenticator creates an authenticator from a validated Config.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Authenticator{
		key:    []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// Issue signs a token for userID. Production tokens come from the sign-on
// service; this is used by tests and the -token flag.
func (a *Authenticator) Issue(userID, username string, roles []string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := a.now()
	claims := Claims{
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

// ValidateToken parses tokenString and checks signature, expiry and issuer.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// claims in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeUnauthorized(w, err.Error())
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			writeUnauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// MiddlewareOptional passes requests without an Authorization header
// through unchanged. A header that is present must carry a valid token.
func (a *Authenticator) MiddlewareOptional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		a.Middleware(next).ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="worktrack"`)
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"code":"UNAUTHORIZED","message":%q}`, message)
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// FromContext returns the caller's claims.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*Claims)
	return claims, ok && claims != nil
}

// UserID returns the caller's user id, or "" when unauthenticated.
func UserID(ctx context.Context) string {
	if claims, ok := FromContext(ctx); ok {
		return claims.Subject
	}
	return ""
}
