package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// KeyFunc maps a request to the bucket it draws from.
type KeyFunc func(r *http.Request) string

// RejectFunc writes the response for a throttled request.
type RejectFunc func(w http.ResponseWriter, r *http.Request, retryAfter time.Duration)

// Middleware throttles requests per key. A Retry-After header with whole
// seconds (at least 1) is set before reject runs.
func Middleware(limiter Limiter, key KeyFunc, reject RejectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Allow(key(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(wait)))
				reject(w, r, wait)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// ClientIP returns the address of the caller. Forwarding headers are only
// consulted when trustProxy is set; the first X-Forwarded-For hop wins.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
