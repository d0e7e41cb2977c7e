// Package auth guards the search service's HTTP surface: API keys for the
// routes that change state, and per-caller rate limits for everything.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/logger"
)

//go:generate mockgen -destination=mock_validator_test.go -package=auth . KeyValidator

// KeyValidator resolves a raw API key.
type KeyValidator interface {
	Validate(ctx context.Context, rawKey string) (apikey.KeyInfo, error)
}

type contextKey struct{}

// KeyInfoFrom returns the key validated by RequireKey, if any.
func KeyInfoFrom(ctx context.Context) (apikey.KeyInfo, bool) {
	info, ok := ctx.Value(contextKey{}).(apikey.KeyInfo)
	return info, ok
}

// RequireKey rejects requests without a valid key. Keys are read from
// "Authorization: Bearer", then X-API-Key, then the api_key parameter.
func RequireKey(v KeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractAPIKey(r)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}
			info, err := v.Validate(r.Context(), key)
			switch {
			case errors.Is(err, apikey.ErrInvalidKey):
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			case errors.Is(err, apikey.ErrExpiredKey):
				writeError(w, http.StatusUnauthorized, "expired api key")
				return
			case err != nil:
				logger.FromContext(r.Context()).Error("api key validation failed", "error", err)
				writeError(w, http.StatusInternalServerError, "authentication error")
				return
			}
			ctx := context.WithValue(r.Context(), contextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit limits callers holding a key to the key's rate and everyone
// else to anonymousLimit per client address. Health probes are exempt.
func RateLimit(l *ratelimit.Limiter, v KeyValidator, anonymousLimit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			bucket, limit := "ip:"+clientIP(r), anonymousLimit
			if raw := extractAPIKey(r); raw != "" && v != nil {
				// Invalid keys fall back to the anonymous bucket; RequireKey
				// rejects them where a key is mandatory.
				if info, err := v.Validate(r.Context(), raw); err == nil {
					bucket, limit = "key:"+strconv.FormatInt(info.ID, 10), info.RateLimit
				}
			}
			if !l.Allow(bucket, limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.RetryAfter(limit).Seconds())))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
