package httpx

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-local-market/internal/auth"
	"github.com/ariefcatur/go-local-market/internal/market"
)

type ctxKey int

const principalKey ctxKey = iota

func principalFrom(ctx context.Context) auth.Principal {
	p, _ := ctx.Value(principalKey).(auth.Principal)
	return p
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
		return "", false
	}
	return strings.TrimSpace(tok), true
}

// requireAuth rejects requests without a bearer token (401) or with one that
// does not verify (403).
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, r, fmt.Errorf("access token required: %w", market.ErrUnauthorized))
			return
		}
		p, err := h.Tokens.Verify(raw)
		if err != nil {
			writeJSON(w, http.StatusForbidden, errorBody{Error: auth.ErrInvalidToken.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// RateLimiter is satisfied by *redisx.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, scope, client string) (bool, error)
}

// rateLimit limits requests per client address. Limiter errors let the
// request through.
func (h *Handler) rateLimit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if h.Limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := h.Limiter.Allow(r.Context(), scope, clientAddr(r))
			if err != nil {
				log.Printf("rate limit %s: %v", scope, err)
			} else if !ok {
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests, try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
