package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-local-market/internal/auth"
	"github.com/ariefcatur/go-local-market/internal/market"
)

// NewRouter builds the base router. trustProxy enables RealIP, which takes the
// client address from X-Forwarded-For; only set it behind a proxy that
// overwrites that header, since the auth rate limit keys on the address.
func NewRouter(trustProxy bool) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v before writing the status, so an unencodable value
// becomes a 500 instead of a truncated 2xx.
func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("encode response: %v", err)
		code = http.StatusInternalServerError
		b, _ = json.Marshal(errorBody{Error: "internal server error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(b, '\n'))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, market.ErrForbidden), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusForbidden
	case errors.Is(err, market.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrInsufficientStock),
		errors.Is(err, market.ErrConflict),
		errors.Is(err, market.ErrInvalidTransition):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// with the request id and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		log.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
		msg = "internal server error"
	}
	writeJSON(w, code, errorBody{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return market.Invalid("invalid json")
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, market.Invalid("invalid %s", name)
	}
	return id, nil
}
