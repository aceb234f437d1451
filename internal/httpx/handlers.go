package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-local-market/internal/auth"
	"github.com/ariefcatur/go-local-market/internal/inventory"
	"github.com/ariefcatur/go-local-market/internal/market"
)

type Handler struct {
	Market  *inventory.Service
	Auth    *auth.Service
	Tokens  *auth.Tokens
	Limiter RateLimiter // nil disables auth rate limiting
}

func (h *Handler) Register(r *chi.Mux) {
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit("auth"))
			r.Post("/auth/register", h.register)
			r.Post("/auth/login", h.login)
		})

		r.Get("/products/search", h.searchProducts)
		r.Get("/products/shop/{shopId}", h.shopProducts)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Post("/products", h.createProduct)
			r.Patch("/products/{id}", h.updateProduct)
			r.Delete("/products/{id}", h.deleteProduct)

			r.Post("/bookings", h.createBooking)
			r.Get("/bookings/user/{userId}", h.userBookings)
			r.Get("/bookings/shop/{shopId}", h.shopBookings)
			r.Patch("/bookings/{id}", h.updateBooking)

			r.Get("/shops/owner/{ownerId}", h.ownerShops)
			r.Post("/shops", h.createShop)
			r.Get("/shops/{id}/stats", h.shopStats)
		})
	})
}

// ---- auth ----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req market.NewUser
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Auth.Register(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, r, market.Invalid("username and password are required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- products ----

func parseSearch(r *http.Request) (market.SearchQuery, error) {
	v := r.URL.Query()
	q := market.SearchQuery{Text: v.Get("q")}

	lat, lng := v.Get("lat"), v.Get("lng")
	if lat != "" || lng != "" {
		la, err1 := strconv.ParseFloat(lat, 64)
		ln, err2 := strconv.ParseFloat(lng, 64)
		if err1 != nil || err2 != nil {
			return q, market.Invalid("lat and lng must both be numbers")
		}
		q.Origin = &market.Point{Lat: la, Lng: ln}
	}
	if d := v.Get("distance"); d != "" {
		km, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return q, market.Invalid("distance must be a number")
		}
		q.MaxDistanceKm = &km
	}
	return q, nil
}

func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearch(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := h.Market.Search(ctx, q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) shopProducts(w http.ResponseWriter, r *http.Request) {
	shopID, err := idParam(r, "shopId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Market.ProductsByShop(ctx, shopID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req market.NewProduct
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Market.CreateProduct(ctx, principalFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req market.ProductUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Market.UpdateProduct(ctx, principalFrom(r.Context()), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Market.DeleteProduct(ctx, principalFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// ---- bookings ----

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req inventory.ReserveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, err := h.Market.Reserve(ctx, principalFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) userBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	bs, err := h.Market.BookingsByUser(ctx, principalFrom(r.Context()), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bs)
}

func (h *Handler) shopBookings(w http.ResponseWriter, r *http.Request) {
	shopID, err := idParam(r, "shopId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	bs, err := h.Market.BookingsByShop(ctx, principalFrom(r.Context()), shopID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bs)
}

func (h *Handler) updateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req market.BookingUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, err := h.Market.UpdateBooking(ctx, principalFrom(r.Context()), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ---- shops ----

func (h *Handler) ownerShops(w http.ResponseWriter, r *http.Request) {
	ownerID, err := idParam(r, "ownerId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	shops, err := h.Market.ShopsByOwner(ctx, principalFrom(r.Context()), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shops)
}

func (h *Handler) createShop(w http.ResponseWriter, r *http.Request) {
	var req market.NewShop
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sh, err := h.Market.CreateShop(ctx, principalFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

func (h *Handler) shopStats(w http.ResponseWriter, r *http.Request) {
	shopID, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	st, err := h.Market.ShopStats(ctx, principalFrom(r.Context()), shopID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
