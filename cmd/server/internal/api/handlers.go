package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/auth"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/market"
	"github.com/Samane-mnejad/real-time-trading/pkg/models"
)

// Handler serves the REST side of the system: the session lifecycle
// routes and the token-guarded market data routes.
type Handler struct {
	sessions auth.Store
	feed     *market.Feed
	logger   *zap.Logger
}

func NewHandler(sessions auth.Store, feed *market.Feed, logger *zap.Logger) *Handler {
	return &Handler{sessions: sessions, feed: feed, logger: logger}
}

// Register attaches all REST routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("POST /api/auth/logout", h.logout)
	mux.HandleFunc("GET /api/auth/me", h.me)
	mux.HandleFunc("POST /api/auth/refresh", h.refresh)

	mux.Handle("GET /api/tickers", h.requireAuth(http.HandlerFunc(h.tickers)))
	mux.Handle("GET /api/prices", h.requireAuth(http.HandlerFunc(h.prices)))
	mux.Handle("GET /api/prices/{ticker}", h.requireAuth(http.HandlerFunc(h.price)))
	mux.Handle("GET /api/historical/{ticker}", h.requireAuth(http.HandlerFunc(h.historical)))

	mux.HandleFunc("GET /health", h.health)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Email and password are required"))
		return
	}

	identity, token, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		writeJSON(w, http.StatusBadRequest, errorBody("Email and password are required"))
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody(err.Error()))
	case err != nil:
		h.logger.Error("Login fault", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("Login failed"))
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": identity, "token": token})
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.sessions.Logout(r.Context(), token); err != nil {
			h.logger.Error("Logout fault", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorBody("Logout failed"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.verify(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": identity})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody("Authorization token required"))
		return
	}

	identity, fresh, ok, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		h.logger.Error("Token refresh fault", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("Token refresh failed"))
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("Invalid or expired token"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": identity, "token": fresh})
}

func (h *Handler) tickers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tickers": h.feed.Tickers()})
}

func (h *Handler) prices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]models.PricePoint{"prices": h.feed.AllPrices()})
}

func (h *Handler) price(w http.ResponseWriter, r *http.Request) {
	p, ok := h.feed.CurrentPrice(r.PathValue("ticker"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("Ticker not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.PricePoint{"price": p})
}

func (h *Handler) historical(w http.ResponseWriter, r *http.Request) {
	series := h.feed.HistoricalSeries(r.PathValue("ticker"))
	if len(series) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody("Historical data not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.HistoricalPrice{"historicalData": series})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAuth guards market routes behind a live bearer token.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.verify(w, r); !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// verify resolves the request's bearer token, writing the failure
// response itself when the token is missing, dead, or the store faults.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody("Authorization token required"))
		return models.Identity{}, false
	}

	identity, ok, err := h.sessions.Verify(r.Context(), token)
	if err != nil {
		h.logger.Error("Session verification fault", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("Authentication failed"))
		return models.Identity{}, false
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("Invalid or expired token"))
		return models.Identity{}, false
	}
	return identity, true
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
