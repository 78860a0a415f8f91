package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	wsadapter "drinktab/adapters/websocket"
	"drinktab/analytics"
	"drinktab/core"
	"drinktab/engine"
	"drinktab/leaderboard"
	"drinktab/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// RateLimitIdle is how long an unused client limiter is kept (default 3m).
	RateLimitIdle time.Duration
	// Leaderboard backs GET /leaderboard when set.
	Leaderboard *leaderboard.Purchases
	// LeaderboardSize caps the entries returned by GET /leaderboard.
	LeaderboardSize int
	// Tally adds holder counts to GET /badges when set.
	Tally *analytics.BadgeTally
	Logger *slog.Logger
}

type api struct {
	svc   *engine.TabService
	opts  Options
	log   *slog.Logger
	valid *requestValidator
}

// NewMux builds an http.Handler exposing the tab REST API and WebSocket stream.
// Routes:
//   - GET  {prefix}/healthz
//   - POST {prefix}/users                    {"id","name"}
//   - GET  {prefix}/users
//   - GET  {prefix}/users/{id}
//   - GET  {prefix}/users/{id}/transactions
//   - POST {prefix}/users/{id}/purchases     {"item"}
//   - POST {prefix}/users/{id}/deposits      {"amount"}
//   - POST {prefix}/users/{id}/evaluate
//   - GET  {prefix}/users/{id}/stats?from=&to=
//   - GET  {prefix}/items
//   - PUT  {prefix}/items/{id}               {"name","price","stock","category"}
//   - POST {prefix}/items/{id}/restock       {"delta"}
//   - GET  {prefix}/badges
//   - GET  {prefix}/leaderboard?n=
//   - WS   {prefix}/ws?user=
func NewMux(svc *engine.TabService, hub *realtime.Hub, opts Options) http.Handler {
	a := &api{svc: svc, opts: opts, log: opts.Logger, valid: newRequestValidator()}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.opts.LeaderboardSize <= 0 {
		a.opts.LeaderboardSize = 10
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if opts.AllowCORSOrigin != "" {
		r.Use(withCORS(opts.AllowCORSOrigin))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		r.Use(withRateLimit(opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitIdle))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	routes := func(r chi.Router) {
		r.Get("/healthz", a.healthCheck)
		r.Group(func(r chi.Router) {
			if len(opts.APIKeys) > 0 {
				r.Use(withAPIKeyAuth(opts.APIKeys))
			}
			if hub != nil {
				r.Handle("/ws", wsadapter.Handler(hub))
			}
			r.Route("/users", func(r chi.Router) {
				r.Post("/", a.createUser)
				r.Get("/", a.listUsers)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", a.getUser)
					r.Get("/transactions", a.transactions)
					r.Post("/purchases", a.purchase)
					r.Post("/deposits", a.deposit)
					r.Post("/evaluate", a.evaluate)
					r.Get("/stats", a.stats)
				})
			})
			r.Get("/items", a.listItems)
			r.Put("/items/{id}", a.putItem)
			r.Post("/items/{id}/restock", a.restock)
			r.Get("/badges", a.badges)
			r.Get("/leaderboard", a.leaderboard)
		})
	}
	if prefix := strings.TrimRight(opts.PathPrefix, "/"); prefix != "" {
		r.Route(prefix, routes)
	} else {
		routes(r)
	}
	return r
}

// healthCheck verifies the storage answers within a short deadline.
func (a *api) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}
	if _, err := a.svc.ListItems(ctx); err != nil {
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
		writeJSONStatus(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSONStatus(w, status, apiError{Code: code, Message: msg, Details: details})
}

// writeDomainError maps service errors onto HTTP statuses.
func (a *api) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownUser), errors.Is(err, core.ErrUnknownItem):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, core.ErrUserExists):
		writeError(w, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, core.ErrOutOfStock):
		writeError(w, http.StatusConflict, "out_of_stock", err.Error(), nil)
	case errors.Is(err, core.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error(), nil)
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	default:
		a.log.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}
