package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"drinktab/core"
)

type createUserRequest struct {
	ID   string `json:"id" validate:"required,max=64"`
	Name string `json:"name" validate:"max=128"`
}

type purchaseRequest struct {
	Item string `json:"item" validate:"required,max=64"`
}

type depositRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type putItemRequest struct {
	Name     string `json:"name" validate:"max=128"`
	Price    int64  `json:"price" validate:"required,gt=0"`
	Stock    int64  `json:"stock" validate:"gte=0"`
	Category string `json:"category" validate:"required,category"`
}

type restockRequest struct {
	Delta int64 `json:"delta" validate:"required,ne=0"`
}

type badgeInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Holders     *int   `json:"holders,omitempty"`
}

func userParam(r *http.Request) core.UserID { return core.UserID(chi.URLParam(r, "id")) }

func (a *api) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !a.decode(w, r, &req) {
		return
	}
	u, err := a.svc.CreateUser(r.Context(), core.UserID(req.ID), req.Name)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, u)
}

func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	ids, err := a.svc.ListUsers(r.Context())
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if ids == nil {
		ids = []core.UserID{}
	}
	writeJSON(w, map[string]any{"users": ids})
}

func (a *api) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.svc.GetUser(r.Context(), userParam(r))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, u)
}

func (a *api) transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := a.svc.Transactions(r.Context(), userParam(r))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, map[string]any{"transactions": txs})
}

func (a *api) purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !a.decode(w, r, &req) {
		return
	}
	receipt, err := a.svc.Purchase(r.Context(), userParam(r), core.ItemID(req.Item))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, receipt)
}

func (a *api) deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !a.decode(w, r, &req) {
		return
	}
	receipt, err := a.svc.Deposit(r.Context(), userParam(r), core.Money(req.Amount))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, receipt)
}

func (a *api) evaluate(w http.ResponseWriter, r *http.Request) {
	added, err := a.svc.EvaluateAchievements(r.Context(), userParam(r))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if added == nil {
		added = []core.Badge{}
	}
	writeJSON(w, map[string]any{"unlocked": added})
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	loc := a.svc.Location()
	from, err := parseBound(r.URL.Query().Get("from"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from", err.Error(), nil)
		return
	}
	to, err := parseBound(r.URL.Query().Get("to"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to", err.Error(), nil)
		return
	}
	summary, err := a.svc.Stats(r.Context(), userParam(r), from, to)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

// parseBound accepts RFC 3339 timestamps or plain dates (local midnight).
func parseBound(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, v, loc)
}

func (a *api) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.ListItems(r.Context())
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Item{}
	}
	writeJSON(w, map[string]any{"items": items})
}

func (a *api) putItem(w http.ResponseWriter, r *http.Request) {
	var req putItemRequest
	if !a.decode(w, r, &req) {
		return
	}
	item := core.Item{
		ID:       core.ItemID(chi.URLParam(r, "id")),
		Name:     req.Name,
		Price:    core.Money(req.Price),
		Stock:    req.Stock,
		Category: core.Category(req.Category),
	}
	if err := a.svc.PutItem(r.Context(), item); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if item.Name == "" {
		item.Name = string(item.ID)
	}
	writeJSON(w, item)
}

func (a *api) restock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if !a.decode(w, r, &req) {
		return
	}
	item, err := a.svc.Restock(r.Context(), core.ItemID(chi.URLParam(r, "id")), req.Delta)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, item)
}

func (a *api) badges(w http.ResponseWriter, _ *http.Request) {
	rules := a.svc.Rules()
	out := make([]badgeInfo, 0, len(rules))
	for _, rule := range rules {
		info := badgeInfo{ID: rule.ID, Name: rule.Name, Description: rule.Description}
		if a.opts.Tally != nil {
			n := a.opts.Tally.Holders(rule.ID)
			info.Holders = &n
		}
		out = append(out, info)
	}
	writeJSON(w, map[string]any{"badges": out})
}

func (a *api) leaderboard(w http.ResponseWriter, r *http.Request) {
	if a.opts.Leaderboard == nil {
		writeError(w, http.StatusNotFound, "not_found", "leaderboard disabled", nil)
		return
	}
	n := a.opts.LeaderboardSize
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_n", "n must be a positive integer", nil)
			return
		}
		n = min(parsed, a.opts.LeaderboardSize)
	}
	writeJSON(w, map[string]any{"entries": a.opts.Leaderboard.TopN(n)})
}
