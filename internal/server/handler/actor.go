package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// ActorService defines the ledger operations exposed per actor.
type ActorService interface {
	Login(ctx context.Context, actorID string) (domain.ClaimResult, error)
	Logout(ctx context.Context, actorID string) error
	Account(ctx context.Context, actorID string) (domain.Account, error)
	Deposit(ctx context.Context, actorID string, amount int64) error
}

// ActorHandler serves presence and balance endpoints.
type ActorHandler struct {
	ledger ActorService
	logger *slog.Logger
}

// NewActorHandler creates an ActorHandler.
func NewActorHandler(ledger ActorService, logger *slog.Logger) *ActorHandler {
	return &ActorHandler{
		ledger: ledger,
		logger: logHandler(logger, "actor"),
	}
}

// Login marks the actor online and hands over pending funds and items.
// POST /api/actors/{id}/presence
func (h *ActorHandler) Login(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.Login(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Logout marks the actor offline.
// DELETE /api/actors/{id}/presence
func (h *ActorHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Logout(r.Context(), pathParam(r, "id")); err != nil {
		writeDomainError(w, r, h.logger, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type balanceResponse struct {
	ActorID        string `json:"actor_id"`
	Balance        int64  `json:"balance"`
	PendingBalance int64  `json:"pending_balance"`
}

// Balance reports the spendable and pending balance.
// GET /api/actors/{id}/balance
func (h *ActorHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	acct, err := h.ledger.Account(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "balance", err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		ActorID:        id,
		Balance:        acct.Balance,
		PendingBalance: acct.PendingBalance,
	})
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

// Deposit funds an actor from outside the marketplace.
// POST /api/actors/{id}/deposits
func (h *ActorHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.ledger.Deposit(r.Context(), pathParam(r, "id"), req.Amount); err != nil {
		writeDomainError(w, r, h.logger, "deposit", err)
		return
	}
	h.Balance(w, r)
}
