// Package handler exposes the asset ledger: balance queries for anyone
// authenticated and minting for the configured issuer account.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custody/internal/ledger"
	id "custody/pkg/domain"
	dErrors "custody/pkg/domain-errors"
	"custody/pkg/platform/httputil"
	authmw "custody/pkg/platform/middleware/auth"
	"custody/pkg/requestcontext"
)

type Ledger interface {
	Mint(ctx context.Context, asset id.AssetID, account id.AccountID, amount uint64) error
	BalanceOf(ctx context.Context, asset id.AssetID, account id.AccountID) (uint64, error)
}

type Handler struct {
	logger       *slog.Logger
	ledger       Ledger
	issuer       id.AccountID
	jwtValidator authmw.JWTValidator
}

// New builds the handler. A nil issuer disables minting.
func New(l Ledger, issuer id.AccountID, logger *slog.Logger, jwtValidator authmw.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		ledger:       l,
		issuer:       issuer,
		jwtValidator: jwtValidator,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		r.Get("/assets/{asset}/balances/{account}", h.handleBalance)
		r.Post("/assets/{asset}/mint", h.handleMint)
	})
}

type MintRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type BalanceResponse struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asset, err := id.ParseAssetID(chi.URLParam(r, "asset"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	balance, err := h.ledger.BalanceOf(ctx, asset, account)
	if err != nil {
		h.writeLedgerError(ctx, w, "balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{
		Asset:   asset.String(),
		Account: account.String(),
		Balance: balance,
	})
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)
	if h.issuer.IsNil() || caller != h.issuer {
		h.logger.WarnContext(ctx, "mint rejected",
			"caller", caller.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "caller is not the asset issuer"))
		return
	}

	asset, err := id.ParseAssetID(chi.URLParam(r, "asset"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Amount == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "amount must be positive"))
		return
	}
	account, err := id.ParseAccountID(req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.ledger.Mint(ctx, asset, account, req.Amount); err != nil {
		h.writeLedgerError(ctx, w, "mint", err)
		return
	}
	h.logger.InfoContext(ctx, "asset minted",
		"event", "asset_minted",
		"log_type", "audit",
		"asset", asset.String(),
		"account", account.String(),
		"amount", req.Amount,
		"request_id", requestcontext.RequestID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeLedgerError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrOverflow):
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "balance overflow"))
	case errors.Is(err, ledger.ErrZeroAddress):
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "account is the zero address"))
	default:
		h.logger.ErrorContext(ctx, "ledger operation failed",
			"op", op,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "ledger operation failed"))
	}
}
