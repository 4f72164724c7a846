package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custody/internal/vesting/models"
	id "custody/pkg/domain"
	dErrors "custody/pkg/domain-errors"
	"custody/pkg/platform/httputil"
	authmw "custody/pkg/platform/middleware/auth"
	"custody/pkg/requestcontext"
)

// Service defines the custodian operations exposed over HTTP.
type Service interface {
	Deploy(ctx context.Context, cfg models.Config) (*models.Custodian, error)
	Get(ctx context.Context, custodianID id.CustodianID) (*models.Custodian, error)
	Balance(ctx context.Context, custodianID id.CustodianID) (uint64, error)
	Fund(ctx context.Context, custodianID id.CustodianID, amount uint64) error
	Release(ctx context.Context, custodianID id.CustodianID) (*models.Disbursement, error)
	Recover(ctx context.Context, custodianID id.CustodianID, asset id.AssetID) (*models.Disbursement, error)
	Unlock(ctx context.Context, custodianID id.CustodianID) (*models.Disbursement, error)
}

// Handler handles custodian endpoints.
type Handler struct {
	logger       *slog.Logger
	vesting      Service
	jwtValidator authmw.JWTValidator
}

func New(vesting Service, logger *slog.Logger, jwtValidator authmw.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		vesting:      vesting,
		jwtValidator: jwtValidator,
	}
}

// Register registers the custodian routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/custodians", h.handleDeploy)
		r.Get("/custodians/{id}", h.handleGet)
		r.Get("/custodians/{id}/balance", h.handleBalance)
		r.Post("/custodians/{id}/fund", h.handleFund)
		r.Post("/custodians/{id}/release", h.handleRelease)
		r.Post("/custodians/{id}/recover", h.handleRecover)
		r.Post("/custodians/{id}/unlock", h.handleUnlock)
	})
}

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid deploy request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	cfg, err := req.ToConfig()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.vesting.Deploy(ctx, cfg)
	if err != nil {
		h.writeServiceError(ctx, w, "deploy", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCustodianResponse(c))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	custodianID, ok := parseCustodianID(w, r)
	if !ok {
		return
	}
	c, err := h.vesting.Get(ctx, custodianID)
	if err != nil {
		h.writeServiceError(ctx, w, "get", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCustodianResponse(c))
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	custodianID, ok := parseCustodianID(w, r)
	if !ok {
		return
	}
	c, err := h.vesting.Get(ctx, custodianID)
	if err != nil {
		h.writeServiceError(ctx, w, "balance", err)
		return
	}
	balance, err := h.vesting.Balance(ctx, custodianID)
	if err != nil {
		h.writeServiceError(ctx, w, "balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{
		Token:   c.Token().String(),
		Account: c.Account.String(),
		Balance: balance,
	})
}

func (h *Handler) handleFund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	custodianID, ok := parseCustodianID(w, r)
	if !ok {
		return
	}
	var req FundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.vesting.Fund(ctx, custodianID, req.Amount); err != nil {
		h.writeServiceError(ctx, w, "fund", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	custodianID, ok := parseCustodianID(w, r)
	if !ok {
		return
	}
	out, err := h.vesting.Release(ctx, custodianID)
	if err != nil {
		h.writeServiceError(ctx, w, "release", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDisbursementResponse(out))
}

func (h *Handler) handleRecover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	custodianID, ok := parseCustodianID(w, r)
	if !ok {
		return
	}
	// The body is optional.
	var req RecoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	asset, err := id.ParseAddress(req.Asset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.vesting.Recover(ctx, custodianID, id.AssetID(asset))
	if err != nil {
		h.writeServiceError(ctx, w, "recover", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDisbursementResponse(out))
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	custodianID, ok := parseCustodianID(w, r)
	if !ok {
		return
	}
	out, err := h.vesting.Unlock(ctx, custodianID)
	if err != nil {
		h.writeServiceError(ctx, w, "unlock", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDisbursementResponse(out))
}

func parseCustodianID(w http.ResponseWriter, r *http.Request) (id.CustodianID, bool) {
	custodianID, err := id.ParseCustodianID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.CustodianID{}, false
	}
	return custodianID, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "custodian operation failed",
			"op", op,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.InfoContext(ctx, "custodian operation rejected",
			"op", op,
			"reason", string(models.ReasonOf(err)),
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
