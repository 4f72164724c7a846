package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custody/internal/access/models"
	id "custody/pkg/domain"
	dErrors "custody/pkg/domain-errors"
	"custody/pkg/platform/httputil"
	authmw "custody/pkg/platform/middleware/auth"
	"custody/pkg/requestcontext"
)

// Service defines the role registry operations exposed over HTTP.
type Service interface {
	HasRole(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error)
	GrantRole(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) error
	RevokeRole(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) error
	RenounceRole(ctx context.Context, scope id.CustodianID, role models.Role) error
	Members(ctx context.Context, scope id.CustodianID, role models.Role) ([]id.AccountID, error)
}

type Handler struct {
	logger       *slog.Logger
	roles        Service
	jwtValidator authmw.JWTValidator
}

func New(roles Service, logger *slog.Logger, jwtValidator authmw.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		roles:        roles,
		jwtValidator: jwtValidator,
	}
}

// Register registers the role routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/custodians/{id}/roles/{role}/grant", h.handleGrant)
		r.Post("/custodians/{id}/roles/{role}/revoke", h.handleRevoke)
		r.Post("/custodians/{id}/roles/{role}/renounce", h.handleRenounce)
		r.Get("/custodians/{id}/roles/{role}/members", h.handleMembers)
		r.Get("/custodians/{id}/roles/{role}/members/{account}", h.handleHasRole)
	})
}

type AccountRequest struct {
	Account string `json:"account"`
}

type HasRoleResponse struct {
	Role    string `json:"role"`
	Account string `json:"account"`
	HasRole bool   `json:"has_role"`
}

type MembersResponse struct {
	Role    string   `json:"role"`
	Members []string `json:"members"`
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	h.handleMembership(w, r, h.roles.GrantRole)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.handleMembership(w, r, h.roles.RevokeRole)
}

func (h *Handler) handleMembership(w http.ResponseWriter, r *http.Request,
	op func(context.Context, id.CustodianID, models.Role, id.AccountID) error) {
	ctx := r.Context()
	scope, role, ok := h.parseScope(w, r)
	if !ok {
		return
	}

	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	// The zero address is a well-formed input that the registry itself rejects.
	account, err := id.ParseAddress(req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := op(ctx, scope, role, id.AccountID(account)); err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRenounce(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, role, ok := h.parseScope(w, r)
	if !ok {
		return
	}
	if err := h.roles.RenounceRole(ctx, scope, role); err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, role, ok := h.parseScope(w, r)
	if !ok {
		return
	}
	members, err := h.roles.Members(ctx, scope, role)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	resp := MembersResponse{Role: role.String(), Members: make([]string, 0, len(members))}
	for _, m := range members {
		resp.Members = append(resp.Members, m.String())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHasRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, role, ok := h.parseScope(w, r)
	if !ok {
		return
	}
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	has, err := h.roles.HasRole(ctx, scope, role, account)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HasRoleResponse{
		Role:    role.String(),
		Account: account.String(),
		HasRole: has,
	})
}

func (h *Handler) parseScope(w http.ResponseWriter, r *http.Request) (id.CustodianID, models.Role, bool) {
	scope, err := id.ParseCustodianID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.CustodianID{}, "", false
	}
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.CustodianID{}, "", false
	}
	return scope, role, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "role operation failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
