package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody/internal/access/models"
	"custody/internal/access/service"
	"custody/internal/access/store"
	jwttoken "custody/internal/jwt_token"
	id "custody/pkg/domain"
)

type fixture struct {
	router http.Handler
	roles  *service.Service
	tokens *jwttoken.JWTService
	scope  id.CustodianID
	admin  id.AccountID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := jwttoken.NewJWTService("test-key", "custody", "custody-api")
	roles := service.New(store.NewInMemory())

	scope := id.NewCustodianID()
	admin := id.NewAccountID()
	require.NoError(t, roles.Bootstrap(context.Background(), scope, admin))

	r := chi.NewRouter()
	New(roles, logger, jwttoken.NewJWTServiceAdapter(tokens)).Register(r)
	return &fixture{router: r, roles: roles, tokens: tokens, scope: scope, admin: admin}
}

func (f *fixture) do(t *testing.T, caller id.AccountID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	token, err := f.tokens.GenerateAccessToken(caller, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) path(suffix string) string {
	return "/custodians/" + f.scope.String() + "/roles/OPERATOR" + suffix
}

func TestGrantAndQueryRole(t *testing.T) {
	f := newFixture(t)
	operator := id.NewAccountID()

	rec := f.do(t, f.admin, http.MethodPost, f.path("/grant"), AccountRequest{Account: operator.String()})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(t, f.admin, http.MethodGet, f.path("/members/"+operator.String()), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var has HasRoleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&has))
	assert.True(t, has.HasRole)

	rec = f.do(t, f.admin, http.MethodGet, f.path("/members"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var members MembersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&members))
	assert.Equal(t, []string{operator.String()}, members.Members)
}

func TestGrantRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	outsider := id.NewAccountID()

	rec := f.do(t, outsider, http.MethodPost, f.path("/grant"), AccountRequest{Account: outsider.String()})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body["error"])
	assert.Equal(t, "Roles: caller does not have the ADMIN role", body["error_description"])
}

func TestGrantRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"zero address", f.path("/grant"), AccountRequest{}},
		{"malformed account", f.path("/grant"), AccountRequest{Account: "not-a-uuid"}},
		{"unknown role", "/custodians/" + f.scope.String() + "/roles/AUDITOR/grant", AccountRequest{Account: f.admin.String()}},
		{"malformed custodian", "/custodians/nope/roles/OPERATOR/grant", AccountRequest{Account: f.admin.String()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, f.admin, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRevokeAndRenounce(t *testing.T) {
	f := newFixture(t)
	operator := id.NewAccountID()
	ctx := context.Background()

	rec := f.do(t, f.admin, http.MethodPost, f.path("/grant"), AccountRequest{Account: operator.String()})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, operator, http.MethodPost, f.path("/renounce"), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	ok, err := f.roles.HasRole(ctx, f.scope, models.RoleOperator, operator)
	require.NoError(t, err)
	assert.False(t, ok)

	rec = f.do(t, f.admin, http.MethodPost, f.path("/grant"), AccountRequest{Account: operator.String()})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, f.admin, http.MethodPost, f.path("/revoke"), AccountRequest{Account: operator.String()})
	require.Equal(t, http.StatusNoContent, rec.Code)
	ok, err = f.roles.HasRole(ctx, f.scope, models.RoleOperator, operator)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMissingTokenIsRejected(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, f.path("/members"), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
