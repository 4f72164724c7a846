package handler

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "custody/internal/jwt_token"
	"custody/internal/ledger"
	id "custody/pkg/domain"
	"custody/pkg/testutil"
)

type fixture struct {
	router http.Handler
	tokens *jwttoken.JWTService
	ledger *ledger.InMemory
	issuer id.AccountID
	asset  id.AssetID
}

func newFixture(t *testing.T, issuer id.AccountID) *fixture {
	t.Helper()
	f := &fixture{
		tokens: jwttoken.NewJWTService("test-key", "custody", "custody-api"),
		ledger: ledger.NewInMemory(),
		issuer: issuer,
		asset:  id.NewAssetID(),
	}
	r := chi.NewRouter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	New(f.ledger, issuer, logger, jwttoken.NewJWTServiceAdapter(f.tokens)).Register(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, caller id.AccountID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	token, err := f.tokens.GenerateAccessToken(caller, time.Hour)
	require.NoError(t, err)
	return testutil.DoRequest(f.router, testutil.WithBearer(testutil.NewJSONRequest(t, method, path, body), token))
}

func (f *fixture) mintPath() string {
	return "/assets/" + f.asset.String() + "/mint"
}

func TestMintAndBalance(t *testing.T) {
	f := newFixture(t, id.NewAccountID())
	holder := id.NewAccountID()

	rec := f.do(t, f.issuer, http.MethodPost, f.mintPath(), MintRequest{Account: holder.String(), Amount: 1000})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(t, holder, http.MethodGet, "/assets/"+f.asset.String()+"/balances/"+holder.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := testutil.UnmarshalResponse[BalanceResponse](t, rec)
	assert.Equal(t, uint64(1000), got.Balance)
	assert.Equal(t, holder.String(), got.Account)
}

func TestMintIsIssuerOnly(t *testing.T) {
	t.Run("other caller", func(t *testing.T) {
		f := newFixture(t, id.NewAccountID())
		rec := f.do(t, id.NewAccountID(), http.MethodPost, f.mintPath(), MintRequest{Account: id.NewAccountID().String(), Amount: 1})
		testutil.AssertError(t, rec, http.StatusForbidden, "forbidden", "caller is not the asset issuer")
	})

	t.Run("no issuer configured", func(t *testing.T) {
		f := newFixture(t, id.AccountID{})
		rec := f.do(t, id.NewAccountID(), http.MethodPost, f.mintPath(), MintRequest{Account: id.NewAccountID().String(), Amount: 1})
		testutil.AssertError(t, rec, http.StatusForbidden, "forbidden", "caller is not the asset issuer")
	})
}

func TestMintRejectsBadInput(t *testing.T) {
	f := newFixture(t, id.NewAccountID())
	holder := id.NewAccountID()

	rec := f.do(t, f.issuer, http.MethodPost, f.mintPath(), MintRequest{Account: holder.String()})
	testutil.AssertError(t, rec, http.StatusBadRequest, "validation_error", "amount must be positive")

	rec = f.do(t, f.issuer, http.MethodPost, f.mintPath(), MintRequest{Account: "nope", Amount: 1})
	testutil.AssertError(t, rec, http.StatusBadRequest, "invalid_input", "invalid account id format")

	rec = f.do(t, f.issuer, http.MethodPost, "/assets/nope/mint", MintRequest{Account: holder.String(), Amount: 1})
	testutil.AssertError(t, rec, http.StatusBadRequest, "invalid_input", "invalid asset id format")

	require.NoError(t, f.ledger.Mint(context.Background(), f.asset, holder, math.MaxUint64))
	rec = f.do(t, f.issuer, http.MethodPost, f.mintPath(), MintRequest{Account: holder.String(), Amount: 1})
	testutil.AssertError(t, rec, http.StatusConflict, "conflict", "balance overflow")
}

func TestLedgerRequiresToken(t *testing.T) {
	f := newFixture(t, id.NewAccountID())
	req := httptest.NewRequest(http.MethodGet, "/assets/"+f.asset.String()+"/balances/"+id.NewAccountID().String(), nil)
	rec := testutil.DoRequest(f.router, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
