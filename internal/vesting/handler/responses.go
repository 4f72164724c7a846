package handler

import (
	"time"

	"custody/internal/vesting/models"
)

type CustodianResponse struct {
	ID             string    `json:"id"`
	Account        string    `json:"account"`
	Variant        string    `json:"variant"`
	Token          string    `json:"token"`
	Beneficiary    string    `json:"beneficiary"`
	Recovery       string    `json:"recovery,omitempty"`
	ReleaseTime    time.Time `json:"release_time"`
	ReleasePercent uint      `json:"release_percent"`
	Released       bool      `json:"released"`
	Recovered      bool      `json:"recovered"`
	Unlocked       bool      `json:"unlocked"`
	Disposition    string    `json:"disposition"`
	RecoveredAsset string    `json:"recovered_asset,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toCustodianResponse(c *models.Custodian) CustodianResponse {
	resp := CustodianResponse{
		ID:             c.ID.String(),
		Account:        c.Account.String(),
		Variant:        c.Variant.String(),
		Token:          c.Token().String(),
		Beneficiary:    c.Beneficiary.String(),
		ReleaseTime:    c.ReleaseTime,
		ReleasePercent: c.ReleasePercent,
		Released:       c.Released,
		Recovered:      c.Recovered(),
		Unlocked:       c.Unlocked(),
		Disposition:    string(c.Disposition),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if !c.Recovery.IsNil() {
		resp.Recovery = c.Recovery.String()
	}
	if !c.RecoveredAsset.IsNil() {
		resp.RecoveredAsset = c.RecoveredAsset.String()
	}
	return resp
}

type BalanceResponse struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

type DisbursementResponse struct {
	Custodian CustodianResponse `json:"custodian"`
	Asset     string            `json:"asset"`
	To        string            `json:"to"`
	Amount    uint64            `json:"amount"`
}

func toDisbursementResponse(d *models.Disbursement) DisbursementResponse {
	return DisbursementResponse{
		Custodian: toCustodianResponse(d.Custodian),
		Asset:     d.Asset.String(),
		To:        d.To.String(),
		Amount:    d.Amount,
	}
}
