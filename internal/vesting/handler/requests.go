package handler

import (
	"time"

	"custody/internal/vesting/models"
	id "custody/pkg/domain"
	dErrors "custody/pkg/domain-errors"
)

// DeployRequest configures a new custodian. Addresses may be empty or the
// nil UUID; the custodian itself rejects them with its own messages.
type DeployRequest struct {
	Variant        string    `json:"variant"`
	Asset          string    `json:"asset"`
	Beneficiary    string    `json:"beneficiary"`
	Recovery       string    `json:"recovery"`
	ReleaseTime    time.Time `json:"release_time"`
	ReleasePercent *uint     `json:"release_percent"`
}

// ToConfig converts the request. An omitted variant means crowdfunding and
// an omitted percent means 100.
func (r DeployRequest) ToConfig() (models.Config, error) {
	variant := models.VariantCrowdfunding
	if r.Variant != "" {
		v, err := models.ParseVariant(r.Variant)
		if err != nil {
			return models.Config{}, err
		}
		variant = v
	}
	asset, err := id.ParseAddress(r.Asset)
	if err != nil {
		return models.Config{}, err
	}
	beneficiary, err := id.ParseAddress(r.Beneficiary)
	if err != nil {
		return models.Config{}, err
	}
	recovery, err := id.ParseAddress(r.Recovery)
	if err != nil {
		return models.Config{}, err
	}
	percent := uint(100)
	if r.ReleasePercent != nil {
		percent = *r.ReleasePercent
	}
	return models.Config{
		Variant:        variant,
		Asset:          id.AssetID(asset),
		Beneficiary:    id.AccountID(beneficiary),
		Recovery:       id.AccountID(recovery),
		ReleaseTime:    r.ReleaseTime,
		ReleasePercent: percent,
	}, nil
}

type FundRequest struct {
	Amount uint64 `json:"amount"`
}

func (r FundRequest) Validate() error {
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

// RecoverRequest names the asset to sweep. Empty means the vesting asset.
type RecoverRequest struct {
	Asset string `json:"asset"`
}
