package models

import (
	"time"

	id "custody/pkg/domain"
)

// Config is the immutable configuration a custodian is deployed with.
type Config struct {
	Variant     Variant
	Asset       id.AssetID
	Beneficiary id.AccountID
	// Recovery receives swept remainders. Ignored by VariantProject.
	Recovery    id.AccountID
	ReleaseTime time.Time
	// ReleasePercent is the share of the live balance paid out by release.
	// VariantProject always pays out 100.
	ReleasePercent uint
}

// Custodian is the aggregate root for one vesting arrangement. It owns a
// custody account on the ledger; every amount it moves is read from that
// account's live balance at call time.
//
// Invariants:
//   - Configuration fields never change after construction
//   - Released moves false to true exactly once
//   - Disposition leaves Pending at most once, and only after Released
//   - When the remainder phase does not exist, Disposition stays Pending
type Custodian struct {
	ID             id.CustodianID `json:"id"`
	Account        id.AccountID   `json:"account"`
	Variant        Variant        `json:"variant"`
	Asset          id.AssetID     `json:"asset"`
	Beneficiary    id.AccountID   `json:"beneficiary"`
	Recovery       id.AccountID   `json:"recovery"`
	ReleaseTime    time.Time      `json:"release_time"`
	ReleasePercent uint           `json:"release_percent"`
	Deployer       id.AccountID   `json:"deployer"`

	Released    bool        `json:"released"`
	Disposition Disposition `json:"disposition"`
	// RecoveredAsset is the asset swept by recover, which need not be Asset.
	RecoveredAsset id.AssetID `json:"recovered_asset"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCustodian validates cfg in a fixed order and reports the first failed
// check.
func NewCustodian(custodianID id.CustodianID, account, deployer id.AccountID, cfg Config, now time.Time) (*Custodian, error) {
	if _, err := ParseVariant(string(cfg.Variant)); err != nil {
		return nil, err
	}
	v := cfg.Variant
	if v == VariantProject {
		cfg.Recovery = id.AccountID{}
		cfg.ReleasePercent = 100
	}

	if cfg.Asset.IsNil() {
		return nil, configurationError(v, ReasonInvalidToken)
	}
	if cfg.Beneficiary.IsNil() {
		return nil, configurationError(v, ReasonInvalidBeneficiary)
	}
	if v == VariantCrowdfunding && cfg.Recovery.IsNil() {
		return nil, configurationError(v, ReasonInvalidRecovery)
	}
	if !cfg.ReleaseTime.After(now) {
		return nil, configurationError(v, ReasonReleaseTimeInPast)
	}
	if cfg.ReleasePercent > 100 {
		return nil, configurationError(v, ReasonPercentTooHigh)
	}

	return &Custodian{
		ID:             custodianID,
		Account:        account,
		Variant:        v,
		Asset:          cfg.Asset,
		Beneficiary:    cfg.Beneficiary,
		Recovery:       cfg.Recovery,
		ReleaseTime:    cfg.ReleaseTime,
		ReleasePercent: cfg.ReleasePercent,
		Deployer:       deployer,
		Disposition:    DispositionPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Token returns the vesting asset.
func (c *Custodian) Token() id.AssetID {
	return c.Asset
}

func (c *Custodian) Recovered() bool {
	return c.Disposition == DispositionRecovered
}

func (c *Custodian) Unlocked() bool {
	return c.Disposition == DispositionUnlocked
}

// HasRemainderPhase reports whether recover and unlock can ever succeed.
func (c *Custodian) HasRemainderPhase() bool {
	return c.Variant == VariantCrowdfunding && c.ReleasePercent < 100
}

// CanRelease checks the time and flag preconditions of release. The balance
// precondition is checked separately with EnsureFunded once the live balance
// is known.
func (c *Custodian) CanRelease(now time.Time) error {
	if now.Before(c.ReleaseTime) {
		return stateError(c.Variant, ReasonNotYetMatured)
	}
	if c.Released {
		return stateError(c.Variant, ReasonAlreadyReleased)
	}
	return nil
}

// EnsureFunded rejects a release against an empty custody account.
func (c *Custodian) EnsureFunded(balance uint64) error {
	if balance == 0 {
		return stateError(c.Variant, ReasonNothingToRelease)
	}
	return nil
}

// Payout is floor(balance * ReleasePercent / 100), computed without
// overflowing for any balance.
func (c *Custodian) Payout(balance uint64) uint64 {
	p := uint64(c.ReleasePercent)
	return balance/100*p + balance%100*p/100
}

// ApplyRelease marks the custodian released. Call CanRelease first.
func (c *Custodian) ApplyRelease(now time.Time) {
	c.Released = true
	c.UpdatedAt = now
}

func (c *Custodian) CanRecover() error {
	if !c.Released {
		return stateError(c.Variant, ReasonNotYetReleased)
	}
	if !c.HasRemainderPhase() || c.Disposition != DispositionPending {
		return stateError(c.Variant, ReasonNothingToRecover)
	}
	return nil
}

// ApplyRecovery finalizes the remainder as recovered, whichever asset was
// swept. Call CanRecover first.
func (c *Custodian) ApplyRecovery(asset id.AssetID, now time.Time) {
	c.Disposition = DispositionRecovered
	c.RecoveredAsset = asset
	c.UpdatedAt = now
}

func (c *Custodian) CanUnlock() error {
	if !c.Released {
		return stateError(c.Variant, ReasonNotYetReleased)
	}
	if !c.HasRemainderPhase() || c.Disposition != DispositionPending {
		return stateError(c.Variant, ReasonNothingToUnlock)
	}
	return nil
}

// ApplyUnlock finalizes the remainder as unlocked. Call CanUnlock first.
func (c *Custodian) ApplyUnlock(now time.Time) {
	c.Disposition = DispositionUnlocked
	c.UpdatedAt = now
}

// Disbursement describes the funds one operation moved out of custody.
type Disbursement struct {
	Custodian *Custodian
	Asset     id.AssetID
	To        id.AccountID
	Amount    uint64
}
