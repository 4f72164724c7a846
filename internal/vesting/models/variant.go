package models

import dErrors "custody/pkg/domain-errors"

// Variant selects the vesting scheme a custodian runs.
type Variant string

const (
	// VariantProject releases the whole balance in one step. There is no
	// recovery account and no remainder phase.
	VariantProject Variant = "project"
	// VariantCrowdfunding releases a percentage, then lets an operator either
	// sweep the remainder to the recovery account or unlock it to the
	// beneficiary.
	VariantCrowdfunding Variant = "crowdfunding"
)

var variantLabels = map[Variant]string{
	VariantProject:      "Project",
	VariantCrowdfunding: "Crowdfunding",
}

func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !v.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidConfiguration, "vesting: unknown variant "+s)
	}
	return v, nil
}

func (v Variant) IsValid() bool {
	_, ok := variantLabels[v]
	return ok
}

// Label prefixes every error message the variant produces.
func (v Variant) Label() string {
	return variantLabels[v]
}

func (v Variant) String() string {
	return string(v)
}

// Disposition records what happened to the remainder left after release.
// Recovered and Unlocked are terminal and mutually exclusive.
type Disposition string

const (
	DispositionPending   Disposition = "pending"
	DispositionRecovered Disposition = "recovered"
	DispositionUnlocked  Disposition = "unlocked"
)
