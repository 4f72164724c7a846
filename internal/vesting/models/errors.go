package models

import (
	"errors"

	dErrors "custody/pkg/domain-errors"
)

// Reason names the rule a vesting operation broke.
type Reason string

const (
	ReasonInvalidToken       Reason = "invalid_token"
	ReasonInvalidBeneficiary Reason = "invalid_beneficiary"
	ReasonInvalidRecovery    Reason = "invalid_recovery"
	ReasonReleaseTimeInPast  Reason = "release_time_in_past"
	ReasonPercentTooHigh     Reason = "percent_too_high"

	ReasonNotYetMatured    Reason = "not_yet_matured"
	ReasonAlreadyReleased  Reason = "already_released"
	ReasonNothingToRelease Reason = "nothing_to_release"
	ReasonNotYetReleased   Reason = "not_yet_released"
	ReasonNothingToRecover Reason = "nothing_to_recover"
	ReasonNothingToUnlock  Reason = "nothing_to_unlock"
)

var reasonTexts = map[Reason]string{
	ReasonInvalidToken:       "token is the zero address",
	ReasonInvalidBeneficiary: "beneficiary is the zero address",
	ReasonInvalidRecovery:    "recovery is the zero address",
	ReasonReleaseTimeInPast:  "release time is before current time",
	ReasonPercentTooHigh:     "release percent is more than 100",

	ReasonNotYetMatured:    "current time is before release time",
	ReasonAlreadyReleased:  "already released",
	ReasonNothingToRelease: "no tokens to release",
	ReasonNotYetReleased:   "not already released",
	ReasonNothingToRecover: "no tokens to recover",
	ReasonNothingToUnlock:  "no tokens to unlock",
}

// VestingError is a rejected construction or transition. Its message is
// "<Label>: <text>" and it unwraps to a coded domain error so transports map
// it like any other.
type VestingError struct {
	Reason Reason
	coded  *dErrors.Error
}

func (e *VestingError) Error() string {
	return e.coded.Message
}

func (e *VestingError) Unwrap() error {
	return e.coded
}

func newVestingError(v Variant, code dErrors.Code, reason Reason) error {
	return &VestingError{
		Reason: reason,
		coded:  &dErrors.Error{Code: code, Message: v.Label() + ": " + reasonTexts[reason]},
	}
}

func configurationError(v Variant, reason Reason) error {
	return newVestingError(v, dErrors.CodeInvalidConfiguration, reason)
}

func stateError(v Variant, reason Reason) error {
	return newVestingError(v, dErrors.CodeInvalidState, reason)
}

// ReasonOf returns the vesting rule err reports, or "" when err is not a
// vesting rejection.
func ReasonOf(err error) Reason {
	var ve *VestingError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}
