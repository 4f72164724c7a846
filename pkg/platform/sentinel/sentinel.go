package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and ledgers return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: entity already exists
//   - ErrInsufficientBalance: a debit would take an account below zero
//   - ErrUnavailable: backend temporarily unavailable
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnavailable         = errors.New("unavailable")
)
