// Package ledger is the fungible-asset ledger that custody accounts hold
// balances in. Amounts are whole base units.
package ledger

import (
	"errors"
	"math"
)

var (
	// ErrZeroAddress rejects transfers and mints to the nil account.
	ErrZeroAddress = errors.New("ledger: transfer to the zero address")
	// ErrOverflow rejects credits that would exceed the maximum balance.
	ErrOverflow = errors.New("ledger: balance overflow")
)

// MaxBalance is the largest balance any account may hold.
const MaxBalance uint64 = math.MaxUint64
