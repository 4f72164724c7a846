package domain

import (
	"github.com/google/uuid"

	dErrors "custody/pkg/domain-errors"
)

// Typed identifiers. The nil UUID is the zero address: it is never a valid
// holder of funds or roles and constructors reject it.
type (
	AccountID   uuid.UUID
	AssetID     uuid.UUID
	CustodianID uuid.UUID
)

// NewAccountID returns a random account identifier.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewAssetID returns a random asset identifier.
func NewAssetID() AssetID { return AssetID(uuid.New()) }

// NewCustodianID returns a random custodian identifier.
func NewCustodianID() CustodianID { return CustodianID(uuid.New()) }

func (a AccountID) String() string   { return uuid.UUID(a).String() }
func (a AssetID) String() string     { return uuid.UUID(a).String() }
func (c CustodianID) String() string { return uuid.UUID(c).String() }

func (a AccountID) IsNil() bool   { return uuid.UUID(a) == uuid.Nil }
func (a AssetID) IsNil() bool     { return uuid.UUID(a) == uuid.Nil }
func (c CustodianID) IsNil() bool { return uuid.UUID(c) == uuid.Nil }

// ParseAccountID parses a non-nil account identifier from external input.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account id")
	return AccountID(u), err
}

// ParseAssetID parses a non-nil asset identifier from external input.
func ParseAssetID(s string) (AssetID, error) {
	u, err := parseUUID(s, "asset id")
	return AssetID(u), err
}

// ParseCustodianID parses a non-nil custodian identifier from external input.
func ParseCustodianID(s string) (CustodianID, error) {
	u, err := parseUUID(s, "custodian id")
	return CustodianID(u), err
}

// ParseAddress parses an identifier that may legitimately be the zero
// address. Empty input maps to the nil UUID so that domain constructors, not
// the parser, decide whether a zero address is acceptable.
func ParseAddress(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid address format")
	}
	return u, nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
