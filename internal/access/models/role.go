package models

import (
	"fmt"

	dErrors "custody/pkg/domain-errors"
)

// Role names a capability held by accounts within one custodian's registry.
// Roles are fixed labels rather than hashed identifiers.
type Role string

const (
	// RoleAdmin administers every role, itself included.
	RoleAdmin Role = "ADMIN"
	// RoleOperator may release, recover and unlock.
	RoleOperator Role = "OPERATOR"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "Roles: unknown role "+s)
	}
	return r, nil
}

func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}

// AdminRole returns the role whose members may grant and revoke r.
func (r Role) AdminRole() Role {
	return RoleAdmin
}

// ErrMissingRole is the error every role-gated operation returns when the
// caller lacks role.
func ErrMissingRole(r Role) error {
	return dErrors.New(dErrors.CodeUnauthorized, fmt.Sprintf("Roles: caller does not have the %s role", r))
}
