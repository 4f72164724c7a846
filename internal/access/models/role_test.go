package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "custody/pkg/domain-errors"
)

func TestParseRole(t *testing.T) {
	t.Run("accepts known labels", func(t *testing.T) {
		r, err := ParseRole("OPERATOR")
		require.NoError(t, err)
		assert.Equal(t, RoleOperator, r)
	})

	t.Run("labels are case sensitive", func(t *testing.T) {
		_, err := ParseRole("operator")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestErrMissingRole(t *testing.T) {
	err := ErrMissingRole(RoleOperator)
	assert.EqualError(t, err, "Roles: caller does not have the OPERATOR role")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, RoleAdmin, RoleOperator.AdminRole())
	assert.Equal(t, RoleAdmin, RoleAdmin.AdminRole())
}
