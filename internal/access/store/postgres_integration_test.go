//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"custody/internal/access/models"
	id "custody/pkg/domain"
	"custody/pkg/testutil/containers"
)

type PostgresRoleStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
	ctx   context.Context
}

func TestPostgresRoleStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresRoleStoreSuite))
}

func (s *PostgresRoleStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresRoleStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))
}

func (s *PostgresRoleStoreSuite) TestAddContainsRemove() {
	scope := id.NewCustodianID()
	account := id.NewAccountID()

	added, err := s.store.Add(s.ctx, scope, models.RoleOperator, account)
	s.Require().NoError(err)
	s.True(added)

	added, err = s.store.Add(s.ctx, scope, models.RoleOperator, account)
	s.Require().NoError(err)
	s.False(added, "second add is a no-op")

	ok, err := s.store.Contains(s.ctx, scope, models.RoleOperator, account)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Contains(s.ctx, scope, models.RoleAdmin, account)
	s.Require().NoError(err)
	s.False(ok, "roles are independent")

	ok, err = s.store.Contains(s.ctx, id.NewCustodianID(), models.RoleOperator, account)
	s.Require().NoError(err)
	s.False(ok, "custodians are independent")

	removed, err := s.store.Remove(s.ctx, scope, models.RoleOperator, account)
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.store.Remove(s.ctx, scope, models.RoleOperator, account)
	s.Require().NoError(err)
	s.False(removed)
}

func (s *PostgresRoleStoreSuite) TestMembers() {
	scope := id.NewCustodianID()
	a, b := id.NewAccountID(), id.NewAccountID()
	for _, account := range []id.AccountID{a, b} {
		_, err := s.store.Add(s.ctx, scope, models.RoleOperator, account)
		s.Require().NoError(err)
	}

	members, err := s.store.Members(s.ctx, scope, models.RoleOperator)
	s.Require().NoError(err)
	s.ElementsMatch([]id.AccountID{a, b}, members)
}
