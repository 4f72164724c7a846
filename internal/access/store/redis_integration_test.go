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

type RedisRoleStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *Redis
	ctx   context.Context
}

func TestRedisRoleStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisRoleStoreSuite))
}

func (s *RedisRoleStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedis(s.redis.Client, "test:roles")
	s.ctx = context.Background()
}

func (s *RedisRoleStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisRoleStoreSuite) TestAddContainsRemove() {
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

	members, err := s.store.Members(s.ctx, scope, models.RoleOperator)
	s.Require().NoError(err)
	s.Equal([]id.AccountID{account}, members)

	removed, err := s.store.Remove(s.ctx, scope, models.RoleOperator, account)
	s.Require().NoError(err)
	s.True(removed)

	ok, err = s.store.Contains(s.ctx, scope, models.RoleOperator, account)
	s.Require().NoError(err)
	s.False(ok)
}
