//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custody/internal/vesting/models"
	id "custody/pkg/domain"
	"custody/pkg/platform/sentinel"
	"custody/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	c := newCustodian(s.T())

	s.Require().NoError(s.store.Create(s.ctx, c))
	s.Require().ErrorIs(s.store.Create(s.ctx, c), sentinel.ErrConflict)

	found, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, found.ID)
	s.Equal(c.Account, found.Account)
	s.Equal(c.Variant, found.Variant)
	s.Equal(c.Asset, found.Asset)
	s.Equal(c.Beneficiary, found.Beneficiary)
	s.Equal(c.Recovery, found.Recovery)
	s.Equal(c.ReleasePercent, found.ReleasePercent)
	s.Equal(c.Deployer, found.Deployer)
	s.WithinDuration(c.ReleaseTime, found.ReleaseTime, time.Microsecond)
	s.False(found.Released)
	s.Equal(models.DispositionPending, found.Disposition)
	s.True(found.RecoveredAsset.IsNil())
}

func (s *PostgresStoreSuite) TestUpdatePersistsState() {
	c := newCustodian(s.T())
	s.Require().NoError(s.store.Create(s.ctx, c))

	swept := id.NewAssetID()
	c.ApplyRelease(time.Now())
	c.ApplyRecovery(swept, time.Now())
	s.Require().NoError(s.store.Update(s.ctx, c))

	found, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.True(found.Released)
	s.True(found.Recovered())
	s.Equal(swept, found.RecoveredAsset)
}

func (s *PostgresStoreSuite) TestProjectHasNoRecovery() {
	now := time.Now()
	c, err := models.NewCustodian(id.NewCustodianID(), id.NewAccountID(), id.NewAccountID(), models.Config{
		Variant:     models.VariantProject,
		Asset:       id.NewAssetID(),
		Beneficiary: id.NewAccountID(),
		ReleaseTime: now.Add(time.Hour),
	}, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, c))

	found, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.True(found.Recovery.IsNil())
	s.Equal(uint(100), found.ReleasePercent)
}

func (s *PostgresStoreSuite) TestMissingCustodian() {
	_, err := s.store.FindByID(s.ctx, id.NewCustodianID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(s.ctx, newCustodian(s.T())), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBack() {
	c := newCustodian(s.T())
	err := s.store.RunInTx(s.ctx, c.ID, func(ctx context.Context) error {
		if err := s.store.Create(ctx, c); err != nil {
			return err
		}
		return sentinel.ErrConflict
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.FindByID(s.ctx, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
