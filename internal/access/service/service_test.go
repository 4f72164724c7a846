package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"custody/internal/access/models"
	"custody/internal/access/store"
	id "custody/pkg/domain"
	dErrors "custody/pkg/domain-errors"
	"custody/pkg/platform/audit"
	"custody/pkg/platform/audit/publishers/compliance"
	auditmemory "custody/pkg/platform/audit/store/memory"
	"custody/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store    *store.InMemory
	events   *auditmemory.InMemoryStore
	service  *Service
	scope    id.CustodianID
	admin    id.AccountID
	operator id.AccountID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.events = auditmemory.NewInMemoryStore()
	s.service = New(s.store, WithAuditPublisher(compliance.New(s.events)))
	s.scope = id.NewCustodianID()
	s.admin = id.NewAccountID()
	s.operator = id.NewAccountID()
	s.Require().NoError(s.service.Bootstrap(context.Background(), s.scope, s.admin))
}

func (s *ServiceSuite) as(caller id.AccountID) context.Context {
	return requestcontext.WithCaller(context.Background(), caller)
}

func (s *ServiceSuite) TestBootstrap() {
	s.Run("seeds the admin", func() {
		ok, err := s.service.HasRole(context.Background(), s.scope, models.RoleAdmin, s.admin)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("rejects the zero address", func() {
		err := s.service.Bootstrap(context.Background(), id.NewCustodianID(), id.AccountID{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestGrantRole() {
	s.Run("admin grants operator", func() {
		s.Require().NoError(s.service.GrantRole(s.as(s.admin), s.scope, models.RoleOperator, s.operator))

		ok, err := s.service.HasRole(context.Background(), s.scope, models.RoleOperator, s.operator)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("granting twice is a no-op", func() {
		before, err := s.events.ListBySubject(context.Background(), s.scope.String())
		s.Require().NoError(err)

		s.Require().NoError(s.service.GrantRole(s.as(s.admin), s.scope, models.RoleOperator, s.operator))

		members, err := s.service.Members(context.Background(), s.scope, models.RoleOperator)
		s.Require().NoError(err)
		s.Equal([]id.AccountID{s.operator}, members)

		after, err := s.events.ListBySubject(context.Background(), s.scope.String())
		s.Require().NoError(err)
		s.Len(after, len(before), "no event for an unchanged membership")
	})

	s.Run("non-admin is unauthorized", func() {
		err := s.service.GrantRole(s.as(s.operator), s.scope, models.RoleOperator, id.NewAccountID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("Roles: caller does not have the ADMIN role", err.Error())
	})

	s.Run("anonymous caller is unauthorized", func() {
		err := s.service.GrantRole(context.Background(), s.scope, models.RoleOperator, id.NewAccountID())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("admin of another custodian is unauthorized", func() {
		err := s.service.GrantRole(s.as(s.admin), id.NewCustodianID(), models.RoleOperator, s.operator)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("zero address is rejected", func() {
		err := s.service.GrantRole(s.as(s.admin), s.scope, models.RoleOperator, id.AccountID{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.Equal("Roles: account is the zero address", err.Error())
	})

	s.Run("unknown role is rejected", func() {
		err := s.service.GrantRole(s.as(s.admin), s.scope, models.Role("AUDITOR"), s.operator)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestRevokeAndRenounce() {
	s.Require().NoError(s.service.GrantRole(s.as(s.admin), s.scope, models.RoleOperator, s.operator))

	s.Run("non-admin cannot revoke", func() {
		err := s.service.RevokeRole(s.as(s.operator), s.scope, models.RoleOperator, s.operator)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("admin revokes", func() {
		s.Require().NoError(s.service.RevokeRole(s.as(s.admin), s.scope, models.RoleOperator, s.operator))
		ok, err := s.service.HasRole(context.Background(), s.scope, models.RoleOperator, s.operator)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("revoking a non-member is a no-op", func() {
		s.Require().NoError(s.service.RevokeRole(s.as(s.admin), s.scope, models.RoleOperator, s.operator))
	})

	s.Run("caller renounces its own role", func() {
		s.Require().NoError(s.service.GrantRole(s.as(s.admin), s.scope, models.RoleOperator, s.operator))
		s.Require().NoError(s.service.RenounceRole(s.as(s.operator), s.scope, models.RoleOperator))
		ok, err := s.service.HasRole(context.Background(), s.scope, models.RoleOperator, s.operator)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *ServiceSuite) TestRequireRole() {
	err := s.service.RequireRole(s.as(s.operator), s.scope, models.RoleOperator)
	s.Require().Error(err)
	s.Equal("Roles: caller does not have the OPERATOR role", err.Error())

	s.Require().NoError(s.service.GrantRole(s.as(s.admin), s.scope, models.RoleOperator, s.operator))
	s.NoError(s.service.RequireRole(s.as(s.operator), s.scope, models.RoleOperator))
}

func (s *ServiceSuite) TestRoleEventsAreAudited() {
	s.Require().NoError(s.service.GrantRole(s.as(s.admin), s.scope, models.RoleOperator, s.operator))
	s.Require().NoError(s.service.RevokeRole(s.as(s.admin), s.scope, models.RoleOperator, s.operator))

	events, err := s.events.ListBySubject(context.Background(), s.scope.String())
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal(string(audit.EventRoleGranted), events[0].Action)
	s.Equal(models.RoleAdmin.String(), events[0].Reason)
	s.Equal(string(audit.EventRoleGranted), events[1].Action)
	s.Equal(s.admin.String(), events[1].ActorID)
	s.Equal(s.operator.String(), events[1].Counterparty)
	s.Equal(string(audit.EventRoleRevoked), events[2].Action)
	s.Equal(audit.CategorySecurity, events[2].Category)
}
