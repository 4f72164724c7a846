package service

import (
	"context"
	"log/slog"

	"custody/internal/access/models"
	id "custody/pkg/domain"
	dErrors "custody/pkg/domain-errors"
	"custody/pkg/platform/audit"
	"custody/pkg/requestcontext"
)

// Store persists role membership per custodian scope.
type Store interface {
	Add(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error)
	Remove(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error)
	Contains(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error)
	Members(ctx context.Context, scope id.CustodianID, role models.Role) ([]id.AccountID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the role registry. Every custodian has its own scope.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap seeds admin as the first ADMIN of scope. It bypasses the admin
// gate and is only called while deploying a custodian.
func (s *Service) Bootstrap(ctx context.Context, scope id.CustodianID, admin id.AccountID) error {
	if admin.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "Roles: account is the zero address")
	}
	if _, err := s.store.Add(ctx, scope, models.RoleAdmin, admin); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed admin role")
	}
	s.logAudit(ctx, audit.EventRoleGranted, scope, models.RoleAdmin, admin)
	return nil
}

// HasRole reports whether account holds role in scope. It has no side effects.
func (s *Service) HasRole(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error) {
	if !role.IsValid() {
		return false, nil
	}
	ok, err := s.store.Contains(ctx, scope, role, account)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check role")
	}
	return ok, nil
}

// RequireRole fails with Unauthorized unless the caller in ctx holds role.
func (s *Service) RequireRole(ctx context.Context, scope id.CustodianID, role models.Role) error {
	ok, err := s.HasRole(ctx, scope, role, requestcontext.Caller(ctx))
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrMissingRole(role)
	}
	return nil
}

// GrantRole adds account to role. The caller must hold the role's admin role.
// Granting an existing member is a no-op.
func (s *Service) GrantRole(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) error {
	if err := s.checkAdmin(ctx, scope, role, account); err != nil {
		return err
	}
	added, err := s.store.Add(ctx, scope, role, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant role")
	}
	if added {
		s.logAudit(ctx, audit.EventRoleGranted, scope, role, account)
	}
	return nil
}

// RevokeRole removes account from role under the same admin gate as GrantRole.
func (s *Service) RevokeRole(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) error {
	if err := s.checkAdmin(ctx, scope, role, account); err != nil {
		return err
	}
	removed, err := s.store.Remove(ctx, scope, role, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke role")
	}
	if removed {
		s.logAudit(ctx, audit.EventRoleRevoked, scope, role, account)
	}
	return nil
}

// RenounceRole drops the caller's own membership of role.
func (s *Service) RenounceRole(ctx context.Context, scope id.CustodianID, role models.Role) error {
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeBadRequest, "Roles: unknown role "+string(role))
	}
	caller := requestcontext.Caller(ctx)
	removed, err := s.store.Remove(ctx, scope, role, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to renounce role")
	}
	if removed {
		s.logAudit(ctx, audit.EventRoleRenounced, scope, role, caller)
	}
	return nil
}

// Members lists the accounts holding role in scope.
func (s *Service) Members(ctx context.Context, scope id.CustodianID, role models.Role) ([]id.AccountID, error) {
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Roles: unknown role "+string(role))
	}
	members, err := s.store.Members(ctx, scope, role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list role members")
	}
	return members, nil
}

func (s *Service) checkAdmin(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) error {
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeBadRequest, "Roles: unknown role "+string(role))
	}
	if err := s.RequireRole(ctx, scope, role.AdminRole()); err != nil {
		return err
	}
	if account.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "Roles: account is the zero address")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, scope id.CustodianID, role models.Role, account id.AccountID) {
	actor := requestcontext.Caller(ctx)
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"custodian_id", scope.String(),
			"role", role.String(),
			"account_id", account.String(),
			"actor_id", actor.String(),
			"request_id", requestID,
			"event", string(event),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Subject:      scope.String(),
		Action:       string(event),
		ActorID:      actor.String(),
		Counterparty: account.String(),
		Reason:       role.String(),
		RequestID:    requestID,
	})
}
