package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accessmodels "custody/internal/access/models"
	"custody/internal/platform/telemetry"
	"custody/internal/vesting/metrics"
	"custody/internal/vesting/models"
	id "custody/pkg/domain"
	dErrors "custody/pkg/domain-errors"
	"custody/pkg/platform/audit"
	"custody/pkg/platform/sentinel"
	"custody/pkg/requestcontext"
)

// Ledger is the asset ledger custody accounts hold balances in.
type Ledger interface {
	BalanceOf(ctx context.Context, asset id.AssetID, account id.AccountID) (uint64, error)
	Transfer(ctx context.Context, asset id.AssetID, from, to id.AccountID, amount uint64) error
}

type Store interface {
	Create(ctx context.Context, c *models.Custodian) error
	FindByID(ctx context.Context, custodianID id.CustodianID) (*models.Custodian, error)
	Update(ctx context.Context, c *models.Custodian) error
}

// AccessRegistry answers role questions for a custodian's own registry.
type AccessRegistry interface {
	HasRole(ctx context.Context, scope id.CustodianID, role accessmodels.Role, account id.AccountID) (bool, error)
	Bootstrap(ctx context.Context, scope id.CustodianID, admin id.AccountID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the custodian state machine.
type Service struct {
	store          Store
	ledger         Ledger
	roles          AccessRegistry
	tx             CustodianTx
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher sets the publisher for vesting events. Movements of funds
// are audited fail-closed: a failed write aborts the operation.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx replaces the in-memory transaction with tx, typically the
// PostgreSQL store.
func WithTx(tx CustodianTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func New(store Store, ledger Ledger, roles AccessRegistry, opts ...Option) *Service {
	s := &Service{
		store:  store,
		ledger: ledger,
		roles:  roles,
		tracer: telemetry.Tracer("custody/vesting"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = newShardedCustodianTx()
	}
	return s
}

// Deploy constructs a custodian owned by the caller. The caller becomes the
// first ADMIN of the custodian's role registry.
func (s *Service) Deploy(ctx context.Context, cfg models.Config) (*models.Custodian, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.deploy")
	defer span.End()
	start := time.Now()

	deployer := requestcontext.Caller(ctx)
	if deployer.IsNil() {
		err := dErrors.New(dErrors.CodeUnauthorized, "deployer is not authenticated")
		s.finish(span, "deploy", start, err)
		return nil, err
	}

	c, err := models.NewCustodian(id.NewCustodianID(), id.NewAccountID(), deployer, cfg, requestcontext.Now(ctx))
	if err != nil {
		s.finish(span, "deploy", start, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("custodian.id", c.ID.String()))

	err = s.tx.RunInTx(ctx, c.ID, func(ctx context.Context) error {
		if err := s.store.Create(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create custodian")
		}
		if err := s.roles.Bootstrap(ctx, c.ID, deployer); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventCustodianDeployed, c, c.Asset, c.Beneficiary, 0)
	})
	s.finish(span, "deploy", start, err)
	if err != nil {
		return nil, err
	}

	s.metrics.IncDeployments()
	s.logAudit(ctx, audit.EventCustodianDeployed, c, c.Asset, c.Beneficiary, 0)
	return c, nil
}

// Get returns the custodian's configuration and state.
func (s *Service) Get(ctx context.Context, custodianID id.CustodianID) (*models.Custodian, error) {
	return s.load(ctx, custodianID)
}

// Balance returns the live balance of the vesting asset held in custody.
func (s *Service) Balance(ctx context.Context, custodianID id.CustodianID) (uint64, error) {
	c, err := s.load(ctx, custodianID)
	if err != nil {
		return 0, err
	}
	return s.balanceOf(ctx, c.Asset, c.Account)
}

// Fund moves amount of the vesting asset from the caller into custody.
// Deposits may arrive at any time; every later operation sees them.
func (s *Service) Fund(ctx context.Context, custodianID id.CustodianID, amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must be positive")
	}
	c, err := s.load(ctx, custodianID)
	if err != nil {
		return err
	}
	from := requestcontext.Caller(ctx)
	if from.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "funder is not authenticated")
	}
	err = s.tx.RunInTx(ctx, c.ID, func(ctx context.Context) error {
		if err := s.ledger.Transfer(ctx, c.Asset, from, c.Account, amount); err != nil {
			if errors.Is(err, sentinel.ErrInsufficientBalance) {
				return dErrors.New(dErrors.CodeBadRequest, "insufficient balance")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to fund custodian")
		}
		return s.emit(ctx, audit.EventCustodianFunded, c, c.Asset, c.Account, amount)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, audit.EventCustodianFunded, c, c.Asset, from, amount)
	return nil
}

// Release pays floor(balance * ReleasePercent / 100) of the live balance to
// the beneficiary. It succeeds at most once and only at or after ReleaseTime.
func (s *Service) Release(ctx context.Context, custodianID id.CustodianID) (*models.Disbursement, error) {
	ctx, span := s.startSpan(ctx, "vesting.release", custodianID)
	defer span.End()
	start := time.Now()

	var out *models.Disbursement
	err := s.tx.RunInTx(ctx, custodianID, func(ctx context.Context) error {
		c, err := s.loadForOperator(ctx, custodianID)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		if err := c.CanRelease(now); err != nil {
			return err
		}
		balance, err := s.balanceOf(ctx, c.Asset, c.Account)
		if err != nil {
			return err
		}
		if err := c.EnsureFunded(balance); err != nil {
			return err
		}

		payout := c.Payout(balance)
		if err := s.transfer(ctx, c.Asset, c.Account, c.Beneficiary, payout); err != nil {
			return err
		}
		c.ApplyRelease(now)
		if err := s.store.Update(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save custodian")
		}
		if err := s.emit(ctx, audit.EventVestingReleased, c, c.Asset, c.Beneficiary, payout); err != nil {
			return err
		}
		out = &models.Disbursement{Custodian: c, Asset: c.Asset, To: c.Beneficiary, Amount: payout}
		return nil
	})
	s.finish(span, "release", start, err)
	if err != nil {
		return nil, err
	}

	s.metrics.IncReleases()
	s.metrics.AddDisbursed("release", out.Amount)
	s.logAudit(ctx, audit.EventVestingReleased, out.Custodian, out.Asset, out.To, out.Amount)
	return out, nil
}

// Recover sweeps the whole custody balance of asset to the recovery account
// and finalizes the remainder. asset may differ from the vesting asset; a nil
// asset means the vesting asset.
func (s *Service) Recover(ctx context.Context, custodianID id.CustodianID, asset id.AssetID) (*models.Disbursement, error) {
	ctx, span := s.startSpan(ctx, "vesting.recover", custodianID)
	defer span.End()
	start := time.Now()

	var out *models.Disbursement
	err := s.tx.RunInTx(ctx, custodianID, func(ctx context.Context) error {
		c, err := s.loadForOperator(ctx, custodianID)
		if err != nil {
			return err
		}
		if err := c.CanRecover(); err != nil {
			return err
		}
		if asset.IsNil() {
			asset = c.Asset
		}
		if asset != c.Asset && s.logger != nil {
			s.logger.WarnContext(ctx, "recover sweeps a foreign asset and finalizes the vesting remainder",
				"custodian_id", c.ID.String(),
				"asset", asset.String(),
				"vesting_asset", c.Asset.String(),
			)
		}

		balance, err := s.balanceOf(ctx, asset, c.Account)
		if err != nil {
			return err
		}
		if err := s.transfer(ctx, asset, c.Account, c.Recovery, balance); err != nil {
			return err
		}
		c.ApplyRecovery(asset, requestcontext.Now(ctx))
		if err := s.store.Update(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save custodian")
		}
		if err := s.emit(ctx, audit.EventVestingRecovered, c, asset, c.Recovery, balance); err != nil {
			return err
		}
		out = &models.Disbursement{Custodian: c, Asset: asset, To: c.Recovery, Amount: balance}
		return nil
	})
	s.finish(span, "recover", start, err)
	if err != nil {
		return nil, err
	}

	s.metrics.IncDisposition(string(models.DispositionRecovered))
	s.metrics.AddDisbursed("recover", out.Amount)
	s.logAudit(ctx, audit.EventVestingRecovered, out.Custodian, out.Asset, out.To, out.Amount)
	return out, nil
}

// Unlock pays the whole remaining vesting balance to the beneficiary and
// finalizes the remainder.
func (s *Service) Unlock(ctx context.Context, custodianID id.CustodianID) (*models.Disbursement, error) {
	ctx, span := s.startSpan(ctx, "vesting.unlock", custodianID)
	defer span.End()
	start := time.Now()

	var out *models.Disbursement
	err := s.tx.RunInTx(ctx, custodianID, func(ctx context.Context) error {
		c, err := s.loadForOperator(ctx, custodianID)
		if err != nil {
			return err
		}
		if err := c.CanUnlock(); err != nil {
			return err
		}
		balance, err := s.balanceOf(ctx, c.Asset, c.Account)
		if err != nil {
			return err
		}
		if err := s.transfer(ctx, c.Asset, c.Account, c.Beneficiary, balance); err != nil {
			return err
		}
		c.ApplyUnlock(requestcontext.Now(ctx))
		if err := s.store.Update(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save custodian")
		}
		if err := s.emit(ctx, audit.EventVestingUnlocked, c, c.Asset, c.Beneficiary, balance); err != nil {
			return err
		}
		out = &models.Disbursement{Custodian: c, Asset: c.Asset, To: c.Beneficiary, Amount: balance}
		return nil
	})
	s.finish(span, "unlock", start, err)
	if err != nil {
		return nil, err
	}

	s.metrics.IncDisposition(string(models.DispositionUnlocked))
	s.metrics.AddDisbursed("unlock", out.Amount)
	s.logAudit(ctx, audit.EventVestingUnlocked, out.Custodian, out.Asset, out.To, out.Amount)
	return out, nil
}

func (s *Service) load(ctx context.Context, custodianID id.CustodianID) (*models.Custodian, error) {
	c, err := s.store.FindByID(ctx, custodianID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "custodian not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load custodian")
	}
	return c, nil
}

// loadForOperator loads the custodian and checks the operator role before
// any state rule is evaluated.
func (s *Service) loadForOperator(ctx context.Context, custodianID id.CustodianID) (*models.Custodian, error) {
	c, err := s.load(ctx, custodianID)
	if err != nil {
		return nil, err
	}
	ok, err := s.roles.HasRole(ctx, c.ID, accessmodels.RoleOperator, requestcontext.Caller(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check role")
	}
	if !ok {
		return nil, accessmodels.ErrMissingRole(accessmodels.RoleOperator)
	}
	return c, nil
}

func (s *Service) balanceOf(ctx context.Context, asset id.AssetID, account id.AccountID) (uint64, error) {
	balance, err := s.ledger.BalanceOf(ctx, asset, account)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read custody balance")
	}
	return balance, nil
}

// transfer skips zero amounts so a release that rounds down to nothing, or a
// sweep of an empty account, still completes its state transition.
func (s *Service) transfer(ctx context.Context, asset id.AssetID, from, to id.AccountID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := s.ledger.Transfer(ctx, asset, from, to, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "ledger transfer failed")
	}
	return nil
}

// emit writes a compliance event inside the operation's transaction.
func (s *Service) emit(ctx context.Context, event audit.AuditEvent, c *models.Custodian, asset id.AssetID, to id.AccountID, amount uint64) error {
	if s.auditPublisher == nil {
		return nil
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Subject:      c.ID.String(),
		Action:       string(event),
		ActorID:      requestcontext.Caller(ctx).String(),
		Counterparty: to.String(),
		Asset:        asset.String(),
		Amount:       amount,
		Reason:       string(c.Variant),
		RequestID:    requestcontext.RequestID(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) startSpan(ctx context.Context, name string, custodianID id.CustodianID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("custodian.id", custodianID.String()),
	))
}

func (s *Service) finish(span trace.Span, op string, start time.Time, err error) {
	s.metrics.ObserveOperation(op, time.Since(start))
	if err == nil {
		return
	}
	reason := string(models.ReasonOf(err))
	if reason == "" {
		reason = string(dErrors.CodeOf(err))
	}
	s.metrics.IncRejection(op, reason)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, c *models.Custodian, asset id.AssetID, to id.AccountID, amount uint64) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, string(event),
		"custodian_id", c.ID.String(),
		"variant", string(c.Variant),
		"asset", asset.String(),
		"counterparty", to.String(),
		"amount", amount,
		"actor_id", requestcontext.Caller(ctx).String(),
		"request_id", requestcontext.RequestID(ctx),
		"event", string(event),
		"log_type", "audit",
	)
}
