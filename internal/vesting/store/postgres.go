package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"custody/internal/vesting/models"
	id "custody/pkg/domain"
	"custody/pkg/platform/sentinel"
	txcontext "custody/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

// Postgres persists custodians in the custodians table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// RunInTx runs fn in one SQL transaction. The ledger transfer, the custodian
// update and the outbox row written by fn commit or roll back together.
func (s *Postgres) RunInTx(ctx context.Context, _ id.CustodianID, fn func(ctx context.Context) error) error {
	return txcontext.Run(ctx, s.db, fn)
}

func (s *Postgres) Create(ctx context.Context, c *models.Custodian) error {
	query := `
		INSERT INTO custodians (
			id, account_id, variant, asset_id, beneficiary_id, recovery_id,
			release_time, release_percent, deployer_id,
			released, disposition, recovered_asset_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		uuid.UUID(c.Account),
		string(c.Variant),
		uuid.UUID(c.Asset),
		uuid.UUID(c.Beneficiary),
		nullableID(uuid.UUID(c.Recovery)),
		c.ReleaseTime,
		int(c.ReleasePercent),
		uuid.UUID(c.Deployer),
		c.Released,
		string(c.Disposition),
		nullableID(uuid.UUID(c.RecoveredAsset)),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return fmt.Errorf("custodian %s: %w", c.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert custodian: %w", err)
	}
	return nil
}

// FindByID loads a custodian. Inside a transaction the row is locked until
// commit so concurrent operations on one custodian serialize.
func (s *Postgres) FindByID(ctx context.Context, custodianID id.CustodianID) (*models.Custodian, error) {
	query := `
		SELECT id, account_id, variant, asset_id, beneficiary_id, recovery_id,
			release_time, release_percent, deployer_id,
			released, disposition, recovered_asset_id, created_at, updated_at
		FROM custodians
		WHERE id = $1
	`
	if _, inTx := txcontext.From(ctx); inTx {
		query += " FOR UPDATE"
	}

	var (
		c              models.Custodian
		cid, account   uuid.UUID
		asset, benef   uuid.UUID
		deployer       uuid.UUID
		recovery       uuid.NullUUID
		recoveredAsset uuid.NullUUID
		variant        string
		disposition    string
		percent        int
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(custodianID)).Scan(
		&cid, &account, &variant, &asset, &benef, &recovery,
		&c.ReleaseTime, &percent, &deployer,
		&c.Released, &disposition, &recoveredAsset, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query custodian: %w", err)
	}

	c.ID = id.CustodianID(cid)
	c.Account = id.AccountID(account)
	c.Variant = models.Variant(variant)
	c.Asset = id.AssetID(asset)
	c.Beneficiary = id.AccountID(benef)
	c.Recovery = id.AccountID(recovery.UUID)
	c.ReleasePercent = uint(percent)
	c.Deployer = id.AccountID(deployer)
	c.Disposition = models.Disposition(disposition)
	c.RecoveredAsset = id.AssetID(recoveredAsset.UUID)
	return &c, nil
}

// Update writes the mutable state. Configuration columns are never updated.
func (s *Postgres) Update(ctx context.Context, c *models.Custodian) error {
	query := `
		UPDATE custodians
		SET released = $2, disposition = $3, recovered_asset_id = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		c.Released,
		string(c.Disposition),
		nullableID(uuid.UUID(c.RecoveredAsset)),
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update custodian: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update custodian rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullableID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}
