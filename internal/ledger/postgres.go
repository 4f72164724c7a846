package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "custody/pkg/domain"
	"custody/pkg/platform/sentinel"
	txcontext "custody/pkg/platform/tx"
)

// pgCheckViolation is raised by the balances upper-bound constraint.
const pgCheckViolation = "23514"

// Postgres keeps balances in the balances table. Amounts are NUMERIC(20,0)
// and cross the driver as decimal strings so the full uint64 range survives.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (l *Postgres) Mint(ctx context.Context, asset id.AssetID, account id.AccountID, amount uint64) error {
	if account.IsNil() {
		return ErrZeroAddress
	}
	return l.credit(ctx, txcontext.ExecutorFrom(ctx, l.db), asset, account, amount)
}

func (l *Postgres) BalanceOf(ctx context.Context, asset id.AssetID, account id.AccountID) (uint64, error) {
	query := `SELECT amount::text FROM balances WHERE asset_id = $1 AND account_id = $2`
	var raw string
	err := txcontext.ExecutorFrom(ctx, l.db).QueryRowContext(ctx, query,
		uuid.UUID(asset), uuid.UUID(account)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	amount, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode balance %q: %w", raw, err)
	}
	return amount, nil
}

// Transfer debits from and credits to in one transaction, joining the
// caller's transaction when ctx carries one.
func (l *Postgres) Transfer(ctx context.Context, asset id.AssetID, from, to id.AccountID, amount uint64) error {
	if to.IsNil() {
		return ErrZeroAddress
	}
	return txcontext.Run(ctx, l.db, func(ctx context.Context) error {
		exec := txcontext.ExecutorFrom(ctx, l.db)
		query := `
			UPDATE balances SET amount = amount - $3::numeric
			WHERE asset_id = $1 AND account_id = $2 AND amount >= $3::numeric
		`
		res, err := exec.ExecContext(ctx, query,
			uuid.UUID(asset), uuid.UUID(from), strconv.FormatUint(amount, 10))
		if err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("debit rows affected: %w", err)
		}
		if n == 0 {
			if amount == 0 {
				// A missing row is a zero balance, which covers a zero debit.
				return nil
			}
			return sentinel.ErrInsufficientBalance
		}
		return l.credit(ctx, exec, asset, to, amount)
	})
}

func (l *Postgres) credit(ctx context.Context, exec txcontext.Executor, asset id.AssetID, account id.AccountID, amount uint64) error {
	query := `
		INSERT INTO balances (asset_id, account_id, amount)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (asset_id, account_id)
		DO UPDATE SET amount = balances.amount + EXCLUDED.amount
	`
	_, err := exec.ExecContext(ctx, query,
		uuid.UUID(asset), uuid.UUID(account), strconv.FormatUint(amount, 10))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgCheckViolation {
			return ErrOverflow
		}
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}
