package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"custody/internal/access/models"
	id "custody/pkg/domain"
	txcontext "custody/pkg/platform/tx"
)

// Postgres persists role membership in the role_members table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Add(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error) {
	query := `
		INSERT INTO role_members (custodian_id, role, account_id, granted_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (custodian_id, role, account_id) DO NOTHING
	`
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(scope), string(role), uuid.UUID(account))
	if err != nil {
		return false, fmt.Errorf("add role member: %w", err)
	}
	return affected(res)
}

func (s *Postgres) Remove(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error) {
	query := `DELETE FROM role_members WHERE custodian_id = $1 AND role = $2 AND account_id = $3`
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(scope), string(role), uuid.UUID(account))
	if err != nil {
		return false, fmt.Errorf("remove role member: %w", err)
	}
	return affected(res)
}

func (s *Postgres) Contains(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM role_members
			WHERE custodian_id = $1 AND role = $2 AND account_id = $3
		)
	`
	var ok bool
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(scope), string(role), uuid.UUID(account)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check role member: %w", err)
	}
	return ok, nil
}

func (s *Postgres) Members(ctx context.Context, scope id.CustodianID, role models.Role) ([]id.AccountID, error) {
	query := `
		SELECT account_id FROM role_members
		WHERE custodian_id = $1 AND role = $2
		ORDER BY account_id::text
	`
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, uuid.UUID(scope), string(role))
	if err != nil {
		return nil, fmt.Errorf("list role members: %w", err)
	}
	defer rows.Close()

	var out []id.AccountID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan role member: %w", err)
		}
		out = append(out, id.AccountID(u))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role members: %w", err)
	}
	return out, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
