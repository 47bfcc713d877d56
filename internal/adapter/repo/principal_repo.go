package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/infra"
	"ravelon/internal/sqlinline"
)

// PrincipalRepositoryPG implements domain.PrincipalStore backed by PostgreSQL.
type PrincipalRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewPrincipalRepository creates a new PrincipalRepositoryPG.
func NewPrincipalRepository(sql infra.SQLExecutor) *PrincipalRepositoryPG {
	return &PrincipalRepositoryPG{sql: sql}
}

// Get fetches an account by id.
func (r *PrincipalRepositoryPG) Get(ctx context.Context, id string) (*domain.Account, error) {
	return scanPrincipal(r.sql.QueryRow(ctx, sqlinline.QSelectPrincipalByID, id))
}

// GetByEmail fetches an account by e-mail, case-insensitively.
func (r *PrincipalRepositoryPG) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return scanPrincipal(r.sql.QueryRow(ctx, sqlinline.QSelectPrincipalByEmail, email))
}

// Put inserts or fully overwrites the account.
func (r *PrincipalRepositoryPG) Put(ctx context.Context, a *domain.Account) error {
	if a == nil || a.ID == "" {
		return domain.ErrUnknownPrincipal
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertPrincipal,
		a.ID,
		a.Email,
		a.Name,
		string(a.Role),
		string(a.Plan),
		a.Credits,
		string(a.LastCreditReset),
		string(a.RewardDay),
		a.RewardsToday,
		a.TimeZone,
		a.LastLogin,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("upsert principal: %w", err)
	}
	return nil
}

// ListAll returns every account, oldest first.
func (r *PrincipalRepositoryPG) ListAll(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListPrincipals)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	return out, nil
}

// Remove deletes the account row.
func (r *PrincipalRepositoryPG) Remove(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeletePrincipal, id)
	if err != nil {
		return fmt.Errorf("delete principal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPrincipal(row pgx.Row) (*domain.Account, error) {
	var (
		a                          domain.Account
		role, plan, reset, rewardD string
	)
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &role, &plan, &a.Credits, &reset, &rewardD, &a.RewardsToday, &a.TimeZone, &a.LastLogin, &a.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	a.Role = domain.Role(role)
	a.Plan = domain.PlanID(plan)
	a.LastCreditReset = clock.Day(reset)
	a.RewardDay = clock.Day(rewardD)
	return &a, nil
}

var _ domain.PrincipalStore = (*PrincipalRepositoryPG)(nil)
