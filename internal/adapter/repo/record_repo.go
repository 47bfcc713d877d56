package repo

import (
	"context"
	"fmt"
	"time"

	"ravelon/internal/domain"
	"ravelon/internal/infra"
	"ravelon/internal/sqlinline"
)

// RecordRepositoryPG implements domain.RecordStore backed by PostgreSQL.
type RecordRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewRecordRepository(sql infra.SQLExecutor) *RecordRepositoryPG {
	return &RecordRepositoryPG{sql: sql}
}

// Append inserts a record. Records are never updated except to detach them.
func (r *RecordRepositoryPG) Append(ctx context.Context, rec domain.EnhancementRecord) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QInsertEnhancementRecord, rec.ID, rec.AccountID, rec.InputRef, rec.OutputRef, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert enhancement record: %w", err)
	}
	return nil
}

// ListByAccount returns the attached records of accountID, newest first.
func (r *RecordRepositoryPG) ListByAccount(ctx context.Context, accountID string) ([]domain.EnhancementRecord, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListEnhancementRecords, accountID)
	if err != nil {
		return nil, fmt.Errorf("list enhancement records: %w", err)
	}
	defer rows.Close()

	var out []domain.EnhancementRecord
	for rows.Next() {
		var rec domain.EnhancementRecord
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.InputRef, &rec.OutputRef, &rec.CreatedAt, &rec.DetachedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DetachByAccount marks every attached record of accountID as detached.
func (r *RecordRepositoryPG) DetachByAccount(ctx context.Context, accountID string, at time.Time) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDetachEnhancementRecords, accountID, at)
	if err != nil {
		return 0, fmt.Errorf("detach enhancement records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ domain.RecordStore = (*RecordRepositoryPG)(nil)
