package override

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates the Postgres-backed lockout/audit store.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

// RecordFailure increments the counter in the database so concurrent
// attempts from two terminals cannot under-count each other.
func (r *postgresRepo) RecordFailure(ctx context.Context, tenantID, operatorID uuid.UUID) (int, error) {
	var failures int
	err := r.db.QueryRowContext(ctx, `
		UPDATE operators
		SET failed_pin_attempts = failed_pin_attempts + 1, updated_at = NOW()
		WHERE tenant_id=$1 AND id=$2
		RETURNING failed_pin_attempts`,
		tenantID, operatorID).Scan(&failures)
	if err != nil {
		return 0, fmt.Errorf("increment failed_pin_attempts: %w", err)
	}
	return failures, nil
}

func (r *postgresRepo) SetLock(ctx context.Context, tenantID, operatorID uuid.UUID, until time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE operators SET locked_until=$1, updated_at=NOW()
		WHERE tenant_id=$2 AND id=$3`,
		until, tenantID, operatorID)
	return err
}

func (r *postgresRepo) ResetLockout(ctx context.Context, tenantID, operatorID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE operators SET failed_pin_attempts=0, locked_until=NULL, updated_at=NOW()
		WHERE tenant_id=$1 AND id=$2`,
		tenantID, operatorID)
	return err
}

func (r *postgresRepo) CreateAudit(ctx context.Context, rec *AuditRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO override_audit
		  (id, tenant_id, requester_id, target_code, target_id, action, reason, outcome, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.ID, rec.TenantID, rec.RequesterID, rec.TargetCode, rec.TargetID,
		rec.Action, rec.Reason, rec.Outcome, rec.CreatedAt)
	return err
}
